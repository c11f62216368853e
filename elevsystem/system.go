// system.go
// Purpose: Composition root. Builds the cars and the dispatcher from a
// Config, starts and stops their loops together and exposes the facade used
// by the control server and the demo scenario.
package elevsystem

import (
	"context"
	"fmt"
	"sync"
	"time"

	"elevdispatch/common"
	"elevdispatch/elevassigner"
	"elevdispatch/elevfsm"
	"elevdispatch/elevlog"

	"github.com/rs/zerolog"
)

// ShutdownError lists cars whose loops had not exited when the shutdown
// bound expired. The rest of the fleet was still stopped.
type ShutdownError struct {
	Unresponsive []int
	Timeout      time.Duration
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("cars %v did not stop within %v", e.Unresponsive, e.Timeout)
}

type System struct {
	cfg        common.Config
	log        zerolog.Logger
	events     *elevlog.Stream
	cars       []*elevfsm.Car
	dispatcher *elevassigner.Dispatcher

	mu       sync.Mutex
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	carDone  []chan struct{}
	dispDone chan struct{}
}

func New(cfg common.Config, log zerolog.Logger, events *elevlog.Stream) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new system: %w", err)
	}
	if events == nil {
		events = elevlog.NewStream(log, 256)
	}

	cars := make([]*elevfsm.Car, cfg.Cars)
	fleet := make([]elevassigner.Car, cfg.Cars)
	for i := range cars {
		cars[i] = elevfsm.NewCar(i, cfg.StartFloor(i), cfg, log, events)
		fleet[i] = cars[i]
	}

	return &System{
		cfg:        cfg,
		log:        log.With().Str("component", "system").Logger(),
		events:     events,
		cars:       cars,
		dispatcher: elevassigner.NewDispatcher(cfg, fleet, log, events),
	}, nil
}

// Start launches the dispatcher and one goroutine per car. Only the first
// call has any effect.
func (s *System) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.dispDone = make(chan struct{})
	go func() {
		defer close(s.dispDone)
		s.dispatcher.Run(runCtx)
	}()

	s.carDone = make([]chan struct{}, len(s.cars))
	for i, car := range s.cars {
		done := make(chan struct{})
		s.carDone[i] = done
		go func(car *elevfsm.Car) {
			defer close(done)
			car.Run(runCtx)
		}(car)
	}

	s.events.Emit(elevlog.EventStarted, elevlog.NoCar, "", fmt.Sprintf("System started with %d cars", len(s.cars)))
}

// Stop signals every loop and waits until one shared deadline for them to
// exit. Cars still running at the deadline are returned in a *ShutdownError.
func (s *System) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.stopped {
		return nil
	}
	s.stopped = true

	s.dispatcher.Stop()
	s.cancel()

	timeout := s.cfg.ShutdownTimeout()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	expired := false

	wait := func(done <-chan struct{}) bool {
		if expired {
			select {
			case <-done:
				return true
			default:
				return false
			}
		}
		select {
		case <-done:
			return true
		case <-deadline.C:
			expired = true
			return false
		}
	}

	if !wait(s.dispDone) {
		s.log.Warn().Msg("dispatcher did not stop in time")
	}
	var stuck []int
	for i, done := range s.carDone {
		if !wait(done) {
			stuck = append(stuck, i)
		}
	}

	s.events.Emit(elevlog.EventStopped, elevlog.NoCar, "", "System stopped")
	if len(stuck) > 0 {
		err := &ShutdownError{Unresponsive: stuck, Timeout: timeout}
		s.log.Error().Err(err).Msg("shutdown incomplete")
		return err
	}
	return nil
}

func (s *System) SubmitExternalCall(floor int, dir common.Direction) common.Result {
	return s.dispatcher.SubmitExternalCall(floor, dir)
}

func (s *System) SubmitInternalRequest(floor int, carID int) common.Result {
	return s.dispatcher.SubmitInternalRequest(floor, carID)
}

// SnapshotAll returns one snapshot per car in fleet order.
func (s *System) SnapshotAll() []common.CarSnapshot {
	out := make([]common.CarSnapshot, len(s.cars))
	for i, car := range s.cars {
		out[i] = car.Snapshot()
	}
	return out
}

func (s *System) Events() *elevlog.Stream { return s.events }

func (s *System) Config() common.Config { return s.cfg }
