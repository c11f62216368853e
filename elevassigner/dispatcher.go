package elevassigner

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"elevdispatch/common"
	"elevdispatch/elevlog"

	"github.com/rs/zerolog"
)

// Car is what the dispatcher needs from a fleet member.
type Car interface {
	ID() int
	Snapshot() common.CarSnapshot
	Enqueue(r common.Request) bool
	EnqueueBlocking(ctx context.Context, r common.Request, timeout time.Duration) bool
}

type Dispatcher struct {
	cfg    common.Config
	log    zerolog.Logger
	events *elevlog.Stream
	fleet  []Car
	queue  *RequestQueue

	running atomic.Bool

	// cancelled by Stop; bounds cab press hand-offs
	ctx    context.Context
	cancel context.CancelFunc
}

func NewDispatcher(cfg common.Config, fleet []Car, log zerolog.Logger, events *elevlog.Stream) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:    cfg,
		log:    log.With().Str("component", "dispatcher").Logger(),
		events: events,
		fleet:  append([]Car(nil), fleet...),
		queue:  NewRequestQueue(),
		ctx:    ctx,
		cancel: cancel,
	}
	d.running.Store(true)
	return d
}

func (d *Dispatcher) validFloor(floor int) bool {
	return floor >= 1 && floor <= d.cfg.Floors
}

func (d *Dispatcher) reject(res common.Result, text string) common.Result {
	d.events.Emit(elevlog.EventRejected, elevlog.NoCar, "", fmt.Sprintf("%s: %s", res, text))
	return res
}

// SubmitExternalCall validates a landing call and queues it for assignment.
func (d *Dispatcher) SubmitExternalCall(floor int, dir common.Direction) common.Result {
	if !d.validFloor(floor) {
		return d.reject(common.RejectedInvalidFloor, fmt.Sprintf("call floor %d outside 1..%d", floor, d.cfg.Floors))
	}
	switch {
	case dir != common.DirUp && dir != common.DirDown && dir != common.DirNone,
		floor == 1 && dir == common.DirDown,
		floor == d.cfg.Floors && dir == common.DirUp:
		return d.reject(common.RejectedInvalidDirection, fmt.Sprintf("cannot call %s from floor %d", dir, floor))
	}

	r := common.NewExternalRequest(floor, dir)
	d.queue.Push(r)
	d.events.Emit(elevlog.EventAccepted, elevlog.NoCar, r.ID(), fmt.Sprintf("accepted %s", r))
	return common.Accepted
}

// SubmitInternalRequest hands a cab press straight to its car. A car whose
// inbox stays full past the assignment timeout drops the press; the result
// is still Accepted.
func (d *Dispatcher) SubmitInternalRequest(floor int, carID int) common.Result {
	if !d.validFloor(floor) {
		return d.reject(common.RejectedInvalidFloor, fmt.Sprintf("press floor %d outside 1..%d", floor, d.cfg.Floors))
	}
	if carID < 0 || carID >= len(d.fleet) {
		return d.reject(common.RejectedInvalidCar, fmt.Sprintf("car %d outside 0..%d", carID, len(d.fleet)-1))
	}

	r := common.NewInternalRequest(floor, carID)
	d.events.Emit(elevlog.EventAccepted, carID, r.ID(), fmt.Sprintf("accepted %s", r))
	if d.fleet[carID].EnqueueBlocking(d.ctx, r, d.cfg.AssignTimeout()) {
		d.events.Emit(elevlog.EventAssigned, carID, r.ID(), fmt.Sprintf("%s handed to car %d", r, carID))
	} else {
		d.events.Emit(elevlog.EventDropped, carID, r.ID(), fmt.Sprintf("%s dropped: car %d inbox full", r, carID))
	}
	return common.Accepted
}

func (d *Dispatcher) Running() bool { return d.running.Load() }

// Stop is one-way. Run returns within one poll interval.
func (d *Dispatcher) Stop() {
	d.running.Store(false)
	d.cancel()
}

// Pending is the number of calls waiting for assignment.
func (d *Dispatcher) Pending() int { return d.queue.Len() }

func (d *Dispatcher) Run(ctx context.Context) {
	d.log.Info().Int("cars", len(d.fleet)).Msg("dispatcher started")
	defer d.log.Info().Msg("dispatcher stopped")

	for d.running.Load() {
		r, ok := d.queue.Poll(ctx, d.cfg.DispatchPoll())
		if ctx.Err() != nil {
			return
		}
		if !ok {
			continue
		}
		d.assign(ctx, r)
	}
}

// assign gives the best car one bounded wait, then offers the call once to
// the best of the remaining cars, then drops it.
func (d *Dispatcher) assign(ctx context.Context, r common.Request) {
	if len(d.fleet) == 0 {
		d.events.Emit(elevlog.EventDropped, elevlog.NoCar, r.ID(), fmt.Sprintf("%s dropped: no cars", r))
		return
	}

	first := d.pick(r, -1)
	car := d.fleet[first]
	if car.EnqueueBlocking(ctx, r, d.cfg.AssignTimeout()) {
		d.events.Emit(elevlog.EventAssigned, car.ID(), r.ID(), fmt.Sprintf("%s assigned to car %d", r, car.ID()))
		return
	}

	second := d.pick(r, first)
	if second >= 0 && d.fleet[second].Enqueue(r) {
		alt := d.fleet[second]
		d.events.Emit(elevlog.EventReassigned, alt.ID(), r.ID(),
			fmt.Sprintf("%s reassigned from car %d to car %d", r, car.ID(), alt.ID()))
		return
	}

	d.events.Emit(elevlog.EventDropped, elevlog.NoCar, r.ID(), fmt.Sprintf("%s dropped: no car accepted it", r))
}

// pick returns the fleet index with the lowest cost, skipping exclude.
// Ties go to the lowest index. -1 when no car is eligible.
func (d *Dispatcher) pick(r common.Request, exclude int) int {
	best, bestCost := -1, 0
	for i, car := range d.fleet {
		if i == exclude {
			continue
		}
		c := Cost(car.Snapshot(), r)
		d.log.Debug().Int("car", car.ID()).Int("cost", c).Str("request", r.ID()).Msg("scored")
		if best < 0 || c < bestCost {
			best, bestCost = i, c
		}
	}
	return best
}
