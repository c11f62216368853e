package elevfsm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"elevdispatch/common"
	"elevdispatch/elevlog"

	"github.com/rs/zerolog"
)

// Car is one simulated elevator. Its loop is the only writer of the pending
// set; every other goroutine reaches it through the inbox or Snapshot.
type Car struct {
	id     int
	cfg    common.Config
	log    zerolog.Logger
	events *elevlog.Stream
	inbox  chan common.Request

	mu      sync.Mutex
	floor   int
	dir     common.Direction
	status  common.CarStatus
	pending map[int]struct{}
}

func NewCar(id int, startFloor int, cfg common.Config, log zerolog.Logger, events *elevlog.Stream) *Car {
	return &Car{
		id:      id,
		cfg:     cfg,
		log:     log.With().Str("component", "car").Int("car", id).Logger(),
		events:  events,
		inbox:   make(chan common.Request, cfg.InboxCapacity),
		floor:   startFloor,
		dir:     common.DirNone,
		status:  common.StatusIdle,
		pending: make(map[int]struct{}),
	}
}

func (c *Car) ID() int { return c.id }

// Enqueue offers r without waiting. False means the inbox is full.
func (c *Car) Enqueue(r common.Request) bool {
	select {
	case c.inbox <- r:
		return true
	default:
		return false
	}
}

// EnqueueBlocking offers r, waiting at most timeout for inbox space.
func (c *Car) EnqueueBlocking(ctx context.Context, r common.Request, timeout time.Duration) bool {
	if c.Enqueue(r) {
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case c.inbox <- r:
		return true
	case <-t.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (c *Car) Snapshot() common.CarSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return common.CarSnapshot{
		ID:        c.id,
		Floor:     c.floor,
		Direction: c.dir,
		Status:    c.status,
		Pending:   common.SortedFloors(c.pending),
	}
}

// Run drives the car until ctx is cancelled.
func (c *Car) Run(ctx context.Context) {
	c.log.Info().Int("floor", c.Snapshot().Floor).Msg("car loop started")
	defer c.log.Info().Msg("car loop stopped")

	for {
		if !c.ingest(ctx) {
			return
		}
		if !c.step(ctx) {
			return
		}
		if !sleepCtx(ctx, c.cfg.Tick()) {
			return
		}
	}
}

// ingest waits one inbox poll for a request, then drains whatever else is
// already queued.
func (c *Car) ingest(ctx context.Context) bool {
	t := time.NewTimer(c.cfg.InboxPoll())
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	case r := <-c.inbox:
		c.accept(r)
	}
	for {
		select {
		case r := <-c.inbox:
			c.accept(r)
		default:
			return true
		}
	}
}

func (c *Car) accept(r common.Request) {
	floor := r.Floor()
	if floor < 1 || floor > c.cfg.Floors {
		c.log.Warn().Str("request", r.ID()).Int("floor", floor).Msg("ignoring request outside building")
		return
	}
	c.mu.Lock()
	c.pending[floor] = struct{}{}
	c.mu.Unlock()
	c.log.Debug().Str("request", r.ID()).Msgf("added floor %d (%s)", floor, r)
}

// step performs one motion decision and, if the car is at a pending floor,
// the door cycle. It returns false only when ctx was cancelled.
func (c *Car) step(ctx context.Context) bool {
	c.move()
	return c.arrive(ctx)
}

func (c *Car) move() {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.status = common.StatusIdle
		c.dir = common.DirNone
		c.mu.Unlock()
		return
	}
	if c.status != common.StatusIdle && c.status != common.StatusMoving {
		c.mu.Unlock()
		return
	}

	target := nextTarget(c.floor, c.dir, common.SortedFloors(c.pending))
	switch {
	case target > c.floor:
		c.dir = common.DirUp
		c.floor++
	case target < c.floor:
		c.dir = common.DirDown
		c.floor--
	default:
		c.mu.Unlock()
		return
	}
	c.status = common.StatusMoving
	floor, dir := c.floor, c.dir
	c.mu.Unlock()

	c.events.Emit(elevlog.EventMoved, c.id, "", fmt.Sprintf("car %d moved to floor %d (%s)", c.id, floor, dir))
}

func (c *Car) arrive(ctx context.Context) bool {
	c.mu.Lock()
	if _, ok := c.pending[c.floor]; !ok {
		c.mu.Unlock()
		return true
	}
	delete(c.pending, c.floor)
	floor := c.floor
	c.mu.Unlock()

	c.events.Emit(elevlog.EventArrived, c.id, "", fmt.Sprintf("car %d arrived at floor %d", c.id, floor))
	return c.cycleDoors(ctx, floor)
}
