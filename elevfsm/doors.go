package elevfsm

import (
	"context"
	"fmt"
	"time"

	"elevdispatch/common"
	"elevdispatch/elevlog"
)

type doorPhase struct {
	status common.CarStatus
	event  elevlog.EventKind
	text   string
	wait   func(common.Config) time.Duration
}

var doorCycle = []doorPhase{
	{common.StatusDoorsOpening, elevlog.EventDoorsOpening, "doors opening", common.Config.DoorOpen},
	{common.StatusLoading, elevlog.EventLoading, "loading", common.Config.Loading},
	{common.StatusDoorsClosing, elevlog.EventDoorsClosing, "doors closing", common.Config.DoorClose},
}

func (c *Car) setStatus(s common.CarStatus) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// cycleDoors runs opening, loading and closing at floor. The lock is never
// held across a wait.
func (c *Car) cycleDoors(ctx context.Context, floor int) bool {
	for _, phase := range doorCycle {
		c.setStatus(phase.status)
		c.events.Emit(phase.event, c.id, "", fmt.Sprintf("car %d %s at floor %d", c.id, phase.text, floor))
		if !sleepCtx(ctx, phase.wait(c.cfg)) {
			return false
		}
	}

	c.mu.Lock()
	if len(c.pending) > 0 {
		c.status = common.StatusMoving
	} else {
		c.status = common.StatusIdle
		c.dir = common.DirNone
	}
	c.mu.Unlock()

	c.events.Emit(elevlog.EventDoorsClosed, c.id, "", fmt.Sprintf("car %d doors closed at floor %d", c.id, floor))
	return true
}
