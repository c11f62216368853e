// scenariothread.go
// Purpose: Scripted and random traffic fed into the running system through
// the same facade the control server uses.
package main

import (
	"context"
	"math/rand"
	"time"

	"elevdispatch/common"
	"elevdispatch/elevsystem"

	"github.com/rs/zerolog"
)

type demoStep struct {
	after time.Duration
	calls []demoCall
}

type demoCall struct {
	floor int
	dir   common.Direction
	car   int // -1 for a landing call
}

var demoScript = []demoStep{
	{2 * time.Second, []demoCall{
		{5, common.DirUp, -1},
		{8, common.DirDown, -1},
		{10, common.DirNone, 0},
	}},
	{3 * time.Second, []demoCall{
		{3, common.DirUp, -1},
		{15, common.DirNone, 1},
	}},
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// scenarioThread plays demoScript. Calls that do not fit the configured
// building are skipped.
func scenarioThread(ctx context.Context, cfg common.Config, sys *elevsystem.System, log zerolog.Logger) error {
	log = log.With().Str("component", "scenario").Logger()
	for _, step := range demoScript {
		if !sleepOrDone(ctx, step.after) {
			return nil
		}
		for _, c := range step.calls {
			if c.floor > cfg.Floors || c.car >= cfg.Cars {
				log.Debug().Int("floor", c.floor).Int("car", c.car).Msg("skipping demo call outside building")
				continue
			}
			var res common.Result
			if c.car < 0 {
				res = sys.SubmitExternalCall(c.floor, c.dir)
			} else {
				res = sys.SubmitInternalRequest(c.floor, c.car)
			}
			log.Info().Int("floor", c.floor).Int("car", c.car).Str("result", res.String()).Msg("demo request")
		}
	}
	log.Info().Msg("demo script finished")
	return nil
}

// randomTrafficThread submits a random call or cab press every 2 to 6
// seconds until ctx is cancelled.
func randomTrafficThread(ctx context.Context, cfg common.Config, sys *elevsystem.System, log zerolog.Logger) error {
	log = log.With().Str("component", "traffic").Logger()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	total := 0

	for {
		if rng.Intn(2) == 0 {
			floor := rng.Intn(cfg.Floors) + 1
			dir := common.DirUp
			if rng.Intn(2) == 0 {
				dir = common.DirDown
			}
			res := sys.SubmitExternalCall(floor, dir)
			log.Debug().Int("floor", floor).Str("dir", dir.String()).Str("result", res.String()).Msg("random call")
		} else {
			car := rng.Intn(cfg.Cars)
			floor := rng.Intn(cfg.Floors) + 1
			res := sys.SubmitInternalRequest(floor, car)
			log.Debug().Int("floor", floor).Int("car", car).Str("result", res.String()).Msg("random press")
		}
		total++
		if total%10 == 0 {
			log.Info().Int("requests", total).Msg("random traffic")
		}

		if !sleepOrDone(ctx, 2*time.Second+time.Duration(rng.Intn(4000))*time.Millisecond) {
			return nil
		}
	}
}
