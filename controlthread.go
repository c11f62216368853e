// controlthread.go
// Purpose: Runs the QUIC control server that lets elevctl submit calls,
// read snapshots and follow the event stream.
package main

import (
	"context"
	"fmt"
	"time"

	"elevdispatch/common"
	"elevdispatch/elevnetwork"
	"elevdispatch/elevsystem"

	"github.com/rs/zerolog"
)

const SESSION_LOG_INTERVAL = 30 * time.Second

func controlThread(ctx context.Context, cfg common.Config, sys *elevsystem.System, log zerolog.Logger) error {
	srv := elevnetwork.NewServer(sys, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx, cfg.ControlAddr)
	}()

	ticker := time.NewTicker(SESSION_LOG_INTERVAL)
	defer ticker.Stop()

	for {
		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("control server: %w", err)
			}
			return nil
		case <-ticker.C:
			if conns := srv.Sessions().Connected(); len(conns) > 0 {
				log.Info().Interface("sessions", conns).Msg("controlThread: connected clients")
			}
		}
	}
}
