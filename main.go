// main.go
// Purpose: Application entry point. Loads configuration, builds the dispatch
// system and starts the car and dispatcher loops, then runs the optional
// control server and demo scenario until interrupted (Ctrl+C).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"elevdispatch/common"
	"elevdispatch/elevlog"
	"elevdispatch/elevsystem"

	"golang.org/x/sync/errgroup"
)

func loadConfig(path, envFile, listen string) (common.Config, error) {
	cfg := common.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = common.LoadConfig(path); err != nil {
			return common.Config{}, err
		}
	}
	if envFile != "" {
		if err := cfg.ApplyEnvFile(envFile); err != nil {
			return common.Config{}, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return common.Config{}, err
	}
	if listen != "" {
		cfg.ControlAddr = listen
	}
	return cfg, cfg.Validate()
}

func main() {
	configPath := flag.String("config", "", "config file (.toml, .yaml or .yml)")
	envFile := flag.String("env", "", "dotenv file with ELEV_* overrides")
	listen := flag.String("listen", "", "QUIC control address ip:port (overrides config)")
	demo := flag.Bool("demo", false, "submit the demo calls after startup")
	random := flag.Bool("random", false, "generate random calls and cab presses")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *envFile, *listen)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	log := elevlog.GetLoggerConfigured(elevlog.ParseLevel(cfg.LogLevel))

	// ctrl + c handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	events := elevlog.NewStream(*log, 256)
	sys, err := elevsystem.New(cfg, *log, events)
	if err != nil {
		log.Fatal().Err(err).Msg("building system")
	}
	sys.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.ControlAddr != "" {
		g.Go(func() error { return controlThread(gctx, cfg, sys, *log) })
	}
	if *demo {
		g.Go(func() error { return scenarioThread(gctx, cfg, sys, *log) })
	}
	if *random {
		g.Go(func() error { return randomTrafficThread(gctx, cfg, sys, *log) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	runErr := g.Wait()
	log.Info().Msg("Shutting down")

	stopErr := sys.Stop()
	var se *elevsystem.ShutdownError
	if errors.As(stopErr, &se) {
		log.Warn().Ints("cars", se.Unresponsive).Msg("some cars did not stop in time")
	}
	if runErr != nil {
		log.Error().Err(runErr).Msg("exiting")
		os.Exit(1)
	}
}
