// Command craftd runs the voxel-world server: it loads configuration,
// opens the block store, wires the model actor to the TCP listener and the
// metrics/health HTTP side port, and runs until an interrupt or SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/adred-codev/craftd/internal/audit"
	"github.com/adred-codev/craftd/internal/config"
	"github.com/adred-codev/craftd/internal/logging"
	"github.com/adred-codev/craftd/internal/metrics"
	"github.com/adred-codev/craftd/internal/model"
	"github.com/adred-codev/craftd/internal/store"
	"github.com/adred-codev/craftd/internal/sysstats"
	"github.com/adred-codev/craftd/internal/transport"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging (overrides CRAFTD_LOG_LEVEL)")
	flag.Parse()

	bootstrap, err := logging.New(logging.Options{Level: "info", Pretty: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "craftd: bootstrap logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(&bootstrap)
	if err != nil {
		bootstrap.Fatal().Err(err).Msg("load config")
	}

	if *debug {
		cfg.LogLevel = "debug"
	}

	// host [port] positional overrides, matching the original server's CLI.
	config.ApplyCLIOverrides(cfg, flag.Args())

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Pretty: cfg.LogFormat != "json"})
	if err != nil {
		bootstrap.Fatal().Err(err).Msg("build logger")
	}
	logger.Info().Str("host", cfg.Host).Int("port", cfg.Port).Msg("craftd starting")

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open store")
	}
	defer st.Close()

	auditPub, err := audit.Connect(cfg.NATSUrl, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("audit publisher disabled: nats connect failed")
		auditPub = audit.NewNoop()
	}
	defer auditPub.Close()

	reg := metrics.NewRegistry()

	m := model.New(st, reg, auditPub, logger, model.Config{CommitInterval: cfg.CommitInterval})

	ln := transport.New(transport.Config{
		Addr:            fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		MaxConnections:  cfg.MaxConnections,
		BufferSize:      cfg.BufferSize,
		OutboundQueue:   cfg.OutboundQueue,
		InboundRatePerS: cfg.InboundRatePerS,
		InboundBurst:    cfg.InboundBurst,
	}, m, logger, reg.InboundDropped, reg.BroadcastDropped)

	reporter, err := sysstats.NewReporter(10*time.Second, logger, reg)
	if err != nil {
		logger.Warn().Err(err).Msg("sysstats disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go m.Run(ctx)

	if reporter != nil {
		go reporter.Run(ctx)
	}

	go func() {
		if err := metrics.Serve(cfg.MetricsAddr, reg, m); err != nil {
			logger.Warn().Err(err).Msg("metrics server stopped")
		}
	}()

	listenErrCh := make(chan error, 1)
	go func() {
		listenErrCh <- ln.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutdown signal received")
	case err := <-listenErrCh:
		if err != nil {
			logger.Error().Err(err).Msg("listener exited unexpectedly")
		}
	}

	cancel()
	logger.Info().Msg("craftd stopped")
}
