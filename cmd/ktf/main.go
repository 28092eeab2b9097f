package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	"github.com/sebfabre/ktf"
	"github.com/sebfabre/ktf/exitcodes"
	"github.com/sebfabre/ktf/flags"
	"github.com/sebfabre/ktf/selftest"
	"github.com/sebfabre/ktf/service"
)

var (
	Version   = "v0.9.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "ktf"
	app.Usage = "Kernel Test Framework selftest runner"
	app.Description = "ktf runs the registered test catalog against the framework"
	app.Flags = flags.Flags
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			if ktf.IsRuntimeError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
			} else {
				// Test failures and unspecified errors exit with code 1
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			}
		}
	}

	// Start telemetry
	otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer otelShutdown()

	// Start side servers (healthz, metrics)
	svc := service.New()
	svc.Start(context.Background())
	defer svc.Shutdown()

	if err := app.Run(os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func run(cliCtx *cli.Context) error {
	logger := log.NewLogger(log.NewTerminalHandler(os.Stderr, true))
	log.SetDefault(logger)

	cfg, err := ktf.NewConfig(cliCtx, logger)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return ktf.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	ctx, stop := signal.NotifyContext(cliCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown := make(chan error, 1)
	tester, err := ktf.New(ctx, cfg, Version, func(err error) { shutdown <- err })
	if err != nil {
		return ktf.NewRuntimeError(fmt.Errorf("failed to create service: %w", err))
	}

	// Bind the built-in selftest catalog.
	if err := selftest.Register(tester.Registry()); err != nil {
		return ktf.NewRuntimeError(fmt.Errorf("failed to register selftests: %w", err))
	}

	if err := tester.Start(ctx); err != nil {
		return err
	}

	if cfg.RunOnce {
		return <-shutdown
	}

	select {
	case err := <-shutdown:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := tester.Stop(stopCtx); err != nil {
		return err
	}
	return tester.WaitForShutdown(stopCtx)
}
