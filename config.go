package ktf

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"
	"github.com/sebfabre/ktf/flags"
)

// Config holds the application configuration
type Config struct {
	CatalogFile  string        // Path to the handle catalog file (optional)
	TargetHandle string        // Run only tests bound to this handle
	ReportDir    string        // Directory to store run reports
	RunInterval  time.Duration // Interval between test runs
	RunOnce      bool          // Indicates if the service should exit after one test run
	Log          log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	catalogFile := ctx.String(flags.CatalogFile.Name)
	if catalogFile != "" {
		var err error
		catalogFile, err = filepath.Abs(catalogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for catalog file '%s': %w", ctx.String(flags.CatalogFile.Name), err)
		}
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	runOnce := runInterval == 0

	// Default the report directory to "reports" if not specified
	reportDir := ctx.String(flags.ReportDir.Name)
	if reportDir == "" {
		reportDir = "reports"
	}
	reportDir, err := filepath.Abs(reportDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for report directory '%s': %w", ctx.String(flags.ReportDir.Name), err)
	}

	return &Config{
		CatalogFile:  catalogFile,
		TargetHandle: ctx.String(flags.TargetHandle.Name),
		ReportDir:    reportDir,
		RunInterval:  runInterval,
		RunOnce:      runOnce,
		Log:          log,
	}, nil
}
