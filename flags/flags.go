package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "KTF"

// prefixEnvVar returns the env var names for a flag under the KTF prefix.
func prefixEnvVar(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	CatalogFile = &cli.StringFlag{
		Name:    "catalog",
		Value:   "",
		EnvVars: prefixEnvVar("CATALOG"),
		Usage:   "Path to handle catalog file (eg. 'catalog.yaml')",
	}
	TargetHandle = &cli.StringFlag{
		Name:    "handle",
		Value:   "",
		EnvVars: prefixEnvVar("HANDLE"),
		Usage:   "Run only tests bound to this handle (eg. 'selftest')",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: prefixEnvVar("RUN_INTERVAL"),
		Usage:   "Interval between test runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	ReportDir = &cli.StringFlag{
		Name:    "report-dir",
		Value:   "",
		EnvVars: prefixEnvVar("REPORT_DIR"),
		Usage:   "Directory to write per-run report files to",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	CatalogFile,
	TargetHandle,
	RunInterval,
	ReportDir,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
