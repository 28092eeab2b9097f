// Package reporting writes per-run report files.
package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/acarl005/stripansi"

	"github.com/sebfabre/ktf/runner"
	"github.com/sebfabre/ktf/types"
)

// TextSummarySink writes a plain-text summary file for each run under
// baseDir/testrun-<run_id>/summary.log.
type TextSummarySink struct {
	baseDir string
}

func NewTextSummarySink(baseDir string) *TextSummarySink {
	return &TextSummarySink{baseDir: baseDir}
}

// WriteRun renders result and writes it to the run's summary file.
func (s *TextSummarySink) WriteRun(result *runner.RunnerResult) error {
	outputDir := filepath.Join(s.baseDir, "testrun-"+result.RunID)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	content := s.format(result)

	summaryFile := filepath.Join(outputDir, "summary.log")
	if err := os.WriteFile(summaryFile, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write summary file: %w", err)
	}
	return nil
}

func (s *TextSummarySink) format(result *runner.RunnerResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s\n", result.RunID)
	fmt.Fprintf(&b, "Status: %s\n", result.Status)
	fmt.Fprintf(&b, "Tests: %d (passed %d, failed %d, skipped %d, errored %d)\n",
		result.Stats.Total, result.Stats.Passed, result.Stats.Failed,
		result.Stats.Skipped, result.Stats.Errored)
	fmt.Fprintf(&b, "Assertions: %d\n", result.Assertions)
	fmt.Fprintf(&b, "Duration: %.1fs\n\n", result.Duration.Seconds())

	names := make([]string, 0, len(result.Handles))
	for name := range result.Handles {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		hr := result.Handles[name]
		fmt.Fprintf(&b, "%s (%s): %s\n", hr.Name, hr.Version, hr.Status)
		for _, tr := range hr.Tests {
			writeTestLine(&b, tr)
		}
		b.WriteString("\n")
	}

	if len(result.Global) > 0 {
		b.WriteString("global:\n")
		for _, tr := range result.Global {
			writeTestLine(&b, tr)
		}
	}

	return b.String()
}

func writeTestLine(b *strings.Builder, tr *types.TestResult) {
	fmt.Fprintf(b, "  [%s] %s (%.3fs)\n", tr.Status, tr.DisplayName(), tr.Duration.Seconds())
	if tr.Err != nil {
		fmt.Fprintf(b, "      error: %s\n", stripansi.Strip(tr.Err.Error()))
	}
	for _, f := range tr.Failures {
		kind := "expect"
		if f.Fatal {
			kind = "assert"
		}
		fmt.Fprintf(b, "      %s failed: %s\n", kind, stripansi.Strip(f.Msg))
	}
}
