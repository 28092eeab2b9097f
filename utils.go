package ktf

import (
	"fmt"
	"strings"
	"time"

	"github.com/sebfabre/ktf/types"
)

// extractFailureMessage returns the most pertinent failure detail for display:
// the runtime error if one occurred, else the first recorded assertion failure.
func extractFailureMessage(tr *types.TestResult) string {
	if tr.Err != nil {
		return firstLine(tr.Err.Error())
	}
	for _, f := range tr.Failures {
		return firstLine(f.Msg)
	}
	return ""
}

func firstLine(s string) string {
	if idx := strings.Index(s, "\n"); idx != -1 {
		return s[:idx]
	}
	if len(s) > 80 {
		return s[:70] + "..."
	}
	return s
}

// Helper function to convert bool to int
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// getResultString returns a string representing the test result
func getResultString(status types.TestStatus) string {
	switch status {
	case types.TestStatusPass:
		return "✓ pass"
	case types.TestStatusSkip:
		return "- skip"
	case types.TestStatusError:
		return "! error"
	default:
		return "✗ fail"
	}
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
