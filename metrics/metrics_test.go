package metrics

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/sebfabre/ktf/types"
)

func TestErrToLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "nil error",
			err:  nil,
		},
		{
			name: "simple error",
			err:  errors.New("test error"),
		},
		{
			name: "error with special chars",
			err:  errors.New("test@error#123"),
		},
		{
			name: "error with multiple spaces",
			err:  errors.New("test   error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errToLabel(tt.err)
			validLabelRegex := regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)
			if !validLabelRegex.MatchString(result) {
				t.Errorf("errToLabel() = %v, is not a valid Prometheus label", result)
			}
		})
	}
}

func TestRecordError(t *testing.T) {
	// just test that it doesn't panic
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("RecordError panic'd")
		}
	}()

	RecordError("test_error")
}

func TestRecordErrorDetails(t *testing.T) {
	RecordErrorDetails("test", nil)
	RecordErrorDetails("test", errors.New("sample error"))
}

func TestRecordTest(t *testing.T) {
	RecordTest("run1", "dual", "simplemap", types.TestStatusPass)
	RecordTest("run1", "dual", "mapref", types.TestStatusFail)
	RecordTest("run1", "wrongversion", "wrongversion", types.TestStatusSkip)

	// Invalid results are dropped, not recorded.
	RecordTest("run1", "dual", "simplemap", types.TestStatus("bogus"))
}

func TestRecordRun(t *testing.T) {
	RecordRun("run1", "pass", 3, 3, 0, 42, time.Second)
	RecordRun("run2", "fail", 3, 2, 1, 7, time.Second)
}
