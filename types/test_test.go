package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsRecord(t *testing.T) {
	var s Stats
	s.Record(TestStatusPass)
	s.Record(TestStatusPass)
	s.Record(TestStatusFail)
	s.Record(TestStatusSkip)
	s.Record(TestStatusError)

	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 2, s.Passed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.Errored)
}

func TestStatsStatus(t *testing.T) {
	tests := []struct {
		name string
		s    Stats
		want TestStatus
	}{
		{"all passed", Stats{Total: 3, Passed: 3}, TestStatusPass},
		{"one failed", Stats{Total: 3, Passed: 2, Failed: 1}, TestStatusFail},
		{"runtime error", Stats{Total: 2, Passed: 1, Errored: 1}, TestStatusFail},
		{"all skipped", Stats{Total: 2, Skipped: 2}, TestStatusSkip},
		{"nothing run", Stats{}, TestStatusSkip},
		{"skip and pass", Stats{Total: 2, Passed: 1, Skipped: 1}, TestStatusPass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.s.Status())
		})
	}
}

func TestStatsMerge(t *testing.T) {
	early := time.Now().Add(-time.Minute)
	late := time.Now()

	a := Stats{Total: 2, Passed: 2, StartTime: late, EndTime: late}
	b := Stats{Total: 1, Failed: 1, StartTime: early, EndTime: early}
	a.Merge(b)

	assert.Equal(t, 3, a.Total)
	assert.Equal(t, 1, a.Failed)
	assert.Equal(t, early, a.StartTime)
	assert.Equal(t, late, a.EndTime)
}

func TestDisplayName(t *testing.T) {
	tr := &TestResult{Metadata: TestMetadata{Name: "simplemap"}}
	assert.Equal(t, "simplemap", tr.DisplayName())

	tr.Context = "map1"
	assert.Equal(t, "simplemap:map1", tr.DisplayName())
}
