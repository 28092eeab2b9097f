package assertions

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounterConcurrentIncrements(t *testing.T) {
	const workers = 20

	var c Counter
	before := c.Count()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}
	wg.Wait()

	// N workers, one increment each: the tally advances by exactly N.
	assert.Equal(t, before+workers, c.Count())
}

func TestCounterReset(t *testing.T) {
	var c Counter
	c.Inc()
	c.Inc()
	assert.Equal(t, uint64(2), c.Count())

	c.Reset()
	assert.Equal(t, uint64(0), c.Count())
}

func TestProcessCounter(t *testing.T) {
	Reset()
	tt := NewT("counted", nil)
	tt.Expect(true, "fine")
	tt.Expect(false, "not fine")
	assert.Equal(t, uint64(2), Count(), "pass and fail both count exactly once")
	Reset()
}
