package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestDeterministicClock_FirstReadingIsStart(t *testing.T) {
	clock := NewDeterministicClock(epoch, time.Second)
	assert.Equal(t, epoch, clock.Now())
}

func TestDeterministicClock_AdvancesByStep(t *testing.T) {
	clock := NewDeterministicClock(epoch, 250*time.Millisecond)

	clock.Now()
	assert.Equal(t, epoch.Add(250*time.Millisecond), clock.Now())
	assert.Equal(t, epoch.Add(500*time.Millisecond), clock.Now())
}

func TestDeterministicClock_Reset(t *testing.T) {
	clock := NewDeterministicClock(epoch, time.Minute)
	clock.Now()
	clock.Now()

	clock.Reset()
	assert.Equal(t, epoch, clock.Now())
}

func TestDeterministicClock_ConcurrentReadingsAreDistinct(t *testing.T) {
	clock := NewDeterministicClock(epoch, time.Nanosecond)

	const n = 100
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[time.Time]bool)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts := clock.Now()
			mu.Lock()
			seen[ts] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, seen, n)
}
