package sampler

import (
	"context"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaminmoo/blesync/internal/reading"
)

const testInterval = 20 * time.Millisecond

func TestEmitsReadingsInRange(t *testing.T) {
	s := New(testInterval)

	var mu sync.Mutex
	var got []reading.Reading
	require.NoError(t, s.Start(context.Background(), func(r reading.Reading) {
		mu.Lock()
		got = append(got, r)
		mu.Unlock()
	}))
	defer s.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= 3
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, r := range got {
		v, err := strconv.ParseFloat(r.Value, 64)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
		assert.Regexp(t, `^\d+\.\d{2}$`, r.Value)
		assert.False(t, r.Timestamp.IsZero())
	}
}

func TestUsesSourceAndClock(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s := New(testInterval, WithSource(func() float64 { return 0.4567 }), WithClock(func() time.Time { return ts }))

	ch := make(chan reading.Reading, 1)
	require.NoError(t, s.Start(context.Background(), func(r reading.Reading) {
		select {
		case ch <- r:
		default:
		}
	}))
	defer s.Stop()

	select {
	case r := <-ch:
		assert.Equal(t, "45.67", r.Value)
		assert.Equal(t, ts, r.Timestamp)
	case <-time.After(2 * time.Second):
		t.Fatal("no reading")
	}
}

func TestSourceNearOneStaysBelowHundred(t *testing.T) {
	for _, v := range []float64{0.99995, 0.999999, math.Nextafter(1, 0)} {
		s := New(testInterval, WithSource(func() float64 { return v }))

		ch := make(chan reading.Reading, 1)
		require.NoError(t, s.Start(context.Background(), func(r reading.Reading) {
			select {
			case ch <- r:
			default:
			}
		}))

		select {
		case r := <-ch:
			assert.Equal(t, "99.99", r.Value, "source %v", v)
		case <-time.After(2 * time.Second):
			t.Fatal("no reading")
		}
		s.Stop()
	}
}

func TestNoReadingsAfterStop(t *testing.T) {
	s := New(testInterval)

	var count atomic.Int64
	require.NoError(t, s.Start(context.Background(), func(reading.Reading) { count.Add(1) }))

	require.Eventually(t, func() bool { return count.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()
	assert.False(t, s.Running())

	after := count.Load()
	time.Sleep(5 * testInterval)
	assert.Equal(t, after, count.Load())
}

func TestStopIsIdempotent(t *testing.T) {
	s := New(testInterval)
	s.Stop()

	require.NoError(t, s.Start(context.Background(), func(reading.Reading) {}))
	s.Stop()
	s.Stop()
	assert.False(t, s.Running())
}

func TestStartTwiceRejected(t *testing.T) {
	s := New(testInterval)
	require.NoError(t, s.Start(context.Background(), func(reading.Reading) {}))
	defer s.Stop()

	assert.ErrorIs(t, s.Start(context.Background(), func(reading.Reading) {}), ErrRunning)
}

func TestRestartAfterStop(t *testing.T) {
	s := New(testInterval)
	require.NoError(t, s.Start(context.Background(), func(reading.Reading) {}))
	s.Stop()

	var count atomic.Int64
	require.NoError(t, s.Start(context.Background(), func(reading.Reading) { count.Add(1) }))
	defer s.Stop()

	assert.Eventually(t, func() bool { return count.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestParentCancelEndsLoop(t *testing.T) {
	s := New(testInterval)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx, func(reading.Reading) {}))

	cancel()
	assert.Eventually(t, func() bool { return !s.Running() }, 2*time.Second, 5*time.Millisecond)
}

func TestDefaultInterval(t *testing.T) {
	assert.Equal(t, DefaultInterval, New(0).Interval())
	assert.Equal(t, testInterval, New(testInterval).Interval())
}
