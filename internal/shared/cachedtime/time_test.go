package cachedtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestNow_NotRunning returns time.Now() when the refresher is not running.
func TestNow_NotRunning(t *testing.T) {
	now1 := Now()
	time.Sleep(10 * time.Millisecond)
	now2 := Now()

	require.True(t, now2.After(now1), "time should advance when refresher is off")
}

// TestUnixNano_NotRunning returns real time when the refresher is not running.
func TestUnixNano_NotRunning(t *testing.T) {
	nano1 := UnixNano()
	time.Sleep(10 * time.Millisecond)
	nano2 := UnixNano()

	require.Greater(t, nano2, nano1, "UnixNano should advance when refresher is off")
}

// TestSince_CalculatesDuration verifies Since calculates duration correctly.
func TestSince_CalculatesDuration(t *testing.T) {
	start := Now()
	time.Sleep(50 * time.Millisecond)
	duration := Since(start)

	require.GreaterOrEqual(t, duration, 40*time.Millisecond)
	require.Less(t, duration, 500*time.Millisecond)
}

// TestRun_ServesCoarseTime verifies that Run starts the refresher and
// timestamps stay non-decreasing within ticker resolution.
func TestRun_ServesCoarseTime(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	Run(ctx)
	time.Sleep(20 * time.Millisecond)

	nano1 := UnixNano()
	time.Sleep(5 * time.Millisecond)
	nano2 := UnixNano()
	require.GreaterOrEqual(t, nano2, nano1, "UnixNano should be non-decreasing")

	cancel()
	time.Sleep(50 * time.Millisecond)

	// After cancel, readers fall back to real time.
	nano3 := UnixNano()
	time.Sleep(10 * time.Millisecond)
	nano4 := UnixNano()
	require.Greater(t, nano4, nano3, "time should advance after context cancel")
}

// TestRun_Idempotent verifies a second Run while alive is a no-op.
func TestRun_Idempotent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	Run(ctx)
	Run(ctx)

	time.Sleep(20 * time.Millisecond)
	require.Greater(t, UnixNano(), int64(0))

	cancel()
	time.Sleep(50 * time.Millisecond)
}
