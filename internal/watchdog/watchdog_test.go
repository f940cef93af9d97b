package watchdog_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/finnstutzenstein/adcpd/internal/watchdog"
)

func TestDeadlineForSamplerate(t *testing.T) {
	require.Equal(t, 1*time.Second, watchdog.DeadlineFor(19200))
	require.Equal(t, 1*time.Second, watchdog.DeadlineFor(10))
	require.Equal(t, 2*time.Second, watchdog.DeadlineFor(5))
	require.Equal(t, 3*time.Second, watchdog.DeadlineFor(2.5))
}

func TestExpiresWithoutReset(t *testing.T) {
	var fired atomic.Bool
	w := watchdog.New(func() { fired.Store(true) })
	w.StartWithDeadline(30 * time.Millisecond)

	require.Eventually(t, fired.Load, time.Second, 5*time.Millisecond)
}

func TestResetPreventsExpiry(t *testing.T) {
	var fired atomic.Bool
	w := watchdog.New(func() { fired.Store(true) })
	w.StartWithDeadline(40 * time.Millisecond)

	stop := time.After(150 * time.Millisecond)
	ticker := time.NewTicker(15 * time.Millisecond)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-ticker.C:
			w.Reset()
		case <-stop:
			break loop
		}
	}
	require.False(t, fired.Load())
	w.Stop()
}

func TestStopDisarms(t *testing.T) {
	var fired atomic.Bool
	w := watchdog.New(func() { fired.Store(true) })
	w.StartWithDeadline(20 * time.Millisecond)
	w.Stop()
	time.Sleep(60 * time.Millisecond)
	require.False(t, fired.Load())
}
