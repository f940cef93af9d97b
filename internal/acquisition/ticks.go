package acquisition

import (
	"time"

	"github.com/finnstutzenstein/adcpd/internal/fftmath"
)

var processStart = time.Now()

// CurrentTick samples the process-wide 10-microsecond tick counter, per
// spec §4.5 step 1. The original firmware free-runs a hardware timer at
// this resolution; deriving it from the monotonic clock gives the same
// units without a dedicated ticking goroutine.
func CurrentTick() fftmath.Ticks {
	return fftmath.Ticks(time.Since(processStart) / (10 * time.Microsecond))
}
