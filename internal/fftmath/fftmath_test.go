package fftmath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestBitReversedInsertionCorrectness is spec §8's property for every
// enumerated L and every fill step s.
func TestBitReversedInsertionCorrectness(t *testing.T) {
	for bits := MinBits; bits <= MaxBits; bits++ {
		l := 1 << uint(bits)
		tbl := bitrevTable(bits - 1)
		for s := 0; s < l; s++ {
			want := tbl[s/2]*2 + (s % 2)
			got := InsertionIndex(bits, s)
			require.Equal(t, want, got, "bits=%d s=%d", bits, s)
		}
	}
}

// TestImpulseRoundTrip: an impulse at index 0, rectangular window, yields
// (1,0) in every complex bin within tolerance, per spec §8.
func TestImpulseRoundTrip(t *testing.T) {
	const bits = 7 // L=128
	const l = 1 << bits
	inst, err := NewInstance(0, bits, Rectangular)
	require.NoError(t, err)

	var frame FrameReady
	var ok bool
	for s := 0; s < l; s++ {
		v := int32(0)
		if s == 0 {
			v = 1_000_000_000 // 1V in nanovolts -> normalizes to 1.0
		}
		frame, ok = inst.NewValue(v, Ticks(s))
	}
	require.True(t, ok)
	Transform(frame, bits)

	const tol = 1e-3
	for i := 0; i < l/2; i++ {
		require.InDelta(t, 1.0, float64(frame.Re[i]), tol, "bin %d re", i)
	}
	// bin 0's imaginary slot carries Nyquist per the DC/Nyquist packing
	// convention; for an impulse it is also ~1.
	require.InDelta(t, 1.0, float64(frame.Im[0]), tol)
}

// TestCosinePeak: a real cosine at bin k produces a magnitude peak near
// L/2 at that bin and near-zero elsewhere.
func TestCosinePeak(t *testing.T) {
	const bits = 8 // L=256
	const l = 1 << bits
	const k = 10
	inst, err := NewInstance(0, bits, Rectangular)
	require.NoError(t, err)

	var frame FrameReady
	var ok bool
	for s := 0; s < l; s++ {
		x := math.Cos(2 * math.Pi * float64(k) * float64(s) / float64(l))
		v := int32(x * 1e9)
		frame, ok = inst.NewValue(v, Ticks(s))
	}
	require.True(t, ok)
	Transform(frame, bits)

	peakMag := math.Hypot(float64(frame.Re[k]), float64(frame.Im[k]))
	require.InDelta(t, float64(l)/2, peakMag, float64(l)*0.05)

	for i := 1; i < l/2; i++ {
		if i == k {
			continue
		}
		mag := math.Hypot(float64(frame.Re[i]), float64(frame.Im[i]))
		require.Less(t, mag, float64(l)*0.1, "bin %d should be near zero, got %f", i, mag)
	}
}

// TestOverlapCoverage: with a non-rectangular window, consecutive frames
// share exactly L/2 original samples by construction of the retention
// buffer feed in NewValue.
func TestOverlapCoverage(t *testing.T) {
	const bits = 6 // L=64
	const l = 1 << bits
	inst, err := NewInstance(0, bits, Hann)
	require.NoError(t, err)

	retained := make([]float32, l/2)
	for s := 0; s < l; s++ {
		v := int32(s * 1_000_000)
		inst.NewValue(v, Ticks(s))
		if s >= l/2 {
			retained[s-l/2] = float32(v) * 1e-9 // unwindowed values fed in 2nd half
		}
	}
	// the instance's retention buffer now holds the unwindowed 2nd half
	// of this frame, ready to seed the first half of the next frame.
	require.Equal(t, l/2, len(inst.retention))
	require.Equal(t, retained, inst.retention)

	// the next frame completes after only L/2 new samples.
	inst.ClearDirty()
	var ok bool
	for s := 0; s < l/2; s++ {
		_, ok = inst.NewValue(int32((l+s)*1_000_000), Ticks(l+s))
		if s < l/2-1 {
			require.False(t, ok, "frame completed early at s=%d", s)
		}
	}
	require.True(t, ok)
}

func TestBitReversalIsInvolution(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bits := rapid.IntRange(1, 13).Draw(t, "bits")
		x := rapid.IntRange(0, (1<<uint(bits))-1).Draw(t, "x")
		once := reverseBits(x, bits)
		twice := reverseBits(once, bits)
		require.Equal(t, x, twice)
	})
}

func TestWindowValueBounds(t *testing.T) {
	for w := Rectangular; w < numWindows; w++ {
		for bits := MinBits; bits <= MaxBits; bits++ {
			l := 1 << uint(bits)
			for s := 0; s < l; s++ {
				v := windowValue(w, bits, s)
				require.GreaterOrEqual(t, v, float32(0))
				require.LessOrEqual(t, v, float32(1.0001))
			}
		}
	}
}
