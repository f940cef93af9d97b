package fftmath

import "math"

const (
	// MinBits/MaxBits bound the enumerated transform lengths L=2^k the
	// engine accepts, per spec §4.3/§7 (arbitrary-length FFTs are a
	// Non-goal).
	MinBits   = 3
	MaxBits   = 14
	MinLength = 1 << MinBits
	MaxLength = 1 << MaxBits

	// TwiddleFactorTableSize bounds the shared twiddle lookup; it covers
	// the largest transform's full length L, since realFFT's unpacking
	// step reads L-th roots of unity.
	TwiddleFactorTableSize = MaxLength
)

var (
	twiddleRe [TwiddleFactorTableSize]float32
	twiddleIm [TwiddleFactorTableSize]float32
)

func init() {
	for i := 0; i < TwiddleFactorTableSize; i++ {
		theta := -2 * math.Pi * float64(i) / float64(TwiddleFactorTableSize)
		twiddleRe[i] = float32(math.Cos(theta))
		twiddleIm[i] = float32(math.Sin(theta))
	}
}

// twiddle returns e^{-2*pi*i*n/N} for the Nth root of unity, reading the
// shared max-resolution table at the corresponding stride.
func twiddle(n, n2 int) (re, im float32) {
	idx := n * (TwiddleFactorTableSize / n2)
	return twiddleRe[idx], twiddleIm[idx]
}

// complexFFT runs an iterative in-place radix-2 Cooley-Tukey transform
// over data, which must already be in bit-reversed order (InsertionIndex
// does this at fill time, so no separate permutation pass runs here).
// bits = log2(len(data)).
func complexFFT(re, im []float32, bits int) {
	n := len(re)
	for size := 2; size <= n; size <<= 1 {
		half := size / 2
		for start := 0; start < n; start += size {
			for j := 0; j < half; j++ {
				wr, wi := twiddle(j, size)
				ar, ai := re[start+j], im[start+j]
				br, bi := re[start+j+half], im[start+j+half]
				tr := br*wr - bi*wi
				ti := br*wi + bi*wr
				re[start+j] = ar + tr
				im[start+j] = ai + ti
				re[start+j+half] = ar - tr
				im[start+j+half] = ai - ti
			}
		}
	}
}

// realFFT computes the FFT of L real samples packed two-per-complex-slot
// in (re, im), each of length L/2, per spec §4.3's real-to-complex
// unpacking. On return, bin 0 holds DC in re[0] and the Nyquist bin in
// im[0]; bins [1, L/4) and their conjugate-mirror pair [L/4+1, L/2) are
// the true complex spectrum; bin L/4 is left as the raw transform value
// (self-conjugate for a real-FFT when even).
func realFFT(re, im []float32, k int) {
	n := len(re) // L/2
	complexFFT(re, im, k-1)

	n2 := n * 2 // L
	for i := 1; i < n/2; i++ {
		j := n - i

		h1r := (re[i] + re[j]) / 2
		h1i := (im[i] - im[j]) / 2
		h2r := (im[i] + im[j]) / 2
		h2i := (re[j] - re[i]) / 2

		wr, wi := twiddle(i, n2)
		// e^{-2*pi*j*n/L} * H2
		mr := wr*h2r - wi*h2i
		mi := wr*h2i + wi*h2r

		re[i] = h1r + mr
		im[i] = h1i + mi
		re[j] = h1r - mr
		im[j] = -(h1i - mi)
	}

	// bin 0: pack DC (real part) and Nyquist (imag part) per spec §4.3.
	oldRe := re[0]
	re[0] = oldRe + im[0]
	im[0] = oldRe - im[0]
}
