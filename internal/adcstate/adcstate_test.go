package adcstate_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/finnstutzenstein/adcpd/internal/adcstate"
	"github.com/finnstutzenstein/adcpd/internal/fftmath"
)

func sampleState() adcstate.CompleteState {
	return adcstate.CompleteState{
		ADC: adcstate.ADCState{
			Started:           true,
			InternalReference: true,
			ReferenceVoltage:  adcstate.CanonicalInternalRefVoltage10nV,
			Gain:              3,
			SamplerateFilter:  2,
			CalibrationOffset: -100,
			CalibrationScale:  200,
			MeasurementCount:  1,
		},
		Measurements: []adcstate.MeasurementState{
			{ID: 0, Mux: 0xA1, Enabled: true, Averaging: 5, FFTEnabled: true, FFTLength: 128, FFTWindowIndex: uint8(fftmath.Rectangular)},
		},
	}
}

// TestStateRoundTrip is spec §8's round-trip property: serialize -> write
// -> read back -> deserialize yields the byte-identical structure.
func TestStateRoundTrip(t *testing.T) {
	cs := sampleState()
	buf, err := cs.MarshalBinary()
	require.NoError(t, err)

	var got adcstate.CompleteState
	require.NoError(t, got.UnmarshalBinary(buf))
	require.Equal(t, cs, got)
	require.NoError(t, adcstate.Validate(got, len(buf)))
}

func TestValidateRejectsLengthMismatch(t *testing.T) {
	cs := sampleState()
	err := adcstate.Validate(cs, 5)
	require.ErrorIs(t, err, adcstate.ErrLengthMismatch)
}

func TestValidateRejectsBadFilter(t *testing.T) {
	cs := sampleState()
	cs.ADC.SamplerateFilter = 9
	buf, _ := cs.MarshalBinary()
	require.ErrorIs(t, adcstate.Validate(cs, len(buf)), adcstate.ErrBadFilter)
}

func TestValidateRejectsNonCanonicalVRef(t *testing.T) {
	cs := sampleState()
	cs.ADC.ReferenceVoltage = 123
	buf, _ := cs.MarshalBinary()
	require.ErrorIs(t, adcstate.Validate(cs, len(buf)), adcstate.ErrNonCanonicalVRef)
}

func TestValidateRejectsBadFFTLength(t *testing.T) {
	cs := sampleState()
	cs.Measurements[0].FFTLength = 100 // not a power of two
	buf, _ := cs.MarshalBinary()
	require.ErrorIs(t, adcstate.Validate(cs, len(buf)), adcstate.ErrBadFFTLength)
}

func TestStoreLoadFallsBackToDefaultOnCorruption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	s := adcstate.NewStore(path, log.New(os.Stderr))
	cs, ok := s.Load()
	require.False(t, ok)
	require.Equal(t, adcstate.Default(), cs)
}

func TestStoreSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state")
	s := adcstate.NewStore(path, log.New(os.Stderr))

	cs := sampleState()
	s.Save(cs)

	got, ok := s.Load()
	require.True(t, ok)
	require.Equal(t, cs, got)
}
