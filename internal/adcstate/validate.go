package adcstate

import (
	"errors"

	"github.com/finnstutzenstein/adcpd/internal/fftmath"
	"github.com/finnstutzenstein/adcpd/internal/measurement"
)

// Validation errors, one per rejection rule in spec §7.
var (
	ErrLengthMismatch      = errors.New("adcstate: length does not match adc_state+measurements size")
	ErrBadFilter           = errors.New("adcstate: filter out of range")
	ErrBadGain             = errors.New("adcstate: pga gain not recognized")
	ErrNonCanonicalVRef    = errors.New("adcstate: internal reference set with non-canonical voltage")
	ErrBadCalibrationRange = errors.New("adcstate: calibration value outside 24-bit signed range")
	ErrTooManyMeasurements = errors.New("adcstate: measurement count exceeds MaxMeasurements")
	ErrBadMeasurementID    = errors.New("adcstate: measurement id out of range")
	ErrBadBoolean          = errors.New("adcstate: boolean flag out of range")
	ErrBadFFTLength        = errors.New("adcstate: fft length not a power of two in range")
	ErrBadFFTWindow        = errors.New("adcstate: fft window index not recognized")
)

const (
	calibrationMin = -(1 << 23)
	calibrationMax = (1 << 23) - 1
)

// Validate checks the spec §7 reload rules. rawLen is the byte length of
// the buffer the state was decoded from, needed for the length-mismatch
// rule (decoding already discards that information). Boolean flags are
// not range-checked: UnmarshalBinary maps any nonzero byte to true, so a
// flag byte above 1 is accepted and ErrBadBoolean is never returned.
func Validate(cs CompleteState, rawLen int) error {
	if rawLen != ExpectedSize(len(cs.Measurements)) {
		return ErrLengthMismatch
	}
	if cs.ADC.SamplerateFilter > MaxFilter {
		return ErrBadFilter
	}
	if !validPGAGains[cs.ADC.Gain] {
		return ErrBadGain
	}
	if cs.ADC.InternalReference && cs.ADC.ReferenceVoltage != CanonicalInternalRefVoltage10nV {
		return ErrNonCanonicalVRef
	}
	if cs.ADC.CalibrationOffset < calibrationMin || cs.ADC.CalibrationOffset > calibrationMax {
		return ErrBadCalibrationRange
	}
	if cs.ADC.CalibrationScale < calibrationMin || cs.ADC.CalibrationScale > calibrationMax {
		return ErrBadCalibrationRange
	}
	if int(cs.ADC.MeasurementCount) > measurement.MaxMeasurements || len(cs.Measurements) > measurement.MaxMeasurements {
		return ErrTooManyMeasurements
	}
	for _, m := range cs.Measurements {
		if int(m.ID) >= measurement.MaxMeasurements {
			return ErrBadMeasurementID
		}
		if m.FFTEnabled {
			if !isPowerOfTwoInRange(int(m.FFTLength)) {
				return ErrBadFFTLength
			}
			if !fftmath.Window(m.FFTWindowIndex).Valid() {
				return ErrBadFFTWindow
			}
		}
	}
	return nil
}

func isPowerOfTwoInRange(l int) bool {
	if l < fftmath.MinLength || l > fftmath.MaxLength {
		return false
	}
	return l&(l-1) == 0
}
