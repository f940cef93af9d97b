// Package adcstate implements the state controller: the single
// process-wide CompleteState (spec §3/§4.6), its SD-card persistence, and
// the reload validation rules of spec §7.
package adcstate

import "github.com/finnstutzenstein/adcpd/internal/measurement"

// MaxFilter is the highest valid ADC filter selector (spec §7: "filter >
// 4" is rejected).
const MaxFilter = 4

// CanonicalInternalRefVoltage10nV is the only reference voltage accepted
// when InternalReference is set (2.5 V in 10-nV units).
const CanonicalInternalRefVoltage10nV = 250_000_000

// validPGAGains enumerates the legal Gain byte values: 0-5 select a gain
// stage, 0xFF means PGA bypassed.
var validPGAGains = map[byte]bool{
	0: true, 1: true, 2: true, 3: true, 4: true, 5: true, 0xFF: true,
}

// ADCState is the ADC half of CompleteState.
type ADCState struct {
	Started           bool
	InternalReference bool
	SlowConnection    bool
	ADCReset          bool
	SamplerateFilter  byte
	Gain              byte
	ReferenceVoltage  uint32 // 10-nV units
	ReferencePins     byte
	CalibrationOffset int32 // 24-bit signed value, sign-extended
	CalibrationScale  int32
	MeasurementCount  uint8
}

// MeasurementState is one channel's persisted descriptor.
type MeasurementState struct {
	ID             uint8
	Mux            byte
	Enabled        bool
	Averaging      uint16
	FFTEnabled     bool
	FFTLength      uint16
	FFTWindowIndex uint8
}

// CompleteState is the single source of truth persisted to SD and
// broadcast to subscribers (spec §3).
type CompleteState struct {
	ADC          ADCState
	Measurements []MeasurementState
}

// FromRegistry rebuilds the Measurements half from the live registry, the
// way the state controller does on every ADCP mutation (spec §4.6).
func FromRegistry(adc ADCState, reg *measurement.Registry) CompleteState {
	cs := CompleteState{ADC: adc}
	for _, ch := range reg.EnabledOrDisabledInIDOrder() {
		m := MeasurementState{
			ID:        uint8(ch.ID),
			Mux:       ch.Mux(),
			Enabled:   ch.Enabled,
			Averaging: ch.Averaging,
		}
		if ch.FFT != nil {
			m.FFTEnabled = ch.FFT.Enabled
			m.FFTLength = uint16(ch.FFT.Length)
			m.FFTWindowIndex = uint8(ch.FFT.Window)
		}
		cs.Measurements = append(cs.Measurements, m)
	}
	cs.ADC.MeasurementCount = uint8(len(cs.Measurements))
	return cs
}
