package adcstate

import (
	"encoding/binary"
	"fmt"
)

// adcStateSize and measurementStateSize are the fixed little-endian
// packed-struct sizes persisted to SD, per spec §6: "CompleteState is
// written verbatim as little-endian packed structs to 0:/state."
const (
	adcStateSize         = 1 + 1 + 1 + 1 + 1 + 1 + 4 + 1 + 4 + 4 + 1 // 20 bytes
	measurementStateSize = 1 + 1 + 1 + 2 + 1 + 2 + 1                // 9 bytes
)

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// MarshalBinary renders CompleteState as the exact byte layout persisted
// to 0:/state and broadcast on the STATUS stream.
func (cs CompleteState) MarshalBinary() ([]byte, error) {
	buf := make([]byte, adcStateSize+len(cs.Measurements)*measurementStateSize)
	a := cs.ADC
	buf[0] = boolByte(a.Started)
	buf[1] = boolByte(a.InternalReference)
	buf[2] = boolByte(a.SlowConnection)
	buf[3] = boolByte(a.ADCReset)
	buf[4] = a.SamplerateFilter
	buf[5] = a.Gain
	binary.LittleEndian.PutUint32(buf[6:10], a.ReferenceVoltage)
	buf[10] = a.ReferencePins
	binary.LittleEndian.PutUint32(buf[11:15], uint32(a.CalibrationOffset))
	binary.LittleEndian.PutUint32(buf[15:19], uint32(a.CalibrationScale))
	buf[19] = a.MeasurementCount

	off := adcStateSize
	for _, m := range cs.Measurements {
		buf[off+0] = m.ID
		buf[off+1] = m.Mux
		buf[off+2] = boolByte(m.Enabled)
		binary.LittleEndian.PutUint16(buf[off+3:off+5], m.Averaging)
		buf[off+5] = boolByte(m.FFTEnabled)
		binary.LittleEndian.PutUint16(buf[off+6:off+8], m.FFTLength)
		buf[off+8] = m.FFTWindowIndex
		off += measurementStateSize
	}
	return buf, nil
}

// UnmarshalBinary parses the persisted byte layout. It does not itself
// apply the §7 validation rules — call Validate on the result before
// trusting it (on-boot reload always does both, in order).
func (cs *CompleteState) UnmarshalBinary(buf []byte) error {
	if len(buf) < adcStateSize {
		return fmt.Errorf("adcstate: buffer too short for ADC half: %d bytes", len(buf))
	}
	a := ADCState{
		Started:           buf[0] != 0,
		InternalReference: buf[1] != 0,
		SlowConnection:    buf[2] != 0,
		ADCReset:          buf[3] != 0,
		SamplerateFilter:  buf[4],
		Gain:              buf[5],
		ReferenceVoltage:  binary.LittleEndian.Uint32(buf[6:10]),
		ReferencePins:     buf[10],
		CalibrationOffset: int32(binary.LittleEndian.Uint32(buf[11:15])),
		CalibrationScale:  int32(binary.LittleEndian.Uint32(buf[15:19])),
		MeasurementCount:  buf[19],
	}

	rest := buf[adcStateSize:]
	if len(rest)%measurementStateSize != 0 {
		return fmt.Errorf("adcstate: trailing measurement bytes not a multiple of %d", measurementStateSize)
	}
	count := len(rest) / measurementStateSize
	ms := make([]MeasurementState, count)
	for i := 0; i < count; i++ {
		off := i * measurementStateSize
		ms[i] = MeasurementState{
			ID:             rest[off+0],
			Mux:            rest[off+1],
			Enabled:        rest[off+2] != 0,
			Averaging:      binary.LittleEndian.Uint16(rest[off+3 : off+5]),
			FFTEnabled:     rest[off+5] != 0,
			FFTLength:      binary.LittleEndian.Uint16(rest[off+6 : off+8]),
			FFTWindowIndex: rest[off+8],
		}
	}
	cs.ADC = a
	cs.Measurements = ms
	return nil
}

// ExpectedSize returns sizeof(adc_state) + count*sizeof(measurement_state)
// — the length check spec §7 requires before anything else.
func ExpectedSize(count int) int {
	return adcStateSize + count*measurementStateSize
}
