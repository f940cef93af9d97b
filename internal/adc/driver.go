// Package adc defines the black-box ADC driver interface spec §6 treats
// as an external collaborator, plus a deterministic simulated
// implementation used by the default build (internal/adc/adchw provides a
// real ADS1262 driver behind the adchw build tag).
package adc

import "context"

// StatusReset is the bit in a sample's status byte meaning the ADC
// reported an internal reset condition (spec §4.5 step 3).
const StatusReset = 1 << 0

// Sample is one conversion result as read from the driver.
type Sample struct {
	Raw    int32 // signed 24-bit count, sign-extended to 32 bits
	Status byte
}

// Driver is the port the acquisition core consumes, per spec §6. It owns
// no policy — only register-level operations and the sample stream.
type Driver interface {
	Reset() error
	SetSamplerate(sps float64) error
	SetFilter(filter byte) error
	SetGain(gain byte) error
	BypassPGA() error
	SetInputMux(mux byte) error
	SetReference(pos, neg byte, vRef10nV uint32) error
	EnableInternalReference() error
	DisableInternalReference() error
	SetCalibrationOffset(offset int32) error
	SetCalibrationScale(scale int32) error
	SendOffsetCalibrationCommand() error
	SendScaleCalibrationCommand() error
	ReadCalibrationOffset() (int32, error)
	ReadCalibrationScale() (int32, error)

	// Start begins conversions; samples arrive on the channel returned
	// by Samples until Stop is called. Start must not block.
	Start(ctx context.Context) error
	Stop() error

	// Samples returns the channel DRDY-equivalent events are delivered
	// on. The acquisition dispatcher treats each receive as one DRDY
	// interrupt (spec §4.5).
	Samples() <-chan Sample

	// ReadSample performs a single synchronous conversion, used by the
	// one-shot and calibration paths (spec §4.8).
	ReadSample(ctx context.Context) (Sample, error)
}

// ToNanovolts converts a raw signed sample to 10-nV units per spec §6:
// (raw * vRef10nV) / 2^31.
func ToNanovolts(raw int32, vRef10nV uint32) int64 {
	return (int64(raw) * int64(vRef10nV)) >> 31
}
