package adcp

// ConnectionHandler implements the CONNECTION prefix: setting the calling
// connection's subscription bitmask (spec §6's send_type).
type ConnectionHandler interface {
	SetSendType(connID int, mask byte) ResponseCode
}

// DebugHandler implements the DEBUGGING prefix's stats dumps (spec §12).
// TestScheduler and TestMemoryBW are STM32-specific instrumentation hooks
// with no host-side meaning; implementations should return
// ResponseNotEnabled for them, matching the original firmware.
type DebugHandler interface {
	LWIPStats() []byte
	TestScheduler() ResponseCode
	TestMemoryBW() ResponseCode
	OSStats() []byte
	ConnectionStats() []byte
}

// MeasurementHandler implements channel lifecycle and acquisition control.
type MeasurementHandler interface {
	Create(pos, neg byte, enabled bool, averaging uint16) (id int, code ResponseCode)
	Delete(id int) ResponseCode
	SetInputs(id int, pos, neg byte) ResponseCode
	SetEnabled(id int, enabled bool) ResponseCode
	SetAveraging(id int, averaging uint16) ResponseCode
	Start() ResponseCode
	Stop() ResponseCode
	Oneshot(id int) (value int32, code ResponseCode)
}

// ADCHandler implements the ADC prefix: register-level control of the
// black-box ADC driver (spec §6).
type ADCHandler interface {
	Reset() ResponseCode
	SetSamplerate(sr byte) ResponseCode
	SetFilter(f byte) ResponseCode
	SetGain(g byte) ResponseCode
	BypassPGA() ResponseCode
	SetReferenceInternal() ResponseCode
	SetReferenceExternal(refPins byte, vRef10nV uint32) ResponseCode
	GetStatus() (status byte, code ResponseCode)
}

// FFTHandler implements the FFT prefix: per-channel FFT configuration.
type FFTHandler interface {
	SetEnabled(channel int, enabled bool) ResponseCode
	SetLength(channel int, bits uint8) ResponseCode
	SetWindow(channel int, window uint8) ResponseCode
}

// CalibrationHandler implements the CALIBRATION prefix.
type CalibrationHandler interface {
	SetOffset(offset int32) ResponseCode
	SetScale(scale int32) ResponseCode
	DoOffset() (value int32, code ResponseCode)
	DoScale() (value int32, code ResponseCode)
}

// Handlers bundles every prefix's handler. A Dispatcher is constructed
// with one of these, wired by the daemon to the acquisition/state/fft
// core.
type Handlers struct {
	Connection  ConnectionHandler
	Debug       DebugHandler
	Measurement MeasurementHandler
	ADC         ADCHandler
	FFT         FFTHandler
	Calibration CalibrationHandler
}
