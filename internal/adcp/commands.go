// Package adcp implements the ADCP binary command dispatcher: request
// validation and response framing for the prefix/command structure in
// spec §6, grounded on original_source/mikcrocontroller/Src/network/adcp.c.
package adcp

// Prefix groups related commands. Values are this implementation's own
// choice (the original header was not present in the retrieval pack);
// MeasurementCreate is pinned to 0x02 to match the spec's own worked
// example in §8 scenario 2.
type Prefix byte

const (
	PrefixConnection  Prefix = 0x10
	PrefixDebugging   Prefix = 0x20
	PrefixMeasurement Prefix = 0x30
	PrefixADC         Prefix = 0x40
	PrefixFFT         Prefix = 0x50
	PrefixCalibration Prefix = 0x60
)

// Connection commands.
const (
	ConnectionSetType byte = 0x00
)

// Debugging commands (spec §12 supplement from adcp.c).
const (
	DebuggingLWIPStats       byte = 0x00
	DebuggingTestScheduler   byte = 0x01
	DebuggingTestMemoryBW    byte = 0x02
	DebuggingOSStats         byte = 0x03
	DebuggingConnectionStats byte = 0x04
)

// Measurement commands.
const (
	MeasurementDelete      byte = 0x00
	MeasurementSetInputs   byte = 0x01
	MeasurementCreate      byte = 0x02
	MeasurementSetEnabled  byte = 0x03
	MeasurementSetAveraging byte = 0x04
	MeasurementStart       byte = 0x05
	MeasurementStop        byte = 0x06
	MeasurementOneshot     byte = 0x07
)

// ADC commands.
const (
	ADCReset            byte = 0x00
	ADCSetSamplerate    byte = 0x01
	ADCSetFilter        byte = 0x02
	ADCPGASetGain       byte = 0x03
	ADCPGABypass        byte = 0x04
	ADCRefSetInternal   byte = 0x05
	ADCRefSetExternal   byte = 0x06
	ADCGetStatus        byte = 0x07
)

// FFT commands.
const (
	FFTSetEnabled byte = 0x00
	FFTSetLength  byte = 0x01
	FFTSetWindow  byte = 0x02
)

// Calibration commands.
const (
	CalibrationSetOffset byte = 0x00
	CalibrationSetScale  byte = 0x01
	CalibrationDoOffset  byte = 0x02
	CalibrationDoScale   byte = 0x03
)

// ResponseCode is the one-byte RESPONSE_* code starting every reply.
type ResponseCode byte

const (
	ResponseOK ResponseCode = iota
	ResponseMessageTooShort
	ResponseInvalidPrefix
	ResponseInvalidCommand
	ResponseTooFewArguments
	ResponseWrongArgument
	ResponseWrongReferencePins
	ResponseNoMeasurements
	ResponseNoEnabledMeasurement
	ResponseNoSuchMeasurement
	ResponseTooMuchMeasurements
	ResponseMeasurementActive
	ResponseADCReset
	ResponseFFTInvalidLength
	ResponseFFTInvalidWindow
	ResponseFFTNoMemory
	ResponseCalibrationTimeout
	ResponseNoMemory
	ResponseNotEnabled
)

func (r ResponseCode) String() string {
	names := [...]string{
		"OK", "MESSAGE_TOO_SHORT", "INVALID_PREFIX", "INVALID_COMMAND",
		"TOO_FEW_ARGUMENTS", "WRONG_ARGUMENT", "WRONG_REFERENCE_PINS",
		"NO_MEASUREMENTS", "NO_ENABLED_MEASUREMENT", "NO_SUCH_MEASUREMENT",
		"TOO_MUCH_MEASUREMENTS", "MEASUREMENT_ACTIVE", "ADC_RESET",
		"FFT_INVALID_LENGTH", "FFT_INVALID_WINDOW", "FFT_NO_MEMORY",
		"CALIBRATION_TIMEOUT", "NO_MEMORY", "NOT_ENABLED",
	}
	if int(r) < len(names) {
		return names[r]
	}
	return "UNKNOWN"
}
