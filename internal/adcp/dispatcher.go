package adcp

import "encoding/binary"

// Dispatcher parses and executes ADCP command payloads against a set of
// Handlers, producing response payloads. Framing (the 3-byte ADCP header,
// and the WS header when applicable) is the caller's concern — see
// internal/wsframe.
type Dispatcher struct {
	h Handlers

	// resetLatched, when set, reports whether an ADC-reset condition is
	// currently latched (spec §7 family 3 / §8 scenario 6). While latched,
	// every command is rejected with ADC_RESET except ADC.RESET and
	// ADC.GET_STATUS, which must still reach the handler.
	resetLatched func() bool
}

// New returns a Dispatcher bound to h.
func New(h Handlers) *Dispatcher {
	return &Dispatcher{h: h}
}

// SetResetLatch wires the ADC-reset latch check. fn should report true
// from the moment a reset condition is observed until ADC.RESET has been
// handled.
func (d *Dispatcher) SetResetLatch(fn func() bool) {
	d.resetLatched = fn
}

// Dispatch executes one command payload for the given connection id and
// returns the response payload (RESPONSE_* byte followed by
// command-specific bytes). It never returns an error: every failure mode
// is expressed as a response code, per spec §7 family 1.
func (d *Dispatcher) Dispatch(connID int, payload []byte) []byte {
	if len(payload) < 2 {
		return []byte{byte(ResponseMessageTooShort)}
	}
	prefix := Prefix(payload[0])
	cmd := payload[1]
	args := payload[2:]

	if d.resetLatched != nil && d.resetLatched() {
		exempt := prefix == PrefixADC && (cmd == ADCReset || cmd == ADCGetStatus)
		if !exempt {
			return fail(ResponseADCReset)
		}
	}

	switch prefix {
	case PrefixConnection:
		return d.connection(connID, cmd, args)
	case PrefixDebugging:
		return d.debugging(cmd, args)
	case PrefixMeasurement:
		return d.measurement(cmd, args)
	case PrefixADC:
		return d.adc(cmd, args)
	case PrefixFFT:
		return d.fft(cmd, args)
	case PrefixCalibration:
		return d.calibration(cmd, args)
	default:
		return []byte{byte(ResponseInvalidPrefix)}
	}
}

// needArgs returns a TOO_FEW_ARGUMENTS response (echoing the expected
// count) if args is shorter than n, or ok=false otherwise.
func needArgs(args []byte, n int) ([]byte, bool) {
	if len(args) < n {
		return []byte{byte(ResponseTooFewArguments), byte(n)}, true
	}
	return nil, false
}

func ok(rest ...byte) []byte {
	return append([]byte{byte(ResponseOK)}, rest...)
}

func fail(code ResponseCode, rest ...byte) []byte {
	return append([]byte{byte(code)}, rest...)
}

func (d *Dispatcher) connection(connID int, cmd byte, args []byte) []byte {
	switch cmd {
	case ConnectionSetType:
		if resp, short := needArgs(args, 1); short {
			return resp
		}
		code := d.h.Connection.SetSendType(connID, args[0])
		return fail(code)
	default:
		return fail(ResponseInvalidCommand, cmd)
	}
}

func (d *Dispatcher) debugging(cmd byte, args []byte) []byte {
	switch cmd {
	case DebuggingLWIPStats:
		return append(ok(), d.h.Debug.LWIPStats()...)
	case DebuggingTestScheduler:
		return fail(d.h.Debug.TestScheduler())
	case DebuggingTestMemoryBW:
		return fail(d.h.Debug.TestMemoryBW())
	case DebuggingOSStats:
		return append(ok(), d.h.Debug.OSStats()...)
	case DebuggingConnectionStats:
		return append(ok(), d.h.Debug.ConnectionStats()...)
	default:
		return fail(ResponseInvalidCommand, cmd)
	}
}

func (d *Dispatcher) measurement(cmd byte, args []byte) []byte {
	switch cmd {
	case MeasurementCreate:
		if resp, short := needArgs(args, 5); short {
			return resp
		}
		enabled := args[2] != 0
		averaging := binary.LittleEndian.Uint16(args[3:5])
		id, code := d.h.Measurement.Create(args[0], args[1], enabled, averaging)
		if code != ResponseOK {
			return fail(code)
		}
		return ok(byte(id))
	case MeasurementDelete:
		if resp, short := needArgs(args, 1); short {
			return resp
		}
		return fail(d.h.Measurement.Delete(int(args[0])))
	case MeasurementSetInputs:
		if resp, short := needArgs(args, 3); short {
			return resp
		}
		return fail(d.h.Measurement.SetInputs(int(args[0]), args[1], args[2]))
	case MeasurementSetEnabled:
		if resp, short := needArgs(args, 2); short {
			return resp
		}
		return fail(d.h.Measurement.SetEnabled(int(args[0]), args[1] != 0))
	case MeasurementSetAveraging:
		if resp, short := needArgs(args, 3); short {
			return resp
		}
		averaging := binary.LittleEndian.Uint16(args[1:3])
		return fail(d.h.Measurement.SetAveraging(int(args[0]), averaging))
	case MeasurementStart:
		return fail(d.h.Measurement.Start())
	case MeasurementStop:
		return fail(d.h.Measurement.Stop())
	case MeasurementOneshot:
		if resp, short := needArgs(args, 1); short {
			return resp
		}
		value, code := d.h.Measurement.Oneshot(int(args[0]))
		if code != ResponseOK {
			return fail(code)
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(value))
		return append(ok(), buf...)
	default:
		return fail(ResponseInvalidCommand, cmd)
	}
}

func (d *Dispatcher) adc(cmd byte, args []byte) []byte {
	switch cmd {
	case ADCReset:
		return fail(d.h.ADC.Reset())
	case ADCSetSamplerate:
		if resp, short := needArgs(args, 1); short {
			return resp
		}
		return fail(d.h.ADC.SetSamplerate(args[0]))
	case ADCSetFilter:
		if resp, short := needArgs(args, 1); short {
			return resp
		}
		return fail(d.h.ADC.SetFilter(args[0]))
	case ADCPGASetGain:
		if resp, short := needArgs(args, 1); short {
			return resp
		}
		return fail(d.h.ADC.SetGain(args[0]))
	case ADCPGABypass:
		return fail(d.h.ADC.BypassPGA())
	case ADCRefSetInternal:
		return fail(d.h.ADC.SetReferenceInternal())
	case ADCRefSetExternal:
		if resp, short := needArgs(args, 5); short {
			return resp
		}
		vref := binary.LittleEndian.Uint32(args[1:5])
		return fail(d.h.ADC.SetReferenceExternal(args[0], vref))
	case ADCGetStatus:
		status, code := d.h.ADC.GetStatus()
		if code != ResponseOK {
			return fail(code)
		}
		return ok(status)
	default:
		return fail(ResponseInvalidCommand, cmd)
	}
}

func (d *Dispatcher) fft(cmd byte, args []byte) []byte {
	switch cmd {
	case FFTSetEnabled:
		if resp, short := needArgs(args, 2); short {
			return resp
		}
		return fail(d.h.FFT.SetEnabled(int(args[0]), args[1] != 0))
	case FFTSetLength:
		if resp, short := needArgs(args, 2); short {
			return resp
		}
		return fail(d.h.FFT.SetLength(int(args[0]), args[1]))
	case FFTSetWindow:
		if resp, short := needArgs(args, 2); short {
			return resp
		}
		return fail(d.h.FFT.SetWindow(int(args[0]), args[1]))
	default:
		return fail(ResponseInvalidCommand, cmd)
	}
}

func (d *Dispatcher) calibration(cmd byte, args []byte) []byte {
	switch cmd {
	case CalibrationSetOffset:
		if resp, short := needArgs(args, 4); short {
			return resp
		}
		v := int32(binary.LittleEndian.Uint32(args[0:4]))
		return fail(d.h.Calibration.SetOffset(v))
	case CalibrationSetScale:
		if resp, short := needArgs(args, 4); short {
			return resp
		}
		v := int32(binary.LittleEndian.Uint32(args[0:4]))
		return fail(d.h.Calibration.SetScale(v))
	case CalibrationDoOffset:
		value, code := d.h.Calibration.DoOffset()
		if code != ResponseOK {
			return fail(code)
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(value))
		return append(ok(), buf...)
	case CalibrationDoScale:
		value, code := d.h.Calibration.DoScale()
		if code != ResponseOK {
			return fail(code)
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(value))
		return append(ok(), buf...)
	default:
		return fail(ResponseInvalidCommand, cmd)
	}
}
