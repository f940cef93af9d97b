package acquisition

import (
	"context"

	"github.com/finnstutzenstein/adcpd/internal/adc"
	"github.com/finnstutzenstein/adcpd/internal/adcp"
	"github.com/finnstutzenstein/adcpd/internal/measurement"
)

// MeasurementHandlers adapts a Dispatcher and its measurement.Registry
// onto adcp.MeasurementHandler, translating registry/dispatcher errors
// into ADCP response codes (spec §4.6/§4.8).
type MeasurementHandlers struct {
	Dispatcher *Dispatcher
	Registry   *measurement.Registry
	Samplerate func() float64 // current ADC samplerate, read from ADC state
}

func (h *MeasurementHandlers) Create(pos, neg byte, enabled bool, averaging uint16) (int, adcp.ResponseCode) {
	id, err := h.Registry.Create(pos, neg, enabled, averaging)
	return id, registryResponse(err)
}

func (h *MeasurementHandlers) Delete(id int) adcp.ResponseCode {
	return registryResponse(h.Registry.Delete(id))
}

func (h *MeasurementHandlers) SetInputs(id int, pos, neg byte) adcp.ResponseCode {
	return registryResponse(h.Registry.SetInputs(id, pos, neg))
}

func (h *MeasurementHandlers) SetEnabled(id int, enabled bool) adcp.ResponseCode {
	return registryResponse(h.Registry.SetEnabled(id, enabled))
}

func (h *MeasurementHandlers) SetAveraging(id int, averaging uint16) adcp.ResponseCode {
	return registryResponse(h.Registry.SetAveraging(id, averaging))
}

func (h *MeasurementHandlers) Start() adcp.ResponseCode {
	sps := 20.0
	if h.Samplerate != nil {
		sps = h.Samplerate()
	}
	return ResponseFor(h.Dispatcher.Start(context.Background(), sps))
}

func (h *MeasurementHandlers) Stop() adcp.ResponseCode {
	h.Dispatcher.Stop()
	return adcp.ResponseOK
}

func (h *MeasurementHandlers) Oneshot(id int) (int32, adcp.ResponseCode) {
	v, err := h.Dispatcher.Oneshot(context.Background(), id)
	return v, ResponseFor(err)
}

func registryResponse(err error) adcp.ResponseCode {
	switch err {
	case nil:
		return adcp.ResponseOK
	case measurement.ErrActive:
		return adcp.ResponseMeasurementActive
	case measurement.ErrNotFound:
		return adcp.ResponseNoSuchMeasurement
	case measurement.ErrFull:
		return adcp.ResponseTooMuchMeasurements
	default:
		return adcp.ResponseWrongArgument
	}
}

// CalibrationHandlers adapts a Dispatcher onto adcp.CalibrationHandler
// (spec §4.8). SetOffset/SetScale write straight through to the ADC
// driver since they do not require a rendezvous; DoOffset/DoScale run the
// full calibration sequence.
type CalibrationHandlers struct {
	Driver     adc.Driver
	Dispatcher *Dispatcher
	Pos, Neg   byte // last-programmed calibration input pins
}

func (h *CalibrationHandlers) SetOffset(offset int32) adcp.ResponseCode {
	if err := h.Driver.SetCalibrationOffset(offset); err != nil {
		return adcp.ResponseWrongArgument
	}
	return adcp.ResponseOK
}

func (h *CalibrationHandlers) SetScale(scale int32) adcp.ResponseCode {
	if err := h.Driver.SetCalibrationScale(scale); err != nil {
		return adcp.ResponseWrongArgument
	}
	return adcp.ResponseOK
}

func (h *CalibrationHandlers) DoOffset() (int32, adcp.ResponseCode) {
	v, err := h.Dispatcher.Calibrate(context.Background(), h.Pos, h.Neg, CalibrationOffset)
	return v, ResponseFor(err)
}

func (h *CalibrationHandlers) DoScale() (int32, adcp.ResponseCode) {
	v, err := h.Dispatcher.Calibrate(context.Background(), h.Pos, h.Neg, CalibrationScale)
	return v, ResponseFor(err)
}
