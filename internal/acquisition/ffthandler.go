package acquisition

import (
	"github.com/finnstutzenstein/adcpd/internal/adcp"
	"github.com/finnstutzenstein/adcpd/internal/fftmath"
	"github.com/finnstutzenstein/adcpd/internal/measurement"
)

// FFTHandlers adapts a measurement.Registry onto adcp.FFTHandler.
// fftmath.Instance has no in-place length/window mutator (its buffers
// are sized at construction), so SetLength/SetWindow rebuild a fresh
// Instance and reattach it, carrying over the channel's current enabled
// state and the field not being changed.
type FFTHandlers struct {
	Dispatcher *Dispatcher
	Registry   *measurement.Registry
}

func (h *FFTHandlers) channel(id int) (*measurement.Channel, adcp.ResponseCode) {
	if h.Dispatcher.Active() {
		return nil, adcp.ResponseMeasurementActive
	}
	ch, err := h.Registry.Get(id)
	if err != nil {
		return nil, adcp.ResponseNoSuchMeasurement
	}
	return ch, adcp.ResponseOK
}

// SetEnabled implements adcp.FFTHandler. A channel with no FFT configured
// yet gets one at the minimum length, rectangular window, so SET_ENABLED
// alone (without a prior SET_LENGTH) is still meaningful.
func (h *FFTHandlers) SetEnabled(id int, enabled bool) adcp.ResponseCode {
	ch, code := h.channel(id)
	if code != adcp.ResponseOK {
		return code
	}
	if ch.FFT == nil {
		inst, err := fftmath.NewInstance(id, fftmath.MinBits, fftmath.Rectangular)
		if err != nil {
			return adcp.ResponseFFTNoMemory
		}
		if err := h.Registry.AttachFFT(id, inst); err != nil {
			return adcp.ResponseNoSuchMeasurement
		}
	}
	ch.FFT.Enabled = enabled
	return adcp.ResponseOK
}

func (h *FFTHandlers) SetLength(id int, bits uint8) adcp.ResponseCode {
	ch, code := h.channel(id)
	if code != adcp.ResponseOK {
		return code
	}
	window := fftmath.Rectangular
	enabled := false
	if ch.FFT != nil {
		window = ch.FFT.Window
		enabled = ch.FFT.Enabled
	}
	inst, err := fftmath.NewInstance(id, int(bits), window)
	if err != nil {
		return adcp.ResponseFFTInvalidLength
	}
	inst.Enabled = enabled
	if err := h.Registry.AttachFFT(id, inst); err != nil {
		return adcp.ResponseNoSuchMeasurement
	}
	return adcp.ResponseOK
}

func (h *FFTHandlers) SetWindow(id int, window uint8) adcp.ResponseCode {
	ch, code := h.channel(id)
	if code != adcp.ResponseOK {
		return code
	}
	w := fftmath.Window(window)
	if !w.Valid() {
		return adcp.ResponseFFTInvalidWindow
	}
	bits := fftmath.MinBits
	enabled := false
	if ch.FFT != nil {
		bits = ch.FFT.Bits
		enabled = ch.FFT.Enabled
	}
	inst, err := fftmath.NewInstance(id, bits, w)
	if err != nil {
		return adcp.ResponseFFTNoMemory
	}
	inst.Enabled = enabled
	if err := h.Registry.AttachFFT(id, inst); err != nil {
		return adcp.ResponseNoSuchMeasurement
	}
	return adcp.ResponseOK
}
