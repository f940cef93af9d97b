package acquisition_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/finnstutzenstein/adcpd/internal/acquisition"
	"github.com/finnstutzenstein/adcpd/internal/adc"
	"github.com/finnstutzenstein/adcpd/internal/adcp"
	"github.com/finnstutzenstein/adcpd/internal/fftmath"
	"github.com/finnstutzenstein/adcpd/internal/measurement"
)

type noopConnectionHandler struct{}

func (noopConnectionHandler) SetSendType(connID int, mask byte) adcp.ResponseCode {
	return adcp.ResponseOK
}

func TestADCHandlerLatchesAndClearsOnReset(t *testing.T) {
	h := &acquisition.ADCHandlers{Driver: adc.NewSimulated()}
	require.False(t, h.Latched())

	h.Latch()
	require.True(t, h.Latched())

	status, code := h.GetStatus()
	require.Equal(t, adcp.ResponseOK, code)
	require.Equal(t, byte(adc.StatusReset), status)

	resetCalled := false
	h.OnReset = func() { resetCalled = true }
	require.Equal(t, adcp.ResponseOK, h.Reset())
	require.True(t, resetCalled)
	require.False(t, h.Latched())

	status, _ = h.GetStatus()
	require.Zero(t, status)
}

func TestADCHandlerSetSamplerateRejectsOutOfRangeCode(t *testing.T) {
	h := &acquisition.ADCHandlers{Driver: adc.NewSimulated()}
	require.Equal(t, adcp.ResponseOK, h.SetSamplerate(0x04))
	require.Equal(t, adcp.ResponseWrongArgument, h.SetSamplerate(0xFF))
}

func TestResetLatchGatesDispatcherExceptResetAndGetStatus(t *testing.T) {
	adcHandler := &acquisition.ADCHandlers{Driver: adc.NewSimulated()}
	d := adcp.New(adcp.Handlers{
		Connection: noopConnectionHandler{},
		ADC:        adcHandler,
	})
	d.SetResetLatch(adcHandler.Latched)

	adcHandler.Latch()

	resp := d.Dispatch(0, []byte{0x10, 0x00, 0x04})
	require.Equal(t, []byte{byte(adcp.ResponseADCReset)}, resp)

	resp = d.Dispatch(0, []byte{0x40, 0x07})
	require.Equal(t, []byte{byte(adcp.ResponseOK), adc.StatusReset}, resp)

	resp = d.Dispatch(0, []byte{0x40, 0x00})
	require.Equal(t, []byte{byte(adcp.ResponseOK)}, resp)
	require.False(t, adcHandler.Latched())
}

func newFFTHandlerFixture(t *testing.T) (*acquisition.FFTHandlers, *measurement.Registry, int) {
	t.Helper()
	d, reg := newDispatcher(t)
	id, err := reg.Create(0, 1, false, 0)
	require.NoError(t, err)
	return &acquisition.FFTHandlers{Dispatcher: d, Registry: reg}, reg, id
}

func TestFFTHandlerSetEnabledCreatesDefaultInstance(t *testing.T) {
	h, reg, id := newFFTHandlerFixture(t)

	require.Equal(t, adcp.ResponseOK, h.SetEnabled(id, true))
	ch, err := reg.Get(id)
	require.NoError(t, err)
	require.NotNil(t, ch.FFT)
	require.True(t, ch.FFT.Enabled)
	require.Equal(t, fftmath.MinBits, ch.FFT.Bits)
}

func TestFFTHandlerSetLengthPreservesEnabledAndWindow(t *testing.T) {
	h, reg, id := newFFTHandlerFixture(t)
	require.Equal(t, adcp.ResponseOK, h.SetWindow(id, byte(fftmath.Hann)))
	require.Equal(t, adcp.ResponseOK, h.SetEnabled(id, true))

	require.Equal(t, adcp.ResponseOK, h.SetLength(id, 7))

	ch, err := reg.Get(id)
	require.NoError(t, err)
	require.Equal(t, 7, ch.FFT.Bits)
	require.Equal(t, fftmath.Hann, ch.FFT.Window)
	require.True(t, ch.FFT.Enabled)
}

func TestFFTHandlerSetLengthRejectsOutOfRangeBits(t *testing.T) {
	h, _, id := newFFTHandlerFixture(t)
	require.Equal(t, adcp.ResponseFFTInvalidLength, h.SetLength(id, 0))
}

func TestFFTHandlerSetWindowRejectsUnknownWindow(t *testing.T) {
	h, _, id := newFFTHandlerFixture(t)
	require.Equal(t, adcp.ResponseFFTInvalidWindow, h.SetWindow(id, 0xFF))
}

func TestFFTHandlerRejectsWhileAcquisitionActive(t *testing.T) {
	d, reg := newDispatcher(t)
	id, err := reg.Create(0, 1, true, 0)
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background(), 100))
	h := &acquisition.FFTHandlers{Dispatcher: d, Registry: reg}

	require.Equal(t, adcp.ResponseMeasurementActive, h.SetEnabled(id, true))
	d.Stop()
}

func TestDebugHandlerConnectionStatsRendersTable(t *testing.T) {
	h := &acquisition.DebugHandlers{Conns: noConns{}}
	out := h.ConnectionStats()
	require.Contains(t, string(out), "ID")

	require.Equal(t, adcp.ResponseNotEnabled, h.TestScheduler())
	require.Equal(t, adcp.ResponseNotEnabled, h.TestMemoryBW())
}
