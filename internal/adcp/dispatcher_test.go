package adcp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/finnstutzenstein/adcpd/internal/adcp"
)

type fakeConnection struct{ lastMask byte }

func (f *fakeConnection) SetSendType(connID int, mask byte) adcp.ResponseCode {
	f.lastMask = mask
	return adcp.ResponseOK
}

type fakeDebug struct{}

func (fakeDebug) LWIPStats() []byte         { return []byte("stats") }
func (fakeDebug) TestScheduler() adcp.ResponseCode { return adcp.ResponseNotEnabled }
func (fakeDebug) TestMemoryBW() adcp.ResponseCode  { return adcp.ResponseNotEnabled }
func (fakeDebug) OSStats() []byte           { return nil }
func (fakeDebug) ConnectionStats() []byte   { return nil }

type fakeMeasurement struct {
	nextID int
	active bool
}

func (f *fakeMeasurement) Create(pos, neg byte, enabled bool, averaging uint16) (int, adcp.ResponseCode) {
	id := f.nextID
	f.nextID++
	return id, adcp.ResponseOK
}
func (f *fakeMeasurement) Delete(id int) adcp.ResponseCode                 { return adcp.ResponseOK }
func (f *fakeMeasurement) SetInputs(id int, pos, neg byte) adcp.ResponseCode { return adcp.ResponseOK }
func (f *fakeMeasurement) SetEnabled(id int, enabled bool) adcp.ResponseCode {
	if f.active {
		return adcp.ResponseMeasurementActive
	}
	return adcp.ResponseOK
}
func (f *fakeMeasurement) SetAveraging(id int, averaging uint16) adcp.ResponseCode {
	return adcp.ResponseOK
}
func (f *fakeMeasurement) Start() adcp.ResponseCode { f.active = true; return adcp.ResponseOK }
func (f *fakeMeasurement) Stop() adcp.ResponseCode  { f.active = false; return adcp.ResponseOK }
func (f *fakeMeasurement) Oneshot(id int) (int32, adcp.ResponseCode) { return 12345, adcp.ResponseOK }

func newTestDispatcher() (*adcp.Dispatcher, *fakeConnection, *fakeMeasurement) {
	conn := &fakeConnection{}
	meas := &fakeMeasurement{}
	d := adcp.New(adcp.Handlers{
		Connection:  conn,
		Debug:       fakeDebug{},
		Measurement: meas,
	})
	return d, conn, meas
}

// TestMeasurementCreateScenario reproduces spec §8 scenario 2 literally.
func TestMeasurementCreateScenario(t *testing.T) {
	d, conn, _ := newTestDispatcher()

	connResp := d.Dispatch(0, []byte{0x10, 0x00, 0x04})
	require.Equal(t, []byte{byte(adcp.ResponseOK)}, connResp)
	require.Equal(t, byte(0x04), conn.lastMask)

	createResp := d.Dispatch(0, []byte{0x30, 0x02, 0x00, 0x0A, 0x01, 0x05, 0x00})
	require.Equal(t, []byte{byte(adcp.ResponseOK), 0x00}, createResp)
}

func TestMessageTooShort(t *testing.T) {
	d, _, _ := newTestDispatcher()
	resp := d.Dispatch(0, []byte{0x10})
	require.Equal(t, []byte{byte(adcp.ResponseMessageTooShort)}, resp)
}

func TestInvalidPrefix(t *testing.T) {
	d, _, _ := newTestDispatcher()
	resp := d.Dispatch(0, []byte{0xFF, 0x00})
	require.Equal(t, []byte{byte(adcp.ResponseInvalidPrefix)}, resp)
}

func TestInvalidCommand(t *testing.T) {
	d, _, _ := newTestDispatcher()
	resp := d.Dispatch(0, []byte{0x10, 0xEE})
	require.Equal(t, []byte{byte(adcp.ResponseInvalidCommand), 0xEE}, resp)
}

// TestTooFewArgumentsEchoesExpectedCount is spec §8's ADCP error-code
// property.
func TestTooFewArgumentsEchoesExpectedCount(t *testing.T) {
	d, _, _ := newTestDispatcher()
	resp := d.Dispatch(0, []byte{0x30, 0x02, 0x0A}) // CREATE needs 5 arg bytes
	require.Equal(t, []byte{byte(adcp.ResponseTooFewArguments), 0x05}, resp)
}

func TestMeasurementActiveRejection(t *testing.T) {
	d, _, meas := newTestDispatcher()
	d.Dispatch(0, []byte{0x30, 0x05}) // START
	require.True(t, meas.active)

	resp := d.Dispatch(0, []byte{0x30, 0x03, 0x00, 0x00}) // SET_ENABLED while active
	require.Equal(t, []byte{byte(adcp.ResponseMeasurementActive)}, resp)
}
