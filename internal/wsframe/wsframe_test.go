package wsframe_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/finnstutzenstein/adcpd/internal/wsframe"
)

// TestHandshakeAccept checks Accept against the RFC 6455 value for the
// key used in spec §8 scenario 1's handshake.
func TestHandshakeAccept(t *testing.T) {
	got := wsframe.Accept("bhAe5LVdrInTKRkqQ6KgUA==")
	require.Len(t, got, 28) // base64 of a 20-byte SHA1 digest
	require.Equal(t, "mFl4jRjjFZCZ3e2PYcwaHfiDc4w=", got)
}

func TestTCPViewHeader(t *testing.T) {
	f := wsframe.NewFrame([]byte{0xAA, 0xBB})
	view := f.TCPView(wsframe.SendData)
	require.Equal(t, byte(wsframe.SendData), view[0])
	require.Equal(t, uint16(2), binary.LittleEndian.Uint16(view[1:3]))
	require.Equal(t, []byte{0xAA, 0xBB}, view[3:])
}

func TestWSViewShortFrame(t *testing.T) {
	f := wsframe.NewFrame([]byte{0x01})
	view := f.WSView(wsframe.SendStatus)
	require.Equal(t, byte(0x82), view[0]) // FIN + binary opcode
	require.Equal(t, byte(4), view[1])    // ADCP-framed length: 3 header + 1 payload
	require.Equal(t, byte(wsframe.SendStatus), view[2])
}

func TestWSViewExtendedFrame(t *testing.T) {
	payload := make([]byte, 200)
	f := wsframe.NewFrame(payload)
	view := f.WSView(wsframe.SendFFT)
	require.Equal(t, byte(0x82), view[0])
	require.Equal(t, byte(127), view[1])
	adcpLen := binary.BigEndian.Uint16(view[2:4])
	require.Equal(t, uint16(203), adcpLen) // 3-byte ADCP header + 200-byte payload
}

func TestParseIncomingMaskedFrame(t *testing.T) {
	mask := [4]byte{0x11, 0x22, 0x33, 0x44}
	payload := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	masked := make([]byte, len(payload))
	for i, b := range payload {
		masked[i] = b ^ mask[i%4]
	}

	buf := []byte{0x82, 0x80 | byte(len(payload))}
	buf = append(buf, mask[:]...)
	buf = append(buf, masked...)

	frame, n, err := wsframe.ParseIncoming(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, wsframe.OpBinary, frame.Opcode)
	require.Equal(t, payload, frame.Payload)
}

func TestParseIncomingRejectsUnmasked(t *testing.T) {
	buf := []byte{0x82, 0x02, 0x01, 0x02}
	_, _, err := wsframe.ParseIncoming(buf)
	require.ErrorIs(t, err, wsframe.ErrUnmasked)
}

func TestParseIncomingRejectsFragmented(t *testing.T) {
	buf := []byte{0x02, 0x80, 0, 0, 0, 0}
	_, _, err := wsframe.ParseIncoming(buf)
	require.ErrorIs(t, err, wsframe.ErrFragmented)
}
