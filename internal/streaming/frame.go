package streaming

import "github.com/finnstutzenstein/adcpd/internal/wsframe"

func newFrameFor(payload []byte) *wsframe.Frame {
	return wsframe.NewFrame(payload)
}
