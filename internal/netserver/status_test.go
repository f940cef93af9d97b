package netserver_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/finnstutzenstein/adcpd/internal/adcstate"
	"github.com/finnstutzenstein/adcpd/internal/netserver"
)

func TestStatusHubBroadcastsToDashboard(t *testing.T) {
	hub := netserver.NewStatusHub()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.ListenAndServe(ctx, addr)
	time.Sleep(20 * time.Millisecond)

	url := "ws://" + addr + "/ws/status"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	time.Sleep(20 * time.Millisecond)

	want := adcstate.CompleteState{ADC: adcstate.ADCState{SamplerateFilter: 2}}
	hub.Broadcast(want)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var got adcstate.CompleteState
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, want.ADC.SamplerateFilter, got.ADC.SamplerateFilter)
}
