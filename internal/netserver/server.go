// Package netserver implements the TCP/WebSocket front end: accepting up
// to MaxConnections clients, detecting raw-TCP vs HTTP/WebSocket
// connections the way the original firmware's connection_task_function
// does, and dispatching ADCP commands while satisfying
// streaming.ConnectionSource for the streaming engine's fan-out.
package netserver

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"

	"github.com/finnstutzenstein/adcpd/internal/adcp"
	"github.com/finnstutzenstein/adcpd/internal/streaming"
	"github.com/finnstutzenstein/adcpd/internal/wsframe"
)

// MaxConnections bounds concurrent accepted clients (spec §5).
const MaxConnections = streaming.MaxConnections

// Server accepts TCP and WebSocket-upgraded clients, dispatches their
// ADCP traffic, and exposes the active set to the streaming engine.
type Server struct {
	dispatcher *adcp.Dispatcher
	logger     *log.Logger

	mu    sync.Mutex
	conns [MaxConnections]*connection
}

var (
	_ adcp.ConnectionHandler     = (*Server)(nil)
	_ streaming.ConnectionSource = (*Server)(nil)
)

// New constructs a Server. dispatcher may be nil and supplied later via
// SetDispatcher — the Server itself is an adcp.ConnectionHandler, so the
// Dispatcher's Handlers typically can't be built until the Server exists.
func New(dispatcher *adcp.Dispatcher, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{dispatcher: dispatcher, logger: logger}
}

// SetDispatcher wires the Dispatcher after construction, breaking the
// construction cycle between Server (an adcp.ConnectionHandler) and the
// adcp.Handlers bundle that needs one.
func (s *Server) SetDispatcher(dispatcher *adcp.Dispatcher) {
	s.mu.Lock()
	s.dispatcher = dispatcher
	s.mu.Unlock()
}

// SetSendType implements adcp.ConnectionHandler: CONNECTION.SET_TYPE sets
// the subscription mask on the calling connection's own slot.
func (s *Server) SetSendType(connID int, mask byte) adcp.ResponseCode {
	s.mu.Lock()
	c := s.conns[connID]
	s.mu.Unlock()
	if c == nil {
		return adcp.ResponseInvalidCommand
	}
	c.setSendMask(mask)
	return adcp.ResponseOK
}

// Active implements streaming.ConnectionSource.
func (s *Server) Active() []streaming.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]streaming.Connection, 0, MaxConnections)
	for _, c := range s.conns {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Serve listens on addr and accepts connections until ctx is canceled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("netserver: listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		tuneSocket(nc)
		go s.handle(nc)
	}
}

// tuneSocket applies TCP_NODELAY, mirroring the original's
// TF_NODELAY|TF_ACK_DELAY lwIP flag tuning in connection.c — replies to
// small ADCP commands should not wait on Nagle's algorithm.
func tuneSocket(nc net.Conn) {
	tc, ok := nc.(*net.TCPConn)
	if !ok {
		return
	}
	_ = tc.SetNoDelay(true)
	raw, err := tc.SyscallConn()
	if err != nil {
		return
	}
	_ = raw.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	})
}

// acquireSlot reserves a connection slot, refusing beyond MaxConnections
// (spec §5's connection_semaphore).
func (s *Server) acquireSlot(nc net.Conn, isWS bool) *connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.conns {
		if s.conns[i] == nil {
			c := newConnection(i, nc, isWS)
			s.conns[i] = c
			return c
		}
	}
	return nil
}

func (s *Server) releaseSlot(c *connection) {
	s.mu.Lock()
	s.conns[c.id] = nil
	s.mu.Unlock()
}

// handle determines the connection's type from its first bytes, the way
// get_connection_type does: an HTTP request line means HTTP/WebSocket,
// anything else is dispatched directly as a raw ADCP stream (its first
// command is conventionally CONNECTION.SET_TYPE).
func (s *Server) handle(nc net.Conn) {
	br := bufio.NewReader(nc)
	// Wait for the first bytes, then classify on up to four of them: a
	// raw ADCP command can be as short as two or three bytes.
	if _, err := br.Peek(1); err != nil {
		_ = nc.Close()
		return
	}
	n := br.Buffered()
	if n > 4 {
		n = 4
	}
	peek, _ := br.Peek(n)

	if looksLikeHTTP(peek) {
		s.handleHTTP(nc, br)
		return
	}

	c := s.acquireSlot(nc, false)
	if c == nil {
		s.logger.Warn("connection refused, pool full", "remote", nc.RemoteAddr())
		_ = nc.Close()
		return
	}
	s.logger.Info("tcp client connected", "id", c.id, "remote", nc.RemoteAddr())
	defer func() {
		s.logger.Info("tcp client disconnected", "id", c.id)
		c.close()
		s.releaseSlot(c)
	}()
	s.serveTCP(c, br)
}

func looksLikeHTTP(b []byte) bool {
	methods := []string{"GET ", "POST", "PUT ", "HEAD"}
	for _, m := range methods {
		if bytes.Equal(b, []byte(m)) {
			return true
		}
	}
	return false
}

// serveTCP reads raw ADCP payloads directly off the stream (no outer
// [type][length] envelope on the inbound side — spec §8's worked
// example shows the bare prefix/command/argument bytes) and writes
// responses wrapped with the ADCP header, send-type 0 meaning "direct
// reply" rather than one of the broadcast tags.
func (s *Server) serveTCP(c *connection, br *bufio.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := br.Read(buf)
		if err != nil {
			return
		}
		if n < 2 {
			continue
		}
		payload := append([]byte(nil), buf[:n]...)

		resp := s.dispatcher.Dispatch(c.id, payload)
		frame := wsframe.NewFrame(resp)
		if !c.Write(frame.TCPView(0)) {
			return
		}
	}
}

// handleHTTP completes the RFC 6455 upgrade handshake (only
// Sec-WebSocket-Key is required to compute Accept) and, for non-upgrade
// requests, replies with a bare 404 — this listener serves no other HTTP
// routes directly.
func (s *Server) handleHTTP(nc net.Conn, br *bufio.Reader) {
	req, err := http.ReadRequest(br)
	if err != nil {
		_ = nc.Close()
		return
	}

	if !isWebSocketUpgrade(req) {
		resp := "HTTP/1.1 404 Not Found\r\nConnection: close\r\nContent-Length: 0\r\n\r\n"
		_, _ = nc.Write([]byte(resp))
		_ = nc.Close()
		return
	}

	key := req.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		_ = nc.Close()
		return
	}
	accept := wsframe.Accept(key)

	resp := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + accept + "\r\n\r\n"
	if _, err := nc.Write([]byte(resp)); err != nil {
		_ = nc.Close()
		return
	}

	c := s.acquireSlot(nc, true)
	if c == nil {
		s.logger.Warn("websocket connection refused, pool full", "remote", nc.RemoteAddr())
		_ = nc.Close()
		return
	}
	s.logger.Info("websocket client connected", "id", c.id, "remote", nc.RemoteAddr())
	defer func() {
		s.logger.Info("websocket client disconnected", "id", c.id)
		c.close()
		s.releaseSlot(c)
	}()
	s.serveWS(c, br)
}

func isWebSocketUpgrade(req *http.Request) bool {
	return strings.EqualFold(req.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(req.Header.Get("Connection")), "upgrade")
}

func (s *Server) serveWS(c *connection, br *bufio.Reader) {
	var pending bytes.Buffer
	chunk := make([]byte, 4096)
	for {
		for {
			frame, n, err := wsframe.ParseIncoming(pending.Bytes())
			if err == wsframe.ErrShortHeader {
				break
			}
			if err != nil {
				return
			}
			pending.Next(n)
			if !s.dispatchWSFrame(c, frame) {
				return
			}
		}
		nr, err := br.Read(chunk)
		if err != nil {
			return
		}
		pending.Write(chunk[:nr])
	}
}

func (s *Server) dispatchWSFrame(c *connection, frame wsframe.IncomingFrame) bool {
	switch frame.Opcode {
	case wsframe.OpClose:
		return false
	case wsframe.OpPing:
		n := len(frame.Payload)
		buf := make([]byte, wsframe.HeaderSize(n)+n)
		wsframe.WriteHeader(buf, 0, wsframe.OpPong, n)
		copy(buf[wsframe.HeaderSize(n):], frame.Payload)
		c.Write(buf)
		return true
	case wsframe.OpPong:
		return true
	case wsframe.OpBinary:
		resp := s.dispatcher.Dispatch(c.id, frame.Payload)
		wsFrame := wsframe.NewFrame(resp)
		return c.Write(wsFrame.WSView(0))
	default:
		return true
	}
}
