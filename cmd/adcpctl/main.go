// Command adcpctl is a minimal ADCP client: it dials a adcpd instance
// over raw TCP or WebSocket, sends one command, and prints the decoded
// response, the way the teacher's cmd/client/client.go dials and reads
// but driven by subcommands instead of a fixed demo payload.
package main

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"

	"github.com/finnstutzenstein/adcpd/internal/adcp"
)

func main() {
	addr := pflag.StringP("addr", "a", "localhost:7900", "adcpd address (host:port).")
	useWS := pflag.Bool("ws", false, "Connect over WebSocket instead of raw TCP.")
	help := pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <command> [args...]\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "  create <pos> <neg> <enabled:0|1> <averaging>")
		fmt.Fprintln(os.Stderr, "  delete <id>")
		fmt.Fprintln(os.Stderr, "  start")
		fmt.Fprintln(os.Stderr, "  stop")
		fmt.Fprintln(os.Stderr, "  oneshot <id>")
		fmt.Fprintln(os.Stderr, "  stats")
		fmt.Fprintln(os.Stderr, "  raw <prefix-hex> <cmd-hex> [arg-hex...]")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help || len(pflag.Args()) == 0 {
		pflag.Usage()
		if *help {
			return
		}
		os.Exit(2)
	}

	conn, err := dial(*addr, *useWS)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dial:", err)
		os.Exit(1)
	}
	defer conn.Close()

	args := pflag.Args()
	switch args[0] {
	case "stats":
		runStats(conn)
	default:
		payload, err := buildCommand(args)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		resp, err := conn.RoundTrip(payload)
		if err != nil {
			fmt.Fprintln(os.Stderr, "command failed:", err)
			os.Exit(1)
		}
		printResponse(resp)
	}
}

// buildCommand translates a subcommand and its string arguments into a
// raw ADCP payload (prefix, command, argument bytes per spec §6).
func buildCommand(args []string) ([]byte, error) {
	switch args[0] {
	case "create":
		if len(args) != 5 {
			return nil, fmt.Errorf("create requires pos neg enabled averaging")
		}
		pos, neg := mustByte(args[1]), mustByte(args[2])
		enabled := byte(0)
		if args[3] == "1" {
			enabled = 1
		}
		averaging := mustUint16(args[4])
		buf := []byte{byte(adcp.PrefixMeasurement), adcp.MeasurementCreate, pos, neg, enabled, 0, 0}
		binary.LittleEndian.PutUint16(buf[5:7], averaging)
		return buf, nil
	case "delete":
		if len(args) != 2 {
			return nil, fmt.Errorf("delete requires id")
		}
		return []byte{byte(adcp.PrefixMeasurement), adcp.MeasurementDelete, mustByte(args[1])}, nil
	case "start":
		return []byte{byte(adcp.PrefixMeasurement), adcp.MeasurementStart}, nil
	case "stop":
		return []byte{byte(adcp.PrefixMeasurement), adcp.MeasurementStop}, nil
	case "oneshot":
		if len(args) != 2 {
			return nil, fmt.Errorf("oneshot requires id")
		}
		return []byte{byte(adcp.PrefixMeasurement), adcp.MeasurementOneshot, mustByte(args[1])}, nil
	case "raw":
		if len(args) < 3 {
			return nil, fmt.Errorf("raw requires prefix-hex cmd-hex [arg-hex...]")
		}
		buf := []byte{mustByte(args[1]), mustByte(args[2])}
		for _, a := range args[3:] {
			buf = append(buf, mustByte(a))
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("unknown command %q", args[0])
	}
}

func mustByte(s string) byte {
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid byte argument:", s)
		os.Exit(1)
	}
	return byte(n)
}

func mustUint16(s string) uint16 {
	n, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid uint16 argument:", s)
		os.Exit(1)
	}
	return uint16(n)
}

func printResponse(resp []byte) {
	if len(resp) == 0 {
		fmt.Println("empty response")
		return
	}
	code := adcp.ResponseCode(resp[0])
	fmt.Printf("%s", code)
	if len(resp) > 1 {
		fmt.Printf(" % x", resp[1:])
	}
	fmt.Println()
}

// runStats issues both DEBUGGING stat commands, printing each server-
// rendered table verbatim and a local round-trip-latency table of its
// own (spec's tablewriter wiring note applies client-side too).
func runStats(conn roundTripper) {
	queries := []struct {
		name string
		cmd  byte
	}{
		{"connection_stats", adcp.DebuggingConnectionStats},
		{"os_stats", adcp.DebuggingOSStats},
	}

	buf := &bytes.Buffer{}
	latency := tablewriter.NewWriter(buf)
	latency.SetHeader([]string{"query", "round_trip"})

	for _, q := range queries {
		start := time.Now()
		resp, err := conn.RoundTrip([]byte{byte(adcp.PrefixDebugging), q.cmd})
		elapsed := time.Since(start)
		if err != nil {
			fmt.Fprintln(os.Stderr, q.name, "failed:", err)
			continue
		}
		latency.Append([]string{q.name, elapsed.String()})
		if len(resp) > 1 {
			fmt.Printf("--- %s ---\n%s\n", q.name, resp[1:])
		}
	}
	latency.Render()
	fmt.Print(buf.String())
}

// roundTripper sends one ADCP command payload and returns its decoded
// response payload (ResponseCode byte followed by command-specific
// bytes), abstracting over the raw-TCP and WebSocket transports.
type roundTripper interface {
	RoundTrip(payload []byte) ([]byte, error)
	Close() error
}

func dial(addr string, useWS bool) (roundTripper, error) {
	if useWS {
		u := url.URL{Scheme: "ws", Host: addr, Path: "/"}
		c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
		if err != nil {
			return nil, err
		}
		return &wsConn{c: c}, nil
	}
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &tcpConn{nc: nc, br: bufio.NewReader(nc)}, nil
}

type tcpConn struct {
	nc net.Conn
	br *bufio.Reader
}

func (t *tcpConn) RoundTrip(payload []byte) ([]byte, error) {
	if _, err := t.nc.Write(payload); err != nil {
		return nil, err
	}
	hdr := make([]byte, 3)
	if _, err := readFull(t.br, hdr); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint16(hdr[1:3])
	resp := make([]byte, length)
	if _, err := readFull(t.br, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func readFull(br *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := br.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (t *tcpConn) Close() error { return t.nc.Close() }

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) RoundTrip(payload []byte) ([]byte, error) {
	if err := w.c.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		return nil, err
	}
	_, msg, err := w.c.ReadMessage()
	if err != nil {
		return nil, err
	}
	if len(msg) < 3 {
		return nil, fmt.Errorf("adcpctl: short frame")
	}
	length := binary.LittleEndian.Uint16(msg[1:3])
	if len(msg) < 3+int(length) {
		return nil, fmt.Errorf("adcpctl: truncated frame")
	}
	return msg[3 : 3+length], nil
}

func (w *wsConn) Close() error { return w.c.Close() }
