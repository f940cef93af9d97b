package acquisition

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/finnstutzenstein/adcpd/internal/adcp"
	"github.com/finnstutzenstein/adcpd/internal/streaming"
)

// DebugHandlers implements adcp.DebugHandler with host-side stats,
// rendering DEBUGGING.CONNECTION_STATS and DEBUGGING.OS_STATS as ASCII
// tables (spec §12 supplement), replacing the original firmware's
// hand-rolled snprintf table in connection.c. TestScheduler/TestMemoryBW
// are STM32-specific instrumentation hooks with no host-side meaning.
type DebugHandlers struct {
	Conns streaming.ConnectionSource
}

func (h *DebugHandlers) LWIPStats() []byte {
	return []byte("lwip stats unavailable: host networking stack is net/http, not lwIP")
}

func (h *DebugHandlers) TestScheduler() adcp.ResponseCode { return adcp.ResponseNotEnabled }
func (h *DebugHandlers) TestMemoryBW() adcp.ResponseCode  { return adcp.ResponseNotEnabled }

func (h *DebugHandlers) OSStats() []byte {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	buf := &bytes.Buffer{}
	table := tablewriter.NewWriter(buf)
	table.SetHeader([]string{"stat", "value"})
	table.Append([]string{"goroutines", strconv.Itoa(runtime.NumGoroutine())})
	table.Append([]string{"heap_alloc_bytes", strconv.FormatUint(ms.HeapAlloc, 10)})
	table.Append([]string{"heap_sys_bytes", strconv.FormatUint(ms.HeapSys, 10)})
	table.Append([]string{"num_gc", strconv.FormatUint(uint64(ms.NumGC), 10)})
	table.Render()
	return buf.Bytes()
}

func (h *DebugHandlers) ConnectionStats() []byte {
	buf := &bytes.Buffer{}
	table := tablewriter.NewWriter(buf)
	table.SetHeader([]string{"id", "transport", "send_type"})
	if h.Conns != nil {
		for _, c := range h.Conns.Active() {
			transport := "tcp"
			if c.IsWebSocket() {
				transport = "ws"
			}
			table.Append([]string{
				strconv.Itoa(c.ID()),
				transport,
				fmt.Sprintf("0x%02x", c.SendMask()),
			})
		}
	}
	table.Render()
	return buf.Bytes()
}
