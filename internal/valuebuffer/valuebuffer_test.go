package valuebuffer_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/finnstutzenstein/adcpd/internal/valuebuffer"
)

func TestEncodeIDAndStatus(t *testing.T) {
	b := valuebuffer.EncodeIDAndStatus(5, 0b10101)
	require.Equal(t, byte(5|(0b10101<<3)), b)
}

func TestAppendAndExplicitFlush(t *testing.T) {
	var got []byte
	buf := valuebuffer.New(func(payload []byte) { got = payload })

	buf.Append(valuebuffer.EncodeIDAndStatus(0, 0), 42, 100)
	buf.Append(valuebuffer.EncodeIDAndStatus(1, 0), -7, 150)
	buf.Flush()

	require.NotNil(t, got)
	require.Len(t, got, valuebuffer.TimeRefSize+2*valuebuffer.RecordSize)
	require.Equal(t, uint64(100), binary.LittleEndian.Uint64(got[0:8]))

	rec0 := got[8:15]
	require.Equal(t, byte(0), rec0[0])
	require.Equal(t, int32(42), int32(binary.LittleEndian.Uint32(rec0[1:5])))
	require.Equal(t, uint16(0), binary.LittleEndian.Uint16(rec0[5:7]))

	rec1 := got[15:22]
	require.Equal(t, uint16(50), binary.LittleEndian.Uint16(rec1[5:7]))
}

func TestFlushOnMaxRecords(t *testing.T) {
	flushes := 0
	buf := valuebuffer.New(func([]byte) { flushes++ })
	for i := 0; i < valuebuffer.MaxRecords; i++ {
		buf.Append(valuebuffer.EncodeIDAndStatus(0, 0), int32(i), uint64(i))
	}
	require.Equal(t, 1, flushes)
	require.Equal(t, 0, buf.Len())
}

func TestFlushOnDeltaOverflow(t *testing.T) {
	flushes := 0
	buf := valuebuffer.New(func([]byte) { flushes++ })
	buf.Append(valuebuffer.EncodeIDAndStatus(0, 0), 1, 0)
	buf.Append(valuebuffer.EncodeIDAndStatus(0, 0), 2, valuebuffer.MaxDeltaTicks+1)
	require.Equal(t, 1, flushes, "delta overflow must flush before appending the new sample")
	require.Equal(t, 1, buf.Len(), "the new sample starts a fresh buffer")
}

func TestDropLastAndFlushDropsFinalRecord(t *testing.T) {
	var got []byte
	buf := valuebuffer.New(func(payload []byte) { got = payload })
	buf.Append(valuebuffer.EncodeIDAndStatus(0, 0), 1, 0)
	buf.Append(valuebuffer.EncodeIDAndStatus(0, 0), 2, 10)
	buf.DropLastAndFlush()

	require.Len(t, got, valuebuffer.TimeRefSize+1*valuebuffer.RecordSize)
}

func TestFlushOfEmptyBufferIsNoOp(t *testing.T) {
	called := false
	buf := valuebuffer.New(func([]byte) { called = true })
	buf.Flush()
	require.False(t, called)
}
