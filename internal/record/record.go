// Package record optionally archives every flushed value-buffer payload
// to a Parquet file, one row per sample, adapted from the teacher's
// GenericWriter-backed capture adapter.
package record

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/segmentio/parquet-go"

	"github.com/finnstutzenstein/adcpd/internal/valuebuffer"
)

// ValueRecord is one archived sample: the measurement id and status
// byte, its packed value, and its absolute tick timestamp.
type ValueRecord struct {
	ChannelID int32 `parquet:"channel_id"`
	Status    int32 `parquet:"status"`
	Value     int32 `parquet:"value"`
	Tick      int64 `parquet:"tick"`
}

// Writer decodes flushed valuebuffer payloads (spec §3/§4.7's wire
// format: an 8-byte time reference followed by 7-byte records) into
// ValueRecord rows and appends them to a Parquet file.
type Writer struct {
	closer io.Closer
	pw     *parquet.GenericWriter[ValueRecord]
}

// Config is persisted as Parquet file metadata, mirroring the teacher's
// practice of embedding the active hardware configuration alongside the
// capture.
type Config struct {
	Samplerate float64 `json:"samplerate"`
	Channels   int     `json:"channels"`
}

// NewWriter opens an archive backed by w, embedding cfg as JSON
// key-value metadata the way the teacher's NewParquetWriter embeds
// HardwareConfig.
func NewWriter(w io.WriteCloser, cfg Config) *Writer {
	configStr := "{}"
	if b, err := json.Marshal(cfg); err == nil {
		configStr = string(b)
	}
	pw := parquet.NewGenericWriter[ValueRecord](w,
		parquet.KeyValueMetadata("config", configStr),
	)
	return &Writer{closer: w, pw: pw}
}

// Archive decodes one flushed valuebuffer payload and writes its records
// as Parquet rows. It must not block for long — the acquisition
// dispatcher's streaming failure path is the typical caller, already off
// the sample-rate-critical path by the time a flush occurs.
func (w *Writer) Archive(payload []byte) error {
	if len(payload) < valuebuffer.TimeRefSize {
		return nil
	}
	timeRef := binary.LittleEndian.Uint64(payload[0:8])
	rows := make([]ValueRecord, 0, (len(payload)-valuebuffer.TimeRefSize)/valuebuffer.RecordSize)

	off := valuebuffer.TimeRefSize
	for off+valuebuffer.RecordSize <= len(payload) {
		idAndStatus := payload[off]
		value := int32(binary.LittleEndian.Uint32(payload[off+1 : off+5]))
		delta := binary.LittleEndian.Uint16(payload[off+5 : off+7])
		rows = append(rows, ValueRecord{
			ChannelID: int32(idAndStatus & 0x07),
			Status:    int32(idAndStatus >> 3),
			Value:     value,
			Tick:      int64(timeRef + uint64(delta)),
		})
		off += valuebuffer.RecordSize
	}

	_, err := w.pw.Write(rows)
	return err
}

// Close flushes and closes the underlying Parquet writer and file.
func (w *Writer) Close() error {
	if err := w.pw.Close(); err != nil {
		_ = w.closer.Close()
		return err
	}
	return w.closer.Close()
}
