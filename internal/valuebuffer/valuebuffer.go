// Package valuebuffer packs timestamped samples into the bounded
// wire-compatible DATA payload described in spec §3/§4.7: an 8-byte time
// reference plus up to MaxRecords 7-byte records, flushed to the
// streaming engine before the buffer or any one delta would overflow its
// wire width.
package valuebuffer

import "encoding/binary"

const (
	// RecordSize is one value record's wire size: id_and_status(1) +
	// value(4) + delta_ticks(2).
	RecordSize = 7
	// TimeRefSize is the leading time-reference field's wire size.
	TimeRefSize = 8
	// MaxRecords bounds the buffer so that, after ADCP(3B)+WS(4B)
	// headers, the frame stays within one Ethernet MTU (spec §4.7:
	// <=1457B total -> (1457-7-8)/7 = 206).
	MaxRecords = 206
	// MaxDeltaTicks is the largest delta (in 10us ticks) that fits in
	// the u16 field: 64000 ticks ~= 0.64s (spec §3).
	MaxDeltaTicks = 64000
)

// Record is one packed sample.
type Record struct {
	IDAndStatus byte
	Value       int32
	DeltaTicks  uint16
}

// EncodeIDAndStatus packs the measurement id (low 3 bits) and a status
// bitfield (upper 5 bits: PGA/reference/extclk alarms) into one byte, per
// spec §4.5 step 6 / §12.
func EncodeIDAndStatus(id int, status byte) byte {
	return byte(id&0x07) | (status << 3)
}

// Buffer accumulates records for one flush cycle and hands the packed
// payload to flushFn when full, on delta overflow, or on explicit Flush.
type Buffer struct {
	timeReference uint64
	records       []Record
	flushFn       func(payload []byte)
}

// New returns an empty Buffer that calls flushFn with the packed payload
// on every flush. flushFn must not block (it is invoked from the
// acquisition dispatcher's sample path).
func New(flushFn func(payload []byte)) *Buffer {
	return &Buffer{flushFn: flushFn}
}

// Append adds one sample captured at tick "now". If the delta since the
// buffer's time reference would not fit in the 16-bit field, the buffer
// is flushed first and a fresh time reference started, per spec §4.5
// step 6. If the buffer reaches MaxRecords, it is flushed after the
// append.
func (b *Buffer) Append(idAndStatus byte, value int32, now uint64) {
	if b.timeReference == 0 && len(b.records) == 0 {
		b.timeReference = now
	}
	delta := now - b.timeReference
	if delta > MaxDeltaTicks {
		b.Flush()
		b.timeReference = now
		delta = 0
	}
	b.records = append(b.records, Record{IDAndStatus: idAndStatus, Value: value, DeltaTicks: uint16(delta)})
	if len(b.records) >= MaxRecords {
		b.Flush()
	}
}

// Flush packs and emits whatever is currently buffered, then resets.
// Flushing an empty buffer is a no-op.
func (b *Buffer) Flush() {
	if len(b.records) == 0 {
		return
	}
	b.emit(b.records)
	b.reset()
}

// DropLastAndFlush implements spec §9's resolved stop-time rule: the most
// recently buffered record may correspond to a sample the ISR had not
// finished committing when acquisition was asked to stop, so it is
// dropped conservatively before the final flush.
func (b *Buffer) DropLastAndFlush() {
	if len(b.records) > 0 {
		b.records = b.records[:len(b.records)-1]
	}
	b.Flush()
}

func (b *Buffer) emit(records []Record) {
	buf := make([]byte, TimeRefSize+len(records)*RecordSize)
	binary.LittleEndian.PutUint64(buf[0:8], b.timeReference)
	off := TimeRefSize
	for _, r := range records {
		buf[off] = r.IDAndStatus
		binary.LittleEndian.PutUint32(buf[off+1:off+5], uint32(r.Value))
		binary.LittleEndian.PutUint16(buf[off+5:off+7], r.DeltaTicks)
		off += RecordSize
	}
	if b.flushFn != nil {
		b.flushFn(buf)
	}
}

func (b *Buffer) reset() {
	b.records = b.records[:0]
	b.timeReference = 0
}

// Len reports the number of buffered, unflushed records.
func (b *Buffer) Len() int { return len(b.records) }
