// Package varint provides the unsigned LEB128 varint and zigzag primitives
// shared by every binary codec in this repository (entity offset index,
// GraphCol columns, the HNSW section), plus the CRC32 checksum used to guard
// every container footer.
//
// The wire format is identical to encoding/binary's Uvarint/PutUvarint (7
// payload bits per byte, MSB=1 continuation), so this package is a thin,
// allocation-aware wrapper rather than a reimplementation: Writer accumulates
// varint-framed fields into a reusable buffer the way the teacher's
// TimestampDeltaEncoder accumulates into a pool.ByteBuffer.
package varint

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/arloliu/graphdb-edge/errs"
)

// MaxVarintLen is the maximum number of bytes a 64-bit unsigned varint can
// occupy; decoders reject any value that does not terminate within this
// many bytes.
const MaxVarintLen = binary.MaxVarintLen64

// PutUvarint encodes v into buf (which must have length >= MaxVarintLen) and
// returns the number of bytes written.
func PutUvarint(buf []byte, v uint64) int {
	return binary.PutUvarint(buf, v)
}

// Uvarint decodes a uint64 from the front of buf. It returns the value, the
// number of bytes consumed, and an error if the varint does not terminate
// within MaxVarintLen bytes or truncates before a terminating byte.
func Uvarint(buf []byte) (uint64, int, error) {
	v, n := binary.Uvarint(buf)
	if n == 0 {
		return 0, 0, errs.ErrTruncated
	}
	if n < 0 {
		return 0, 0, errs.ErrVarintOverflow
	}

	return v, n, nil
}

// ZigZagEncode maps a signed integer to an unsigned one so that small
// magnitude values (positive or negative) encode to small varints:
// 0, -1, 1, -2, 2, ... -> 0, 1, 2, 3, 4, ...
func ZigZagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

// ZigZagDecode reverses ZigZagEncode.
func ZigZagDecode(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

// CRC32 computes the IEEE 802.3 CRC32 (polynomial 0xEDB88320 reflected) of
// data. Every container checksum in this repository (entity offset index,
// combined index footer) is this single implementation applied to a
// different byte span.
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// Writer accumulates varint- and fixed-width-framed fields into a growable
// byte buffer without per-call allocation, mirroring the teacher's
// TimestampDeltaEncoder/pool.ByteBuffer pairing.
type Writer struct {
	buf []byte
	tmp [MaxVarintLen]byte
}

// NewWriter creates a Writer with the given initial capacity hint.
func NewWriter(capHint int) *Writer {
	return &Writer{buf: make([]byte, 0, capHint)}
}

// WriteUvarint appends v as an unsigned varint.
func (w *Writer) WriteUvarint(v uint64) {
	n := binary.PutUvarint(w.tmp[:], v)
	w.buf = append(w.buf, w.tmp[:n]...)
}

// WriteZigZag appends v as a zigzag+varint encoded signed integer.
func (w *Writer) WriteZigZag(v int64) {
	w.WriteUvarint(ZigZagEncode(v))
}

// WriteBytes appends a varint length prefix followed by b's raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteUvarint(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteString appends a varint length prefix followed by s's UTF-8 bytes.
func (w *Writer) WriteString(s string) {
	w.WriteUvarint(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteRaw appends b verbatim, with no length prefix.
func (w *Writer) WriteRaw(b []byte) {
	w.buf = append(w.buf, b...)
}

// Bytes returns the accumulated buffer. The returned slice aliases the
// Writer's internal storage and must not be retained across a Reset.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Reset empties the buffer while retaining its capacity for reuse.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
}

// Reader consumes varint- and fixed-width-framed fields from a byte slice,
// tracking a read cursor so callers don't have to thread offsets by hand.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential reads starting at offset 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the current read offset.
func (r *Reader) Pos() int { return r.pos }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// ReadUvarint reads an unsigned varint, advancing the cursor.
func (r *Reader) ReadUvarint() (uint64, error) {
	v, n, err := Uvarint(r.buf[r.pos:])
	if err != nil {
		return 0, err
	}
	r.pos += n

	return v, nil
}

// ReadZigZag reads a zigzag+varint encoded signed integer, advancing the
// cursor.
func (r *Reader) ReadZigZag() (int64, error) {
	u, err := r.ReadUvarint()
	if err != nil {
		return 0, err
	}

	return ZigZagDecode(u), nil
}

// ReadBytes reads a varint length prefix followed by that many raw bytes,
// advancing the cursor. The returned slice aliases the Reader's underlying
// buffer.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadUvarint()
	if err != nil {
		return nil, err
	}
	if uint64(r.Remaining()) < n {
		return nil, errs.ErrTruncated
	}
	b := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)

	return b, nil
}

// ReadString reads a varint length prefix followed by that many UTF-8
// bytes, advancing the cursor.
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// ReadRaw reads exactly n raw bytes, advancing the cursor.
func (r *Reader) ReadRaw(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, errs.ErrTruncated
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n

	return b, nil
}
