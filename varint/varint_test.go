package varint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/graphdb-edge/errs"
)

func TestPutUvarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 16383, 16384, 1 << 40, ^uint64(0)}

	for _, v := range values {
		buf := make([]byte, MaxVarintLen)
		n := PutUvarint(buf, v)

		got, consumed, err := Uvarint(buf[:n])
		require.NoError(t, err)
		require.Equal(t, v, got)
		require.Equal(t, n, consumed)
	}
}

func TestUvarintTruncated(t *testing.T) {
	_, _, err := Uvarint(nil)
	require.ErrorIs(t, err, errs.ErrTruncated)
}

func TestUvarintOverflow(t *testing.T) {
	// 10 bytes, all continuation bits set: never terminates within range.
	buf := make([]byte, 11)
	for i := range buf {
		buf[i] = 0xFF
	}
	buf[10] = 0x01

	_, _, err := Uvarint(buf)
	require.Error(t, err)
}

func TestZigZagRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 2, -2, 1 << 40, -(1 << 40)}
	for _, v := range values {
		require.Equal(t, v, ZigZagDecode(ZigZagEncode(v)))
	}

	// Small magnitudes must encode to small varints (the whole point of zigzag).
	require.Equal(t, uint64(0), ZigZagEncode(0))
	require.Equal(t, uint64(1), ZigZagEncode(-1))
	require.Equal(t, uint64(2), ZigZagEncode(1))
}

func TestCRC32KnownVector(t *testing.T) {
	// "123456789" is the standard CRC32/IEEE test vector.
	require.Equal(t, uint32(0xCBF43926), CRC32([]byte("123456789")))
}

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter(16)
	w.WriteUvarint(42)
	w.WriteZigZag(-7)
	w.WriteString("hello")
	w.WriteBytes([]byte{1, 2, 3})
	w.WriteRaw([]byte{0xAA})

	r := NewReader(w.Bytes())

	u, err := r.ReadUvarint()
	require.NoError(t, err)
	require.Equal(t, uint64(42), u)

	z, err := r.ReadZigZag()
	require.NoError(t, err)
	require.Equal(t, int64(-7), z)

	s, err := r.ReadString()
	require.NoError(t, err)
	require.Equal(t, "hello", s)

	b, err := r.ReadBytes()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, b)

	raw, err := r.ReadRaw(1)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA}, raw)
	require.Equal(t, 0, r.Remaining())
}

func TestWriterReset(t *testing.T) {
	w := NewWriter(4)
	w.WriteUvarint(1)
	require.Equal(t, 1, w.Len())
	w.Reset()
	require.Equal(t, 0, w.Len())
}
