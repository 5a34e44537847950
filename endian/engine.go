// Package endian provides the byte-order engine used by every fixed-width
// field in this repository's binary formats.
//
// SPEC_FULL.md fixes every on-disk integer field to little-endian (the
// combined index header/directory/footer, the quantized-vector header, the
// entity offset index). This package extends encoding/binary by combining
// ByteOrder and AppendByteOrder into one EndianEngine interface, so encoders
// can use the allocation-free Append* methods instead of Put*-into-a-temp-
// buffer-then-append:
//
//	buf = endian.LE.AppendUint64(buf, value)  // no temp buffer, no extra copy
//
// instead of:
//
//	tmp := make([]byte, 8)
//	endian.LE.PutUint64(tmp, value)
//	buf = append(buf, tmp...)
package endian

import (
	"encoding/binary"
	"unsafe"
)

// EndianEngine combines ByteOrder and AppendByteOrder from encoding/binary
// into a single interface, satisfied by binary.LittleEndian.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// LE is the little-endian engine used for every on-disk field in this
// repository. It is exported as a package-level value (rather than a
// constructor) because, unlike the teacher codebase, no format here is
// ever emitted in big-endian: there is exactly one engine to reach for.
var LE EndianEngine = binary.LittleEndian

// IsNativeLittleEndian reports whether the host CPU is little-endian. A
// decoder can use it to decide whether to alias a byte slice directly as
// a []float32 (via unsafe) instead of copying through Uint32/Float32
// conversions — an optimization that is only ever safe on a little-endian
// host since the wire format is fixed little-endian. The decoders in this
// module do not call it; they always copy.
func IsNativeLittleEndian() bool {
	var i uint16 = 0x0001
	b := (*[2]byte)(unsafe.Pointer(&i))

	return b[0] == 0x01
}
