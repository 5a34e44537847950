// Package vector implements the quantized-vector file format (§4.2): a
// self-contained container for (entityId, predicate-qualified) embeddings in
// one of three quantizations (FLOAT32, INT8, BINARY), with an ID table for
// name lookup and a dequantize path back to float32 for similarity search.
package vector

import (
	"math"

	"github.com/arloliu/graphdb-edge/compress"
	"github.com/arloliu/graphdb-edge/errs"
	"github.com/arloliu/graphdb-edge/format"
	"github.com/arloliu/graphdb-edge/varint"
)

// Magic identifies a quantized-vector file: "GVECFILE".
var Magic = [8]byte{'G', 'V', 'E', 'C', 'F', 'I', 'L', 'E'}

// FormatVersion is the current quantized-vector file format version.
const FormatVersion uint16 = 1

// headerSize is the fixed header length before the optional INT8 scale/offset
// fields: magic(8) + version(2) + quantization(1) + reserved/compression(1) +
// dimensions(4) + vectorCount(4) + idTableOffset(8).
const headerSize = 8 + 2 + 1 + 1 + 4 + 4 + 8

// File is a decoded quantized-vector file, holding the packed scalar payload
// (still in its on-disk quantization) and the parallel ID table.
type File struct {
	Quantization format.Quantization
	Compression  format.CompressionType
	Dimensions   uint32
	VectorCount  uint32
	Scale        float32 // INT8 only
	Offset       float32 // INT8 only
	Packed       []byte  // decompressed packed scalar payload
	IDs          []string
}

// Encode serializes ids (parallel to vectors) and vectors into a quantized
// vector file using the requested quantization and payload compression.
// Encoding an empty vector set fails with errs.ErrEmptyVectorSet.
func Encode(ids []string, vectors [][]float32, quant format.Quantization, compression format.CompressionType) ([]byte, error) {
	if len(vectors) == 0 {
		return nil, errs.ErrEmptyVectorSet
	}

	dims := uint32(len(vectors[0]))
	for _, v := range vectors {
		if uint32(len(v)) != dims {
			return nil, errs.ErrDimensionMismatch
		}
	}

	var packed []byte
	var scale, offset float32

	switch quant {
	case format.QuantizationFloat32:
		packed = encodeFloat32(vectors)
	case format.QuantizationInt8:
		packed, scale, offset = encodeInt8(vectors)
	case format.QuantizationBinary:
		packed = encodeBinary(vectors)
	default:
		return nil, errs.ErrInvalidHeaderSize
	}

	codec, err := compress.CreateCodec(compression, "vector payload")
	if err != nil {
		return nil, err
	}
	compressedPacked, err := codec.Compress(packed)
	if err != nil {
		return nil, err
	}

	idTable := varint.NewWriter(len(ids) * 16)
	for _, id := range ids {
		idTable.WriteString(id)
	}

	fixedHeaderSize := headerSize
	if quant == format.QuantizationInt8 {
		fixedHeaderSize += 8
	}
	idTableOffset := uint64(fixedHeaderSize + len(compressedPacked))

	buf := make([]byte, 0, int(idTableOffset)+idTable.Len())
	buf = append(buf, Magic[:]...)
	buf = appendU16(buf, FormatVersion)
	buf = append(buf, byte(quant))
	buf = append(buf, byte(compression))
	buf = appendU32(buf, dims)
	buf = appendU32(buf, uint32(len(vectors)))
	buf = appendU64(buf, idTableOffset)
	if quant == format.QuantizationInt8 {
		buf = appendU32(buf, math.Float32bits(scale))
		buf = appendU32(buf, math.Float32bits(offset))
	}
	buf = append(buf, compressedPacked...)
	buf = append(buf, idTable.Bytes()...)

	return buf, nil
}

// Decode parses a quantized vector file produced by Encode.
func Decode(data []byte) (*File, error) {
	if len(data) < headerSize {
		return nil, errs.ErrTruncated
	}
	if [8]byte(data[:8]) != Magic {
		return nil, errs.ErrInvalidMagicNumber
	}

	version := le16(data[8:10])
	if version != FormatVersion {
		return nil, errs.ErrUnsupportedVersion
	}

	quant := format.Quantization(data[10])
	compression := format.CompressionType(data[11])
	dims := le32(data[12:16])
	vectorCount := le32(data[16:20])
	idTableOffset := le64(data[20:28])

	f := &File{
		Quantization: quant,
		Compression:  compression,
		Dimensions:   dims,
		VectorCount:  vectorCount,
	}

	packedStart := headerSize
	if quant == format.QuantizationInt8 {
		if len(data) < headerSize+8 {
			return nil, errs.ErrTruncated
		}
		f.Scale = math.Float32frombits(le32(data[28:32]))
		f.Offset = math.Float32frombits(le32(data[32:36]))
		packedStart = headerSize + 8
	}

	if uint64(len(data)) < idTableOffset {
		return nil, errs.ErrTruncated
	}

	codec, err := compress.GetCodec(compression)
	if err != nil {
		return nil, err
	}
	packed, err := codec.Decompress(data[packedStart:idTableOffset])
	if err != nil {
		return nil, err
	}
	f.Packed = packed

	r := varint.NewReader(data[idTableOffset:])
	ids := make([]string, 0, vectorCount)
	for i := uint32(0); i < vectorCount; i++ {
		id, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	f.IDs = ids

	return f, nil
}

func appendU16(b []byte, v uint16) []byte {
	return append(b, byte(v), byte(v>>8))
}

func appendU32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendU64(b []byte, v uint64) []byte {
	for i := 0; i < 8; i++ {
		b = append(b, byte(v>>(8*i)))
	}

	return b
}

func le16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}

	return v
}
