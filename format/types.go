// Package format defines the small set of stable numeric enumerations shared
// across every on-blob binary layout in this repository: object type tags for
// triples, section types for the combined index container, and the
// compression codecs used by both the combined index and the quantized
// vector file.
//
// Keeping these enums in one leaf package with no further dependencies lets
// every encoder/decoder pair agree on wire-stable values without import
// cycles.
package format

type (
	ObjectType      uint8
	SectionType     uint8
	CompressionType uint8
	Quantization    uint8
)

const (
	// ObjectType values are the stable numeric discriminant for a Triple's
	// tagged-union object value (§3). REF is fixed at 10 by the spec.
	ObjectTypeNull      ObjectType = 0x0 // tombstone marker (logical delete)
	ObjectTypeString    ObjectType = 0x1
	ObjectTypeInt32     ObjectType = 0x2
	ObjectTypeInt64     ObjectType = 0x3
	ObjectTypeFloat64   ObjectType = 0x4
	ObjectTypeBool      ObjectType = 0x5
	ObjectTypeTimestamp ObjectType = 0x6
	ObjectTypeGeoPoint  ObjectType = 0x7
	ObjectTypeBinary    ObjectType = 0x8
	ObjectTypeRef       ObjectType = 10

	// SectionType identifies one of the five optional logical sections a
	// combined index may carry; the value is the on-disk directory
	// entry's indexType byte.
	SectionPOS SectionType = 0x1
	SectionOSP SectionType = 0x2
	SectionFTS SectionType = 0x3
	SectionGEO SectionType = 0x4
	SectionVEC SectionType = 0x5

	// CompressionType is the per-section / per-payload compression codec.
	CompressionNone CompressionType = 0x1
	CompressionGzip CompressionType = 0x2
	CompressionZstd CompressionType = 0x3
	CompressionS2   CompressionType = 0x4
	CompressionLZ4  CompressionType = 0x5

	// Quantization identifies the scalar representation of a quantized
	// vector file (§4.2).
	QuantizationFloat32 Quantization = 0x1
	QuantizationInt8    Quantization = 0x2
	QuantizationBinary  Quantization = 0x3
)

func (t ObjectType) String() string {
	switch t {
	case ObjectTypeNull:
		return "Null"
	case ObjectTypeString:
		return "String"
	case ObjectTypeInt32:
		return "Int32"
	case ObjectTypeInt64:
		return "Int64"
	case ObjectTypeFloat64:
		return "Float64"
	case ObjectTypeBool:
		return "Bool"
	case ObjectTypeTimestamp:
		return "Timestamp"
	case ObjectTypeGeoPoint:
		return "GeoPoint"
	case ObjectTypeBinary:
		return "Binary"
	case ObjectTypeRef:
		return "Ref"
	default:
		return "Unknown"
	}
}

func (s SectionType) String() string {
	switch s {
	case SectionPOS:
		return "POS"
	case SectionOSP:
		return "OSP"
	case SectionFTS:
		return "FTS"
	case SectionGEO:
		return "GEO"
	case SectionVEC:
		return "VEC"
	default:
		return "Unknown"
	}
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionGzip:
		return "Gzip"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

func (q Quantization) String() string {
	switch q {
	case QuantizationFloat32:
		return "Float32"
	case QuantizationInt8:
		return "Int8"
	case QuantizationBinary:
		return "Binary"
	default:
		return "Unknown"
	}
}

// BytesPerScalar returns the on-disk byte width of one packed scalar for the
// given quantization. BINARY packs 8 scalars per byte, so its width is
// fractional; callers computing a payload size should use
// (dimensions*vectorCount+7)/8 for BINARY rather than multiplying by this
// value directly.
func (q Quantization) BytesPerScalar() float64 {
	switch q {
	case QuantizationFloat32:
		return 4
	case QuantizationInt8:
		return 1
	case QuantizationBinary:
		return 0.125
	default:
		return 0
	}
}
