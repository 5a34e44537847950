package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObjectTypeString(t *testing.T) {
	require.Equal(t, "Ref", ObjectTypeRef.String())
	require.Equal(t, "Null", ObjectTypeNull.String())
	require.Equal(t, "Unknown", ObjectType(0xFE).String())
	require.EqualValues(t, 10, ObjectTypeRef)
}

func TestSectionTypeString(t *testing.T) {
	require.Equal(t, "VEC", SectionVEC.String())
	require.Equal(t, "Unknown", SectionType(0xFE).String())
}

func TestCompressionTypeString(t *testing.T) {
	require.Equal(t, "Gzip", CompressionGzip.String())
	require.Equal(t, "Unknown", CompressionType(0xFE).String())
}

func TestQuantizationBytesPerScalar(t *testing.T) {
	require.Equal(t, 4.0, QuantizationFloat32.BytesPerScalar())
	require.Equal(t, 1.0, QuantizationInt8.BytesPerScalar())
	require.Equal(t, 0.125, QuantizationBinary.BytesPerScalar())
	require.Equal(t, 0.0, Quantization(0xFE).BytesPerScalar())
}
