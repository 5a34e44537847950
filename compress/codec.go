package compress

import (
	"fmt"

	"github.com/arloliu/graphdb-edge/format"
)

// Compressor compresses a section or vector payload after it has already
// been serialized by its own format-specific encoder.
type Compressor interface {
	// Compress returns the compressed form of data. NoOpCompressor returns
	// data itself, so the result may share memory with the input. The input
	// slice is never modified.
	Compress(data []byte) ([]byte, error)
}

// Decompressor reverses a Compressor. The caller is expected to already
// know the original uncompressed length from the container's directory
// entry (§4.5) or vector header (§4.2); decompression does not have to
// guess it.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions; every concrete compressor in this package
// implements it.
type Codec interface {
	Compressor
	Decompressor
}

// CreateCodec builds a Codec for the given compression type. target is a
// short human-readable label (e.g. "section" or "vector payload") used only
// to annotate the error on an unrecognized type.
func CreateCodec(compressionType format.CompressionType, target string) (Codec, error) {
	codec, err := GetCodec(compressionType)
	if err != nil {
		return nil, fmt.Errorf("invalid %s compression: %w", target, err)
	}

	return codec, nil
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone: NewNoOpCompressor(),
	format.CompressionGzip: NewGzipCompressor(),
	format.CompressionZstd: NewZstdCompressor(),
	format.CompressionS2:   NewS2Compressor(),
	format.CompressionLZ4:  NewLZ4Compressor(),
}

// GetCodec retrieves a built-in Codec for the specified compression type.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
}
