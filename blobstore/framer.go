package blobstore

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/orcaman/writerseeker"
)

// frameHeaderSize is the fixed-size prefix written before the frame count
// is known: a 4-byte magic and a 4-byte frame count patched in once the
// builder is sealed.
const frameHeaderSize = 8

var framerMagic = [4]byte{'G', 'F', 'R', 'M'}

// Framer assembles several chunk blobs into a single multi-frame blob
// (one physical Put for several logical chunks), each frame prefixed by
// its length. It buffers in memory and seeks back to patch the frame
// count once sealed, the way a streaming writer defers a length-prefixed
// header until the body is fully known.
type Framer struct {
	ws     *writerseeker.WriterSeeker
	count  uint32
	sealed bool
}

// NewFramer starts an empty multi-frame blob.
func NewFramer() *Framer {
	f := &Framer{ws: &writerseeker.WriterSeeker{}}
	// Reserve the header; patched by Seal.
	var hdr [frameHeaderSize]byte
	copy(hdr[:4], framerMagic[:])
	f.ws.Write(hdr[:])

	return f
}

// AddFrame appends data as the next frame.
func (f *Framer) AddFrame(data []byte) error {
	if f.sealed {
		return fmt.Errorf("blobstore: framer already sealed")
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := f.ws.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("blobstore: write frame length: %w", err)
	}
	if _, err := f.ws.Write(data); err != nil {
		return fmt.Errorf("blobstore: write frame: %w", err)
	}
	f.count++

	return nil
}

// Seal patches the frame count into the reserved header and returns the
// complete multi-frame blob.
func (f *Framer) Seal() ([]byte, error) {
	if _, err := f.ws.Seek(4, io.SeekStart); err != nil {
		return nil, fmt.Errorf("blobstore: seek to patch frame count: %w", err)
	}

	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], f.count)
	if _, err := f.ws.Write(countBuf[:]); err != nil {
		return nil, fmt.Errorf("blobstore: patch frame count: %w", err)
	}

	f.sealed = true

	return io.ReadAll(f.ws.BytesReader())
}

// UnframeAll splits a blob produced by Framer back into its component
// frames.
func UnframeAll(blob []byte) ([][]byte, error) {
	if len(blob) < frameHeaderSize {
		return nil, fmt.Errorf("blobstore: blob shorter than frame header")
	}
	if [4]byte(blob[:4]) != framerMagic {
		return nil, fmt.Errorf("blobstore: bad framer magic")
	}

	count := binary.LittleEndian.Uint32(blob[4:8])
	frames := make([][]byte, 0, count)
	pos := frameHeaderSize

	for i := uint32(0); i < count; i++ {
		if pos+4 > len(blob) {
			return nil, fmt.Errorf("blobstore: truncated frame length at frame %d", i)
		}

		n := binary.LittleEndian.Uint32(blob[pos : pos+4])
		pos += 4

		if pos+int(n) > len(blob) {
			return nil, fmt.Errorf("blobstore: truncated frame body at frame %d", i)
		}

		frames = append(frames, blob[pos:pos+int(n)])
		pos += int(n)
	}

	return frames, nil
}
