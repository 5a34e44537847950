package transport

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Framing selects the wire encoding for a CDC stream. Both encode the same
// in-memory message structs, satisfying §4.8's "binary framing is
// permitted but must parse identically" requirement.
type Framing int

const (
	// FramingJSON is the default: one UTF-8 JSON object per line.
	FramingJSON Framing = iota
	// FramingCBOR is the negotiated binary option: a 4-byte big-endian
	// length prefix followed by a canonical CBOR-encoded object.
	FramingCBOR
)

var cborMode = func() cbor.EncMode {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("transport: build canonical cbor mode: %v", err))
	}

	return mode
}()

const maxFrameSize = 16 * 1024 * 1024

// FrameWriter serializes messages onto a stream using the configured
// framing.
type FrameWriter struct {
	w       io.Writer
	framing Framing
}

// NewFrameWriter wraps w with the given framing.
func NewFrameWriter(w io.Writer, framing Framing) *FrameWriter {
	return &FrameWriter{w: w, framing: framing}
}

// WriteMessage encodes v and writes one complete frame.
func (fw *FrameWriter) WriteMessage(v any) error {
	switch fw.framing {
	case FramingCBOR:
		data, err := cborMode.Marshal(v)
		if err != nil {
			return fmt.Errorf("transport: cbor encode: %w", err)
		}

		var lenPrefix [4]byte
		binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(data)))
		if _, err := fw.w.Write(lenPrefix[:]); err != nil {
			return fmt.Errorf("transport: write frame length: %w", err)
		}
		if _, err := fw.w.Write(data); err != nil {
			return fmt.Errorf("transport: write frame body: %w", err)
		}

		return nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("transport: json encode: %w", err)
		}
		data = append(data, '\n')
		if _, err := fw.w.Write(data); err != nil {
			return fmt.Errorf("transport: write frame: %w", err)
		}

		return nil
	}
}

// FrameReader deserializes messages from a stream using the configured
// framing.
type FrameReader struct {
	framing Framing
	scanner *bufio.Scanner // used for FramingJSON
	r       io.Reader      // used for FramingCBOR
}

// NewFrameReader wraps r with the given framing.
func NewFrameReader(r io.Reader, framing Framing) *FrameReader {
	fr := &FrameReader{framing: framing, r: r}
	if framing == FramingJSON {
		fr.scanner = bufio.NewScanner(r)
		fr.scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	}

	return fr
}

// ReadRawMessage reads one frame and returns its undecoded body, letting a
// caller inspect a discriminant field (e.g. a "type" envelope) before
// choosing which struct to decode it into.
func (fr *FrameReader) ReadRawMessage() ([]byte, error) {
	switch fr.framing {
	case FramingCBOR:
		var lenPrefix [4]byte
		if _, err := io.ReadFull(fr.r, lenPrefix[:]); err != nil {
			return nil, fmt.Errorf("transport: read frame length: %w", err)
		}

		n := binary.BigEndian.Uint32(lenPrefix[:])
		if n > maxFrameSize {
			return nil, fmt.Errorf("transport: frame of %d bytes exceeds max frame size", n)
		}

		data := make([]byte, n)
		if _, err := io.ReadFull(fr.r, data); err != nil {
			return nil, fmt.Errorf("transport: read frame body: %w", err)
		}

		return data, nil
	default:
		if !fr.scanner.Scan() {
			if err := fr.scanner.Err(); err != nil {
				return nil, fmt.Errorf("transport: read frame: %w", err)
			}

			return nil, io.EOF
		}

		// scanner.Bytes() is only valid until the next Scan call.
		line := append([]byte(nil), fr.scanner.Bytes()...)

		return line, nil
	}
}

// Unmarshal decodes raw (as returned by ReadRawMessage) into v using the
// reader's configured framing.
func (fr *FrameReader) Unmarshal(raw []byte, v any) error {
	if fr.framing == FramingCBOR {
		if err := cbor.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("transport: cbor decode: %w", err)
		}

		return nil
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("transport: json decode: %w", err)
	}

	return nil
}

// ReadMessage reads one frame and decodes it into v.
func (fr *FrameReader) ReadMessage(v any) error {
	raw, err := fr.ReadRawMessage()
	if err != nil {
		return err
	}

	return fr.Unmarshal(raw, v)
}
