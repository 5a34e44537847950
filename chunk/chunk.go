// Package chunk implements the chunk store (§3 Chunk, §4.4): an in-memory
// write buffer that accumulates triples per namespace, and a sealing
// pipeline that encodes a flushed buffer into a content-addressed blob —
// a GraphCol column stream followed by the entity offset index that
// recovers the subject strings the columns elide.
package chunk

import (
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"lukechampine.com/blake3"

	"github.com/arloliu/graphdb-edge/entityindex"
	"github.com/arloliu/graphdb-edge/errs"
	"github.com/arloliu/graphdb-edge/triple"
	"github.com/arloliu/graphdb-edge/varint"
)

// MaxSizeBytes is the sealed-chunk size budget (§4.4). A chunk whose sealed
// blob would exceed this is rejected rather than silently oversized.
const MaxSizeBytes = 2 * 1024 * 1024

// FlushThresholdBytes is the buffered-triple estimate at which ShouldFlush
// recommends sealing, leaving headroom under MaxSizeBytes for encoding
// overhead (column headers, string pools, the trailing entity index).
const FlushThresholdBytes = MaxSizeBytes - MaxSizeBytes/8

// estimatedTripleBytes is a rough per-triple size used only to decide when
// to flush; the real size is whatever Seal's encoder produces.
const estimatedTripleBytes = 64

// Chunk is a namespace's open write buffer. Appends accumulate under a
// mutex; Flush swaps the buffer out atomically and seals the swapped-out
// triples without blocking further appends.
type Chunk struct {
	mu        sync.Mutex
	namespace string
	buf       []triple.Triple
}

// New creates an empty chunk buffer for namespace.
func New(namespace string) *Chunk {
	return &Chunk{namespace: namespace}
}

// Namespace returns the owning namespace.
func (c *Chunk) Namespace() string {
	return c.namespace
}

// Append validates and buffers t. It does not block on sealing.
func (c *Chunk) Append(t triple.Triple) error {
	if err := t.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.buf = append(c.buf, t)
	c.mu.Unlock()

	return nil
}

// Len returns the number of currently buffered triples.
func (c *Chunk) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.buf)
}

// ShouldFlush reports whether the buffer has grown large enough that it
// should be sealed, based on a per-triple size estimate.
func (c *Chunk) ShouldFlush() bool {
	c.mu.Lock()
	n := len(c.buf)
	c.mu.Unlock()

	return n*estimatedTripleBytes >= FlushThresholdBytes
}

// Flush swaps out the current buffer and seals it into a Sealed chunk. A
// failed seal restores the swapped-out triples (prepended ahead of any
// triples appended while sealing was in flight) so no data is lost. Flush
// on an empty buffer returns (nil, nil).
func (c *Chunk) Flush() (*Sealed, error) {
	c.mu.Lock()
	swapped := c.buf
	c.buf = nil
	c.mu.Unlock()

	if len(swapped) == 0 {
		return nil, nil
	}

	sealed, err := seal(c.namespace, swapped)
	if err != nil {
		c.mu.Lock()
		c.buf = append(swapped, c.buf...)
		c.mu.Unlock()

		return nil, err
	}

	return sealed, nil
}

// Sealed is a chunk that has been encoded to its final, immutable blob form.
type Sealed struct {
	ChunkID      string // hex blake3 digest of Blob, content-addressed
	Namespace    string
	Blob         []byte
	TripleCount  int
	MinTimestamp uint64
	MaxTimestamp uint64
	SizeBytes    int
	CreatedAt    time.Time
}

// seal sorts triples by subject (the order GraphCol's row-range grouping
// requires), encodes the GraphCol column stream, appends the entity offset
// index built from the resulting subject groups, and content-addresses the
// result with blake3.
func seal(namespace string, triples []triple.Triple) (*Sealed, error) {
	sorted := make([]triple.Triple, len(triples))
	copy(sorted, triples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Subject < sorted[j].Subject })

	colStream, groups := encodeGraphCol(sorted)

	entries := make([]entityindex.Entry, 0, len(groups))
	row := 0
	for _, g := range groups {
		entries = append(entries, entityindex.Entry{
			EntityID: g.subject,
			Offset:   uint64(row), // row-range start, not a byte offset (§4.4)
			Length:   uint64(g.rowCount),
		})
		row += g.rowCount
	}
	idx := entityindex.Build(entries)
	idxBytes := idx.Encode()

	blob := make([]byte, 0, len(colStream)+len(idxBytes))
	blob = append(blob, colStream...)
	blob = append(blob, idxBytes...)

	if len(blob) > MaxSizeBytes {
		return nil, errs.ErrChunkSizeExceeded
	}

	minTS, maxTS := sorted[0].Timestamp, sorted[0].Timestamp
	for _, t := range sorted {
		if t.Timestamp < minTS {
			minTS = t.Timestamp
		}
		if t.Timestamp > maxTS {
			maxTS = t.Timestamp
		}
	}

	digest := blake3.Sum256(blob)

	return &Sealed{
		ChunkID:      hex.EncodeToString(digest[:]),
		Namespace:    namespace,
		Blob:         blob,
		TripleCount:  len(sorted),
		MinTimestamp: minTS,
		MaxTimestamp: maxTS,
		SizeBytes:    len(blob),
		CreatedAt:    time.Now(),
	}, nil
}

// Open decodes a previously sealed chunk blob back into its triples, filling
// each triple's Subject from the entity offset index trailing the GraphCol
// stream, and returns that index as well.
func Open(blob []byte) ([]triple.Triple, *entityindex.Index, error) {
	triples, rowCounts, err := decodeGraphCol(blob)
	if err != nil {
		return nil, nil, err
	}

	colStreamLen := graphColStreamLen(blob)
	idx, err := entityindex.Decode(blob[colStreamLen:])
	if err != nil {
		return nil, nil, err
	}

	entries := idx.Entries()
	if len(entries) != len(rowCounts) {
		return nil, nil, errs.ErrInconsistentDirectory
	}

	row := 0
	for _, e := range entries {
		for i := 0; i < int(e.Length); i++ {
			triples[row].Subject = e.EntityID
			row++
		}
	}

	return triples, idx, nil
}

// graphColStreamLen re-derives the byte length of the GraphCol stream at the
// front of blob by replaying its self-describing header, so the trailing
// entity offset index can be sliced off without a separate length prefix.
func graphColStreamLen(blob []byte) int {
	const headerPrefix = 4 + 1 // magic + column count
	r := varint.NewReader(blob[headerPrefix:])

	total := 0
	for i := 0; i < graphColColumnCount; i++ {
		r.ReadUvarint() // uncompressed length, unused here
		compressed, _ := r.ReadUvarint()
		total += int(compressed)
	}

	return headerPrefix + r.Pos() + total
}
