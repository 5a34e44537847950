// Package entityindex implements the entity offset index (§4.3): a sorted
// (entityId → offset, length) directory over a chunk blob, delta-varint
// encoded for compactness and CRC-guarded against corruption. A secondary
// in-memory acceleration map (mirroring the teacher's indexMaps[T] generic)
// gives the chunk store O(1) point lookups while the serialized form stays
// the sorted delta-varint list needed for compact storage and prefix scans.
package entityindex

import (
	"sort"

	"github.com/arloliu/graphdb-edge/errs"
	"github.com/arloliu/graphdb-edge/internal/hash"
	"github.com/arloliu/graphdb-edge/varint"
)

// FormatVersion is the current entity offset index format version.
const FormatVersion uint16 = 1

// Entry is one (entityId, offset, length) mapping into the owning blob.
type Entry struct {
	EntityID string
	Offset   uint64
	Length   uint64
}

// Index is a decoded entity offset index: entries in ascending entityId
// order plus an xxhash-keyed acceleration map for point lookups.
type Index struct {
	entries []Entry
	byHash  map[uint64]int
}

// Build sorts entries by entityId and constructs an Index ready for Encode or
// lookup. Negative offsets/lengths are not representable (uint64 inputs);
// Encode performs no overflow check on the offset delta.
func Build(entries []Entry) *Index {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].EntityID < sorted[j].EntityID })

	byHash := make(map[uint64]int, len(sorted))
	for i, e := range sorted {
		byHash[hash.ID(e.EntityID)] = i
	}

	return &Index{entries: sorted, byHash: byHash}
}

// Entries returns the sorted entry list. The returned slice must not be
// mutated by the caller.
func (idx *Index) Entries() []Entry {
	return idx.entries
}

// Lookup returns the entry for id, or false if absent. O(1) via the
// xxhash-keyed acceleration map.
func (idx *Index) Lookup(id string) (Entry, bool) {
	i, ok := idx.byHash[hash.ID(id)]
	if !ok || idx.entries[i].EntityID != id {
		return Entry{}, false
	}

	return idx.entries[i], true
}

// PrefixLookup returns a new slice of every entry whose EntityID begins with
// prefix, in sorted order. PrefixLookup("") returns every entry.
func (idx *Index) PrefixLookup(prefix string) []Entry {
	lo := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].EntityID >= prefix
	})

	upper := incrementPrefix(prefix)
	var hi int
	if upper == "" {
		hi = len(idx.entries)
	} else {
		hi = sort.Search(len(idx.entries), func(i int) bool {
			return idx.entries[i].EntityID >= upper
		})
	}

	out := make([]Entry, hi-lo)
	copy(out, idx.entries[lo:hi])

	return out
}

// incrementPrefix returns the lexicographically smallest string greater than
// every string starting with prefix, or "" if prefix's last byte is already
// 0xFF (meaning "end of keyspace", i.e. no upper bound).
func incrementPrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] != 0xFF {
			b[i]++
			return string(b[:i+1])
		}
	}

	return ""
}

// Encode serializes the index to its on-disk form: version + entryCount +
// delta-varint entries + CRC32.
func (idx *Index) Encode() []byte {
	w := varint.NewWriter(idx.EstimatedSize())
	w.WriteRaw([]byte{byte(FormatVersion), byte(FormatVersion >> 8)})
	w.WriteRaw([]byte{byte(len(idx.entries)), byte(len(idx.entries) >> 8)})

	var prevOffset uint64
	for _, e := range idx.entries {
		w.WriteUvarint(uint64(len(e.EntityID)))
		w.WriteRaw([]byte(e.EntityID))
		w.WriteZigZag(int64(e.Offset) - int64(prevOffset))
		w.WriteUvarint(e.Length)
		prevOffset = e.Offset
	}

	crc := varint.CRC32(w.Bytes())
	w.WriteRaw([]byte{byte(crc), byte(crc >> 8), byte(crc >> 16), byte(crc >> 24)})

	return w.Bytes()
}

// EstimatedSize returns the exact byte length Encode will produce, used by
// the combined-index encoder to pre-size directory entries (§4.3). It must
// mirror Encode's delta-offset encoding field for field, since the zigzag
// length of a delta can be shorter than the zigzag length of the absolute
// offset it's computed from.
func (idx *Index) EstimatedSize() int {
	size := 2 + 2 + 4 // version + entryCount + crc32
	var prevOffset uint64
	for _, e := range idx.entries {
		size += varintLen(uint64(len(e.EntityID))) + len(e.EntityID)
		size += varintLen(varint.ZigZagEncode(int64(e.Offset) - int64(prevOffset)))
		size += varintLen(e.Length)
		prevOffset = e.Offset
	}

	return size
}

func varintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}

	return n
}

// Decode parses an on-disk entity offset index produced by Encode, verifying
// the trailing CRC32.
func Decode(data []byte) (*Index, error) {
	if len(data) < 8 {
		return nil, errs.ErrTruncated
	}

	crcOffset := len(data) - 4
	wantCRC := le32(data[crcOffset:])
	gotCRC := varint.CRC32(data[:crcOffset])
	if wantCRC != gotCRC {
		return nil, errs.ErrChecksumMismatch
	}

	version := le16(data[0:2])
	if version != FormatVersion {
		return nil, errs.ErrUnsupportedVersion
	}
	entryCount := le16(data[2:4])

	r := varint.NewReader(data[4:crcOffset])
	entries := make([]Entry, 0, entryCount)
	var prevOffset uint64
	for i := uint16(0); i < entryCount; i++ {
		idLen, err := r.ReadUvarint()
		if err != nil {
			return nil, err
		}
		idBytes, err := r.ReadRaw(int(idLen))
		if err != nil {
			return nil, err
		}
		delta, err := r.ReadZigZag()
		if err != nil {
			return nil, err
		}
		length, err := r.ReadUvarint()
		if err != nil {
			return nil, err
		}

		newOffset := int64(prevOffset) + delta
		if newOffset < 0 {
			return nil, errs.ErrOffsetDeltaOverflow
		}

		entries = append(entries, Entry{
			EntityID: string(idBytes),
			Offset:   uint64(newOffset),
			Length:   length,
		})
		prevOffset = uint64(newOffset)
	}

	byHash := make(map[uint64]int, len(entries))
	for i, e := range entries {
		byHash[hash.ID(e.EntityID)] = i
	}

	return &Index{entries: entries, byHash: byHash}, nil
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
