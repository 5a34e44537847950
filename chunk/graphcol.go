package chunk

import (
	"github.com/arloliu/graphdb-edge/errs"
	"github.com/arloliu/graphdb-edge/internal/collision"
	"github.com/arloliu/graphdb-edge/internal/hash"
	"github.com/arloliu/graphdb-edge/triple"
	"github.com/arloliu/graphdb-edge/varint"
)

// graphColMagic identifies a GraphCol column stream: "GCOL".
var graphColMagic = [4]byte{'G', 'C', 'O', 'L'}

const graphColColumnCount = 4

// subjectGroup is one distinct subject's contiguous run of rows, in the
// sorted order the GraphCol stream and the following entity offset index
// share.
type subjectGroup struct {
	subject  string
	rowCount int
}

// encodeGraphCol serializes triples (already sorted by subject, §4.4) into
// the four-column GraphCol stream: a subject column of run-length-collapsed
// xxhash deltas, a predicate string pool plus per-row indices, a tagged
// object column, and a delta-of-delta timestamp column with raw ULID txIds.
//
// It returns the encoded stream and the ordered list of subject groups,
// which the caller uses to build the trailing entity offset index (the
// group's position in row-space becomes that index entry's Offset/Length).
func encodeGraphCol(triples []triple.Triple) ([]byte, []subjectGroup) {
	groups := groupBySubject(triples)

	subjectCol := encodeSubjectColumn(groups)
	predicateCol := encodePredicateColumn(triples)
	objectCol := encodeObjectColumn(triples)
	timestampCol := encodeTimestampColumn(triples)

	columns := [][]byte{subjectCol, predicateCol, objectCol, timestampCol}

	header := varint.NewWriter(32)
	header.WriteRaw(graphColMagic[:])
	header.WriteRaw([]byte{graphColColumnCount})
	for _, col := range columns {
		header.WriteUvarint(uint64(len(col))) // uncompressed length
		header.WriteUvarint(uint64(len(col))) // compressed length (GraphCol itself applies none)
	}

	out := make([]byte, 0, header.Len()+len(subjectCol)+len(predicateCol)+len(objectCol)+len(timestampCol))
	out = append(out, header.Bytes()...)
	for _, col := range columns {
		out = append(out, col...)
	}

	return out, groups
}

func groupBySubject(triples []triple.Triple) []subjectGroup {
	var groups []subjectGroup
	for _, t := range triples {
		if len(groups) > 0 && groups[len(groups)-1].subject == t.Subject {
			groups[len(groups)-1].rowCount++

			continue
		}
		groups = append(groups, subjectGroup{subject: t.Subject, rowCount: 1})
	}

	return groups
}

func encodeSubjectColumn(groups []subjectGroup) []byte {
	w := varint.NewWriter(len(groups) * 8)
	w.WriteUvarint(uint64(len(groups)))

	tracker := collision.NewTracker()
	var prevHash int64
	for _, g := range groups {
		h := hash.ID(g.subject)
		// Collisions are informational only here: the actual subject string
		// is recovered from the entity offset index, not this column.
		_ = tracker.TrackString(g.subject, h)

		w.WriteZigZag(int64(h) - prevHash)
		prevHash = int64(h)
		w.WriteUvarint(uint64(g.rowCount))
	}

	return w.Bytes()
}

func encodePredicateColumn(triples []triple.Triple) []byte {
	pool := make([]string, 0)
	index := make(map[string]int)

	w := varint.NewWriter(len(triples) * 4)
	poolWriter := varint.NewWriter(64)

	for _, t := range triples {
		idx, ok := index[t.Predicate]
		if !ok {
			idx = len(pool)
			pool = append(pool, t.Predicate)
			index[t.Predicate] = idx
			poolWriter.WriteString(t.Predicate)
		}
		w.WriteUvarint(uint64(idx))
	}

	out := varint.NewWriter(poolWriter.Len() + w.Len() + 8)
	out.WriteUvarint(uint64(len(pool)))
	out.WriteRaw(poolWriter.Bytes())
	out.WriteRaw(w.Bytes())

	return out.Bytes()
}

func encodeObjectColumn(triples []triple.Triple) []byte {
	w := varint.NewWriter(len(triples) * 16)
	for _, t := range triples {
		triple.EncodeObject(w, t.Object)
	}

	return w.Bytes()
}

func encodeTimestampColumn(triples []triple.Triple) []byte {
	w := varint.NewWriter(len(triples) * 24)
	var prevTS int64
	var prevDelta int64
	for _, t := range triples {
		ts := int64(t.Timestamp)
		delta := ts - prevTS
		w.WriteZigZag(delta - prevDelta)
		prevDelta = delta
		prevTS = ts

		w.WriteRaw([]byte(t.TxID)) // 26-byte Crockford-base32 ULID string
	}

	return w.Bytes()
}

// decodeGraphCol reverses encodeGraphCol, reconstructing every triple field
// except Subject, which the caller fills in from the accompanying entity
// offset index using the returned per-group row counts.
func decodeGraphCol(data []byte) ([]triple.Triple, []int, error) {
	r := varint.NewReader(data)
	magic, err := r.ReadRaw(4)
	if err != nil {
		return nil, nil, err
	}
	if [4]byte(magic) != graphColMagic {
		return nil, nil, errs.ErrInvalidMagicNumber
	}
	colCountB, err := r.ReadRaw(1)
	if err != nil {
		return nil, nil, err
	}
	if colCountB[0] != graphColColumnCount {
		return nil, nil, errs.ErrInvalidSectionLayout
	}

	type colLen struct{ uncompressed, compressed uint64 }
	lens := make([]colLen, graphColColumnCount)
	for i := range lens {
		u, err := r.ReadUvarint()
		if err != nil {
			return nil, nil, err
		}
		c, err := r.ReadUvarint()
		if err != nil {
			return nil, nil, err
		}
		lens[i] = colLen{u, c}
	}

	cols := make([][]byte, graphColColumnCount)
	for i, l := range lens {
		b, err := r.ReadRaw(int(l.compressed))
		if err != nil {
			return nil, nil, err
		}
		cols[i] = b
	}

	rowCounts, err := decodeSubjectColumn(cols[0])
	if err != nil {
		return nil, nil, err
	}

	totalRows := 0
	for _, c := range rowCounts {
		totalRows += c
	}

	predicates, err := decodePredicateColumn(cols[1], totalRows)
	if err != nil {
		return nil, nil, err
	}

	objects, err := decodeObjectColumn(cols[2], totalRows)
	if err != nil {
		return nil, nil, err
	}

	timestamps, txIDs, err := decodeTimestampColumn(cols[3], totalRows)
	if err != nil {
		return nil, nil, err
	}

	triples := make([]triple.Triple, totalRows)
	for i := 0; i < totalRows; i++ {
		triples[i] = triple.Triple{
			Predicate: predicates[i],
			Object:    objects[i],
			Timestamp: timestamps[i],
			TxID:      txIDs[i],
		}
	}

	return triples, rowCounts, nil
}

func decodeSubjectColumn(data []byte) ([]int, error) {
	r := varint.NewReader(data)
	groupCount, err := r.ReadUvarint()
	if err != nil {
		return nil, err
	}

	rowCounts := make([]int, groupCount)
	for i := uint64(0); i < groupCount; i++ {
		if _, err := r.ReadZigZag(); err != nil { // hash delta, unused on decode
			return nil, err
		}
		rc, err := r.ReadUvarint()
		if err != nil {
			return nil, err
		}
		rowCounts[i] = int(rc)
	}

	return rowCounts, nil
}

func decodePredicateColumn(data []byte, totalRows int) ([]string, error) {
	r := varint.NewReader(data)
	poolSize, err := r.ReadUvarint()
	if err != nil {
		return nil, err
	}

	pool := make([]string, poolSize)
	for i := uint64(0); i < poolSize; i++ {
		s, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		pool[i] = s
	}

	out := make([]string, totalRows)
	for i := 0; i < totalRows; i++ {
		idx, err := r.ReadUvarint()
		if err != nil {
			return nil, err
		}
		if int(idx) >= len(pool) {
			return nil, errs.ErrInconsistentDirectory
		}
		out[i] = pool[idx]
	}

	return out, nil
}

func decodeObjectColumn(data []byte, totalRows int) ([]triple.ObjectValue, error) {
	r := varint.NewReader(data)
	out := make([]triple.ObjectValue, totalRows)
	for i := 0; i < totalRows; i++ {
		o, err := triple.DecodeObject(r)
		if err != nil {
			return nil, err
		}
		out[i] = o
	}

	return out, nil
}

func decodeTimestampColumn(data []byte, totalRows int) ([]uint64, []string, error) {
	r := varint.NewReader(data)
	timestamps := make([]uint64, totalRows)
	txIDs := make([]string, totalRows)

	var prevTS, prevDelta int64
	for i := 0; i < totalRows; i++ {
		deltaOfDelta, err := r.ReadZigZag()
		if err != nil {
			return nil, nil, err
		}
		delta := prevDelta + deltaOfDelta
		ts := prevTS + delta
		prevDelta = delta
		prevTS = ts
		timestamps[i] = uint64(ts)

		txidBytes, err := r.ReadRaw(triple.ULIDLength)
		if err != nil {
			return nil, nil, err
		}
		txIDs[i] = string(txidBytes)
	}

	return timestamps, txIDs, nil
}
