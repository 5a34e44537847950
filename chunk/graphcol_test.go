package chunk

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/graphdb-edge/errs"
	"github.com/arloliu/graphdb-edge/format"
	"github.com/arloliu/graphdb-edge/triple"
)

func sortedSample() []triple.Triple {
	return []triple.Triple{
		{Subject: "https://graph.example/a", Predicate: "name", Object: triple.ObjectValue{Type: format.ObjectTypeString, Str: "Alice"}, Timestamp: 100, TxID: fixedTxID},
		{Subject: "https://graph.example/a", Predicate: "age", Object: triple.ObjectValue{Type: format.ObjectTypeInt32, Int32: 30}, Timestamp: 101, TxID: fixedTxID},
		{Subject: "https://graph.example/b", Predicate: "name", Object: triple.ObjectValue{Type: format.ObjectTypeString, Str: "Bob"}, Timestamp: 105, TxID: fixedTxID},
		{Subject: "https://graph.example/c", Predicate: "name", Object: triple.ObjectValue{Type: format.ObjectTypeString, Str: "Carol"}, Timestamp: 110, TxID: fixedTxID},
	}
}

func TestGroupBySubject(t *testing.T) {
	groups := groupBySubject(sortedSample())
	require.Len(t, groups, 3)
	require.Equal(t, "https://graph.example/a", groups[0].subject)
	require.Equal(t, 2, groups[0].rowCount)
	require.Equal(t, 1, groups[1].rowCount)
	require.Equal(t, 1, groups[2].rowCount)
}

func TestEncodeDecodeGraphColRoundTrip(t *testing.T) {
	sample := sortedSample()
	stream, groups := encodeGraphCol(sample)
	require.Len(t, groups, 3)

	decoded, rowCounts, err := decodeGraphCol(stream)
	require.NoError(t, err)
	require.Len(t, decoded, len(sample))
	require.Equal(t, []int{2, 1, 1}, rowCounts)

	for i, want := range sample {
		got := decoded[i]
		require.Equal(t, want.Predicate, got.Predicate)
		require.Equal(t, want.Object, got.Object)
		require.Equal(t, want.Timestamp, got.Timestamp)
		require.Equal(t, want.TxID, got.TxID)
	}
}

func TestDecodeGraphColBadMagic(t *testing.T) {
	_, _, err := decodeGraphCol([]byte("not a graphcol stream at all"))
	require.ErrorIs(t, err, errs.ErrInvalidMagicNumber)
}

func TestDecodeGraphColTruncated(t *testing.T) {
	_, _, err := decodeGraphCol([]byte{0x01, 0x02})
	require.Error(t, err)
}

func TestEncodeGraphColSinglePredicatePool(t *testing.T) {
	sample := []triple.Triple{
		{Subject: "https://graph.example/a", Predicate: "name", Object: triple.ObjectValue{Type: format.ObjectTypeString, Str: "x"}, Timestamp: 1, TxID: fixedTxID},
		{Subject: "https://graph.example/a", Predicate: "name", Object: triple.ObjectValue{Type: format.ObjectTypeString, Str: "y"}, Timestamp: 2, TxID: fixedTxID},
	}
	stream, _ := encodeGraphCol(sample)
	decoded, _, err := decodeGraphCol(stream)
	require.NoError(t, err)
	require.Equal(t, "name", decoded[0].Predicate)
	require.Equal(t, "name", decoded[1].Predicate)
}
