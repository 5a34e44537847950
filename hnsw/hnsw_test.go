package hnsw

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/graphdb-edge/errs"
)

func sampleNodes() []Node {
	return []Node{
		{
			EntityID:  "https://graph.example/a",
			Predicate: "embedding",
			Vector:    []float32{0.1, 0.2, 0.3},
			Layers:    [][]string{{"https://graph.example/b"}},
		},
		{
			EntityID:  "https://graph.example/b",
			Predicate: "embedding",
			Vector:    []float32{0.4, 0.5, 0.6},
			Layers:    [][]string{{"https://graph.example/a"}, {}},
		},
		{
			EntityID:  "https://graph.example/c",
			Predicate: "embedding",
			Vector:    []float32{0.7, 0.8, 0.9},
			Layers:    [][]string{},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	nodes := sampleNodes()
	data, err := Encode(3, 16, 200, nodes)
	require.NoError(t, err)

	g, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, uint32(3), g.Dimensions)
	require.Equal(t, uint32(16), g.M)
	require.Equal(t, uint32(200), g.EfConstruction)
	require.Len(t, g.Nodes, 3)

	for i, want := range nodes {
		got := g.Nodes[i]
		require.Equal(t, want.EntityID, got.EntityID)
		require.Equal(t, want.Predicate, got.Predicate)
		require.Equal(t, want.Vector, got.Vector)
		require.Equal(t, want.Layers, got.Layers)
	}
}

func TestEntryPointIsMaxLayerCount(t *testing.T) {
	data, err := Encode(3, 16, 200, sampleNodes())
	require.NoError(t, err)
	g, err := Decode(data)
	require.NoError(t, err)

	require.Equal(t, 1, g.EntryPoint(), "node b has 2 layers, the most")
}

func TestEntryPointTieBrokenByInsertionOrder(t *testing.T) {
	nodes := []Node{
		{EntityID: "first", Vector: []float32{0}, Layers: [][]string{{}}},
		{EntityID: "second", Vector: []float32{0}, Layers: [][]string{{}}},
	}
	data, err := Encode(1, 16, 200, nodes)
	require.NoError(t, err)
	g, err := Decode(data)
	require.NoError(t, err)

	require.Equal(t, 0, g.EntryPoint())
}

func TestEmptyLayerSurvivesRoundTrip(t *testing.T) {
	nodes := []Node{
		{EntityID: "entry", Vector: []float32{1, 2}, Layers: [][]string{{"a", "b"}, {}}},
	}
	data, err := Encode(2, 16, 200, nodes)
	require.NoError(t, err)
	g, err := Decode(data)
	require.NoError(t, err)

	require.Len(t, g.Nodes[0].Layers, 2)
	require.Empty(t, g.Nodes[0].Layers[1])
}

func TestEncodeDimensionMismatch(t *testing.T) {
	nodes := []Node{{EntityID: "a", Vector: []float32{1, 2, 3}}}
	_, err := Encode(2, 16, 200, nodes)
	require.ErrorIs(t, err, errs.ErrDimensionMismatch)
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode([]byte{0x01, 0x02})
	require.ErrorIs(t, err, errs.ErrTruncated)
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	data, err := Encode(1, 16, 200, []Node{{EntityID: "a", Vector: []float32{1}}})
	require.NoError(t, err)
	data[0] = 0xFF
	_, err = Decode(data)
	require.ErrorIs(t, err, errs.ErrUnsupportedVersion)
}
