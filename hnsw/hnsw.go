// Package hnsw encodes and decodes the VEC section's HNSW graph layout
// (§4.6): a small fixed header followed by one variable-length block per
// graph node — its entity id, predicate, raw float32 vector, and its
// per-layer neighbor lists.
package hnsw

import (
	"math"

	"github.com/arloliu/graphdb-edge/errs"
	"github.com/arloliu/graphdb-edge/varint"
)

// FormatVersion is the current HNSW section format version.
const FormatVersion uint16 = 1

// Node is one entry in the HNSW graph: the vector it represents plus its
// neighbor list at every layer it participates in. Layers[0] is the base
// layer; an empty neighbor list at any layer (including the top layer of
// the entry point) is valid.
type Node struct {
	EntityID  string
	Predicate string
	Vector    []float32
	Layers    [][]string // Layers[i] = neighbor entity IDs at layer i
}

// Graph is a decoded HNSW section.
type Graph struct {
	Dimensions     uint32
	M              uint32
	EfConstruction uint32
	Nodes          []Node
}

// Encode serializes nodes (in the given order, which Decode preserves and
// EntryPoint uses for tie-breaking) into the VEC section's HNSW byte layout.
func Encode(dimensions, m, efConstruction uint32, nodes []Node) ([]byte, error) {
	w := varint.NewWriter(1024)
	w.WriteRaw(u16le(FormatVersion))
	w.WriteRaw(u32le(dimensions))
	w.WriteRaw(u32le(m))
	w.WriteRaw(u32le(efConstruction))
	w.WriteRaw(u32le(uint32(len(nodes))))

	for _, n := range nodes {
		if uint32(len(n.Vector)) != dimensions {
			return nil, errs.ErrDimensionMismatch
		}

		w.WriteString(n.EntityID)
		w.WriteString(n.Predicate)
		for _, f := range n.Vector {
			w.WriteRaw(u32le(math.Float32bits(f)))
		}
		w.WriteUvarint(uint64(len(n.Layers)))
		for _, layer := range n.Layers {
			w.WriteUvarint(uint64(len(layer)))
			for _, neighbor := range layer {
				w.WriteString(neighbor)
			}
		}
	}

	return w.Bytes(), nil
}

// Decode reverses Encode.
func Decode(data []byte) (*Graph, error) {
	if len(data) < 18 {
		return nil, errs.ErrTruncated
	}

	version := le16(data[0:2])
	if version != FormatVersion {
		return nil, errs.ErrUnsupportedVersion
	}
	dimensions := le32(data[2:6])
	m := le32(data[6:10])
	efConstruction := le32(data[10:14])
	entryCount := le32(data[14:18])

	r := varint.NewReader(data[18:])
	nodes := make([]Node, entryCount)
	for i := uint32(0); i < entryCount; i++ {
		entityID, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		predicate, err := r.ReadString()
		if err != nil {
			return nil, err
		}

		vector := make([]float32, dimensions)
		for d := uint32(0); d < dimensions; d++ {
			b, err := r.ReadRaw(4)
			if err != nil {
				return nil, err
			}
			vector[d] = math.Float32frombits(le32(b))
		}

		layerCount, err := r.ReadUvarint()
		if err != nil {
			return nil, err
		}
		layers := make([][]string, layerCount)
		for l := uint64(0); l < layerCount; l++ {
			neighborCount, err := r.ReadUvarint()
			if err != nil {
				return nil, err
			}
			neighbors := make([]string, neighborCount)
			for k := uint64(0); k < neighborCount; k++ {
				nb, err := r.ReadString()
				if err != nil {
					return nil, err
				}
				neighbors[k] = nb
			}
			layers[l] = neighbors
		}

		nodes[i] = Node{EntityID: entityID, Predicate: predicate, Vector: vector, Layers: layers}
	}

	return &Graph{Dimensions: dimensions, M: m, EfConstruction: efConstruction, Nodes: nodes}, nil
}

// EntryPoint returns the index into g.Nodes of the graph's entry point: the
// node with the most layers, ties broken by earliest stored position.
func (g *Graph) EntryPoint() int {
	best := 0
	for i := 1; i < len(g.Nodes); i++ {
		if len(g.Nodes[i].Layers) > len(g.Nodes[best].Layers) {
			best = i
		}
	}

	return best
}

func u16le(v uint16) []byte { return []byte{byte(v), byte(v >> 8)} }

func u32le(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
