package graph

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// edgeHash is the Zobrist key of an undirected edge. The graph fingerprint
// is the XOR of the keys of all its edges, so adding or removing an edge
// updates it in O(1).
func edgeHash(u, v int) uint64 {
	if u > v {
		u, v = v, u
	}
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(u))
	binary.LittleEndian.PutUint64(buf[8:], uint64(v))
	return xxhash.Sum64(buf[:])
}

// FingerprintOf computes the fingerprint of an edge list from scratch.
func FingerprintOf(edges []Edge) uint64 {
	var h uint64
	for _, e := range edges {
		h ^= edgeHash(e.U, e.V)
	}
	return h
}
