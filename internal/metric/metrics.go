// Package metric computes exact diameter and average shortest path length
// of a graph and keeps per-source distance vectors so that successive
// near-identical graphs can be scored without full recomputation.
package metric

import (
	"errors"
	"fmt"
)

// Unreachable marks a vertex that a BFS did not reach.
const Unreachable int32 = -1

var ErrDisconnected = errors.New("graph is disconnected")

// DistanceVector holds hop counts from one source, indexed by vertex.
type DistanceVector []int32

// Metrics is the score of a graph. Two scores of the same order compare
// exactly on (Diameter, TotalDistance); TotalDistance is the sum over all
// ordered vertex pairs.
type Metrics struct {
	Order         int
	Diameter      int
	TotalDistance int64
	FarthestU     int
	FarthestV     int
}

// ASPL is the mean shortest path length over all ordered pairs.
func (m Metrics) ASPL() float64 {
	if m.Order < 2 {
		return 0
	}
	return float64(m.TotalDistance) / float64(m.Order*(m.Order-1))
}

// Compare orders scores lexicographically by diameter then distance sum.
// It returns -1 when m is better than other.
func (m Metrics) Compare(other Metrics) int {
	switch {
	case m.Diameter < other.Diameter:
		return -1
	case m.Diameter > other.Diameter:
		return 1
	case m.TotalDistance < other.TotalDistance:
		return -1
	case m.TotalDistance > other.TotalDistance:
		return 1
	}
	return 0
}

func (m Metrics) Better(other Metrics) bool { return m.Compare(other) < 0 }

func (m Metrics) String() string {
	return fmt.Sprintf("diameter=%d aspl=%.10f", m.Diameter, m.ASPL())
}
