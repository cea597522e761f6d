package metric

import (
	"fmt"

	"graphgolf/internal/graph"
)

// sourceResult summarizes one BFS: eccentricity, the lowest-indexed vertex
// at that distance, and the distance sum.
type sourceResult struct {
	ecc     int32
	far     int32
	sum     int64
	reached int
}

// DistancesFrom runs a BFS from source. Unreachable vertices are reported
// with Unreachable and the error wraps ErrDisconnected.
func DistancesFrom(g *graph.Graph, source int) (DistanceVector, error) {
	if source < 0 || source >= g.Order() {
		return nil, fmt.Errorf("%w: source %d", graph.ErrVertexOutOfRange, source)
	}
	dist := make(DistanceVector, g.Order())
	res := bfsInto(g, source, dist, make([]int32, 0, g.Order()))
	if res.reached != g.Order() {
		return dist, fmt.Errorf("%w: %d of %d vertices reachable from %d", ErrDisconnected, res.reached, g.Order(), source)
	}
	return dist, nil
}

func bfsInto(g *graph.Graph, source int, dist DistanceVector, queue []int32) sourceResult {
	for i := range dist {
		dist[i] = Unreachable
	}
	dist[source] = 0
	queue = append(queue[:0], int32(source))
	res := sourceResult{far: int32(source)}
	for head := 0; head < len(queue); head++ {
		v := queue[head]
		next := dist[v] + 1
		for _, w := range g.Neighbors(int(v)) {
			if dist[w] != Unreachable {
				continue
			}
			dist[w] = next
			res.sum += int64(next)
			if next > res.ecc || (next == res.ecc && int32(w) < res.far) {
				res.ecc = next
				res.far = int32(w)
			}
			queue = append(queue, int32(w))
		}
	}
	res.reached = len(queue)
	return res
}
