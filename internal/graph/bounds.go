package graph

// Bounds are Moore-style lower bounds for any graph of a given order and
// degree bound. No such graph has a smaller diameter or distance sum.
type Bounds struct {
	Diameter      int
	ASPL          float64
	TotalDistance int64
}

// LowerBounds fills BFS levels around a vertex as densely as the degree
// allows: level k holds at most degree*(degree-1)^(k-1) vertices.
func LowerBounds(order, degree int) (Bounds, error) {
	if err := ValidateParams(order, degree); err != nil {
		return Bounds{}, err
	}
	remaining := order - 1
	capacity := degree
	var perSource int64
	level := 0
	for remaining > 0 {
		level++
		take := capacity
		if take > remaining {
			take = remaining
		}
		perSource += int64(level) * int64(take)
		remaining -= take
		if capacity < order {
			capacity *= degree - 1
		}
	}
	return Bounds{
		Diameter:      level,
		ASPL:          float64(perSource) / float64(order-1),
		TotalDistance: perSource * int64(order),
	}, nil
}

// IsIdeal reports whether a graph with the given diameter and ordered-pair
// distance sum meets both bounds.
func (b Bounds) IsIdeal(diameter int, totalDistance int64) bool {
	return diameter <= b.Diameter && totalDistance <= b.TotalDistance
}
