package enhance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"graphgolf/internal/graph"
	"graphgolf/internal/metric"
	"graphgolf/internal/tuning"
)

const (
	defaultBulkPercent = 10
	minBulkEdges       = 2
)

// BulkReplace removes a scheduled percentage of random edges and rematches
// the freed ports. Rematching first avoids the removed pairs and only falls
// back to reusing them when no other simple matching is found.
type BulkReplace struct {
	Rand        *rand.Rand
	Schedule    tuning.PercentSchedule
	BasePercent float64
	MaxAttempts int

	iteration int
	horizon   int
}

func (o *BulkReplace) Name() string {
	return "bulk_replace"
}

func (o *BulkReplace) ObserveIteration(iteration, horizon int) {
	o.iteration, o.horizon = iteration, horizon
}

// Percent is the share of edges the next proposal removes.
func (o *BulkReplace) Percent() float64 {
	base := o.BasePercent
	if base <= 0 {
		base = defaultBulkPercent
	}
	schedule := o.Schedule
	if schedule == nil {
		schedule = tuning.FixedPercentSchedule{}
	}
	return schedule.Percent(base, o.iteration, o.horizon)
}

func (o *BulkReplace) Propose(ctx context.Context, current *graph.Graph, _ metric.Metrics) (Candidate, error) {
	if o == nil || o.Rand == nil {
		return Candidate{}, errors.New("random source is required")
	}
	edges := current.Edges()
	k := int(math.Round(o.Percent() / 100 * float64(len(edges))))
	if k < minBulkEdges {
		k = minBulkEdges
	}
	if k > len(edges) {
		return Candidate{}, fmt.Errorf("%w: %d edges, need %d", ErrInvalidMutation, len(edges), k)
	}
	attempts := o.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}

	// partial Fisher-Yates: the first k edges are a uniform sample
	for i := 0; i < k; i++ {
		j := i + o.Rand.Intn(len(edges)-i)
		edges[i], edges[j] = edges[j], edges[i]
	}
	removed := make(map[graph.Edge]struct{}, k)
	stubs := make([]int, 0, 2*k)
	for _, e := range edges[:k] {
		removed[e] = struct{}{}
		stubs = append(stubs, e.U, e.V)
	}

	var pairs []graph.Edge
	for _, avoidRemoved := range []bool{true, false} {
		for attempt := 0; attempt < attempts && pairs == nil; attempt++ {
			if err := ctx.Err(); err != nil {
				return Candidate{}, err
			}
			pairs = matchStubs(current, stubs, removed, avoidRemoved, o.Rand)
		}
		if pairs != nil {
			break
		}
	}
	if pairs == nil {
		return Candidate{}, fmt.Errorf("%w: cannot rematch %d freed ports", ErrInvalidMutation, len(stubs))
	}

	changes := make([]graph.EdgeChange, 0, 2*k)
	for _, e := range edges[:k] {
		changes = append(changes, graph.Removed(e.U, e.V))
	}
	for _, e := range pairs {
		changes = append(changes, graph.Added(e.U, e.V))
	}
	return newCandidate(current, changes, o.Name())
}

// matchStubs pairs the freed ports into new simple edges. Each port takes
// the first compatible partner of a shuffled pool.
func matchStubs(current *graph.Graph, stubs []int, removed map[graph.Edge]struct{}, avoidRemoved bool, rng *rand.Rand) []graph.Edge {
	pool := append([]int(nil), stubs...)
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	used := make(map[graph.Edge]struct{}, len(pool)/2)
	pairs := make([]graph.Edge, 0, len(pool)/2)
	for len(pool) > 0 {
		s := pool[0]
		partner := -1
		for j := 1; j < len(pool); j++ {
			t := pool[j]
			if t == s {
				continue
			}
			e := graph.NewEdge(s, t)
			if _, dup := used[e]; dup {
				continue
			}
			_, wasRemoved := removed[e]
			if wasRemoved && avoidRemoved {
				continue
			}
			if !wasRemoved && current.HasEdge(s, t) {
				continue
			}
			partner = j
			break
		}
		if partner < 0 {
			return nil
		}
		pairs = append(pairs, graph.NewEdge(s, pool[partner]))
		used[graph.NewEdge(s, pool[partner])] = struct{}{}
		pool[partner] = pool[len(pool)-1]
		pool = pool[1 : len(pool)-1]
	}
	return pairs
}
