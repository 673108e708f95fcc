// Package traverse implements the Chain Traverser (spec.md §4.5, C7): it
// locates the anchor event for a query, then walks backward through
// cause_id and forward through children_of, defending against broken
// links and cycles. Grounded on the teacher's graph-walk idiom in
// internal/graph/activation.go (visited-set guarded traversal with
// best-effort continuation on anomaly), generalized to the single
// cause_id self-referential edge spec.md §3 defines.
package traverse

import (
	"github.com/sorrowscry86/causal-memory-core/internal/logging"
	"github.com/sorrowscry86/causal-memory-core/internal/store"
	"github.com/sorrowscry86/causal-memory-core/internal/vectormath"
)

const subsystem = "traverse"

// Store is the narrow slice of the Event Store the traverser needs.
type Store interface {
	AllForScan() ([]*store.Event, error)
	GetByID(id int64) (*store.Event, error)
	ChildrenOf(id int64) ([]*store.Event, error)
	VecAvailable() bool
	NearestByEmbedding(embedding []float32, k int) ([]*store.Event, error)
}

// Anchor returns the event with maximum cosine similarity to the query
// embedding, provided it clears anchorThreshold. The second return value
// is false when no event in the store clears the threshold (spec.md §4.5's
// "no relevant context" case). When the store's sqlite-vec accelerator is
// available, the top match is fetched via a vec0 KNN query instead of a
// full in-process scan (spec.md §6.4's accelerated exact scan).
func Anchor(s Store, queryEmbedding []float32, anchorThreshold float64) (*store.Event, bool, error) {
	if s.VecAvailable() {
		return anchorViaVec(s, queryEmbedding, anchorThreshold)
	}
	return anchorViaScan(s, queryEmbedding, anchorThreshold)
}

func anchorViaVec(s Store, queryEmbedding []float32, anchorThreshold float64) (*store.Event, bool, error) {
	nearest, err := s.NearestByEmbedding(queryEmbedding, 1)
	if err != nil {
		return nil, false, err
	}
	if len(nearest) == 0 {
		return nil, false, nil
	}
	best := nearest[0]
	if vectormath.CosineSimilarity(queryEmbedding, best.Embedding) < anchorThreshold {
		return nil, false, nil
	}
	return best, true, nil
}

func anchorViaScan(s Store, queryEmbedding []float32, anchorThreshold float64) (*store.Event, bool, error) {
	events, err := s.AllForScan()
	if err != nil {
		return nil, false, err
	}

	var best *store.Event
	var bestSim float64
	for _, ev := range events {
		sim := vectormath.CosineSimilarity(queryEmbedding, ev.Embedding)
		if best == nil || sim > bestSim {
			best, bestSim = ev, sim
		}
	}
	if best == nil || bestSim < anchorThreshold {
		return nil, false, nil
	}
	return best, true, nil
}

// Chain walks backward from anchor to its root, then forward up to
// maxConsequenceDepth hops, returning the full ordered chain in strict
// chronological order (root ... anchor ... consequences).
func Chain(s Store, anchor *store.Event, maxConsequenceDepth int) ([]*store.Event, error) {
	backward, err := walkBackward(s, anchor)
	if err != nil {
		return nil, err
	}
	forward := walkForward(s, anchor, maxConsequenceDepth, backward)

	chain := make([]*store.Event, 0, len(backward)+len(forward))
	for i := len(backward) - 1; i >= 0; i-- {
		chain = append(chain, backward[i])
	}
	chain = append(chain, forward...)
	return chain, nil
}

// walkBackward returns [anchor, parent, grandparent, ...] stopping at a
// root, a missing row (WARN, partial chain returned), or a revisited id
// (CRITICAL, partial chain returned).
func walkBackward(s Store, anchor *store.Event) ([]*store.Event, error) {
	visited := map[int64]bool{anchor.ID: true}
	chain := []*store.Event{anchor}

	current := anchor
	for current.CauseID != nil {
		nextID := *current.CauseID
		if visited[nextID] {
			logging.Critical(subsystem, "cycle detected: event %d revisits already-visited cause %d", current.ID, nextID)
			break
		}

		next, err := s.GetByID(nextID)
		if err != nil {
			return nil, err
		}
		if next == nil {
			logging.Warn(subsystem, "broken cause link: event %d references missing cause %d", current.ID, nextID)
			break
		}

		visited[nextID] = true
		chain = append(chain, next)
		current = next
	}
	return chain, nil
}

// walkForward extends forward from anchor by picking the oldest child at
// each step, up to maxConsequenceDepth hops, guarded by the same
// visited-set protection used on the backward half of the chain.
func walkForward(s Store, anchor *store.Event, maxConsequenceDepth int, alreadyVisited []*store.Event) []*store.Event {
	visited := make(map[int64]bool, len(alreadyVisited))
	for _, ev := range alreadyVisited {
		visited[ev.ID] = true
	}

	var forward []*store.Event
	current := anchor
	for depth := 0; depth < maxConsequenceDepth; depth++ {
		children, err := s.ChildrenOf(current.ID)
		if err != nil || len(children) == 0 {
			break
		}
		child := children[0] // oldest first, per ChildrenOf's ordering contract
		if visited[child.ID] {
			logging.Critical(subsystem, "cycle detected: forward traversal revisits event %d", child.ID)
			break
		}
		visited[child.ID] = true
		forward = append(forward, child)
		current = child
	}
	return forward
}
