// Package candidate implements the Candidate Finder (spec.md §4.3, C5):
// given a new event's embedding, it returns the prior events most likely
// to be its direct cause. Grounded on the teacher's retrieval scoring
// pattern in internal/graph/activation.go (score-then-sort-then-truncate
// over an in-memory slice), generalized from activation decay to the
// cosine-similarity-plus-time-window rule spec.md §4.3 specifies.
package candidate

import (
	"sort"
	"time"

	"github.com/sorrowscry86/causal-memory-core/internal/store"
	"github.com/sorrowscry86/causal-memory-core/internal/vectormath"
)

// Candidate pairs a prior event with its similarity to the new event.
type Candidate struct {
	Event      *store.Event
	Similarity float64
}

// Params bundles the tunables from spec.md §4.3/§6.3.
type Params struct {
	MaxPotentialCauses  int
	SimilarityThreshold float64
	TimeDecayHours      float64
}

// Find returns up to params.MaxPotentialCauses prior events that might be
// the direct cause of an event with the given embedding, ordered by
// similarity descending. pool is the set of candidate events to consider
// (already time-windowed by the caller via store.RecentWithin).
func Find(pool []*store.Event, embedding []float32, params Params) []Candidate {
	var scored []Candidate
	for _, ev := range pool {
		sim := vectormath.CosineSimilarity(embedding, ev.Embedding)
		if sim >= params.SimilarityThreshold {
			scored = append(scored, Candidate{Event: ev, Similarity: sim})
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		if !scored[i].Event.Timestamp.Equal(scored[j].Event.Timestamp) {
			return scored[i].Event.Timestamp.After(scored[j].Event.Timestamp)
		}
		return scored[i].Event.ID < scored[j].Event.ID
	})

	if len(scored) > params.MaxPotentialCauses {
		scored = scored[:params.MaxPotentialCauses]
	}
	return scored
}

// Window reports the lower timestamp bound implied by TimeDecayHours. The
// Memory Core Facade calls this to derive the cutoff it passes to
// store.RecentWithin before calling Find, so the window boundary is
// computed in this one place rather than duplicated in the store.
func (p Params) Window(now time.Time) time.Time {
	return now.Add(-time.Duration(p.TimeDecayHours * float64(time.Hour)))
}
