// Package linker implements the Causal Linker (spec.md §4.4, C6): it asks
// the Judge about each candidate in order and decides the new event's
// cause_id and causal_relationship, falling back to a soft link when no
// candidate wins outright. Grounded on the teacher's sequential-scan idiom
// in internal/graph/episode_trace_edges.go (iterate candidates in order,
// stop at the first acceptable match).
package linker

import (
	"context"

	"github.com/sorrowscry86/causal-memory-core/internal/candidate"
	"github.com/sorrowscry86/causal-memory-core/internal/judge"
)

// SoftLinkPhrase is the canonical relationship text attached when the
// soft-link fallback fires (spec.md §4.4 step 3).
const SoftLinkPhrase = "(These events represent sequential steps in the same workflow.)"

// Result is the outcome of linking a new event against its candidates.
type Result struct {
	CauseID      *int64
	Relationship string
}

// Link implements spec.md §4.4's four-step decision: ask the Judge about
// each candidate in order, take the first positive verdict; otherwise fall
// back to a soft link against the top candidate if it clears
// softLinkThreshold; otherwise the new event is a root.
func Link(ctx context.Context, j judge.Client, newText string, candidates []candidate.Candidate, softLinkThreshold float64) Result {
	for _, c := range candidates {
		verdict, _ := j.Judge(ctx, c.Event.EffectText, newText) // Judge failures are absorbed as no-link
		if verdict.Linked {
			id := c.Event.ID
			return Result{CauseID: &id, Relationship: verdict.Relationship}
		}
	}

	if len(candidates) > 0 && candidates[0].Similarity >= softLinkThreshold {
		id := candidates[0].Event.ID
		return Result{CauseID: &id, Relationship: SoftLinkPhrase}
	}

	return Result{}
}
