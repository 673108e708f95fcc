package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sorrowscry86/causal-memory-core/internal/cache"
	"github.com/sorrowscry86/causal-memory-core/internal/judge"
	"github.com/sorrowscry86/causal-memory-core/internal/store"
)

// fakeEmbedder returns the vector registered for a text in vectors, or the
// fixed vector {0, 0, 1} for any other text, so texts can be made to collide
// or differ predictably in tests without a real model. calls counts Embed
// invocations.
type fakeEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

type fakeJudge struct {
	linkAll bool
}

func (f *fakeJudge) Judge(ctx context.Context, priorText, nextText string) (judge.Verdict, error) {
	if f.linkAll {
		return judge.Verdict{Linked: true, Relationship: "follows"}, nil
	}
	return judge.Verdict{}, nil
}

func newTestCore(t *testing.T, embed *fakeEmbedder, j *fakeJudge) (*Core, func()) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "memory-test-*")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	db, err := store.Open(filepath.Join(tmpDir, "events.db"))
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("open store: %v", err)
	}
	c, err := cache.New(10)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	core := New(db, embed, j, c, "test-model", Params{
		MaxPotentialCauses:  5,
		SimilarityThreshold: 0.5,
		SoftLinkThreshold:   0.85,
		TimeDecayHours:      24,
		MaxConsequenceDepth: 2,
	})
	return core, func() {
		core.Shutdown()
		os.RemoveAll(tmpDir)
	}
}

func TestAddEventValidation(t *testing.T) {
	core, cleanup := newTestCore(t, &fakeEmbedder{}, &fakeJudge{})
	defer cleanup()

	if _, err := core.AddEvent(context.Background(), "   "); err == nil {
		t.Fatal("expected validation error for whitespace-only text")
	}
}

func TestAddEventInsertsRoot(t *testing.T) {
	core, cleanup := newTestCore(t, &fakeEmbedder{}, &fakeJudge{})
	defer cleanup()

	id, err := core.AddEvent(context.Background(), "the server started")
	if err != nil {
		t.Fatalf("add event: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected first event id 1, got %d", id)
	}
}

func TestAddEventLinksViaJudge(t *testing.T) {
	core, cleanup := newTestCore(t, &fakeEmbedder{}, &fakeJudge{linkAll: true})
	defer cleanup()

	first, _ := core.AddEvent(context.Background(), "deploy started")
	second, err := core.AddEvent(context.Background(), "deploy finished")
	if err != nil {
		t.Fatalf("add second event: %v", err)
	}
	if second <= first {
		t.Fatalf("expected increasing event ids")
	}

	ev, err := core.store.GetByID(second)
	if err != nil {
		t.Fatalf("get second event: %v", err)
	}
	if ev == nil || ev.CauseID == nil || *ev.CauseID != first || ev.CausalRelationship != "follows" {
		t.Fatalf("expected second event linked to %d with the judge's phrase, got %+v", first, ev)
	}
}

func TestQueryNoContext(t *testing.T) {
	core, cleanup := newTestCore(t, &fakeEmbedder{}, &fakeJudge{})
	defer cleanup()

	out, err := core.Query(context.Background(), "anything")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if out != NoContextSentinel {
		t.Fatalf("expected sentinel, got %q", out)
	}
}

func TestQueryReturnsNarrative(t *testing.T) {
	core, cleanup := newTestCore(t, &fakeEmbedder{}, &fakeJudge{})
	defer cleanup()

	core.AddEvent(context.Background(), "the server crashed")

	out, err := core.Query(context.Background(), "server status")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if out == NoContextSentinel || out == "" {
		t.Fatalf("expected a narrative, got %q", out)
	}
}

func TestEmbeddingCacheAvoidsRedundantEmbedCalls(t *testing.T) {
	embed := &fakeEmbedder{}
	core, cleanup := newTestCore(t, embed, &fakeJudge{})
	defer cleanup()

	core.AddEvent(context.Background(), "repeated text")
	callsAfterFirst := embed.calls
	core.AddEvent(context.Background(), "repeated text")
	if embed.calls != callsAfterFirst {
		t.Fatalf("expected cache hit to avoid a second embed call, calls went from %d to %d", callsAfterFirst, embed.calls)
	}
}

func TestAddEventsBatchDoesNotAbortOnFailure(t *testing.T) {
	core, cleanup := newTestCore(t, &fakeEmbedder{}, &fakeJudge{})
	defer cleanup()

	result := core.AddEventsBatch(context.Background(), []string{"one", "", "three"})
	if result.Total != 3 || result.Successful != 2 || result.Failed != 1 {
		t.Fatalf("unexpected batch result: %+v", result)
	}
}

func TestQueryValidatesLength(t *testing.T) {
	core, cleanup := newTestCore(t, &fakeEmbedder{}, &fakeJudge{})
	defer cleanup()

	big := make([]byte, 1001)
	for i := range big {
		big[i] = 'a'
	}
	if _, err := core.Query(context.Background(), string(big)); err == nil {
		t.Fatal("expected validation error for over-length query")
	}
}
