package traverse

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sorrowscry86/causal-memory-core/internal/logging"
	"github.com/sorrowscry86/causal-memory-core/internal/store"
)

type fakeStore struct {
	events   map[int64]*store.Event
	children map[int64][]*store.Event
	all      []*store.Event

	vecAvailable    bool
	nearest         []*store.Event
	allForScanCalls int
}

func (f *fakeStore) AllForScan() ([]*store.Event, error) {
	f.allForScanCalls++
	return f.all, nil
}
func (f *fakeStore) GetByID(id int64) (*store.Event, error) {
	return f.events[id], nil
}
func (f *fakeStore) ChildrenOf(id int64) ([]*store.Event, error) {
	return f.children[id], nil
}
func (f *fakeStore) VecAvailable() bool { return f.vecAvailable }
func (f *fakeStore) NearestByEmbedding(embedding []float32, k int) ([]*store.Event, error) {
	return f.nearest, nil
}

func ptr(i int64) *int64 { return &i }

func TestAnchorPicksMaxSimilarity(t *testing.T) {
	now := time.Now()
	a := &store.Event{ID: 1, Timestamp: now, Embedding: []float32{1, 0}}
	b := &store.Event{ID: 2, Timestamp: now, Embedding: []float32{0, 1}}
	fs := &fakeStore{all: []*store.Event{a, b}}

	anchor, ok, err := Anchor(fs, []float32{1, 0}, 0.5)
	if err != nil {
		t.Fatalf("anchor: %v", err)
	}
	if !ok || anchor.ID != 1 {
		t.Fatalf("expected anchor event 1, got %+v ok=%v", anchor, ok)
	}
}

func TestAnchorUsesVecIndexWhenAvailable(t *testing.T) {
	hit := &store.Event{ID: 7, Embedding: []float32{1, 0}}
	fs := &fakeStore{vecAvailable: true, nearest: []*store.Event{hit}}

	anchor, ok, err := Anchor(fs, []float32{1, 0}, 0.5)
	if err != nil {
		t.Fatalf("anchor: %v", err)
	}
	if !ok || anchor.ID != 7 {
		t.Fatalf("expected vec-indexed anchor event 7, got %+v ok=%v", anchor, ok)
	}
	if fs.allForScanCalls != 0 {
		t.Fatal("expected the vec0 path to skip AllForScan entirely")
	}
}

func TestAnchorVecIndexBelowThresholdClearsAnchor(t *testing.T) {
	hit := &store.Event{ID: 7, Embedding: []float32{0, 1}}
	fs := &fakeStore{vecAvailable: true, nearest: []*store.Event{hit}}

	_, ok, err := Anchor(fs, []float32{1, 0}, 0.5)
	if err != nil {
		t.Fatalf("anchor: %v", err)
	}
	if ok {
		t.Fatal("expected the vec0 path's low-similarity match to clear no anchor")
	}
}

func TestAnchorNoneClearsThreshold(t *testing.T) {
	fs := &fakeStore{all: []*store.Event{{ID: 1, Embedding: []float32{0, 1}}}}
	_, ok, err := Anchor(fs, []float32{1, 0}, 0.5)
	if err != nil {
		t.Fatalf("anchor: %v", err)
	}
	if ok {
		t.Fatal("expected no anchor to clear threshold")
	}
}

func TestChainWalksBackwardAndForward(t *testing.T) {
	root := &store.Event{ID: 1, EffectText: "root"}
	mid := &store.Event{ID: 2, EffectText: "mid", CauseID: ptr(1)}
	leaf := &store.Event{ID: 3, EffectText: "leaf", CauseID: ptr(2)}

	fs := &fakeStore{
		events: map[int64]*store.Event{1: root, 2: mid, 3: leaf},
		children: map[int64][]*store.Event{
			1: {mid},
			2: {leaf},
		},
	}

	chain, err := Chain(fs, mid, 2)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("expected 3-event chain, got %d", len(chain))
	}
	if chain[0].ID != 1 || chain[1].ID != 2 || chain[2].ID != 3 {
		t.Fatalf("expected chronological order [1,2,3], got [%d,%d,%d]", chain[0].ID, chain[1].ID, chain[2].ID)
	}
}

func TestChainBrokenLinkLogsWarnAndReturnsPartial(t *testing.T) {
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	defer logging.SetOutput(bytes.NewBuffer(nil))

	anchor := &store.Event{ID: 2, EffectText: "orphaned", CauseID: ptr(99)}
	fs := &fakeStore{events: map[int64]*store.Event{2: anchor}}

	chain, err := Chain(fs, anchor, 0)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if len(chain) != 1 || chain[0].ID != 2 {
		t.Fatalf("expected partial chain of just the anchor, got %d events", len(chain))
	}
	if !strings.Contains(buf.String(), "WARN") {
		t.Fatal("expected a WARN log line for the broken cause link")
	}
}

func TestChainCycleLogsCriticalAndStops(t *testing.T) {
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	defer logging.SetOutput(bytes.NewBuffer(nil))

	a := &store.Event{ID: 1, EffectText: "a", CauseID: ptr(2)}
	b := &store.Event{ID: 2, EffectText: "b", CauseID: ptr(1)}
	fs := &fakeStore{events: map[int64]*store.Event{1: a, 2: b}}

	chain, err := Chain(fs, a, 0)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("expected cycle to stop after 2 events, got %d", len(chain))
	}
	if !strings.Contains(buf.String(), "CRITICAL") {
		t.Fatal("expected a CRITICAL log line for the cycle")
	}
}

func TestChainForwardStopsAtMaxDepth(t *testing.T) {
	root := &store.Event{ID: 1}
	c1 := &store.Event{ID: 2, CauseID: ptr(1)}
	c2 := &store.Event{ID: 3, CauseID: ptr(2)}
	c3 := &store.Event{ID: 4, CauseID: ptr(3)}

	fs := &fakeStore{
		events: map[int64]*store.Event{1: root, 2: c1, 3: c2, 4: c3},
		children: map[int64][]*store.Event{
			1: {c1},
			2: {c2},
			3: {c3},
		},
	}

	chain, err := Chain(fs, root, 1)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("expected depth-limited chain of 2, got %d", len(chain))
	}
}
