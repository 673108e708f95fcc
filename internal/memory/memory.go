// Package memory implements the Memory Core Facade (spec.md §4.7, C9): the
// single entry point wiring the Embedding Cache, Embedder, Candidate
// Finder, Causal Linker, Event Store, Chain Traverser, and Narrator into
// the engine's four public operations. Grounded on the teacher's top-level
// service wiring in cmd/bud/main.go (construct collaborators once, hold
// them on a single struct, expose a small set of orchestration methods).
package memory

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sorrowscry86/causal-memory-core/internal/cache"
	"github.com/sorrowscry86/causal-memory-core/internal/candidate"
	"github.com/sorrowscry86/causal-memory-core/internal/embedder"
	"github.com/sorrowscry86/causal-memory-core/internal/judge"
	"github.com/sorrowscry86/causal-memory-core/internal/linker"
	"github.com/sorrowscry86/causal-memory-core/internal/logging"
	"github.com/sorrowscry86/causal-memory-core/internal/memerr"
	"github.com/sorrowscry86/causal-memory-core/internal/narrator"
	"github.com/sorrowscry86/causal-memory-core/internal/store"
	"github.com/sorrowscry86/causal-memory-core/internal/traverse"
)

const subsystem = "memory"

// NoContextSentinel is returned by Query/GetContext when no event in the
// store clears the anchor threshold (spec.md §4.7).
const NoContextSentinel = "No relevant context found in memory."

// Params bundles every tunable threshold the facade needs from config.
type Params struct {
	MaxPotentialCauses  int
	SimilarityThreshold float64
	SoftLinkThreshold   float64
	TimeDecayHours      float64
	AnchorThreshold     float64 // defaults to SimilarityThreshold per spec.md §4.5
	MaxConsequenceDepth int
}

// Core is the Memory Core Facade. It exclusively owns the mutable
// embedding cache (spec.md §3); the Event Store owns persisted rows.
type Core struct {
	store    *store.DB
	embed    embedder.Client
	judge    judge.Client
	cache    *cache.Cache
	model    string
	params   Params
}

// New wires a Core from its already-constructed collaborators.
func New(db *store.DB, embed embedder.Client, j judge.Client, embeddingCache *cache.Cache, embeddingModel string, params Params) *Core {
	if params.AnchorThreshold == 0 {
		params.AnchorThreshold = params.SimilarityThreshold
	}
	return &Core{
		store:  db,
		embed:  embed,
		judge:  j,
		cache:  embeddingCache,
		model:  embeddingModel,
		params: params,
	}
}

// BatchResult is the outcome of AddEventsBatch (spec.md §4.7).
type BatchResult struct {
	Total      int
	Successful int
	Failed     int
	Errors     []string
}

// AddEvent implements spec.md §4.7's add_event.
func (c *Core) AddEvent(ctx context.Context, effectText string) (int64, error) {
	text := strings.TrimSpace(effectText)
	if text == "" {
		return 0, memerr.Validation("effect_text must not be empty")
	}
	if utf8.RuneCountInString(effectText) > 10000 {
		return 0, memerr.Validation("effect_text exceeds 10000 characters")
	}

	embedding, err := c.embedCached(ctx, text)
	if err != nil {
		return 0, memerr.Wrap(memerr.KindServiceUnavailable, "embed event text", err)
	}

	candidateParams := candidate.Params{
		MaxPotentialCauses:  c.params.MaxPotentialCauses,
		SimilarityThreshold: c.params.SimilarityThreshold,
		TimeDecayHours:      c.params.TimeDecayHours,
	}
	pool, err := c.store.RecentWithin(candidateParams.Window(time.Now()), 0)
	if err != nil {
		return 0, memerr.Wrap(memerr.KindStorage, "load candidate pool", err)
	}
	candidates := candidate.Find(pool, embedding, candidateParams)

	result := linker.Link(ctx, c.judge, text, candidates, c.params.SoftLinkThreshold)

	id, err := c.store.Insert(text, embedding, result.CauseID, result.Relationship)
	if err != nil {
		return 0, memerr.Wrap(memerr.KindStorage, "insert event", err)
	}
	return id, nil
}

// AddEventsBatch implements spec.md §4.7's add_events_batch: it never
// aborts on a per-item failure, logging progress every 100 items.
func (c *Core) AddEventsBatch(ctx context.Context, texts []string) BatchResult {
	result := BatchResult{Total: len(texts)}
	for i, text := range texts {
		if _, err := c.AddEvent(ctx, text); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("item %d: %v", i, err))
		} else {
			result.Successful++
		}

		if (i+1)%100 == 0 {
			logging.Info(subsystem, "batch ingest progress: %d/%d", i+1, result.Total)
		}
	}
	return result
}

// Query implements spec.md §4.7's query.
func (c *Core) Query(ctx context.Context, queryText string) (string, error) {
	text := strings.TrimSpace(queryText)
	if text == "" {
		return "", memerr.Validation("query_text must not be empty")
	}
	if utf8.RuneCountInString(queryText) > 1000 {
		return "", memerr.Validation("query_text exceeds 1000 characters")
	}

	embedding, err := c.embedCached(ctx, text)
	if err != nil {
		return "", memerr.Wrap(memerr.KindServiceUnavailable, "embed query text", err)
	}

	anchor, ok, err := traverse.Anchor(c.store, embedding, c.params.AnchorThreshold)
	if err != nil {
		return "", memerr.Wrap(memerr.KindStorage, "anchor search", err)
	}
	if !ok {
		return NoContextSentinel, nil
	}

	chain, err := traverse.Chain(c.store, anchor, c.params.MaxConsequenceDepth)
	if err != nil {
		return "", memerr.Wrap(memerr.KindStorage, "traverse chain", err)
	}

	return narrator.Narrate(chain), nil
}

// GetContext is an exact delegate to Query, kept for compatibility
// (spec.md §4.7).
func (c *Core) GetContext(ctx context.Context, queryText string) (string, error) {
	return c.Query(ctx, queryText)
}

// Stats exposes Event Store accounting for the /stats transport endpoint
// (SPEC_FULL.md §11 supplement).
func (c *Core) Stats() (total, linked, orphan int, err error) {
	return c.store.Stats()
}

// Ping verifies the underlying store connection, for health checks.
func (c *Core) Ping() error {
	return c.store.Ping()
}

// Shutdown flushes and closes the store. Safe to call more than once.
func (c *Core) Shutdown() error {
	return c.store.Close()
}

// embedCached consults the embedding cache before invoking the Embedder,
// promoting hits to most-recently-used and storing misses (spec.md §4.2).
func (c *Core) embedCached(ctx context.Context, text string) ([]float32, error) {
	key := cache.Key(c.model, text)
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}

	embedding, err := c.embed.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, embedding)
	return embedding, nil
}
