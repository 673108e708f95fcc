// Package embedder implements the Embedder capability (spec.md §4, C1): a
// text-to-vector collaborator invoked on cache miss. spec.md treats the
// concrete model identity as an external collaborator detail; this package
// supplies the Ollama-backed implementation the engine ships with, grounded
// on the teacher's internal/embedding/ollama.go HTTP client.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sorrowscry86/causal-memory-core/internal/memerr"
)

// Client is the capability spec.md §9.5 calls "Embedder": embed(text) -> vector.
// Implementations are swapped at construction; tests supply deterministic
// stand-ins instead of monkey-patching a concrete type.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Ollama is the default Client, calling a local or remote Ollama instance's
// /api/embeddings endpoint.
type Ollama struct {
	baseURL string
	model   string
	http    *http.Client
}

// NewOllama builds an Ollama-backed Embedder. timeout governs every call
// (spec.md §5 "Cancellation and timeouts").
func NewOllama(baseURL, model string, timeout time.Duration) *Ollama {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "all-MiniLM-L6-v2"
	}
	return &Ollama{
		baseURL: baseURL,
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed satisfies Client. A non-200 response or a request that outlives ctx
// surfaces as ServiceUnavailable, per spec.md §7's propagation policy for
// add_event's Embedder failures.
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, memerr.Validation("embed: empty text")
	}

	body, err := json.Marshal(embedRequest{Model: o.model, Prompt: text})
	if err != nil {
		return nil, memerr.Wrap(memerr.KindInternal, "marshal embed request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, memerr.Wrap(memerr.KindInternal, "build embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.http.Do(req)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindServiceUnavailable, "embedder request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, memerr.New(memerr.KindServiceUnavailable,
			fmt.Sprintf("embedder returned status %d: %s", resp.StatusCode, string(errBody)))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, memerr.Wrap(memerr.KindServiceUnavailable, "decode embed response", err)
	}
	if len(result.Embedding) == 0 {
		return nil, memerr.New(memerr.KindServiceUnavailable, "embedder returned empty vector")
	}
	return result.Embedding, nil
}
