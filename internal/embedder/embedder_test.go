package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sorrowscry86/causal-memory-core/internal/memerr"
)

func TestEmbedReturnsVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "test-model", time.Second)
	vec, err := o.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected 3-dim vector, got %d", len(vec))
	}
}

func TestEmbedEmptyTextIsValidationError(t *testing.T) {
	o := NewOllama("http://unused", "m", time.Second)
	_, err := o.Embed(context.Background(), "")
	if memerr.KindOf(err) != memerr.KindValidation {
		t.Fatalf("expected ValidationError, got %v", memerr.KindOf(err))
	}
}

func TestEmbedNonOKIsServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "test-model", time.Second)
	_, err := o.Embed(context.Background(), "hello")
	if memerr.KindOf(err) != memerr.KindServiceUnavailable {
		t.Fatalf("expected ServiceUnavailable, got %v", memerr.KindOf(err))
	}
}

func TestEmbedContextCancelledIsServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{1}})
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "test-model", time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	_, err := o.Embed(ctx, "hello")
	if memerr.KindOf(err) != memerr.KindServiceUnavailable {
		t.Fatalf("expected ServiceUnavailable on timeout, got %v", memerr.KindOf(err))
	}
}
