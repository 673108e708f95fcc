// Command causalmemd runs the causal memory engine: it loads configuration,
// wires the Memory Core Facade to its collaborators, and serves both the
// REST/JSON transport and the tool-call protocol transport concurrently
// over the same facade instance (spec.md §4.8, §6). Grounded on the
// teacher's cmd/bud-mcp/main.go wiring style: load .env, open the store,
// construct collaborators, register tools, run until signalled.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sorrowscry86/causal-memory-core/internal/cache"
	"github.com/sorrowscry86/causal-memory-core/internal/config"
	"github.com/sorrowscry86/causal-memory-core/internal/embedder"
	"github.com/sorrowscry86/causal-memory-core/internal/judge"
	"github.com/sorrowscry86/causal-memory-core/internal/logging"
	"github.com/sorrowscry86/causal-memory-core/internal/memory"
	"github.com/sorrowscry86/causal-memory-core/internal/store"
	"github.com/sorrowscry86/causal-memory-core/internal/transport/rest"
	"github.com/sorrowscry86/causal-memory-core/internal/transport/toolproto"
)

const subsystem = "main"

func main() {
	cfg := config.Load()

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open event store: %v", err)
	}
	defer db.Close()
	logging.Info(subsystem, "event store opened at %s", cfg.DBPath)

	embed := embedder.NewOllama(cfg.EmbedderEndpoint, cfg.EmbeddingModel, cfg.CallTimeout)
	j := judge.NewLLM(cfg.JudgeEndpoint, cfg.LLMModel, cfg.LLMTemperature, cfg.CallTimeout)

	embeddingCache, err := cache.New(cfg.EmbeddingCacheSize)
	if err != nil {
		log.Fatalf("create embedding cache: %v", err)
	}

	core := memory.New(db, embed, j, embeddingCache, cfg.EmbeddingModel, memory.Params{
		MaxPotentialCauses:  cfg.MaxPotentialCauses,
		SimilarityThreshold: cfg.SimilarityThreshold,
		SoftLinkThreshold:   cfg.SoftLinkThreshold,
		TimeDecayHours:      cfg.TimeDecayHours,
		MaxConsequenceDepth: cfg.MaxConsequenceDepth,
	})

	ctx := context.Background()

	restServer := rest.New(rest.Config{
		APIKey:                cfg.APIKey,
		CORSOrigins:           cfg.CORSOrigins,
		RateLimitEventsPerMin: cfg.RateLimitEventsPerMin,
		RateLimitQueryPerMin:  cfg.RateLimitQueryPerMin,
	},
		func(text string) (int64, error) { return core.AddEvent(ctx, text) },
		func(text string) (string, error) { return core.Query(ctx, text) },
		core.Stats,
		core.Ping,
	)
	go func() {
		if err := restServer.ListenAndServe(":" + cfg.RESTPort); err != nil {
			log.Fatalf("REST transport failed: %v", err)
		}
	}()

	toolServer := toolproto.New("causal-memory-core", "1.0.0",
		func(ctx context.Context, text string) (int64, error) { return core.AddEvent(ctx, text) },
		func(ctx context.Context, text string) (string, error) { return core.Query(ctx, text) },
	)
	go func() {
		var err error
		if cfg.Port != "" {
			err = toolServer.ServeSSE(":" + cfg.Port)
		} else {
			err = toolServer.ServeStdio()
		}
		if err != nil {
			log.Fatalf("tool-protocol transport failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logging.Info(subsystem, "shutting down")
	if err := core.Shutdown(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
