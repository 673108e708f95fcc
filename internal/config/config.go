// Package config loads the recognized environment options (spec.md §6.3)
// into a single immutable struct, following the same "load once, pass
// explicitly" shape as the teacher service's loadConfig.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every recognized option from spec.md §6.3, plus the
// REST_PORT supplement documented in SPEC_FULL.md §6.3.1.
type Config struct {
	DBPath string

	EmbeddingModel    string
	EmbedderEndpoint  string
	LLMModel          string
	LLMTemperature    float64
	JudgeEndpoint     string

	SimilarityThreshold float64
	SoftLinkThreshold   float64
	MaxPotentialCauses  int
	TimeDecayHours      float64
	MaxConsequenceDepth int
	EmbeddingCacheSize  int

	APIKey string

	Port     string // tool-protocol bind port; empty = stdio mode
	RESTPort string // REST/JSON API bind port

	CORSOrigins []string

	RateLimitEventsPerMin int
	RateLimitQueryPerMin  int

	CallTimeout time.Duration
}

// yamlOverrides is the shape of an optional config.yaml override layer,
// applied under the environment (env wins). Exercises the yaml.v3
// dependency that ships in this module's dependency graph.
type yamlOverrides struct {
	DBPath               *string  `yaml:"db_path"`
	EmbeddingModel       *string  `yaml:"embedding_model"`
	LLMModel             *string  `yaml:"llm_model"`
	LLMTemperature       *float64 `yaml:"llm_temperature"`
	SimilarityThreshold  *float64 `yaml:"similarity_threshold"`
	SoftLinkThreshold    *float64 `yaml:"soft_link_threshold"`
	MaxPotentialCauses   *int     `yaml:"max_potential_causes"`
	TimeDecayHours       *float64 `yaml:"time_decay_hours"`
	MaxConsequenceDepth  *int     `yaml:"max_consequence_depth"`
	EmbeddingCacheSize   *int     `yaml:"embedding_cache_size"`
}

// Load reads configuration from, in increasing precedence: built-in
// defaults, an optional config.yaml file in the working directory, an
// optional .env file, and the process environment.
func Load() Config {
	_ = godotenv.Load() // missing .env is not an error

	cfg := Config{
		DBPath:               "causal_memory.db",
		EmbeddingModel:       "all-MiniLM-L6-v2",
		EmbedderEndpoint:     "http://localhost:11434",
		LLMModel:             "gpt-3.5-turbo",
		JudgeEndpoint:        "http://localhost:11434",
		LLMTemperature:       0.1,
		SimilarityThreshold:  0.5,
		SoftLinkThreshold:    0.85,
		MaxPotentialCauses:   5,
		TimeDecayHours:       24,
		MaxConsequenceDepth:  2,
		EmbeddingCacheSize:   1000,
		Port:                 "",
		RESTPort:             "8080",
		CORSOrigins:          []string{"*"},
		RateLimitEventsPerMin: 60,
		RateLimitQueryPerMin:  120,
		CallTimeout:           10 * time.Second,
	}

	applyYAMLOverrides(&cfg, "config.yaml")

	cfg.DBPath = envOr("DB_PATH", cfg.DBPath)
	cfg.EmbeddingModel = envOr("EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.EmbedderEndpoint = envOr("EMBEDDER_ENDPOINT", cfg.EmbedderEndpoint)
	cfg.LLMModel = envOr("LLM_MODEL", cfg.LLMModel)
	cfg.JudgeEndpoint = envOr("JUDGE_ENDPOINT", cfg.JudgeEndpoint)
	cfg.LLMTemperature = envFloat("LLM_TEMPERATURE", cfg.LLMTemperature)
	cfg.SimilarityThreshold = envFloat("SIMILARITY_THRESHOLD", cfg.SimilarityThreshold)
	cfg.SoftLinkThreshold = envFloat("SOFT_LINK_THRESHOLD", cfg.SoftLinkThreshold)
	cfg.MaxPotentialCauses = envInt("MAX_POTENTIAL_CAUSES", cfg.MaxPotentialCauses)
	cfg.TimeDecayHours = envFloat("TIME_DECAY_HOURS", cfg.TimeDecayHours)
	cfg.MaxConsequenceDepth = envInt("MAX_CONSEQUENCE_DEPTH", cfg.MaxConsequenceDepth)
	cfg.EmbeddingCacheSize = envInt("EMBEDDING_CACHE_SIZE", cfg.EmbeddingCacheSize)
	cfg.APIKey = envOr("API_KEY", cfg.APIKey)
	cfg.Port = envOr("PORT", cfg.Port)
	cfg.RESTPort = envOr("REST_PORT", cfg.RESTPort)

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = strings.Split(origins, ",")
	}

	cfg.RateLimitEventsPerMin = envInt("RATE_LIMIT_EVENTS_PER_MIN", cfg.RateLimitEventsPerMin)
	cfg.RateLimitQueryPerMin = envInt("RATE_LIMIT_QUERY_PER_MIN", cfg.RateLimitQueryPerMin)

	return cfg
}

func applyYAMLOverrides(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // optional file
	}
	var ov yamlOverrides
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return
	}
	if ov.DBPath != nil {
		cfg.DBPath = *ov.DBPath
	}
	if ov.EmbeddingModel != nil {
		cfg.EmbeddingModel = *ov.EmbeddingModel
	}
	if ov.LLMModel != nil {
		cfg.LLMModel = *ov.LLMModel
	}
	if ov.LLMTemperature != nil {
		cfg.LLMTemperature = *ov.LLMTemperature
	}
	if ov.SimilarityThreshold != nil {
		cfg.SimilarityThreshold = *ov.SimilarityThreshold
	}
	if ov.SoftLinkThreshold != nil {
		cfg.SoftLinkThreshold = *ov.SoftLinkThreshold
	}
	if ov.MaxPotentialCauses != nil {
		cfg.MaxPotentialCauses = *ov.MaxPotentialCauses
	}
	if ov.TimeDecayHours != nil {
		cfg.TimeDecayHours = *ov.TimeDecayHours
	}
	if ov.MaxConsequenceDepth != nil {
		cfg.MaxConsequenceDepth = *ov.MaxConsequenceDepth
	}
	if ov.EmbeddingCacheSize != nil {
		cfg.EmbeddingCacheSize = *ov.EmbeddingCacheSize
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
