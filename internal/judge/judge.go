// Package judge implements the Causal Judge capability (spec.md §4.4, C2):
// a yes/no-plus-phrase collaborator deciding whether two events belong to
// the same causal sequence. Grounded on the teacher's internal/eval/judge.go
// prompt-then-parse idiom (LLM generation followed by a small regex/string
// extraction of the structured answer), adapted from a 1-5 rating to the
// binary link decision spec.md requires.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Verdict is the outcome of judging one candidate-event pair.
type Verdict struct {
	Linked       bool
	Relationship string
}

// Client is the capability spec.md §9.5 calls "Judge":
// judge(prior_text, next_text) -> (link?, phrase?).
type Client interface {
	Judge(ctx context.Context, priorText, nextText string) (Verdict, error)
}

const prompt = `Given a preceding event and a subsequent event, decide if they are part of the same workflow or causal sequence.

Preceding event: %s

Subsequent event: %s

If they are linked, respond with ONE short phrase describing the relationship (for example: "triggered by a failed deployment"). If they are not linked, respond with the single word "no".`

// LLM is the default Client, calling a local or remote generation endpoint
// compatible with Ollama's /api/generate.
type LLM struct {
	baseURL     string
	model       string
	temperature float64
	http        *http.Client
}

// NewLLM builds an LLM-backed Judge. timeout governs every call (spec.md
// §5 "Cancellation and timeouts"); on timeout the caller must treat the
// result as no-link, never as a hard error (spec.md §4.4 step 1).
func NewLLM(baseURL, model string, temperature float64, timeout time.Duration) *LLM {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	return &LLM{
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		http:        &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	Stream      bool    `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Judge satisfies Client. Any transport, protocol, timeout, or parsing
// failure degrades to a no-link Verdict with a nil error, per spec.md
// §4.4 and §5/§7's Judge-failure absorption policy: Judge failures are
// never hard errors, even on call timeout.
func (l *LLM) Judge(ctx context.Context, priorText, nextText string) (Verdict, error) {
	body, err := json.Marshal(generateRequest{
		Model:       l.model,
		Prompt:      fmt.Sprintf(prompt, priorText, nextText),
		Temperature: l.temperature,
		Stream:      false,
	})
	if err != nil {
		return Verdict{}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return Verdict{}, nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.http.Do(req)
	if err != nil {
		return Verdict{}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return Verdict{}, nil
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Verdict{}, nil
	}

	return parseVerdict(result.Response), nil
}

// parseVerdict applies spec.md §4.4's negation rule: any response that is
// empty or begins (case-insensitively) with "no" is treated as no-link.
func parseVerdict(response string) Verdict {
	trimmed := strings.TrimSpace(response)
	if trimmed == "" {
		return Verdict{}
	}
	if strings.HasPrefix(strings.ToLower(trimmed), "no") {
		return Verdict{}
	}
	return Verdict{Linked: true, Relationship: trimmed}
}
