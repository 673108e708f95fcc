// Package narrator implements the Narrator (spec.md §4.6, C8): it turns an
// ordered chain of events into a prose summary, alternating connectors
// between steps. Grounded on the teacher's Summarize prompt-assembly idiom
// in internal/embedding/ollama.go (string-builder over an ordered list of
// fragments), but this narrator is purely textual — no LLM call, no
// interpretation, matching spec.md §4.6's "does not interpret text".
package narrator

import (
	"strings"

	"github.com/sorrowscry86/causal-memory-core/internal/store"
)

var connectors = []string{"This led to", "which in turn caused"}

// Narrate renders an ordered chain (root -> ... -> anchor -> ... ->
// consequences) as a single prose string. The chain must be non-empty.
func Narrate(chain []*store.Event) string {
	if len(chain) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Initially, ")
	b.WriteString(chain[0].EffectText)
	b.WriteString(".")

	for i := 1; i < len(chain); i++ {
		ev := chain[i]
		connector := connectors[(i-1)%len(connectors)]

		b.WriteString(" ")
		b.WriteString(connector)
		b.WriteString(" ")
		b.WriteString(ev.EffectText)
		if ev.CausalRelationship != "" {
			b.WriteString(" (")
			b.WriteString(ev.CausalRelationship)
			b.WriteString(")")
		}
		b.WriteString(".")
	}

	return b.String()
}
