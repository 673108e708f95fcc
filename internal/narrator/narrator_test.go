package narrator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sorrowscry86/causal-memory-core/internal/store"
)

func TestNarrateSingleEvent(t *testing.T) {
	chain := []*store.Event{{EffectText: "the server crashed"}}
	require.Equal(t, "Initially, the server crashed.", Narrate(chain))
}

func TestNarrateAlternatesConnectors(t *testing.T) {
	chain := []*store.Event{
		{EffectText: "a"},
		{EffectText: "b", CausalRelationship: "rel-b"},
		{EffectText: "c", CausalRelationship: "rel-c"},
		{EffectText: "d"},
	}
	want := "Initially, a. This led to b (rel-b). which in turn caused c (rel-c). This led to d."
	require.Equal(t, want, Narrate(chain))
}

func TestNarrateEmptyChain(t *testing.T) {
	require.Empty(t, Narrate(nil))
}

func TestNarrateOmitsParensWithoutRelationship(t *testing.T) {
	chain := []*store.Event{{EffectText: "a"}, {EffectText: "b"}}
	require.Equal(t, "Initially, a. This led to b.", Narrate(chain))
}
