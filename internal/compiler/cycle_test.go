package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeChains_NoChains(t *testing.T) {
	warnings := AnalyzeChains(&MachineSpec{States: []string{"A"}})
	assert.NotNil(t, warnings)
	assert.Empty(t, warnings)
}

func TestAnalyzeChains_Acyclic(t *testing.T) {
	def := compileMachine(t, lampDef, "Lamp")
	assert.Empty(t, AnalyzeChains(def))
}

func TestAnalyzeChains_SelfLoop(t *testing.T) {
	def := &MachineSpec{
		States: []string{"Idle", "Stop"},
		Chains: []ChainSpec{{From: "Stop", Targets: []string{"Stop", "Idle"}}},
	}

	warnings := AnalyzeChains(def)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"Stop", "Stop"}, warnings[0].Path)
	assert.Equal(t, "warning", warnings[0].Level)
	assert.Contains(t, warnings[0].Message, "Stop → Stop")
}

func TestAnalyzeChains_MultiStateCycle(t *testing.T) {
	def := &MachineSpec{
		States: []string{"A", "B", "C", "D"},
		Chains: []ChainSpec{
			{From: "A", Targets: []string{"B"}},
			{From: "B", Targets: []string{"C"}},
			{From: "C", Targets: []string{"A"}},
			{From: "D", Targets: []string{"A"}},
		},
	}

	warnings := AnalyzeChains(def)
	require.Len(t, warnings, 1)

	path := warnings[0].Path
	require.Len(t, path, 4)
	assert.Equal(t, path[0], path[3])
	assert.ElementsMatch(t, []string{"A", "B", "C"}, path[:3])
	assert.Contains(t, warnings[0].Message, "Internal chain cycle")
}

func TestAnalyzeChains_Deterministic(t *testing.T) {
	def := &MachineSpec{
		States: []string{"A", "B", "C"},
		Chains: []ChainSpec{
			{From: "C", Targets: []string{"C"}},
			{From: "A", Targets: []string{"A"}},
		},
	}

	for range 10 {
		warnings := AnalyzeChains(def)
		require.Len(t, warnings, 2)
		assert.Equal(t, "A", warnings[0].Path[0])
		assert.Equal(t, "C", warnings[1].Path[0])
	}
}
