package compiler

import (
	"fmt"
	"strings"
)

// CycleWarning reports a cycle among internal chains.
//
// Cycles are warnings, not errors, because they may be intentional: a state
// re-entering itself until an outside confirmation arrives is a retry loop.
// Such a loop only ends through the engine's step budget or the condition it
// waits for.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["Stop", "Stop"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning"
}

// chainGraph maps state → states its handler may chain to.
type chainGraph map[string][]string

// AnalyzeChains finds cycles in the machine's internal chains.
//
// The algorithm:
//  1. Build the state → chained state graph from chains
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop as a warning
//
// Warnings come out in state declaration order. No chains returns an empty
// list.
func AnalyzeChains(def *MachineSpec) []CycleWarning {
	if len(def.Chains) == 0 {
		return []CycleWarning{}
	}

	graph := make(chainGraph)
	for _, c := range def.Chains {
		graph[c.From] = append(graph[c.From], c.Targets...)
	}

	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(graph, def.States) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	return warnings
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph chainGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm,
// visiting nodes in order.
func tarjanSCC(graph chainGraph, order []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
func cycleSCCToWarning(scc []string, graph chainGraph) CycleWarning {
	if len(scc) == 1 {
		state := scc[0]
		return CycleWarning{
			Path:    []string{state, state},
			Message: fmt.Sprintf("State re-enters itself: %s → %s", state, state),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Internal chain cycle: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath follows edges inside the SCC from its first member
// until it returns to it.
func reconstructCyclePath(scc []string, graph chainGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
