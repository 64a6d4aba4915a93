package compiler

import (
	"fmt"
	"strings"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
	"github.com/popslovesmusic/airs-sub008/internal/parser"
)

// CycleWarning reports a potential rewrite-rule feedback loop.
//
// Rule cycles are warnings, not errors: a loop can be intentional and
// is still bounded at run time by the stability analyzer's fixed-point
// iteration cap.
type CycleWarning struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
	Level   string   `json:"level"`
}

// AnalyzeRuleCycles performs static cycle analysis over the rewrite
// rules of a package.
//
// Rule B depends on rule A when A's replacement produces a head
// operator that B's pattern matches, so B could fire on A's output.
// The dependency graph's strongly connected components of size > 1,
// plus self-loops, are reported as warnings. Rules whose expressions
// do not parse are skipped; ValidatePackage reports those separately.
func AnalyzeRuleCycles(rules []ir.RewriteRule) []CycleWarning {
	if len(rules) == 0 {
		return nil
	}

	graph := buildRuleGraph(rules)
	sccs := tarjanSCC(graph)

	var warnings []CycleWarning
	for _, scc := range sccs {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			warnings = append(warnings, sccToWarning(scc, graph))
		}
	}
	return warnings
}

// ruleGraph maps rule id to the rules that could fire on its output.
type ruleGraph map[string][]string

func buildRuleGraph(rules []ir.RewriteRule) ruleGraph {
	// Head operator of each rule's pattern, and which rules match each
	// head. A bare-atom pattern matches presence nodes.
	patternHead := make(map[ir.Operator][]string)
	replacementHead := make(map[string]ir.Operator, len(rules))

	for _, r := range rules {
		if op, ok := headOperator(r.PatternExpr); ok {
			patternHead[op] = append(patternHead[op], r.ID)
		}
		if op, ok := headOperator(r.ReplacementExpr); ok {
			replacementHead[r.ID] = op
		}
	}

	graph := make(ruleGraph, len(rules))
	for _, r := range rules {
		graph[r.ID] = []string{}
		if op, ok := replacementHead[r.ID]; ok {
			graph[r.ID] = append(graph[r.ID], patternHead[op]...)
		}
	}
	return graph
}

func headOperator(src string) (ir.Operator, bool) {
	expr, err := parser.Parse(src)
	if err != nil {
		return "", false
	}
	switch e := expr.(type) {
	case parser.Atom:
		return ir.OpPresence, true
	case parser.OpExpr:
		return e.Op, true
	}
	return "", false
}

func hasSelfLoop(node string, graph ruleGraph) bool {
	for _, next := range graph[node] {
		if next == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components. Rule sets are small,
// so the recursive formulation is fine here; the iterative-DFS rule
// applies to diagram graphs, not to rule dependency graphs.
func tarjanSCC(graph ruleGraph) [][]string {
	var (
		index   int
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var connect func(string)
	connect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				connect(w)
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

	for node := range graph {
		if _, visited := indices[node]; !visited {
			connect(node)
		}
	}
	return sccs
}

func sccToWarning(scc []string, graph ruleGraph) CycleWarning {
	if len(scc) == 1 {
		id := scc[0]
		return CycleWarning{
			Path:    []string{id, id},
			Message: fmt.Sprintf("rule %s can fire on its own output", id),
			Level:   "warning",
		}
	}

	path := cyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("potential rule cycle: %s", strings.Join(path, " -> ")),
		Level:   "warning",
	}
}

// cyclePath reconstructs one traversal through the SCC back to its
// starting rule.
func cyclePath(scc []string, graph ruleGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, id := range scc {
		members[id] = true
	}

	start := scc[0]
	current := start
	path := []string{start}
	visited := make(map[string]bool)

	for {
		visited[current] = true
		var next string
		for _, n := range graph[current] {
			if members[n] && (!visited[n] || n == start) {
				next = n
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
