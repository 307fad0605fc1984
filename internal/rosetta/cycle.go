package rosetta

import (
	"fmt"
	"slices"
	"strings"
)

// MacroCycle is a set of template macros that call each other. Expanding
// any of them fails once nesting passes maxMacroDepth.
type MacroCycle struct {
	Path    []string `json:"path"` // ["a", "b", "a"]
	Message string   `json:"message"`
}

// Cycles reports every group of template macros that can reach itself
// through its bodies. Go macros have no body and never appear. A registry
// with no recursion returns nil.
func (r *Registry) Cycles() []MacroCycle {
	graph := r.callGraph()
	var cycles []MacroCycle
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || slices.Contains(graph[scc[0]], scc[0]) {
			cycles = append(cycles, sccToCycle(scc, graph))
		}
	}
	slices.SortFunc(cycles, func(a, b MacroCycle) int { return strings.Compare(a.Path[0], b.Path[0]) })
	return cycles
}

// callGraph maps each macro to the registered macros its body calls.
// Lines that do not parse are left to the compiler to report.
func (r *Registry) callGraph() map[string][]string {
	graph := make(map[string][]string, len(r.macros))
	for name, m := range r.macros {
		graph[name] = nil
		for i, line := range m.body {
			toks, err := lex(strings.TrimSpace(stripComment(line)))
			if err != nil || len(toks) == 0 {
				continue
			}
			st, err := parseStatement(i+1, toks)
			if err != nil {
				continue
			}
			callee := st.callee.text
			if _, ok := r.macros[callee]; ok && !slices.Contains(graph[name], callee) {
				graph[name] = append(graph[name], callee)
			}
		}
		slices.Sort(graph[name])
	}
	return graph
}

// tarjanSCC returns the strongly connected components of graph, each
// sorted by name.
func tarjanSCC(graph map[string][]string) [][]string {
	var (
		index   = 0
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
			if _, seen := indices[w]; !seen {
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
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)
	for _, n := range nodes {
		if _, seen := indices[n]; !seen {
			connect(n)
		}
	}
	return sccs
}

func sccToCycle(scc []string, graph map[string][]string) MacroCycle {
	if len(scc) == 1 {
		return MacroCycle{
			Path:    []string{scc[0], scc[0]},
			Message: fmt.Sprintf("macro %s calls itself", scc[0]),
		}
	}
	path := cyclePath(scc, graph)
	return MacroCycle{
		Path:    path,
		Message: fmt.Sprintf("macros call each other: %s", strings.Join(path, " -> ")),
	}
}

// cyclePath walks from the first member of scc through unvisited members
// until it steps back onto the start.
func cyclePath(scc []string, graph map[string][]string) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[0]
	path := []string{start}
	visited := map[string]bool{}
	for cur := start; ; {
		visited[cur] = true
		next := ""
		for _, w := range graph[cur] {
			if members[w] && (!visited[w] || w == start) {
				next = w
				break
			}
		}
		if next == "" {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		cur = next
	}
}
