package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-cpg/internal/domain/analysis"
)

func TestBuildTreeBasic(t *testing.T) {
	funcs, edges := Clean(sampleFunctions(), sampleCalls(), DefaultPolicy())
	tree := BuildTree(funcs, edges, DefaultPolicy())

	require.Len(t, tree.Roots, 1)
	main := tree.Roots[0]
	assert.Equal(t, "main", main.Name)
	require.Len(t, main.Children, 3)
	assert.Equal(t, "add", main.Children[0].Name)
	assert.Equal(t, "subtract", main.Children[1].Name)

	proc := main.Children[2]
	assert.Equal(t, "process_numbers", proc.Name)
	require.Len(t, proc.Children, 2)
	// add appears again under this branch, as a leaf
	assert.Equal(t, "add", proc.Children[0].Name)
	assert.Empty(t, proc.Children[0].Children)

	pr := proc.Children[1]
	assert.Equal(t, "print_result", pr.Name)
	require.Len(t, pr.Children, 1)
	assert.Equal(t, "printf", pr.Children[0].Name)
	assert.True(t, pr.Children[0].External)
}

func TestBuildTreeSelfRecursion(t *testing.T) {
	funcs := []analysis.RawFunction{
		{Name: "main", File: "sort.c", LineNumber: 30, Code: "int main() {}"},
		{Name: "quick_sort_recursive", File: "sort.c", LineNumber: 5, Code: "void quick_sort_recursive(...) {}"},
	}
	edges := []analysis.CallEdge{
		{Caller: "main", Callee: "quick_sort_recursive", File: "sort.c", Line: 31},
		// two distinct call sites inside the recursive body
		{Caller: "quick_sort_recursive", Callee: "quick_sort_recursive", File: "sort.c", Line: 10},
		{Caller: "quick_sort_recursive", Callee: "quick_sort_recursive", File: "sort.c", Line: 11},
	}

	tree := BuildTree(funcs, edges, DefaultPolicy())
	require.Len(t, tree.Roots, 1)

	qs := tree.Roots[0].Children[0]
	assert.Equal(t, "quick_sort_recursive", qs.Name)
	require.Len(t, qs.Children, 2)
	for _, child := range qs.Children {
		assert.Equal(t, "quick_sort_recursive", child.Name)
		assert.True(t, child.Cycle)
		assert.Empty(t, child.Children)
	}
}

func TestBuildTreeMutualRecursion(t *testing.T) {
	funcs := []analysis.RawFunction{
		{Name: "ping", File: "pp.c", LineNumber: 1, Code: "void ping() {}"},
		{Name: "pong", File: "pp.c", LineNumber: 5, Code: "void pong() {}"},
	}
	edges := []analysis.CallEdge{
		{Caller: "ping", Callee: "pong", File: "pp.c", Line: 2},
		{Caller: "pong", Callee: "ping", File: "pp.c", Line: 6},
	}

	tree := BuildTree(funcs, edges, DefaultPolicy())

	// both have incoming edges, so the component is entered exactly once
	require.Len(t, tree.Roots, 1)
	ping := tree.Roots[0]
	assert.Equal(t, "ping", ping.Name)
	require.Len(t, ping.Children, 1)
	pong := ping.Children[0]
	assert.Equal(t, "pong", pong.Name)
	require.Len(t, pong.Children, 1)
	assert.Equal(t, "ping", pong.Children[0].Name)
	assert.True(t, pong.Children[0].Cycle)
}

func TestBuildTreeEveryFunctionAppears(t *testing.T) {
	funcs, edges := Clean(sampleFunctions(), sampleCalls(), DefaultPolicy())
	tree := BuildTree(funcs, edges, DefaultPolicy())

	seen := map[string]bool{}
	var walk func(n *Node)
	walk = func(n *Node) {
		seen[n.Name] = true
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, r := range tree.Roots {
		walk(r)
	}
	for _, fn := range funcs {
		assert.True(t, seen[fn.Name], "function %s missing from tree", fn.Name)
	}
}

func TestBuildTreeEntryPointWithIncomingEdges(t *testing.T) {
	funcs := []analysis.RawFunction{
		{Name: "main", File: "a.c", LineNumber: 1, Code: "int main() {}"},
		{Name: "boot", File: "a.c", LineNumber: 5, Code: "void boot() {}"},
	}
	// boot calls main, so main has an incoming edge but stays a root
	edges := []analysis.CallEdge{
		{Caller: "boot", Callee: "main", File: "a.c", Line: 6},
	}

	tree := BuildTree(funcs, edges, DefaultPolicy())
	names := make([]string, 0, len(tree.Roots))
	for _, r := range tree.Roots {
		names = append(names, r.Name)
	}
	assert.Contains(t, names, "main")
	assert.Contains(t, names, "boot")
}

func TestRender(t *testing.T) {
	funcs, edges := Clean(sampleFunctions(), sampleCalls(), DefaultPolicy())
	tree := BuildTree(funcs, edges, DefaultPolicy())

	lines := Render(tree)
	want := []string{
		"main.c:main",
		"  main.c:add",
		"  main.c:subtract",
		"  main.c:process_numbers",
		"    main.c:add",
		"    main.c:print_result",
		"      ?:printf",
	}
	assert.Equal(t, want, lines)
}

func TestRenderCycleMarker(t *testing.T) {
	funcs := []analysis.RawFunction{
		{Name: "loop", File: "l.c", LineNumber: 1, Code: "void loop() {}"},
	}
	edges := []analysis.CallEdge{
		{Caller: "loop", Callee: "loop", File: "l.c", Line: 2},
	}

	tree := BuildTree(funcs, edges, DefaultPolicy())
	lines := Render(tree)
	assert.Equal(t, []string{"l.c:loop", "  l.c:loop [cycle]"}, lines)
}
