package graph

import (
	"sort"

	"github.com/bryanwahyu/automaton-cpg/internal/domain/analysis"
)

// Node is one rendering of a function in the call tree. The same function
// may appear under several callers; Name+File always identify the concrete
// function so cycle references resolve.
type Node struct {
	Name     string  `json:"name"`
	File     string  `json:"file,omitempty"`
	Line     int     `json:"line,omitempty"` // call-site line, 0 on roots
	External bool    `json:"external,omitempty"`
	Cycle    bool    `json:"cycle,omitempty"` // closes a cycle back to an ancestor
	Children []*Node `json:"children,omitempty"`
}

// Tree is the rooted, cycle-safe hierarchical rendering of the clean graph.
type Tree struct {
	Roots []*Node `json:"roots"`
}

// BuildTree converts clean edges into a call tree. Roots are functions with
// no incoming internal edge plus configured entry points; traversal is
// depth-first with an explicit ancestor path set, so self-recursive and
// mutually recursive chains terminate as cycle-closing leaves.
func BuildTree(funcs []analysis.RawFunction, edges []analysis.CallEdge, p Policy) *Tree {
	b := &builder{
		files:   make(map[string]string, len(funcs)),
		adj:     make(map[string][]analysis.CallEdge),
		reached: make(map[string]bool, len(funcs)),
	}
	for _, fn := range funcs {
		b.files[fn.Name] = fn.File
	}
	hasIncoming := make(map[string]bool)
	for _, e := range edges {
		b.adj[e.Caller] = append(b.adj[e.Caller], e)
		if !e.External {
			hasIncoming[e.Callee] = true
		}
	}
	// children in call-site order
	for caller := range b.adj {
		out := b.adj[caller]
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Line != out[j].Line {
				return out[i].Line < out[j].Line
			}
			return out[i].Callee < out[j].Callee
		})
	}

	entry := make(map[string]bool, len(p.EntryPoints))
	for _, n := range p.EntryPoints {
		entry[n] = true
	}

	var roots []analysis.RawFunction
	rooted := make(map[string]bool)
	for _, fn := range funcs {
		if entry[fn.Name] || !hasIncoming[fn.Name] {
			if !rooted[fn.Name] {
				rooted[fn.Name] = true
				roots = append(roots, fn)
			}
		}
	}

	tree := &Tree{}
	path := make(map[string]struct{})
	for _, fn := range sortRoots(roots) {
		tree.Roots = append(tree.Roots, b.expand(fn.Name, 0, path))
	}

	// Functions only reachable through cycles (no edge-free entry into their
	// component) still get a node of their own. Picked one at a time so a
	// cycle partner already rendered under the first pick is not re-rooted.
	for {
		fn, ok := nextLeftover(funcs, b.reached, rooted)
		if !ok {
			break
		}
		rooted[fn.Name] = true
		tree.Roots = append(tree.Roots, b.expand(fn.Name, 0, path))
	}
	return tree
}

type builder struct {
	files   map[string]string
	adj     map[string][]analysis.CallEdge
	reached map[string]bool
}

func (b *builder) expand(name string, line int, path map[string]struct{}) *Node {
	b.reached[name] = true
	node := &Node{Name: name, File: b.files[name], Line: line}
	path[name] = struct{}{}
	for _, e := range b.adj[name] {
		if e.External {
			node.Children = append(node.Children, &Node{
				Name: e.Callee, Line: e.Line, External: true,
			})
			continue
		}
		if _, onPath := path[e.Callee]; onPath {
			node.Children = append(node.Children, &Node{
				Name: e.Callee, File: b.files[e.Callee], Line: e.Line, Cycle: true,
			})
			continue
		}
		node.Children = append(node.Children, b.expand(e.Callee, e.Line, path))
	}
	delete(path, name)
	return node
}

func sortRoots(fns []analysis.RawFunction) []analysis.RawFunction {
	sort.SliceStable(fns, func(i, j int) bool {
		if fns[i].File != fns[j].File {
			return fns[i].File < fns[j].File
		}
		return fns[i].Name < fns[j].Name
	})
	return fns
}

func nextLeftover(funcs []analysis.RawFunction, reached, rooted map[string]bool) (analysis.RawFunction, bool) {
	var best analysis.RawFunction
	found := false
	for _, fn := range funcs {
		if reached[fn.Name] || rooted[fn.Name] {
			continue
		}
		if !found || fn.File < best.File || (fn.File == best.File && fn.Name < best.Name) {
			best = fn
			found = true
		}
	}
	return best, found
}
