package graph

import (
	"sort"

	"github.com/bryanwahyu/automaton-cpg/internal/domain/analysis"
)

// Clean filters raw extraction records into the clean function set and the
// clean call-edge set. It is a pure function: identical input yields
// byte-identical output, including ordering, so published artifacts stay
// diffable and cache-friendly.
func Clean(funcs []analysis.RawFunction, calls []analysis.RawCall, p Policy) ([]analysis.RawFunction, []analysis.CallEdge) {
	clean := make([]analysis.RawFunction, 0, len(funcs))
	known := make(map[string]struct{}, len(funcs))
	for _, fn := range funcs {
		if !keepFunction(fn, p) {
			continue
		}
		clean = append(clean, fn)
		known[fn.Name] = struct{}{}
	}

	edges := make([]analysis.CallEdge, 0, len(calls))
	seen := make(map[analysis.CallEdge]struct{}, len(calls))
	for _, c := range calls {
		e, ok := keepCall(c, known, p)
		if !ok {
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		edges = append(edges, e)
	}

	sort.SliceStable(clean, func(i, j int) bool {
		a, b := clean[i], clean[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.LineNumber != b.LineNumber {
			return a.LineNumber < b.LineNumber
		}
		return a.Name < b.Name
	})
	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Callee != b.Callee {
			return a.Callee < b.Callee
		}
		return a.Caller < b.Caller
	})
	return clean, edges
}

func keepFunction(fn analysis.RawFunction, p Policy) bool {
	if p.isEmptyBody(fn.Code) {
		return false
	}
	if p.isOperator(fn.Name) || p.isSystem(fn.Name) {
		return false
	}
	if fn.File == p.UnknownFile || fn.File == "" {
		return false
	}
	return true
}

func keepCall(c analysis.RawCall, known map[string]struct{}, p Policy) (analysis.CallEdge, bool) {
	if c.Method == p.GlobalScope {
		return analysis.CallEdge{}, false
	}
	if _, ok := known[c.Method]; !ok {
		// caller was itself filtered out
		return analysis.CallEdge{}, false
	}
	if c.File == p.UnknownFile {
		return analysis.CallEdge{}, false
	}
	if p.isOperator(c.Name) {
		return analysis.CallEdge{}, false
	}
	e := analysis.CallEdge{
		Caller: c.Method,
		Callee: c.Name,
		File:   c.File,
		Line:   c.LineNumber,
	}
	if _, ok := known[c.Name]; ok {
		return e, true
	}
	if p.AllowExternal && p.isSystem(c.Name) {
		e.External = true
		return e, true
	}
	return analysis.CallEdge{}, false
}
