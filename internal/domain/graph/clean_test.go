package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-cpg/internal/domain/analysis"
)

func sampleFunctions() []analysis.RawFunction {
	return []analysis.RawFunction{
		{Name: "main", File: "main.c", LineNumber: 20, Code: "int main() { ... }"},
		{Name: "add", File: "main.c", LineNumber: 3, Code: "int add(int a, int b) { return a + b; }"},
		{Name: "subtract", File: "main.c", LineNumber: 7, Code: "int subtract(int a, int b) { return a - b; }"},
		{Name: "process_numbers", File: "main.c", LineNumber: 11, Code: "void process_numbers(...) { ... }"},
		{Name: "print_result", File: "main.c", LineNumber: 16, Code: "void print_result(int r) { ... }"},
		{Name: "<global>", File: "main.c", LineNumber: 1, Code: "<global>"},
		{Name: "<operator>.assignment", File: "main.c", LineNumber: 4, Code: "a = b"},
		{Name: "ghost", File: "<unknown>", LineNumber: 0, Code: "int ghost();"},
		{Name: "stub", File: "main.c", LineNumber: 30, Code: "<empty>"},
	}
}

func sampleCalls() []analysis.RawCall {
	return []analysis.RawCall{
		{Name: "add", Method: "main", File: "main.c", LineNumber: 21},
		{Name: "subtract", Method: "main", File: "main.c", LineNumber: 22},
		{Name: "process_numbers", Method: "main", File: "main.c", LineNumber: 23},
		{Name: "add", Method: "process_numbers", File: "main.c", LineNumber: 12},
		{Name: "print_result", Method: "process_numbers", File: "main.c", LineNumber: 13},
		{Name: "printf", Method: "print_result", File: "main.c", LineNumber: 17},
		// caller filtered out together with its function
		{Name: "add", Method: "<global>", File: "main.c", LineNumber: 1},
		{Name: "<operator>.addition", Method: "add", File: "main.c", LineNumber: 4},
		// unresolved callee that no policy accepts
		{Name: "mystery", Method: "main", File: "main.c", LineNumber: 24},
		{Name: "add", Method: "main", File: "<unknown>", LineNumber: 0},
	}
}

func TestCleanFiltersFunctions(t *testing.T) {
	clean, _ := Clean(sampleFunctions(), nil, DefaultPolicy())

	names := make([]string, 0, len(clean))
	for _, fn := range clean {
		names = append(names, fn.Name)
	}
	assert.Equal(t, []string{"add", "subtract", "process_numbers", "print_result", "main"}, names)
}

func TestCleanEdges(t *testing.T) {
	_, edges := Clean(sampleFunctions(), sampleCalls(), DefaultPolicy())

	want := []analysis.CallEdge{
		{Caller: "process_numbers", Callee: "add", File: "main.c", Line: 12},
		{Caller: "process_numbers", Callee: "print_result", File: "main.c", Line: 13},
		{Caller: "print_result", Callee: "printf", File: "main.c", Line: 17, External: true},
		{Caller: "main", Callee: "add", File: "main.c", Line: 21},
		{Caller: "main", Callee: "subtract", File: "main.c", Line: 22},
		{Caller: "main", Callee: "process_numbers", File: "main.c", Line: 23},
	}
	assert.Equal(t, want, edges)
}

func TestCleanDropsUnresolvedCallee(t *testing.T) {
	funcs := []analysis.RawFunction{
		{Name: "main", File: "main.c", LineNumber: 1, Code: "int main() {}"},
	}
	calls := []analysis.RawCall{
		{Name: "helper_from_nowhere", Method: "main", File: "main.c", LineNumber: 2},
	}

	_, edges := Clean(funcs, calls, DefaultPolicy())
	assert.Empty(t, edges)
}

func TestCleanExternalPolicyDisabled(t *testing.T) {
	p := DefaultPolicy()
	p.AllowExternal = false

	funcs := []analysis.RawFunction{
		{Name: "main", File: "main.c", LineNumber: 1, Code: "int main() {}"},
	}
	calls := []analysis.RawCall{
		{Name: "printf", Method: "main", File: "main.c", LineNumber: 2},
	}

	_, edges := Clean(funcs, calls, p)
	assert.Empty(t, edges)
}

func TestCleanDeduplicatesIdenticalCallSites(t *testing.T) {
	funcs := []analysis.RawFunction{
		{Name: "main", File: "main.c", LineNumber: 1, Code: "int main() {}"},
		{Name: "add", File: "main.c", LineNumber: 5, Code: "int add() {}"},
	}
	calls := []analysis.RawCall{
		{Name: "add", Method: "main", File: "main.c", LineNumber: 2},
		{Name: "add", Method: "main", File: "main.c", LineNumber: 2}, // engine duplicate
		{Name: "add", Method: "main", File: "main.c", LineNumber: 3}, // distinct call site
	}

	_, edges := Clean(funcs, calls, DefaultPolicy())
	require.Len(t, edges, 2)
	assert.Equal(t, 2, edges[0].Line)
	assert.Equal(t, 3, edges[1].Line)
}

func TestCleanIsDeterministic(t *testing.T) {
	funcs := sampleFunctions()
	calls := sampleCalls()

	f1, e1 := Clean(funcs, calls, DefaultPolicy())

	// reversed input must produce byte-identical output
	rf := make([]analysis.RawFunction, len(funcs))
	rc := make([]analysis.RawCall, len(calls))
	for i := range funcs {
		rf[len(funcs)-1-i] = funcs[i]
	}
	for i := range calls {
		rc[len(calls)-1-i] = calls[i]
	}
	f2, e2 := Clean(rf, rc, DefaultPolicy())

	assert.Equal(t, f1, f2)
	assert.Equal(t, e1, e2)
}
