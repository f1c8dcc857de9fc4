package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRawFunctions(t *testing.T) {
	payload := `[
		{"name":"main","file":"main.c","lineNumber":10,"code":"int main() {}","signature":"int main()"},
		{"name":"stub","file":"main.c","lineNumber":20,"code":"<empty>"}
	]`

	fns, err := ParseRawFunctions([]byte(payload))
	require.NoError(t, err)
	require.Len(t, fns, 2)
	assert.Equal(t, "main", fns[0].Name)
	assert.Equal(t, 10, fns[0].LineNumber)
	assert.Equal(t, "int main()", fns[0].Signature)
	assert.Equal(t, "<empty>", fns[1].Code)
	assert.Empty(t, fns[1].Signature)
}

func TestParseRawFunctionsSingleObject(t *testing.T) {
	payload := `{"name":"main","file":"main.c","lineNumber":"10","code":"int main() {}"}`

	fns, err := ParseRawFunctions([]byte(payload))
	require.NoError(t, err)
	require.Len(t, fns, 1)
	// stringified line numbers are tolerated
	assert.Equal(t, 10, fns[0].LineNumber)
}

func TestParseRawFunctionsRejectsMissingField(t *testing.T) {
	payload := `[{"file":"main.c","lineNumber":10,"code":"x"}]`

	_, err := ParseRawFunctions([]byte(payload))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindCleaningError))
	assert.Contains(t, err.Error(), "name")
}

func TestParseRawFunctionsRejectsNonJSON(t *testing.T) {
	_, err := ParseRawFunctions([]byte("Exception in thread main"))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindCleaningError))
}

func TestParseRawFunctionsEmptyPayload(t *testing.T) {
	fns, err := ParseRawFunctions([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, fns)
}

func TestParseRawCalls(t *testing.T) {
	payload := `[{"name":"add","method":"main","file":"main.c","lineNumber":12}]`

	calls, err := ParseRawCalls([]byte(payload))
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "add", calls[0].Name)
	assert.Equal(t, "main", calls[0].Method)
	assert.Equal(t, 12, calls[0].LineNumber)
}

func TestParseRawCallsRejectsWrongType(t *testing.T) {
	payload := `[{"name":"add","method":"main","file":"main.c","lineNumber":{"v":1}}]`

	_, err := ParseRawCalls([]byte(payload))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindCleaningError))
	assert.Contains(t, err.Error(), "lineNumber")
}

func TestErrorKindUnwrapping(t *testing.T) {
	inner := NewError(KindEngineTimeout, "engine run exceeded 300s")
	wrapped := WrapError(KindEngineFailure, "run failed", inner)

	// outermost kind wins
	assert.Equal(t, KindEngineFailure, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindEngineFailure))
	assert.False(t, IsKind(nil, KindEngineFailure))
}
