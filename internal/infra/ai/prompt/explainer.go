package prompt

import "fmt"

// GetSystemPrompt frames the model as a C/C++ reviewer of call trees.
func GetSystemPrompt() string {
	return `You are a senior C/C++ engineer reviewing the call structure of a program.
You receive a call tree extracted by static analysis: one function per line,
indentation shows caller/callee nesting, "?:" marks external library calls and
"[cycle]" marks a recursive edge back to an ancestor.
Respond with a JSON object: {"summary": "...", "entry_points": [...],
"recursion": [...], "external_dependencies": [...], "observations": [...]}.
Be factual; only describe what the tree shows.`
}

// GetUserPrompt wraps the rendered tree for the chat turn.
func GetUserPrompt(tree string) string {
	return fmt.Sprintf("Explain the following call tree:\n\n%s", tree)
}
