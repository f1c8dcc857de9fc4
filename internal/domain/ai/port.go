package ai

import "context"

type Client interface {
	// Explain turns a rendered call tree into a prose summary of the
	// program's call structure.
	Explain(ctx context.Context, tree string) (string, error)
}
