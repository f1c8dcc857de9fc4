package ai

import (
	"context"

	"github.com/bryanwahyu/automaton-cpg/internal/domain/ai"
)

type Service struct {
	client ai.Client
}

func NewService(client ai.Client) *Service {
	return &Service{client: client}
}

func (s *Service) Explain(ctx context.Context, tree string) (string, error) {
	return s.client.Explain(ctx, tree)
}
