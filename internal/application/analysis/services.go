package analysis

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	domain "github.com/bryanwahyu/automaton-cpg/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-cpg/internal/domain/graph"
	"github.com/bryanwahyu/automaton-cpg/internal/middleware"
)

// Service implements the submit/fetch use-cases around the extraction
// engine. It is the only writer of submission state and is safe for
// concurrent use; mutual exclusion is scoped per submission id.
type Service struct {
	Registry  domain.Registry
	Content   domain.ContentStore
	Runner    domain.Runner
	Results   domain.ResultStore
	Artifacts domain.ArtifactStore // optional
	Clock     Clock
	Policy    graph.Policy

	mu       sync.Mutex
	inflight map[domain.SubmissionID]struct{}
}

// Clock abstraction supaya gampang ditest
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

//
// ==== USE CASES ====
//

// Submit stages the archive, deduplicates on the content id and starts one
// background run. Concurrent submits of identical content collapse onto the
// in-flight (or cached) run; only a Failed submission triggers a fresh one.
func (s *Service) Submit(ctx context.Context, tenant string, archive []byte) (*domain.Submission, error) {
	staged, err := s.Content.Stage(archive)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	existing, err := s.Registry.Get(ctx, tenant, staged.ID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if existing != nil && existing.Status != domain.StatusFailed {
		// Done result is cached; Pending/Running collapses onto the flight
		s.mu.Unlock()
		return existing, nil
	}
	if _, busy := s.inflight[staged.ID]; busy {
		// a Failed submission whose retry is already in flight
		s.mu.Unlock()
		return nil, domain.NewError(domain.KindAlreadyRunning,
			fmt.Sprintf("run already in flight for %s", staged.ID))
	}

	sub := &domain.Submission{
		ID:          staged.ID,
		TenantID:    tenant,
		SubmittedAt: s.Clock.Now(),
		Status:      domain.StatusRunning,
		SourcePath:  staged.Path,
		SourceFiles: staged.SourceFiles,
	}
	if existing != nil {
		// keep the previously published bundle visible during the re-run
		sub.Bundle = existing.Bundle
	}
	// Save inside the critical section: once another submit can observe the
	// in-flight slot, the Running record is already there to collapse onto.
	if err := s.Registry.Save(ctx, sub); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.inflight == nil {
		s.inflight = make(map[domain.SubmissionID]struct{})
	}
	s.inflight[staged.ID] = struct{}{}
	s.mu.Unlock()

	// Runs with context.Background so the run survives the HTTP request
	// that triggered it; cancellation happens via the engine timeout.
	go s.runPipeline(context.Background(), tenant, *sub)

	return sub, nil
}

// Rerun forces a fresh run for an existing submission, typically a Failed
// one. A submission with a run already in flight is rejected AlreadyRunning.
func (s *Service) Rerun(ctx context.Context, tenant string, id domain.SubmissionID) (*domain.Submission, error) {
	s.mu.Lock()
	existing, err := s.Registry.Get(ctx, tenant, id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if existing == nil {
		s.mu.Unlock()
		return nil, domain.NewError(domain.KindNotFound, fmt.Sprintf("submission not found: %s", id))
	}
	// Only the in-flight map gates a rerun: a persisted Running row with no
	// live run (crash mid-run under a SQL registry) must stay retryable.
	if _, busy := s.inflight[id]; busy {
		s.mu.Unlock()
		return nil, domain.NewError(domain.KindAlreadyRunning,
			fmt.Sprintf("run already in flight for %s", id))
	}

	sub := *existing
	sub.Status = domain.StatusRunning
	sub.SubmittedAt = s.Clock.Now()
	sub.Error = nil
	if err := s.Registry.Save(ctx, &sub); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.inflight == nil {
		s.inflight = make(map[domain.SubmissionID]struct{})
	}
	s.inflight[id] = struct{}{}
	s.mu.Unlock()

	go s.runPipeline(context.Background(), tenant, sub)
	return &sub, nil
}

// FetchResult is what fetch serves: status always, bundle only when Done.
type FetchResult struct {
	ID          domain.SubmissionID `json:"id"`
	Status      domain.Status       `json:"status"`
	SubmittedAt time.Time           `json:"submitted_at"`
	DurationMS  int64               `json:"duration_ms,omitempty"`
	ArtifactURL string              `json:"artifact_url,omitempty"`
	Error       *domain.ErrorRecord `json:"error,omitempty"`
	Bundle      *domain.Bundle      `json:"results,omitempty"`
}

// Fetch is read-only and always safe to call concurrently: it observes one
// of the four statuses plus, when Done, a fully consistent bundle.
func (s *Service) Fetch(ctx context.Context, tenant string, id domain.SubmissionID) (*FetchResult, error) {
	// Two attempts: a republish racing this fetch can prune the bundle the
	// first status read named, so a failed load re-resolves through the
	// fresh status once before giving up.
	for attempt := 0; ; attempt++ {
		sub, err := s.Registry.Get(ctx, tenant, id)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return nil, domain.NewError(domain.KindNotFound, fmt.Sprintf("submission not found: %s", id))
		}

		res := &FetchResult{
			ID:          sub.ID,
			Status:      sub.Status,
			SubmittedAt: sub.SubmittedAt,
			DurationMS:  sub.DurationMS,
			ArtifactURL: sub.ArtifactURL,
			Error:       sub.Error,
		}
		if sub.Status != domain.StatusDone {
			return res, nil
		}
		bundle, err := s.Results.Load(sub.ID, sub.Bundle)
		if err != nil {
			if attempt == 0 {
				continue
			}
			return nil, err
		}
		res.Bundle = bundle
		return res, nil
	}
}

// Latest ambil N submission terakhir
func (s *Service) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Submission, error) {
	return s.Registry.Latest(ctx, tenant, limit)
}

// Summary rekap status submission N hari terakhir
func (s *Service) Summary(ctx context.Context, tenant string, sinceDays int) (map[string]any, error) {
	total, done, failed, running, err := s.Registry.Summary(ctx, tenant, sinceDays)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"total_submissions": total,
		"done":              done,
		"failed":            failed,
		"running":           running,
	}, nil
}

//
// ==== pipeline ====
//

// runPipeline: engine → clean → tree → atomic publish → registry update.
// Exactly one instance per id can be alive; release happens on every path.
func (s *Service) runPipeline(ctx context.Context, tenant string, sub domain.Submission) {
	defer s.release(sub.ID)
	middleware.IncrementAnalysesRunning()
	defer middleware.DecrementAnalysesRunning()

	staging, err := s.Results.NewStaging(sub.ID)
	if err != nil {
		s.fail(ctx, tenant, &sub, err)
		return
	}

	res, err := s.Runner.Run(ctx, domain.RunRequest{
		ID:          sub.ID,
		SourcePath:  sub.SourcePath,
		ResultsPath: staging,
	})
	if err != nil {
		s.Results.Discard(staging)
		s.fail(ctx, tenant, &sub, err)
		return
	}

	cleanFns, edges := graph.Clean(res.Functions, res.Calls, s.Policy)
	tree := graph.BuildTree(cleanFns, edges, s.Policy)

	bundle := &domain.Bundle{
		Functions:      res.Functions,
		Calls:          res.Calls,
		CleanFunctions: cleanFns,
		CleanCalls:     edges,
		TreeLines:      graph.Render(tree),
		Meta:           res.Meta,
	}
	if err := s.Results.WriteBundle(staging, bundle); err != nil {
		s.Results.Discard(staging)
		s.fail(ctx, tenant, &sub, err)
		return
	}

	name, err := s.Results.Publish(sub.ID, staging)
	if err != nil {
		s.Results.Discard(staging)
		s.fail(ctx, tenant, &sub, err)
		return
	}

	sub.Status = domain.StatusDone
	sub.Bundle = name
	sub.DurationMS = res.Meta.DurationMS
	sub.Error = nil

	if s.Artifacts != nil {
		key := fmt.Sprintf("%s/%s/%s", tenant, sub.ID, "call_graph_tree.txt")
		url, uerr := s.Artifacts.Upload(ctx, s.Results.TreePath(sub.ID, name), key)
		if uerr != nil {
			// the local bundle stays authoritative; remote copy is best effort
			log.Printf("artifact upload failed for id=%s: %v", sub.ID, uerr)
		} else {
			sub.ArtifactURL = url
		}
	}

	if err := s.Registry.Save(ctx, &sub); err != nil {
		log.Printf("saving done submission id=%s: %v", sub.ID, err)
		return
	}
	s.Results.Prune(sub.ID, name)
}

func (s *Service) fail(ctx context.Context, tenant string, sub *domain.Submission, cause error) {
	kind := domain.KindOf(cause)
	if kind == "" {
		kind = domain.KindEngineFailure
	}
	rec := &domain.ErrorRecord{Kind: kind, Message: cause.Error()}
	if err := s.Registry.UpdateStatus(ctx, tenant, sub.ID, domain.StatusFailed, rec); err != nil {
		log.Printf("recording failure id=%s: %v", sub.ID, err)
	}
	middleware.IncrementAnalysesFailed()
	log.Printf("analysis failed id=%s kind=%s: %v", sub.ID, kind, cause)
}

func (s *Service) release(id domain.SubmissionID) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}
