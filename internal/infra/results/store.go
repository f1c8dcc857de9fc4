package results

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/bryanwahyu/automaton-cpg/internal/domain/analysis"
)

// Bundle file names, fixed by the persisted layout.
const (
	fileFunctions      = "functions.json"
	fileCallGraph      = "call_graph.json"
	fileFunctionsClean = "functions_clean.json"
	fileCallGraphClean = "call_graph_clean.json"
	fileCallGraphTree  = "call_graph_tree.txt"
	fileResultMeta     = "result.json"
	fileStatus         = "status.json"
)

// Store persists per-submission artifact bundles under one directory per
// submission id and owns the submission registry: status.json markers are
// the durable state the facade reconstructs on restart.
//
// Directory layout:
//
//	<root>/<id>/status.json          status marker (atomic temp+rename)
//	<root>/<id>/staging-<uuid>/      in-progress run output
//	<root>/<id>/bundle-<uuid>/       published bundle (named by status.json)
type Store struct {
	root string

	mu   sync.RWMutex
	subs map[domain.SubmissionID]*domain.Submission
}

// New opens the store and reconstructs the registry from disk. Submissions
// left Running by a previous process are downgraded to Failed: their engine
// container died with the process and no result will ever arrive.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	s := &Store{root: root, subs: make(map[domain.SubmissionID]*domain.Submission)}

	dirs, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		sub, err := s.readStatus(domain.SubmissionID(d.Name()))
		if err != nil {
			continue // partial dir without a marker; ignore
		}
		if sub.Status == domain.StatusRunning || sub.Status == domain.StatusPending {
			sub.Status = domain.StatusFailed
			sub.Error = &domain.ErrorRecord{
				Kind:    domain.KindEngineFailure,
				Message: "run interrupted by service restart",
			}
			if err := s.writeStatus(sub); err != nil {
				return nil, err
			}
		}
		s.subs[sub.ID] = sub
	}
	return s, nil
}

//
// ==== Registry ====
//

func (s *Store) Save(_ context.Context, sub *domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeStatus(sub); err != nil {
		return err
	}
	cp := *sub
	s.subs[sub.ID] = &cp
	return nil
}

// Get ignores the tenant on purpose: submission ids are content-addressed
// and globally unique, so identical uploads share one record.
func (s *Store) Get(_ context.Context, _ string, id domain.SubmissionID) (*domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

func (s *Store) UpdateStatus(_ context.Context, _ string, id domain.SubmissionID, st domain.Status, rec *domain.ErrorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return domain.NewError(domain.KindNotFound, fmt.Sprintf("submission not found: %s", id))
	}
	sub.Status = st
	sub.Error = rec
	return s.writeStatus(sub)
}

func (s *Store) Latest(_ context.Context, tenant string, limit int) ([]*domain.Submission, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Submission
	for _, sub := range s.subs {
		if tenant != "" && sub.TenantID != tenant {
			continue
		}
		cp := *sub
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Summary(_ context.Context, tenant string, sinceDays int) (int, int, int, int, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	cut := time.Now().AddDate(0, 0, -sinceDays)

	s.mu.RLock()
	defer s.mu.RUnlock()
	var total, done, failed, running int
	for _, sub := range s.subs {
		if tenant != "" && sub.TenantID != tenant {
			continue
		}
		if sub.SubmittedAt.Before(cut) {
			continue
		}
		total++
		switch sub.Status {
		case domain.StatusDone:
			done++
		case domain.StatusFailed:
			failed++
		case domain.StatusRunning, domain.StatusPending:
			running++
		}
	}
	return total, done, failed, running, nil
}

//
// ==== ResultStore ====
//

func (s *Store) NewStaging(id domain.SubmissionID) (string, error) {
	dir := filepath.Join(s.root, string(id), "staging-"+uuid.New().String())
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return "", err
	}
	// the engine container writes here as a non-root uid
	if err := os.Chmod(dir, 0o777); err != nil {
		return "", err
	}
	return dir, nil
}

// WriteBundle materializes the full bundle into the staging directory.
// Raw engine files are rewritten from the parsed records so published
// artifacts are normalized and byte-reproducible.
func (s *Store) WriteBundle(stagingDir string, b *domain.Bundle) error {
	files := map[string]any{
		fileFunctions:      b.Functions,
		fileCallGraph:      b.Calls,
		fileFunctionsClean: b.CleanFunctions,
		fileCallGraphClean: b.CleanCalls,
		fileResultMeta:     b.Meta,
	}
	for name, v := range files {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(stagingDir, name), append(data, '\n'), 0o644); err != nil {
			return err
		}
	}
	tree := strings.Join(b.TreeLines, "\n") + "\n"
	return os.WriteFile(filepath.Join(stagingDir, fileCallGraphTree), []byte(tree), 0o644)
}

// Publish promotes a staging directory to a bundle directory. The bundle
// only becomes visible once the caller saves a status marker naming it, so
// a fetch sees the previous Done bundle until then, never a torn one.
func (s *Store) Publish(id domain.SubmissionID, stagingDir string) (string, error) {
	bundle := "bundle-" + uuid.New().String()
	if err := os.Rename(stagingDir, filepath.Join(s.root, string(id), bundle)); err != nil {
		return "", err
	}
	return bundle, nil
}

// Prune removes every staging/bundle directory except the one named keep.
// Called after the status marker points at the fresh bundle.
func (s *Store) Prune(id domain.SubmissionID, keep string) {
	base := filepath.Join(s.root, string(id))
	dirs, err := os.ReadDir(base)
	if err != nil {
		return
	}
	for _, d := range dirs {
		if !d.IsDir() || d.Name() == keep {
			continue
		}
		_ = os.RemoveAll(filepath.Join(base, d.Name()))
	}
}

func (s *Store) Discard(stagingDir string) {
	_ = os.RemoveAll(stagingDir)
}

// Load reads a published bundle by the name recorded on the Submission.
func (s *Store) Load(id domain.SubmissionID, bundle string) (*domain.Bundle, error) {
	if bundle == "" {
		return nil, domain.NewError(domain.KindNotReady, fmt.Sprintf("no published bundle for %s", id))
	}

	dir := filepath.Join(s.root, string(id), bundle)
	var b domain.Bundle
	if err := readJSON(filepath.Join(dir, fileFunctions), &b.Functions); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, fileCallGraph), &b.Calls); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, fileFunctionsClean), &b.CleanFunctions); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, fileCallGraphClean), &b.CleanCalls); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, fileResultMeta), &b.Meta); err != nil {
		return nil, err
	}
	tree, err := os.ReadFile(filepath.Join(dir, fileCallGraphTree))
	if err != nil {
		return nil, err
	}
	b.TreeLines = strings.Split(strings.TrimRight(string(tree), "\n"), "\n")
	return &b, nil
}

// TreePath returns the rendered tree artifact of a published bundle.
func (s *Store) TreePath(id domain.SubmissionID, bundle string) string {
	return filepath.Join(s.root, string(id), bundle, fileCallGraphTree)
}

//
// ==== marker I/O ====
//

func (s *Store) statusPath(id domain.SubmissionID) string {
	return filepath.Join(s.root, string(id), fileStatus)
}

func (s *Store) readStatus(id domain.SubmissionID) (*domain.Submission, error) {
	data, err := os.ReadFile(s.statusPath(id))
	if err != nil {
		return nil, err
	}
	var sub domain.Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// writeStatus replaces the marker atomically: temp file + rename.
func (s *Store) writeStatus(sub *domain.Submission) error {
	dir := filepath.Join(s.root, string(sub.ID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(sub, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%s", fileStatus, uuid.New().String()))
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.statusPath(sub.ID)); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
