package results

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/automaton-cpg/internal/domain/analysis"
)

func testBundle() *domain.Bundle {
	return &domain.Bundle{
		Functions: []domain.RawFunction{
			{Name: "main", File: "main.c", LineNumber: 1, Code: "int main() {}"},
		},
		Calls: []domain.RawCall{
			{Name: "add", Method: "main", File: "main.c", LineNumber: 2},
		},
		CleanFunctions: []domain.RawFunction{
			{Name: "main", File: "main.c", LineNumber: 1, Code: "int main() {}"},
		},
		CleanCalls: []domain.CallEdge{
			{Caller: "main", Callee: "add", File: "main.c", Line: 2},
		},
		TreeLines: []string{"main.c:main", "  main.c:add"},
		Meta:      domain.RunMeta{ExitCode: 0, DurationMS: 1200},
	}
}

func TestPublishAndLoadRoundtrip(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	id := domain.SubmissionID("abc123")
	staging, err := store.NewStaging(id)
	require.NoError(t, err)

	want := testBundle()
	require.NoError(t, store.WriteBundle(staging, want))

	bundle, err := store.Publish(id, staging)
	require.NoError(t, err)
	require.NotEmpty(t, bundle)

	got, err := store.Load(id, bundle)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadWithoutBundle(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("abc123", "")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNotReady))
}

func TestPruneKeepsPublishedBundle(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	id := domain.SubmissionID("abc123")

	// two published generations plus one stale staging dir
	s1, err := store.NewStaging(id)
	require.NoError(t, err)
	require.NoError(t, store.WriteBundle(s1, testBundle()))
	old, err := store.Publish(id, s1)
	require.NoError(t, err)

	s2, err := store.NewStaging(id)
	require.NoError(t, err)
	require.NoError(t, store.WriteBundle(s2, testBundle()))
	fresh, err := store.Publish(id, s2)
	require.NoError(t, err)

	_, err = store.NewStaging(id)
	require.NoError(t, err)

	store.Prune(id, fresh)

	_, err = store.Load(id, fresh)
	assert.NoError(t, err)
	_, err = store.Load(id, old)
	assert.Error(t, err)
}

func TestRegistryRoundtrip(t *testing.T) {
	ctx := context.Background()
	store, err := New(t.TempDir())
	require.NoError(t, err)

	sub := &domain.Submission{
		ID:          "abc123",
		TenantID:    "acme",
		SubmittedAt: time.Now().Truncate(time.Second),
		Status:      domain.StatusRunning,
		SourcePath:  "/code/abc123",
		SourceFiles: 3,
	}
	require.NoError(t, store.Save(ctx, sub))

	got, err := store.Get(ctx, "acme", "abc123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StatusRunning, got.Status)
	assert.Equal(t, 3, got.SourceFiles)

	missing, err := store.Get(ctx, "acme", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	rec := &domain.ErrorRecord{Kind: domain.KindEngineTimeout, Message: "exceeded 300s"}
	require.NoError(t, store.UpdateStatus(ctx, "acme", "abc123", domain.StatusFailed, rec))
	got, err = store.Get(ctx, "acme", "abc123")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, domain.KindEngineTimeout, got.Error.Kind)
}

func TestRestartReconstruction(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	store, err := New(root)
	require.NoError(t, err)

	now := time.Now().Truncate(time.Second)
	require.NoError(t, store.Save(ctx, &domain.Submission{
		ID: "done1", TenantID: "acme", SubmittedAt: now, Status: domain.StatusDone, Bundle: "bundle-x",
	}))
	require.NoError(t, store.Save(ctx, &domain.Submission{
		ID: "run1", TenantID: "acme", SubmittedAt: now, Status: domain.StatusRunning,
	}))

	// a new process over the same root sees Done intact and Running failed
	reopened, err := New(root)
	require.NoError(t, err)

	done, err := reopened.Get(ctx, "acme", "done1")
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.Equal(t, domain.StatusDone, done.Status)
	assert.Equal(t, "bundle-x", done.Bundle)

	run, err := reopened.Get(ctx, "acme", "run1")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, domain.StatusFailed, run.Status)
	require.NotNil(t, run.Error)
	assert.Contains(t, run.Error.Message, "restart")
}

func TestLatestOrderAndTenantFilter(t *testing.T) {
	ctx := context.Background()
	store, err := New(t.TempDir())
	require.NoError(t, err)

	base := time.Now()
	require.NoError(t, store.Save(ctx, &domain.Submission{
		ID: "a", TenantID: "acme", SubmittedAt: base.Add(-2 * time.Hour), Status: domain.StatusDone,
	}))
	require.NoError(t, store.Save(ctx, &domain.Submission{
		ID: "b", TenantID: "acme", SubmittedAt: base.Add(-1 * time.Hour), Status: domain.StatusFailed,
	}))
	require.NoError(t, store.Save(ctx, &domain.Submission{
		ID: "c", TenantID: "other", SubmittedAt: base, Status: domain.StatusDone,
	}))

	list, err := store.Latest(ctx, "acme", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.SubmissionID("b"), list[0].ID)
	assert.Equal(t, domain.SubmissionID("a"), list[1].ID)

	total, done, failed, running, err := store.Summary(ctx, "acme", 7)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, done)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 0, running)
}
