package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domain "github.com/bryanwahyu/automaton-cpg/internal/domain/analysis"
)

type SubmissionRepository struct {
	db *sql.DB
}

func NewSubmissionRepository(db *sql.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Save insert/update Submission record
func (r *SubmissionRepository) Save(ctx context.Context, s *domain.Submission) error {
	const q = `
INSERT INTO analysis_submissions
(id, tenant_id, submitted_at, status, source_path, source_files,
 bundle, artifact_url, duration_ms, error_kind, error_message)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 tenant_id=VALUES(tenant_id), submitted_at=VALUES(submitted_at),
 status=VALUES(status), source_path=VALUES(source_path),
 source_files=VALUES(source_files), bundle=VALUES(bundle),
 artifact_url=VALUES(artifact_url), duration_ms=VALUES(duration_ms),
 error_kind=VALUES(error_kind), error_message=VALUES(error_message);
`
	tenant := stringOrDash(s.TenantID)
	submitted := s.SubmittedAt
	if submitted.IsZero() {
		submitted = time.Now()
	}
	var errKind, errMsg string
	if s.Error != nil {
		errKind = string(s.Error.Kind)
		errMsg = s.Error.Message
	}

	_, err := r.db.ExecContext(ctx, q,
		s.ID, tenant, submitted, s.Status, s.SourcePath, s.SourceFiles,
		s.Bundle, s.ArtifactURL, s.DurationMS, errKind, errMsg,
	)
	return err
}

// Get by ID; tenant is informational only, ids are content-addressed.
func (r *SubmissionRepository) Get(ctx context.Context, _ string, id domain.SubmissionID) (*domain.Submission, error) {
	const q = `
SELECT id, tenant_id, submitted_at, status, source_path, source_files,
       bundle, artifact_url, duration_ms, error_kind, error_message
FROM analysis_submissions
WHERE id=? LIMIT 1;
`
	s, err := scanSubmission(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *SubmissionRepository) UpdateStatus(ctx context.Context, _ string, id domain.SubmissionID, st domain.Status, rec *domain.ErrorRecord) error {
	const q = `
UPDATE analysis_submissions
SET status=?, error_kind=?, error_message=?
WHERE id=?;
`
	var errKind, errMsg string
	if rec != nil {
		errKind = string(rec.Kind)
		errMsg = rec.Message
	}
	res, err := r.db.ExecContext(ctx, q, st, errKind, errMsg, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NewError(domain.KindNotFound, "submission not found: "+string(id))
	}
	return nil
}

// FailInterrupted downgrades rows left running/pending by a dead process.
// Called once at startup: the engine containers died with that process, so
// no result will ever arrive for these rows.
func (r *SubmissionRepository) FailInterrupted(ctx context.Context) (int64, error) {
	const q = `
UPDATE analysis_submissions
SET status='failed', error_kind=?, error_message=?
WHERE status IN ('running','pending');
`
	res, err := r.db.ExecContext(ctx, q,
		string(domain.KindEngineFailure), "run interrupted by service restart")
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Latest submissions per tenant
func (r *SubmissionRepository) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Submission, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, submitted_at, status, source_path, source_files,
       bundle, artifact_url, duration_ms, error_kind, error_message
FROM analysis_submissions
WHERE tenant_id=? ORDER BY submitted_at DESC LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, stringOrDash(tenant), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Summary counts submissions by status since N days
func (r *SubmissionRepository) Summary(ctx context.Context, tenant string, sinceDays int) (int, int, int, int, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	cut := time.Now().AddDate(0, 0, -sinceDays)

	const q = `
SELECT COUNT(*) AS total,
       COALESCE(SUM(status='done'),0)    AS done,
       COALESCE(SUM(status='failed'),0)  AS failed,
       COALESCE(SUM(status IN ('running','pending')),0) AS running
FROM analysis_submissions
WHERE tenant_id=? AND submitted_at >= ?;
`
	var t, d, f, run int
	if err := r.db.QueryRowContext(ctx, q, stringOrDash(tenant), cut).Scan(&t, &d, &f, &run); err != nil {
		return 0, 0, 0, 0, err
	}
	return t, d, f, run, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*domain.Submission, error) {
	var s domain.Submission
	var errKind, errMsg string
	if err := row.Scan(
		&s.ID, &s.TenantID, &s.SubmittedAt, &s.Status, &s.SourcePath, &s.SourceFiles,
		&s.Bundle, &s.ArtifactURL, &s.DurationMS, &errKind, &errMsg,
	); err != nil {
		return nil, err
	}
	if errKind != "" {
		s.Error = &domain.ErrorRecord{Kind: domain.ErrorKind(errKind), Message: errMsg}
	}
	return &s, nil
}
