package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/lib/pq"

	domain "github.com/bryanwahyu/automaton-cpg/internal/domain/analysis"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		return nil, err
	}
	return db, nil
}

type SubmissionRepository struct {
	db *sql.DB
}

func NewSubmissionRepository(db *sql.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func (r *SubmissionRepository) Save(ctx context.Context, s *domain.Submission) error {
	const q = `
INSERT INTO analysis_submissions
(id, tenant_id, submitted_at, status, source_path, source_files,
 bundle, artifact_url, duration_ms, error_kind, error_message)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
 tenant_id=EXCLUDED.tenant_id, submitted_at=EXCLUDED.submitted_at,
 status=EXCLUDED.status, source_path=EXCLUDED.source_path,
 source_files=EXCLUDED.source_files, bundle=EXCLUDED.bundle,
 artifact_url=EXCLUDED.artifact_url, duration_ms=EXCLUDED.duration_ms,
 error_kind=EXCLUDED.error_kind, error_message=EXCLUDED.error_message;
`
	tenant := s.TenantID
	if strings.TrimSpace(tenant) == "" {
		tenant = "-"
	}
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

func (r *SubmissionRepository) Get(ctx context.Context, _ string, id domain.SubmissionID) (*domain.Submission, error) {
	const q = `
SELECT id, tenant_id, submitted_at, status, source_path, source_files,
       bundle, artifact_url, duration_ms, error_kind, error_message
FROM analysis_submissions
WHERE id=$1 LIMIT 1;
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
SET status=$1, error_kind=$2, error_message=$3
WHERE id=$4;
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
// Called once at startup, mirroring the filesystem registry's restart pass.
func (r *SubmissionRepository) FailInterrupted(ctx context.Context) (int64, error) {
	const q = `
UPDATE analysis_submissions
SET status='failed', error_kind=$1, error_message=$2
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

func (r *SubmissionRepository) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Submission, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, submitted_at, status, source_path, source_files,
       bundle, artifact_url, duration_ms, error_kind, error_message
FROM analysis_submissions
WHERE tenant_id=$1 ORDER BY submitted_at DESC LIMIT $2;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, limit)
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

func (r *SubmissionRepository) Summary(ctx context.Context, tenant string, sinceDays int) (int, int, int, int, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	cut := time.Now().AddDate(0, 0, -sinceDays)

	const q = `
SELECT COUNT(*) AS total,
       COUNT(*) FILTER (WHERE status='done')   AS done,
       COUNT(*) FILTER (WHERE status='failed') AS failed,
       COUNT(*) FILTER (WHERE status IN ('running','pending')) AS running
FROM analysis_submissions
WHERE tenant_id=$1 AND submitted_at >= $2;
`
	var t, d, f, run int
	if err := r.db.QueryRowContext(ctx, q, tenant, cut).Scan(&t, &d, &f, &run); err != nil {
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
