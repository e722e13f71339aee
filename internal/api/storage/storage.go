package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/datagrid-io/transferq/internal/api/domain"
	"github.com/datagrid-io/transferq/internal/api/model"
	"github.com/datagrid-io/transferq/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

// Storage persists jobs, their files and delegated credentials.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(pg *postgresql.Client, logger *slog.Logger) *Storage {
	return &Storage{
		db:     pg.GetDB(),
		logger: logger,
	}
}

// CreateJob inserts a job and all its files in one transaction, so a reader
// never sees a job without its files. File ids assigned by the database are
// written back into the records.
func (s *Storage) CreateJob(ctx context.Context, job *model.Job) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	jobQuery := `
		INSERT INTO t_job (
			job_id, job_state, user_dn, vo_name, cred_id, user_cred, voms_cred,
			submit_host, source_se, dest_se, reuse_job, overwrite_flag,
			verify_checksum, space_token, source_space_token, bring_online,
			copy_pin_lifetime, job_params, job_metadata, priority, reason,
			submit_time, finish_time, job_finished
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, $16,
			$17, $18, $19, $20, $21,
			$22, $23, $24
		)
	`

	_, err = tx.ExecContext(
		ctx,
		jobQuery,
		job.JobID,
		job.JobState,
		job.UserDN,
		job.VOName,
		job.CredID,
		job.UserCred,
		job.VomsCred,
		job.SubmitHost,
		job.SourceSE,
		job.DestSE,
		job.ReuseJob,
		job.OverwriteFlag,
		job.VerifyChecksum,
		job.SpaceToken,
		job.SourceSpaceToken,
		job.BringOnline,
		job.CopyPinLifetime,
		job.JobParams,
		job.JobMetadata,
		job.Priority,
		job.Reason,
		job.SubmitTime,
		job.FinishTime,
		job.JobFinished,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	fileQuery := `
		INSERT INTO t_file (
			job_id, file_index, file_state, source_surl, dest_surl,
			source_se, dest_se, checksum, user_filesize, selection_strategy,
			file_metadata, reason, finish_time, job_finished
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14
		)
		RETURNING file_id
	`

	for i := range job.Files {
		f := &job.Files[i]
		err = tx.QueryRowContext(
			ctx,
			fileQuery,
			job.JobID,
			f.FileIndex,
			f.FileState,
			f.SourceSURL,
			f.DestSURL,
			f.SourceSE,
			f.DestSE,
			f.Checksum,
			f.UserFilesize,
			f.SelectionStrategy,
			f.FileMetadata,
			f.Reason,
			f.FinishTime,
			f.JobFinished,
		).Scan(&f.FileID)
		if err != nil {
			return fmt.Errorf("failed to insert file: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit job: %w", err)
	}

	s.logger.Info("Job stored",
		slog.String("job_id", job.JobID),
		slog.Int("files", len(job.Files)),
	)

	return nil
}

// GetJob loads a job with its files, ordered by file id.
func (s *Storage) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	jobQuery := `
		SELECT
			job_id, job_state, user_dn, vo_name, cred_id, user_cred, voms_cred,
			submit_host, source_se, dest_se, reuse_job, overwrite_flag,
			verify_checksum, space_token, source_space_token, bring_online,
			copy_pin_lifetime, job_params, job_metadata, priority, reason,
			submit_time, finish_time, job_finished
		FROM t_job
		WHERE job_id = $1
	`

	err := s.db.GetContext(ctx, &job, jobQuery, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	fileQuery := `
		SELECT
			file_id, job_id, file_index, file_state, source_surl, dest_surl,
			source_se, dest_se, checksum, user_filesize, selection_strategy,
			file_metadata, reason, finish_time, job_finished
		FROM t_file
		WHERE job_id = $1
		ORDER BY file_id
	`

	if err := s.db.SelectContext(ctx, &job.Files, fileQuery, jobID); err != nil {
		return nil, fmt.Errorf("failed to get job files: %w", err)
	}

	return &job, nil
}

// JobFilter narrows down the active-job listing.
type JobFilter struct {
	UserDN string
	VOName string
}

// ListActiveJobs returns all jobs still in an active state, optionally
// filtered by owner DN and VO. Files are not loaded for listings.
func (s *Storage) ListActiveJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `
		SELECT
			job_id, job_state, user_dn, vo_name, cred_id, user_cred, voms_cred,
			submit_host, source_se, dest_se, reuse_job, overwrite_flag,
			verify_checksum, space_token, source_space_token, bring_online,
			copy_pin_lifetime, job_params, job_metadata, priority, reason,
			submit_time, finish_time, job_finished
		FROM t_job
		WHERE job_state IN (?)
	`
	args := []interface{}{model.ActiveStates}

	if filter.UserDN != "" {
		query += " AND user_dn = ?"
		args = append(args, filter.UserDN)
	}

	if filter.VOName != "" {
		query += " AND vo_name = ?"
		args = append(args, filter.VOName)
	}

	query += " ORDER BY submit_time DESC, job_id DESC"

	query, expanded, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to build job listing query: %w", err)
	}
	query = s.db.Rebind(query)

	jobs := []model.Job{}
	if err := s.db.SelectContext(ctx, &jobs, query, expanded...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// SaveJobStates writes the job's lifecycle fields and those of every file
// back to the database as one transaction. The cancel cascade relies on
// this so no reader ever observes a canceled job with active files.
func (s *Storage) SaveJobStates(ctx context.Context, job *model.Job) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	jobQuery := `
		UPDATE t_job
		SET job_state = $1, reason = $2, finish_time = $3, job_finished = $4
		WHERE job_id = $5
	`

	_, err = tx.ExecContext(ctx, jobQuery, job.JobState, job.Reason, job.FinishTime, job.JobFinished, job.JobID)
	if err != nil {
		return fmt.Errorf("failed to update job state: %w", err)
	}

	fileQuery := `
		UPDATE t_file
		SET file_state = $1, reason = $2, finish_time = $3, job_finished = $4
		WHERE file_id = $5
	`

	for i := range job.Files {
		f := &job.Files[i]
		_, err = tx.ExecContext(ctx, fileQuery, f.FileState, f.Reason, f.FinishTime, f.JobFinished, f.FileID)
		if err != nil {
			return fmt.Errorf("failed to update file state: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state update: %w", err)
	}

	s.logger.Info("Job states updated",
		slog.String("job_id", job.JobID),
		slog.String("job_state", job.JobState.String()),
	)

	return nil
}

// GetCredential looks up the delegated credential stored for a delegation
// id and DN pair.
func (s *Storage) GetCredential(ctx context.Context, dlgID, userDN string) (*model.Credential, error) {
	var cred model.Credential
	query := `
		SELECT dlg_id, dn, proxy, voms_attrs, termination_time
		FROM t_credential
		WHERE dlg_id = $1 AND dn = $2
	`

	err := s.db.GetContext(ctx, &cred, query, dlgID, userDN)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return &cred, nil
}
