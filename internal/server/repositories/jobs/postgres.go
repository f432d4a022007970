package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/encounterscribe/internal/common"
	"github.com/dmitrijs2005/encounterscribe/internal/dbx"
	"github.com/dmitrijs2005/encounterscribe/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (id, user_id, recording_path, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, job.ID, job.UserID, job.RecordingPath, string(job.Status)).
		Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const selectJob = `
		SELECT id, user_id, recording_path, status, error_message,
		       transcript_text, soap_note, billing_suggestion, created_at, updated_at
		FROM jobs
`

func (r *PostgresRepository) Get(ctx context.Context, id, userID string) (*models.Job, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectJob+`		WHERE id = $1 AND user_id = $2`, id, userID))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectJob+`		WHERE id = $1`, id))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Job, error) {
	var (
		job    models.Job
		status string
		soap   []byte
	)
	err := row.Scan(&job.ID, &job.UserID, &job.RecordingPath, &status, &job.ErrorMessage,
		&job.TranscriptText, &soap, &job.BillingSuggestion, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	job.Status = models.JobStatus(status)
	if len(soap) > 0 {
		job.SOAPNote = soap
	}
	return &job, nil
}

func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status models.JobStatus) error {
	query := `
		UPDATE jobs SET status = $2, updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, string(status))
}

func (r *PostgresRepository) Complete(ctx context.Context, id, transcript string, soapNote []byte, billing string) error {
	query := `
		UPDATE jobs
		SET status = $2, transcript_text = $3, soap_note = $4::jsonb, billing_suggestion = $5,
		    error_message = '', updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, string(models.JobComplete), transcript, string(soapNote), billing)
}

func (r *PostgresRepository) Fail(ctx context.Context, id, message string) error {
	query := `
		UPDATE jobs SET status = $2, error_message = $3, updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, string(models.JobError), message)
}

func (r *PostgresRepository) ListUnfinished(ctx context.Context) ([]string, error) {
	query := `
		SELECT id FROM jobs
		WHERE status NOT IN ($1, $2)
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, string(models.JobComplete), string(models.JobError))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ids, nil
}

// exec runs an update and maps "no row touched" to common.ErrNotFound.
func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
