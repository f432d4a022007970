package encounters

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/encounterscribe/internal/dbx"
	"github.com/dmitrijs2005/encounterscribe/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, e *models.Encounter) error {
	query := `
		INSERT INTO encounters (id, user_id, name, recording_path, duration_seconds, transcript,
		                        subjective, objective, assessment, plan, billing_suggestion)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		e.ID, e.UserID, e.Name, e.RecordingPath, e.DurationSeconds, e.Transcript,
		e.Subjective, e.Objective, e.Assessment, e.Plan, e.BillingSuggestion,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
