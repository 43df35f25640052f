package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/walktrack/backend/internal/db"
	"github.com/walktrack/backend/internal/models"
)

const walkColumns = `id, user_id, title, description, start_time, end_time, distance, steps,
        polyline, thumbnail_url, status, paused_at, total_paused_duration, created_at, updated_at`

// PostgresWalkRepository provides PostgreSQL-backed persistence for walks.
type PostgresWalkRepository struct {
	db db.Querier
}

// NewPostgresWalkRepository constructs a walk repository backed by PostgreSQL.
func NewPostgresWalkRepository(q db.Querier) *PostgresWalkRepository {
	return &PostgresWalkRepository{db: q}
}

func walkArgs(w models.Walk) []any {
	return []any{
		w.ID, w.UserID, w.Title, w.Description, w.StartTime, w.EndTime, w.Distance, w.Steps,
		w.Polyline, w.ThumbnailURL, string(w.Status), w.PausedAt, w.TotalPausedDuration,
		w.CreatedAt, w.UpdatedAt,
	}
}

func scanWalk(row pgx.Row) (models.Walk, error) {
	var (
		w      models.Walk
		status string
	)
	if err := row.Scan(
		&w.ID, &w.UserID, &w.Title, &w.Description, &w.StartTime, &w.EndTime, &w.Distance, &w.Steps,
		&w.Polyline, &w.ThumbnailURL, &status, &w.PausedAt, &w.TotalPausedDuration,
		&w.CreatedAt, &w.UpdatedAt,
	); err != nil {
		return models.Walk{}, err
	}
	w.Status = models.WalkStatus(status)
	return w, nil
}

// Create persists a new walk.
func (r *PostgresWalkRepository) Create(ctx context.Context, walk models.Walk) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO walks (`+walkColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
    `, walkArgs(walk)...)
	if err != nil {
		return translate(err, "insert walk")
	}
	return nil
}

// FindByID fetches a walk by id.
func (r *PostgresWalkRepository) FindByID(ctx context.Context, id uuid.UUID) (models.Walk, error) {
	row := r.db.QueryRow(ctx, `
        SELECT `+walkColumns+`
        FROM walks
        WHERE id = $1
    `, id)

	walk, err := scanWalk(row)
	if err != nil {
		return models.Walk{}, translate(err, "select walk")
	}
	return walk, nil
}

// FindByUserID returns a page of the user's walks, newest created first.
func (r *PostgresWalkRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]models.Walk, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+walkColumns+`
        FROM walks
        WHERE user_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2 OFFSET $3
    `, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query walks: %w", err)
	}
	defer rows.Close()

	walks := make([]models.Walk, 0, limit)
	for rows.Next() {
		walk, err := scanWalk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan walk: %w", err)
		}
		walks = append(walks, walk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate walks: %w", err)
	}
	return walks, nil
}

// Update replaces every mutable column of an existing walk, provided the stored row
// still carries previousUpdatedAt. A row that is missing or was changed in the
// meantime is left untouched and reported as ErrConflict.
func (r *PostgresWalkRepository) Update(ctx context.Context, walk models.Walk, previousUpdatedAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE walks
        SET title = $2, description = $3, start_time = $4, end_time = $5, distance = $6,
            steps = $7, polyline = $8, thumbnail_url = $9, status = $10, paused_at = $11,
            total_paused_duration = $12, updated_at = $13
        WHERE id = $1 AND updated_at = $14
    `, walk.ID, walk.Title, walk.Description, walk.StartTime, walk.EndTime, walk.Distance,
		walk.Steps, walk.Polyline, walk.ThumbnailURL, string(walk.Status), walk.PausedAt,
		walk.TotalPausedDuration, walk.UpdatedAt, previousUpdatedAt)
	if err != nil {
		return translate(err, "update walk")
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// UpdateDistance sets the distance of a walk that is still in progress or paused and
// returns the stored row. Status and pause bookkeeping are not written, so concurrent
// transitions are preserved. A walk that is missing or completed yields ErrNotFound.
func (r *PostgresWalkRepository) UpdateDistance(ctx context.Context, id uuid.UUID, meters float64, updatedAt time.Time) (models.Walk, error) {
	row := r.db.QueryRow(ctx, `
        UPDATE walks
        SET distance = $2, updated_at = $3
        WHERE id = $1 AND status IN ('in_progress', 'paused')
        RETURNING `+walkColumns, id, meters, updatedAt)

	walk, err := scanWalk(row)
	if err != nil {
		return models.Walk{}, translate(err, "update walk distance")
	}
	return walk, nil
}

// Upsert inserts the walk or overwrites the row with the same id. A row owned by a
// different user is left untouched and reported as ErrConflict.
func (r *PostgresWalkRepository) Upsert(ctx context.Context, walk models.Walk) error {
	tag, err := r.db.Exec(ctx, `
        INSERT INTO walks (`+walkColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        ON CONFLICT (id) DO UPDATE SET
            title = EXCLUDED.title,
            description = EXCLUDED.description,
            start_time = EXCLUDED.start_time,
            end_time = EXCLUDED.end_time,
            distance = EXCLUDED.distance,
            steps = EXCLUDED.steps,
            polyline = EXCLUDED.polyline,
            thumbnail_url = EXCLUDED.thumbnail_url,
            status = EXCLUDED.status,
            paused_at = EXCLUDED.paused_at,
            total_paused_duration = EXCLUDED.total_paused_duration,
            updated_at = EXCLUDED.updated_at
        WHERE walks.user_id = EXCLUDED.user_id
    `, walkArgs(walk)...)
	if err != nil {
		return translate(err, "upsert walk")
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// Delete removes a walk; its locations go with it through the foreign key cascade.
func (r *PostgresWalkRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM walks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete walk: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of walks owned by the user.
func (r *PostgresWalkRepository) Count(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM walks WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count walks: %w", err)
	}
	return count, nil
}

var _ WalkRepository = (*PostgresWalkRepository)(nil)
