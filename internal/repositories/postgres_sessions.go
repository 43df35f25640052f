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

const sessionColumns = `id, user_id, refresh_token_hash, user_agent, ip_address, expires_at, created_at, updated_at`

// PostgresSessionRepository persists refresh-token sessions to PostgreSQL.
type PostgresSessionRepository struct {
	db db.Querier
}

// NewPostgresSessionRepository constructs a session repository backed by PostgreSQL.
func NewPostgresSessionRepository(q db.Querier) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: q}
}

func scanSession(row pgx.Row) (models.Session, error) {
	var s models.Session
	if err := row.Scan(&s.ID, &s.UserID, &s.RefreshTokenHash, &s.UserAgent, &s.IPAddress,
		&s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return models.Session{}, err
	}
	s.ExpiresAt = s.ExpiresAt.UTC()
	return s, nil
}

// Create stores a new session.
func (r *PostgresSessionRepository) Create(ctx context.Context, session models.Session) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO sessions (`+sessionColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, session.ID, session.UserID, session.RefreshTokenHash, session.UserAgent, session.IPAddress,
		session.ExpiresAt.UTC(), session.CreatedAt.UTC(), session.UpdatedAt.UTC())
	if err != nil {
		return translate(err, "insert session")
	}
	return nil
}

// FindByID loads a session by id.
func (r *PostgresSessionRepository) FindByID(ctx context.Context, id uuid.UUID) (models.Session, error) {
	session, err := scanSession(r.db.QueryRow(ctx, `
        SELECT `+sessionColumns+`
        FROM sessions
        WHERE id = $1
    `, id))
	if err != nil {
		return models.Session{}, translate(err, "select session")
	}
	return session, nil
}

// FindByTokenHash loads a session by the hash of its refresh token.
func (r *PostgresSessionRepository) FindByTokenHash(ctx context.Context, tokenHash string) (models.Session, error) {
	session, err := scanSession(r.db.QueryRow(ctx, `
        SELECT `+sessionColumns+`
        FROM sessions
        WHERE refresh_token_hash = $1
    `, tokenHash))
	if err != nil {
		return models.Session{}, translate(err, "select session by token")
	}
	return session, nil
}

// ListByUserID returns the user's sessions, most recently created first.
func (r *PostgresSessionRepository) ListByUserID(ctx context.Context, userID string) ([]models.Session, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+sessionColumns+`
        FROM sessions
        WHERE user_id = $1
        ORDER BY created_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// Rotate is a compare-and-swap on the token hash. When another refresh already consumed
// previousHash, or the session expired, no row matches and ErrNotFound is returned.
func (r *PostgresSessionRepository) Rotate(ctx context.Context, session models.Session, previousHash string, now time.Time) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE sessions
        SET refresh_token_hash = $3, expires_at = $4, user_agent = $5, ip_address = $6, updated_at = $7
        WHERE id = $1 AND refresh_token_hash = $2 AND expires_at > $7
    `, session.ID, previousHash, session.RefreshTokenHash, session.ExpiresAt.UTC(), session.UserAgent,
		session.IPAddress, now.UTC())
	if err != nil {
		return translate(err, "rotate session")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a session by id.
func (r *PostgresSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByUserID removes every session of the user.
func (r *PostgresSessionRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired removes sessions whose expiry lies before now.
func (r *PostgresSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ SessionRepository = (*PostgresSessionRepository)(nil)
