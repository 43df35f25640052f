package repositories

import (
	"context"
	"fmt"

	"github.com/walktrack/backend/internal/db"
	"github.com/walktrack/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	db db.Querier
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(q db.Querier) *PostgresUserRepository {
	return &PostgresUserRepository{db: q}
}

// Upsert inserts the user or refreshes the profile columns of the existing row.
func (r *PostgresUserRepository) Upsert(ctx context.Context, user models.User) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO users (id, email, display_name, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO UPDATE SET
            email = EXCLUDED.email,
            display_name = EXCLUDED.display_name,
            updated_at = EXCLUDED.updated_at
    `, user.ID, user.Email, user.DisplayName, user.CreatedAt.UTC(), user.UpdatedAt.UTC())
	if err != nil {
		return translate(err, "upsert user")
	}
	return nil
}

// FindByID fetches a user by id.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	row := r.db.QueryRow(ctx, `
        SELECT id, email, display_name, created_at, updated_at
        FROM users
        WHERE id = $1
    `, id)

	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return models.User{}, translate(err, "select user")
	}
	return user, nil
}

// PostgresConsentRepository provides PostgreSQL-backed persistence for consents.
type PostgresConsentRepository struct {
	db db.Querier
}

// NewPostgresConsentRepository constructs a consent repository backed by PostgreSQL.
func NewPostgresConsentRepository(q db.Querier) *PostgresConsentRepository {
	return &PostgresConsentRepository{db: q}
}

// Upsert records the latest answer for (user, consent type).
func (r *PostgresConsentRepository) Upsert(ctx context.Context, consent models.Consent) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO consents (user_id, consent_type, version, granted, granted_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (user_id, consent_type) DO UPDATE SET
            version = EXCLUDED.version,
            granted = EXCLUDED.granted,
            granted_at = EXCLUDED.granted_at,
            updated_at = EXCLUDED.updated_at
    `, consent.UserID, consent.Type, consent.Version, consent.Granted, consent.GrantedAt, consent.UpdatedAt.UTC())
	if err != nil {
		return translate(err, "upsert consent")
	}
	return nil
}

// ListByUserID returns the user's consents ordered by type.
func (r *PostgresConsentRepository) ListByUserID(ctx context.Context, userID string) ([]models.Consent, error) {
	rows, err := r.db.Query(ctx, `
        SELECT user_id, consent_type, version, granted, granted_at, updated_at
        FROM consents
        WHERE user_id = $1
        ORDER BY consent_type
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query consents: %w", err)
	}
	defer rows.Close()

	var consents []models.Consent
	for rows.Next() {
		var c models.Consent
		if err := rows.Scan(&c.UserID, &c.Type, &c.Version, &c.Granted, &c.GrantedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		consents = append(consents, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consents: %w", err)
	}
	return consents, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ ConsentRepository = (*PostgresConsentRepository)(nil)
