package repositories

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/walktrack/backend/internal/db"
	"github.com/walktrack/backend/internal/models"
)

const (
	locationColumnCount = 10
	// locationChunkSize keeps each statement well below the 65535 bind parameter limit.
	locationChunkSize = 1000
)

// PostgresLocationRepository provides PostgreSQL-backed persistence for walk locations.
type PostgresLocationRepository struct {
	db db.Querier
}

// NewPostgresLocationRepository constructs a location repository backed by PostgreSQL.
func NewPostgresLocationRepository(q db.Querier) *PostgresLocationRepository {
	return &PostgresLocationRepository{db: q}
}

type locationKey struct {
	walkID   uuid.UUID
	sequence int
}

// normalizeBatch drops earlier duplicates of a key and orders by (walk, sequence).
// A single INSERT ... ON CONFLICT cannot touch the same row twice.
func normalizeBatch(locations []models.WalkLocation) []models.WalkLocation {
	latest := make(map[locationKey]int, len(locations))
	for i, loc := range locations {
		latest[locationKey{loc.WalkID, loc.SequenceNumber}] = i
	}

	out := make([]models.WalkLocation, 0, len(latest))
	for i, loc := range locations {
		if latest[locationKey{loc.WalkID, loc.SequenceNumber}] == i {
			out = append(out, loc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].WalkID != out[j].WalkID {
			return out[i].WalkID.String() < out[j].WalkID.String()
		}
		return out[i].SequenceNumber < out[j].SequenceNumber
	})
	return out
}

func buildLocationUpsert(locations []models.WalkLocation) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO walk_locations (walk_id, sequence_number, latitude, longitude, altitude,
        recorded_at, horizontal_accuracy, vertical_accuracy, speed, course) VALUES `)

	args := make([]any, 0, len(locations)*locationColumnCount)
	for i, loc := range locations {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := 0; c < locationColumnCount; c++ {
			if c > 0 {
				sb.WriteString(", ")
			}
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(i*locationColumnCount + c + 1))
		}
		sb.WriteByte(')')
		args = append(args, loc.WalkID, loc.SequenceNumber, loc.Latitude, loc.Longitude, loc.Altitude,
			loc.Timestamp.UTC(), loc.HorizontalAccuracy, loc.VerticalAccuracy, loc.Speed, loc.Course)
	}

	sb.WriteString(`
        ON CONFLICT (walk_id, sequence_number) DO UPDATE SET
            latitude = EXCLUDED.latitude,
            longitude = EXCLUDED.longitude,
            altitude = EXCLUDED.altitude,
            recorded_at = EXCLUDED.recorded_at,
            horizontal_accuracy = EXCLUDED.horizontal_accuracy,
            vertical_accuracy = EXCLUDED.vertical_accuracy,
            speed = EXCLUDED.speed,
            course = EXCLUDED.course`)
	return sb.String(), args
}

// BatchCreate upserts the locations inside a single transaction so a cancelled or
// failed call leaves nothing behind.
func (r *PostgresLocationRepository) BatchCreate(ctx context.Context, locations []models.WalkLocation) error {
	if len(locations) == 0 {
		return nil
	}
	batch := normalizeBatch(locations)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin location batch: %w", err)
	}

	for start := 0; start < len(batch); start += locationChunkSize {
		end := min(start+locationChunkSize, len(batch))
		query, args := buildLocationUpsert(batch[start:end])
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			_ = tx.Rollback(ctx)
			return translate(err, "upsert walk locations")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit location batch: %w", err)
	}
	return nil
}

// FindByWalkID returns the walk's locations ordered by sequence number.
func (r *PostgresLocationRepository) FindByWalkID(ctx context.Context, walkID uuid.UUID) ([]models.WalkLocation, error) {
	rows, err := r.db.Query(ctx, `
        SELECT walk_id, sequence_number, latitude, longitude, altitude, recorded_at,
               horizontal_accuracy, vertical_accuracy, speed, course
        FROM walk_locations
        WHERE walk_id = $1
        ORDER BY sequence_number ASC
    `, walkID)
	if err != nil {
		return nil, fmt.Errorf("query walk locations: %w", err)
	}
	defer rows.Close()

	var locations []models.WalkLocation
	for rows.Next() {
		var loc models.WalkLocation
		if err := rows.Scan(&loc.WalkID, &loc.SequenceNumber, &loc.Latitude, &loc.Longitude, &loc.Altitude,
			&loc.Timestamp, &loc.HorizontalAccuracy, &loc.VerticalAccuracy, &loc.Speed, &loc.Course); err != nil {
			return nil, fmt.Errorf("scan walk location: %w", err)
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate walk locations: %w", err)
	}
	return locations, nil
}

// DeleteByWalkID removes every location of the walk and reports how many were removed.
func (r *PostgresLocationRepository) DeleteByWalkID(ctx context.Context, walkID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM walk_locations WHERE walk_id = $1`, walkID)
	if err != nil {
		return 0, fmt.Errorf("delete walk locations: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ LocationRepository = (*PostgresLocationRepository)(nil)
