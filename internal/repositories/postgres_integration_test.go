package repositories

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/walktrack/backend/internal/db"
	"github.com/walktrack/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server, integration tests will be skipped: %v\n", err)
		os.Exit(m.Run())
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := db.Migrate(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func requireDatabase(t *testing.T) {
	t.Helper()
	if testPool == nil {
		t.Skip("cockroach test server unavailable")
	}
	resetDatabase(t)
}

func resetDatabase(t *testing.T) {
	t.Helper()
	if _, err := testPool.Exec(context.Background(), "TRUNCATE TABLE walk_locations, walks, sessions, consents, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestWalk(t *testing.T, repo *PostgresWalkRepository, userID, title string, createdAt time.Time) models.Walk {
	t.Helper()
	walk, err := models.NewWalk(uuid.New(), userID, title, "", createdAt)
	if err != nil {
		t.Fatalf("new walk: %v", err)
	}
	if err := repo.Create(context.Background(), *walk); err != nil {
		t.Fatalf("create walk: %v", err)
	}
	return *walk
}

func TestPostgresWalkRepository_Pagination(t *testing.T) {
	requireDatabase(t)
	ctx := context.Background()
	repo := NewPostgresWalkRepository(testPool)

	base := time.Now().UTC().Truncate(time.Millisecond)
	var created []models.Walk
	for i := 0; i < 5; i++ {
		created = append(created, createTestWalk(t, repo, "user-1", fmt.Sprintf("walk %d", i), base.Add(time.Duration(i)*time.Minute)))
	}
	createTestWalk(t, repo, "user-2", "someone else", base.Add(time.Hour))

	page, err := repo.FindByUserID(ctx, "user-1", 2, 2)
	if err != nil {
		t.Fatalf("list walks: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 walks, got %d", len(page))
	}
	// Newest first: created[4], created[3], created[2], created[1], ...
	if page[0].ID != created[2].ID || page[1].ID != created[1].ID {
		t.Fatalf("expected 3rd and 4th newest walks, got %s and %s", page[0].Title, page[1].Title)
	}

	count, err := repo.Count(ctx, "user-1")
	if err != nil || count != 5 {
		t.Fatalf("expected count 5, got %d (%v)", count, err)
	}
}

func TestPostgresWalkRepository_UpsertIsIdempotent(t *testing.T) {
	requireDatabase(t)
	ctx := context.Background()
	repo := NewPostgresWalkRepository(testPool)

	now := time.Now().UTC().Truncate(time.Millisecond)
	walk, err := models.NewWalk(uuid.New(), "user-1", "Morning Walk", "", now)
	if err != nil {
		t.Fatalf("new walk: %v", err)
	}
	if err := walk.Start(now.Add(time.Minute)); err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := repo.Upsert(ctx, *walk); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	stored, err := repo.FindByID(ctx, walk.ID)
	if err != nil {
		t.Fatalf("find walk: %v", err)
	}
	if stored.Status != models.WalkStatusInProgress || stored.StartTime == nil || !stored.StartTime.Equal(*walk.StartTime) {
		t.Fatalf("unexpected stored walk: %+v", stored)
	}

	foreign := *walk
	foreign.UserID = "intruder"
	foreign.Title = "hijacked"
	if err := repo.Upsert(ctx, foreign); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for foreign owner, got %v", err)
	}

	stored, err = repo.FindByID(ctx, walk.ID)
	if err != nil || stored.Title != "Morning Walk" {
		t.Fatalf("expected walk untouched, got %+v (%v)", stored, err)
	}

	if err := repo.Delete(ctx, walk.ID); err != nil {
		t.Fatalf("delete walk: %v", err)
	}
	if _, err := repo.FindByID(ctx, walk.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPostgresWalkRepository_ConcurrentWrites(t *testing.T) {
	requireDatabase(t)
	ctx := context.Background()
	repo := NewPostgresWalkRepository(testPool)

	now := time.Now().UTC().Truncate(time.Millisecond)
	walk := createTestWalk(t, repo, "user-1", "Morning Walk", now)

	started := walk
	if err := started.Start(now.Add(time.Minute)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := repo.Update(ctx, started, walk.UpdatedAt); err != nil {
		t.Fatalf("update: %v", err)
	}

	stale := walk
	stale.Title = "stale copy"
	stale.UpdatedAt = now.Add(2 * time.Minute)
	if err := repo.Update(ctx, stale, walk.UpdatedAt); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for a stale snapshot, got %v", err)
	}

	paused := started
	if err := paused.Pause(now.Add(3 * time.Minute)); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := repo.Update(ctx, paused, started.UpdatedAt); err != nil {
		t.Fatalf("pause update: %v", err)
	}

	stored, err := repo.UpdateDistance(ctx, walk.ID, 420, now.Add(4*time.Minute))
	if err != nil {
		t.Fatalf("update distance: %v", err)
	}
	if stored.Status != models.WalkStatusPaused || stored.PausedAt == nil || stored.Distance != 420 {
		t.Fatalf("distance write must keep the pause, got %+v", stored)
	}

	completed := stored
	if err := completed.Complete(now.Add(5 * time.Minute)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := repo.Update(ctx, completed, stored.UpdatedAt); err != nil {
		t.Fatalf("complete update: %v", err)
	}
	if _, err := repo.UpdateDistance(ctx, walk.ID, 999, now.Add(6*time.Minute)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected completed walk to refuse distance writes, got %v", err)
	}
}

func TestPostgresLocationRepository_BatchCreate(t *testing.T) {
	requireDatabase(t)
	ctx := context.Background()
	walks := NewPostgresWalkRepository(testPool)
	repo := NewPostgresLocationRepository(testPool)

	walk := createTestWalk(t, walks, "user-1", "Morning Walk", time.Now().UTC())
	ts := time.Now().UTC().Truncate(time.Millisecond)
	sample := func(seq int, lat float64) models.WalkLocation {
		return models.WalkLocation{WalkID: walk.ID, SequenceNumber: seq, Latitude: lat, Longitude: 8, Timestamp: ts}
	}

	// Out-of-order batches with an overlapping retry.
	if err := repo.BatchCreate(ctx, []models.WalkLocation{sample(3, 47.3), sample(4, 47.4)}); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if err := repo.BatchCreate(ctx, []models.WalkLocation{sample(2, 47.2), sample(0, 47.0), sample(1, 47.1)}); err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if err := repo.BatchCreate(ctx, []models.WalkLocation{sample(2, 47.2), sample(0, 47.0), sample(1, 47.15)}); err != nil {
		t.Fatalf("retried batch: %v", err)
	}

	locations, err := repo.FindByWalkID(ctx, walk.ID)
	if err != nil {
		t.Fatalf("find locations: %v", err)
	}
	if len(locations) != 5 {
		t.Fatalf("expected 5 locations, got %d", len(locations))
	}
	for i, loc := range locations {
		if loc.SequenceNumber != i {
			t.Fatalf("expected ascending sequence, got %d at %d", loc.SequenceNumber, i)
		}
	}
	if locations[1].Latitude != 47.15 {
		t.Fatalf("expected last write to win, got %v", locations[1].Latitude)
	}

	missing := models.WalkLocation{WalkID: uuid.New(), Latitude: 1, Longitude: 1, Timestamp: ts}
	if err := repo.BatchCreate(ctx, []models.WalkLocation{sample(5, 47.5), missing}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown walk, got %v", err)
	}
	locations, err = repo.FindByWalkID(ctx, walk.ID)
	if err != nil || len(locations) != 5 {
		t.Fatalf("expected failed batch to leave no rows, got %d (%v)", len(locations), err)
	}

	if err := walks.Delete(ctx, walk.ID); err != nil {
		t.Fatalf("delete walk: %v", err)
	}
	locations, err = repo.FindByWalkID(ctx, walk.ID)
	if err != nil || len(locations) != 0 {
		t.Fatalf("expected cascade delete, got %d (%v)", len(locations), err)
	}
}

func TestPostgresSessionRepository_RotateAndSweep(t *testing.T) {
	requireDatabase(t)
	ctx := context.Background()
	repo := NewPostgresSessionRepository(testPool)
	now := time.Now().UTC().Truncate(time.Millisecond)

	live := models.Session{
		ID: uuid.New(), UserID: "user-1", RefreshTokenHash: "hash-1",
		ExpiresAt: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now,
	}
	expired := models.Session{
		ID: uuid.New(), UserID: "user-1", RefreshTokenHash: "hash-2",
		ExpiresAt: now.Add(-time.Hour), CreatedAt: now, UpdatedAt: now,
	}
	for _, s := range []models.Session{live, expired} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("create session: %v", err)
		}
	}

	dup := live
	dup.ID = uuid.New()
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate token hash, got %v", err)
	}

	rotated := live
	rotated.Rotate("hash-3", now.Add(2*time.Hour), "ios/17", "10.0.0.2", now)
	if err := repo.Rotate(ctx, rotated, "hash-1", now); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if err := repo.Rotate(ctx, rotated, "hash-1", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected replay of old hash to fail, got %v", err)
	}
	if _, err := repo.FindByTokenHash(ctx, "hash-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected old hash gone, got %v", err)
	}
	loaded, err := repo.FindByTokenHash(ctx, "hash-3")
	if err != nil || loaded.UserAgent != "ios/17" || loaded.IPAddress != "10.0.0.2" {
		t.Fatalf("unexpected rotated session %+v (%v)", loaded, err)
	}

	removed, err := repo.DeleteExpired(ctx, now)
	if err != nil || removed != 1 {
		t.Fatalf("expected one expired session removed, got %d (%v)", removed, err)
	}
	sessions, err := repo.ListByUserID(ctx, "user-1")
	if err != nil || len(sessions) != 1 || sessions[0].ID != live.ID {
		t.Fatalf("expected only live session left, got %+v (%v)", sessions, err)
	}

	removed, err = repo.DeleteByUserID(ctx, "user-1")
	if err != nil || removed != 1 {
		t.Fatalf("expected revoke-all to remove 1, got %d (%v)", removed, err)
	}
}

func TestPostgresUserAndConsentRepositories(t *testing.T) {
	requireDatabase(t)
	ctx := context.Background()
	users := NewPostgresUserRepository(testPool)
	consents := NewPostgresConsentRepository(testPool)
	now := time.Now().UTC().Truncate(time.Millisecond)

	user := models.User{ID: "user-1", Email: "ada@example.com", DisplayName: "Ada", CreatedAt: now, UpdatedAt: now}
	for i := 0; i < 2; i++ {
		if err := users.Upsert(ctx, user); err != nil {
			t.Fatalf("upsert user: %v", err)
		}
	}
	loaded, err := users.FindByID(ctx, "user-1")
	if err != nil || loaded.Email != user.Email {
		t.Fatalf("unexpected user %+v (%v)", loaded, err)
	}
	if _, err := users.FindByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	consent := models.Consent{UserID: "user-1", Type: "location", Version: "v1", Granted: true, GrantedAt: &now, UpdatedAt: now}
	if err := consents.Upsert(ctx, consent); err != nil {
		t.Fatalf("upsert consent: %v", err)
	}
	consent.Version = "v2"
	if err := consents.Upsert(ctx, consent); err != nil {
		t.Fatalf("upsert consent again: %v", err)
	}
	list, err := consents.ListByUserID(ctx, "user-1")
	if err != nil || len(list) != 1 || list[0].Version != "v2" {
		t.Fatalf("unexpected consents %+v (%v)", list, err)
	}
}
