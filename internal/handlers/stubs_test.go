package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/walktrack/backend/internal/apperr"
	"github.com/walktrack/backend/internal/auth"
	"github.com/walktrack/backend/internal/models"
	"github.com/walktrack/backend/internal/walks"
)

const (
	testToken  = "test-token"
	testSecret = "test-secret"
)

type listCall struct {
	userID      string
	page, limit int
}

type stubWalkService struct {
	walk      models.Walk
	page      walks.Page
	locations []models.WalkLocation
	err       error
	created   bool

	listCalls   []listCall
	createIn    *walks.CreateInput
	updateIn    *walks.UpdateInput
	uploaded    []models.WalkLocation
	thumbnail   string
	contentType string
	calls       []string
}

func (s *stubWalkService) record(name string) { s.calls = append(s.calls, name) }

func (s *stubWalkService) List(_ context.Context, userID string, page, limit int) (walks.Page, error) {
	s.record("list")
	s.listCalls = append(s.listCalls, listCall{userID: userID, page: page, limit: limit})
	return s.page, s.err
}

func (s *stubWalkService) Create(_ context.Context, userID string, in walks.CreateInput) (models.Walk, error) {
	s.record("create")
	s.createIn = &in
	w := s.walk
	w.UserID = userID
	w.Title = in.Title
	return w, s.err
}

func (s *stubWalkService) Get(context.Context, string, uuid.UUID) (models.Walk, error) {
	s.record("get")
	return s.walk, s.err
}

func (s *stubWalkService) Update(_ context.Context, _ string, _ uuid.UUID, in walks.UpdateInput) (models.Walk, bool, error) {
	s.record("update")
	s.updateIn = &in
	return s.walk, s.created, s.err
}

func (s *stubWalkService) Delete(context.Context, string, uuid.UUID) error {
	s.record("delete")
	return s.err
}

func (s *stubWalkService) Start(context.Context, string, uuid.UUID) (models.Walk, error) {
	s.record("start")
	return s.walk, s.err
}

func (s *stubWalkService) Pause(context.Context, string, uuid.UUID) (models.Walk, error) {
	s.record("pause")
	return s.walk, s.err
}

func (s *stubWalkService) Resume(context.Context, string, uuid.UUID) (models.Walk, error) {
	s.record("resume")
	return s.walk, s.err
}

func (s *stubWalkService) Complete(context.Context, string, uuid.UUID) (models.Walk, error) {
	s.record("complete")
	return s.walk, s.err
}

func (s *stubWalkService) UploadLocations(_ context.Context, _ string, _ uuid.UUID, batch []models.WalkLocation) (models.Walk, error) {
	s.record("upload_locations")
	s.uploaded = batch
	return s.walk, s.err
}

func (s *stubWalkService) Locations(context.Context, string, uuid.UUID) ([]models.WalkLocation, error) {
	s.record("locations")
	return s.locations, s.err
}

func (s *stubWalkService) SetThumbnail(_ context.Context, _ string, _ uuid.UUID, contentType string, body io.Reader) (models.Walk, error) {
	s.record("thumbnail")
	s.contentType = contentType
	b, _ := io.ReadAll(body)
	s.thumbnail = string(b)
	return s.walk, s.err
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testServer struct {
	handler  http.Handler
	walks    *stubWalkService
	sessions *auth.Manager
	store    *auth.InMemorySessionStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := auth.NewInMemorySessionStore()
	svc := &stubWalkService{walk: sampleWalk()}
	issuer := auth.NewAccessTokenIssuer(testSecret, "walktrack", 15*time.Minute)
	manager := auth.NewManager(store, auth.NewTokenHasher("pepper"), time.Hour, auth.WithAccessTokens(issuer))
	verifier := auth.SessionBoundVerifier{
		Verifier: auth.ChainVerifier{
			auth.NewJWTVerifier(testSecret, "walktrack"),
			auth.NewStaticVerifier(map[string]string{testToken: "user-1", "other-token": "user-2"}),
		},
		Sessions: manager,
	}
	handler := NewRouter(Dependencies{
		Walks:    svc,
		Sessions: manager,
		Verifier: verifier,
		DB:       stubPinger{},
	})
	return &testServer{handler: handler, walks: svc, sessions: manager, store: store}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func sampleWalk() models.Walk {
	now := time.Date(2024, 5, 4, 7, 0, 0, 0, time.UTC)
	return models.Walk{
		ID:        uuid.MustParse("8c0a3b1e-4a8f-4a63-9a8e-0d6f7f6f0a11"),
		UserID:    "user-1",
		Title:     "Morning Walk",
		Status:    models.WalkStatusNotStarted,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

var errNotOwned = apperr.NotFound("walk not found", nil)
