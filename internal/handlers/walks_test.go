package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/walktrack/backend/internal/apperr"
	"github.com/walktrack/backend/internal/models"
	"github.com/walktrack/backend/internal/walks"
)

type walkEnvelope struct {
	Data walkResponse `json:"data"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d got %d (%s)", status, rec.Code, rec.Body.String())
	}
	if got := decode[errorResponse](t, rec); got.Error.Code != code {
		t.Fatalf("expected error code %q got %q", code, got.Error.Code)
	}
}

func walkPath(suffix string) string {
	return "/v1/walks/" + sampleWalk().ID.String() + suffix
}

func TestWalkEndpointsRequireBearerToken(t *testing.T) {
	srv := newTestServer(t)

	expectError(t, srv.do(t, http.MethodGet, "/v1/walks", "", ""), http.StatusUnauthorized, "authentication_required")
	expectError(t, srv.do(t, http.MethodGet, "/v1/walks", "forged", ""), http.StatusUnauthorized, "authentication_required")
	if len(srv.walks.calls) != 0 {
		t.Fatalf("service must not be reached without a valid token, got %v", srv.walks.calls)
	}
}

func TestListWalks(t *testing.T) {
	srv := newTestServer(t)
	srv.walks.page = walks.Page{Walks: []models.Walk{sampleWalk()}, Page: 1, Limit: walks.DefaultPageSize, Total: 1}

	rec := srv.do(t, http.MethodGet, "/v1/walks", testToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	body := decode[struct {
		Data []walkResponse `json:"data"`
		Meta pageMeta       `json:"meta"`
	}](t, rec)
	if len(body.Data) != 1 || body.Data[0].Title != "Morning Walk" {
		t.Fatalf("unexpected data %+v", body.Data)
	}
	if body.Meta != (pageMeta{Page: 1, Limit: walks.DefaultPageSize, Total: 1}) {
		t.Fatalf("unexpected meta %+v", body.Meta)
	}

	call := srv.walks.listCalls[0]
	if call.userID != "user-1" || call.page != 1 || call.limit != walks.DefaultPageSize {
		t.Fatalf("expected defaults for user-1, got %+v", call)
	}

	srv.do(t, http.MethodGet, "/v1/walks?page=2&limit=2", testToken, "")
	if call := srv.walks.listCalls[1]; call.page != 2 || call.limit != 2 {
		t.Fatalf("expected page=2 limit=2, got %+v", call)
	}

	expectError(t, srv.do(t, http.MethodGet, "/v1/walks?page=abc", testToken, ""), http.StatusBadRequest, "invalid_request")
}

func TestCreateWalk(t *testing.T) {
	srv := newTestServer(t)

	expectError(t, srv.do(t, http.MethodPost, "/v1/walks", testToken, `{"description":"no title"}`), http.StatusBadRequest, "invalid_request")
	expectError(t, srv.do(t, http.MethodPost, "/v1/walks", testToken, `{"title":`), http.StatusBadRequest, "invalid_request")
	if srv.walks.createIn != nil {
		t.Fatal("invalid payloads must not reach the service")
	}

	rec := srv.do(t, http.MethodPost, "/v1/walks", testToken, `{"title":"Evening Walk","description":"park"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != walkPath("") {
		t.Fatalf("unexpected location header %q", got)
	}
	body := decode[walkEnvelope](t, rec)
	if body.Data.Title != "Evening Walk" || body.Data.UserID != "user-1" || body.Data.Status != "not_started" {
		t.Fatalf("unexpected walk %+v", body.Data)
	}
	if srv.walks.createIn.Description != "park" {
		t.Fatalf("description not forwarded: %+v", srv.walks.createIn)
	}
}

func TestGetWalkErrors(t *testing.T) {
	srv := newTestServer(t)

	expectError(t, srv.do(t, http.MethodGet, "/v1/walks/not-a-uuid", testToken, ""), http.StatusBadRequest, "invalid_request")

	srv.walks.err = errNotOwned
	expectError(t, srv.do(t, http.MethodGet, walkPath(""), testToken, ""), http.StatusNotFound, "not_found")

	srv.walks.err = apperr.Internal("", fmt.Errorf("pool closed"))
	rec := srv.do(t, http.MethodGet, walkPath(""), testToken, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "pool closed") {
		t.Fatal("internal error text leaked to the client")
	}
}

func TestUpdateWalk(t *testing.T) {
	srv := newTestServer(t)

	srv.walks.created = true
	rec := srv.do(t, http.MethodPut, walkPath(""), testToken, `{"title":"Synced","steps":1200,"distance":950.5}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for upserted walk, got %d", rec.Code)
	}
	in := srv.walks.updateIn
	if in.Title == nil || *in.Title != "Synced" || in.Steps == nil || *in.Steps != 1200 || in.Distance == nil || *in.Distance != 950.5 {
		t.Fatalf("unexpected update input %+v", in)
	}
	if in.Description != nil || in.Polyline != nil {
		t.Fatal("absent fields must stay nil")
	}

	srv.walks.created = false
	if rec := srv.do(t, http.MethodPut, walkPath(""), testToken, `{"description":"x"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	srv.walks.err = apperr.Unauthorized("walk belongs to another user")
	expectError(t, srv.do(t, http.MethodPut, walkPath(""), "other-token", `{"title":"mine now"}`), http.StatusForbidden, "unauthorized")
}

func TestDeleteWalk(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodDelete, walkPath(""), testToken, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatal("expected empty body")
	}
}

func TestWalkTransitions(t *testing.T) {
	for _, action := range []string{"start", "pause", "resume", "complete"} {
		t.Run(action, func(t *testing.T) {
			srv := newTestServer(t)
			rec := srv.do(t, http.MethodPost, walkPath("/"+action), testToken, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200 got %d", rec.Code)
			}
			if len(srv.walks.calls) != 1 || srv.walks.calls[0] != action {
				t.Fatalf("expected %s call, got %v", action, srv.walks.calls)
			}
		})
	}

	srv := newTestServer(t)
	srv.walks.err = apperr.InvalidRequest("cannot pause a walk in status not_started", &models.TransitionError{From: models.WalkStatusNotStarted, Action: "pause"})
	expectError(t, srv.do(t, http.MethodPost, walkPath("/pause"), testToken, ""), http.StatusBadRequest, "invalid_request")
}

func TestUploadLocations(t *testing.T) {
	srv := newTestServer(t)

	body := `{"locations":[
		{"sequence_number":0,"latitude":47.37,"longitude":8.54,"timestamp":"2024-05-04T07:01:00Z"},
		{"sequence_number":1,"latitude":47.371,"longitude":8.541,"altitude":410.5,"timestamp":"2024-05-04T07:01:05Z"}
	]}`
	rec := srv.do(t, http.MethodPost, walkPath("/locations"), testToken, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(srv.walks.uploaded) != 2 {
		t.Fatalf("expected 2 locations forwarded, got %d", len(srv.walks.uploaded))
	}
	second := srv.walks.uploaded[1]
	if second.SequenceNumber != 1 || second.Altitude == nil || *second.Altitude != 410.5 {
		t.Fatalf("unexpected location %+v", second)
	}

	expectError(t, srv.do(t, http.MethodPost, walkPath("/locations"), testToken, `{"locations":[{"lat":1}]}`), http.StatusBadRequest, "invalid_request")
}

func TestListLocations(t *testing.T) {
	srv := newTestServer(t)
	srv.walks.locations = []models.WalkLocation{{SequenceNumber: 0, Latitude: 1, Longitude: 2}, {SequenceNumber: 1, Latitude: 3, Longitude: 4}}

	rec := srv.do(t, http.MethodGet, walkPath("/locations"), testToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	body := decode[struct {
		Data []locationPayload `json:"data"`
	}](t, rec)
	if len(body.Data) != 2 || body.Data[1].Latitude != 3 {
		t.Fatalf("unexpected locations %+v", body.Data)
	}
}

func TestUploadThumbnail(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, walkPath("/thumbnail"), strings.NewReader("\x89PNG"))
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "image/png")
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if srv.walks.contentType != "image/png" || srv.walks.thumbnail != "\x89PNG" {
		t.Fatalf("unexpected upload %q %q", srv.walks.contentType, srv.walks.thumbnail)
	}

	big := httptest.NewRequest(http.MethodPut, walkPath("/thumbnail"), strings.NewReader(strings.Repeat("x", MaxThumbnailBytes+1)))
	big.Header.Set("Authorization", "Bearer "+testToken)
	big.Header.Set("Content-Type", "image/jpeg")
	rec = httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, big)
	expectError(t, rec, http.StatusBadRequest, "invalid_request")
}
