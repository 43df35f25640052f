package handlers

import (
	"time"

	"github.com/google/uuid"

	"github.com/walktrack/backend/internal/models"
	"github.com/walktrack/backend/internal/walks"
)

type walkResponse struct {
	ID                  string     `json:"id"`
	UserID              string     `json:"user_id"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	Status              string     `json:"status"`
	StartTime           *time.Time `json:"start_time"`
	EndTime             *time.Time `json:"end_time"`
	PausedAt            *time.Time `json:"paused_at"`
	Distance            float64    `json:"distance"`
	Steps               int        `json:"steps"`
	Polyline            *string    `json:"polyline"`
	ThumbnailURL        *string    `json:"thumbnail_url"`
	TotalPausedDuration float64    `json:"total_paused_duration"`
	ElapsedSeconds      float64    `json:"elapsed_seconds"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func newWalkResponse(w models.Walk, now time.Time) walkResponse {
	return walkResponse{
		ID:                  w.ID.String(),
		UserID:              w.UserID,
		Title:               w.Title,
		Description:         w.Description,
		Status:              string(w.Status),
		StartTime:           w.StartTime,
		EndTime:             w.EndTime,
		PausedAt:            w.PausedAt,
		Distance:            w.Distance,
		Steps:               w.Steps,
		Polyline:            w.Polyline,
		ThumbnailURL:        w.ThumbnailURL,
		TotalPausedDuration: w.TotalPausedDuration,
		ElapsedSeconds:      w.ElapsedDuration(now).Seconds(),
		CreatedAt:           w.CreatedAt,
		UpdatedAt:           w.UpdatedAt,
	}
}

type pageMeta struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

type createWalkRequest struct {
	ID          *uuid.UUID `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
}

func (r createWalkRequest) input() walks.CreateInput {
	in := walks.CreateInput{Title: r.Title, Description: r.Description}
	if r.ID != nil {
		in.ID = *r.ID
	}
	return in
}

type updateWalkRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Distance    *float64 `json:"distance"`
	Steps       *int     `json:"steps"`
	Polyline    *string  `json:"polyline"`
}

func (r updateWalkRequest) input() walks.UpdateInput {
	return walks.UpdateInput{
		Title:       r.Title,
		Description: r.Description,
		Distance:    r.Distance,
		Steps:       r.Steps,
		Polyline:    r.Polyline,
	}
}

type locationPayload struct {
	SequenceNumber     int       `json:"sequence_number"`
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	Altitude           *float64  `json:"altitude,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
	HorizontalAccuracy *float64  `json:"horizontal_accuracy,omitempty"`
	VerticalAccuracy   *float64  `json:"vertical_accuracy,omitempty"`
	Speed              *float64  `json:"speed,omitempty"`
	Course             *float64  `json:"course,omitempty"`
}

type uploadLocationsRequest struct {
	Locations []locationPayload `json:"locations"`
}

func (p locationPayload) model() models.WalkLocation {
	return models.WalkLocation{
		SequenceNumber:     p.SequenceNumber,
		Latitude:           p.Latitude,
		Longitude:          p.Longitude,
		Altitude:           p.Altitude,
		Timestamp:          p.Timestamp,
		HorizontalAccuracy: p.HorizontalAccuracy,
		VerticalAccuracy:   p.VerticalAccuracy,
		Speed:              p.Speed,
		Course:             p.Course,
	}
}

func newLocationPayload(l models.WalkLocation) locationPayload {
	return locationPayload{
		SequenceNumber:     l.SequenceNumber,
		Latitude:           l.Latitude,
		Longitude:          l.Longitude,
		Altitude:           l.Altitude,
		Timestamp:          l.Timestamp,
		HorizontalAccuracy: l.HorizontalAccuracy,
		VerticalAccuracy:   l.VerticalAccuracy,
		Speed:              l.Speed,
		Course:             l.Course,
	}
}

type sessionResponse struct {
	ID        string    `json:"id"`
	UserAgent string    `json:"user_agent"`
	IPAddress string    `json:"ip_address"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Current   bool      `json:"current"`
}

type tokensResponse struct {
	SessionID        string     `json:"session_id"`
	AccessToken      string     `json:"access_token,omitempty"`
	AccessExpiresAt  *time.Time `json:"access_expires_at,omitempty"`
	RefreshToken     string     `json:"refresh_token"`
	RefreshExpiresAt time.Time  `json:"refresh_expires_at"`
}

func newTokensResponse(t models.SessionTokens) tokensResponse {
	resp := tokensResponse{
		SessionID:        t.SessionID,
		AccessToken:      t.AccessToken,
		RefreshToken:     t.RefreshToken,
		RefreshExpiresAt: t.RefreshExpiresAt,
	}
	if !t.AccessExpiresAt.IsZero() {
		at := t.AccessExpiresAt
		resp.AccessExpiresAt = &at
	}
	return resp
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}
