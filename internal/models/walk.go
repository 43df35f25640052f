package models

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// WalkStatus is a state of the walk lifecycle.
type WalkStatus string

const (
	WalkStatusNotStarted WalkStatus = "not_started"
	WalkStatusInProgress WalkStatus = "in_progress"
	WalkStatusPaused     WalkStatus = "paused"
	WalkStatusCompleted  WalkStatus = "completed"
)

const (
	MaxWalkTitleLength       = 200
	MaxWalkDescriptionLength = 2000
	MaxWalkSteps             = math.MaxInt32
)

// ParseWalkStatus converts a stored or transported status string.
func ParseWalkStatus(s string) (WalkStatus, error) {
	switch status := WalkStatus(s); status {
	case WalkStatusNotStarted, WalkStatusInProgress, WalkStatusPaused, WalkStatusCompleted:
		return status, nil
	default:
		return "", invalid("status", "unknown status "+s)
	}
}

// Active reports whether the walk is in progress or paused.
func (s WalkStatus) Active() bool {
	return s == WalkStatusInProgress || s == WalkStatusPaused
}

// Walk is one walking session owned by exactly one user.
//
// The lifecycle only moves forward: not_started → in_progress ⇄ paused → completed.
// Methods never perform I/O; callers persist the result through the repository.
type Walk struct {
	ID           uuid.UUID
	UserID       string
	Title        string
	Description  string
	StartTime    *time.Time
	EndTime      *time.Time
	Distance     float64 // meters
	Steps        int
	Polyline     *string
	ThumbnailURL *string
	Status       WalkStatus
	PausedAt     *time.Time
	// TotalPausedDuration is the sum of completed pause spans, in seconds.
	TotalPausedDuration float64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewWalk builds a not_started walk. A nil id is replaced by a random one.
func NewWalk(id uuid.UUID, userID, title, description string, now time.Time) (*Walk, error) {
	if id == uuid.Nil {
		id = uuid.New()
	}
	now = now.UTC()
	w := &Walk{
		ID:          id,
		UserID:      userID,
		Title:       strings.TrimSpace(title),
		Description: description,
		Status:      WalkStatusNotStarted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// Start begins the walk. Only legal from not_started.
func (w *Walk) Start(now time.Time) error {
	if w.Status != WalkStatusNotStarted {
		return &TransitionError{From: w.Status, Action: "start"}
	}
	now = now.UTC()
	w.StartTime = &now
	w.Status = WalkStatusInProgress
	w.UpdatedAt = now
	return nil
}

// Pause suspends an in-progress walk.
func (w *Walk) Pause(now time.Time) error {
	if w.Status != WalkStatusInProgress {
		return &TransitionError{From: w.Status, Action: "pause"}
	}
	now = now.UTC()
	w.PausedAt = &now
	w.Status = WalkStatusPaused
	w.UpdatedAt = now
	return nil
}

// Resume continues a paused walk and folds the pause span into TotalPausedDuration.
func (w *Walk) Resume(now time.Time) error {
	if w.Status != WalkStatusPaused {
		return &TransitionError{From: w.Status, Action: "resume"}
	}
	now = now.UTC()
	w.foldPause(now)
	w.Status = WalkStatusInProgress
	w.UpdatedAt = now
	return nil
}

// Complete ends the walk. A paused walk has its final pause span folded first.
func (w *Walk) Complete(now time.Time) error {
	if !w.Status.Active() {
		return &TransitionError{From: w.Status, Action: "complete"}
	}
	now = now.UTC()
	if w.Status == WalkStatusPaused {
		w.foldPause(now)
	}
	w.EndTime = &now
	w.Status = WalkStatusCompleted
	w.UpdatedAt = now
	return nil
}

func (w *Walk) foldPause(now time.Time) {
	if w.PausedAt != nil {
		if span := now.Sub(*w.PausedAt); span > 0 {
			w.TotalPausedDuration += span.Seconds()
		}
	}
	w.PausedAt = nil
}

// UpdateDistance sets the cumulative distance in meters.
func (w *Walk) UpdateDistance(meters float64, now time.Time) error {
	if w.Status == WalkStatusCompleted {
		return &TransitionError{From: w.Status, Action: "update distance of"}
	}
	if math.IsNaN(meters) || math.IsInf(meters, 0) || meters < 0 {
		return invalid("distance", "must be a non-negative number")
	}
	w.Distance = meters
	w.UpdatedAt = now.UTC()
	return nil
}

// UpdateSteps sets the cumulative step count reported by the device.
func (w *Walk) UpdateSteps(steps int, now time.Time) error {
	if w.Status == WalkStatusCompleted {
		return &TransitionError{From: w.Status, Action: "update steps of"}
	}
	if steps < 0 {
		return invalid("steps", "must not be negative")
	}
	if steps > MaxWalkSteps {
		return invalid("steps", "is too large")
	}
	w.Steps = steps
	w.UpdatedAt = now.UTC()
	return nil
}

// UpdatePolyline replaces the encoded route.
func (w *Walk) UpdatePolyline(polyline string, now time.Time) error {
	if w.Status == WalkStatusCompleted {
		return &TransitionError{From: w.Status, Action: "update route of"}
	}
	w.Polyline = &polyline
	w.UpdatedAt = now.UTC()
	return nil
}

// SetTitle renames the walk. Allowed in every state.
func (w *Walk) SetTitle(title string, now time.Time) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return invalid("title", "is required")
	}
	if utf8.RuneCountInString(title) > MaxWalkTitleLength {
		return invalid("title", "is too long")
	}
	w.Title = title
	w.UpdatedAt = now.UTC()
	return nil
}

// SetDescription replaces the free-text description. Allowed in every state.
func (w *Walk) SetDescription(description string, now time.Time) error {
	if utf8.RuneCountInString(description) > MaxWalkDescriptionLength {
		return invalid("description", "is too long")
	}
	w.Description = description
	w.UpdatedAt = now.UTC()
	return nil
}

// SetThumbnail records the public URL of the walk's thumbnail.
func (w *Walk) SetThumbnail(url string, now time.Time) {
	w.ThumbnailURL = &url
	w.UpdatedAt = now.UTC()
}

// ElapsedDuration returns the active walking time at now, excluding every pause span.
func (w *Walk) ElapsedDuration(now time.Time) time.Duration {
	if w.StartTime == nil {
		return 0
	}
	end := now
	if w.EndTime != nil {
		end = *w.EndTime
	}
	elapsed := end.Sub(*w.StartTime) - secondsToDuration(w.TotalPausedDuration)
	if w.Status == WalkStatusPaused && w.PausedAt != nil {
		if span := now.Sub(*w.PausedAt); span > 0 {
			elapsed -= span
		}
	}
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// Validate checks field domains and the status/timestamp consistency rules.
func (w *Walk) Validate() error {
	if w.ID == uuid.Nil {
		return invalid("id", "is required")
	}
	if strings.TrimSpace(w.UserID) == "" {
		return invalid("user_id", "is required")
	}
	if strings.TrimSpace(w.Title) == "" {
		return invalid("title", "is required")
	}
	if utf8.RuneCountInString(w.Title) > MaxWalkTitleLength {
		return invalid("title", "is too long")
	}
	if utf8.RuneCountInString(w.Description) > MaxWalkDescriptionLength {
		return invalid("description", "is too long")
	}
	if math.IsNaN(w.Distance) || math.IsInf(w.Distance, 0) || w.Distance < 0 {
		return invalid("distance", "must be a non-negative number")
	}
	if w.Steps < 0 || w.Steps > MaxWalkSteps {
		return invalid("steps", "must be within [0, 2147483647]")
	}
	if math.IsNaN(w.TotalPausedDuration) || w.TotalPausedDuration < 0 {
		return invalid("total_paused_duration", "must not be negative")
	}

	switch w.Status {
	case WalkStatusNotStarted:
		if w.StartTime != nil || w.EndTime != nil || w.PausedAt != nil {
			return invalid("status", "not_started walk cannot carry timestamps")
		}
	case WalkStatusInProgress:
		if w.StartTime == nil || w.EndTime != nil || w.PausedAt != nil {
			return invalid("status", "in_progress walk needs start_time only")
		}
	case WalkStatusPaused:
		if w.StartTime == nil || w.EndTime != nil || w.PausedAt == nil {
			return invalid("status", "paused walk needs start_time and paused_at")
		}
	case WalkStatusCompleted:
		if w.StartTime == nil || w.EndTime == nil || w.PausedAt != nil {
			return invalid("status", "completed walk needs start_time and end_time")
		}
		if w.EndTime.Before(*w.StartTime) {
			return invalid("end_time", "is before start_time")
		}
	default:
		return invalid("status", "unknown status "+string(w.Status))
	}
	return nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
