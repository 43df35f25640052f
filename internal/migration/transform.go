package migration

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/walktrack/backend/internal/models"
)

// PlaceholderTitle replaces missing legacy walk titles.
const PlaceholderTitle = "Untitled Walk"

// legacyNamespace derives stable walk ids from legacy document ids that are not UUIDs.
var legacyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("walktrack:legacy-walks"))

// UnknownTime stands in for timestamps a legacy record never had and that cannot be
// derived from its other fields. It is fixed so reruns store identical rows.
var UnknownTime = time.Unix(0, 0).UTC()

// ErrMissingField marks records lacking a field no default can stand in for.
var ErrMissingField = errors.New("missing required field")

// WalkID maps a legacy walk document id onto the relational id. UUIDs pass through;
// anything else is hashed so reruns yield the same id.
func WalkID(legacyID string) uuid.UUID {
	if id, err := uuid.Parse(legacyID); err == nil {
		return id
	}
	return uuid.NewSHA1(legacyNamespace, []byte(legacyID))
}

// TransformUser converts a legacy user. The result depends on u alone.
func TransformUser(u LegacyUser) (models.User, error) {
	if strings.TrimSpace(u.ID) == "" {
		return models.User{}, fmt.Errorf("user id: %w", ErrMissingField)
	}
	created := timeOr(u.CreatedAt, timeOr(u.UpdatedAt, UnknownTime))
	return models.User{
		ID:          u.ID,
		Email:       strings.ToLower(strings.TrimSpace(u.Email)),
		DisplayName: strings.TrimSpace(u.DisplayName),
		CreatedAt:   created,
		UpdatedAt:   timeOr(u.UpdatedAt, created),
	}, nil
}

// TransformConsent converts a legacy consent answer.
func TransformConsent(c LegacyConsent) (models.Consent, error) {
	if strings.TrimSpace(c.UserID) == "" {
		return models.Consent{}, fmt.Errorf("consent user id: %w", ErrMissingField)
	}
	if strings.TrimSpace(c.Type) == "" {
		return models.Consent{}, fmt.Errorf("consent type: %w", ErrMissingField)
	}
	consent := models.Consent{
		UserID:    c.UserID,
		Type:      c.Type,
		Version:   c.Version,
		Granted:   c.Granted,
		UpdatedAt: timeOr(c.UpdatedAt, timeOr(c.GrantedAt, UnknownTime)),
	}
	if c.Granted && c.GrantedAt != nil {
		at := c.GrantedAt.UTC()
		consent.GrantedAt = &at
	}
	return consent, nil
}

// WalkResult is a transformed walk with its route and the repairs applied on the way.
type WalkResult struct {
	Walk      models.Walk
	Locations []models.WalkLocation
	Warnings  []string
}

// TransformWalk converts a legacy walk and its embedded locations. Missing optional
// data gets schema-safe defaults and timestamps are reconciled with the status so the
// result passes Walk.Validate. Individual bad locations are dropped with a warning; an
// error means the whole walk must be skipped. Missing timestamps are derived from the
// record and its route, so identical input always yields the identical result.
func TransformWalk(lw LegacyWalk) (WalkResult, error) {
	var res WalkResult
	warn := func(format string, args ...any) {
		res.Warnings = append(res.Warnings, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(lw.ID) == "" {
		return res, fmt.Errorf("walk id: %w", ErrMissingField)
	}
	if strings.TrimSpace(lw.UserID) == "" {
		return res, fmt.Errorf("walk user id: %w", ErrMissingField)
	}

	w := models.Walk{
		ID:           WalkID(lw.ID),
		UserID:       lw.UserID,
		Title:        strings.TrimSpace(lw.Title),
		Description:  lw.Description,
		Polyline:     lw.Polyline,
		ThumbnailURL: lw.ThumbnailURL,
	}

	if w.Title == "" {
		w.Title = PlaceholderTitle
		warn("missing title, using %q", PlaceholderTitle)
	}
	if utf8.RuneCountInString(w.Title) > models.MaxWalkTitleLength {
		w.Title = string([]rune(w.Title)[:models.MaxWalkTitleLength])
		warn("title truncated")
	}
	if utf8.RuneCountInString(w.Description) > models.MaxWalkDescriptionLength {
		w.Description = string([]rune(w.Description)[:models.MaxWalkDescriptionLength])
		warn("description truncated")
	}

	if lw.Distance != nil {
		w.Distance = nonNegative(*lw.Distance, "distance", warn)
	}
	if lw.Steps != nil {
		if *lw.Steps < 0 || *lw.Steps > models.MaxWalkSteps {
			warn("steps %d out of range, using 0", *lw.Steps)
		} else {
			w.Steps = int(*lw.Steps)
		}
	}
	if lw.TotalPausedDuration != nil {
		w.TotalPausedDuration = nonNegative(*lw.TotalPausedDuration, "total_paused_duration", warn)
	}

	status := models.WalkStatusNotStarted
	if strings.TrimSpace(lw.Status) == "" {
		warn("missing status, using %s", status)
	} else {
		parsed, err := models.ParseWalkStatus(normaliseStatus(lw.Status))
		if err != nil {
			return res, err
		}
		status = parsed
	}
	w.Status = status

	res.Locations = transformLocations(w.ID, lw.Locations, warn)
	w.CreatedAt, w.UpdatedAt = recordTimes(lw, res.Locations, warn)
	reconcileTimestamps(&w, lw, res.Locations, warn)

	if err := w.Validate(); err != nil {
		return res, err
	}
	res.Walk = w
	return res, nil
}

// normaliseStatus accepts the camelCase spellings the mobile clients wrote.
func normaliseStatus(s string) string {
	switch s = strings.TrimSpace(s); s {
	case "notStarted":
		return string(models.WalkStatusNotStarted)
	case "inProgress":
		return string(models.WalkStatusInProgress)
	default:
		return strings.ToLower(s)
	}
}

// recordTimes picks created_at and updated_at. Missing values fall back to the earliest
// and latest instants the record or its route mention, then to UnknownTime.
func recordTimes(lw LegacyWalk, route []models.WalkLocation, warn func(string, ...any)) (time.Time, time.Time) {
	known := make([]time.Time, 0, 5+len(route))
	for _, t := range []*time.Time{lw.CreatedAt, lw.UpdatedAt, lw.StartTime, lw.PausedAt, lw.EndTime} {
		if t != nil && !t.IsZero() {
			known = append(known, t.UTC())
		}
	}
	for _, l := range route {
		known = append(known, l.Timestamp)
	}

	created, updated := UnknownTime, UnknownTime
	if len(known) > 0 {
		created, updated = known[0], known[0]
		for _, t := range known[1:] {
			if t.Before(created) {
				created = t
			}
			if t.After(updated) {
				updated = t
			}
		}
	}

	if lw.CreatedAt == nil || lw.CreatedAt.IsZero() {
		warn("missing created_at, using %s", created.Format(time.RFC3339))
	} else {
		created = lw.CreatedAt.UTC()
	}
	if lw.UpdatedAt != nil && !lw.UpdatedAt.IsZero() {
		updated = lw.UpdatedAt.UTC()
	}
	if updated.Before(created) {
		updated = created
	}
	return created, updated
}

func reconcileTimestamps(w *models.Walk, lw LegacyWalk, route []models.WalkLocation, warn func(string, ...any)) {
	start, end, paused := utcPtr(lw.StartTime), utcPtr(lw.EndTime), utcPtr(lw.PausedAt)

	if w.Status == models.WalkStatusNotStarted {
		if start != nil || end != nil || paused != nil {
			warn("not_started walk carried timestamps, dropped")
		}
		w.TotalPausedDuration = 0
		return
	}

	if start == nil {
		fallback := w.CreatedAt
		if len(route) > 0 {
			fallback = route[0].Timestamp
		}
		start = &fallback
		warn("missing start_time, using %s", fallback.Format(time.RFC3339))
	}
	w.StartTime = start

	switch w.Status {
	case models.WalkStatusInProgress:
		if end != nil || paused != nil {
			warn("in_progress walk carried end/pause timestamps, dropped")
		}
	case models.WalkStatusPaused:
		if paused == nil {
			at := w.UpdatedAt
			paused = &at
			warn("missing paused_at, using updated_at")
		}
		if paused.Before(*start) {
			paused = start
		}
		w.PausedAt = paused
	case models.WalkStatusCompleted:
		if end == nil {
			at := w.UpdatedAt
			if len(route) > 0 && route[len(route)-1].Timestamp.After(at) {
				at = route[len(route)-1].Timestamp
			}
			end = &at
			warn("missing end_time, using %s", at.Format(time.RFC3339))
		}
		if end.Before(*start) {
			end = start
			warn("end_time before start_time, clamped")
		}
		w.EndTime = end
	}
}

func transformLocations(walkID uuid.UUID, legacy []LegacyLocation, warn func(string, ...any)) []models.WalkLocation {
	out := make([]models.WalkLocation, 0, len(legacy))
	seen := make(map[int]int, len(legacy))
	for i, l := range legacy {
		seq := i
		if l.SequenceNumber != nil {
			if *l.SequenceNumber < 0 || *l.SequenceNumber > models.MaxSequenceNumber {
				warn("location %d: sequence %d out of range, skipped", i, *l.SequenceNumber)
				continue
			}
			seq = int(*l.SequenceNumber)
		}
		if l.Timestamp == nil {
			warn("location %d: missing timestamp, skipped", i)
			continue
		}
		loc := models.WalkLocation{
			WalkID:             walkID,
			SequenceNumber:     seq,
			Latitude:           l.Latitude,
			Longitude:          l.Longitude,
			Altitude:           l.Altitude,
			Timestamp:          l.Timestamp.UTC(),
			HorizontalAccuracy: l.HorizontalAccuracy,
			VerticalAccuracy:   l.VerticalAccuracy,
			Speed:              l.Speed,
			Course:             l.Course,
		}
		if loc.IsSentinel() {
			warn("location %d: 0,0 sentinel, skipped", i)
			continue
		}
		if err := loc.Validate(); err != nil {
			warn("location %d: %v, skipped", i, err)
			continue
		}
		if prev, dup := seen[seq]; dup {
			warn("location %d: duplicate sequence %d, replaces location %d", i, seq, prev)
			out = removeSequence(out, seq)
		}
		seen[seq] = i
		out = append(out, loc)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].SequenceNumber < out[b].SequenceNumber })
	return out
}

func removeSequence(locs []models.WalkLocation, seq int) []models.WalkLocation {
	out := locs[:0]
	for _, l := range locs {
		if l.SequenceNumber != seq {
			out = append(out, l)
		}
	}
	return out
}

func nonNegative(v float64, field string, warn func(string, ...any)) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		warn("%s %v invalid, using 0", field, v)
		return 0
	}
	return v
}

func timeOr(t *time.Time, fallback time.Time) time.Time {
	if t == nil || t.IsZero() {
		return fallback.UTC()
	}
	return t.UTC()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
