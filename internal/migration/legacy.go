// Package migration copies the legacy Firestore data set into the relational schema.
// Records are read from a Source, normalised by the transform functions and written
// through the same repository entry points the API uses, so reruns are idempotent.
package migration

import "time"

// LegacyUser is a document of the legacy `users` collection.
type LegacyUser struct {
	ID          string     `firestore:"-" json:"id"`
	Email       string     `firestore:"email" json:"email"`
	DisplayName string     `firestore:"displayName" json:"displayName"`
	CreatedAt   *time.Time `firestore:"createdAt" json:"createdAt"`
	UpdatedAt   *time.Time `firestore:"updatedAt" json:"updatedAt"`
}

// LegacyConsent is a document of a user's `consents` sub-collection, keyed by type.
type LegacyConsent struct {
	UserID    string     `firestore:"-" json:"userId"`
	Type      string     `firestore:"-" json:"type"`
	Version   string     `firestore:"version" json:"version"`
	Granted   bool       `firestore:"granted" json:"granted"`
	GrantedAt *time.Time `firestore:"grantedAt" json:"grantedAt"`
	UpdatedAt *time.Time `firestore:"updatedAt" json:"updatedAt"`
}

// LegacyWalk is a document of the legacy `walks` collection with its embedded route.
type LegacyWalk struct {
	ID                  string           `firestore:"-" json:"id"`
	UserID              string           `firestore:"userId" json:"userId"`
	Title               string           `firestore:"title" json:"title"`
	Description         string           `firestore:"description" json:"description"`
	Status              string           `firestore:"status" json:"status"`
	StartTime           *time.Time       `firestore:"startTime" json:"startTime"`
	EndTime             *time.Time       `firestore:"endTime" json:"endTime"`
	PausedAt            *time.Time       `firestore:"pausedAt" json:"pausedAt"`
	Distance            *float64         `firestore:"distance" json:"distance"`
	Steps               *int64           `firestore:"steps" json:"steps"`
	Polyline            *string          `firestore:"polyline" json:"polyline"`
	ThumbnailURL        *string          `firestore:"thumbnailUrl" json:"thumbnailUrl"`
	TotalPausedDuration *float64         `firestore:"totalPausedDuration" json:"totalPausedDuration"`
	CreatedAt           *time.Time       `firestore:"createdAt" json:"createdAt"`
	UpdatedAt           *time.Time       `firestore:"updatedAt" json:"updatedAt"`
	Locations           []LegacyLocation `firestore:"locations" json:"locations"`
}

// LegacyLocation is one element of a legacy walk's `locations` array.
type LegacyLocation struct {
	SequenceNumber     *int64     `firestore:"sequenceNumber" json:"sequenceNumber"`
	Latitude           float64    `firestore:"latitude" json:"latitude"`
	Longitude          float64    `firestore:"longitude" json:"longitude"`
	Altitude           *float64   `firestore:"altitude" json:"altitude"`
	Timestamp          *time.Time `firestore:"timestamp" json:"timestamp"`
	HorizontalAccuracy *float64   `firestore:"horizontalAccuracy" json:"horizontalAccuracy"`
	VerticalAccuracy   *float64   `firestore:"verticalAccuracy" json:"verticalAccuracy"`
	Speed              *float64   `firestore:"speed" json:"speed"`
	Course             *float64   `firestore:"course" json:"course"`
}
