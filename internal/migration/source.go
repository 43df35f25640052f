package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Source streams legacy records. fn receives each record in turn; a non-nil decodeErr
// means the record could not be read and only its legacy id is known. Returning an
// error from fn stops the iteration.
type Source interface {
	Users(ctx context.Context, fn func(u LegacyUser, decodeErr error) error) error
	Consents(ctx context.Context, fn func(c LegacyConsent, decodeErr error) error) error
	Walks(ctx context.Context, fn func(w LegacyWalk, decodeErr error) error) error
	Close() error
}

// Export is the on-disk shape of a legacy data export.
type Export struct {
	Users    []LegacyUser    `json:"users"`
	Consents []LegacyConsent `json:"consents"`
	Walks    []LegacyWalk    `json:"walks"`
}

// ExportSource serves records from an in-memory Export.
type ExportSource struct {
	export Export
}

// NewExportSource wraps an already decoded export.
func NewExportSource(export Export) *ExportSource {
	return &ExportSource{export: export}
}

// OpenExportFile decodes a JSON export file.
func OpenExportFile(path string) (*ExportSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	var export Export
	if err := json.NewDecoder(f).Decode(&export); err != nil {
		return nil, fmt.Errorf("decode export %s: %w", path, err)
	}
	return NewExportSource(export), nil
}

// Users implements Source.
func (s *ExportSource) Users(ctx context.Context, fn func(LegacyUser, error) error) error {
	return each(ctx, s.export.Users, fn)
}

// Consents implements Source.
func (s *ExportSource) Consents(ctx context.Context, fn func(LegacyConsent, error) error) error {
	return each(ctx, s.export.Consents, fn)
}

// Walks implements Source.
func (s *ExportSource) Walks(ctx context.Context, fn func(LegacyWalk, error) error) error {
	return each(ctx, s.export.Walks, fn)
}

// Close implements Source.
func (s *ExportSource) Close() error { return nil }

func each[T any](ctx context.Context, records []T, fn func(T, error) error) error {
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(rec, nil); err != nil {
			return err
		}
	}
	return nil
}
