// Package store implements the persistence collaborator over Postgres via
// pgx. Every operation runs in a short-lived transaction or single
// statement; no transaction ever spans a transport call.
package store

import (
	"time"

	"github.com/google/uuid"
)

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
