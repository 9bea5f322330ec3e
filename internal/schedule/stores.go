// Package schedule implements the adaptive question scheduling core: the
// selection algorithm, the per-person delivery session, the background
// dispatcher and the correlation bookkeeping that ties transport message
// ids back to in-flight answer records.
package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/PluxCo/testing-platform-old/internal/model"
	"github.com/PluxCo/testing-platform-old/internal/settings"
)

// AnswerStore is the persistence surface the scheduling core needs for
// answer records. Implemented by store.AnswerStore over Postgres.
type AnswerStore interface {
	// Due returns the person's NOT_ANSWERED records with ask_time <= now,
	// ordered by ask_time ascending.
	Due(ctx context.Context, personID uuid.UUID, now time.Time) ([]*model.AnswerRecord, error)
	// Stats aggregates the person's full answer history per question.
	Stats(ctx context.Context, personID uuid.UUID) (map[uuid.UUID]model.AnswerStats, error)
	Create(ctx context.Context, rec *model.AnswerRecord) error
	Answer(ctx context.Context, id uuid.UUID) (*model.AnswerRecord, error)
	// SaveAnswered persists the ANSWERED transition. It must fail with
	// model.ErrConflict when the stored record is already ANSWERED.
	SaveAnswered(ctx context.Context, rec *model.AnswerRecord) error
	// MarkTransferred moves a NOT_ANSWERED record to TRANSFERRED and
	// backfills ask_time when unset. A no-op for other states.
	MarkTransferred(ctx context.Context, id uuid.UUID, at time.Time) error
}

// QuestionStore is the question lookup surface for selection and delivery.
type QuestionStore interface {
	Question(ctx context.Context, id uuid.UUID) (model.Question, error)
	// PoolFor returns the questions eligible for fresh selection: any group
	// of the person's, excluding the given question ids.
	PoolFor(ctx context.Context, person *model.Person, exclude []uuid.UUID) ([]model.Question, error)
}

// PersonStore enumerates the people a dispatch cycle serves.
type PersonStore interface {
	People(ctx context.Context) ([]*model.Person, error)
}

// SettingsSource exposes the live scheduler settings.
type SettingsSource interface {
	Current() (settings.Settings, error)
}
