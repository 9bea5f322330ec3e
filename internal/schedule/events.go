package schedule

import (
	"time"

	"github.com/google/uuid"
)

// EventSink receives scheduling lifecycle events for live observers (the
// admin event feed). Implementations must not block; a nil sink disables
// publishing.
type EventSink interface {
	QuestionDelivered(personID, questionID uuid.UUID, token string)
	AnswerRegistered(personID, questionID uuid.UUID, points float64)
	CycleCompleted(delivered int, at time.Time)
}
