package schedule

import (
	"context"

	"github.com/google/uuid"

	"github.com/PluxCo/testing-platform-old/internal/model"
)

// Message is one outbound prompt for one person. TEST questions carry the
// option list the messenger renders as buttons.
type Message struct {
	PersonID uuid.UUID `json:"person_id"`
	Text     string    `json:"text"`
	Options  []string  `json:"options,omitempty"`
}

// Transport delivers a batch of messages and returns correlation tokens
// aligned positionally with the batch. An empty token means delivery to
// that person failed; the record stays NOT_ANSWERED and is retried as a
// due record on a later cycle.
type Transport interface {
	Send(ctx context.Context, batch []Message) ([]string, error)
}

// DontKnowOption is prepended to TEST option lists so a person can always
// pass on a question.
const DontKnowOption = "I don't know"

// BuildMessage renders a question as an outbound message for a person.
func BuildMessage(personID uuid.UUID, q model.Question) Message {
	msg := Message{PersonID: personID, Text: q.Text}
	if q.Type == model.QuestionTest {
		msg.Options = append([]string{DontKnowOption}, q.Options...)
	}
	return msg
}
