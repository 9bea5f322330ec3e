package ws

import "encoding/json"

// Event types pushed to the admin feed.
const (
	TypeQuestionDelivered = "question_delivered"
	TypeAnswerRegistered  = "answer_registered"
	TypeCycleCompleted    = "cycle_completed"
)

// Message wraps every event payload with its type.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewMessage marshals payload into a typed message. Marshal failures are
// the caller's bug; they surface as an empty payload.
func NewMessage(eventType string, payload any) Message {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	return Message{Type: eventType, Payload: data}
}

type QuestionDeliveredPayload struct {
	PersonID   string `json:"person_id"`
	QuestionID string `json:"question_id"`
	Token      string `json:"token"`
}

type AnswerRegisteredPayload struct {
	PersonID   string  `json:"person_id"`
	QuestionID string  `json:"question_id"`
	Points     float64 `json:"points"`
}

type CycleCompletedPayload struct {
	Delivered int    `json:"delivered"`
	At        string `json:"at"`
}
