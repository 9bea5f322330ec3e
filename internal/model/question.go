package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionType distinguishes how an answer is captured.
const (
	// QuestionTest expects one of the preset options; graded by exact match
	// against the canonical answer.
	QuestionTest = "TEST"
	// QuestionOpen expects free text; grading is deferred to the out-of-band
	// correction API, so it always scores 0 on registration.
	QuestionOpen = "OPEN"
)

// Question is immutable for the duration of a scheduling cycle.
type Question struct {
	ID         uuid.UUID   `json:"id"`
	Text       string      `json:"text"`
	Subject    string      `json:"subject,omitempty"`
	Options    []string    `json:"options,omitempty"`
	Answer     string      `json:"answer"`
	Level      int         `json:"level"`
	ArticleURL string      `json:"article_url,omitempty"`
	Type       string      `json:"type"`
	Groups     []uuid.UUID `json:"groups"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Score grades a raw answer against the question. TEST questions score 1
// on an exact match with the canonical answer and 0 otherwise; OPEN
// questions score 0 pending correction.
func Score(q Question, rawAnswer string) float64 {
	if q.Type == QuestionTest && rawAnswer == q.Answer {
		return 1
	}
	return 0
}
