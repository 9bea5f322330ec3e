package model

import (
	"time"

	"github.com/google/uuid"
)

// AnswerState lifecycle. TRANSFERRED and ANSWERED are terminal for the
// scheduling core; state never regresses.
const (
	StateNotAnswered = "NOT_ANSWERED"
	StateTransferred = "TRANSFERRED"
	StateAnswered    = "ANSWERED"
)

// AnswerRecord is created the instant a question is chosen for a person,
// not while it is merely a candidate. AskTime's zero value means unset and
// is backfilled when the record is handed to the transport.
type AnswerRecord struct {
	ID           uuid.UUID  `json:"id"`
	QuestionID   uuid.UUID  `json:"question_id"`
	PersonID     uuid.UUID  `json:"person_id"`
	PersonAnswer string     `json:"person_answer,omitempty"`
	AskTime      time.Time  `json:"ask_time"`
	AnswerTime   *time.Time `json:"answer_time,omitempty"`
	Points       float64    `json:"points"`
	State        string     `json:"state"`
}

// AnswerStats aggregates a person's history for one question; it feeds the
// statistically-weighted selector.
type AnswerStats struct {
	QuestionID uuid.UUID
	PointsSum  float64
	FirstAsk   time.Time
	LastAsk    time.Time
	Count      int
}
