package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/PluxCo/testing-platform-old/internal/model"
)

// Session sequences question delivery and answer capture for one person
// within one dispatch cycle. It is ephemeral: built by the dispatcher,
// kept alive only through correlation table entries, and discarded once
// the remote session closes.
type Session struct {
	person    *model.Person
	selector  Selector
	answers   AnswerStore
	questions QuestionStore
	bunchSize int
	now       func() time.Time

	queue []Item
}

func NewSession(person *model.Person, selector Selector, answers AnswerStore, questions QuestionStore, bunchSize int) *Session {
	if bunchSize <= 0 {
		bunchSize = 1
	}
	return &Session{
		person:    person,
		selector:  selector,
		answers:   answers,
		questions: questions,
		bunchSize: bunchSize,
		now:       time.Now,
	}
}

func (s *Session) Person() *model.Person {
	return s.person
}

// GenerateQuestions fills the pending queue from the selector. Nothing is
// persisted until an item is actually popped.
func (s *Session) GenerateQuestions(ctx context.Context) error {
	items, err := s.selector.NextBunch(ctx, s.person, s.bunchSize)
	if err != nil {
		return fmt.Errorf("generate questions for %s: %w", s.person.ID, err)
	}
	s.queue = items
	return nil
}

// NextQuestion pops the queue head. A bare question is materialized into a
// persisted NOT_ANSWERED record at this moment; a due record is returned
// as-is. A nil record signals the session is exhausted.
func (s *Session) NextQuestion(ctx context.Context) (*model.AnswerRecord, error) {
	if len(s.queue) == 0 {
		return nil, nil
	}
	item := s.queue[0]
	s.queue = s.queue[1:]

	if item.Record != nil {
		return item.Record, nil
	}

	rec := &model.AnswerRecord{
		ID:         uuid.New(),
		QuestionID: item.Question.ID,
		PersonID:   s.person.ID,
		AskTime:    s.now(),
		State:      model.StateNotAnswered,
	}
	if err := s.answers.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist answer record: %w", err)
	}
	return rec, nil
}

// MarkTransferred records that the question reached the transport. The
// transition is idempotent and only applies to NOT_ANSWERED records;
// ask_time is backfilled when unset.
func (s *Session) MarkTransferred(ctx context.Context, rec *model.AnswerRecord) error {
	at := s.now()
	if err := s.answers.MarkTransferred(ctx, rec.ID, at); err != nil {
		return fmt.Errorf("mark transferred: %w", err)
	}
	if rec.State == model.StateNotAnswered {
		rec.State = model.StateTransferred
		if rec.AskTime.IsZero() {
			rec.AskTime = at
		}
	}
	return nil
}

// RegisterAnswer grades and persists a response. The persisted state is
// re-read first: a record that is already ANSWERED yields
// model.ErrConflict and keeps its stored answer and points.
func (s *Session) RegisterAnswer(ctx context.Context, rec *model.AnswerRecord, rawAnswer string) (*model.AnswerRecord, error) {
	current, err := s.answers.Answer(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("load answer record %s: %w", rec.ID, err)
	}
	if current.State == model.StateAnswered {
		return nil, fmt.Errorf("record %s: %w", rec.ID, model.ErrConflict)
	}

	question, err := s.questions.Question(ctx, current.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("load question %s: %w", current.QuestionID, err)
	}

	answeredAt := s.now()
	current.PersonAnswer = rawAnswer
	current.AnswerTime = &answeredAt
	current.Points = model.Score(question, rawAnswer)
	current.State = model.StateAnswered

	// The store re-checks the state transition, so two concurrent
	// registrations cannot both score.
	if err := s.answers.SaveAnswered(ctx, current); err != nil {
		if errors.Is(err, model.ErrConflict) {
			return nil, fmt.Errorf("record %s: %w", rec.ID, model.ErrConflict)
		}
		return nil, fmt.Errorf("persist answer: %w", err)
	}
	return current, nil
}
