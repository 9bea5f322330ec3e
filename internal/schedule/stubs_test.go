package schedule

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PluxCo/testing-platform-old/internal/model"
	"github.com/PluxCo/testing-platform-old/internal/settings"
)

// memoryAnswerStore mimics the Postgres store's state machine enforcement
// so session and dispatcher tests exercise the same transitions.
type memoryAnswerStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*model.AnswerRecord
	stats   map[uuid.UUID]model.AnswerStats

	dueErr    error
	dueErrFor map[uuid.UUID]error
	statsErr  error
	createErr error
}

func newMemoryAnswerStore() *memoryAnswerStore {
	return &memoryAnswerStore{
		records: map[uuid.UUID]*model.AnswerRecord{},
		stats:   map[uuid.UUID]model.AnswerStats{},
	}
}

func (s *memoryAnswerStore) Due(_ context.Context, personID uuid.UUID, now time.Time) ([]*model.AnswerRecord, error) {
	if s.dueErr != nil {
		return nil, s.dueErr
	}
	if err, ok := s.dueErrFor[personID]; ok {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*model.AnswerRecord
	for _, rec := range s.records {
		if rec.PersonID == personID && rec.State == model.StateNotAnswered &&
			!rec.AskTime.IsZero() && !rec.AskTime.After(now) {
			clone := *rec
			due = append(due, &clone)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].AskTime.Before(due[j].AskTime) })
	return due, nil
}

func (s *memoryAnswerStore) Stats(_ context.Context, _ uuid.UUID) (map[uuid.UUID]model.AnswerStats, error) {
	if s.statsErr != nil {
		return nil, s.statsErr
	}
	return s.stats, nil
}

func (s *memoryAnswerStore) Create(_ context.Context, rec *model.AnswerRecord) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *rec
	s.records[rec.ID] = &clone
	return nil
}

func (s *memoryAnswerStore) Answer(_ context.Context, id uuid.UUID) (*model.AnswerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (s *memoryAnswerStore) SaveAnswered(_ context.Context, rec *model.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.records[rec.ID]
	if !ok {
		return model.ErrNotFound
	}
	if stored.State == model.StateAnswered {
		return model.ErrConflict
	}
	clone := *rec
	s.records[rec.ID] = &clone
	return nil
}

func (s *memoryAnswerStore) MarkTransferred(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.records[id]
	if !ok {
		return model.ErrNotFound
	}
	if stored.State != model.StateNotAnswered {
		return nil
	}
	stored.State = model.StateTransferred
	if stored.AskTime.IsZero() {
		stored.AskTime = at
	}
	return nil
}

func (s *memoryAnswerStore) byState(state string) []*model.AnswerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.AnswerRecord
	for _, rec := range s.records {
		if rec.State == state {
			clone := *rec
			out = append(out, &clone)
		}
	}
	return out
}

type stubQuestionStore struct {
	questions map[uuid.UUID]model.Question
	pool      []model.Question

	poolCalls int
	poolErr   error
}

func newStubQuestionStore(pool ...model.Question) *stubQuestionStore {
	s := &stubQuestionStore{questions: map[uuid.UUID]model.Question{}, pool: pool}
	for _, q := range pool {
		s.questions[q.ID] = q
	}
	return s
}

func (s *stubQuestionStore) Question(_ context.Context, id uuid.UUID) (model.Question, error) {
	q, ok := s.questions[id]
	if !ok {
		return model.Question{}, model.ErrNotFound
	}
	return q, nil
}

func (s *stubQuestionStore) PoolFor(_ context.Context, _ *model.Person, exclude []uuid.UUID) ([]model.Question, error) {
	s.poolCalls++
	if s.poolErr != nil {
		return nil, s.poolErr
	}
	excluded := map[uuid.UUID]bool{}
	for _, id := range exclude {
		excluded[id] = true
	}
	var out []model.Question
	for _, q := range s.pool {
		if !excluded[q.ID] {
			out = append(out, q)
		}
	}
	return out, nil
}

type stubPersonStore struct {
	people []*model.Person
	err    error
}

func (s *stubPersonStore) People(_ context.Context) ([]*model.Person, error) {
	return s.people, s.err
}

type stubSettings struct {
	cfg settings.Settings
	err error
}

func (s *stubSettings) Current() (settings.Settings, error) {
	return s.cfg, s.err
}

type stubTransport struct {
	mu      sync.Mutex
	batches [][]Message
	tokens  []string
	err     error
}

func (t *stubTransport) Send(_ context.Context, batch []Message) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.batches = append(t.batches, batch)
	if t.err != nil {
		return nil, t.err
	}
	if t.tokens != nil {
		tokens := t.tokens
		if len(tokens) > len(batch) {
			tokens = tokens[:len(batch)]
		}
		return tokens, nil
	}
	tokens := make([]string, len(batch))
	for i := range tokens {
		tokens[i] = uuid.NewString()
	}
	return tokens, nil
}

func (t *stubTransport) sentBatches() [][]Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.batches
}

var errStub = errors.New("stub failure")

func testPerson(groups ...model.GroupMembership) *model.Person {
	return &model.Person{ID: uuid.New(), FullName: "Test Person", Memberships: groups}
}

func testQuestion(level int, groups ...uuid.UUID) model.Question {
	return model.Question{
		ID:      uuid.New(),
		Text:    "What?",
		Options: []string{"a", "b"},
		Answer:  "a",
		Level:   level,
		Type:    model.QuestionTest,
		Groups:  groups,
	}
}
