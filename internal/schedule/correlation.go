package schedule

import (
	"sync"

	"github.com/PluxCo/testing-platform-old/internal/model"
)

// Correlation is the pair waiting for an inbound response.
type Correlation struct {
	Session *Session
	Record  *model.AnswerRecord
}

// CorrelationTable maps transport-issued tokens to in-flight answer
// records. The dispatcher writes after a successful send; the inbound
// response handler consumes entries atomically. It is the only structure
// both execution contexts mutate, so every access holds the lock.
type CorrelationTable struct {
	mu      sync.Mutex
	entries map[string]Correlation
}

func NewCorrelationTable() *CorrelationTable {
	return &CorrelationTable{entries: make(map[string]Correlation)}
}

// Put registers a delivered record under its correlation token.
func (t *CorrelationTable) Put(token string, session *Session, rec *model.AnswerRecord) {
	t.mu.Lock()
	t.entries[token] = Correlation{Session: session, Record: rec}
	t.mu.Unlock()
}

// Take removes and returns the entry for token. A token that was already
// consumed or never issued yields model.ErrUnknownCorrelation.
func (t *CorrelationTable) Take(token string) (Correlation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	corr, ok := t.entries[token]
	if !ok {
		return Correlation{}, model.ErrUnknownCorrelation
	}
	delete(t.entries, token)
	return corr, nil
}

// Len reports the number of in-flight entries.
func (t *CorrelationTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
