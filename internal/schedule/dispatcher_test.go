package schedule

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PluxCo/testing-platform-old/internal/model"
	"github.com/PluxCo/testing-platform-old/internal/settings"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func windowSettings() settings.Settings {
	return settings.Settings{
		TimePeriod: 30 * time.Second,
		FromTime:   settings.ClockTime{Hour: 9, Minute: 0},
		ToTime:     settings.ClockTime{Hour: 18, Minute: 0},
		WeekDays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
	}
}

func TestShouldFire(t *testing.T) {
	cfg := windowSettings()
	// 2025-03-10 is a Monday.
	monday := func(h, m, s int) time.Time {
		return time.Date(2025, 3, 10, h, m, s, 0, time.UTC)
	}
	saturday := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		now  time.Time
		prev time.Time
		want bool
	}{
		{"before window", monday(8, 59, 59), time.Time{}, false},
		{"window opens inclusive", monday(9, 0, 0), time.Time{}, true},
		{"window closes inclusive", monday(18, 0, 59), time.Time{}, true},
		{"after window", monday(18, 1, 0), time.Time{}, false},
		{"disallowed weekday", saturday, time.Time{}, false},
		{"period not elapsed", monday(9, 0, 15), monday(9, 0, 0), false},
		{"period exactly elapsed", monday(9, 0, 30), monday(9, 0, 0), true},
		{"period elapsed", monday(9, 0, 31), monday(9, 0, 0), true},
		{"no previous cycle", monday(12, 0, 0), time.Time{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, shouldFire(tc.now, tc.prev, cfg))
		})
	}
}

func TestShouldFireUnrestrictedSettings(t *testing.T) {
	cfg := settings.Settings{TimePeriod: time.Second}
	assert.True(t, shouldFire(time.Date(2025, 3, 15, 3, 0, 0, 0, time.UTC), time.Time{}, cfg))
}

func newTestDispatcher(answers AnswerStore, questions QuestionStore, people PersonStore,
	transport Transport, table *CorrelationTable, now time.Time) *Dispatcher {

	sel := NewWeightedSelector(answers, questions, &stubSettings{cfg: settings.Default()})
	sel.now = func() time.Time { return now }
	sel.rnd = fixedRand()

	d := NewDispatcher(people, answers, questions, sel,
		&stubSettings{cfg: settings.Default()}, transport, table,
		DispatcherOptions{BunchSize: 1}, testLogger())
	d.now = func() time.Time { return now }
	return d
}

func TestDispatcherTickAdvancesPrevCycleBeforeBody(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	people := &stubPersonStore{err: errStub}
	d := newTestDispatcher(newMemoryAnswerStore(), newStubQuestionStore(),
		people, &stubTransport{}, NewCorrelationTable(), now)

	d.tickOnce(context.Background())
	// Even though the cycle body failed to list people, the cycle counts as
	// fired and the period gate applies to the next tick.
	assert.Equal(t, now, d.prevCycle)
}

func TestDispatcherSkipsTickWhenSettingsUnavailable(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	d := newTestDispatcher(newMemoryAnswerStore(), newStubQuestionStore(),
		&stubPersonStore{}, &stubTransport{}, NewCorrelationTable(), now)
	d.settings = &stubSettings{err: model.ErrSettingsUnavailable}

	d.tickOnce(context.Background())
	assert.True(t, d.prevCycle.IsZero())
}

func TestDispatcherCycleDeliversBatch(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	answers := newMemoryAnswerStore()
	questions := newStubQuestionStore(testQuestion(1), testQuestion(1), testQuestion(1))
	people := &stubPersonStore{people: []*model.Person{testPerson(), testPerson(), testPerson()}}
	transport := &stubTransport{tokens: []string{"tok-1", "", "tok-3"}}
	table := NewCorrelationTable()

	d := newTestDispatcher(answers, questions, people, transport, table, now)
	d.cycle(context.Background(), now)

	batches := transport.sentBatches()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 3)

	// Two tokens resolved, one delivery failed.
	assert.Equal(t, 2, table.Len())
	assert.Len(t, answers.byState(model.StateTransferred), 2)
	assert.Len(t, answers.byState(model.StateNotAnswered), 1)

	// The failed record stays due and resurfaces on the next cycle.
	failed := answers.byState(model.StateNotAnswered)
	require.Len(t, failed, 1)
	assert.False(t, failed[0].AskTime.IsZero())
}

func TestDispatcherCycleIsolatesPersonFailures(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	answers := newMemoryAnswerStore()

	healthy := testPerson()
	broken := testPerson()
	answers.dueErrFor = map[uuid.UUID]error{broken.ID: errStub}

	questions := newStubQuestionStore(testQuestion(1))
	people := &stubPersonStore{people: []*model.Person{broken, healthy}}
	transport := &stubTransport{tokens: []string{"tok-1"}}
	table := NewCorrelationTable()

	d := newTestDispatcher(answers, questions, people, transport, table, now)
	d.cycle(context.Background(), now)

	// Selection failed for the broken person; the healthy person is still
	// served in the same cycle.
	batches := transport.sentBatches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	assert.Equal(t, healthy.ID, batches[0][0].PersonID)
	assert.Equal(t, 1, table.Len())
}

func TestDispatcherCycleTransportFailureLeavesRecordsDue(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	answers := newMemoryAnswerStore()
	questions := newStubQuestionStore(testQuestion(1))
	people := &stubPersonStore{people: []*model.Person{testPerson()}}
	transport := &stubTransport{err: errStub}
	table := NewCorrelationTable()

	d := newTestDispatcher(answers, questions, people, transport, table, now)
	d.cycle(context.Background(), now)

	assert.Zero(t, table.Len())
	assert.Len(t, answers.byState(model.StateNotAnswered), 1)
	assert.Empty(t, answers.byState(model.StateTransferred))
}

func TestDispatcherRunStopsOnCancel(t *testing.T) {
	d := newTestDispatcher(newMemoryAnswerStore(), newStubQuestionStore(),
		&stubPersonStore{}, &stubTransport{}, NewCorrelationTable(), time.Now())
	d.tick = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}
}

func TestBuildMessagePrependsDontKnow(t *testing.T) {
	q := testQuestion(1)
	msg := BuildMessage(uuid.New(), q)
	require.Len(t, msg.Options, 3)
	assert.Equal(t, DontKnowOption, msg.Options[0])

	open := model.Question{ID: uuid.New(), Text: "Explain.", Type: model.QuestionOpen}
	assert.Empty(t, BuildMessage(uuid.New(), open).Options)
}
