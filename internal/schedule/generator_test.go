package schedule

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PluxCo/testing-platform-old/internal/model"
	"github.com/PluxCo/testing-platform-old/internal/settings"
)

func fixedRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func newTestWeightedSelector(answers AnswerStore, questions QuestionStore, now time.Time) *WeightedSelector {
	sel := NewWeightedSelector(answers, questions, &stubSettings{cfg: settings.Default()})
	sel.now = func() time.Time { return now }
	sel.rnd = fixedRand()
	return sel
}

func TestWeightedSelectorDueRecordsFirst(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	person := testPerson()
	answers := newMemoryAnswerStore()
	questions := newStubQuestionStore(testQuestion(1), testQuestion(2))

	oldest := &model.AnswerRecord{
		ID: uuid.New(), QuestionID: questions.pool[0].ID, PersonID: person.ID,
		AskTime: now.Add(-2 * time.Hour), State: model.StateNotAnswered,
	}
	newer := &model.AnswerRecord{
		ID: uuid.New(), QuestionID: questions.pool[1].ID, PersonID: person.ID,
		AskTime: now.Add(-time.Hour), State: model.StateNotAnswered,
	}
	require.NoError(t, answers.Create(context.Background(), newer))
	require.NoError(t, answers.Create(context.Background(), oldest))

	sel := newTestWeightedSelector(answers, questions, now)
	items, err := sel.NextBunch(context.Background(), person, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Record)
	assert.Equal(t, oldest.ID, items[0].Record.ID)

	// Enough due records means the pool is never consulted.
	assert.Equal(t, 0, questions.poolCalls)
}

func TestWeightedSelectorTopsUpFromPool(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	person := testPerson()
	answers := newMemoryAnswerStore()
	questions := newStubQuestionStore(testQuestion(1), testQuestion(1), testQuestion(1))

	due := &model.AnswerRecord{
		ID: uuid.New(), QuestionID: questions.pool[0].ID, PersonID: person.ID,
		AskTime: now.Add(-time.Hour), State: model.StateNotAnswered,
	}
	require.NoError(t, answers.Create(context.Background(), due))

	sel := newTestWeightedSelector(answers, questions, now)
	items, err := sel.NextBunch(context.Background(), person, 3)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.NotNil(t, items[0].Record)
	assert.Equal(t, due.ID, items[0].Record.ID)

	// The due question must not be selected again as a fresh item.
	seen := map[uuid.UUID]bool{due.QuestionID: true}
	for _, item := range items[1:] {
		require.NotNil(t, item.Question)
		assert.False(t, seen[item.Question.ID], "question repeated within one bunch")
		seen[item.Question.ID] = true
	}
}

func TestWeightedSelectorNeverExceedsAvailable(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	person := testPerson()
	answers := newMemoryAnswerStore()
	questions := newStubQuestionStore(testQuestion(1))

	sel := newTestWeightedSelector(answers, questions, now)
	items, err := sel.NextBunch(context.Background(), person, 5)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestWeightedSelectorEmptyPool(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	sel := newTestWeightedSelector(newMemoryAnswerStore(), newStubQuestionStore(), now)
	items, err := sel.NextBunch(context.Background(), testPerson(), 2)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPoolWeightsUnseenAverage(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	period := 30 * time.Second
	person := testPerson()

	pool := []model.Question{testQuestion(1), testQuestion(1), testQuestion(1), testQuestion(1)}
	stats := map[uuid.UUID]model.AnswerStats{
		pool[0].ID: {PointsSum: 2, FirstAsk: now.Add(-time.Hour), LastAsk: now.Add(-10 * time.Minute)},
		pool[1].ID: {PointsSum: 1, FirstAsk: now.Add(-2 * time.Hour), LastAsk: now.Add(-90 * time.Minute)},
		// pool[2] was asked but never scored: treated as unseen.
		pool[2].ID: {PointsSum: 0, FirstAsk: now.Add(-time.Hour), LastAsk: now.Add(-time.Hour)},
	}

	weights := poolWeights(person, pool, stats, now, period)
	require.Len(t, weights, 4)

	w0 := questionWeight(person, pool[0], stats[pool[0].ID], now, period)
	w1 := questionWeight(person, pool[1], stats[pool[1].ID], now, period)
	seenMax := math.Max(w0, w1)
	avg := (w0 + w1 + 2*seenMax) / 4
	total := w0 + w1 + 2*avg

	assert.InDelta(t, w0/total, weights[0], 1e-9)
	assert.InDelta(t, w1/total, weights[1], 1e-9)
	assert.InDelta(t, avg/total, weights[2], 1e-9)
	assert.InDelta(t, avg/total, weights[3], 1e-9)

	sum := 0.0
	for _, w := range weights {
		assert.Greater(t, w, 0.0)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestPoolWeightsAllUnseenUniform(t *testing.T) {
	now := time.Now()
	pool := []model.Question{testQuestion(1), testQuestion(1)}

	weights := poolWeights(testPerson(), pool, map[uuid.UUID]model.AnswerStats{}, now, time.Minute)
	require.Len(t, weights, 2)
	assert.InDelta(t, 0.5, weights[0], 1e-9)
	assert.InDelta(t, 0.5, weights[1], 1e-9)
}

func TestQuestionWeightStrictlyPositive(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	group := uuid.New()
	person := testPerson(model.GroupMembership{GroupID: group, TargetLevel: 3})
	q := testQuestion(3, group)

	st := model.AnswerStats{PointsSum: 50, FirstAsk: now.Add(-24 * time.Hour), LastAsk: now.Add(-time.Second)}
	w := questionWeight(person, q, st, now, 30*time.Second)
	assert.GreaterOrEqual(t, w, weightEpsilon)
}

func TestQuestionWeightLevelPenalty(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	group := uuid.New()
	person := testPerson(model.GroupMembership{GroupID: group, TargetLevel: 3})
	st := model.AnswerStats{PointsSum: 1, FirstAsk: now.Add(-time.Hour), LastAsk: now.Add(-30 * time.Minute)}

	onTarget := questionWeight(person, testQuestion(3, group), st, now, 30*time.Second)
	offTarget := questionWeight(person, testQuestion(6, group), st, now, 30*time.Second)
	assert.Greater(t, onTarget, offTarget)
}

func TestDrawWeightedWithoutReplacement(t *testing.T) {
	pool := []model.Question{testQuestion(1), testQuestion(1), testQuestion(1)}
	weights := []float64{0.5, 0.3, 0.2}

	picked := drawWeighted(fixedRand(), pool, weights, 3)
	require.Len(t, picked, 3)
	seen := map[uuid.UUID]bool{}
	for _, q := range picked {
		assert.False(t, seen[q.ID])
		seen[q.ID] = true
	}
}

func TestDrawWeightedZeroTotalFallsBackToUniform(t *testing.T) {
	pool := []model.Question{testQuestion(1), testQuestion(1)}
	picked := drawWeighted(fixedRand(), pool, []float64{0, 0}, 2)
	assert.Len(t, picked, 2)
}

func TestDrawWeightedNeverPicksZeroWeightWhileOthersRemain(t *testing.T) {
	pool := []model.Question{testQuestion(1), testQuestion(1), testQuestion(1)}
	weights := []float64{0, 1, 0}

	picked := drawWeighted(fixedRand(), pool, weights, 1)
	require.Len(t, picked, 1)
	assert.Equal(t, pool[1].ID, picked[0].ID)
}

func TestUniformSelectorNoDuplicates(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	questions := newStubQuestionStore(testQuestion(1), testQuestion(1), testQuestion(1), testQuestion(1))
	sel := NewUniformSelector(newMemoryAnswerStore(), questions)
	sel.now = func() time.Time { return now }
	sel.rnd = fixedRand()

	items, err := sel.NextBunch(context.Background(), testPerson(), 3)
	require.NoError(t, err)
	require.Len(t, items, 3)
	seen := map[uuid.UUID]bool{}
	for _, item := range items {
		require.NotNil(t, item.Question)
		assert.False(t, seen[item.Question.ID])
		seen[item.Question.ID] = true
	}
}

func TestWeightedSelectorPropagatesStoreErrors(t *testing.T) {
	now := time.Now()
	answers := newMemoryAnswerStore()
	answers.dueErr = errStub
	sel := newTestWeightedSelector(answers, newStubQuestionStore(testQuestion(1)), now)

	_, err := sel.NextBunch(context.Background(), testPerson(), 1)
	assert.ErrorIs(t, err, errStub)
}
