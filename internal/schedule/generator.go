package schedule

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/PluxCo/testing-platform-old/internal/model"
)

// weightEpsilon keeps every computed weight strictly positive.
const weightEpsilon = 0.001

// Item is one deliverable unit: either an already-existing due record or a
// freshly selected question not yet turned into a record. Exactly one
// field is set.
type Item struct {
	Question *model.Question
	Record   *model.AnswerRecord
}

// Selector picks the next questions for a person: due records first,
// ordered by ask time, then fresh questions from the eligible pool. The
// result never exceeds count and never repeats a question within one call.
type Selector interface {
	NextBunch(ctx context.Context, person *model.Person, count int) ([]Item, error)
}

// dueAndPool runs the selection steps shared by both selector variants.
// When the due records already cover count, the pool is not fetched at all.
func dueAndPool(ctx context.Context, answers AnswerStore, questions QuestionStore,
	person *model.Person, count int, now time.Time) (due []Item, pool []model.Question, err error) {

	records, err := answers.Due(ctx, person.ID, now)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch due records: %w", err)
	}
	for _, rec := range records {
		due = append(due, Item{Record: rec})
	}
	if len(due) >= count {
		return due[:count], nil, nil
	}

	exclude := make([]uuid.UUID, 0, len(records))
	for _, rec := range records {
		exclude = append(exclude, rec.QuestionID)
	}
	pool, err = questions.PoolFor(ctx, person, exclude)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch question pool: %w", err)
	}
	return due, pool, nil
}

// UniformSelector draws fresh questions uniformly at random without
// replacement. Used by ad-hoc tooling; the live dispatcher runs the
// weighted variant.
type UniformSelector struct {
	answers   AnswerStore
	questions QuestionStore
	now       func() time.Time
	rnd       *rand.Rand
}

func NewUniformSelector(answers AnswerStore, questions QuestionStore) *UniformSelector {
	return &UniformSelector{
		answers:   answers,
		questions: questions,
		now:       time.Now,
		rnd:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

func (g *UniformSelector) NextBunch(ctx context.Context, person *model.Person, count int) ([]Item, error) {
	now := g.now()
	due, pool, err := dueAndPool(ctx, g.answers, g.questions, person, count, now)
	if err != nil {
		return nil, err
	}
	if len(due) >= count || len(pool) == 0 {
		return due, nil
	}

	n := min(count-len(due), len(pool))
	for _, idx := range g.rnd.Perm(len(pool))[:n] {
		q := pool[idx]
		due = append(due, Item{Question: &q})
	}
	return due, nil
}

// WeightedSelector is the statistically-weighted variant the dispatcher
// uses. Weights suppress recently repeated, high-scoring questions, let a
// slow oscillation resurface them on a spaced-repetition cadence, and
// penalize questions far from the person's target level.
type WeightedSelector struct {
	answers   AnswerStore
	questions QuestionStore
	settings  SettingsSource
	now       func() time.Time
	rnd       *rand.Rand
}

func NewWeightedSelector(answers AnswerStore, questions QuestionStore, settings SettingsSource) *WeightedSelector {
	return &WeightedSelector{
		answers:   answers,
		questions: questions,
		settings:  settings,
		now:       time.Now,
		rnd:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

func (g *WeightedSelector) NextBunch(ctx context.Context, person *model.Person, count int) ([]Item, error) {
	now := g.now()
	due, pool, err := dueAndPool(ctx, g.answers, g.questions, person, count, now)
	if err != nil {
		return nil, err
	}
	if len(due) >= count || len(pool) == 0 {
		return due, nil
	}

	cfg, err := g.settings.Current()
	if err != nil {
		return nil, fmt.Errorf("selection settings: %w", err)
	}
	stats, err := g.answers.Stats(ctx, person.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch answer stats: %w", err)
	}

	weights := poolWeights(person, pool, stats, now, cfg.TimePeriod)

	n := min(count-len(due), len(pool))
	for _, q := range drawWeighted(g.rnd, pool, weights, n) {
		due = append(due, Item{Question: &q})
	}
	return due, nil
}

// poolWeights assigns a normalized weight to every pool question. Questions
// with no scored history are "unseen": their weight is the pool average
// raised toward the best seen weight, so new material surfaces instead of
// drowning at zero. Non-finite weights collapse to the same average; they
// never exclude a question silently. The average is computed once per call.
func poolWeights(person *model.Person, pool []model.Question,
	stats map[uuid.UUID]model.AnswerStats, now time.Time, period time.Duration) []float64 {

	weights := make([]float64, len(pool))
	seenSum, seenMax := 0.0, 0.0
	seenCount := 0

	for i, q := range pool {
		st, ok := stats[q.ID]
		if !ok || st.PointsSum == 0 {
			weights[i] = math.NaN()
			continue
		}
		w := questionWeight(person, q, st, now, period)
		weights[i] = w
		if isFinite(w) {
			seenSum += w
			if w > seenMax {
				seenMax = w
			}
			seenCount++
		}
	}

	avg := 1.0
	if seenCount > 0 {
		avg = (seenSum + float64(len(pool)-seenCount)*seenMax) / float64(len(pool))
	}
	for i := range weights {
		if !isFinite(weights[i]) {
			weights[i] = avg
		}
	}

	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 || !isFinite(total) {
		uniform := 1 / float64(len(weights))
		for i := range weights {
			weights[i] = uniform
		}
		return weights
	}
	for i := range weights {
		weights[i] /= total
	}
	return weights
}

// questionWeight computes the raw spaced-repetition weight of one seen
// question:
//
//	w = (seconds since last ask / points sum)
//	  * |cos(pi * log2(periods+4))| ^ ((periods+4)^2 / 20)
//	  * exp(-0.5 * (target level - question level)^2)
//	  + epsilon
//
// where periods is the time since the first ask measured in repetition
// periods.
func questionWeight(person *model.Person, q model.Question, st model.AnswerStats,
	now time.Time, period time.Duration) float64 {

	periods := float64(now.Sub(st.FirstAsk)) / float64(period)
	target := person.TargetLevelFor(q.Groups)

	recency := now.Sub(st.LastAsk).Seconds() / st.PointsSum
	oscillation := math.Pow(
		math.Abs(math.Cos(math.Pi*math.Log2(periods+4))),
		(periods+4)*(periods+4)/20,
	)
	levelFit := math.Exp(-0.5 * float64(target-q.Level) * float64(target-q.Level))

	return recency*oscillation*levelFit + weightEpsilon
}

// drawWeighted picks n distinct questions without replacement under the
// given distribution, renormalizing after every draw.
func drawWeighted(rnd *rand.Rand, pool []model.Question, weights []float64, n int) []model.Question {
	remaining := make([]model.Question, len(pool))
	copy(remaining, pool)
	probs := make([]float64, len(weights))
	copy(probs, weights)

	picked := make([]model.Question, 0, n)
	for len(picked) < n && len(remaining) > 0 {
		total := 0.0
		for _, p := range probs {
			total += p
		}

		idx := len(remaining) - 1
		if total > 0 {
			r := rnd.Float64() * total
			acc := 0.0
			for i, p := range probs {
				acc += p
				if r < acc {
					idx = i
					break
				}
			}
		} else {
			idx = rnd.IntN(len(remaining))
		}

		picked = append(picked, remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
		probs = append(probs[:idx], probs[idx+1:]...)
	}
	return picked
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
