package schedule

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/PluxCo/testing-platform-old/internal/metrics"
	"github.com/PluxCo/testing-platform-old/internal/model"
	"github.com/PluxCo/testing-platform-old/internal/settings"
)

// Dispatcher is the long-lived background loop that decides when a
// delivery cycle fires and runs it. Cycles never overlap: the loop is a
// single goroutine and the tick sleep is the only intentional wait.
type Dispatcher struct {
	people    PersonStore
	answers   AnswerStore
	questions QuestionStore
	selector  Selector
	settings  SettingsSource
	transport Transport
	table     *CorrelationTable
	metrics   *metrics.Collector
	events    EventSink
	logger    zerolog.Logger

	tick      time.Duration
	bunchSize int
	now       func() time.Time

	// prevCycle is only touched from the loop goroutine.
	prevCycle time.Time
}

// DispatcherOptions carries the optional dispatcher knobs.
type DispatcherOptions struct {
	// Tick is the polling interval, deliberately coarser than the
	// scheduling granularity it enforces. Defaults to one second.
	Tick time.Duration
	// BunchSize is how many items each session selects per cycle.
	BunchSize int
	Metrics   *metrics.Collector
	Events    EventSink
}

func NewDispatcher(people PersonStore, answers AnswerStore, questions QuestionStore,
	selector Selector, settingsSrc SettingsSource, transport Transport,
	table *CorrelationTable, opts DispatcherOptions, logger zerolog.Logger) *Dispatcher {

	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.BunchSize <= 0 {
		opts.BunchSize = 1
	}
	return &Dispatcher{
		people:    people,
		answers:   answers,
		questions: questions,
		selector:  selector,
		settings:  settingsSrc,
		transport: transport,
		table:     table,
		metrics:   opts.Metrics,
		events:    opts.Events,
		logger:    logger.With().Str("component", "dispatcher").Logger(),
		tick:      opts.Tick,
		bunchSize: opts.BunchSize,
		now:       time.Now,
	}
}

// Run blocks until the context is canceled. Cancellation is cooperative:
// an in-flight cycle finishes before the loop returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	d.logger.Info().Dur("tick", d.tick).Msg("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("dispatcher stopped")
			return ctx.Err()
		case <-ticker.C:
			d.tickOnce(ctx)
		}
	}
}

// tickOnce evaluates the gating predicate against live settings and fires
// at most one cycle. prevCycle is advanced before the cycle body runs, so
// a slow or failing body cannot re-fire on the next tick.
func (d *Dispatcher) tickOnce(ctx context.Context) {
	cfg, err := d.settings.Current()
	if err != nil {
		d.logger.Warn().Err(err).Msg("settings unavailable, skipping tick")
		return
	}

	now := d.now()
	if !shouldFire(now, d.prevCycle, cfg) {
		return
	}
	d.prevCycle = now
	d.cycle(ctx, now)
}

// shouldFire is the gating predicate: time-of-day window, weekday set and
// minimum period between cycles, all inclusive of their bounds.
func shouldFire(now, prev time.Time, cfg settings.Settings) bool {
	if !cfg.InWindow(now) {
		return false
	}
	if !cfg.AllowsWeekday(now.Weekday()) {
		return false
	}
	if prev.IsZero() {
		return true
	}
	return !now.Before(prev.Add(cfg.TimePeriod))
}

type pendingDelivery struct {
	session *Session
	record  *model.AnswerRecord
}

// cycle builds one session per person, collects one deliverable from each
// and hands the whole batch to the transport in a single call. Failures
// while processing one person are logged and never stop the others.
func (d *Dispatcher) cycle(ctx context.Context, now time.Time) {
	started := d.now()
	defer func() {
		d.metrics.RecordCycle(d.now().Sub(started))
	}()

	people, err := d.people.People(ctx)
	if err != nil {
		d.logger.Error().Err(err).Msg("list people failed, cycle skipped")
		return
	}

	var batch []pendingDelivery
	var msgs []Message
	for _, person := range people {
		session := NewSession(person, d.selector, d.answers, d.questions, d.bunchSize)
		if err := session.GenerateQuestions(ctx); err != nil {
			d.logger.Warn().Err(err).Stringer("person_id", person.ID).Msg("question selection failed")
			continue
		}
		rec, err := session.NextQuestion(ctx)
		if err != nil {
			d.logger.Warn().Err(err).Stringer("person_id", person.ID).Msg("next question failed")
			continue
		}
		if rec == nil {
			continue
		}
		question, err := d.questions.Question(ctx, rec.QuestionID)
		if err != nil {
			d.logger.Warn().Err(err).Stringer("question_id", rec.QuestionID).Msg("question lookup failed")
			continue
		}
		batch = append(batch, pendingDelivery{session: session, record: rec})
		msgs = append(msgs, BuildMessage(person.ID, question))
	}
	if len(batch) == 0 {
		return
	}

	tokens, err := d.transport.Send(ctx, msgs)
	if err != nil {
		d.logger.Error().Err(err).Int("batch", len(batch)).Msg("transport send failed")
		for range batch {
			d.metrics.RecordDeliveryFailure()
		}
		return
	}

	delivered := 0
	for i, token := range tokens {
		if i >= len(batch) {
			break
		}
		if token == "" {
			d.metrics.RecordDeliveryFailure()
			continue
		}
		item := batch[i]
		d.table.Put(token, item.session, item.record)
		if err := item.session.MarkTransferred(ctx, item.record); err != nil {
			d.logger.Warn().Err(err).Stringer("record_id", item.record.ID).Msg("mark transferred failed")
		}
		d.metrics.RecordDelivered()
		if d.events != nil {
			d.events.QuestionDelivered(item.record.PersonID, item.record.QuestionID, token)
		}
		delivered++
	}

	if d.events != nil {
		d.events.CycleCompleted(delivered, now)
	}
	d.logger.Info().Int("delivered", delivered).Int("batch", len(batch)).Msg("cycle completed")
}
