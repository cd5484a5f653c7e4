// Package cycle runs the scrape loop: render the page, parse the headlines,
// reconcile them with the store, then sleep a while.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jdholdren/juicer/internal/juicer"
	"github.com/jdholdren/juicer/internal/metrics"
	"github.com/jdholdren/juicer/internal/parse"
	"github.com/jdholdren/juicer/logger"
)

type (
	Renderer interface {
		Render(ctx context.Context, url string) (string, error)
	}

	Reconciler interface {
		Reconcile(ctx context.Context, headlines []juicer.Headline) (juicer.Counts, error)
	}

	// ParseFunc turns feed markup into headlines.
	ParseFunc func(markup string, now time.Time) ([]juicer.Headline, error)
)

// Outcome is how a cycle ended.
type Outcome string

const (
	OutcomeStored         Outcome = "stored"
	OutcomeEmpty          Outcome = "empty"
	OutcomeRenderFailed   Outcome = "render_failed"
	OutcomeParseFailed    Outcome = "parse_failed"
	OutcomePersistSkipped Outcome = "persist_skipped"
)

type state string

const (
	stateIdle        state = "idle"
	stateRendering   state = "rendering"
	stateParsing     state = "parsing"
	stateReconciling state = "reconciling"
	stateSleeping    state = "sleeping"
)

// The outcome of a cycle that failed while in the given state.
var failedIn = map[state]Outcome{
	stateIdle:        OutcomeRenderFailed,
	stateRendering:   OutcomeRenderFailed,
	stateParsing:     OutcomeParseFailed,
	stateReconciling: OutcomePersistSkipped,
}

// Result describes a single cycle.
type Result struct {
	CycleID  string
	Outcome  Outcome
	Counts   juicer.Counts
	Err      error
	Duration time.Duration
}

type Config struct {
	URL string
	// How long to sleep between cycles.
	Interval juicer.Jitter
}

func DefaultConfig() Config {
	return Config{
		URL:      juicer.SourceURL,
		Interval: juicer.Jitter{Min: 151 * time.Second, Max: 299 * time.Second},
	}
}

// Scheduler runs cycles one after the other, never overlapping.
type Scheduler struct {
	cfg        Config
	renderer   Renderer
	parse      ParseFunc
	reconciler Reconciler
	metrics    *metrics.Metrics

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New creates a Scheduler. m can be nil.
func New(cfg Config, renderer Renderer, reconciler Reconciler, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		renderer:   renderer,
		parse:      parse.Headlines,
		reconciler: reconciler,
		metrics:    m,
		now:        time.Now,
		sleep:      juicer.Sleep,
	}
}

// Run loops over cycles until the context is cancelled, which isn't treated
// as an error.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "starting scheduler", "url", s.cfg.URL, "min_sleep", s.cfg.Interval.Min, "max_sleep", s.cfg.Interval.Max)

	for ctx.Err() == nil {
		s.RunOnce(ctx)

		d := s.cfg.Interval.Duration()
		slog.InfoContext(ctx, "cycle state", "state", stateSleeping, "duration", d)
		if err := s.sleep(ctx, d); err != nil {
			break
		}
	}

	slog.InfoContext(ctx, "scheduler stopped")
	return nil
}

// RunOnce runs a single cycle. Nothing that goes wrong inside it, panics
// included, escapes: it all ends up in the Result.
func (s *Scheduler) RunOnce(ctx context.Context) (res Result) {
	res.CycleID = uuid.NewString()
	ctx = logger.Ctx(ctx, slog.String("cycle_id", res.CycleID))

	start := s.now()
	current := stateIdle
	transition := func(to state) {
		slog.InfoContext(ctx, "cycle state", "from", current, "to", to)
		current = to
	}

	defer func() {
		if r := recover(); r != nil {
			res.Outcome = failedIn[current]
			res.Err = fmt.Errorf("panic while %s: %v", current, r)
			slog.ErrorContext(ctx, "recovered from panic in cycle", "state", current, "panic", r)
		}

		res.Duration = s.now().Sub(start)
		s.metrics.RecordCycle(string(res.Outcome), res.Duration)
		slog.InfoContext(ctx, "cycle finished",
			"outcome", res.Outcome,
			"inserted", res.Counts.Inserted,
			"updated", res.Counts.Updated,
			"duration", res.Duration,
		)
		transition(stateIdle)
	}()

	transition(stateRendering)
	renderStart := s.now()
	markup, err := s.renderer.Render(ctx, s.cfg.URL)
	s.metrics.RecordRender(s.now().Sub(renderStart))
	if err != nil {
		slog.ErrorContext(ctx, "error rendering page, skipping cycle", "error", err)
		res.Outcome, res.Err = OutcomeRenderFailed, err
		return res
	}

	transition(stateParsing)
	slog.DebugContext(ctx, "feed items", "ids", parse.IDs(markup))
	headlines, err := s.parse(markup, s.now().UTC())
	if err != nil {
		slog.WarnContext(ctx, "error parsing feed, nothing to store", "error", err)
		res.Outcome, res.Err = OutcomeParseFailed, err
		return res
	}
	if len(headlines) == 0 {
		slog.InfoContext(ctx, "no headlines found")
		res.Outcome = OutcomeEmpty
		return res
	}
	slog.InfoContext(ctx, "parsed headlines", "count", len(headlines), "ids", ids(headlines))

	transition(stateReconciling)
	counts, err := s.reconciler.Reconcile(ctx, headlines)
	res.Counts = counts
	s.metrics.RecordHeadlines(counts.Inserted, counts.Updated)
	if err != nil {
		slog.ErrorContext(ctx, "extraction succeeded, persistence skipped",
			"error", err,
			"unavailable", errors.Is(err, juicer.ErrStoreUnavailable),
			"parsed", len(headlines),
		)
		res.Outcome, res.Err = OutcomePersistSkipped, err
		return res
	}

	res.Outcome = OutcomeStored
	return res
}

func ids(headlines []juicer.Headline) []string {
	ret := make([]string, len(headlines))
	for i, h := range headlines {
		ret[i] = h.ID
	}

	return ret
}
