package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/domain"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/match"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/observability"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/safeparse"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/severity"
)

// Source fetches and parses alerts from one upstream feed.
type Source interface {
	Name() string
	Agency() domain.Agency
	Fetch(ctx context.Context) (safeparse.Batch[domain.Alert], error)
}

// Publisher delivers each new snapshot to a downstream sink.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, snap domain.Snapshot) error
}

// FuncSource adapts a function to Source.
type FuncSource struct {
	SourceName   string
	SourceAgency domain.Agency
	FetchFunc    func(ctx context.Context) (safeparse.Batch[domain.Alert], error)
}

func (f FuncSource) Name() string          { return f.SourceName }
func (f FuncSource) Agency() domain.Agency { return f.SourceAgency }
func (f FuncSource) Fetch(ctx context.Context) (safeparse.Batch[domain.Alert], error) {
	return f.FetchFunc(ctx)
}

// Options tunes the poll loop.
type Options struct {
	// Interval between poll cycles. Default 2m.
	Interval time.Duration
	// Timeout bounds a whole cycle, independent of per-attempt fetch timeouts.
	// Zero disables the cycle deadline.
	Timeout time.Duration
	// Concurrency bounds simultaneous source fetches. Default 4.
	Concurrency int
	Clock       clockwork.Clock
}

// Pipeline orchestrates the fetch-normalize-resolve-match cycle and holds the
// latest snapshot.
type Pipeline struct {
	sources     []Source
	transformer *Transformer
	matcher     *match.Matcher
	publishers  []Publisher
	logger      *slog.Logger
	metrics     *observability.Metrics
	opts        Options

	snapshot atomic.Pointer[domain.Snapshot]
	ready    atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(sources []Source, t *Transformer, m *match.Matcher, publishers []Publisher, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Minute
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		sources:     sources,
		transformer: t,
		matcher:     m,
		publishers:  publishers,
		logger:      logger,
		metrics:     metrics,
		opts:        opts,
	}
}

// CheckReadiness returns nil once a snapshot has been produced, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no poll cycle has completed yet")
	}
	return nil
}

// Snapshot returns the latest snapshot, or nil before the first successful cycle.
func (p *Pipeline) Snapshot() *domain.Snapshot {
	return p.snapshot.Load()
}

// Matcher returns the boundary matcher used for detail queries.
func (p *Pipeline) Matcher() *match.Matcher {
	return p.matcher
}

// Run polls immediately and then every Interval until the context is cancelled.
// Failed cycles are logged and leave the previous snapshot in place.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("poller started",
		"sources", len(p.sources),
		"boundaries", p.matcher.Len(),
		"interval", p.opts.Interval,
	)
	p.metrics.PollerRunning.Set(1)
	defer p.metrics.PollerRunning.Set(0)

	ticker := p.opts.Clock.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("poll cycle failed, keeping previous snapshot", "error", err)
		}
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}

type fetchResult struct {
	batch safeparse.Batch[domain.Alert]
	err   error
}

// Poll runs one cycle. It returns an error when every source failed or the
// cycle was cancelled or ran past its deadline; in either case the stored
// snapshot is left untouched.
func (p *Pipeline) Poll(ctx context.Context) (*domain.Snapshot, error) {
	start := p.opts.Clock.Now()
	cycleCtx := ctx
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	results := p.fetchAll(cycleCtx)

	var (
		alerts   []domain.Alert
		statuses = make([]domain.SourceStatus, 0, len(p.sources))
		errs     []error
	)
	for i, src := range p.sources {
		r := results[i]
		st := domain.SourceStatus{Name: src.Name(), Agency: src.Agency(), Failed: r.batch.Failed()}
		if r.batch.Failed() > 0 {
			p.metrics.ParseFailures.WithLabelValues(src.Name()).Add(float64(r.batch.Failed()))
		}
		if r.err != nil {
			st.Error = r.err.Error()
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), r.err))
			p.logger.Warn("source fetch failed", "source", src.Name(), "error", r.err)
		} else {
			st.OK = true
			st.Alerts = len(r.batch.Items)
			alerts = append(alerts, r.batch.Items...)
		}
		statuses = append(statuses, st)
	}

	if len(p.sources) > 0 && len(errs) == len(p.sources) {
		p.metrics.PollCycles.WithLabelValues("failed").Inc()
		return nil, errors.Join(errs...)
	}

	now := domain.Now()
	alerts = p.prepare(cycleCtx, alerts, now)
	if err := cycleCtx.Err(); err != nil {
		p.metrics.PollCycles.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("poll cycle: %w", err)
	}
	severity.SortDescending(alerts, func(a domain.Alert) severity.Level { return a.Level })
	matches := p.matcher.Match(alerts)

	snap := &domain.Snapshot{
		GeneratedAt: now,
		Alerts:      alerts,
		Matches:     matches,
		Sources:     statuses,
	}
	p.snapshot.Store(snap)
	p.ready.Store(true)

	outcome := "success"
	if len(errs) > 0 {
		outcome = "partial"
	}
	p.metrics.PollCycles.WithLabelValues(outcome).Inc()
	p.metrics.PollDuration.Observe(p.opts.Clock.Since(start).Seconds())
	p.metrics.AlertsActive.Set(float64(len(alerts)))
	p.metrics.BoundariesMatched.Set(float64(len(matches)))
	p.logger.Info("poll cycle complete",
		"alerts", len(alerts),
		"matched_boundaries", len(matches),
		"failed_sources", len(errs),
	)

	p.publish(ctx, *snap)
	return snap, nil
}

// fetchAll fetches every source with bounded concurrency and waits for all.
func (p *Pipeline) fetchAll(ctx context.Context) []fetchResult {
	results := make([]fetchResult, len(p.sources))
	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i, src := range p.sources {
		g.Go(func() error {
			batch, err := src.Fetch(ctx)
			results[i] = fetchResult{batch: batch, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// prepare drops duplicate and inactive alerts, then normalizes severity and
// resolves geometry for the rest. The first occurrence of an id wins.
func (p *Pipeline) prepare(ctx context.Context, alerts []domain.Alert, now time.Time) []domain.Alert {
	seen := make(map[string]bool, len(alerts))
	out := make([]domain.Alert, 0, len(alerts))
	for _, a := range alerts {
		if seen[a.ID] {
			p.logger.Debug("dropping duplicate alert", "alert_id", a.ID)
			continue
		}
		seen[a.ID] = true
		if !a.Active(now) {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		out = append(out, p.transformer.Transform(ctx, a))
	}
	return out
}

func (p *Pipeline) publish(ctx context.Context, snap domain.Snapshot) {
	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, snap); err != nil {
			p.metrics.PublishErrors.WithLabelValues(pub.Name()).Inc()
			p.logger.Error("publish snapshot failed", "sink", pub.Name(), "error", err)
		}
	}
}
