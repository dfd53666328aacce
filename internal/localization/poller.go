// Package localization holds the client-side workflow for acquiring localized content:
// a cache probe, a job trigger and a status poller with a fixed attempt budget.
package localization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ContentLocalizer/internal/domain"
	"ContentLocalizer/internal/metrics"
	"ContentLocalizer/internal/ports"
)

const (
	DefaultMaxAttempts = 120
	DefaultInterval    = 3 * time.Second

	kindDubbing = "dubbing"
	kindContent = "content"
)

var (
	// ErrJobFailed is returned when the backend reports a failed job.
	ErrJobFailed = errors.New("localization job failed")
	// ErrMissingResult marks a completed job without a result URL; it is treated as a failure.
	ErrMissingResult = fmt.Errorf("%w: completed without result url", ErrJobFailed)
)

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// PollerConfig tunes the attempt budget and the fixed delay between attempts.
type PollerConfig struct {
	MaxAttempts int
	Interval    time.Duration
}

// Poller queries job status until a terminal state or until the budget is spent.
type Poller struct {
	dubbing ports.DubbingStatusSource
	content ports.ContentStatusSource
	cfg     PollerConfig
	wait    WaitFunc
	logger  *slog.Logger
}

// NewPoller wires status sources; either may be nil when the matching Poll call is unused.
func NewPoller(dubbing ports.DubbingStatusSource, content ports.ContentStatusSource, cfg PollerConfig, log *slog.Logger) *Poller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Poller{
		dubbing: dubbing,
		content: content,
		cfg:     cfg,
		wait:    sleepContext,
		logger:  log,
	}
}

// WithWait replaces the inter-attempt wait, mainly for tests.
func (p *Poller) WithWait(wait WaitFunc) *Poller {
	if wait != nil {
		p.wait = wait
	}
	return p
}

// Config returns the effective polling configuration.
func (p *Poller) Config() PollerConfig {
	return p.cfg
}

// observation is one status reading reduced to what the loop needs.
type observation struct {
	status    domain.JobStatus
	resultURL string
	progress  int
	message   string
}

// Result describes a finished polling sequence.
// An empty URL with a nil error means the budget ran out.
type Result struct {
	URL      string
	Attempts int
}

// Exhausted reports whether polling stopped without a terminal state.
func (r Result) Exhausted() bool {
	return r.URL == ""
}

// PollDubbing waits for the dubbing job of contentID/language.
func (p *Poller) PollDubbing(ctx context.Context, contentID, language string) (Result, error) {
	if p.dubbing == nil {
		return Result{}, fmt.Errorf("dubbing status source is not configured")
	}

	fetch := func(ctx context.Context) (observation, error) {
		job, err := p.dubbing.DubbingStatus(ctx, contentID, language)
		if err != nil {
			return observation{}, err
		}
		return observation{status: job.Status, resultURL: job.ResultURL, progress: job.Progress, message: job.Error}, nil
	}

	return p.run(ctx, kindDubbing, contentID, language, fetch, nil)
}

// PollContent waits for the content job of contentID/language.
// onProgress, if set, receives the progress of every non-terminal observation.
func (p *Poller) PollContent(ctx context.Context, contentID, language string, onProgress func(int)) (Result, error) {
	if p.content == nil {
		return Result{}, fmt.Errorf("content status source is not configured")
	}

	fetch := func(ctx context.Context) (observation, error) {
		st, err := p.content.ContentStatus(ctx, contentID, language)
		if err != nil {
			return observation{}, err
		}
		return observation{status: st.Status, resultURL: st.ContentURL, progress: st.Progress, message: st.Error}, nil
	}

	return p.run(ctx, kindContent, contentID, language, fetch, onProgress)
}

func (p *Poller) run(
	ctx context.Context,
	kind, contentID, language string,
	fetch func(context.Context) (observation, error),
	onProgress func(int),
) (Result, error) {
	log := p.loggerFor(kind, contentID, language)

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			metrics.RecordPollOutcome(kind, metrics.OutcomeCancelled)
			return Result{Attempts: attempt - 1}, fmt.Errorf("poll %s %s/%s: %w", kind, contentID, language, err)
		}

		metrics.RecordPollAttempt(kind)
		obs, err := fetch(ctx)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			log.Debug("job not registered yet", "attempt", attempt)
		case err != nil:
			if ctx.Err() != nil {
				metrics.RecordPollOutcome(kind, metrics.OutcomeCancelled)
			} else {
				metrics.RecordPollOutcome(kind, metrics.OutcomeError)
				log.Error("status query failed", "attempt", attempt, "error", err)
			}
			return Result{Attempts: attempt}, fmt.Errorf("poll %s %s/%s: %w", kind, contentID, language, err)
		case obs.status == domain.StatusCompleted && obs.resultURL != "":
			metrics.RecordPollOutcome(kind, metrics.OutcomeCompleted)
			log.Debug("job completed", "attempt", attempt)
			return Result{URL: obs.resultURL, Attempts: attempt}, nil
		case obs.status == domain.StatusCompleted:
			metrics.RecordPollOutcome(kind, metrics.OutcomeFailed)
			return Result{Attempts: attempt}, fmt.Errorf("%s %s/%s: %w", kind, contentID, language, ErrMissingResult)
		case obs.status == domain.StatusFailed:
			metrics.RecordPollOutcome(kind, metrics.OutcomeFailed)
			return Result{Attempts: attempt}, failure(kind, contentID, language, obs.message)
		default:
			log.Debug("job in progress", "attempt", attempt, "status", obs.status, "progress", obs.progress)
			if onProgress != nil {
				onProgress(obs.progress)
			}
		}

		if attempt == p.cfg.MaxAttempts {
			break
		}
		if err := p.wait(ctx, p.cfg.Interval); err != nil {
			metrics.RecordPollOutcome(kind, metrics.OutcomeCancelled)
			return Result{Attempts: attempt}, fmt.Errorf("poll %s %s/%s: %w", kind, contentID, language, err)
		}
	}

	metrics.RecordPollOutcome(kind, metrics.OutcomeExhausted)
	log.Warn("attempt budget exhausted", "attempts", p.cfg.MaxAttempts)
	return Result{Attempts: p.cfg.MaxAttempts}, nil
}

func failure(kind, contentID, language, message string) error {
	if message == "" {
		return fmt.Errorf("%s %s/%s: %w", kind, contentID, language, ErrJobFailed)
	}
	return fmt.Errorf("%s %s/%s: %w: %s", kind, contentID, language, ErrJobFailed, message)
}

func (p *Poller) loggerFor(kind, contentID, language string) *slog.Logger {
	log := p.logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return log.With("kind", kind, "content_id", contentID, "language", language)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
