package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ContentLocalizer/internal/domain"
	"ContentLocalizer/internal/localization"
	"ContentLocalizer/internal/ports"
)

const defaultConcurrency = 3

var (
	// ErrInvalidRequest is returned for empty content ids or languages.
	ErrInvalidRequest = errors.New("invalid localization request")
	// ErrTimedOut is returned when polling ran out of attempts without a terminal state.
	ErrTimedOut = errors.New("localization timed out")
)

// LocalizerDeps wires the workflow pieces and driven adapters into the use case.
type LocalizerDeps struct {
	Prober      *localization.Prober
	Trigger     *localization.Trigger
	Poller      *localization.Poller
	Status      ports.DubbingStatusSource
	Catalog     ports.ArtifactCatalog
	Canceller   ports.JobCanceller
	Discoverer  ports.VariantDiscoverer
	Ledger      ports.JobLedger
	Concurrency int
	Logger      *slog.Logger
}

// Localizer answers "is content C available in language L" and makes it so when it is not.
type Localizer struct {
	prober      *localization.Prober
	trigger     *localization.Trigger
	poller      *localization.Poller
	status      ports.DubbingStatusSource
	catalog     ports.ArtifactCatalog
	canceller   ports.JobCanceller
	discoverer  ports.VariantDiscoverer
	ledger      ports.JobLedger
	concurrency int
	logger      *slog.Logger
}

// NewLocalizer constructs the orchestration component.
func NewLocalizer(deps LocalizerDeps) *Localizer {
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Localizer{
		prober:      deps.Prober,
		trigger:     deps.Trigger,
		poller:      deps.Poller,
		status:      deps.Status,
		catalog:     deps.Catalog,
		canceller:   deps.Canceller,
		discoverer:  deps.Discoverer,
		ledger:      deps.Ledger,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Request names the content and the languages involved.
type Request struct {
	ContentID      string
	SourceLanguage string
	TargetLanguage string
}

func (r Request) normalized() (Request, error) {
	r.ContentID = strings.TrimSpace(r.ContentID)
	r.SourceLanguage = domain.NormalizeLanguage(r.SourceLanguage)
	r.TargetLanguage = domain.NormalizeLanguage(r.TargetLanguage)
	if r.ContentID == "" {
		return r, fmt.Errorf("%w: content id is required", ErrInvalidRequest)
	}
	if r.TargetLanguage == "" {
		return r, fmt.Errorf("%w: target language is required", ErrInvalidRequest)
	}
	return r, nil
}

// Result is the outcome of a successful Ensure call.
type Result struct {
	ContentID string
	Language  string
	URL       string
	Origin    domain.Origin
	Cached    bool
	Attempts  int
}

// Ensure probes for an existing artifact, otherwise triggers a job and polls it to completion.
func (l *Localizer) Ensure(ctx context.Context, req Request) (Result, error) {
	req, err := req.normalized()
	if err != nil {
		return Result{}, err
	}

	result := Result{ContentID: req.ContentID, Language: req.TargetLanguage}
	log := l.logger.With("content_id", req.ContentID, "language", req.TargetLanguage)

	if req.SourceLanguage != "" && req.SourceLanguage == req.TargetLanguage {
		result.Origin = domain.OriginOriginal
		return result, nil
	}

	if url := l.prober.Probe(ctx, req.ContentID, req.TargetLanguage); url != "" {
		log.Debug("artifact already available", "url", url)
		result.URL, result.Origin, result.Cached = url, domain.OriginGenerated, true
		return result, nil
	}

	job, err := l.trigger.Start(ctx, req.ContentID, req.SourceLanguage, req.TargetLanguage)
	if err != nil {
		log.Error("trigger failed", "error", err)
		return Result{}, err
	}
	log.Info("localization job started", "status", job.Status)

	var poll localization.Result
	switch {
	case job.Succeeded():
		poll = localization.Result{URL: job.ResultURL}
	case job.Status == domain.StatusCompleted:
		err = fmt.Errorf("start dubbing %s/%s: %w", req.ContentID, req.TargetLanguage, localization.ErrMissingResult)
	case job.Status == domain.StatusFailed:
		err = fmt.Errorf("start dubbing %s/%s: %w", req.ContentID, req.TargetLanguage, localization.ErrJobFailed)
		if job.Error != "" {
			err = fmt.Errorf("%w: %s", err, job.Error)
		}
	default:
		if l.poller == nil {
			return Result{}, fmt.Errorf("poller is not configured")
		}
		poll, err = l.poller.PollDubbing(ctx, req.ContentID, req.TargetLanguage)
	}

	if err != nil {
		if errors.Is(err, localization.ErrJobFailed) {
			l.record(ctx, req, domain.StatusFailed, "", err.Error(), poll.Attempts)
		}
		log.Error("localization failed", "error", err)
		return Result{}, err
	}

	if poll.Exhausted() {
		l.record(ctx, req, domain.StatusProcessing, "", ErrTimedOut.Error(), poll.Attempts)
		return Result{}, fmt.Errorf("%s/%s after %d attempts: %w", req.ContentID, req.TargetLanguage, poll.Attempts, ErrTimedOut)
	}

	l.saveMapping(ctx, req, poll.URL)
	l.record(ctx, req, domain.StatusCompleted, poll.URL, "", poll.Attempts)
	log.Info("localization completed", "url", poll.URL, "attempts", poll.Attempts)

	result.URL, result.Origin, result.Attempts = poll.URL, domain.OriginGenerated, poll.Attempts
	return result, nil
}

// Outcome is the per-language result of EnsureMany.
type Outcome struct {
	Language string
	Result   Result
	Err      error
}

// EnsureMany localizes contentID into every target independently.
// A failing language never cancels the others.
func (l *Localizer) EnsureMany(ctx context.Context, contentID, sourceLanguage string, targets []string) []Outcome {
	targets = uniqueLanguages(targets)
	outcomes := make([]Outcome, len(targets))

	var g errgroup.Group
	g.SetLimit(l.concurrency)
	for i, target := range targets {
		g.Go(func() error {
			res, err := l.Ensure(ctx, Request{ContentID: contentID, SourceLanguage: sourceLanguage, TargetLanguage: target})
			outcomes[i] = Outcome{Language: target, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// Status returns the current remote snapshot of the dubbing job.
// A job the backend does not know yet is reported as not_started.
func (l *Localizer) Status(ctx context.Context, contentID, language string) (domain.LocalizationJob, error) {
	req, err := Request{ContentID: contentID, TargetLanguage: language}.normalized()
	if err != nil {
		return domain.LocalizationJob{}, err
	}
	if l.status == nil {
		return domain.LocalizationJob{}, fmt.Errorf("status source is not configured")
	}

	job, err := l.status.DubbingStatus(ctx, req.ContentID, req.TargetLanguage)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.LocalizationJob{
			ContentID:      req.ContentID,
			TargetLanguage: req.TargetLanguage,
			Status:         domain.StatusNotStarted,
			ObservedAt:     time.Now().UTC(),
		}, nil
	}
	if err != nil {
		return domain.LocalizationJob{}, fmt.Errorf("dubbing status %s/%s: %w", req.ContentID, req.TargetLanguage, err)
	}
	return job, nil
}

// Cancel aborts an in-flight content job.
func (l *Localizer) Cancel(ctx context.Context, contentID, language string) error {
	req, err := Request{ContentID: contentID, TargetLanguage: language}.normalized()
	if err != nil {
		return err
	}
	if l.canceller == nil {
		return fmt.Errorf("canceller is not configured")
	}

	if err := l.canceller.CancelContent(ctx, req.ContentID, req.TargetLanguage); err != nil {
		return fmt.Errorf("cancel %s/%s: %w", req.ContentID, req.TargetLanguage, err)
	}
	l.logger.Info("localization job cancelled", "content_id", req.ContentID, "language", req.TargetLanguage)
	return nil
}

// Availability builds a one-off view of which languages contentID can be served in.
// Original variants come from the content page; requested languages are probed.
func (l *Localizer) Availability(ctx context.Context, contentID string, languages []string) ([]domain.LanguageAvailability, error) {
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return nil, fmt.Errorf("%w: content id is required", ErrInvalidRequest)
	}

	var view []domain.LanguageAvailability
	originals := map[string]struct{}{}

	if l.discoverer != nil {
		found, err := l.discoverer.OriginalLanguages(ctx, contentID)
		if err != nil {
			l.logger.Warn("variant discovery failed", "content_id", contentID, "error", err)
		}
		for _, lang := range found {
			originals[lang] = struct{}{}
			view = append(view, domain.LanguageAvailability{Language: lang, Available: true, Origin: domain.OriginOriginal})
		}
	}

	var probe []string
	for _, lang := range uniqueLanguages(languages) {
		if _, ok := originals[lang]; !ok {
			probe = append(probe, lang)
		}
	}

	probed := make([]domain.LanguageAvailability, len(probe))
	var g errgroup.Group
	g.SetLimit(l.concurrency)
	for i, lang := range probe {
		g.Go(func() error {
			url := l.prober.Probe(ctx, contentID, lang)
			probed[i] = domain.LanguageAvailability{Language: lang, Available: url != "", Origin: domain.OriginGenerated, URL: url}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append(view, probed...), nil
}

// History lists the locally recorded outcomes for contentID.
func (l *Localizer) History(ctx context.Context, contentID string) ([]domain.LedgerEntry, error) {
	if l.ledger == nil {
		return nil, nil
	}
	entries, err := l.ledger.History(ctx, strings.TrimSpace(contentID))
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return entries, nil
}

func (l *Localizer) saveMapping(ctx context.Context, req Request, url string) {
	if l.catalog == nil {
		return
	}
	mapping := domain.DubbedMapping{VideoID: req.ContentID, Language: req.TargetLanguage, FileURL: url}
	if err := l.catalog.SaveDubbed(ctx, mapping); err != nil {
		l.logger.Warn("persist dubbed mapping failed", "content_id", req.ContentID, "language", req.TargetLanguage, "error", err)
	}
}

func (l *Localizer) record(ctx context.Context, req Request, status domain.JobStatus, url, message string, attempts int) {
	if l.ledger == nil {
		return
	}
	entry := domain.LedgerEntry{
		ContentID:      req.ContentID,
		Language:       req.TargetLanguage,
		SourceLanguage: req.SourceLanguage,
		Status:         status,
		ResultURL:      url,
		Error:          message,
		Attempts:       attempts,
		UpdatedAt:      time.Now().UTC(),
	}
	if err := l.ledger.Record(ctx, entry); err != nil {
		l.logger.Warn("ledger record failed", "content_id", req.ContentID, "language", req.TargetLanguage, "error", err)
	}
}

func uniqueLanguages(languages []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(languages))
	for _, lang := range languages {
		code := domain.NormalizeLanguage(lang)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}
