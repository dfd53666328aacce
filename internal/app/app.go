package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"ContentLocalizer/internal/api"
	"ContentLocalizer/internal/config"
	"ContentLocalizer/internal/infrastructure/backend"
	"ContentLocalizer/internal/infrastructure/parser"
	"ContentLocalizer/internal/infrastructure/storage"
	"ContentLocalizer/internal/localization"
	"ContentLocalizer/internal/logging"
	"ContentLocalizer/internal/ports"
	"ContentLocalizer/internal/session"
	"ContentLocalizer/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	localizer *usecase.Localizer
	poller    *localization.Poller
	sessions  session.Store
	closers   []func() error
}

// New builds the localizer and every adapter it needs.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	store, err := a.openSessionStore(ctx)
	if err != nil {
		return nil, err
	}
	a.sessions = store

	client := backend.NewClient(cfg.Backend.BaseURL, backend.Options{
		Timeout:   cfg.Backend.Timeout,
		RateLimit: rate.Limit(cfg.Backend.RateLimit),
		RateBurst: cfg.Backend.RateBurst,
		UserAgent: cfg.Backend.UserAgent,
		Logger:    baseLogger.With("component", "backend"),
	})

	var ledger ports.JobLedger
	if cfg.Ledger.Path != "" {
		db, err := storage.OpenSQLite(cfg.Ledger.Path)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, db.Close)

		sqliteLedger, err := storage.NewSQLiteLedger(ctx, db)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		ledger = sqliteLedger
	}

	var discoverer ports.VariantDiscoverer
	if cfg.Localization.ContentPageURL != "" {
		discoverer = parser.NewVariantScanner(nil, cfg.Localization.ContentPageURL, baseLogger.With("component", "variants"))
	}

	a.poller = localization.NewPoller(client, client, localization.PollerConfig{
		MaxAttempts: cfg.Polling.MaxAttempts,
		Interval:    cfg.Polling.Interval,
	}, baseLogger.With("component", "poller"))

	a.localizer = usecase.NewLocalizer(usecase.LocalizerDeps{
		Prober:      localization.NewProber(client, baseLogger.With("component", "probe")),
		Trigger:     localization.NewTrigger(client),
		Poller:      a.poller,
		Status:      client,
		Catalog:     client,
		Canceller:   client,
		Discoverer:  discoverer,
		Ledger:      ledger,
		Concurrency: cfg.Localization.Concurrency,
		Logger:      baseLogger.With("component", "localizer"),
	})

	return a, nil
}

func (a *Application) openSessionStore(ctx context.Context) (session.Store, error) {
	if a.cfg.Session.Driver == config.SessionRedis {
		store, err := session.NewRedisStore(ctx, session.RedisConfig{
			Addr:     a.cfg.Session.RedisAddr,
			Password: a.cfg.Session.RedisPassword,
			DB:       a.cfg.Session.RedisDB,
			Key:      a.cfg.Session.RedisKey,
		})
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	}
	return session.NewFileStore(a.cfg.Session.Path), nil
}

// Localizer exposes the orchestration use case.
func (a *Application) Localizer() *usecase.Localizer {
	return a.localizer
}

// Poller exposes the configured poller for content status tracking.
func (a *Application) Poller() *localization.Poller {
	return a.poller
}

// Sessions returns the configured session store.
func (a *Application) Sessions() session.Store {
	return a.sessions
}

// LoadSession reads the stored session. Nothing stored yields an anonymous session.
func (a *Application) LoadSession(ctx context.Context) (session.Session, error) {
	sess, err := a.sessions.Load(ctx)
	if err != nil && !errors.Is(err, session.ErrNoSession) {
		return session.Session{}, err
	}
	return sess, nil
}

// ActiveSession returns the session used for backend calls: the stored one, or the
// configured API token when nothing is stored. The result is never persisted.
func (a *Application) ActiveSession(stored session.Session) session.Session {
	if !stored.Authenticated() && a.cfg.Backend.APIToken != "" {
		return session.Session{Token: a.cfg.Backend.APIToken}
	}
	return stored
}

// SaveSession persists an authenticated session; anonymous sessions are not written.
func (a *Application) SaveSession(ctx context.Context, sess session.Session) error {
	if !sess.Authenticated() {
		return nil
	}
	return a.sessions.Save(ctx, sess)
}

// Serve runs the HTTP API until ctx is cancelled.
func (a *Application) Serve(ctx context.Context, sess session.Session) error {
	handler := api.NewServer(a.localizer, api.Options{
		SourceLanguage:    a.cfg.Localization.SourceLanguage,
		RequestsPerMinute: a.cfg.Server.RequestsPerMinute,
		Session:           sess,
		Logger:            a.logger.With("component", "api"),
	})

	srv := &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", srv.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases the ledger database and the session store connection.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
