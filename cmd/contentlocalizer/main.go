package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"ContentLocalizer/internal/app"
	"ContentLocalizer/internal/config"
	"ContentLocalizer/internal/logging"
	"ContentLocalizer/internal/session"
	"ContentLocalizer/internal/usecase"
)

const (
	exitOK       = 0
	exitError    = 1
	exitUsage    = 2
	exitTimedOut = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// command runs against a wired application and a session-carrying context.
type command func(ctx context.Context, env *environment, args []string) error

type environment struct {
	app     *app.Application
	cfg     config.Config
	session session.Session
	stdout  io.Writer
	stderr  io.Writer
}

var commands = map[string]command{
	"localize":  runLocalize,
	"status":    runStatus,
	"track":     runTrack,
	"cancel":    runCancel,
	"languages": runLanguages,
	"history":   runHistory,
	"login":     runLogin,
	"serve":     runServe,
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stdout)
		if len(args) == 0 {
			return exitUsage
		}
		return exitOK
	}

	cmd, ok := commands[args[0]]
	if !ok {
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
		printUsage(stderr)
		return exitUsage
	}

	cfg := config.Load()
	logger := logging.NewWriter(stderr, cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return exitError
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	stored, err := application.LoadSession(ctx)
	if err != nil {
		logger.Warn("session not loaded", "error", err)
	}
	active := application.ActiveSession(stored)

	env := &environment{app: application, cfg: cfg, session: active, stdout: stdout, stderr: stderr}
	runErr := cmd(session.WithSession(ctx, active), env, args[1:])

	if runErr != nil && !errors.Is(runErr, errUsage) {
		logger.Error(args[0]+" failed", "error", runErr)
	}
	return exitCode(runErr)
}

var errUsage = errors.New("usage")

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage), errors.Is(err, usecase.ErrInvalidRequest):
		return exitUsage
	case errors.Is(err, usecase.ErrTimedOut):
		return exitTimedOut
	default:
		return exitError
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  contentlocalizer <command> [flags]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Commands:")
	_, _ = fmt.Fprintln(w, "  localize   Ensure content is available in one or more languages")
	_, _ = fmt.Fprintln(w, "  status     Show the current dubbing job status")
	_, _ = fmt.Fprintln(w, "  track      Follow a content localization job until it finishes")
	_, _ = fmt.Fprintln(w, "  cancel     Cancel an in-flight content job")
	_, _ = fmt.Fprintln(w, "  languages  List languages the content can be served in")
	_, _ = fmt.Fprintln(w, "  history    Show locally recorded job outcomes")
	_, _ = fmt.Fprintln(w, "  login      Store an API token for later runs")
	_, _ = fmt.Fprintln(w, "  serve      Run the HTTP API")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Configuration is read from $CONTENT_LOCALIZER_CONFIG and LOCALIZER_* variables.")
}
