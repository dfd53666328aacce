package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"ContentLocalizer/internal/session"
	"ContentLocalizer/internal/usecase"
)

func newFlagSet(env *environment, name string) *flag.FlagSet {
	fs := flag.NewFlagSet("contentlocalizer "+name, flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

func requireFlags(fs *flag.FlagSet, values map[string]string) error {
	for name, v := range values {
		if strings.TrimSpace(v) == "" {
			fs.Usage()
			return fmt.Errorf("%w: -%s is required", errUsage, name)
		}
	}
	return nil
}

func splitLanguages(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (e *environment) print(v any) error {
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type localizeOutput struct {
	Language string `json:"language"`
	URL      string `json:"url,omitempty"`
	Origin   string `json:"origin,omitempty"`
	Cached   bool   `json:"cached"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

func runLocalize(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet(env, "localize")
	contentID := fs.String("content", "", "content id")
	source := fs.String("source", env.cfg.Localization.SourceLanguage, "source language")
	langs := fs.String("lang", "", "comma separated target languages")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireFlags(fs, map[string]string{"content": *contentID, "lang": *langs}); err != nil {
		return err
	}

	targets := splitLanguages(*langs)
	localizer := env.app.Localizer()

	if len(targets) == 1 {
		res, err := localizer.Ensure(ctx, usecase.Request{ContentID: *contentID, SourceLanguage: *source, TargetLanguage: targets[0]})
		if err != nil {
			return err
		}
		return env.print(toOutput(res, nil))
	}

	outcomes := localizer.EnsureMany(ctx, *contentID, *source, targets)
	out := make([]localizeOutput, 0, len(outcomes))
	var failed, timedOut bool
	for _, o := range outcomes {
		out = append(out, toOutput(o.Result, o.Err))
		switch {
		case o.Err == nil:
		case errors.Is(o.Err, usecase.ErrTimedOut):
			timedOut = true
		default:
			failed = true
		}
	}
	if err := env.print(out); err != nil {
		return err
	}

	switch {
	case failed:
		return errors.New("one or more languages failed")
	case timedOut:
		return fmt.Errorf("one or more languages: %w", usecase.ErrTimedOut)
	}
	return nil
}

func toOutput(res usecase.Result, err error) localizeOutput {
	out := localizeOutput{
		Language: res.Language,
		URL:      res.URL,
		Origin:   string(res.Origin),
		Cached:   res.Cached,
		Attempts: res.Attempts,
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

func runStatus(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet(env, "status")
	contentID := fs.String("content", "", "content id")
	lang := fs.String("lang", "", "target language")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireFlags(fs, map[string]string{"content": *contentID, "lang": *lang}); err != nil {
		return err
	}

	job, err := env.app.Localizer().Status(ctx, *contentID, *lang)
	if err != nil {
		return err
	}
	return env.print(map[string]any{
		"content_id":  *contentID,
		"language":    strings.ToLower(*lang),
		"status":      job.Status,
		"result_url":  job.ResultURL,
		"progress":    job.Progress,
		"error":       job.Error,
		"observed_at": job.ObservedAt,
	})
}

func runTrack(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet(env, "track")
	contentID := fs.String("content", "", "content id")
	lang := fs.String("lang", "", "target language")
	quiet := fs.Bool("quiet", false, "do not print progress")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireFlags(fs, map[string]string{"content": *contentID, "lang": *lang}); err != nil {
		return err
	}

	onProgress := func(p int) {
		if !*quiet {
			_, _ = fmt.Fprintf(env.stderr, "progress %d%%\n", p)
		}
	}

	res, err := env.app.Poller().PollContent(ctx, *contentID, strings.ToLower(*lang), onProgress)
	if err != nil {
		return err
	}
	if res.Exhausted() {
		return fmt.Errorf("%s/%s after %d attempts: %w", *contentID, *lang, res.Attempts, usecase.ErrTimedOut)
	}
	return env.print(map[string]any{"content_id": *contentID, "language": strings.ToLower(*lang), "url": res.URL, "attempts": res.Attempts})
}

func runCancel(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet(env, "cancel")
	contentID := fs.String("content", "", "content id")
	lang := fs.String("lang", "", "target language")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireFlags(fs, map[string]string{"content": *contentID, "lang": *lang}); err != nil {
		return err
	}

	return env.app.Localizer().Cancel(ctx, *contentID, *lang)
}

func runLanguages(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet(env, "languages")
	contentID := fs.String("content", "", "content id")
	langs := fs.String("lang", "", "comma separated languages to probe")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireFlags(fs, map[string]string{"content": *contentID}); err != nil {
		return err
	}

	view, err := env.app.Localizer().Availability(ctx, *contentID, splitLanguages(*langs))
	if err != nil {
		return err
	}

	out := make([]map[string]any, 0, len(view))
	for _, v := range view {
		out = append(out, map[string]any{"language": v.Language, "available": v.Available, "origin": v.Origin, "url": v.URL})
	}
	return env.print(out)
}

func runHistory(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet(env, "history")
	contentID := fs.String("content", "", "content id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireFlags(fs, map[string]string{"content": *contentID}); err != nil {
		return err
	}

	entries, err := env.app.Localizer().History(ctx, *contentID)
	if err != nil {
		return err
	}

	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"language":   e.Language,
			"status":     e.Status,
			"result_url": e.ResultURL,
			"error":      e.Error,
			"attempts":   e.Attempts,
			"updated_at": e.UpdatedAt,
		})
	}
	return env.print(out)
}

func runLogin(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet(env, "login")
	token := fs.String("token", "", "API token")
	profilePath := fs.String("profile", "", "optional JSON profile file")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireFlags(fs, map[string]string{"token": *token}); err != nil {
		return err
	}

	sess := session.Session{Token: strings.TrimSpace(*token), SavedAt: time.Now().UTC()}
	if *profilePath != "" {
		raw, err := os.ReadFile(*profilePath)
		if err != nil {
			return fmt.Errorf("read profile: %w", err)
		}
		if !json.Valid(raw) {
			return fmt.Errorf("%w: profile %s is not valid JSON", errUsage, *profilePath)
		}
		sess.Profile = json.RawMessage(raw)
	}

	if err := env.app.SaveSession(context.WithoutCancel(ctx), sess); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	env.session = sess
	_, _ = fmt.Fprintln(env.stdout, "session stored")
	return nil
}

func runServe(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet(env, "serve")
	if err := parse(fs, args); err != nil {
		return err
	}
	return env.app.Serve(ctx, env.session)
}
