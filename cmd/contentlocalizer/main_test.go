package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContentLocalizer/internal/localization"
	"ContentLocalizer/internal/usecase"
)

func writeConfig(t *testing.T, backendURL string) string {
	t.Helper()
	dir := t.TempDir()
	writeConfigWithSession(t, dir, backendURL, filepath.Join(dir, "session.json"))
	return dir
}

func writeConfigWithSession(t *testing.T, dir, backendURL, sessionPath string) {
	t.Helper()
	for _, key := range []string{"LOCALIZER_BACKEND_URL", "LOCALIZER_API_TOKEN", "LOCALIZER_DB_PATH", "LOCALIZER_REDIS_ADDR", "LOCALIZER_LOG_LEVEL", "LOCALIZER_LISTEN_ADDR"} {
		t.Setenv(key, "")
	}

	raw := fmt.Sprintf(`
backend:
  baseUrl: %s
  rateLimit: 1000
  rateBurst: 1000
polling:
  maxAttempts: 3
  interval: 1ms
ledger:
  path: %s
session:
  driver: file
  path: %s
logging:
  level: error
`, backendURL, filepath.Join(dir, "ledger.db"), sessionPath)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))
	t.Setenv("CONTENT_LOCALIZER_CONFIG", path)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitUsage, exitCode(fmt.Errorf("%w: -content is required", errUsage)))
	assert.Equal(t, exitUsage, exitCode(usecase.ErrInvalidRequest))
	assert.Equal(t, exitTimedOut, exitCode(fmt.Errorf("v1/hi: %w", usecase.ErrTimedOut)))
	assert.Equal(t, exitError, exitCode(localization.ErrJobFailed))
	assert.Equal(t, exitError, exitCode(errors.New("boom")))
}

func TestRunUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer

	assert.Equal(t, exitUsage, run(context.Background(), nil, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "Commands:")

	assert.Equal(t, exitOK, run(context.Background(), []string{"help"}, &stdout, &stderr))
	assert.Equal(t, exitUsage, run(context.Background(), []string{"bogus"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Unknown command: bogus")
}

func TestRunMissingFlags(t *testing.T) {
	writeConfig(t, "http://127.0.0.1:1")
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"localize", "-content", "v1"}, &stdout, &stderr)
	assert.Equal(t, exitUsage, code)
}

func TestRunLoginPersistsSession(t *testing.T) {
	dir := writeConfig(t, "http://127.0.0.1:1")
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"login", "-token", "abc"}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	raw, err := os.ReadFile(filepath.Join(dir, "session.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"token":"abc"`)
}

func TestRunLocalize(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/videos/v1/dubbed/fr":
			_ = json.NewEncoder(w).Encode(map[string]string{"file_url": "https://x/fr.mp4"})
		case r.Method == http.MethodGet && r.URL.Path == "/videos/v1/dubbed/hi":
			http.NotFound(w, r)
		case r.Method == http.MethodPost && r.URL.Path == "/processing/dubbing":
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "pending"})
		case r.Method == http.MethodGet && r.URL.Path == "/processing/dubbing/v1/hi":
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "processing"})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer backend.Close()
	writeConfig(t, backend.URL)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"localize", "-content", "v1", "-lang", "fr"}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	var single localizeOutput
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &single))
	assert.Equal(t, "https://x/fr.mp4", single.URL)
	assert.True(t, single.Cached)

	stdout.Reset()
	code = run(context.Background(), []string{"localize", "-content", "v1", "-lang", "hi"}, &stdout, &stderr)
	assert.Equal(t, exitTimedOut, code)

	stdout.Reset()
	code = run(context.Background(), []string{"history", "-content", "v1"}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	var history []map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0]["language"])
	assert.Equal(t, float64(3), history[0]["attempts"])
}

func TestRunTrackContent(t *testing.T) {
	var calls atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/processing/content/v1/hi/status" {
			http.NotFound(w, r)
			return
		}
		if calls.Add(1) == 1 {
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "processing", "progress": 40})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "completed", "content_url": "https://x/hi.txt"})
	}))
	defer backend.Close()
	writeConfig(t, backend.URL)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"track", "-content", "v1", "-lang", "hi"}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.Contains(t, stderr.String(), "progress 40%")
	assert.Contains(t, stdout.String(), "https://x/hi.txt")
}

func TestRunLoginFailsWhenSessionCannotBeStored(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	writeConfigWithSession(t, dir, "http://127.0.0.1:1", filepath.Join(blocker, "session.json"))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"login", "-token", "abc"}, &stdout, &stderr)
	assert.Equal(t, exitError, code)
	assert.NotContains(t, stdout.String(), "session stored")
}

func TestRunUsesCurrentEnvTokenWithoutStoringIt(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "processing"})
	}))
	defer backend.Close()
	dir := writeConfig(t, backend.URL)

	var stdout, stderr bytes.Buffer
	t.Setenv("LOCALIZER_API_TOKEN", "env-old")
	require.Equal(t, exitOK, run(context.Background(), []string{"status", "-content", "v1", "-lang", "hi"}, &stdout, &stderr), stderr.String())

	t.Setenv("LOCALIZER_API_TOKEN", "env-new")
	require.Equal(t, exitOK, run(context.Background(), []string{"status", "-content", "v1", "-lang", "hi"}, &stdout, &stderr), stderr.String())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Bearer env-old", "Bearer env-new"}, seen)

	_, err := os.Stat(filepath.Join(dir, "session.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "config token must not be written to the session store")
}
