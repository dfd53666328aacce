package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContentLocalizer/internal/config"
	"ContentLocalizer/internal/session"
	"ContentLocalizer/internal/usecase"
)

func testConfig(t *testing.T, backendURL string) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		Backend:      config.BackendConfig{BaseURL: backendURL, Timeout: time.Second, RateLimit: 100, RateBurst: 100},
		Polling:      config.PollingConfig{MaxAttempts: 3, Interval: time.Millisecond},
		Ledger:       config.LedgerConfig{Path: filepath.Join(dir, "ledger.db")},
		Session:      config.SessionConfig{Driver: config.SessionFile, Path: filepath.Join(dir, "session.json")},
		Server:       config.ServerConfig{ListenAddr: "127.0.0.1:0", RequestsPerMinute: 100},
		Localization: config.LocalizationConfig{SourceLanguage: "en", Concurrency: 2},
		Logging:      config.LoggingConfig{Level: "error", Format: "text"},
	}
}

func TestApplicationEnsureEndToEnd(t *testing.T) {
	var polls atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer from-config", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/videos/v1/dubbed/hi":
			http.NotFound(w, r)
		case r.Method == http.MethodPost && r.URL.Path == "/processing/dubbing":
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "pending"})
		case r.Method == http.MethodGet && r.URL.Path == "/processing/dubbing/v1/hi":
			if polls.Add(1) < 2 {
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "processing"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "completed", "dubbed_video_url": "https://x/hi.mp4"})
		case r.Method == http.MethodPost && r.URL.Path == "/videos/dubbed":
			w.WriteHeader(http.StatusCreated)
		default:
			http.Error(w, fmt.Sprintf("unexpected %s %s", r.Method, r.URL.Path), http.StatusTeapot)
		}
	}))
	defer backend.Close()

	cfg := testConfig(t, backend.URL)
	cfg.Backend.APIToken = "from-config"

	ctx := context.Background()
	application, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer application.Close()

	stored, err := application.LoadSession(ctx)
	require.NoError(t, err)
	assert.False(t, stored.Authenticated())

	sess := application.ActiveSession(stored)
	assert.Equal(t, "from-config", sess.Token)

	res, err := application.Localizer().Ensure(session.WithSession(ctx, sess), usecase.Request{ContentID: "v1", SourceLanguage: "en", TargetLanguage: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "https://x/hi.mp4", res.URL)
	assert.Equal(t, 2, res.Attempts)

	history, err := application.Localizer().History(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0].Language)
}

func TestApplicationSessionRoundTrip(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	ctx := context.Background()

	application, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer application.Close()

	sess, err := application.LoadSession(ctx)
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())

	require.NoError(t, application.SaveSession(ctx, session.Session{}))
	require.NoError(t, application.SaveSession(ctx, session.Session{Token: "abc"}))

	sess, err = application.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", sess.Token)
}

func TestApplicationConfigTokenNotStored(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Backend.APIToken = "from-config"
	ctx := context.Background()

	application, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer application.Close()

	stored, err := application.LoadSession(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored.Token)
	assert.Equal(t, "from-config", application.ActiveSession(stored).Token)

	require.NoError(t, application.SaveSession(ctx, session.Session{Token: "logged-in"}))
	stored, err = application.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "logged-in", application.ActiveSession(stored).Token)
}

func TestApplicationRedisSession(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Session = config.SessionConfig{Driver: config.SessionRedis, RedisAddr: mr.Addr(), RedisKey: "test:session"}

	ctx := context.Background()
	application, err := New(ctx, cfg, nil)
	require.NoError(t, err)

	require.NoError(t, application.SaveSession(ctx, session.Session{Token: "shared"}))
	assert.True(t, mr.Exists("test:session"))
	require.NoError(t, application.Close())
}

func TestApplicationServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Server.ListenAddr = addr

	application, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer application.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Serve(ctx, session.Session{}) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
