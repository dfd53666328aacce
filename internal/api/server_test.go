package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContentLocalizer/internal/domain"
	"ContentLocalizer/internal/localization"
	"ContentLocalizer/internal/session"
	"ContentLocalizer/internal/usecase"
)

type fakeService struct {
	ensureErr  error
	lastReq    usecase.Request
	lastToken  string
	cancelled  string
	history    []domain.LedgerEntry
	statusJob  domain.LocalizationJob
	statusErr  error
	langsAsked []string
}

func (f *fakeService) Ensure(ctx context.Context, req usecase.Request) (usecase.Result, error) {
	f.lastReq = req
	f.lastToken = session.TokenFromContext(ctx)
	if f.ensureErr != nil {
		return usecase.Result{}, f.ensureErr
	}
	return usecase.Result{ContentID: req.ContentID, Language: req.TargetLanguage, URL: "https://x/hi.mp4", Origin: domain.OriginGenerated, Attempts: 3}, nil
}

func (f *fakeService) Status(context.Context, string, string) (domain.LocalizationJob, error) {
	return f.statusJob, f.statusErr
}

func (f *fakeService) Cancel(_ context.Context, contentID, language string) error {
	f.cancelled = contentID + "/" + language
	return nil
}

func (f *fakeService) Availability(_ context.Context, _ string, languages []string) ([]domain.LanguageAvailability, error) {
	f.langsAsked = languages
	return []domain.LanguageAvailability{
		{Language: "en", Available: true, Origin: domain.OriginOriginal},
		{Language: "hi", Available: false, Origin: domain.OriginGenerated},
	}, nil
}

func (f *fakeService) History(context.Context, string) ([]domain.LedgerEntry, error) {
	return f.history, nil
}

func newTestServer(svc Service, opts Options) *httptest.Server {
	if opts.SourceLanguage == "" {
		opts.SourceLanguage = "en"
	}
	return httptest.NewServer(NewServer(svc, opts))
}

func do(t *testing.T, method, url string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&fakeService{}, Options{})
	defer srv.Close()

	resp := do(t, http.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestEnsureEndpoint(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(svc, Options{Session: session.Session{Token: "stored"}})
	defer srv.Close()

	resp := do(t, http.MethodPut, srv.URL+"/contents/v1/languages/hi", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body ensureResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "https://x/hi.mp4", body.URL)
	assert.Equal(t, "generated", body.Origin)
	assert.Equal(t, 3, body.Attempts)

	assert.Equal(t, usecase.Request{ContentID: "v1", SourceLanguage: "en", TargetLanguage: "hi"}, svc.lastReq)
	assert.Equal(t, "stored", svc.lastToken)

	do(t, http.MethodPut, srv.URL+"/contents/v1/languages/ta?source=hi", http.Header{"Authorization": {"Bearer override"}})
	assert.Equal(t, "hi", svc.lastReq.SourceLanguage)
	assert.Equal(t, "override", svc.lastToken)
}

func TestEnsureErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: content id is required", usecase.ErrInvalidRequest), http.StatusBadRequest},
		{fmt.Errorf("dubbing v1/hi: %w", localization.ErrJobFailed), http.StatusBadGateway},
		{localization.ErrMissingResult, http.StatusBadGateway},
		{fmt.Errorf("v1/hi after 120 attempts: %w", usecase.ErrTimedOut), http.StatusGatewayTimeout},
		{fmt.Errorf("find: %w", domain.ErrNotFound), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		srv := newTestServer(&fakeService{ensureErr: tc.err}, Options{})
		resp := do(t, http.MethodPut, srv.URL+"/contents/v1/languages/hi", nil)
		assert.Equal(t, tc.want, resp.StatusCode, tc.err.Error())
		srv.Close()
	}
}

func TestStatusEndpoint(t *testing.T) {
	svc := &fakeService{statusJob: domain.LocalizationJob{Status: domain.StatusNotStarted, ObservedAt: time.Now()}}
	srv := newTestServer(svc, Options{})
	defer srv.Close()

	resp := do(t, http.MethodGet, srv.URL+"/contents/v1/languages/HI/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "not_started", body.Status)
	assert.Equal(t, "v1", body.ContentID)
	assert.Equal(t, "hi", body.Language)
}

func TestCancelEndpoint(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(svc, Options{})
	defer srv.Close()

	resp := do(t, http.MethodDelete, srv.URL+"/contents/v1/languages/hi", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "v1/hi", svc.cancelled)
}

func TestAvailabilityEndpoint(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(svc, Options{})
	defer srv.Close()

	resp := do(t, http.MethodGet, srv.URL+"/contents/v1/languages?lang=hi&lang=fr", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"hi", "fr"}, svc.langsAsked)

	var body []availabilityResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body, 2)
	assert.Equal(t, "original", body[0].Origin)
}

func TestHistoryEndpoint(t *testing.T) {
	svc := &fakeService{history: []domain.LedgerEntry{{ContentID: "v1", Language: "hi", Status: domain.StatusCompleted, Attempts: 3}}}
	srv := newTestServer(svc, Options{})
	defer srv.Close()

	resp := do(t, http.MethodGet, srv.URL+"/contents/v1/jobs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body []historyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body, 1)
	assert.Equal(t, "completed", body[0].Status)
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(&fakeService{}, Options{RequestsPerMinute: 1})
	defer srv.Close()

	first := do(t, http.MethodGet, srv.URL+"/contents/v1/jobs", nil)
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second := do(t, http.MethodGet, srv.URL+"/contents/v1/jobs", nil)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&fakeService{}, Options{})
	defer srv.Close()

	resp := do(t, http.MethodGet, srv.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
}
