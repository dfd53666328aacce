package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"ContentLocalizer/internal/domain"
	"ContentLocalizer/internal/metrics"
	"ContentLocalizer/internal/ports"
	"ContentLocalizer/internal/session"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultRateLimit = 5
	defaultRateBurst = 10
	defaultUserAgent = "ContentLocalizer/1.0"
	maxErrorBody     = 1024
)

// Options configures the backend client.
type Options struct {
	Timeout    time.Duration
	RateLimit  rate.Limit
	RateBurst  int
	UserAgent  string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the remote localization backend.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	logger    *slog.Logger
}

var (
	_ ports.DubbingStatusSource = (*Client)(nil)
	_ ports.ContentStatusSource = (*Client)(nil)
	_ ports.JobStarter          = (*Client)(nil)
	_ ports.ArtifactCatalog     = (*Client)(nil)
	_ ports.JobCanceller        = (*Client)(nil)
)

// NewClient creates a reusable client; zero options fall back to defaults.
func NewClient(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = defaultRateBurst
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultUserAgent
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          16,
				MaxIdleConnsPerHost:   4,
				IdleConnTimeout:       30 * time.Second,
				TLSHandshakeTimeout:   3 * time.Second,
				ResponseHeaderTimeout: opts.Timeout,
			},
		}
	}

	return &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		userAgent: opts.UserAgent,
		http:      httpClient,
		limiter:   rate.NewLimiter(opts.RateLimit, opts.RateBurst),
		logger:    opts.Logger,
	}
}

type dubbingStatusResponse struct {
	Status         string `json:"status"`
	DubbedVideoURL string `json:"dubbed_video_url"`
	Progress       int    `json:"progress"`
	Error          string `json:"error"`
}

func (r dubbingStatusResponse) job(contentID, source, target string) domain.LocalizationJob {
	return domain.LocalizationJob{
		ContentID:      contentID,
		SourceLanguage: source,
		TargetLanguage: target,
		Status:         domain.ParseJobStatus(r.Status),
		ResultURL:      strings.TrimSpace(r.DubbedVideoURL),
		Progress:       r.Progress,
		Error:          r.Error,
		ObservedAt:     time.Now().UTC(),
	}
}

// DubbingStatus reads the status of the dubbing job for contentID/language.
// The backend answers 404 until the job is registered.
func (c *Client) DubbingStatus(ctx context.Context, contentID, language string) (domain.LocalizationJob, error) {
	var resp dubbingStatusResponse
	path := "/processing/dubbing/" + url.PathEscape(contentID) + "/" + url.PathEscape(language)
	if err := c.do(ctx, "dubbing_status", http.MethodGet, path, nil, &resp); err != nil {
		return domain.LocalizationJob{}, err
	}
	return resp.job(contentID, "", language), nil
}

// StartDubbing requests a new dubbing job and returns the initial snapshot.
func (c *Client) StartDubbing(ctx context.Context, contentID, sourceLanguage, targetLanguage string) (domain.LocalizationJob, error) {
	payload := map[string]string{
		"video_id":        contentID,
		"source_language": sourceLanguage,
		"target_language": targetLanguage,
	}

	var resp dubbingStatusResponse
	if err := c.do(ctx, "start_dubbing", http.MethodPost, "/processing/dubbing", payload, &resp); err != nil {
		return domain.LocalizationJob{}, err
	}

	job := resp.job(contentID, sourceLanguage, targetLanguage)
	if resp.Status == "" {
		job.Status = domain.StatusPending
	}
	return job, nil
}

// ContentStatus reads the status of a content localization job.
func (c *Client) ContentStatus(ctx context.Context, contentID, language string) (domain.ContentJobStatus, error) {
	var resp struct {
		Status     string `json:"status"`
		Progress   int    `json:"progress"`
		ContentURL string `json:"content_url"`
		Error      string `json:"error"`
	}

	path := "/processing/content/" + url.PathEscape(contentID) + "/" + url.PathEscape(language) + "/status"
	if err := c.do(ctx, "content_status", http.MethodGet, path, nil, &resp); err != nil {
		return domain.ContentJobStatus{}, err
	}

	return domain.ContentJobStatus{
		Status:     domain.ParseJobStatus(resp.Status),
		Progress:   resp.Progress,
		ContentURL: strings.TrimSpace(resp.ContentURL),
		Error:      resp.Error,
	}, nil
}

// CancelContent aborts an in-flight content job.
func (c *Client) CancelContent(ctx context.Context, contentID, language string) error {
	path := "/processing/content/" + url.PathEscape(contentID) + "/" + url.PathEscape(language)
	return c.do(ctx, "cancel_content", http.MethodDelete, path, nil, nil)
}

// FindDubbed returns the URL of an existing dubbed artifact.
// A missing artifact is reported as ErrNotFound.
func (c *Client) FindDubbed(ctx context.Context, contentID, language string) (string, error) {
	var resp struct {
		FileURL        string `json:"file_url"`
		DubbedVideoURL string `json:"dubbed_video_url"`
		URL            string `json:"url"`
	}

	path := "/videos/" + url.PathEscape(contentID) + "/dubbed/" + url.PathEscape(language)
	if err := c.do(ctx, "find_dubbed", http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}

	for _, candidate := range []string{resp.FileURL, resp.DubbedVideoURL, resp.URL} {
		if u := strings.TrimSpace(candidate); u != "" {
			return u, nil
		}
	}
	return "", &APIError{Sentinel: ErrNotFound, Op: "find_dubbed", Body: "empty artifact url"}
}

// SaveDubbed registers a completed artifact.
func (c *Client) SaveDubbed(ctx context.Context, mapping domain.DubbedMapping) error {
	return c.do(ctx, "save_dubbed", http.MethodPost, "/videos/dubbed", mapping, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, payload any, v any) (err error) {
	defer func() {
		metrics.RecordBackendRequest(op, outcomeLabel(err))
	}()

	if c.baseURL == "" {
		return &APIError{Sentinel: ErrUnavailable, Op: op, Body: "backend url is not configured"}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return &APIError{Sentinel: ErrUnavailable, Op: op, Err: err}
	}

	var body io.Reader
	if payload != nil {
		raw, mErr := json.Marshal(payload)
		if mErr != nil {
			return fmt.Errorf("marshal %s payload: %w", op, mErr)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.New().String())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := session.TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Sentinel: ErrUnavailable, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{
			Sentinel: sentinelForStatus(resp.StatusCode),
			Op:       op,
			Status:   resp.StatusCode,
			Body:     strings.TrimSpace(string(snippet)),
		}
		c.debug("backend request failed", "op", op, "status", resp.StatusCode)
		return apiErr
	}

	if v == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &APIError{Sentinel: ErrBadResponse, Op: op, Status: resp.StatusCode, Err: err}
	}

	return nil
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
