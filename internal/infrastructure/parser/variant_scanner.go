package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ContentLocalizer/internal/domain"
	"ContentLocalizer/internal/ports"
)

const contentIDPlaceholder = "{id}"

// variantSelectors match elements that declare an original language variant.
var variantSelectors = []struct {
	selector string
	attr     string
}{
	{"video source[srclang]", "srclang"},
	{"audio source[srclang]", "srclang"},
	{"track[srclang]", "srclang"},
	{`link[rel="alternate"][hreflang]`, "hreflang"},
}

// VariantScanner reads a content page and extracts the languages it ships with.
type VariantScanner struct {
	client    *http.Client
	pageURL   string
	userAgent string
	logger    *slog.Logger
}

var _ ports.VariantDiscoverer = (*VariantScanner)(nil)

// NewVariantScanner binds a page URL template containing {id}.
func NewVariantScanner(client *http.Client, pageURL string, log *slog.Logger) *VariantScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &VariantScanner{
		client:    client,
		pageURL:   pageURL,
		userAgent: "ContentLocalizer/1.0",
		logger:    log,
	}
}

// OriginalLanguages returns the language codes found on the content page in document order.
func (v *VariantScanner) OriginalLanguages(ctx context.Context, contentID string) ([]string, error) {
	pageURL, err := buildContentURL(v.pageURL, contentID)
	if err != nil {
		return nil, err
	}

	doc, err := v.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("content %s: %w", contentID, err)
	}

	languages := extractLanguages(doc)
	v.debug("variants discovered", "content_id", contentID, "count", len(languages))
	return languages, nil
}

func (v *VariantScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", v.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("content page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func extractLanguages(doc *goquery.Document) []string {
	seen := map[string]struct{}{}
	var languages []string

	for _, sel := range variantSelectors {
		doc.Find(sel.selector).Each(func(_ int, s *goquery.Selection) {
			raw, _ := s.Attr(sel.attr)
			code := domain.NormalizeLanguage(raw)
			if code == "" || code == "x-default" {
				return
			}
			if _, ok := seen[code]; ok {
				return
			}
			seen[code] = struct{}{}
			languages = append(languages, code)
		})
	}

	return languages
}

func buildContentURL(template, contentID string) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", fmt.Errorf("content page url is not configured")
	}

	raw := strings.ReplaceAll(template, contentIDPlaceholder, url.PathEscape(contentID))
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid content page url %s: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("invalid content page url %s: unsupported scheme", raw)
	}
	return parsed.String(), nil
}

func (v *VariantScanner) debug(msg string, args ...interface{}) {
	if v.logger != nil {
		v.logger.Debug(msg, args...)
	}
}
