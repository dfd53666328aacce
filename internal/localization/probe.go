package localization

import (
	"context"
	"errors"
	"log/slog"

	"ContentLocalizer/internal/domain"
	"ContentLocalizer/internal/metrics"
	"ContentLocalizer/internal/ports"
)

// Prober checks whether a localized artifact already exists.
type Prober struct {
	catalog ports.ArtifactCatalog
	logger  *slog.Logger
}

// NewProber wires the artifact catalog.
func NewProber(catalog ports.ArtifactCatalog, log *slog.Logger) *Prober {
	return &Prober{catalog: catalog, logger: log}
}

// Probe returns the existing artifact URL or "" when there is none.
// Lookup failures count as a miss and are never returned.
func (p *Prober) Probe(ctx context.Context, contentID, language string) string {
	if p == nil || p.catalog == nil {
		return ""
	}

	url, err := p.catalog.FindDubbed(ctx, contentID, language)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		metrics.RecordProbe("miss")
		return ""
	case err != nil:
		metrics.RecordProbe("error")
		if p.logger != nil {
			p.logger.Warn("cache probe failed, treating as miss",
				"content_id", contentID, "language", language, "error", err)
		}
		return ""
	case url == "":
		metrics.RecordProbe("miss")
		return ""
	default:
		metrics.RecordProbe("hit")
		return url
	}
}
