package ports

import (
	"context"

	"ContentLocalizer/internal/domain"
)

// DubbingStatusSource queries the remote status of a dubbing job.
type DubbingStatusSource interface {
	DubbingStatus(ctx context.Context, contentID, language string) (domain.LocalizationJob, error)
}

// ContentStatusSource queries the remote status of a content (transcript) localization job.
type ContentStatusSource interface {
	ContentStatus(ctx context.Context, contentID, language string) (domain.ContentJobStatus, error)
}

// JobStarter asks the backend to create a dubbing job.
type JobStarter interface {
	StartDubbing(ctx context.Context, contentID, sourceLanguage, targetLanguage string) (domain.LocalizationJob, error)
}

// ArtifactCatalog looks up and registers finished localized artifacts.
type ArtifactCatalog interface {
	FindDubbed(ctx context.Context, contentID, language string) (string, error)
	SaveDubbed(ctx context.Context, mapping domain.DubbedMapping) error
}

// JobCanceller aborts an in-flight content job.
type JobCanceller interface {
	CancelContent(ctx context.Context, contentID, language string) error
}

// VariantDiscoverer lists the language variants shipped with the original content.
type VariantDiscoverer interface {
	OriginalLanguages(ctx context.Context, contentID string) ([]string, error)
}

// JobLedger keeps a local, non-authoritative record of observed job outcomes.
type JobLedger interface {
	Record(ctx context.Context, entry domain.LedgerEntry) error
	History(ctx context.Context, contentID string) ([]domain.LedgerEntry, error)
}
