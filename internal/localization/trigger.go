package localization

import (
	"context"
	"fmt"

	"ContentLocalizer/internal/domain"
	"ContentLocalizer/internal/ports"
)

// Trigger requests creation of localization jobs. It never retries.
type Trigger struct {
	starter ports.JobStarter
}

// NewTrigger wires the job starter.
func NewTrigger(starter ports.JobStarter) *Trigger {
	return &Trigger{starter: starter}
}

// Start asks the backend for a new job and returns its first snapshot.
func (t *Trigger) Start(ctx context.Context, contentID, sourceLanguage, targetLanguage string) (domain.LocalizationJob, error) {
	if t == nil || t.starter == nil {
		return domain.LocalizationJob{}, fmt.Errorf("job starter is not configured")
	}

	job, err := t.starter.StartDubbing(ctx, contentID, sourceLanguage, targetLanguage)
	if err != nil {
		return domain.LocalizationJob{}, fmt.Errorf("start dubbing %s/%s: %w", contentID, targetLanguage, err)
	}
	return job, nil
}
