package domain

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is reported by adapters when the requested remote resource does not exist (yet).
var ErrNotFound = errors.New("resource not found")

// JobStatus is the remote lifecycle state of a localization job as observed by the client.
type JobStatus string

const (
	StatusNotStarted JobStatus = "not_started"
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// ParseJobStatus normalizes a status string reported by the backend.
// Unknown values map to StatusPending so the poller keeps waiting on them.
func ParseJobStatus(raw string) JobStatus {
	switch JobStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusCompleted:
		return StatusCompleted
	case StatusFailed:
		return StatusFailed
	case StatusProcessing:
		return StatusProcessing
	case StatusNotStarted:
		return StatusNotStarted
	default:
		return StatusPending
	}
}

// Terminal reports whether no further transition can follow this status.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// LocalizationJob is one request to produce content in a target language.
type LocalizationJob struct {
	ContentID      string
	SourceLanguage string
	TargetLanguage string
	Status         JobStatus
	ResultURL      string
	Progress       int
	Error          string
	ObservedAt     time.Time
}

// Succeeded is true only for a completed job that carries a result URL.
func (j LocalizationJob) Succeeded() bool {
	return j.Status == StatusCompleted && strings.TrimSpace(j.ResultURL) != ""
}

// ContentJobStatus is the status of a text/transcript localization job.
type ContentJobStatus struct {
	Status     JobStatus
	Progress   int
	ContentURL string
	Error      string
}

// Origin tells where a language variant comes from.
type Origin string

const (
	OriginOriginal  Origin = "original"
	OriginGenerated Origin = "generated"
)

// LanguageAvailability describes whether a language variant exists for a piece of content.
// It is computed per request and never stored.
type LanguageAvailability struct {
	Language  string
	Available bool
	Origin    Origin
	URL       string
}

// DubbedMapping links a finished artifact to its content and language.
type DubbedMapping struct {
	VideoID  string `json:"video_id"`
	Language string `json:"language"`
	FileURL  string `json:"file_url"`
}

// LedgerEntry is a locally recorded observation of a job outcome.
type LedgerEntry struct {
	ContentID      string
	Language       string
	SourceLanguage string
	Status         JobStatus
	ResultURL      string
	Error          string
	Attempts       int
	UpdatedAt      time.Time
}

// NormalizeLanguage lower-cases and trims a language code.
func NormalizeLanguage(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
