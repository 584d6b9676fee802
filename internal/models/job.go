package models

import (
	"time"

	"gorm.io/gorm"
)

// JobStatus is the state of a DownloadJob.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusError   JobStatus = "error"
	JobStatusSkipped JobStatus = "skipped"

	// JobStatusWatch marks a job whose content vanished upstream
	// (404/410 or an explicit "not available"). The availability prober
	// re-queues watch jobs when the URL starts answering again; they are
	// never expired automatically.
	JobStatusWatch JobStatus = "watch"
)

// Terminal reports whether the job may no longer change state.
// Error and watch jobs stay mutable so they can be re-queued.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess || s == JobStatusSkipped
}

// ErrorKind classifies what went wrong with a job, following the
// failure taxonomy the whole pipeline uses.
type ErrorKind string

const (
	ErrorKindTransport      ErrorKind = "transport"       // timeout, DNS, reset
	ErrorKindUpstreamGone   ErrorKind = "upstream-gone"   // 404/410, stream removed
	ErrorKindExtractor      ErrorKind = "extractor"       // tool missing or broken output
	ErrorKindStorage        ErrorKind = "storage"         // database or disk failure
	ErrorKindPostProcessing ErrorKind = "post-processing" // tagging or move failed
)

// JobError is a classified failure carried from the executor back onto
// the job row. Original is kept for wrapped-error inspection and is not
// persisted.
type JobError struct {
	Kind     ErrorKind
	Message  string
	Original error
}

func (e *JobError) Error() string {
	return e.Message
}

func (e *JobError) Unwrap() error {
	return e.Original
}

// NewJobError builds a classified job failure.
func NewJobError(kind ErrorKind, message string, original error) *JobError {
	return &JobError{Kind: kind, Message: message, Original: original}
}

// DownloadJob is a unit of work targeting one Asset of one Episode.
type DownloadJob struct {
	gorm.Model
	EpisodeID uint      `json:"episode_id" gorm:"not null;index:idx_jobs_episode_type"`
	AssetType AssetType `json:"asset_type" gorm:"not null;index:idx_jobs_episode_type"`
	Status    JobStatus `json:"status" gorm:"default:'pending';index"`

	// Reason documents non-error outcomes ("re-queued after probe",
	// "handed to link-grabber"); Error holds the failure text.
	Reason    string    `json:"reason,omitempty"`
	Error     string    `json:"error,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`

	WorkerID   string     `json:"worker_id,omitempty"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

// CanRetry reports whether the manual retry endpoint may move the job
// back to pending.
func (j *DownloadJob) CanRetry() bool {
	return j.Status == JobStatusError || j.Status == JobStatusWatch
}

// TableName specifies the table name for GORM.
func (DownloadJob) TableName() string {
	return "download_jobs"
}
