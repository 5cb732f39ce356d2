package model

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an indexing job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Done reports whether the job reached a final state.
func (s JobStatus) Done() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// IndexReport is the outcome of indexing one paper.
type IndexReport struct {
	PaperID           string `json:"paper_id"`
	InsertedChunks    int    `json:"inserted_chunks"`
	SkippedDuplicates int    `json:"skipped_duplicates"`
	FailedChunks      int    `json:"failed_chunks"`
	RepairedChunks    int    `json:"repaired_chunks"`   // stored chunks that got a missing index entry
	ReembeddedChunks  int    `json:"reembedded_chunks"` // stored chunks embedded with the current model
}

// IndexJob tracks one asynchronous indexing request.
type IndexJob struct {
	ID          uuid.UUID    `json:"id"`
	PaperID     string       `json:"paper_id"`
	ContentHash string       `json:"content_hash"`
	Status      JobStatus    `json:"status"`
	Report      *IndexReport `json:"report,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty"`
}
