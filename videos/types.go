// Package videos drives asynchronous video generation jobs: submission,
// status polling, content download, listing, deletion, and remixing.
package videos

import "time"

// Status is the remote lifecycle state of a video job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the job will not change state again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is a snapshot of a remote video job. The client never mutates a Job
// locally; a fresh snapshot comes from re-fetching the job.
type Job struct {
	ID                 string    `json:"id"`
	Object             string    `json:"object"`
	Model              string    `json:"model"`
	Status             Status    `json:"status"`
	Progress           float64   `json:"progress"`
	CreatedAt          int64     `json:"created_at"`
	CompletedAt        int64     `json:"completed_at"`
	ExpiresAt          int64     `json:"expires_at"`
	Size               string    `json:"size"`
	Seconds            string    `json:"seconds"`
	Quality            string    `json:"quality"`
	RemixedFromVideoID string    `json:"remixed_from_video_id"`
	Error              *JobError `json:"error"`
}

// JobError is the failure report attached to a failed job.
type JobError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// ProgressPercent normalizes the server-reported progress to a 0-100
// scale. Some responses report a 0-1 fraction instead of a percentage.
func (j *Job) ProgressPercent() float64 {
	if j.Progress >= 0 && j.Progress <= 1 {
		return j.Progress * 100
	}
	return j.Progress
}

// Created returns the job creation time, or the zero time when unknown.
func (j *Job) Created() time.Time {
	if j.CreatedAt <= 0 {
		return time.Time{}
	}
	return time.Unix(j.CreatedAt, 0)
}

// JobList is one page of jobs.
type JobList struct {
	Object     string `json:"object"`
	Data       []Job  `json:"data"`
	HasMore    bool   `json:"has_more"`
	Next       string `json:"next"`
	NextCursor string `json:"next_cursor"`
}

// Cursor returns the pagination cursor for the next page, empty when the
// listing is exhausted. The server has used both field names over time.
func (l *JobList) Cursor() string {
	if l.Next != "" {
		return l.Next
	}
	return l.NextCursor
}

// Variant selects which rendition of a completed job to download.
type Variant string

const (
	// VariantVideo is the primary asset (mp4).
	VariantVideo Variant = "video"

	// VariantThumbnail is the preview image.
	VariantThumbnail Variant = "thumbnail"

	// VariantSpritesheet is the summary-frames image.
	VariantSpritesheet Variant = "spritesheet"
)

// Valid reports whether the variant is one of the supported selectors.
func (v Variant) Valid() bool {
	switch v {
	case VariantVideo, VariantThumbnail, VariantSpritesheet:
		return true
	}
	return false
}
