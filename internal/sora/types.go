// Package sora provides an HTTP client for the OpenAI video generation API
// (the /v1/videos family of endpoints used by the Sora models).
package sora

// Status represents the status of a remote video job.
type Status string

// Video job statuses as reported by the remote API.
const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusIncomplete Status = "incomplete"
	StatusUnknown    Status = "unknown"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusIncomplete:
		return true
	default:
		return false
	}
}

// IsFailure returns true for terminal states that produced no content.
func (s Status) IsFailure() bool {
	return s.IsTerminal() && s != StatusCompleted
}

// Variant selects one of the binary outputs of a completed video.
type Variant string

// Content variants served by GET /videos/{id}/content.
const (
	VariantVideo       Variant = "video"
	VariantThumbnail   Variant = "thumbnail"
	VariantSpritesheet Variant = "spritesheet"
)

// IsValid returns true if the variant is known to the API.
func (v Variant) IsValid() bool {
	switch v {
	case VariantVideo, VariantThumbnail, VariantSpritesheet:
		return true
	default:
		return false
	}
}

// DefaultModel is used when a create request does not name a model.
const DefaultModel = "sora-2"

// VideoError is the error object attached to a failed video job.
type VideoError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
}

// Video is the remote job object returned by every /videos endpoint.
type Video struct {
	ID                 string      `json:"id"`
	Object             string      `json:"object,omitempty"`
	Model              string      `json:"model,omitempty"`
	Status             Status      `json:"status"`
	Progress           int         `json:"progress"`
	Prompt             string      `json:"prompt,omitempty"`
	Seconds            string      `json:"seconds,omitempty"`
	Size               string      `json:"size,omitempty"`
	Quality            string      `json:"quality,omitempty"`
	CreatedAt          int64       `json:"created_at,omitempty"`
	CompletedAt        int64       `json:"completed_at,omitempty"`
	ExpiresAt          int64       `json:"expires_at,omitempty"`
	RemixedFromVideoID string      `json:"remixed_from_video_id,omitempty"`
	Error              *VideoError `json:"error,omitempty"`
}

// ErrorMessage returns the remote failure message, if any.
func (v *Video) ErrorMessage() string {
	if v == nil || v.Error == nil {
		return ""
	}
	return v.Error.Message
}

// CreateParams contains the parameters for creating a video.
type CreateParams struct {
	Prompt string
	// Model defaults to DefaultModel.
	Model string
	// InputReference is an optional local path to a reference image.
	// When set, the request is sent as multipart/form-data.
	InputReference string
	// Seconds is the clip duration, e.g. "4" or "8".
	Seconds string
	// Size is the output resolution, e.g. "1280x720".
	Size string
}

// ListParams contains the optional pagination parameters for listing videos.
type ListParams struct {
	After string
	Limit int
	Order string // "asc" or "desc"
}

// VideoList is a page of videos.
type VideoList struct {
	Object  string  `json:"object,omitempty"`
	Data    []Video `json:"data"`
	HasMore bool    `json:"has_more"`
	FirstID string  `json:"first_id,omitempty"`
	LastID  string  `json:"last_id,omitempty"`
}

// DeletionResult is returned by DELETE /videos/{id}.
type DeletionResult struct {
	ID      string `json:"id"`
	Object  string `json:"object,omitempty"`
	Deleted bool   `json:"deleted"`
}

// createRequest is the JSON body for POST /videos without a reference image.
type createRequest struct {
	Prompt  string `json:"prompt"`
	Model   string `json:"model"`
	Seconds string `json:"seconds,omitempty"`
	Size    string `json:"size,omitempty"`
}

// remixRequest is the JSON body for POST /videos/{id}/remix.
type remixRequest struct {
	Prompt string `json:"prompt"`
}
