// Package server provides the HTTP surface of the video studio.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/sora-studio/internal/archive"
	"github.com/maauso/sora-studio/internal/job"
	"github.com/maauso/sora-studio/internal/sora"
)

// CreateVideoRequest is the request for POST /api/create. It is read from a
// JSON body or from multipart form fields.
type CreateVideoRequest struct {
	// Prompt is the text description of the video.
	Prompt string `json:"prompt" validate:"required,max=4000"`
	// Model overrides the default model.
	Model string `json:"model" validate:"omitempty,max=64"`
	// Seconds is the clip duration, e.g. "4".
	Seconds string `json:"seconds" validate:"omitempty,numeric"`
	// Size is the output resolution, e.g. "1280x720".
	Size string `json:"size" validate:"omitempty,max=16"`
}

// RemixVideoRequest is the request body for POST /api/remix.
type RemixVideoRequest struct {
	// VideoID is the remote id of the source video.
	VideoID string `json:"video_id" validate:"required"`
	// Prompt describes the change to apply.
	Prompt string `json:"prompt" validate:"required,max=4000"`
}

// ListVideosQuery holds the query parameters of GET /api/videos.
type ListVideosQuery struct {
	After string `validate:"omitempty,max=128"`
	Limit int    `validate:"min=1,max=100"`
	Order string `validate:"omitempty,oneof=asc desc"`
}

// SubmitResponse is returned when a background task is started.
type SubmitResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TaskResponse is the HTTP view of a task record.
type TaskResponse struct {
	JobID           string            `json:"job_id"`
	Kind            string            `json:"kind"`
	Status          string            `json:"status"`
	Progress        int               `json:"progress"`
	Message         string            `json:"message"`
	VideoID         string            `json:"video_id,omitempty"`
	SourceVideoID   string            `json:"source_video_id,omitempty"`
	VideoPath       string            `json:"video_path,omitempty"`
	ThumbnailPath   string            `json:"thumbnail_path,omitempty"`
	SpritesheetPath string            `json:"spritesheet_path,omitempty"`
	Result          *sora.Video       `json:"result,omitempty"`
	ErrorDetails    *job.ErrorDetails `json:"error_details,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	CompletedAt     time.Time         `json:"completed_at,omitzero"`
}

// NotFoundStatusResponse is returned by GET /api/status/{id} for unknown ids.
type NotFoundStatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// GalleryEntry is one archived video with browser-reachable paths.
type GalleryEntry struct {
	ID              string         `json:"id"`
	VideoPath       string         `json:"video_path"`
	ThumbnailPath   string         `json:"thumbnail_path,omitempty"`
	SpritesheetPath string         `json:"spritesheet_path,omitempty"`
	Metadata        map[string]any `json:"metadata"`
	CreatedAt       time.Time      `json:"created_at"`
	Legacy          bool           `json:"legacy,omitempty"`
}

// GalleryResponse is the response for GET /api/gallery.
type GalleryResponse struct {
	Success bool           `json:"success"`
	Videos  []GalleryEntry `json:"videos"`
}

// RemoteVideo is the summary of a remote video returned by GET /api/videos.
type RemoteVideo struct {
	ID          string      `json:"id"`
	Status      sora.Status `json:"status"`
	Prompt      string      `json:"prompt"`
	Model       string      `json:"model"`
	CreatedAt   int64       `json:"created_at"`
	CompletedAt int64       `json:"completed_at,omitempty"`
	Size        string      `json:"size"`
	Seconds     string      `json:"seconds"`
	Progress    int         `json:"progress"`
	Archived    bool        `json:"archived"`
}

// VideosResponse is the response for GET /api/videos.
type VideosResponse struct {
	Success bool          `json:"success"`
	Videos  []RemoteVideo `json:"videos"`
	HasMore bool          `json:"has_more"`
	LastID  string        `json:"last_id,omitempty"`
}

// DownloadResponse is the response for GET /api/download/{id}.
type DownloadResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	VideoPath     string `json:"video_path"`
	ThumbnailPath string `json:"thumbnail_path,omitempty"`
}

// DeleteRemoteResponse is the response for DELETE /api/delete/{id}.
type DeleteRemoteResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	APIDeleted   bool   `json:"api_deleted"`
	LocalDeleted bool   `json:"local_deleted"`
	APIError     string `json:"api_error,omitempty"`
}

// DeleteLocalResponse is the response for DELETE /api/delete-local/{id}.
type DeleteLocalResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	LocalDeleted bool   `json:"local_deleted"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}

// galleryEntry converts an archive entry to its HTTP view.
func galleryEntry(e archive.Entry) GalleryEntry {
	return GalleryEntry{
		ID:              e.ID,
		VideoPath:       archiveURL(e.VideoPath),
		ThumbnailPath:   archiveURL(e.ThumbnailPath),
		SpritesheetPath: archiveURL(e.SpritesheetPath),
		Metadata:        e.Metadata,
		CreatedAt:       e.CreatedAt,
		Legacy:          e.Legacy,
	}
}

// remoteVideo converts a remote video to its summary.
func remoteVideo(v sora.Video, archived bool) RemoteVideo {
	return RemoteVideo{
		ID:          v.ID,
		Status:      v.Status,
		Prompt:      v.Prompt,
		Model:       v.Model,
		CreatedAt:   v.CreatedAt,
		CompletedAt: v.CompletedAt,
		Size:        v.Size,
		Seconds:     v.Seconds,
		Progress:    v.Progress,
		Archived:    archived,
	}
}

// archiveURL maps a slash-separated path relative to the archive root to
// the URL it is served from.
func archiveURL(rel string) string {
	if rel == "" {
		return ""
	}
	return videosPrefix + rel
}
