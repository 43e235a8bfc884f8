package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/sora-studio/internal/archive"
	"github.com/maauso/sora-studio/internal/job"
	"github.com/maauso/sora-studio/internal/sora"
)

const (
	// videosPrefix is the URL prefix archive files are served under.
	videosPrefix = "/videos/"
	// maxUploadBytes bounds a multipart create request.
	maxUploadBytes = 50 << 20
	// defaultListLimit is the page size of GET /api/videos.
	defaultListLimit = 100
)

// referenceExtensions are the accepted reference image types.
var referenceExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service   *job.Service
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service:   service,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateVideo handles POST /api/create. The body is either JSON or a
// multipart form with an optional input_reference image.
func (h *Handlers) CreateVideo(w http.ResponseWriter, r *http.Request) {
	var (
		req       CreateVideoRequest
		reference string
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			h.logger.Warn("failed to parse multipart form", slog.String("error", err.Error()))
			writeError(w, http.StatusBadRequest, "invalid multipart form", "INVALID_FORM")
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		req = CreateVideoRequest{
			Prompt:  r.FormValue("prompt"),
			Model:   r.FormValue("model"),
			Seconds: r.FormValue("seconds"),
			Size:    r.FormValue("size"),
		}
		if !h.validate(w, req) {
			return
		}

		path, ok := h.stageReference(w, r)
		if !ok {
			return
		}
		reference = path
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.logger.Warn("failed to decode request body",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
			return
		}
		if !h.validate(w, req) {
			return
		}
	}

	task, err := h.service.SubmitCreate(r.Context(), job.CreateInput{
		Prompt:          req.Prompt,
		Model:           req.Model,
		Seconds:         req.Seconds,
		Size:            req.Size,
		ReferencePath:   reference,
		StagedReference: reference != "",
	})
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitResponse{
		Success: true,
		JobID:   task.ID,
		Status:  string(task.Status),
		Message: "Video creation started",
	})
}

// stageReference saves the uploaded input_reference file to the staging
// area. A request without a file yields an empty path.
func (h *Handlers) stageReference(w http.ResponseWriter, r *http.Request) (string, bool) {
	file, header, err := r.FormFile("input_reference")
	if errors.Is(err, http.ErrMissingFile) || (err == nil && header.Filename == "") {
		if file != nil {
			_ = file.Close()
		}
		return "", true
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid input_reference upload", "INVALID_FORM")
		return "", false
	}
	defer func() { _ = file.Close() }()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !referenceExtensions[ext] {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("unsupported reference image type %q", ext), "UNSUPPORTED_REFERENCE")
		return "", false
	}

	path, err := h.service.Archive().SaveTemp(r.Context(), "upload_"+filepath.Base(header.Filename), file)
	if err != nil {
		h.logger.Error("failed to stage reference image", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to store reference image", "UPLOAD_FAILED")
		return "", false
	}
	return path, true
}

// RemixVideo handles POST /api/remix.
func (h *Handlers) RemixVideo(w http.ResponseWriter, r *http.Request) {
	var req RemixVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}
	if !h.validate(w, req) {
		return
	}

	task, err := h.service.SubmitRemix(r.Context(), job.RemixInput{
		VideoID: req.VideoID,
		Prompt:  req.Prompt,
	})
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitResponse{
		Success: true,
		JobID:   task.ID,
		Status:  string(task.Status),
		Message: "Video remix started",
	})
}

// GetStatus handles GET /api/status/{id}.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	task, err := h.service.GetTask(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeJSON(w, http.StatusNotFound, NotFoundStatusResponse{
				Status:  "not_found",
				Message: "Job not found",
			})
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, h.taskResponse(task))
}

// Gallery handles GET /api/gallery.
func (h *Handlers) Gallery(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListArchive(r.Context())
	if err != nil {
		h.logger.Error("failed to list archive", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list archive", "GALLERY_FAILED")
		return
	}

	resp := GalleryResponse{Success: true, Videos: make([]GalleryEntry, 0, len(entries))}
	for _, e := range entries {
		resp.Videos = append(resp.Videos, galleryEntry(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListVideos handles GET /api/videos.
func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := ListVideosQuery{
		After: q.Get("after"),
		Limit: defaultListLimit,
		Order: q.Get("order"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer", "VALIDATION_ERROR")
			return
		}
		query.Limit = n
	}
	if !h.validate(w, query) {
		return
	}

	list, err := h.service.ListRemote(r.Context(), sora.ListParams{
		After: query.After,
		Limit: query.Limit,
		Order: query.Order,
	})
	if err != nil {
		h.logger.Error("failed to list remote videos", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, err.Error(), "REMOTE_API_ERROR")
		return
	}

	store := h.service.Archive()
	resp := VideosResponse{
		Success: true,
		Videos:  make([]RemoteVideo, 0, len(list.Data)),
		HasMore: list.HasMore,
		LastID:  list.LastID,
	}
	for _, v := range list.Data {
		resp.Videos = append(resp.Videos, remoteVideo(v, store.Exists(v.ID)))
	}
	writeJSON(w, http.StatusOK, resp)
}

// DownloadVideo handles GET /api/download/{id}.
func (h *Handlers) DownloadVideo(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("id")

	result, err := h.service.Download(r.Context(), videoID)
	switch {
	case err == nil:
	case errors.Is(err, archive.ErrInvalidID):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_VIDEO_ID")
		return
	case errors.Is(err, job.ErrVideoNotReady):
		writeError(w, http.StatusBadRequest, err.Error(), "VIDEO_NOT_READY")
		return
	case errors.Is(err, job.ErrRemoteVideoNotFound):
		writeError(w, http.StatusNotFound, err.Error(), "VIDEO_NOT_FOUND")
		return
	default:
		h.logger.Error("failed to download video",
			slog.String("video_id", videoID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, err.Error(), "DOWNLOAD_FAILED")
		return
	}

	msg := "Video downloaded successfully"
	if result.AlreadyExisted {
		msg = "Video already exists locally"
	}
	writeJSON(w, http.StatusOK, DownloadResponse{
		Success:       true,
		Message:       msg,
		VideoPath:     h.fileURL(result.VideoPath),
		ThumbnailPath: h.fileURL(result.ThumbnailPath),
	})
}

// DeleteRemote handles DELETE /api/delete/{id}. Local files are kept.
func (h *Handlers) DeleteRemote(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("id")

	if _, err := h.service.DeleteRemote(r.Context(), videoID); err != nil {
		if errors.Is(err, job.ErrVideoNotDeletable) {
			writeError(w, http.StatusBadRequest, err.Error(), "VIDEO_NOT_DELETABLE")
			return
		}
		h.logger.Error("remote delete failed",
			slog.String("video_id", videoID),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusBadGateway, DeleteRemoteResponse{
			Message:  "API delete failed",
			APIError: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, DeleteRemoteResponse{
		Success:    true,
		Message:    "Video deleted from API (local files preserved)",
		APIDeleted: true,
	})
}

// DeleteLocal handles DELETE /api/delete-local/{id}. The remote video is kept.
func (h *Handlers) DeleteLocal(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("id")

	err := h.service.DeleteLocal(r.Context(), videoID)
	switch {
	case err == nil:
	case errors.Is(err, archive.ErrInvalidID):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_VIDEO_ID")
		return
	case errors.Is(err, archive.ErrNotFound):
		writeError(w, http.StatusNotFound,
			fmt.Sprintf("local files not found for video %s", videoID), "NOT_FOUND")
		return
	default:
		h.logger.Error("local delete failed",
			slog.String("video_id", videoID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, err.Error(), "DELETE_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, DeleteLocalResponse{
		Success:      true,
		Message:      fmt.Sprintf("Local files deleted for video %s", videoID),
		LocalDeleted: true,
	})
}

// ServeArchive handles GET /videos/{path...} by serving files from the
// archive root. Directories are not listed.
func (h *Handlers) ServeArchive(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("path")
	if !fs.ValidPath(name) {
		http.NotFound(w, r)
		return
	}

	root := os.DirFS(h.service.Archive().Root())
	info, err := fs.Stat(root, name)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeFileFS(w, r, root, name)
}

// taskResponse converts a task to its HTTP view.
func (h *Handlers) taskResponse(t *job.Task) TaskResponse {
	return TaskResponse{
		JobID:           t.ID,
		Kind:            string(t.Kind),
		Status:          string(t.Status),
		Progress:        t.Progress,
		Message:         t.Message,
		VideoID:         t.RemoteVideoID,
		SourceVideoID:   t.SourceVideoID,
		VideoPath:       h.fileURL(t.VideoPath),
		ThumbnailPath:   h.fileURL(t.ThumbnailPath),
		SpritesheetPath: h.fileURL(t.SpritesheetPath),
		Result:          t.Result,
		ErrorDetails:    t.ErrorDetails,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		CompletedAt:     t.CompletedAt,
	}
}

// fileURL maps a filesystem path inside the archive to its URL. Paths
// outside the archive are dropped.
func (h *Handlers) fileURL(p string) string {
	if p == "" {
		return ""
	}
	rel, err := filepath.Rel(h.service.Archive().Root(), p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return archiveURL(filepath.ToSlash(rel))
}

// validate runs struct validation and writes a 400 on failure.
func (h *Handlers) validate(w http.ResponseWriter, v any) bool {
	if err := h.validator.Struct(v); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

// writeSubmitError maps task submission errors to HTTP responses.
func (h *Handlers) writeSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sora.ErrPromptRequired), errors.Is(err, sora.ErrVideoIDRequired):
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
	case errors.Is(err, sora.ErrReferenceNotFound):
		writeError(w, http.StatusBadRequest, err.Error(), "REFERENCE_NOT_FOUND")
	default:
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
