package job

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/maauso/sora-studio/internal/archive"
	"github.com/maauso/sora-studio/internal/sora"
)

// Static errors for task orchestration and library operations.
var (
	// ErrPollTimeout is returned when a remote job is not terminal within the poll budget.
	ErrPollTimeout = errors.New("job: polling timed out")
	// ErrPollErrorBudget is returned after too many consecutive polling errors.
	ErrPollErrorBudget = errors.New("job: too many consecutive polling errors")
	// ErrRemoteJobFailed is returned when a remote job ends failed, cancelled or incomplete.
	ErrRemoteJobFailed = errors.New("job: remote job failed")
	// ErrTaskPanicked is recorded when a task goroutine panics.
	ErrTaskPanicked = errors.New("job: task panicked")
	// ErrVideoNotReady is returned when downloading a video that is not completed.
	ErrVideoNotReady = errors.New("job: video is not ready for download")
	// ErrRemoteVideoNotFound is returned when the remote video cannot be retrieved.
	ErrRemoteVideoNotFound = errors.New("job: video not found on server")
	// ErrVideoNotDeletable is returned when deleting a queued or in-progress video.
	ErrVideoNotDeletable = errors.New("job: video cannot be deleted while queued or in progress")
)

// Error types recorded in ErrorDetails.
const (
	ErrorTypeTimeout           = "Timeout"
	ErrorTypePollBudget        = "PollErrorBudgetExceeded"
	ErrorTypePanic             = "Panic"
	ErrorTypeReferenceNotFound = "ReferenceNotFound"
	ErrorTypeRemoteAPI         = "RemoteAPIError"
	ErrorTypeNetwork           = "NetworkError"
	ErrorTypeCancelled         = "Cancelled"
	ErrorTypeInternal          = "InternalError"
)

// Default orchestration settings.
const (
	DefaultPollInterval  = 3 * time.Second
	DefaultPollTimeout   = 600 * time.Second
	DefaultMaxPollErrors = 5
)

// CreateInput contains the parameters for a create task.
type CreateInput struct {
	Prompt  string
	Model   string
	Seconds string
	Size    string
	// ReferencePath is an optional local reference image.
	ReferencePath string
	// StagedReference marks ReferencePath as a staged temporary file that
	// is removed when the task ends.
	StagedReference bool
}

// RemixInput contains the parameters for a remix task.
type RemixInput struct {
	VideoID string
	Prompt  string
}

// DownloadResult describes a video fetched into the archive.
type DownloadResult struct {
	VideoID        string
	VideoPath      string
	ThumbnailPath  string
	AlreadyExisted bool
}

// Service runs generation tasks in the background and records their
// progress in a Repository. Each task is owned by one goroutine; Wait
// blocks until all of them have written their terminal state.
type Service struct {
	client  sora.Client
	archive archive.Archive
	repo    Repository
	logger  *slog.Logger

	pollInterval  time.Duration
	pollTimeout   time.Duration
	maxPollErrors int
	defaultModel  string

	wg sync.WaitGroup
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPollInterval sets the delay between status checks.
func WithPollInterval(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithPollTimeout sets the wall-clock budget for reaching a terminal status.
func WithPollTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.pollTimeout = d
		}
	}
}

// WithMaxPollErrors sets how many consecutive polling errors abort a task.
func WithMaxPollErrors(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxPollErrors = n
		}
	}
}

// WithDefaultModel sets the model used when a create request names none.
func WithDefaultModel(model string) ServiceOption {
	return func(s *Service) {
		if model != "" {
			s.defaultModel = model
		}
	}
}

// NewService creates a new Service.
func NewService(client sora.Client, store archive.Archive, repo Repository, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		client:        client,
		archive:       store,
		repo:          repo,
		logger:        logger,
		pollInterval:  DefaultPollInterval,
		pollTimeout:   DefaultPollTimeout,
		maxPollErrors: DefaultMaxPollErrors,
		defaultModel:  sora.DefaultModel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Archive returns the archive the service stores videos in.
func (s *Service) Archive() archive.Archive {
	return s.archive
}

// SubmitCreate validates input, registers a task and starts it in the
// background. It returns the task as registered; the caller polls GetTask.
// Validation failures return before any network call and register nothing.
func (s *Service) SubmitCreate(ctx context.Context, in CreateInput) (*Task, error) {
	var staged []string
	if in.StagedReference && in.ReferencePath != "" {
		staged = append(staged, in.ReferencePath)
	}

	if strings.TrimSpace(in.Prompt) == "" {
		s.cleanupStaged(ctx, "", staged)
		return nil, sora.ErrPromptRequired
	}
	if in.ReferencePath != "" {
		if _, err := os.Stat(in.ReferencePath); err != nil {
			s.cleanupStaged(ctx, "", staged)
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", sora.ErrReferenceNotFound, in.ReferencePath)
			}
			return nil, fmt.Errorf("stat reference image: %w", err)
		}
	}

	params := sora.CreateParams{
		Prompt:         in.Prompt,
		Model:          in.Model,
		InputReference: in.ReferencePath,
		Seconds:        in.Seconds,
		Size:           in.Size,
	}
	if params.Model == "" {
		params.Model = s.defaultModel
	}

	task := NewTask(KindCreate)
	task.Prompt = in.Prompt
	if err := s.repo.Save(ctx, task); err != nil {
		s.cleanupStaged(ctx, task.ID, staged)
		return nil, fmt.Errorf("register task: %w", err)
	}

	s.logger.Info("create task registered",
		slog.String("job_id", task.ID),
		slog.String("model", params.Model),
		slog.Bool("reference", params.InputReference != ""),
	)

	snapshot := task.Clone()
	s.start(ctx, task, staged, func(ctx context.Context, t *Task) error {
		return s.run(ctx, t, pipeline{
			submit: func(ctx context.Context) (*sora.Video, error) {
				return s.client.CreateVideo(ctx, params)
			},
			spritesheet: true,
			metadata: func(final *sora.Video, savedAt string) any {
				return createMetadata{
					SavedAt:      savedAt,
					CreationArgs: creationArgs(params),
					APIResponse:  final,
				}
			},
		})
	})

	return snapshot, nil
}

// SubmitRemix validates input, registers a remix task and starts it in the
// background.
func (s *Service) SubmitRemix(ctx context.Context, in RemixInput) (*Task, error) {
	if in.VideoID == "" {
		return nil, sora.ErrVideoIDRequired
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, sora.ErrPromptRequired
	}

	task := NewTask(KindRemix)
	task.Prompt = in.Prompt
	task.SourceVideoID = in.VideoID
	if err := s.repo.Save(ctx, task); err != nil {
		return nil, fmt.Errorf("register task: %w", err)
	}

	s.logger.Info("remix task registered",
		slog.String("job_id", task.ID),
		slog.String("source_video_id", in.VideoID),
	)

	snapshot := task.Clone()
	s.start(ctx, task, nil, func(ctx context.Context, t *Task) error {
		return s.run(ctx, t, pipeline{
			remix: true,
			submit: func(ctx context.Context) (*sora.Video, error) {
				return s.client.RemixVideo(ctx, in.VideoID, in.Prompt)
			},
			metadata: func(final *sora.Video, savedAt string) any {
				return remixMetadata{
					VideoID:         final.ID,
					OriginalVideoID: in.VideoID,
					Prompt:          in.Prompt,
					Model:           final.Model,
					Seconds:         final.Seconds,
					Size:            final.Size,
					CreatedAt:       final.CreatedAt,
					Status:          final.Status,
					Type:            "remix",
					SavedAt:         savedAt,
				}
			},
		})
	})

	return snapshot, nil
}

// GetTask returns the current record of a task.
// Returns ErrJobNotFound for unknown ids.
func (s *Service) GetTask(ctx context.Context, id string) (*Task, error) {
	return s.repo.FindByID(ctx, id)
}

// ListTasks returns all known tasks, newest first.
func (s *Service) ListTasks(ctx context.Context) ([]*Task, error) {
	return s.repo.List(ctx)
}

// Wait blocks until every started task has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// start runs fn on its own goroutine under the supervisor. The task
// outlives the request that submitted it.
func (s *Service) start(ctx context.Context, task *Task, staged []string, fn func(context.Context, *Task) error) {
	s.wg.Add(1)
	go s.supervise(context.WithoutCancel(ctx), task, staged, fn)
}

// supervise converts any error or panic from fn into exactly one terminal
// registry write, then removes staged files.
func (s *Service) supervise(ctx context.Context, task *Task, staged []string, fn func(context.Context, *Task) error) {
	defer s.wg.Done()
	defer s.cleanupStaged(ctx, task.ID, staged)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked",
				slog.String("job_id", task.ID),
				slog.Any("panic", r),
			)
			s.finish(ctx, task, fmt.Errorf("%w: %v", ErrTaskPanicked, r))
		}
	}()

	s.finish(ctx, task, fn(ctx, task))
}

// finish records err as the terminal state unless the task already has one.
func (s *Service) finish(ctx context.Context, task *Task, err error) {
	if err == nil {
		if task.IsTerminal() {
			return
		}
		err = errors.New("job: task ended without a terminal status")
	}

	if task.IsTerminal() {
		s.logger.Warn("ignoring error after terminal status",
			slog.String("job_id", task.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	details := newErrorDetails(err)
	if abortErr := task.Abort(details); abortErr != nil {
		s.logger.Error("failed to record task error",
			slog.String("job_id", task.ID),
			slog.String("error", abortErr.Error()),
		)
		return
	}
	s.save(ctx, task)

	s.logger.Error("task failed",
		slog.String("job_id", task.ID),
		slog.String("error_type", details.ErrorType),
		slog.String("error", err.Error()),
	)
}

// save writes a task snapshot. Registry failures are logged; the task
// keeps running so a later write can still succeed.
func (s *Service) save(ctx context.Context, task *Task) {
	if err := s.repo.Save(ctx, task); err != nil {
		s.logger.Error("failed to save task",
			slog.String("job_id", task.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) cleanupStaged(ctx context.Context, taskID string, staged []string) {
	if len(staged) == 0 {
		return
	}
	if err := s.archive.CleanupTemp(ctx, staged); err != nil {
		s.logger.Debug("failed to clean up staged files",
			slog.String("job_id", taskID),
			slog.String("error", err.Error()),
		)
	}
}

// pipeline is what differs between create and remix tasks.
type pipeline struct {
	remix       bool
	submit      func(ctx context.Context) (*sora.Video, error)
	spritesheet bool
	metadata    func(final *sora.Video, savedAt string) any
}

func (p pipeline) noun() string {
	if p.remix {
		return "remix"
	}
	return "video"
}

// run drives one task: submit, poll, then archive or fail.
func (s *Service) run(ctx context.Context, task *Task, p pipeline) error {
	video, err := p.submit(ctx)
	if err != nil {
		return fmt.Errorf("submit %s: %w", p.noun(), err)
	}

	started := "Video creation started, waiting for completion..."
	if p.remix {
		started = "Remix started, waiting for completion..."
	}
	if err := task.Submit(video.ID, started); err != nil {
		return err
	}
	s.save(ctx, task)
	s.logger.Info("remote job submitted",
		slog.String("job_id", task.ID),
		slog.String("video_id", video.ID),
	)

	if err := task.StartPolling(); err != nil {
		return err
	}
	s.save(ctx, task)

	final, err := s.pollUntilTerminal(ctx, video.ID, func(v *sora.Video, elapsed time.Duration, pollErr error, consecutive int) {
		if pollErr != nil {
			s.logger.Warn("polling error",
				slog.String("job_id", task.ID),
				slog.Int("attempt", consecutive),
				slog.Int("max_attempts", s.maxPollErrors),
				slog.String("error", pollErr.Error()),
			)
			task.SetMessage(fmt.Sprintf("Polling video status... (retry %d)", consecutive))
		} else {
			task.Observe(v, EstimateProgress(elapsed, s.pollTimeout), pollMessage(v.Status, p.remix))
		}
		s.save(ctx, task)
	})
	if err != nil {
		return err
	}

	if final.Status != sora.StatusCompleted {
		msg := fmt.Sprintf("Video generation failed: %s", final.Status)
		if p.remix {
			msg = fmt.Sprintf("Video remix failed: %s", final.Status)
		}
		if detail := final.ErrorMessage(); detail != "" {
			msg += " (" + detail + ")"
		}
		if err := task.Fail(final, msg); err != nil {
			return err
		}
		s.save(ctx, task)
		s.logger.Warn("remote job failed",
			slog.String("job_id", task.ID),
			slog.String("video_id", final.ID),
			slog.String("status", string(final.Status)),
		)
		return nil
	}

	downloading := "Video completed, downloading..."
	if p.remix {
		downloading = "Remix completed, downloading..."
	}
	if err := task.StartDownloading(final, downloading); err != nil {
		return err
	}
	s.save(ctx, task)

	videoPath, err := s.fetch(ctx, final.ID, sora.VariantVideo)
	if err != nil {
		return err
	}
	thumbnailPath, err := s.fetch(ctx, final.ID, sora.VariantThumbnail)
	if err != nil {
		return err
	}
	var spritesheetPath string
	if p.spritesheet {
		spritesheetPath, err = s.fetch(ctx, final.ID, sora.VariantSpritesheet)
		if err != nil {
			s.logger.Warn("spritesheet download failed",
				slog.String("job_id", task.ID),
				slog.String("video_id", final.ID),
				slog.String("error", err.Error()),
			)
			spritesheetPath = ""
		}
	}

	if _, err := s.archive.WriteMetadata(ctx, final.ID, p.metadata(final, savedAt()), true); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	done := "Video ready!"
	if p.remix {
		done = "Remixed video ready!"
	}
	if err := task.Complete(final, videoPath, thumbnailPath, spritesheetPath, done); err != nil {
		return err
	}
	s.save(ctx, task)

	s.logger.Info("task completed",
		slog.String("job_id", task.ID),
		slog.String("video_id", final.ID),
		slog.String("video_path", videoPath),
	)
	return nil
}

func pollMessage(status sora.Status, remix bool) string {
	subject := "Video"
	generating := "Generating video..."
	if remix {
		subject = "Remix"
		generating = "Generating remixed video..."
	}
	switch status {
	case sora.StatusQueued:
		return subject + " queued on server..."
	case sora.StatusInProgress:
		return generating
	default:
		return fmt.Sprintf("Status: %s...", status)
	}
}

// EstimateProgress maps elapsed polling time onto 10..85 percent.
// Remote progress is not used: it is not guaranteed to be monotonic.
func EstimateProgress(elapsed, budget time.Duration) int {
	if budget <= 0 || elapsed <= 0 {
		return ProgressSubmitted
	}
	span := int(float64(elapsed) / float64(budget) * ProgressPollSpan)
	return ProgressSubmitted + min(ProgressPollSpan, span)
}

// pollObserver is called after every non-terminal poll, successful or not.
// v is nil when pollErr is set.
type pollObserver func(v *sora.Video, elapsed time.Duration, pollErr error, consecutive int)

// pollUntilTerminal polls videoID until a terminal remote status, the time
// budget, or the consecutive error budget.
func (s *Service) pollUntilTerminal(ctx context.Context, videoID string, observe pollObserver) (*sora.Video, error) {
	start := time.Now()
	consecutive := 0

	for {
		elapsed := time.Since(start)
		if elapsed >= s.pollTimeout {
			return nil, fmt.Errorf("%w: video %s not finished after %s", ErrPollTimeout, videoID, s.pollTimeout)
		}

		video, err := s.client.GetVideo(ctx, videoID)
		if err != nil {
			consecutive++
			if consecutive >= s.maxPollErrors {
				return nil, fmt.Errorf("%w (%d): %w", ErrPollErrorBudget, consecutive, err)
			}
		} else {
			consecutive = 0
			if video.Status.IsTerminal() {
				return video, nil
			}
		}

		if observe != nil {
			observe(video, elapsed, err, consecutive)
		}

		timer := time.NewTimer(s.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("job: polling cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// Await polls an existing remote video until it is terminal, reporting
// each non-terminal snapshot to progress. A remote failure returns
// ErrRemoteJobFailed with the final snapshot.
func (s *Service) Await(ctx context.Context, videoID string, progress func(*sora.Video)) (*sora.Video, error) {
	if videoID == "" {
		return nil, sora.ErrVideoIDRequired
	}

	final, err := s.pollUntilTerminal(ctx, videoID, func(v *sora.Video, _ time.Duration, pollErr error, consecutive int) {
		if pollErr != nil {
			s.logger.Warn("polling error",
				slog.String("video_id", videoID),
				slog.Int("attempt", consecutive),
				slog.String("error", pollErr.Error()),
			)
			return
		}
		if progress != nil {
			progress(v)
		}
	})
	if err != nil {
		return nil, err
	}
	if final.Status != sora.StatusCompleted {
		msg := string(final.Status)
		if detail := final.ErrorMessage(); detail != "" {
			msg += ": " + detail
		}
		return final, fmt.Errorf("%w: %s", ErrRemoteJobFailed, msg)
	}
	return final, nil
}

// fetch downloads one variant and stores it in the archive.
func (s *Service) fetch(ctx context.Context, videoID string, variant sora.Variant) (string, error) {
	data, err := s.client.DownloadContent(ctx, videoID, variant)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", variant, err)
	}
	p, err := s.archive.Store(ctx, videoID, variant, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("store %s: %w", variant, err)
	}
	return p, nil
}

// ListRemote returns a page of the remote video library.
func (s *Service) ListRemote(ctx context.Context, params sora.ListParams) (*sora.VideoList, error) {
	return s.client.ListVideos(ctx, params)
}

// Download fetches a completed remote video into the archive. It is a
// no-op when the video is already archived. Existing metadata is kept.
func (s *Service) Download(ctx context.Context, videoID string) (*DownloadResult, error) {
	if videoID == "" {
		return nil, sora.ErrVideoIDRequired
	}

	videoPath, err := s.archive.Path(videoID, sora.VariantVideo)
	if err != nil {
		return nil, err
	}
	if s.archive.Exists(videoID) {
		return &DownloadResult{VideoID: videoID, VideoPath: videoPath, AlreadyExisted: true}, nil
	}

	video, err := s.client.GetVideo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoteVideoNotFound, err)
	}
	if video.Status != sora.StatusCompleted {
		return nil, fmt.Errorf("%w: status is %s", ErrVideoNotReady, video.Status)
	}

	videoPath, err = s.fetch(ctx, videoID, sora.VariantVideo)
	if err != nil {
		return nil, err
	}
	result := &DownloadResult{VideoID: videoID, VideoPath: videoPath}

	if thumb, err := s.fetch(ctx, videoID, sora.VariantThumbnail); err != nil {
		s.logger.Warn("thumbnail download failed",
			slog.String("video_id", videoID),
			slog.String("error", err.Error()),
		)
	} else {
		result.ThumbnailPath = thumb
	}

	meta := downloadMetadata{
		VideoID:   videoID,
		Prompt:    video.Prompt,
		Model:     video.Model,
		Seconds:   video.Seconds,
		Size:      video.Size,
		CreatedAt: video.CreatedAt,
		Status:    video.Status,
		SavedAt:   savedAt(),
	}
	if _, err := s.archive.WriteMetadata(ctx, videoID, meta, false); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}

	s.logger.Info("video downloaded",
		slog.String("video_id", videoID),
		slog.String("video_path", videoPath),
	)
	return result, nil
}

// DeleteRemote deletes a video on the remote side only. Queued and
// in-progress videos are refused. If the status lookup itself fails the
// deletion is still attempted.
func (s *Service) DeleteRemote(ctx context.Context, videoID string) (*sora.DeletionResult, error) {
	if videoID == "" {
		return nil, sora.ErrVideoIDRequired
	}

	video, err := s.client.GetVideo(ctx, videoID)
	if err != nil {
		s.logger.Warn("could not check video status before delete",
			slog.String("video_id", videoID),
			slog.String("error", err.Error()),
		)
	} else if video.Status == sora.StatusQueued || video.Status == sora.StatusInProgress {
		return nil, fmt.Errorf("%w: video is %s", ErrVideoNotDeletable, video.Status)
	}

	result, err := s.client.DeleteVideo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("delete video: %w", err)
	}

	s.logger.Info("remote video deleted", slog.String("video_id", videoID))
	return result, nil
}

// DeleteLocal removes a video's archived files. Returns archive.ErrNotFound
// when nothing is archived for videoID.
func (s *Service) DeleteLocal(ctx context.Context, videoID string) error {
	if err := s.archive.DeleteLocal(ctx, videoID); err != nil {
		return err
	}
	s.logger.Info("local video deleted", slog.String("video_id", videoID))
	return nil
}

// ListArchive returns archived videos, newest first.
func (s *Service) ListArchive(ctx context.Context) ([]archive.Entry, error) {
	return s.archive.List(ctx)
}

// createMetadata is the sidecar written for create tasks.
type createMetadata struct {
	SavedAt      string            `json:"saved_at"`
	CreationArgs map[string]string `json:"creation_args"`
	APIResponse  *sora.Video       `json:"api_response"`
}

// remixMetadata is the flat sidecar written for remix tasks.
type remixMetadata struct {
	VideoID         string      `json:"video_id"`
	OriginalVideoID string      `json:"original_video_id"`
	Prompt          string      `json:"prompt"`
	Model           string      `json:"model,omitempty"`
	Seconds         string      `json:"seconds,omitempty"`
	Size            string      `json:"size,omitempty"`
	CreatedAt       int64       `json:"created_at,omitempty"`
	Status          sora.Status `json:"status"`
	Type            string      `json:"type"`
	SavedAt         string      `json:"saved_at"`
}

// downloadMetadata is written by Download when no sidecar exists.
type downloadMetadata struct {
	VideoID   string      `json:"video_id"`
	Prompt    string      `json:"prompt,omitempty"`
	Model     string      `json:"model,omitempty"`
	Seconds   string      `json:"seconds,omitempty"`
	Size      string      `json:"size,omitempty"`
	CreatedAt int64       `json:"created_at,omitempty"`
	Status    sora.Status `json:"status"`
	SavedAt   string      `json:"saved_at"`
}

func creationArgs(p sora.CreateParams) map[string]string {
	args := map[string]string{
		"prompt": p.Prompt,
		"model":  p.Model,
	}
	if p.Seconds != "" {
		args["seconds"] = p.Seconds
	}
	if p.Size != "" {
		args["size"] = p.Size
	}
	if p.InputReference != "" {
		args["input_reference"] = p.InputReference
	}
	return args
}

func savedAt() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// newErrorDetails builds the recorded error, attaching the remote response
// body when err carries one.
func newErrorDetails(err error) ErrorDetails {
	d := ErrorDetails{
		ErrorType:    errorType(err),
		ErrorMessage: err.Error(),
	}

	var apiErr *sora.APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Body) != "" {
		var parsed any
		if json.Unmarshal([]byte(apiErr.Body), &parsed) == nil {
			d.APIResponse = parsed
		} else {
			d.APIResponseText = apiErr.Body
		}
	}
	return d
}

func errorType(err error) string {
	var (
		apiErr *sora.APIError
		netErr *sora.NetworkError
	)
	switch {
	case errors.Is(err, ErrTaskPanicked):
		return ErrorTypePanic
	case errors.Is(err, ErrPollErrorBudget):
		return ErrorTypePollBudget
	case errors.Is(err, ErrPollTimeout):
		return ErrorTypeTimeout
	case errors.Is(err, sora.ErrReferenceNotFound):
		return ErrorTypeReferenceNotFound
	case errors.As(err, &apiErr):
		return ErrorTypeRemoteAPI
	case errors.As(err, &netErr):
		return ErrorTypeNetwork
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeCancelled
	default:
		return ErrorTypeInternal
	}
}
