// Package job orchestrates video generation tasks: it submits work to the
// remote API, polls it to a terminal state, archives the result and records
// progress in a Repository that status queries read from.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/sora-studio/internal/job/id"
	"github.com/maauso/sora-studio/internal/sora"
)

// Kind distinguishes how a task was started.
type Kind string

const (
	// KindCreate is a new generation from a prompt.
	KindCreate Kind = "create"
	// KindRemix is a remix of an existing remote video.
	KindRemix Kind = "remix"
)

// Status represents the local orchestration state of a Task.
// It is distinct from the remote job status.
type Status string

const (
	// StatusInitiating indicates the task is registered but not yet submitted.
	StatusInitiating Status = "initiating"
	// StatusSubmitted indicates the remote job was accepted.
	StatusSubmitted Status = "submitted"
	// StatusPolling indicates the task is waiting for a terminal remote status.
	StatusPolling Status = "polling"
	// StatusDownloading indicates the remote job completed and content is being fetched.
	StatusDownloading Status = "downloading"
	// StatusCompleted indicates the video is archived locally.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the remote job ended in failed, cancelled or incomplete.
	StatusFailed Status = "failed"
	// StatusError indicates a local error: submission, polling budget, timeout or download.
	StatusError Status = "error"
)

// IsTerminal returns true if no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusError
}

// Progress milestones.
const (
	ProgressSubmitted   = 10
	ProgressPollSpan    = 75
	ProgressDownloading = 90
	ProgressDone        = 100
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("job: invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInitiating:  {StatusSubmitted, StatusFailed, StatusError},
	StatusSubmitted:   {StatusPolling, StatusFailed, StatusError},
	StatusPolling:     {StatusDownloading, StatusFailed, StatusError},
	StatusDownloading: {StatusCompleted, StatusError},
	StatusCompleted:   {},
	StatusFailed:      {},
	StatusError:       {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// ErrorDetails is the structured error recorded on an errored task.
type ErrorDetails struct {
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`
	// APIResponse is the parsed body of a remote error response.
	APIResponse any `json:"api_response,omitempty"`
	// APIResponseText is the raw body when it was not valid JSON.
	APIResponseText string `json:"api_response_text,omitempty"`
}

// Task is one local unit of work tracking a remote job from submission to
// archival. Only the goroutine that owns a task mutates it.
type Task struct {
	mu sync.RWMutex

	ID            string `json:"id"`
	Kind          Kind   `json:"kind"`
	Status        Status `json:"status"`
	Progress      int    `json:"progress"`
	Message       string `json:"message"`
	Prompt        string `json:"prompt,omitempty"`
	RemoteVideoID string `json:"remote_video_id,omitempty"`
	// SourceVideoID is the remixed video, empty for creates.
	SourceVideoID   string        `json:"source_video_id,omitempty"`
	Result          *sora.Video   `json:"result,omitempty"`
	ErrorDetails    *ErrorDetails `json:"error_details,omitempty"`
	VideoPath       string        `json:"video_path,omitempty"`
	ThumbnailPath   string        `json:"thumbnail_path,omitempty"`
	SpritesheetPath string        `json:"spritesheet_path,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	CompletedAt     time.Time     `json:"completed_at,omitzero"`
}

// NewTask creates a task with a generated ID in the initiating state.
func NewTask(kind Kind) *Task {
	return NewTaskWithID(id.Generate(), kind)
}

// NewTaskWithID creates a task with the specified ID in the initiating state.
func NewTaskWithID(taskID string, kind Kind) *Task {
	now := time.Now()
	msg := "Initiating video creation..."
	if kind == KindRemix {
		msg = "Initiating video remix..."
	}
	return &Task{
		ID:        taskID,
		Kind:      kind,
		Status:    StatusInitiating,
		Message:   msg,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// transition must be called with mu held.
func (t *Task) transition(status Status) error {
	if !canTransition(t.Status, status) {
		return ErrInvalidTransition
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	if status.IsTerminal() {
		t.CompletedAt = t.UpdatedAt
	}
	return nil
}

// setProgress must be called with mu held. Lower values are ignored.
func (t *Task) setProgress(progress int) {
	progress = min(max(progress, 0), ProgressDone)
	if progress > t.Progress {
		t.Progress = progress
	}
}

// TransitionTo attempts to change the task status.
// Returns ErrInvalidTransition if the transition is not allowed.
func (t *Task) TransitionTo(status Status) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transition(status)
}

// Submit records the remote job id and moves to submitted.
func (t *Task) Submit(remoteVideoID, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transition(StatusSubmitted); err != nil {
		return err
	}
	t.RemoteVideoID = remoteVideoID
	t.Message = message
	t.setProgress(ProgressSubmitted)
	return nil
}

// StartPolling moves a submitted task to polling.
func (t *Task) StartPolling() error {
	return t.TransitionTo(StatusPolling)
}

// Observe records a non-terminal remote snapshot with a progress estimate.
func (t *Task) Observe(video *sora.Video, progress int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Result = video
	t.Message = message
	t.setProgress(progress)
	t.UpdatedAt = time.Now()
}

// SetMessage replaces the human readable state description.
func (t *Task) SetMessage(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Message = message
	t.UpdatedAt = time.Now()
}

// UpdateProgress raises progress to the given percentage (0-100).
// Progress never decreases.
func (t *Task) UpdateProgress(progress int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setProgress(progress)
	t.UpdatedAt = time.Now()
}

// StartDownloading moves a polling task to downloading at 90%.
func (t *Task) StartDownloading(video *sora.Video, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transition(StatusDownloading); err != nil {
		return err
	}
	t.Result = video
	t.Message = message
	t.setProgress(ProgressDownloading)
	return nil
}

// Complete marks the task completed with its archived file paths.
func (t *Task) Complete(video *sora.Video, videoPath, thumbnailPath, spritesheetPath, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transition(StatusCompleted); err != nil {
		return err
	}
	t.Result = video
	t.VideoPath = videoPath
	t.ThumbnailPath = thumbnailPath
	t.SpritesheetPath = spritesheetPath
	t.Message = message
	t.setProgress(ProgressDone)
	return nil
}

// Fail marks the task failed after a remote failure.
func (t *Task) Fail(video *sora.Video, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transition(StatusFailed); err != nil {
		return err
	}
	t.Result = video
	t.Message = message
	return nil
}

// Abort marks the task errored with structured details.
func (t *Task) Abort(details ErrorDetails) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transition(StatusError); err != nil {
		return err
	}
	t.ErrorDetails = &details
	t.Message = "Error: " + details.ErrorMessage
	return nil
}

// GetStatus returns the current task status (thread-safe).
func (t *Task) GetStatus() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status
}

// GetProgress returns the current progress (thread-safe).
func (t *Task) GetProgress() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Progress
}

// GetRemoteVideoID returns the remote job id (thread-safe).
func (t *Task) GetRemoteVideoID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.RemoteVideoID
}

// IsTerminal returns true if the task is in a terminal state.
func (t *Task) IsTerminal() bool {
	return t.GetStatus().IsTerminal()
}

// Clone creates a deep copy of the task for safe reads.
func (t *Task) Clone() *Task {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c := &Task{
		ID:              t.ID,
		Kind:            t.Kind,
		Status:          t.Status,
		Progress:        t.Progress,
		Message:         t.Message,
		Prompt:          t.Prompt,
		RemoteVideoID:   t.RemoteVideoID,
		SourceVideoID:   t.SourceVideoID,
		VideoPath:       t.VideoPath,
		ThumbnailPath:   t.ThumbnailPath,
		SpritesheetPath: t.SpritesheetPath,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		CompletedAt:     t.CompletedAt,
	}
	if t.Result != nil {
		v := *t.Result
		if t.Result.Error != nil {
			e := *t.Result.Error
			v.Error = &e
		}
		c.Result = &v
	}
	if t.ErrorDetails != nil {
		d := *t.ErrorDetails
		c.ErrorDetails = &d
	}
	return c
}
