package job

import (
	"strings"
	"sync"
	"testing"

	"github.com/maauso/sora-studio/internal/sora"
)

func TestNewTask(t *testing.T) {
	task := NewTask(KindCreate)

	if !strings.HasPrefix(task.ID, "job_") {
		t.Errorf("expected ID to start with job_, got %s", task.ID)
	}
	if task.Status != StatusInitiating {
		t.Errorf("expected status %s, got %s", StatusInitiating, task.Status)
	}
	if task.Progress != 0 {
		t.Errorf("expected progress 0, got %d", task.Progress)
	}
	if task.Message != "Initiating video creation..." {
		t.Errorf("unexpected message %q", task.Message)
	}
	if task.CreatedAt.IsZero() || task.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestNewTaskWithID_Remix(t *testing.T) {
	task := NewTaskWithID("job_test", KindRemix)

	if task.ID != "job_test" {
		t.Errorf("expected ID job_test, got %s", task.ID)
	}
	if task.Kind != KindRemix {
		t.Errorf("expected kind %s, got %s", KindRemix, task.Kind)
	}
	if task.Message != "Initiating video remix..." {
		t.Errorf("unexpected message %q", task.Message)
	}
}

func TestTask_ValidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{"initiating to submitted", StatusInitiating, StatusSubmitted, false},
		{"initiating to error", StatusInitiating, StatusError, false},
		{"submitted to polling", StatusSubmitted, StatusPolling, false},
		{"polling to downloading", StatusPolling, StatusDownloading, false},
		{"polling to failed", StatusPolling, StatusFailed, false},
		{"polling to error", StatusPolling, StatusError, false},
		{"downloading to completed", StatusDownloading, StatusCompleted, false},
		{"downloading to error", StatusDownloading, StatusError, false},
		{"initiating to completed", StatusInitiating, StatusCompleted, true},
		{"submitted to downloading", StatusSubmitted, StatusDownloading, true},
		{"downloading to failed", StatusDownloading, StatusFailed, true},
		{"completed to error", StatusCompleted, StatusError, true},
		{"failed to completed", StatusFailed, StatusCompleted, true},
		{"error to failed", StatusError, StatusFailed, true},
		{"error to error", StatusError, StatusError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := NewTaskWithID("job_test", KindCreate)
			task.Status = tt.from

			err := task.TransitionTo(tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("TransitionTo() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && err != ErrInvalidTransition {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}

func TestTask_Lifecycle(t *testing.T) {
	task := NewTask(KindCreate)

	if err := task.Submit("video_1", "submitted"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if task.RemoteVideoID != "video_1" || task.Progress != ProgressSubmitted {
		t.Errorf("unexpected state after submit: %+v", task.Clone())
	}

	if err := task.StartPolling(); err != nil {
		t.Fatalf("StartPolling() error = %v", err)
	}
	task.Observe(&sora.Video{ID: "video_1", Status: sora.StatusInProgress, Progress: 40}, 30, "Generating video...")
	if task.Progress != 30 {
		t.Errorf("expected progress 30, got %d", task.Progress)
	}
	if task.Result == nil || task.Result.Progress != 40 {
		t.Error("expected remote snapshot to be recorded")
	}

	video := &sora.Video{ID: "video_1", Status: sora.StatusCompleted}
	if err := task.StartDownloading(video, "downloading"); err != nil {
		t.Fatalf("StartDownloading() error = %v", err)
	}
	if task.Progress != ProgressDownloading {
		t.Errorf("expected progress %d, got %d", ProgressDownloading, task.Progress)
	}

	if err := task.Complete(video, "v.mp4", "t.webp", "", "done"); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if task.Progress != ProgressDone || task.VideoPath != "v.mp4" {
		t.Errorf("unexpected state after complete: %+v", task.Clone())
	}
	if task.CompletedAt.IsZero() {
		t.Error("expected CompletedAt to be set")
	}

	if err := task.Abort(ErrorDetails{ErrorType: "X", ErrorMessage: "late"}); err != ErrInvalidTransition {
		t.Errorf("expected second terminal write to be rejected, got %v", err)
	}
	if task.ErrorDetails != nil {
		t.Error("terminal record must not change")
	}
}

func TestTask_ProgressNeverDecreases(t *testing.T) {
	task := NewTask(KindCreate)

	for _, p := range []int{10, 40, 20, 55, 0, -5, 150, 90} {
		before := task.GetProgress()
		task.UpdateProgress(p)
		after := task.GetProgress()
		if after < before {
			t.Errorf("progress regressed from %d to %d on update %d", before, after, p)
		}
		if after > 100 || after < 0 {
			t.Errorf("progress %d out of range", after)
		}
	}
	if task.GetProgress() != 100 {
		t.Errorf("expected progress capped at 100, got %d", task.GetProgress())
	}
}

func TestTask_Abort(t *testing.T) {
	task := NewTask(KindCreate)

	err := task.Abort(ErrorDetails{ErrorType: ErrorTypeTimeout, ErrorMessage: "took too long"})
	if err != nil {
		t.Fatalf("Abort() error = %v", err)
	}
	if task.Status != StatusError {
		t.Errorf("expected status %s, got %s", StatusError, task.Status)
	}
	if task.Message != "Error: took too long" {
		t.Errorf("unexpected message %q", task.Message)
	}
}

func TestTask_Clone(t *testing.T) {
	task := NewTask(KindCreate)
	task.Result = &sora.Video{ID: "video_1", Error: &sora.VideoError{Message: "x"}}
	task.ErrorDetails = &ErrorDetails{ErrorType: "A"}

	clone := task.Clone()
	clone.Result.ID = "changed"
	clone.Result.Error.Message = "changed"
	clone.ErrorDetails.ErrorType = "B"

	if task.Result.ID != "video_1" || task.Result.Error.Message != "x" {
		t.Error("clone shares Result with original")
	}
	if task.ErrorDetails.ErrorType != "A" {
		t.Error("clone shares ErrorDetails with original")
	}
}

func TestTask_ConcurrentReads(t *testing.T) {
	task := NewTask(KindCreate)
	_ = task.Submit("video_1", "")
	_ = task.StartPolling()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(p int) {
			defer wg.Done()
			task.UpdateProgress(p)
		}(i * 10)
		go func() {
			defer wg.Done()
			_ = task.Clone()
			_ = task.GetStatus()
		}()
	}
	wg.Wait()
}
