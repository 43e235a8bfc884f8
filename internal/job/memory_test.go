package job

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryRepository_Save(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	task := NewTask(KindCreate)

	if err := repo.Save(ctx, task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	saved, err := repo.FindByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.ID != task.ID {
		t.Errorf("expected ID %s, got %s", task.ID, saved.ID)
	}
}

func TestMemoryRepository_Save_Update(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	task := NewTask(KindCreate)

	_ = repo.Save(ctx, task)

	_ = task.Submit("video_1", "submitted")
	_ = repo.Save(ctx, task)

	saved, _ := repo.FindByID(ctx, task.ID)
	if saved.Status != StatusSubmitted {
		t.Errorf("expected status %s, got %s", StatusSubmitted, saved.Status)
	}
	if saved.Progress != ProgressSubmitted {
		t.Errorf("expected progress %d, got %d", ProgressSubmitted, saved.Progress)
	}
}

func TestMemoryRepository_FindByID_NotFound(t *testing.T) {
	repo := NewMemoryRepository()

	_, err := repo.FindByID(context.Background(), "nonexistent")
	if err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestMemoryRepository_IsolatesCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	task := NewTask(KindCreate)
	_ = repo.Save(ctx, task)

	// mutating the original after save must not leak into the registry
	task.Message = "mutated"

	saved, _ := repo.FindByID(ctx, task.ID)
	if saved.Message == "mutated" {
		t.Error("repository shares state with caller")
	}

	saved.Message = "mutated again"
	again, _ := repo.FindByID(ctx, task.ID)
	if again.Message == "mutated again" {
		t.Error("repository returned shared state")
	}
}

func TestMemoryRepository_List(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	older := NewTaskWithID("job_old", KindCreate)
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := NewTaskWithID("job_new", KindRemix)

	_ = repo.Save(ctx, older)
	_ = repo.Save(ctx, newer)

	tasks, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].ID != "job_new" || tasks[1].ID != "job_old" {
		t.Errorf("expected newest first, got %s, %s", tasks[0].ID, tasks[1].ID)
	}
}

func TestMemoryRepository_ConcurrentAccess(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			task := NewTask(KindCreate)
			_ = repo.Save(ctx, task)
			_, _ = repo.FindByID(ctx, task.ID)
		}()
		go func() {
			defer wg.Done()
			_, _ = repo.List(ctx)
		}()
	}
	wg.Wait()

	tasks, _ := repo.List(ctx)
	if len(tasks) != 50 {
		t.Errorf("expected 50 tasks, got %d", len(tasks))
	}
}
