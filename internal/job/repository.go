package job

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned when a task cannot be found by ID.
var ErrJobNotFound = errors.New("job: not found")

// Repository defines the interface for task persistence.
// It is the job status registry: written only by the task that owns a
// record, read by any number of concurrent status queries.
type Repository interface {
	// Save persists a task. If the task already exists, it is updated.
	Save(ctx context.Context, task *Task) error

	// FindByID retrieves a task by its unique identifier.
	// Returns ErrJobNotFound if the task does not exist.
	FindByID(ctx context.Context, id string) (*Task, error)

	// List returns all tasks, newest first.
	List(ctx context.Context) ([]*Task, error)
}
