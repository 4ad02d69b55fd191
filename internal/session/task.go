package session

import (
	"context"

	"github.com/lehigh-university-libraries/gembooth/internal/models"
)

// Result is the outcome of one photo's transformation
type Result struct {
	PhotoID string
	// Status is StatusDone, StatusFailed, or StatusRemoved when the photo
	// was deleted before its outcome arrived and the outcome was discarded
	Status models.Status
	// Err is the transformation error when Status is StatusFailed
	Err error
}

// Task tracks the single outstanding transformation of a captured photo.
type Task struct {
	id     string
	done   chan struct{}
	result Result
}

func newTask(id string) *Task {
	return &Task{id: id, done: make(chan struct{})}
}

// ID returns the photo ID the task belongs to
func (t *Task) ID() string {
	return t.id
}

// Done is closed once the outcome has been applied to the session.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task resolves or ctx is done.
func (t *Task) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.result, nil
	case <-ctx.Done():
		return Result{PhotoID: t.id}, ctx.Err()
	}
}

// resolve must be called exactly once
func (t *Task) resolve(r Result) {
	t.result = r
	close(t.done)
}
