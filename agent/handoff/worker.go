package handoff

import "context"

// Worker is a task-performing unit the Coordinator dispatches handoffs to.
//
// Execute must not mutate input and should return promptly once ctx is done.
// Failures are reported through the returned Outcome, never by panicking.
type Worker interface {
	ID() WorkerID
	Execute(ctx context.Context, task string, input map[string]any) Outcome
}

// WorkerFunc adapts a plain function to the Worker interface.
type WorkerFunc struct {
	id WorkerID
	fn func(ctx context.Context, task string, input map[string]any) Outcome
}

// NewWorkerFunc wraps fn as a Worker registered under id.
func NewWorkerFunc(id WorkerID, fn func(ctx context.Context, task string, input map[string]any) Outcome) *WorkerFunc {
	return &WorkerFunc{id: id, fn: fn}
}

func (w *WorkerFunc) ID() WorkerID { return w.id }

func (w *WorkerFunc) Execute(ctx context.Context, task string, input map[string]any) Outcome {
	return w.fn(ctx, task, input)
}
