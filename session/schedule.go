package session

import (
	"context"
	"time"
)

// Task is a cancellable repeating job
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Every runs fn immediately and then once per interval until fn returns
// false, ctx ends, or the task is cancelled. fn receives a context that is
// cancelled together with the task.
func Every(ctx context.Context, interval time.Duration, fn func(ctx context.Context) bool) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		defer cancel()

		if !fn(ctx) {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// A tick and a cancel can be ready together; cancel wins.
				if ctx.Err() != nil {
					return
				}
				if !fn(ctx) {
					return
				}
			}
		}
	}()

	return t
}

// Cancel stops the task without waiting for it
func (t *Task) Cancel() {
	t.cancel()
}

// Stop cancels the task and waits for the running tick, if any, to return.
// It must not be called from inside fn.
func (t *Task) Stop() {
	t.cancel()
	t.Wait()
}

// Wait blocks until the task has exited
func (t *Task) Wait() {
	<-t.done
}

// Done is closed once the task has exited
func (t *Task) Done() <-chan struct{} {
	return t.done
}
