// Package task provides cancellable repeating tasks for the kiosk loops.
//
// Every runs on a fixed cadence and drops ticks while the previous run is
// still busy. Chain runs its function, waits a delay after it completes, and
// runs again, so iterations never overlap. Both return a *Task whose Cancel
// stops the loop and waits until no run is in progress.
package task

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Func is one iteration of a task. It must return promptly once ctx is done.
type Func func(ctx context.Context)

// Task is a handle to a running loop.
type Task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}

	runs    atomic.Int64
	skipped atomic.Int64
}

// Stats is a snapshot of a task's counters.
type Stats struct {
	Name    string `json:"name"`
	Runs    int64  `json:"runs"`
	Skipped int64  `json:"skipped"`
	Running bool   `json:"running"`
}

func newTask(ctx context.Context, name string) (*Task, context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	return &Task{name: name, cancel: cancel, done: make(chan struct{})}, ctx
}

// Cancel stops the loop and blocks until the current run, if any, returns.
func (t *Task) Cancel() {
	t.cancel()
	<-t.done
}

// Done is closed once the loop has fully exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Stats returns the current counters.
func (t *Task) Stats() Stats {
	running := true
	select {
	case <-t.done:
		running = false
	default:
	}
	return Stats{Name: t.name, Runs: t.runs.Load(), Skipped: t.skipped.Load(), Running: running}
}

// Every calls fn each interval. A tick that arrives while fn is still running
// is dropped, never queued.
func Every(ctx context.Context, name string, interval time.Duration, fn Func) *Task {
	t, ctx := newTask(ctx, name)

	go func() {
		var (
			busy atomic.Bool
			wg   sync.WaitGroup
		)
		ticker := time.NewTicker(interval)
		defer func() {
			ticker.Stop()
			wg.Wait()
			close(t.done)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			if !busy.CompareAndSwap(false, true) {
				t.skipped.Add(1)
				continue
			}
			if ctx.Err() != nil {
				return
			}
			t.runs.Add(1)
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer busy.Store(false)
				fn(ctx)
			}()
		}
	}()

	return t
}

// Chain calls fn immediately, then again delay after each run completes.
func Chain(ctx context.Context, name string, delay time.Duration, fn Func) *Task {
	t, ctx := newTask(ctx, name)

	go func() {
		defer close(t.done)

		timer := time.NewTimer(0)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			t.runs.Add(1)
			fn(ctx)

			if ctx.Err() != nil {
				return
			}
			timer.Reset(delay)
		}
	}()

	return t
}

// Group collects task handles so they can be torn down together.
type Group struct {
	mu    sync.Mutex
	tasks []*Task
}

// Add registers t with the group.
func (g *Group) Add(t *Task) {
	if t == nil {
		return
	}
	g.mu.Lock()
	g.tasks = append(g.tasks, t)
	g.mu.Unlock()
}

// Stop cancels every task and waits for all of them to exit.
func (g *Group) Stop() {
	g.mu.Lock()
	tasks := g.tasks
	g.tasks = nil
	g.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}
	for _, t := range tasks {
		<-t.done
	}
}

// Len returns the number of registered tasks.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tasks)
}

// Stats returns the counters of every registered task.
func (g *Group) Stats() []Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	stats := make([]Stats, 0, len(g.tasks))
	for _, t := range g.tasks {
		stats = append(stats, t.Stats())
	}
	return stats
}
