// Package reconcile refreshes the preview pane for the currently selected
// job. Reloads are edge-triggered: one reload per observed transition into
// completed, no matter how many polls report the same terminal status.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fadehq/redact-client/internal/cache"
	"github.com/fadehq/redact-client/internal/domain"
)

type State string

const (
	StateUnresolved State = "unresolved"
	StateLoading    State = "loading"
	StateLoaded     State = "loaded"
	StateError      State = "error"
)

// Loader fetches the two resources a loaded preview needs.
type Loader interface {
	PreviewURLs(ctx context.Context, documentCode string, jobID int64) (domain.Preview, error)
	JobDetail(ctx context.Context, jobID int64) (domain.JobDetail, error)
}

// View is what the preview pane renders.
type View struct {
	JobID        int64
	DocumentCode string
	State        State
	Preview      domain.Preview
	Detail       domain.JobDetail
	Err          error
}

type Config struct {
	Store  cache.Store
	Logger *log.Logger
}

// Reconciler tracks one selected job at a time. Selecting a different job
// while a load is in flight abandons the previous load's result: last
// write wins on the visible view.
type Reconciler struct {
	loader Loader
	store  cache.Store
	logger *log.Logger

	mu         sync.Mutex
	selected   int64
	generation uint64
	view       View
}

func New(loader Loader, config Config) *Reconciler {
	return &Reconciler{
		loader: loader,
		store:  config.Store,
		logger: config.Logger,
		view:   View{State: StateUnresolved},
	}
}

// ShouldReload is the pure transition function behind the edge trigger: a
// reload happens exactly when an outstanding job is observed completed.
func ShouldReload(previous, next domain.JobStatus) bool {
	return previous.Outstanding() && next == domain.JobStatusCompleted
}

// Select makes job the previewed one. An already-completed job loads
// immediately; an outstanding one waits for its transition.
func (r *Reconciler) Select(ctx context.Context, job domain.Job) {
	r.mu.Lock()
	r.selected = job.ID
	r.generation++
	generation := r.generation
	r.view = View{JobID: job.ID, DocumentCode: job.DocumentCode, State: StateUnresolved}
	r.mu.Unlock()

	switch {
	case job.Status == domain.JobStatusCompleted:
		r.load(ctx, generation, job.ID, job.DocumentCode)
	case job.Status == domain.JobStatusFailed:
		r.fail(generation, fmt.Errorf("job %d failed: %s", job.ID, firstNonEmpty(job.ErrorMessage, "processing failed")))
	}
}

// Observe consumes one status transition from the poller. Transitions for
// jobs other than the selected one are ignored.
func (r *Reconciler) Observe(ctx context.Context, job domain.Job, previous, next domain.JobStatus) {
	r.mu.Lock()
	if job.ID != r.selected {
		r.mu.Unlock()
		return
	}
	r.generation++
	generation := r.generation
	r.mu.Unlock()

	switch {
	case ShouldReload(previous, next):
		r.load(ctx, generation, job.ID, job.DocumentCode)
	case next == domain.JobStatusFailed:
		r.fail(generation, fmt.Errorf("job %d failed: %s", job.ID, firstNonEmpty(job.ErrorMessage, "processing failed")))
	}
}

// View returns the current preview state.
func (r *Reconciler) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// Clear resets the selection, e.g. when leaving the preview.
func (r *Reconciler) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = 0
	r.generation++
	r.view = View{State: StateUnresolved}
}

func (r *Reconciler) load(ctx context.Context, generation uint64, jobID int64, documentCode string) {
	if !r.enterLoading(generation) {
		return
	}

	if r.store != nil {
		if entry, ok := r.store.Get(ctx, jobID); ok {
			r.finish(generation, jobID, documentCode, entry.Preview, entry.Detail, nil)
			return
		}
	}

	var (
		preview domain.Preview
		detail  domain.JobDetail
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		preview, err = r.loader.PreviewURLs(groupCtx, documentCode, jobID)
		if err != nil {
			return fmt.Errorf("fetch preview urls: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		var err error
		detail, err = r.loader.JobDetail(groupCtx, jobID)
		if err != nil {
			return fmt.Errorf("fetch job detail: %w", err)
		}
		return nil
	})
	err := group.Wait()

	if err == nil && r.store != nil {
		r.store.Set(ctx, jobID, cache.Entry{
			DocumentCode: documentCode,
			Preview:      preview,
			Detail:       detail,
		})
	}
	r.finish(generation, jobID, documentCode, preview, detail, err)
}

func (r *Reconciler) enterLoading(generation uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if generation != r.generation {
		return false
	}
	r.view.State = StateLoading
	r.view.Err = nil
	return true
}

func (r *Reconciler) finish(generation uint64, jobID int64, documentCode string, preview domain.Preview, detail domain.JobDetail, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if generation != r.generation {
		// A different job was selected while this load was in flight.
		r.logf("discarding stale preview load job_id=%d", jobID)
		return
	}
	if err != nil {
		r.view = View{JobID: jobID, DocumentCode: documentCode, State: StateError, Err: err}
		r.logf("preview load failed job_id=%d err=%v", jobID, err)
		return
	}
	r.view = View{
		JobID:        jobID,
		DocumentCode: documentCode,
		State:        StateLoaded,
		Preview:      preview,
		Detail:       detail,
	}
}

func (r *Reconciler) fail(generation uint64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if generation != r.generation {
		return
	}
	r.view.State = StateError
	r.view.Err = err
}

func (r *Reconciler) logf(format string, args ...any) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
