// Package poll tracks outstanding redaction jobs against the backend.
//
// The invariant throughout: the poll timer is running if and only if at
// least one watched job is still pending or processing.
package poll

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fadehq/redact-client/internal/domain"
)

// StatusFetcher is the backend job-status endpoint.
type StatusFetcher interface {
	JobStatus(ctx context.Context, jobID int64) (domain.JobStatus, error)
}

// TransitionHook observes one forward status transition. Hooks run after
// the tick's state update has been applied as a whole.
type TransitionHook func(job domain.Job, previous, next domain.JobStatus)

type Config struct {
	Interval time.Duration
	Logger   *log.Logger
}

// Poller owns the watched-job set. All mutations of the set and of job
// status flow through one locked update so readers never observe a torn
// intermediate state.
type Poller struct {
	fetcher   StatusFetcher
	logger    *log.Logger
	scheduler *Scheduler

	mu    sync.Mutex
	jobs  map[int64]domain.Job
	hooks []TransitionHook
}

func New(fetcher StatusFetcher, config Config) *Poller {
	p := &Poller{
		fetcher: fetcher,
		logger:  config.Logger,
		jobs:    make(map[int64]domain.Job),
	}
	p.scheduler = NewScheduler(config.Interval, func(ctx context.Context) {
		p.Tick(ctx)
	})
	return p
}

// OnTransition registers a hook. Register before the first Watch.
func (p *Poller) OnTransition(hook TransitionHook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks = append(p.hooks, hook)
}

// Watch adds a job to the watch set. If the job is outstanding and the
// poller is idle, polling starts immediately; there is no separate
// activation step.
func (p *Poller) Watch(job domain.Job) {
	p.mu.Lock()
	p.jobs[job.ID] = job.Clone()
	outstanding := p.outstandingLocked()
	p.mu.Unlock()

	if outstanding {
		p.scheduler.Start()
	}
}

// UnwatchDocument drops every job referencing the document. Called from the
// registry's remove cascade; no further requests mention the dropped ids.
func (p *Poller) UnwatchDocument(documentCode string) {
	p.mu.Lock()
	for id, job := range p.jobs {
		if job.DocumentCode == documentCode {
			delete(p.jobs, id)
		}
	}
	outstanding := p.outstandingLocked()
	p.mu.Unlock()

	if !outstanding {
		p.scheduler.Stop()
	}
}

// Rebuild replaces the watch set wholesale from the authoritative backend
// job list. Used on view re-entry; stale client memory is discarded.
func (p *Poller) Rebuild(jobs []domain.Job) {
	p.mu.Lock()
	p.jobs = make(map[int64]domain.Job, len(jobs))
	for _, job := range jobs {
		p.jobs[job.ID] = job.Clone()
	}
	outstanding := p.outstandingLocked()
	p.mu.Unlock()

	if outstanding {
		p.scheduler.Start()
	} else {
		p.scheduler.Stop()
	}
}

// Jobs returns a consistent snapshot of the watch set, ordered by id.
func (p *Poller) Jobs() []domain.Job {
	p.mu.Lock()
	defer p.mu.Unlock()

	jobs := make([]domain.Job, 0, len(p.jobs))
	for _, job := range p.jobs {
		jobs = append(jobs, job.Clone())
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs
}

// Job returns one watched job by id.
func (p *Poller) Job(jobID int64) (domain.Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	job, ok := p.jobs[jobID]
	if !ok {
		return domain.Job{}, false
	}
	return job.Clone(), true
}

// Active reports whether the poll timer is running.
func (p *Poller) Active() bool {
	return p.scheduler.Active()
}

// Stop releases the timer on view teardown. The watch set survives in
// memory but is rebuilt from the backend on re-entry.
func (p *Poller) Stop() {
	p.scheduler.Stop()
}

type tickResult struct {
	jobID  int64
	status domain.JobStatus
	err    error
}

// Tick fetches status for every outstanding job concurrently and applies
// the results as one state update. A failure for one job never aborts the
// updates for the rest; the failed job stays watched and is retried on the
// next tick.
func (p *Poller) Tick(ctx context.Context) {
	p.mu.Lock()
	outstanding := make([]int64, 0, len(p.jobs))
	for id, job := range p.jobs {
		if job.Status.Outstanding() {
			outstanding = append(outstanding, id)
		}
	}
	p.mu.Unlock()

	if len(outstanding) == 0 {
		p.scheduler.Stop()
		return
	}

	results := make([]tickResult, len(outstanding))
	var group errgroup.Group
	for i, jobID := range outstanding {
		i, jobID := i, jobID
		group.Go(func() error {
			status, err := p.fetcher.JobStatus(ctx, jobID)
			results[i] = tickResult{jobID: jobID, status: status, err: err}
			return nil
		})
	}
	_ = group.Wait()

	p.apply(results)
}

// apply is the single state-update function shared by every mutation of
// observed status.
func (p *Poller) apply(results []tickResult) {
	type transition struct {
		job      domain.Job
		previous domain.JobStatus
		next     domain.JobStatus
	}

	p.mu.Lock()
	transitions := make([]transition, 0, len(results))
	for _, result := range results {
		job, watched := p.jobs[result.jobID]
		if !watched {
			// Dropped mid-tick, e.g. its document was deleted.
			continue
		}
		if result.err != nil {
			p.logf("poll failed job_id=%d err=%v", result.jobID, result.err)
			continue
		}
		if job.Status == result.status {
			continue
		}
		if !domain.ForwardTransition(job.Status, result.status) {
			p.logf("ignoring status regression job_id=%d from=%s to=%s", result.jobID, job.Status, result.status)
			continue
		}
		previous := job.Status
		job.Status = result.status
		job.UpdatedAt = time.Now().UTC()
		p.jobs[result.jobID] = job
		transitions = append(transitions, transition{job: job.Clone(), previous: previous, next: result.status})
	}
	hooks := p.hooks
	outstanding := p.outstandingLocked()
	p.mu.Unlock()

	for _, tr := range transitions {
		for _, hook := range hooks {
			hook(tr.job, tr.previous, tr.next)
		}
	}

	if !outstanding {
		p.scheduler.Stop()
	}
}

func (p *Poller) outstandingLocked() bool {
	for _, job := range p.jobs {
		if job.Status.Outstanding() {
			return true
		}
	}
	return false
}

func (p *Poller) logf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}
