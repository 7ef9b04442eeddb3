// Package submit fans redaction requests out to the backend with per-item
// isolation: one failing document never aborts the rest of the batch.
package submit

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fadehq/redact-client/internal/domain"
	"github.com/fadehq/redact-client/internal/history"
)

// ErrNoDocuments rejects a batch with nothing to submit, before any
// network call.
var ErrNoDocuments = errors.New("no documents selected")

// Backend covers the two submission endpoints. Reprocess uses a separate
// endpoint but returns the same shape.
type Backend interface {
	SubmitJob(ctx context.Context, documentCode string, config domain.RedactionConfig) (domain.Job, error)
	ReprocessJob(ctx context.Context, documentCode string, config domain.RedactionConfig) (domain.Job, error)
}

// Watcher receives every accepted job the moment its id is known, so
// status tracking begins without a race window.
type Watcher interface {
	Watch(job domain.Job)
}

type Config struct {
	// MaxInFlight bounds concurrent submissions. Server-side rate limits
	// are unknown, so the fan-out is bounded and configurable rather than
	// unlimited.
	MaxInFlight int
	RPS         float64
	Burst       int
	Logger      *log.Logger
	Audit       history.Repository
}

type Submitter struct {
	backend     Backend
	watcher     Watcher
	audit       history.Repository
	limiter     *rate.Limiter
	maxInFlight int
	logger      *log.Logger
}

func New(backend Backend, watcher Watcher, config Config) *Submitter {
	if config.MaxInFlight <= 0 {
		config.MaxInFlight = 4
	}
	if config.RPS <= 0 {
		config.RPS = 10
	}
	if config.Burst <= 0 {
		config.Burst = int(config.RPS)
	}
	return &Submitter{
		backend:     backend,
		watcher:     watcher,
		audit:       config.Audit,
		limiter:     rate.NewLimiter(rate.Limit(config.RPS), config.Burst),
		maxInFlight: config.MaxInFlight,
		logger:      config.Logger,
	}
}

// SubmitBatch issues one submission per document code. Outcomes are
// collected, never short-circuited, and the result ordering matches the
// input ordering for deterministic reporting.
func (s *Submitter) SubmitBatch(ctx context.Context, documentCodes []string, config domain.RedactionConfig) (domain.BatchSubmission, error) {
	return s.submitAll(ctx, documentCodes, config, s.backend.SubmitJob)
}

// ResubmitBatch is SubmitBatch against the reprocess endpoint. Each
// accepted resubmission is a new job; prior jobs keep their history.
func (s *Submitter) ResubmitBatch(ctx context.Context, documentCodes []string, config domain.RedactionConfig) (domain.BatchSubmission, error) {
	return s.submitAll(ctx, documentCodes, config, s.backend.ReprocessJob)
}

func (s *Submitter) submitAll(
	ctx context.Context,
	documentCodes []string,
	config domain.RedactionConfig,
	send func(context.Context, string, domain.RedactionConfig) (domain.Job, error),
) (domain.BatchSubmission, error) {
	if len(documentCodes) == 0 {
		return domain.BatchSubmission{}, ErrNoDocuments
	}
	if config.ActiveFieldCount() == 0 {
		return domain.BatchSubmission{}, errors.New("config redacts no fields")
	}

	results := make([]domain.SubmissionResult, len(documentCodes))
	var group errgroup.Group
	group.SetLimit(s.maxInFlight)
	for i, documentCode := range documentCodes {
		i, documentCode := i, documentCode
		group.Go(func() error {
			results[i] = s.submitOne(ctx, documentCode, config, send)
			return nil
		})
	}
	_ = group.Wait()

	return domain.NewBatchSubmission(results), nil
}

func (s *Submitter) submitOne(
	ctx context.Context,
	documentCode string,
	config domain.RedactionConfig,
	send func(context.Context, string, domain.RedactionConfig) (domain.Job, error),
) domain.SubmissionResult {
	result := domain.SubmissionResult{DocumentCode: documentCode}

	if err := s.limiter.Wait(ctx); err != nil {
		result.Err = err.Error()
		return result
	}

	job, err := send(ctx, documentCode, config)
	if err != nil {
		s.logf("submission failed document=%s err=%v", documentCode, err)
		result.Err = err.Error()
		s.record(ctx, history.Record{
			DocumentCode: documentCode,
			ConfigHash:   config.Hash(),
			Event:        history.EventSubmissionFailed,
			Detail:       err.Error(),
		})
		return result
	}

	// Register with the poller before reporting back, so tracking starts
	// the instant the id exists.
	if s.watcher != nil {
		s.watcher.Watch(job)
	}
	result.JobID = job.ID
	s.record(ctx, history.Record{
		JobID:        job.ID,
		DocumentCode: documentCode,
		ConfigHash:   config.Hash(),
		Event:        history.EventSubmitted,
	})
	return result
}

func (s *Submitter) record(ctx context.Context, record history.Record) {
	if s.audit == nil {
		return
	}
	record.ID = uuid.NewString()
	record.CreatedAt = time.Now().UTC()
	if err := s.audit.Append(ctx, record); err != nil {
		s.logf("audit append failed document=%s err=%v", record.DocumentCode, err)
	}
}

func (s *Submitter) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
