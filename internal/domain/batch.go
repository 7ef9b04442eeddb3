package domain

// SubmissionResult is the outcome of one document's submission within a
// batch, in input order.
type SubmissionResult struct {
	DocumentCode string
	JobID        int64
	Err          string
}

func (r SubmissionResult) Succeeded() bool {
	return r.Err == ""
}

// SubmissionFailure names one failed document and the reason.
type SubmissionFailure struct {
	DocumentCode string
	Reason       string
}

// BatchSubmission aggregates the outcomes of one submit action. It is
// ephemeral client state, never persisted.
type BatchSubmission struct {
	Total     int
	Results   []SubmissionResult
	Succeeded []int64
	Failed    []SubmissionFailure
}

// NewBatchSubmission derives the succeeded/failed views from per-item
// results, preserving input order.
func NewBatchSubmission(results []SubmissionResult) BatchSubmission {
	batch := BatchSubmission{
		Total:   len(results),
		Results: results,
	}
	for _, result := range results {
		if result.Succeeded() {
			batch.Succeeded = append(batch.Succeeded, result.JobID)
			continue
		}
		batch.Failed = append(batch.Failed, SubmissionFailure{
			DocumentCode: result.DocumentCode,
			Reason:       result.Err,
		})
	}
	return batch
}
