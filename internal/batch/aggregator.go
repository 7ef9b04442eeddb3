// Package batch summarizes submission outcomes and decides what the user
// sees next.
package batch

import (
	"fmt"
	"strings"

	"github.com/fadehq/redact-client/internal/domain"
)

type OutcomeKind string

const (
	OutcomeAllSucceeded   OutcomeKind = "all_succeeded"
	OutcomePartialSuccess OutcomeKind = "partial_success"
	OutcomeAllFailed      OutcomeKind = "all_failed"
)

type NavigationKind string

const (
	// NavigatePreview routes to the preview of the single accepted job.
	NavigatePreview NavigationKind = "preview"
	// NavigateDocumentList clears batch selection and returns to the list.
	NavigateDocumentList NavigationKind = "document_list"
	// NavigateStay keeps the user where failures can be shown.
	NavigateStay NavigationKind = "stay"
)

type Navigation struct {
	Kind  NavigationKind
	JobID int64
}

// Outcome is the user-visible summary of one batch submission.
type Outcome struct {
	Kind      OutcomeKind
	Succeeded int
	Total     int
	JobIDs    []int64
	Failed    []domain.SubmissionFailure
}

// Summarize folds a batch submission into one of the three outcomes.
func Summarize(submission domain.BatchSubmission) Outcome {
	outcome := Outcome{
		Succeeded: len(submission.Succeeded),
		Total:     submission.Total,
		JobIDs:    submission.Succeeded,
		Failed:    submission.Failed,
	}
	switch {
	case submission.Total > 0 && len(submission.Failed) == 0:
		outcome.Kind = OutcomeAllSucceeded
	case len(submission.Succeeded) == 0:
		outcome.Kind = OutcomeAllFailed
	default:
		outcome.Kind = OutcomePartialSuccess
	}
	return outcome
}

// Next decides the follow-up navigation.
func (o Outcome) Next() Navigation {
	if o.Kind == OutcomeAllSucceeded {
		if o.Total == 1 && len(o.JobIDs) == 1 {
			return Navigation{Kind: NavigatePreview, JobID: o.JobIDs[0]}
		}
		return Navigation{Kind: NavigateDocumentList}
	}
	return Navigation{Kind: NavigateStay}
}

// Message renders the outcome with the specific failing documents named;
// partial information is never collapsed into a generic error.
func (o Outcome) Message() string {
	switch o.Kind {
	case OutcomeAllSucceeded:
		if o.Total == 1 {
			return "document submitted for redaction"
		}
		return fmt.Sprintf("all %d documents submitted for redaction", o.Total)
	case OutcomeAllFailed:
		return fmt.Sprintf("all submissions failed: %s", describeFailures(o.Failed))
	default:
		return fmt.Sprintf("%d of %d documents submitted; failed: %s", o.Succeeded, o.Total, describeFailures(o.Failed))
	}
}

func describeFailures(failures []domain.SubmissionFailure) string {
	parts := make([]string, 0, len(failures))
	for _, failure := range failures {
		parts = append(parts, fmt.Sprintf("%s (%s)", failure.DocumentCode, failure.Reason))
	}
	return strings.Join(parts, ", ")
}
