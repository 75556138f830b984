package services

import "errors"

// Pipeline error taxonomy. Handlers map these onto HTTP statuses; the
// orchestrator decides which are retryable.
var (
	// ErrInvalidInput marks feedback text rejected before pipeline entry
	// (empty or over the configured length). Never retried.
	ErrInvalidInput = errors.New("invalid feedback input")

	// ErrAnalysisUnavailable means the completion service stayed unreachable
	// or rate-limited after the backoff budget. The item is requeued, never
	// discarded.
	ErrAnalysisUnavailable = errors.New("analysis service unavailable")

	// ErrSchemaValidation marks a model reply that failed structural
	// validation. Internal to the analyzer: after the strict retry it is
	// degraded to a low-confidence draft, not surfaced as a hard error.
	ErrSchemaValidation = errors.New("model reply failed schema validation")

	// ErrReviewClaimConflict is returned to the losing reviewer when two
	// claims race for the same pending analysis.
	ErrReviewClaimConflict = errors.New("analysis already claimed for review")

	// ErrReviewStateTerminal guards the state machine: no transition leaves
	// auto_accepted or reviewed.
	ErrReviewStateTerminal = errors.New("analysis review state is terminal")

	// ErrNotPendingReview is returned when claiming or resolving an analysis
	// that was never routed to review.
	ErrNotPendingReview = errors.New("analysis is not pending review")
)
