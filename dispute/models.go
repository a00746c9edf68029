package dispute

import "time"

// Status represents the dispute lifecycle. pending and reviewing are the
// active states; everything else is terminal.
type Status string

const (
	StatusPending         Status = "pending"
	StatusReviewing       Status = "reviewing"
	StatusOverturned      Status = "overturned"
	StatusUpheld          Status = "upheld"
	StatusPartialOverturn Status = "partial overturn"
	StatusResolved        Status = "resolved"
)

// Terminal reports whether the dispute has been closed. Only terminal
// disputes stop blocking a new filing against the same evaluation.
func (s Status) Terminal() bool {
	return s != StatusPending && s != StatusReviewing
}

// Dispute is an agent's challenge against specific questions of an evaluation.
type Dispute struct {
	ID                  string
	EvalID              string
	UserEmail           string
	DisputeTimestamp    time.Time
	Reason              string
	QuestionIDs         []string
	Status              Status
	ResolutionNotes     string
	ResolvedBy          *string
	ResolutionTimestamp *time.Time
}

// Resolution is the per-question verdict of a review.
type Resolution string

const (
	ResolutionOverturned Resolution = "overturned"
	ResolutionUpheld     Resolution = "upheld"
)

// Decision applies one verdict to one evaluation-detail row. Note lands in
// the row's feedback field regardless of the verdict.
type Decision struct {
	QuestionID string
	Resolution Resolution
	Note       string
}

// ResolveParams closes a dispute and recomputes its evaluation.
type ResolveParams struct {
	DisputeID       string
	Decisions       []Decision
	ResolutionNotes string
	FinalStatus     Status
	ResolvedBy      string
}

// ReviewResult is the non-exception outcome of BeginReview: a double-open is
// reported, not thrown.
type ReviewResult struct {
	OK     bool
	Reason string
}

// Stats summarizes closed disputes for the dashboard.
type Stats struct {
	Total            int
	PartialOverturns int
	Overturned       int
	Upheld           int
}
