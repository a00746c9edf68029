package evaluation

import "time"

// Status represents the evaluation lifecycle. Completed evaluations may be
// disputed; the dispute workflow moves them through reviewing to resolved.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusDisputed  Status = "disputed"
	StatusReviewing Status = "reviewing"
	StatusResolved  Status = "resolved"
)

// Response is the binary per-question judgment. Scoring is strictly binary:
// yes earns the full points possible, no earns zero.
type Response string

const (
	ResponseYes Response = "yes"
	ResponseNo  Response = "no"
)

// Detail is one answered question within an evaluation. QuestionText is a
// snapshot taken at submission time, not a live reference to the catalog.
type Detail struct {
	ID             string
	EvalID         string
	QuestionID     string
	QuestionText   string
	Response       Response
	PointsEarned   int
	PointsPossible int
	Feedback       string
}

// Evaluation mirrors the eval_summary table plus its detail rows. The audit
// linkage is SourceAuditID everywhere; the summary totals always equal the
// sums over Questions.
type Evaluation struct {
	ID                  string
	SourceAuditID       string
	ReferenceNumber     string
	TaskType            string
	Outcome             string
	QAEmail             string
	StartTimestamp      time.Time
	StopTimestamp       time.Time
	TotalPoints         int
	TotalPointsPossible int
	Status              Status
	Feedback            string
	EvalScore           float64
	Questions           []Detail
}

// ResponseInput is one submitted answer.
type ResponseInput struct {
	QuestionID string
	Response   Response
	Feedback   string
}

// SubmitParams carries a completed question-response set for scoring.
type SubmitParams struct {
	AuditID        string
	QAEmail        string
	Feedback       string
	StartTimestamp time.Time
	Responses      []ResponseInput
}
