package httpapi

import (
	"time"

	"qaflow/audit"
	"qaflow/dispute"
	"qaflow/evaluation"
	"qaflow/question"
	"qaflow/user"
)

// Field names below are the persisted schema contract other tooling reads;
// keep them in sync with the table columns.

type auditOut struct {
	AuditID         string     `json:"auditId"`
	TaskID          string     `json:"taskId"`
	ReferenceNumber string     `json:"referenceNumber"`
	AuditStatus     string     `json:"auditStatus"`
	AgentEmail      string     `json:"agentEmail"`
	RequestType     string     `json:"requestType"`
	TaskType        string     `json:"taskType"`
	Outcome         string     `json:"outcome"`
	TaskTimestamp   *time.Time `json:"taskTimestamp,omitempty"`
	AuditTimestamp  time.Time  `json:"auditTimestamp"`
	LockedBy        *string    `json:"lockedBy,omitempty"`
	LockedAt        *time.Time `json:"lockedAt,omitempty"`
}

func toAuditOut(a audit.Audit) auditOut {
	return auditOut{
		AuditID:         a.AuditID,
		TaskID:          a.TaskID,
		ReferenceNumber: a.ReferenceNumber,
		AuditStatus:     string(a.Status),
		AgentEmail:      a.AgentEmail,
		RequestType:     a.RequestType,
		TaskType:        a.TaskType,
		Outcome:         a.Outcome,
		TaskTimestamp:   a.TaskTimestamp,
		AuditTimestamp:  a.AuditTimestamp,
		LockedBy:        a.LockedBy,
		LockedAt:        a.LockedAt,
	}
}

func toAuditsOut(as []audit.Audit) []auditOut {
	out := make([]auditOut, 0, len(as))
	for _, a := range as {
		out = append(out, toAuditOut(a))
	}
	return out
}

type questionOut struct {
	ID             string `json:"id"`
	SetID          string `json:"setId"`
	RequestType    string `json:"requestType"`
	TaskType       string `json:"taskType"`
	SequenceID     int    `json:"sequenceId"`
	QuestionText   string `json:"questionText"`
	PointsPossible int    `json:"pointsPossible"`
	Active         bool   `json:"active"`
	CreatedBy      string `json:"createdBy"`
}

func toQuestionOut(q question.Question) questionOut {
	return questionOut{
		ID:             q.ID,
		SetID:          q.SetID,
		RequestType:    q.RequestType,
		TaskType:       q.TaskType,
		SequenceID:     q.SequenceID,
		QuestionText:   q.Text,
		PointsPossible: q.PointsPossible,
		Active:         q.Active,
		CreatedBy:      q.CreatedBy,
	}
}

func toQuestionsOut(qs []question.Question) []questionOut {
	out := make([]questionOut, 0, len(qs))
	for _, q := range qs {
		out = append(out, toQuestionOut(q))
	}
	return out
}

type detailOut struct {
	ID             string `json:"id"`
	QuestionID     string `json:"questionId"`
	QuestionText   string `json:"questionText"`
	Response       string `json:"response"`
	PointsEarned   int    `json:"pointsEarned"`
	PointsPossible int    `json:"pointsPossible"`
	Feedback       string `json:"feedback"`
}

type evaluationOut struct {
	ID                  string      `json:"id"`
	SourceAuditID       string      `json:"sourceAuditId"`
	ReferenceNumber     string      `json:"referenceNumber"`
	TaskType            string      `json:"taskType"`
	Outcome             string      `json:"outcome"`
	QAEmail             string      `json:"qaEmail"`
	StartTimestamp      time.Time   `json:"startTimestamp"`
	StopTimestamp       time.Time   `json:"stopTimestamp"`
	TotalPoints         int         `json:"totalPoints"`
	TotalPointsPossible int         `json:"totalPointsPossible"`
	Status              string      `json:"status"`
	Feedback            string      `json:"feedback"`
	EvalScore           float64     `json:"evalScore"`
	Questions           []detailOut `json:"questions"`
}

func toEvaluationOut(e evaluation.Evaluation) evaluationOut {
	details := make([]detailOut, 0, len(e.Questions))
	for _, d := range e.Questions {
		details = append(details, detailOut{
			ID:             d.ID,
			QuestionID:     d.QuestionID,
			QuestionText:   d.QuestionText,
			Response:       string(d.Response),
			PointsEarned:   d.PointsEarned,
			PointsPossible: d.PointsPossible,
			Feedback:       d.Feedback,
		})
	}
	return evaluationOut{
		ID:                  e.ID,
		SourceAuditID:       e.SourceAuditID,
		ReferenceNumber:     e.ReferenceNumber,
		TaskType:            e.TaskType,
		Outcome:             e.Outcome,
		QAEmail:             e.QAEmail,
		StartTimestamp:      e.StartTimestamp,
		StopTimestamp:       e.StopTimestamp,
		TotalPoints:         e.TotalPoints,
		TotalPointsPossible: e.TotalPointsPossible,
		Status:              string(e.Status),
		Feedback:            e.Feedback,
		EvalScore:           e.EvalScore,
		Questions:           details,
	}
}

type disputeOut struct {
	ID                  string     `json:"id"`
	EvalID              string     `json:"evalId"`
	UserEmail           string     `json:"userEmail"`
	DisputeTimestamp    time.Time  `json:"disputeTimestamp"`
	Reason              string     `json:"reason"`
	QuestionIDs         []string   `json:"questionIds"`
	Status              string     `json:"status"`
	ResolutionNotes     string     `json:"resolutionNotes"`
	ResolvedBy          *string    `json:"resolvedBy,omitempty"`
	ResolutionTimestamp *time.Time `json:"resolutionTimestamp,omitempty"`
}

func toDisputeOut(d dispute.Dispute) disputeOut {
	return disputeOut{
		ID:                  d.ID,
		EvalID:              d.EvalID,
		UserEmail:           d.UserEmail,
		DisputeTimestamp:    d.DisputeTimestamp,
		Reason:              d.Reason,
		QuestionIDs:         d.QuestionIDs,
		Status:              string(d.Status),
		ResolutionNotes:     d.ResolutionNotes,
		ResolvedBy:          d.ResolvedBy,
		ResolutionTimestamp: d.ResolutionTimestamp,
	}
}

type userOut struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	ManagerEmail string `json:"managerEmail"`
	Role         string `json:"role"`
}

func toUserOut(u user.User) userOut {
	return userOut{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		ManagerEmail: u.ManagerEmail,
		Role:         string(u.Role),
	}
}
