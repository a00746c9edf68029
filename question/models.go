package question

import "time"

// Question is one scored rubric item belonging to the question set for a
// (requestType, taskType) pair.
type Question struct {
	ID             string
	SetID          string
	RequestType    string
	TaskType       string
	SequenceID     int
	Text           string
	PointsPossible int
	Active         bool
	CreatedBy      string
	CreatedAt      time.Time
}

// CreateParams enumerates the fields required to add a question.
type CreateParams struct {
	SetID          string
	RequestType    string
	TaskType       string
	SequenceID     int
	Text           string
	PointsPossible int
	CreatedBy      string
}

// UpdateParams carries the editable fields of an existing question.
type UpdateParams struct {
	ID             string
	SequenceID     int
	Text           string
	PointsPossible int
	Active         bool
}
