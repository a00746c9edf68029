package audit

import "time"

// Status represents the audit lifecycle.
//
//	pending -> in_process -> evaluated          (happy path)
//	in_process -> pending                       (release, expiry, force-unlock)
//	pending -> misconfigured                    (no active question set; terminal)
type Status string

const (
	StatusPending       Status = "pending"
	StatusInProcess     Status = "in_process"
	StatusEvaluated     Status = "evaluated"
	StatusMisconfigured Status = "misconfigured"
)

// Terminal reports whether the lock manager may still move this status.
func (s Status) Terminal() bool {
	return s == StatusEvaluated || s == StatusMisconfigured
}

// Audit mirrors the audit_queue table. LockedBy is non-nil exactly while an
// analyst holds an unexpired claim on the record.
type Audit struct {
	AuditID         string
	TaskID          string
	ReferenceNumber string
	Status          Status
	AgentEmail      string
	RequestType     string
	TaskType        string
	Outcome         string
	TaskTimestamp   *time.Time
	AuditTimestamp  time.Time
	LockedBy        *string
	LockedAt        *time.Time
}

// StaleLock identifies one candidate for reaping: the audit plus the lock
// timestamp observed during the scan. The reap write is conditioned on that
// exact timestamp still being current.
type StaleLock struct {
	AuditID  string
	LockedBy string
	LockedAt time.Time
}
