package user

import "time"

// Role classifies what a directory member may do in the workflow.
type Role string

const (
	RoleQAAnalyst Role = "qa_analyst"
	RoleReviewer  Role = "qa_reviewer"
	RoleAgent     Role = "agent"
	RoleAdmin     Role = "admin"
)

func ValidRole(r Role) bool {
	switch r {
	case RoleQAAnalyst, RoleReviewer, RoleAgent, RoleAdmin:
		return true
	default:
		return false
	}
}

// User mirrors the users table.
type User struct {
	ID           string
	Name         string
	Email        string
	ManagerEmail string
	Role         Role
	CreatedBy    string
	CreatedAt    time.Time
}

// CreateParams enumerates the fields required to add a directory entry.
type CreateParams struct {
	Name         string
	Email        string
	ManagerEmail string
	Role         Role
	CreatedBy    string
}
