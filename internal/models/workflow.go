package models

import "time"

// WorkflowSnapshot is one immutable version of the approval chain. Requests copy
// Roles at submission and never look at the registry again.
type WorkflowSnapshot struct {
	Version   int       `json:"version"`
	Roles     []string  `json:"roles"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// RolesCopy returns the role chain as a fresh slice.
func (w WorkflowSnapshot) RolesCopy() []string {
	roles := make([]string, len(w.Roles))
	copy(roles, w.Roles)
	return roles
}
