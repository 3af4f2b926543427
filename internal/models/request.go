package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RequestStatus string

const (
	RequestDraft           RequestStatus = "DRAFT"
	RequestPendingApproval RequestStatus = "PENDING_APPROVAL"
	RequestApproved        RequestStatus = "APPROVED"
	RequestRejected        RequestStatus = "REJECTED"
	RequestAwarded         RequestStatus = "AWARDED"
)

func ValidRequestStatus(s RequestStatus) bool {
	switch s {
	case RequestDraft, RequestPendingApproval, RequestApproved, RequestRejected, RequestAwarded:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further status transition exists.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestRejected || s == RequestAwarded
}

type StepStatus string

const (
	StepPending  StepStatus = "PENDING"
	StepApproved StepStatus = "APPROVED"
	StepRejected StepStatus = "REJECTED"
)

// ApprovalStep is one role's checkpoint. Its position in PurchaseRequest.Approvals
// is its place in the chain.
type ApprovalStep struct {
	RoleId    string     `json:"roleId"`
	Status    StepStatus `json:"status"`
	ActorId   string     `json:"actorId,omitempty"`
	ActorName string     `json:"actorName,omitempty"`
	Date      *time.Time `json:"date,omitempty"`
	Comments  string     `json:"comments,omitempty"`
}

type RequestItem struct {
	ItemId      string          `json:"itemId"`
	Description string          `json:"description,omitempty"`
	Unit        string          `json:"unit,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
}

type PurchaseRequest struct {
	Id              string         `json:"id"`
	Version         int            `json:"version"`
	RequesterId     string         `json:"requesterId"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Currency        string         `json:"currency"`
	Status          RequestStatus  `json:"status"`
	Items           []RequestItem  `json:"items"`
	Approvals       []ApprovalStep `json:"approvals"`
	WorkflowVersion int            `json:"workflowVersion,omitempty"`
	SubmittedAt     *time.Time     `json:"submittedAt,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// Item looks up a line item by its id.
func (r PurchaseRequest) Item(itemId string) (RequestItem, bool) {
	for _, item := range r.Items {
		if item.ItemId == itemId {
			return item, true
		}
	}
	return RequestItem{}, false
}

// Clone returns a copy that shares no slices with r.
func (r PurchaseRequest) Clone() PurchaseRequest {
	c := r
	if r.Items != nil {
		c.Items = make([]RequestItem, len(r.Items))
		copy(c.Items, r.Items)
	}
	if r.Approvals != nil {
		c.Approvals = make([]ApprovalStep, len(r.Approvals))
		copy(c.Approvals, r.Approvals)
	}
	if r.SubmittedAt != nil {
		t := *r.SubmittedAt
		c.SubmittedAt = &t
	}
	return c
}

// RequestFilter narrows request listings. Zero fields do not filter.
type RequestFilter struct {
	RequestId   string
	RequesterId string
	Statuses    []RequestStatus
}

// CurrentStep describes who acts next on a request. Index is -1 and Step is
// nil when nobody does.
type CurrentStep struct {
	RequestId string        `json:"requestId"`
	Status    RequestStatus `json:"status"`
	Index     int           `json:"index"`
	Step      *ApprovalStep `json:"step"`
}
