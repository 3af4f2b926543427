package models

import "time"

type EventAction string

const (
	EventCreated      EventAction = "created"
	EventEdited       EventAction = "edited"
	EventSubmitted    EventAction = "submitted"
	EventApproved     EventAction = "approved"
	EventRejected     EventAction = "rejected"
	EventQuoted       EventAction = "quoted"
	EventAwarded      EventAction = "awarded"
	EventOrderUpdated EventAction = "order_updated"
)

// RequestEvent is an append-only audit record of a purchase request.
type RequestEvent struct {
	Id           string        `json:"id"`
	RequestId    string        `json:"requestId"`
	Action       EventAction   `json:"action"`
	ActorId      string        `json:"actorId"`
	ActorName    string        `json:"actorName,omitempty"`
	StatusBefore RequestStatus `json:"statusBefore"`
	StatusAfter  RequestStatus `json:"statusAfter"`
	Comments     string        `json:"comments,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}
