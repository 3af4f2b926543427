// Package workflow drives a purchase request through its approval chain.
//
// Progress is not stored anywhere: the current step is always the first
// PENDING entry of PurchaseRequest.Approvals, recomputed on every call.
// All functions take the request by value and return a modified copy, so a
// failed call never leaves a half-applied change behind.
package workflow

import (
	"fmt"
	"strings"
	"time"

	"procurement/internal/models"
)

// Submit freezes the workflow snapshot into the request and sends it for approval.
func Submit(req models.PurchaseRequest, snapshot models.WorkflowSnapshot, at time.Time) (models.PurchaseRequest, error) {
	if req.Status != models.RequestDraft {
		return req, fmt.Errorf("workflow.Submit: %w", models.ErrNotDraft)
	}
	if len(req.Items) == 0 {
		return req, fmt.Errorf("workflow.Submit: %w", models.ErrEmptyItems)
	}
	if len(snapshot.Roles) == 0 {
		return req, fmt.Errorf("workflow.Submit: %w", models.ErrEmptyWorkflow)
	}

	out := req.Clone()
	out.Approvals = make([]models.ApprovalStep, 0, len(snapshot.Roles))
	for _, roleId := range snapshot.Roles {
		out.Approvals = append(out.Approvals, models.ApprovalStep{RoleId: roleId, Status: models.StepPending})
	}
	out.Status = models.RequestPendingApproval
	out.WorkflowVersion = snapshot.Version
	submitted := at
	out.SubmittedAt = &submitted

	return out, nil
}

// FindCurrentStep returns the index of the step awaiting a decision. ok is false
// when every step is approved, when there are no steps, or when any step was
// rejected.
func FindCurrentStep(req models.PurchaseRequest) (index int, ok bool) {
	index = -1
	for i, step := range req.Approvals {
		switch step.Status {
		case models.StepRejected:
			return -1, false
		case models.StepPending:
			if index < 0 {
				index = i
			}
		}
	}
	return index, index >= 0
}

// PendingRole returns the role expected to act next.
func PendingRole(req models.PurchaseRequest) (string, bool) {
	if req.Status != models.RequestPendingApproval {
		return "", false
	}
	i, ok := FindCurrentStep(req)
	if !ok {
		return "", false
	}
	return req.Approvals[i].RoleId, true
}

// CanAct reports whether an actor holding roleId may decide the current step.
func CanAct(req models.PurchaseRequest, roleId string) bool {
	role, ok := PendingRole(req)
	return ok && roleId != "" && role == roleId
}

// Approve resolves the current step as approved. Approving the last step
// approves the whole request.
func Approve(req models.PurchaseRequest, actor models.Actor, at time.Time) (models.PurchaseRequest, error) {
	i, err := actionableStep(req, actor)
	if err != nil {
		return req, fmt.Errorf("workflow.Approve: %w", err)
	}

	out := req.Clone()
	out.Approvals[i] = decide(out.Approvals[i], models.StepApproved, actor, at, "")
	if i == len(out.Approvals)-1 {
		out.Status = models.RequestApproved
	}

	return out, nil
}

// Reject resolves the current step as rejected and closes the request. Steps
// after it stay PENDING: those approvers never got a turn.
func Reject(req models.PurchaseRequest, actor models.Actor, comments string, at time.Time) (models.PurchaseRequest, error) {
	comments = strings.TrimSpace(comments)
	if comments == "" {
		return req, fmt.Errorf("workflow.Reject: %w", models.ErrEmptyComments)
	}

	i, err := actionableStep(req, actor)
	if err != nil {
		return req, fmt.Errorf("workflow.Reject: %w", err)
	}

	out := req.Clone()
	out.Approvals[i] = decide(out.Approvals[i], models.StepRejected, actor, at, comments)
	out.Status = models.RequestRejected

	return out, nil
}

func actionableStep(req models.PurchaseRequest, actor models.Actor) (int, error) {
	if req.Status != models.RequestPendingApproval {
		return -1, models.ErrNotPendingApproval
	}
	i, ok := FindCurrentStep(req)
	if !ok {
		return -1, models.ErrNotPendingApproval
	}
	if actor.RoleId == "" || req.Approvals[i].RoleId != actor.RoleId {
		return -1, fmt.Errorf("%w: step %d requires role '%s'", models.ErrNotYourStep, i, req.Approvals[i].RoleId)
	}
	return i, nil
}

func decide(step models.ApprovalStep, status models.StepStatus, actor models.Actor, at time.Time, comments string) models.ApprovalStep {
	date := at
	step.Status = status
	step.ActorId = actor.Id
	step.ActorName = actor.Name
	step.Date = &date
	step.Comments = comments
	return step
}
