package service

import (
	"context"
	"fmt"
	"strings"

	"procurement/internal/models"
	"procurement/internal/workflow"
)

// RequestChanges holds the editable fields of a draft. Nil fields stay as they are.
type RequestChanges struct {
	Title       *string
	Description *string
	Currency    *string
	Items       *[]models.RequestItem
}

func (s *Service) AddRequest(ctx context.Context, username string, req models.PurchaseRequest) (models.PurchaseRequest, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return req, fmt.Errorf("service.Service.AddRequest: %w", err)
	}

	draft := models.PurchaseRequest{
		RequesterId: user.Id,
		Title:       req.Title,
		Description: req.Description,
		Currency:    req.Currency,
		Status:      models.RequestDraft,
		Items:       req.Items,
		Approvals:   []models.ApprovalStep{},
	}
	if draft.Items == nil {
		draft.Items = []models.RequestItem{}
	}

	draft, err = workflow.CheckDraft(draft)
	if err != nil {
		return req, fmt.Errorf("service.Service.AddRequest: %w", err)
	}

	added, err := s.repo.AddRequest(ctx, draft, event(models.EventCreated, user, "", models.RequestDraft, ""))
	if err != nil {
		return req, fmt.Errorf("service.Service.AddRequest: %w", err)
	}

	s.log.Info().Str("request_id", added.Id).Str("username", username).Msg("purchase request created")
	return added, nil
}

func (s *Service) GetRequest(ctx context.Context, requestId string) (models.PurchaseRequest, error) {
	req, err := s.repo.GetRequestByUUID(ctx, requestId)
	if err != nil {
		return req, fmt.Errorf("service.Service.GetRequest: %w", err)
	}
	return req, nil
}

// GetRequests lists requests, newest first. With mine set only requests of
// username are returned.
func (s *Service) GetRequests(ctx context.Context, username string, mine bool, statuses []models.RequestStatus, limit, offset int) ([]models.PurchaseRequest, error) {
	filter := models.RequestFilter{Statuses: statuses}

	if mine {
		user, err := s.userByUsername(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("service.Service.GetRequests: %w", err)
		}
		filter.RequesterId = user.Id
	}

	for _, status := range statuses {
		if !models.ValidRequestStatus(status) {
			return nil, fmt.Errorf("service.Service.GetRequests: %w", models.Invalidf("status", "unknown status '%s'", status))
		}
	}

	reqs, err := s.repo.GetRequests(ctx, limit, offset, filter)
	if err != nil {
		return nil, fmt.Errorf("service.Service.GetRequests: %w", err)
	}
	return reqs, nil
}

func (s *Service) EditRequest(ctx context.Context, username, requestId string, changes RequestChanges) (models.PurchaseRequest, error) {
	user, req, err := s.requesterAndRequest(ctx, username, requestId)
	if err != nil {
		return req, fmt.Errorf("service.Service.EditRequest: %w", err)
	}
	if req.Status != models.RequestDraft {
		return req, fmt.Errorf("service.Service.EditRequest: %w", models.ErrNotDraft)
	}

	edited := req.Clone()
	if changes.Title != nil {
		edited.Title = *changes.Title
	}
	if changes.Description != nil {
		edited.Description = *changes.Description
	}
	if changes.Currency != nil {
		edited.Currency = *changes.Currency
	}
	if changes.Items != nil {
		edited.Items = append([]models.RequestItem{}, (*changes.Items)...)
	}

	edited, err = workflow.CheckDraft(edited)
	if err != nil {
		return req, fmt.Errorf("service.Service.EditRequest: %w", err)
	}
	edited.UpdatedAt = s.now()

	edited, err = s.repo.UpdateRequest(ctx, edited, event(models.EventEdited, user, req.Status, edited.Status, ""))
	if err != nil {
		return req, fmt.Errorf("service.Service.EditRequest: %w", err)
	}

	s.log.Info().Str("request_id", requestId).Int("version", edited.Version).Msg("purchase request edited")
	return edited, nil
}

func (s *Service) SubmitRequest(ctx context.Context, username, requestId string) (models.PurchaseRequest, error) {
	user, req, err := s.requesterAndRequest(ctx, username, requestId)
	if err != nil {
		return req, fmt.Errorf("service.Service.SubmitRequest: %w", err)
	}

	w, ok, err := s.repo.CurrentWorkflow(ctx)
	if err != nil {
		return req, fmt.Errorf("service.Service.SubmitRequest: %w", err)
	}
	if !ok {
		w = models.WorkflowSnapshot{}
	}

	submitted, err := workflow.Submit(req, w, s.now())
	if err != nil {
		return req, fmt.Errorf("service.Service.SubmitRequest: %w", err)
	}

	submitted, err = s.repo.UpdateRequest(ctx, submitted, event(models.EventSubmitted, user, req.Status, submitted.Status, ""))
	if err != nil {
		return req, fmt.Errorf("service.Service.SubmitRequest: %w", err)
	}

	s.log.Info().Str("request_id", requestId).Int("workflow_version", submitted.WorkflowVersion).Int("steps", len(submitted.Approvals)).Msg("purchase request submitted")
	return submitted, nil
}

func (s *Service) CurrentStep(ctx context.Context, requestId string) (models.CurrentStep, error) {
	req, err := s.repo.GetRequestByUUID(ctx, requestId)
	if err != nil {
		return models.CurrentStep{}, fmt.Errorf("service.Service.CurrentStep: %w", err)
	}

	current := models.CurrentStep{RequestId: req.Id, Status: req.Status, Index: -1}
	if req.Status != models.RequestPendingApproval {
		return current, nil
	}
	if i, ok := workflow.FindCurrentStep(req); ok {
		step := req.Approvals[i]
		current.Index = i
		current.Step = &step
	}
	return current, nil
}

func (s *Service) ApproveRequest(ctx context.Context, username, requestId string) (models.PurchaseRequest, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return models.PurchaseRequest{}, fmt.Errorf("service.Service.ApproveRequest: %w", err)
	}
	req, err := s.repo.GetRequestByUUID(ctx, requestId)
	if err != nil {
		return req, fmt.Errorf("service.Service.ApproveRequest: %w", err)
	}

	approved, err := workflow.Approve(req, user.Actor(), s.now())
	if err != nil {
		return req, fmt.Errorf("service.Service.ApproveRequest: %w", err)
	}

	approved, err = s.repo.UpdateRequest(ctx, approved, event(models.EventApproved, user, req.Status, approved.Status, ""))
	if err != nil {
		return req, fmt.Errorf("service.Service.ApproveRequest: %w", err)
	}

	s.log.Info().Str("request_id", requestId).Str("role", user.RoleId).Str("status", string(approved.Status)).Msg("approval step approved")
	return approved, nil
}

func (s *Service) RejectRequest(ctx context.Context, username, requestId, comments string) (models.PurchaseRequest, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return models.PurchaseRequest{}, fmt.Errorf("service.Service.RejectRequest: %w", err)
	}
	req, err := s.repo.GetRequestByUUID(ctx, requestId)
	if err != nil {
		return req, fmt.Errorf("service.Service.RejectRequest: %w", err)
	}

	rejected, err := workflow.Reject(req, user.Actor(), comments, s.now())
	if err != nil {
		return req, fmt.Errorf("service.Service.RejectRequest: %w", err)
	}

	rejected, err = s.repo.UpdateRequest(ctx, rejected, event(models.EventRejected, user, req.Status, rejected.Status, strings.TrimSpace(comments)))
	if err != nil {
		return req, fmt.Errorf("service.Service.RejectRequest: %w", err)
	}

	s.log.Info().Str("request_id", requestId).Str("role", user.RoleId).Msg("purchase request rejected")
	return rejected, nil
}

// PendingApprovals is the inbox of username: requests whose current step
// belongs to the user's role.
func (s *Service) PendingApprovals(ctx context.Context, username string, limit, offset int) ([]models.PurchaseRequest, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service.Service.PendingApprovals: %w", err)
	}

	pending, err := s.repo.GetRequests(ctx, 0, 0, models.RequestFilter{Statuses: []models.RequestStatus{models.RequestPendingApproval}})
	if err != nil {
		return nil, fmt.Errorf("service.Service.PendingApprovals: %w", err)
	}

	inbox := make([]models.PurchaseRequest, 0, len(pending))
	for _, req := range pending {
		if workflow.CanAct(req, user.RoleId) {
			inbox = append(inbox, req)
		}
	}

	if offset >= len(inbox) {
		return []models.PurchaseRequest{}, nil
	}
	inbox = inbox[max(offset, 0):]
	if limit > 0 && limit < len(inbox) {
		inbox = inbox[:limit]
	}
	return inbox, nil
}

func (s *Service) RequestEvents(ctx context.Context, requestId string, limit, offset int) ([]models.RequestEvent, error) {
	if _, err := s.repo.GetRequestByUUID(ctx, requestId); err != nil {
		return nil, fmt.Errorf("service.Service.RequestEvents: %w", err)
	}

	events, err := s.repo.GetRequestEvents(ctx, requestId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("service.Service.RequestEvents: %w", err)
	}

	names := make(map[string]string)
	for i, e := range events {
		if e.ActorId == "" {
			continue
		}
		name, ok := names[e.ActorId]
		if !ok {
			user, found, err := s.repo.UserByUUID(ctx, e.ActorId)
			if err != nil {
				return nil, fmt.Errorf("service.Service.RequestEvents: %w", err)
			}
			if found {
				name = user.Actor().Name
			}
			names[e.ActorId] = name
		}
		events[i].ActorName = name
	}
	return events, nil
}

// DeleteRequest discards a draft. Submitted requests are part of the audit
// trail and cannot be deleted.
func (s *Service) DeleteRequest(ctx context.Context, username, requestId string) error {
	_, req, err := s.requesterAndRequest(ctx, username, requestId)
	if err != nil {
		return fmt.Errorf("service.Service.DeleteRequest: %w", err)
	}
	if req.Status != models.RequestDraft {
		return fmt.Errorf("service.Service.DeleteRequest: %w", models.ErrNotDraft)
	}

	if err = s.repo.DeleteRequest(ctx, requestId); err != nil {
		return fmt.Errorf("service.Service.DeleteRequest: %w", err)
	}

	s.log.Info().Str("request_id", requestId).Str("username", username).Msg("draft deleted")
	return nil
}

// requesterAndRequest loads the request and checks username is its requester.
func (s *Service) requesterAndRequest(ctx context.Context, username, requestId string) (models.User, models.PurchaseRequest, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return user, models.PurchaseRequest{}, err
	}

	req, err := s.repo.GetRequestByUUID(ctx, requestId)
	if err != nil {
		return user, req, err
	}

	if req.RequesterId != user.Id {
		return user, req, fmt.Errorf("%w: %s is not the requester", models.ErrForbidden, username)
	}
	return user, req, nil
}
