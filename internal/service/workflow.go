package service

import (
	"context"
	"fmt"

	"procurement/internal/models"
	"procurement/internal/workflow"
)

func (s *Service) CurrentWorkflow(ctx context.Context) (models.WorkflowSnapshot, error) {
	w, ok, err := s.repo.CurrentWorkflow(ctx)
	if err != nil {
		return w, fmt.Errorf("service.Service.CurrentWorkflow: %w", err)
	}
	if !ok {
		return w, fmt.Errorf("service.Service.CurrentWorkflow: %w", models.ErrNoWorkflow)
	}
	return w, nil
}

// SetWorkflow appends a new registry version. Requests already submitted keep
// the chain they were submitted with.
func (s *Service) SetWorkflow(ctx context.Context, username string, roles []string) (models.WorkflowSnapshot, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return models.WorkflowSnapshot{}, fmt.Errorf("service.Service.SetWorkflow: %w", err)
	}
	if user.RoleId != s.adminRole {
		return models.WorkflowSnapshot{}, fmt.Errorf("service.Service.SetWorkflow: %w: %s", models.ErrForbidden, username)
	}

	roles, err = workflow.NormalizeRoles(roles)
	if err != nil {
		return models.WorkflowSnapshot{}, fmt.Errorf("service.Service.SetWorkflow: %w", err)
	}

	w, err := s.repo.AddWorkflow(ctx, roles, user.Username)
	if err != nil {
		return w, fmt.Errorf("service.Service.SetWorkflow: %w", err)
	}

	s.log.Info().Int("version", w.Version).Strs("roles", w.Roles).Str("username", username).Msg("workflow updated")
	return w, nil
}

// EnsureWorkflow stores roles as the first registry version unless one exists.
// created reports whether anything was written.
func (s *Service) EnsureWorkflow(ctx context.Context, roles []string) (w models.WorkflowSnapshot, created bool, err error) {
	w, ok, err := s.repo.CurrentWorkflow(ctx)
	if err != nil {
		return w, false, fmt.Errorf("service.Service.EnsureWorkflow: %w", err)
	}
	if ok {
		return w, false, nil
	}

	roles, err = workflow.NormalizeRoles(roles)
	if err != nil {
		return w, false, fmt.Errorf("service.Service.EnsureWorkflow: %w", err)
	}

	w, err = s.repo.AddWorkflow(ctx, roles, "seed")
	if err != nil {
		return w, false, fmt.Errorf("service.Service.EnsureWorkflow: %w", err)
	}

	s.log.Info().Int("version", w.Version).Strs("roles", w.Roles).Msg("workflow seeded")
	return w, true, nil
}
