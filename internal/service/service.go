package service

import (
	"context"
	"fmt"
	"time"

	"procurement/internal/models"

	"github.com/rs/zerolog"
)

// Repository is the storage the service runs on. It is implemented by the
// postgres repository and by the in-memory store.
type Repository interface {
	UserByUsername(ctx context.Context, username string) (models.User, bool, error)
	UserByUUID(ctx context.Context, UUID string) (models.User, bool, error)

	CurrentWorkflow(ctx context.Context) (models.WorkflowSnapshot, bool, error)
	AddWorkflow(ctx context.Context, roles []string, updatedBy string) (models.WorkflowSnapshot, error)

	AddRequest(ctx context.Context, req models.PurchaseRequest, event models.RequestEvent) (models.PurchaseRequest, error)
	GetRequestByUUID(ctx context.Context, UUID string) (models.PurchaseRequest, error)
	GetRequests(ctx context.Context, limit, offset int, filter models.RequestFilter) ([]models.PurchaseRequest, error)
	UpdateRequest(ctx context.Context, req models.PurchaseRequest, event models.RequestEvent) (models.PurchaseRequest, error)
	DeleteRequest(ctx context.Context, requestId string) error

	ReplaceQuotations(ctx context.Context, requestId string, qs []models.SupplierQuotation, event models.RequestEvent) ([]models.SupplierQuotation, error)
	GetQuotations(ctx context.Context, requestId string) ([]models.SupplierQuotation, error)

	NextOrderSequence(ctx context.Context) (int64, error)
	AddOrder(ctx context.Context, o models.PurchaseOrder, req models.PurchaseRequest, event models.RequestEvent) (models.PurchaseOrder, models.PurchaseRequest, error)
	GetOrderByUUID(ctx context.Context, UUID string) (models.PurchaseOrder, error)
	GetRequestOrders(ctx context.Context, requestId string) ([]models.PurchaseOrder, error)
	UpdateOrder(ctx context.Context, o models.PurchaseOrder, event models.RequestEvent) (models.PurchaseOrder, error)

	GetRequestEvents(ctx context.Context, requestId string, limit, offset int) ([]models.RequestEvent, error)
}

type Service struct {
	repo      Repository
	log       zerolog.Logger
	adminRole string
	now       func() time.Time
}

type Option func(*Service)

// WithAdminRole sets the role allowed to change the approval workflow.
func WithAdminRole(role string) Option {
	return func(s *Service) {
		s.adminRole = role
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		log:       zerolog.Nop(),
		adminRole: "admin",
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

//// Service

func (s *Service) userByUsername(ctx context.Context, username string) (models.User, error) {
	user, ok, err := s.repo.UserByUsername(ctx, username)
	if err != nil {
		return models.User{}, fmt.Errorf("service.Service.userByUsername: %w", err)
	}
	if !ok {
		return models.User{}, fmt.Errorf("service.Service.userByUsername: %w: %s", models.ErrInvalidUser, username)
	}
	return user, err
}

func event(action models.EventAction, actor models.User, before, after models.RequestStatus, comments string) models.RequestEvent {
	return models.RequestEvent{
		Action:       action,
		ActorId:      actor.Id,
		StatusBefore: before,
		StatusAfter:  after,
		Comments:     comments,
	}
}
