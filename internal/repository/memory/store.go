// Package memory is a process-local store with the same behaviour as the
// postgres repository. It backs STORAGE=memory and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"procurement/internal/models"

	"github.com/google/uuid"
)

type Store struct {
	mu sync.RWMutex

	users      map[string]models.User
	workflows  []models.WorkflowSnapshot
	requests   map[string]models.PurchaseRequest
	quotations map[string][]models.SupplierQuotation // key: request id
	orders     map[string]models.PurchaseOrder
	events     map[string][]models.RequestEvent // key: request id
	orderSeq   int64

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:      make(map[string]models.User),
		requests:   make(map[string]models.PurchaseRequest),
		quotations: make(map[string][]models.SupplierQuotation),
		orders:     make(map[string]models.PurchaseOrder),
		events:     make(map[string][]models.RequestEvent),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

//// Users

func (s *Store) AddUser(_ context.Context, u models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == u.Username {
			return u, fmt.Errorf("memory.Store.AddUser: username '%s' is taken", u.Username)
		}
	}

	u.Id = uuid.NewString()
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt
	s.users[u.Id] = u
	return u, nil
}

func (s *Store) UserByUsername(_ context.Context, username string) (models.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return u, true, nil
		}
	}
	return models.User{}, false, nil
}

func (s *Store) UserByUUID(_ context.Context, UUID string) (models.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[UUID]
	return u, ok, nil
}

//// Workflow

func (s *Store) CurrentWorkflow(_ context.Context) (models.WorkflowSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.workflows) == 0 {
		return models.WorkflowSnapshot{}, false, nil
	}
	w := s.workflows[len(s.workflows)-1]
	w.Roles = w.RolesCopy()
	return w, true, nil
}

func (s *Store) AddWorkflow(_ context.Context, roles []string, updatedBy string) (models.WorkflowSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := models.WorkflowSnapshot{
		Version:   len(s.workflows) + 1,
		Roles:     append([]string(nil), roles...),
		UpdatedBy: updatedBy,
		CreatedAt: s.now(),
	}
	s.workflows = append(s.workflows, w)

	w.Roles = w.RolesCopy()
	return w, nil
}

//// Requests

func (s *Store) AddRequest(_ context.Context, req models.PurchaseRequest, event models.RequestEvent) (models.PurchaseRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := req.Clone()
	stored.Id = uuid.NewString()
	stored.Version = 1
	stored.CreatedAt = s.now()
	stored.UpdatedAt = stored.CreatedAt
	s.requests[stored.Id] = stored

	event.RequestId = stored.Id
	s.addEvent(event)

	return stored.Clone(), nil
}

func (s *Store) GetRequestByUUID(_ context.Context, UUID string) (models.PurchaseRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[UUID]
	if !ok {
		return models.PurchaseRequest{}, fmt.Errorf("memory.Store.GetRequestByUUID: %s: %w", UUID, models.ErrNoRequest)
	}
	return req.Clone(), nil
}

func (s *Store) GetRequests(_ context.Context, limit, offset int, filter models.RequestFilter) ([]models.PurchaseRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make(map[models.RequestStatus]bool, len(filter.Statuses))
	for _, st := range filter.Statuses {
		statuses[st] = true
	}

	matched := make([]models.PurchaseRequest, 0, len(s.requests))
	for _, req := range s.requests {
		if filter.RequestId != "" && req.Id != filter.RequestId {
			continue
		}
		if filter.RequesterId != "" && req.RequesterId != filter.RequesterId {
			continue
		}
		if len(statuses) > 0 && !statuses[req.Status] {
			continue
		}
		matched = append(matched, req.Clone())
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].Id < matched[j].Id
	})

	return page(matched, limit, offset), nil
}

func (s *Store) UpdateRequest(_ context.Context, req models.PurchaseRequest, event models.RequestEvent) (models.PurchaseRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.updateRequest(req)
	if err != nil {
		return req, fmt.Errorf("memory.Store.UpdateRequest: %w", err)
	}

	event.RequestId = stored.Id
	s.addEvent(event)

	return stored, nil
}

func (s *Store) updateRequest(req models.PurchaseRequest) (models.PurchaseRequest, error) {
	existing, ok := s.requests[req.Id]
	if !ok {
		return req, fmt.Errorf("%s: %w", req.Id, models.ErrNoRequest)
	}

	stored := req.Clone()
	stored.RequesterId = existing.RequesterId
	stored.CreatedAt = existing.CreatedAt
	stored.Version = existing.Version + 1
	stored.UpdatedAt = s.now()
	s.requests[stored.Id] = stored

	return stored.Clone(), nil
}

func (s *Store) DeleteRequest(_ context.Context, requestId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[requestId]; !ok {
		return fmt.Errorf("memory.Store.DeleteRequest: %s: %w", requestId, models.ErrNoRequest)
	}

	delete(s.requests, requestId)
	delete(s.quotations, requestId)
	delete(s.events, requestId)
	for id, o := range s.orders {
		if o.PurchaseRequestId == requestId {
			delete(s.orders, id)
		}
	}
	return nil
}

//// Quotations

func (s *Store) ReplaceQuotations(_ context.Context, requestId string, qs []models.SupplierQuotation, event models.RequestEvent) ([]models.SupplierQuotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[requestId]; !ok {
		return nil, fmt.Errorf("memory.Store.ReplaceQuotations: %s: %w", requestId, models.ErrNoRequest)
	}

	stored := make([]models.SupplierQuotation, 0, len(qs))
	for _, q := range qs {
		q.Id = uuid.NewString()
		q.PurchaseRequestId = requestId
		q.Items = append([]models.QuotedPrice(nil), q.Items...)
		q.CreatedAt = s.now()
		stored = append(stored, q)
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].SupplierId < stored[j].SupplierId })
	s.quotations[requestId] = stored

	event.RequestId = requestId
	s.addEvent(event)

	return copyQuotations(stored), nil
}

func (s *Store) GetQuotations(_ context.Context, requestId string) ([]models.SupplierQuotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return copyQuotations(s.quotations[requestId]), nil
}

//// Orders

func (s *Store) NextOrderSequence(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orderSeq++
	return s.orderSeq, nil
}

func (s *Store) AddOrder(_ context.Context, o models.PurchaseOrder, req models.PurchaseRequest, event models.RequestEvent) (models.PurchaseOrder, models.PurchaseRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.orders {
		if existing.PoNumber == o.PoNumber {
			return o, req, fmt.Errorf("memory.Store.AddOrder: po number '%s' already used", o.PoNumber)
		}
	}

	awarded, err := s.updateRequest(req)
	if err != nil {
		return o, req, fmt.Errorf("memory.Store.AddOrder: %w", err)
	}

	stored := o
	stored.Id = uuid.NewString()
	stored.Items = append([]models.OrderLine(nil), o.Items...)
	stored.CreatedAt = s.now()
	stored.UpdatedAt = stored.CreatedAt
	s.orders[stored.Id] = stored

	event.RequestId = req.Id
	s.addEvent(event)

	return copyOrder(stored), awarded, nil
}

func (s *Store) GetOrderByUUID(_ context.Context, UUID string) (models.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[UUID]
	if !ok {
		return models.PurchaseOrder{}, fmt.Errorf("memory.Store.GetOrderByUUID: %s: %w", UUID, models.ErrNoOrder)
	}
	return copyOrder(o), nil
}

func (s *Store) GetRequestOrders(_ context.Context, requestId string) ([]models.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []models.PurchaseOrder{}
	for _, o := range s.orders {
		if o.PurchaseRequestId == requestId {
			result = append(result, copyOrder(o))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PoNumber < result[j].PoNumber })
	return result, nil
}

func (s *Store) UpdateOrder(_ context.Context, o models.PurchaseOrder, event models.RequestEvent) (models.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.orders[o.Id]
	if !ok {
		return o, fmt.Errorf("memory.Store.UpdateOrder: %s: %w", o.Id, models.ErrNoOrder)
	}

	existing.Items = append([]models.OrderLine(nil), o.Items...)
	existing.TotalAmount = o.TotalAmount
	existing.UpdatedAt = s.now()
	s.orders[o.Id] = existing

	event.RequestId = existing.PurchaseRequestId
	s.addEvent(event)

	return copyOrder(existing), nil
}

//// Events

func (s *Store) GetRequestEvents(_ context.Context, requestId string, limit, offset int) ([]models.RequestEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := append([]models.RequestEvent{}, s.events[requestId]...)
	return page(events, limit, offset), nil
}

// addEvent expects s.mu to be held.
func (s *Store) addEvent(e models.RequestEvent) {
	e.Id = uuid.NewString()
	e.CreatedAt = s.now()
	s.events[e.RequestId] = append(s.events[e.RequestId], e)
}

func (s *Store) Close() error {
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func copyQuotations(qs []models.SupplierQuotation) []models.SupplierQuotation {
	out := make([]models.SupplierQuotation, 0, len(qs))
	for _, q := range qs {
		q.Items = append([]models.QuotedPrice(nil), q.Items...)
		out = append(out, q)
	}
	return out
}

func copyOrder(o models.PurchaseOrder) models.PurchaseOrder {
	o.Items = append([]models.OrderLine(nil), o.Items...)
	return o
}
