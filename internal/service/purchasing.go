package service

import (
	"context"
	"fmt"

	"procurement/internal/models"
	"procurement/internal/ordering"
	"procurement/internal/pricing"
)

// QuotationInput is the comparison grid as typed by a buyer: prices per item
// and supplier, and a discount percentage per supplier.
type QuotationInput struct {
	SupplierIds []string
	Prices      map[string]map[string]string
	Discounts   map[string]string
}

// SaveQuotations replaces the stored quotations of an approved request with
// the grid in input.
func (s *Service) SaveQuotations(ctx context.Context, username, requestId string, input QuotationInput) ([]models.SupplierQuotation, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service.Service.SaveQuotations: %w", err)
	}
	req, err := s.repo.GetRequestByUUID(ctx, requestId)
	if err != nil {
		return nil, fmt.Errorf("service.Service.SaveQuotations: %w", err)
	}

	matrix, err := pricing.ParseMatrix(input.Prices)
	if err != nil {
		return nil, fmt.Errorf("service.Service.SaveQuotations: %w", err)
	}
	discounts, err := pricing.ParseDiscounts(input.Discounts)
	if err != nil {
		return nil, fmt.Errorf("service.Service.SaveQuotations: %w", err)
	}

	qs, err := pricing.BuildQuotations(req, input.SupplierIds, matrix, discounts)
	if err != nil {
		return nil, fmt.Errorf("service.Service.SaveQuotations: %w", err)
	}

	qs, err = s.repo.ReplaceQuotations(ctx, req.Id, qs, event(models.EventQuoted, user, req.Status, req.Status, ""))
	if err != nil {
		return nil, fmt.Errorf("service.Service.SaveQuotations: %w", err)
	}

	s.log.Info().Str("request_id", requestId).Int("suppliers", len(qs)).Msg("quotations saved")
	return qs, nil
}

func (s *Service) GetQuotations(ctx context.Context, requestId string) ([]models.SupplierQuotation, error) {
	if _, err := s.repo.GetRequestByUUID(ctx, requestId); err != nil {
		return nil, fmt.Errorf("service.Service.GetQuotations: %w", err)
	}

	qs, err := s.repo.GetQuotations(ctx, requestId)
	if err != nil {
		return nil, fmt.Errorf("service.Service.GetQuotations: %w", err)
	}
	return qs, nil
}

// CompareQuotations analyses the stored quotations of a request. An empty
// supplierIds compares every supplier that quoted.
func (s *Service) CompareQuotations(ctx context.Context, requestId string, supplierIds []string) (pricing.Comparison, error) {
	req, err := s.repo.GetRequestByUUID(ctx, requestId)
	if err != nil {
		return pricing.Comparison{}, fmt.Errorf("service.Service.CompareQuotations: %w", err)
	}
	qs, err := s.repo.GetQuotations(ctx, requestId)
	if err != nil {
		return pricing.Comparison{}, fmt.Errorf("service.Service.CompareQuotations: %w", err)
	}

	matrix, discounts, quoted := pricing.MatrixFromQuotations(qs)
	if len(supplierIds) == 0 {
		supplierIds = quoted
	}

	c, err := pricing.Compare(req, supplierIds, matrix, discounts)
	if err != nil {
		return c, fmt.Errorf("service.Service.CompareQuotations: %w", err)
	}
	return c, nil
}

// AwardInput selects the winning supplier. Without Lines the order is built
// from the supplier's stored quotation.
type AwardInput struct {
	SupplierId string
	Lines      []models.OrderLine
}

func (s *Service) AwardRequest(ctx context.Context, username, requestId string, input AwardInput) (models.PurchaseOrder, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return models.PurchaseOrder{}, fmt.Errorf("service.Service.AwardRequest: %w", err)
	}
	req, err := s.repo.GetRequestByUUID(ctx, requestId)
	if err != nil {
		return models.PurchaseOrder{}, fmt.Errorf("service.Service.AwardRequest: %w", err)
	}
	if req.Status != models.RequestApproved && req.Status != models.RequestAwarded {
		return models.PurchaseOrder{}, fmt.Errorf("service.Service.AwardRequest: %w", models.ErrNotAwardable)
	}

	lines := input.Lines
	if len(lines) == 0 {
		lines, err = s.quotedLines(ctx, req, input.SupplierId)
		if err != nil {
			return models.PurchaseOrder{}, fmt.Errorf("service.Service.AwardRequest: %w", err)
		}
	}

	at := s.now()
	order, awarded, err := ordering.CreateFromAward(req, input.SupplierId, lines, at)
	if err != nil {
		return models.PurchaseOrder{}, fmt.Errorf("service.Service.AwardRequest: %w", err)
	}

	// numbers are allocated only for valid awards
	seq, err := s.repo.NextOrderSequence(ctx)
	if err != nil {
		return models.PurchaseOrder{}, fmt.Errorf("service.Service.AwardRequest: %w", err)
	}
	order.PoNumber = ordering.FormatNumber(at.Year(), seq)
	order.IssuedBy = user.Id

	order, _, err = s.repo.AddOrder(ctx, order, awarded, event(models.EventAwarded, user, req.Status, awarded.Status, order.PoNumber))
	if err != nil {
		return models.PurchaseOrder{}, fmt.Errorf("service.Service.AwardRequest: %w", err)
	}

	s.log.Info().
		Str("request_id", requestId).
		Str("po_number", order.PoNumber).
		Str("supplier_id", order.SupplierId).
		Str("total", order.TotalAmount.String()).
		Msg("purchase order issued")
	return order, nil
}

func (s *Service) quotedLines(ctx context.Context, req models.PurchaseRequest, supplierId string) ([]models.OrderLine, error) {
	qs, err := s.repo.GetQuotations(ctx, req.Id)
	if err != nil {
		return nil, err
	}
	for _, q := range qs {
		if q.SupplierId == supplierId {
			return ordering.LinesFromQuotation(req, q)
		}
	}
	return nil, models.Invalidf("supplierId", "supplier '%s' has no quotation and no lines were given", supplierId)
}

func (s *Service) GetRequestOrders(ctx context.Context, requestId string) ([]models.PurchaseOrder, error) {
	if _, err := s.repo.GetRequestByUUID(ctx, requestId); err != nil {
		return nil, fmt.Errorf("service.Service.GetRequestOrders: %w", err)
	}

	orders, err := s.repo.GetRequestOrders(ctx, requestId)
	if err != nil {
		return nil, fmt.Errorf("service.Service.GetRequestOrders: %w", err)
	}
	return orders, nil
}

func (s *Service) GetOrder(ctx context.Context, orderId string) (models.PurchaseOrder, error) {
	order, err := s.repo.GetOrderByUUID(ctx, orderId)
	if err != nil {
		return order, fmt.Errorf("service.Service.GetOrder: %w", err)
	}
	return order, nil
}

// EditOrder replaces the lines of an order. Only the user who issued it or an
// admin may do so.
func (s *Service) EditOrder(ctx context.Context, username, orderId string, lines []models.OrderLine) (models.PurchaseOrder, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return models.PurchaseOrder{}, fmt.Errorf("service.Service.EditOrder: %w", err)
	}
	order, err := s.repo.GetOrderByUUID(ctx, orderId)
	if err != nil {
		return order, fmt.Errorf("service.Service.EditOrder: %w", err)
	}
	if order.IssuedBy != user.Id && user.RoleId != s.adminRole {
		return order, fmt.Errorf("service.Service.EditOrder: %w: %s did not issue %s", models.ErrForbidden, username, order.PoNumber)
	}

	req, err := s.repo.GetRequestByUUID(ctx, order.PurchaseRequestId)
	if err != nil {
		return order, fmt.Errorf("service.Service.EditOrder: %w", err)
	}

	updated, err := ordering.Update(order, req, lines, s.now())
	if err != nil {
		return order, fmt.Errorf("service.Service.EditOrder: %w", err)
	}

	updated, err = s.repo.UpdateOrder(ctx, updated, event(models.EventOrderUpdated, user, req.Status, req.Status, order.PoNumber))
	if err != nil {
		return order, fmt.Errorf("service.Service.EditOrder: %w", err)
	}

	s.log.Info().Str("po_number", updated.PoNumber).Str("total", updated.TotalAmount.String()).Msg("purchase order updated")
	return updated, nil
}
