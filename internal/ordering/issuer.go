// Package ordering issues purchase orders for awarded purchase requests.
package ordering

import (
	"fmt"
	"time"

	"procurement/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FormatNumber renders a purchase order number such as PO-2026-00042.
func FormatNumber(year int, seq int64) string {
	return fmt.Sprintf("PO-%04d-%05d", year, seq)
}

// CreateFromAward issues an order for supplierId and returns it together with
// the request moved to AWARDED. A request that is already awarded can be
// awarded again, which issues an additional order. The order has no PoNumber
// yet; the caller numbers it once the award is known to be valid.
func CreateFromAward(req models.PurchaseRequest, supplierId string, lines []models.OrderLine, at time.Time) (models.PurchaseOrder, models.PurchaseRequest, error) {
	if req.Status != models.RequestApproved && req.Status != models.RequestAwarded {
		return models.PurchaseOrder{}, req, fmt.Errorf("ordering.CreateFromAward: %w", models.ErrNotAwardable)
	}
	if supplierId == "" {
		return models.PurchaseOrder{}, req, fmt.Errorf("ordering.CreateFromAward: %w", models.Invalidf("supplierId", "must not be empty"))
	}
	items, err := checkLines(req, lines)
	if err != nil {
		return models.PurchaseOrder{}, req, fmt.Errorf("ordering.CreateFromAward: %w", err)
	}

	order := models.PurchaseOrder{
		PurchaseRequestId: req.Id,
		SupplierId:        supplierId,
		Currency:          req.Currency,
		Items:             items,
		TotalAmount:       Total(items),
		Status:            models.OrderIssued,
		CreatedAt:         at,
		UpdatedAt:         at,
	}

	next := req.Clone()
	next.Status = models.RequestAwarded
	next.UpdatedAt = at

	return order, next, nil
}

// Update replaces the lines of an issued order. req must be the order's own
// purchase request; its status is not touched.
func Update(order models.PurchaseOrder, req models.PurchaseRequest, lines []models.OrderLine, at time.Time) (models.PurchaseOrder, error) {
	if order.PurchaseRequestId != req.Id {
		return models.PurchaseOrder{}, fmt.Errorf("ordering.Update: %w", models.Invalidf("purchaseRequestId", "order '%s' does not belong to request '%s'", order.PoNumber, req.Id))
	}

	items, err := checkLines(req, lines)
	if err != nil {
		return models.PurchaseOrder{}, fmt.Errorf("ordering.Update: %w", err)
	}

	order.Items = items
	order.TotalAmount = Total(items)
	order.UpdatedAt = at
	return order, nil
}

func Total(lines []models.OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount())
	}
	return total
}

// LinesFromQuotation builds award lines from the request quantities and the
// supplier's prices with the quotation discount applied. Items the supplier did
// not price are left out.
func LinesFromQuotation(req models.PurchaseRequest, q models.SupplierQuotation) ([]models.OrderLine, error) {
	if q.PurchaseRequestId != req.Id {
		return nil, fmt.Errorf("ordering.LinesFromQuotation: %w", models.Invalidf("quotation", "belongs to request '%s'", q.PurchaseRequestId))
	}

	factor := decimal.NewFromInt(1).Sub(q.Discount.Div(hundred))
	lines := make([]models.OrderLine, 0, len(req.Items))
	for _, item := range req.Items {
		price, ok := q.Price(item.ItemId)
		if !ok || !price.IsPositive() {
			continue
		}
		lines = append(lines, models.OrderLine{
			ItemId:   item.ItemId,
			Quantity: item.Quantity,
			Price:    price.Mul(factor).Round(2),
		})
	}

	if len(lines) == 0 {
		return nil, fmt.Errorf("ordering.LinesFromQuotation: supplier '%s': %w", q.SupplierId, models.ErrEmptyLines)
	}
	return lines, nil
}

func checkLines(req models.PurchaseRequest, lines []models.OrderLine) ([]models.OrderLine, error) {
	if len(lines) == 0 {
		return nil, models.ErrEmptyLines
	}

	seen := make(map[string]bool, len(lines))
	out := make([]models.OrderLine, 0, len(lines))
	for _, l := range lines {
		if _, ok := req.Item(l.ItemId); !ok {
			return nil, models.Invalidf("items", "item '%s' is not part of request", l.ItemId)
		}
		if seen[l.ItemId] {
			return nil, models.Invalidf("items", "item '%s' appears twice", l.ItemId)
		}
		seen[l.ItemId] = true

		if err := models.CheckAmount("quantity", l.Quantity, models.AmountScale); err != nil {
			return nil, fmt.Errorf("item '%s': %w", l.ItemId, err)
		}
		if err := models.CheckAmount("price", l.Price, models.AmountScale); err != nil {
			return nil, fmt.Errorf("item '%s': %w", l.ItemId, err)
		}
		if !l.Quantity.IsPositive() {
			return nil, models.Invalidf("quantity", "item '%s' must be greater than zero", l.ItemId)
		}
		if l.Price.IsNegative() {
			return nil, models.Invalidf("price", "item '%s' must not be negative", l.ItemId)
		}
		out = append(out, l)
	}
	return out, nil
}
