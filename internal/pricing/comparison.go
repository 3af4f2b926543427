// Package pricing compares supplier quotations for a purchase request.
package pricing

import (
	"fmt"
	"sort"
	"strings"

	"procurement/internal/models"

	"github.com/shopspring/decimal"
)

// Matrix holds entered prices as matrix[itemId][supplierId].
type Matrix map[string]map[string]decimal.Decimal

// Price returns the entered price, zero when nothing was entered.
func (m Matrix) Price(itemId, supplierId string) decimal.Decimal {
	return m[itemId][supplierId]
}

func (m Matrix) Set(itemId, supplierId string, price decimal.Decimal) {
	if m[itemId] == nil {
		m[itemId] = make(map[string]decimal.Decimal)
	}
	m[itemId][supplierId] = price
}

// Only returns the part of m that belongs to the given suppliers.
func (m Matrix) Only(supplierIds []string) Matrix {
	out := make(Matrix, len(m))
	for _, supplierId := range supplierIds {
		for itemId, bySupplier := range m {
			if p, ok := bySupplier[supplierId]; ok {
				out.Set(itemId, supplierId, p)
			}
		}
	}
	return out
}

// Row is one request line of the comparison grid.
type Row struct {
	ItemId      string                     `json:"itemId"`
	Description string                     `json:"description,omitempty"`
	Quantity    decimal.Decimal            `json:"quantity"`
	Prices      map[string]decimal.Decimal `json:"prices"`
	LowestPrice decimal.Decimal            `json:"lowestPrice"`
	Lowest      map[string]bool            `json:"lowest"`
}

// ComputeRows builds one row per request item. LowestPrice is the minimum over
// positive prices; zero prices count as "not entered". Every supplier matching
// the minimum is marked lowest.
func ComputeRows(req models.PurchaseRequest, matrix Matrix) []Row {
	rows := make([]Row, 0, len(req.Items))
	for _, item := range req.Items {
		row := Row{
			ItemId:      item.ItemId,
			Description: item.Description,
			Quantity:    item.Quantity,
			Prices:      make(map[string]decimal.Decimal),
			Lowest:      make(map[string]bool),
		}

		found := false
		for supplierId, price := range matrix[item.ItemId] {
			row.Prices[supplierId] = price
			if !price.IsPositive() {
				continue
			}
			if !found || price.LessThan(row.LowestPrice) {
				row.LowestPrice = price
				found = true
			}
		}

		if found {
			for supplierId, price := range row.Prices {
				if price.IsPositive() && price.Equal(row.LowestPrice) {
					row.Lowest[supplierId] = true
				}
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// SupplierTotal is the pre-discount subtotal of one supplier.
func SupplierTotal(rows []Row, supplierId string) decimal.Decimal {
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Quantity.Mul(row.Prices[supplierId]))
	}
	return total
}

// FinalTotal applies a percentage discount to a subtotal.
func FinalTotal(subtotal, discountPercent decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(decimal.NewFromInt(1).Sub(discountPercent.Div(hundred)))
}

// Comparison is the complete price analysis of a request for a set of suppliers.
type Comparison struct {
	RequestId       string                     `json:"requestId"`
	Currency        string                     `json:"currency"`
	SupplierIds     []string                   `json:"supplierIds"`
	Rows            []Row                      `json:"rows"`
	Totals          map[string]decimal.Decimal `json:"totals"`
	Discounts       map[string]decimal.Decimal `json:"discounts"`
	FinalTotals     map[string]decimal.Decimal `json:"finalTotals"`
	BestSupplierIds []string                   `json:"bestSupplierIds"`
}

// Compare computes rows and totals for the selected suppliers. Only suppliers
// that priced every line compete for BestSupplierIds, so a partial quote cannot
// win on a smaller sum.
func Compare(req models.PurchaseRequest, supplierIds []string, matrix Matrix, discounts map[string]decimal.Decimal) (Comparison, error) {
	if err := checkSuppliers(supplierIds); err != nil {
		return Comparison{}, fmt.Errorf("pricing.Compare: %w", err)
	}

	rows := ComputeRows(req, matrix.Only(supplierIds))
	c := Comparison{
		RequestId:       req.Id,
		Currency:        req.Currency,
		SupplierIds:     append([]string(nil), supplierIds...),
		Rows:            rows,
		Totals:          make(map[string]decimal.Decimal, len(supplierIds)),
		Discounts:       make(map[string]decimal.Decimal, len(supplierIds)),
		FinalTotals:     make(map[string]decimal.Decimal, len(supplierIds)),
		BestSupplierIds: []string{},
	}

	var best decimal.Decimal
	for _, supplierId := range supplierIds {
		discount := discounts[supplierId]
		if err := checkDiscount(discount); err != nil {
			return Comparison{}, fmt.Errorf("pricing.Compare: supplier '%s': %w", supplierId, err)
		}
		subtotal := SupplierTotal(rows, supplierId)
		final := FinalTotal(subtotal, discount).Round(2)

		c.Totals[supplierId] = subtotal
		c.Discounts[supplierId] = discount
		c.FinalTotals[supplierId] = final

		if !final.IsPositive() || !quotedEveryRow(rows, supplierId) {
			continue
		}
		switch {
		case len(c.BestSupplierIds) == 0 || final.LessThan(best):
			best = final
			c.BestSupplierIds = []string{supplierId}
		case final.Equal(best):
			c.BestSupplierIds = append(c.BestSupplierIds, supplierId)
		}
	}

	return c, nil
}

// BuildQuotations turns the grid into one quotation per selected supplier.
// The result is the complete set for the request: suppliers left out are meant
// to be dropped by the store.
func BuildQuotations(req models.PurchaseRequest, supplierIds []string, matrix Matrix, discounts map[string]decimal.Decimal) ([]models.SupplierQuotation, error) {
	if req.Status != models.RequestApproved {
		return nil, fmt.Errorf("pricing.BuildQuotations: %w", models.ErrNotApproved)
	}
	if err := checkSuppliers(supplierIds); err != nil {
		return nil, fmt.Errorf("pricing.BuildQuotations: %w", err)
	}
	for itemId := range matrix {
		if _, ok := req.Item(itemId); !ok {
			return nil, fmt.Errorf("pricing.BuildQuotations: %w", models.Invalidf("prices", "item '%s' is not part of the request", itemId))
		}
	}

	quotations := make([]models.SupplierQuotation, 0, len(supplierIds))
	for _, supplierId := range supplierIds {
		discount := discounts[supplierId]
		if err := checkDiscount(discount); err != nil {
			return nil, fmt.Errorf("pricing.BuildQuotations: supplier '%s': %w", supplierId, err)
		}

		q := models.SupplierQuotation{
			PurchaseRequestId: req.Id,
			SupplierId:        supplierId,
			Items:             []models.QuotedPrice{},
			Discount:          discount,
		}
		for _, item := range req.Items {
			price := matrix.Price(item.ItemId, supplierId)
			if price.IsNegative() {
				return nil, fmt.Errorf("pricing.BuildQuotations: %w", models.Invalidf("price", "item '%s', supplier '%s' is negative", item.ItemId, supplierId))
			}
			if price.IsZero() {
				continue
			}
			q.Items = append(q.Items, models.QuotedPrice{ItemId: item.ItemId, Price: price})
		}
		quotations = append(quotations, q)
	}

	return quotations, nil
}

// MatrixFromQuotations rebuilds the grid from stored quotations. Supplier ids
// are returned sorted for stable output.
func MatrixFromQuotations(quotations []models.SupplierQuotation) (Matrix, map[string]decimal.Decimal, []string) {
	matrix := make(Matrix)
	discounts := make(map[string]decimal.Decimal, len(quotations))
	supplierIds := make([]string, 0, len(quotations))

	for _, q := range quotations {
		supplierIds = append(supplierIds, q.SupplierId)
		discounts[q.SupplierId] = q.Discount
		for _, p := range q.Items {
			matrix.Set(p.ItemId, q.SupplierId, p.Price)
		}
	}
	sort.Strings(supplierIds)

	return matrix, discounts, supplierIds
}

func quotedEveryRow(rows []Row, supplierId string) bool {
	for _, row := range rows {
		if !row.Prices[supplierId].IsPositive() {
			return false
		}
	}
	return true
}

func checkSuppliers(supplierIds []string) error {
	seen := make(map[string]bool, len(supplierIds))
	for _, id := range supplierIds {
		if strings.TrimSpace(id) == "" {
			return models.Invalidf("suppliers", "blank supplier id")
		}
		if seen[id] {
			return models.Invalidf("suppliers", "supplier '%s' selected twice", id)
		}
		seen[id] = true
	}
	return nil
}
