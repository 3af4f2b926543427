package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type QuotedPrice struct {
	ItemId string          `json:"itemId"`
	Price  decimal.Decimal `json:"price"`
}

// SupplierQuotation holds one supplier's prices for one purchase request.
// Discount is a percentage, zero when the supplier offered none.
type SupplierQuotation struct {
	Id                string          `json:"id"`
	PurchaseRequestId string          `json:"purchaseRequestId"`
	SupplierId        string          `json:"supplierId"`
	Items             []QuotedPrice   `json:"items"`
	Discount          decimal.Decimal `json:"discount"`
	CreatedAt         time.Time       `json:"createdAt"`
}

func (q SupplierQuotation) Price(itemId string) (decimal.Decimal, bool) {
	for _, p := range q.Items {
		if p.ItemId == itemId {
			return p.Price, true
		}
	}
	return decimal.Zero, false
}
