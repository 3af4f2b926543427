package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderIssued OrderStatus = "ISSUED"
)

type OrderLine struct {
	ItemId   string          `json:"itemId"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func (l OrderLine) Amount() decimal.Decimal {
	return l.Quantity.Mul(l.Price)
}

type PurchaseOrder struct {
	Id                string          `json:"id"`
	PoNumber          string          `json:"poNumber"`
	PurchaseRequestId string          `json:"purchaseRequestId"`
	SupplierId        string          `json:"supplierId"`
	Currency          string          `json:"currency"`
	Items             []OrderLine     `json:"items"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
	Status            OrderStatus     `json:"status"`
	IssuedBy          string          `json:"issuedBy"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}
