package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"procurement/internal/models"
	"procurement/internal/service"

	"github.com/shopspring/decimal"
)

// New purchase request

type ItemReq struct {
	ItemId      string          `json:"itemId"`
	Description string          `json:"description"`
	Unit        string          `json:"unit"`
	Quantity    decimal.Decimal `json:"quantity"`
}

type NewRequestReq struct {
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Currency          string    `json:"currency"`
	Items             []ItemReq `json:"items"`
	RequesterUsername string    `json:"requesterUsername"`
}

func ParseNewRequestReq(data []byte) (*NewRequestReq, error) {
	t := &NewRequestReq{}

	err := decodeStrict(data, t)
	if err != nil {
		return nil, err
	}

	if err = checkLengthLimit(t.Title, "title", 200); err != nil {
		return nil, err
	}
	if err = checkLengthLimit(t.Description, "description", 2000); err != nil {
		return nil, err
	}
	if err = checkItems(t.Items); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *NewRequestReq) Request() models.PurchaseRequest {
	return models.PurchaseRequest{
		Title:       t.Title,
		Description: t.Description,
		Currency:    t.Currency,
		Items:       toItems(t.Items),
	}
}

// Edit purchase request

type RequestChangeReq struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Currency    *string    `json:"currency"`
	Items       *[]ItemReq `json:"items"`
}

func ParseRequestChangeReq(data []byte) (service.RequestChanges, error) {
	t := &RequestChangeReq{}

	err := decodeStrict(data, t)
	if err != nil {
		return service.RequestChanges{}, err
	}

	changes := service.RequestChanges{
		Title:       t.Title,
		Description: t.Description,
		Currency:    t.Currency,
	}
	if t.Title != nil {
		if err = checkLengthLimit(*t.Title, "title", 200); err != nil {
			return changes, err
		}
	}
	if t.Description != nil {
		if err = checkLengthLimit(*t.Description, "description", 2000); err != nil {
			return changes, err
		}
	}
	if t.Items != nil {
		if err = checkItems(*t.Items); err != nil {
			return changes, err
		}
		items := toItems(*t.Items)
		changes.Items = &items
	}

	return changes, nil
}

// Workflow

type WorkflowReq struct {
	Roles []string `json:"roles"`
}

func ParseWorkflowReq(data []byte) (*WorkflowReq, error) {
	t := &WorkflowReq{}

	err := decodeStrict(data, t)
	if err != nil {
		return nil, err
	}
	for i, role := range t.Roles {
		if err = checkLengthLimit(role, fmt.Sprintf("roles[%d]", i), 100); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// Quotations

// PriceText accepts a JSON number or string. Strings are parsed later so that
// "12,50" or "" typed into a grid cell are handled like in the UI.
type PriceText string

func (p *PriceText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PriceText(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("price must be a number or a string, got %s", data)
	}
	*p = PriceText(n.String())
	return nil
}

type QuotationsReq struct {
	SupplierIds []string                        `json:"supplierIds"`
	Prices      map[string]map[string]PriceText `json:"prices"`
	Discounts   map[string]PriceText            `json:"discounts"`
}

func ParseQuotationsReq(data []byte) (service.QuotationInput, error) {
	t := &QuotationsReq{}

	err := decodeStrict(data, t)
	if err != nil {
		return service.QuotationInput{}, err
	}

	input := service.QuotationInput{
		SupplierIds: t.SupplierIds,
		Prices:      make(map[string]map[string]string, len(t.Prices)),
		Discounts:   make(map[string]string, len(t.Discounts)),
	}
	for itemId, bySupplier := range t.Prices {
		input.Prices[itemId] = make(map[string]string, len(bySupplier))
		for supplierId, price := range bySupplier {
			input.Prices[itemId][supplierId] = string(price)
		}
	}
	for supplierId, discount := range t.Discounts {
		input.Discounts[supplierId] = string(discount)
	}

	for _, supplierId := range t.SupplierIds {
		if err = checkLengthLimit(supplierId, "supplierIds", 100); err != nil {
			return input, err
		}
	}

	return input, nil
}

// Orders

type LineReq struct {
	ItemId   string          `json:"itemId"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type AwardReq struct {
	SupplierId string    `json:"supplierId"`
	Lines      []LineReq `json:"lines"`
}

func ParseAwardReq(data []byte) (service.AwardInput, error) {
	t := &AwardReq{}

	err := decodeStrict(data, t)
	if err != nil {
		return service.AwardInput{}, err
	}

	if strings.TrimSpace(t.SupplierId) == "" {
		return service.AwardInput{}, fmt.Errorf("field 'supplierId' must not be empty")
	}
	if err = checkLengthLimit(t.SupplierId, "supplierId", 100); err != nil {
		return service.AwardInput{}, err
	}

	return service.AwardInput{SupplierId: t.SupplierId, Lines: toLines(t.Lines)}, nil
}

type OrderChangeReq struct {
	Lines []LineReq `json:"lines"`
}

func ParseOrderChangeReq(data []byte) ([]models.OrderLine, error) {
	t := &OrderChangeReq{}

	err := decodeStrict(data, t)
	if err != nil {
		return nil, err
	}

	return toLines(t.Lines), nil
}

// Service

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("malformed request body: %w", err)
	}
	return nil
}

func checkItems(items []ItemReq) error {
	for i, item := range items {
		if err := checkLengthLimit(item.ItemId, fmt.Sprintf("items[%d].itemId", i), 100); err != nil {
			return err
		}
		if err := checkLengthLimit(item.Description, fmt.Sprintf("items[%d].description", i), 500); err != nil {
			return err
		}
	}
	return nil
}

func toItems(reqs []ItemReq) []models.RequestItem {
	items := make([]models.RequestItem, 0, len(reqs))
	for _, r := range reqs {
		items = append(items, models.RequestItem{ItemId: r.ItemId, Description: r.Description, Unit: r.Unit, Quantity: r.Quantity})
	}
	return items
}

func toLines(reqs []LineReq) []models.OrderLine {
	lines := make([]models.OrderLine, 0, len(reqs))
	for _, r := range reqs {
		lines = append(lines, models.OrderLine{ItemId: r.ItemId, Quantity: r.Quantity, Price: r.Price})
	}
	return lines
}

func checkLengthLimit(str, fieldName string, limit int) error {
	if len(str) > limit {
		return fmt.Errorf("field '%s' exceeds length limit: %d / %d", fieldName, len(str), limit)
	}
	return nil
}
