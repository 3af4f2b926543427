package workflow

import (
	"fmt"
	"strconv"
	"strings"

	"procurement/internal/models"
)

// CheckDraft validates the editable fields of a request and returns it
// normalized. Items without an id are numbered after their position.
// An empty item list is fine for a draft; Submit refuses it later.
func CheckDraft(req models.PurchaseRequest) (models.PurchaseRequest, error) {
	out := req.Clone()

	out.Title = strings.TrimSpace(out.Title)
	if out.Title == "" {
		return req, fmt.Errorf("workflow.CheckDraft: %w", models.Invalidf("title", "must not be empty"))
	}

	out.Currency = strings.ToUpper(strings.TrimSpace(out.Currency))
	if out.Currency != "" && len(out.Currency) != 3 {
		return req, fmt.Errorf("workflow.CheckDraft: %w", models.Invalidf("currency", "'%s' is not a 3 letter code", out.Currency))
	}

	seen := make(map[string]bool, len(out.Items))
	for _, item := range out.Items {
		if id := strings.TrimSpace(item.ItemId); id != "" {
			if seen[id] {
				return req, fmt.Errorf("workflow.CheckDraft: %w", models.Invalidf("items", "item '%s' appears twice", id))
			}
			seen[id] = true
		}
	}

	for i := range out.Items {
		item := &out.Items[i]
		item.ItemId = strings.TrimSpace(item.ItemId)
		if item.ItemId == "" {
			item.ItemId = freeItemId(i+1, seen)
			seen[item.ItemId] = true
		}
		if err := models.CheckAmount("quantity", item.Quantity, models.AmountScale); err != nil {
			return req, fmt.Errorf("workflow.CheckDraft: item '%s': %w", item.ItemId, err)
		}
		if !item.Quantity.IsPositive() {
			return req, fmt.Errorf("workflow.CheckDraft: %w", models.Invalidf("quantity", "item '%s' must be greater than zero", item.ItemId))
		}
	}

	return out, nil
}

func freeItemId(n int, taken map[string]bool) string {
	for {
		id := strconv.Itoa(n)
		if !taken[id] {
			return id
		}
		n++
	}
}
