package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"procurement/internal/models"
	"procurement/internal/repository/memory"
	"procurement/internal/service"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func newTestServer(t *testing.T, roles ...string) http.Handler {
	store := memory.NewStore()
	for _, role := range append([]string{"admin", "requester"}, roles...) {
		_, err := store.AddUser(context.Background(), models.User{
			Username:  role,
			FirstName: gofakeit.FirstName(),
			LastName:  gofakeit.LastName(),
			RoleId:    role,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	c := NewController(service.NewService(store, service.WithAdminRole("admin")), zerolog.Nop())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/workflow", c.GetWorkflow)
	mux.HandleFunc("PUT /api/workflow", c.SetWorkflow)
	mux.HandleFunc("POST /api/requests/new", c.NewRequest)
	mux.HandleFunc("GET /api/requests", c.GetRequests)
	mux.HandleFunc("GET /api/requests/{requestId}", c.GetRequest)
	mux.HandleFunc("DELETE /api/requests/{requestId}", c.DeleteRequest)
	mux.HandleFunc("PATCH /api/requests/{requestId}/edit", c.EditRequest)
	mux.HandleFunc("PUT /api/requests/{requestId}/submit", c.SubmitRequest)
	mux.HandleFunc("GET /api/requests/{requestId}/current_step", c.CurrentStep)
	mux.HandleFunc("PUT /api/requests/{requestId}/approve", c.ApproveRequest)
	mux.HandleFunc("PUT /api/requests/{requestId}/reject", c.RejectRequest)
	mux.HandleFunc("GET /api/requests/{requestId}/events", c.RequestEvents)
	mux.HandleFunc("GET /api/approvals/pending", c.PendingApprovals)
	mux.HandleFunc("PUT /api/requests/{requestId}/quotations", c.SaveQuotations)
	mux.HandleFunc("GET /api/requests/{requestId}/quotations", c.GetQuotations)
	mux.HandleFunc("GET /api/requests/{requestId}/comparison", c.CompareQuotations)
	mux.HandleFunc("POST /api/requests/{requestId}/award", c.AwardRequest)
	mux.HandleFunc("GET /api/requests/{requestId}/orders", c.RequestOrders)
	mux.HandleFunc("GET /api/orders/{orderId}", c.GetOrder)
	mux.HandleFunc("PATCH /api/orders/{orderId}/edit", c.EditOrder)
	return mux
}

func do(t *testing.T, h http.Handler, method, target, body, testName string, expectedStatus int) []byte {
	var reader io.Reader
	if len(body) > 0 {
		reader = strings.NewReader(body)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, reader))

	data, _ := io.ReadAll(rec.Result().Body)
	if rec.Code != expectedStatus {
		t.Fatalf("%s %s '%s' should return status code %d, got %d, body:\n%s", method, target, testName, expectedStatus, rec.Code, string(data))
	}
	return data
}

func decode[T any](t *testing.T, data []byte) T {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("could not decode response '%s': %v", string(data), err)
	}
	return v
}

type comparisonResp struct {
	FinalTotals     map[string]decimal.Decimal `json:"finalTotals"`
	BestSupplierIds []string                   `json:"bestSupplierIds"`
}

const newRequestBody = `
{
"title": "Office chairs",
"description": "Chairs for the second floor",
"currency": "usd",
"requesterUsername": "requester",
"items": [
	{"itemId": "X", "description": "Chair", "quantity": 5},
	{"itemId": "Y", "description": "Armrest", "quantity": "2"}
]
}`

func TestPurchaseFlow(t *testing.T) {
	h := newTestServer(t, "manager", "finance", "buyer")

	do(t, h, "PUT", "/api/workflow?username=admin", `{"roles": ["manager", "finance"]}`, "set workflow", http.StatusOK)

	req := decode[models.PurchaseRequest](t, do(t, h, "POST", "/api/requests/new", newRequestBody, "new request", http.StatusOK))
	if req.Status != models.RequestDraft || req.Currency != "USD" || len(req.Items) != 2 {
		t.Fatalf("Unexpected draft: %+v", req)
	}
	base := "/api/requests/" + req.Id

	edited := decode[models.PurchaseRequest](t, do(t, h, "PATCH", base+"/edit?username=requester", `{"title": "Office chairs, grey"}`, "edit", http.StatusOK))
	if edited.Title != "Office chairs, grey" || len(edited.Items) != 2 {
		t.Errorf("Unexpected edited request: %+v", edited)
	}
	if edited.UpdatedAt.IsZero() || edited.UpdatedAt.Before(edited.CreatedAt) {
		t.Errorf("Expected updatedAt to be exposed, got %v (created %v)", edited.UpdatedAt, edited.CreatedAt)
	}

	submitted := decode[models.PurchaseRequest](t, do(t, h, "PUT", base+"/submit?username=requester", "", "submit", http.StatusOK))
	if submitted.Status != models.RequestPendingApproval || len(submitted.Approvals) != 2 {
		t.Fatalf("Unexpected submitted request: %+v", submitted)
	}

	step := decode[models.CurrentStep](t, do(t, h, "GET", base+"/current_step", "", "current step", http.StatusOK))
	if step.Index != 0 || step.Step == nil || step.Step.RoleId != "manager" {
		t.Errorf("Unexpected current step: %+v", step)
	}

	inbox := decode[[]models.PurchaseRequest](t, do(t, h, "GET", "/api/approvals/pending?username=manager", "", "manager inbox", http.StatusOK))
	if len(inbox) != 1 || inbox[0].Id != req.Id {
		t.Errorf("Expected request in manager inbox, got %v", inbox)
	}

	do(t, h, "PUT", base+"/approve?username=finance", "", "out of order approval", http.StatusForbidden)
	do(t, h, "PUT", base+"/approve?username=manager", "", "manager approval", http.StatusOK)
	approved := decode[models.PurchaseRequest](t, do(t, h, "PUT", base+"/approve?username=finance", "", "finance approval", http.StatusOK))
	if approved.Status != models.RequestApproved {
		t.Fatalf("Expected APPROVED, got %s", approved.Status)
	}

	grid := `
	{
	"supplierIds": ["A", "B"],
	"prices": {"X": {"A": 10, "B": "12"}, "Y": {"A": "4", "B": "1,5"}},
	"discounts": {"A": "10"}
	}`
	qs := decode[[]models.SupplierQuotation](t, do(t, h, "PUT", base+"/quotations?username=buyer", grid, "quotations", http.StatusOK))
	if len(qs) != 2 {
		t.Fatalf("Expected 2 quotations, got %d", len(qs))
	}

	comparison := decode[comparisonResp](t, do(t, h, "GET", base+"/comparison", "", "comparison", http.StatusOK))
	if !comparison.FinalTotals["A"].Equal(decimal.RequireFromString("52.2")) {
		t.Errorf("Unexpected final total of A: %s", comparison.FinalTotals["A"])
	}
	if len(comparison.BestSupplierIds) != 1 || comparison.BestSupplierIds[0] != "A" {
		t.Errorf("Expected A to be best, got %v", comparison.BestSupplierIds)
	}

	order := decode[models.PurchaseOrder](t, do(t, h, "POST", base+"/award?username=buyer", `{"supplierId": "A"}`, "award", http.StatusOK))
	if !strings.HasPrefix(order.PoNumber, "PO-") || !order.TotalAmount.Equal(decimal.RequireFromString("52.2")) {
		t.Errorf("Unexpected order: %+v", order)
	}

	awarded := decode[models.PurchaseRequest](t, do(t, h, "GET", base, "", "awarded request", http.StatusOK))
	if awarded.Status != models.RequestAwarded {
		t.Errorf("Expected AWARDED, got %s", awarded.Status)
	}

	orders := decode[[]models.PurchaseOrder](t, do(t, h, "GET", base+"/orders", "", "request orders", http.StatusOK))
	if len(orders) != 1 || orders[0].Id != order.Id {
		t.Errorf("Unexpected request orders: %v", orders)
	}

	lines := `{"lines": [{"itemId": "X", "quantity": 4, "price": "9"}]}`
	do(t, h, "PATCH", "/api/orders/"+order.Id+"/edit?username=manager", lines, "edit by stranger", http.StatusForbidden)
	updated := decode[models.PurchaseOrder](t, do(t, h, "PATCH", "/api/orders/"+order.Id+"/edit?username=buyer", lines, "edit by issuer", http.StatusOK))
	if !updated.TotalAmount.Equal(decimal.NewFromInt(36)) {
		t.Errorf("Expected total 36, got %s", updated.TotalAmount)
	}

	events := decode[[]models.RequestEvent](t, do(t, h, "GET", base+"/events?limit=100", "", "events", http.StatusOK))
	if len(events) < 6 {
		t.Fatalf("Expected at least 6 events, got %d", len(events))
	}
	for _, e := range events {
		if e.ActorName == "" {
			t.Errorf("Event %s has no actor name", e.Action)
		}
	}

	do(t, h, "DELETE", base+"?username=requester", "", "delete awarded request", http.StatusConflict)
}

func TestDeleteDraft(t *testing.T) {
	h := newTestServer(t, "manager")

	req := decode[models.PurchaseRequest](t, do(t, h, "POST", "/api/requests/new", newRequestBody, "new request", http.StatusOK))
	base := "/api/requests/" + req.Id

	do(t, h, "DELETE", base+"?username=manager", "", "delete by stranger", http.StatusForbidden)
	do(t, h, "DELETE", base+"?username=requester", "", "delete draft", http.StatusNoContent)
	do(t, h, "GET", base, "", "deleted draft", http.StatusNotFound)
	do(t, h, "DELETE", base+"?username=requester", "", "delete twice", http.StatusNotFound)
}

func TestRejectFlow(t *testing.T) {
	h := newTestServer(t, "manager")
	do(t, h, "PUT", "/api/workflow?username=admin", `{"roles": ["manager"]}`, "set workflow", http.StatusOK)

	req := decode[models.PurchaseRequest](t, do(t, h, "POST", "/api/requests/new", newRequestBody, "new request", http.StatusOK))
	base := "/api/requests/" + req.Id

	do(t, h, "PUT", base+"/approve?username=manager", "", "approve draft", http.StatusConflict)
	do(t, h, "PUT", base+"/submit?username=requester", "", "submit", http.StatusOK)
	do(t, h, "PATCH", base+"/edit?username=requester", `{"title": "late edit"}`, "edit submitted", http.StatusConflict)
	do(t, h, "PUT", base+"/reject?username=manager", "", "reject without comments", http.StatusBadRequest)

	rejected := decode[models.PurchaseRequest](t, do(t, h, "PUT", base+"/reject?username=manager&comments=too+expensive", "", "reject", http.StatusOK))
	if rejected.Status != models.RequestRejected || rejected.Approvals[0].Comments != "too expensive" {
		t.Errorf("Unexpected rejected request: %+v", rejected)
	}

	step := decode[models.CurrentStep](t, do(t, h, "GET", base+"/current_step", "", "current step", http.StatusOK))
	if step.Step != nil || step.Index != -1 {
		t.Errorf("Expected no current step after rejection, got %+v", step)
	}

	do(t, h, "PUT", base+"/quotations?username=manager", `{"supplierIds": ["A"], "prices": {"X": {"A": 1}}}`, "quote rejected", http.StatusConflict)
	do(t, h, "POST", base+"/award?username=manager", `{"supplierId": "A"}`, "award rejected", http.StatusConflict)
}

func TestRequestErrors(t *testing.T) {
	h := newTestServer(t)

	tests := []struct {
		method, target, body, name string
		status                     int
	}{
		{"POST", "/api/requests/new", `{"title": "t", "requesterUsername": "nobody", "items": [{"itemId": "X", "quantity": 1}]}`, "unknown user", http.StatusUnauthorized},
		{"POST", "/api/requests/new", `{"title": "t", "items": [{"itemId": "X", "quantity": 1}]}`, "no username", http.StatusBadRequest},
		{"POST", "/api/requests/new", `{"title": "  ", "requesterUsername": "requester", "items": []}`, "blank title", http.StatusBadRequest},
		{"POST", "/api/requests/new", `{"title": "t", "requesterUsername": "requester", "colour": "red"}`, "unknown field", http.StatusBadRequest},
		{"POST", "/api/requests/new", `{"title": "t", "requesterUsername": "requester", "items": [{"itemId": "X", "quantity": -1}]}`, "negative quantity", http.StatusBadRequest},
		{"POST", "/api/requests/new", `{"title": "t", "requesterUsername": "requester", "items": [{"itemId": "X", "quantity": 1e900000000}]}`, "huge quantity", http.StatusBadRequest},
		{"POST", "/api/requests/new", `{"title": "t", "requesterUsername": "requester", "currency": "dollars", "items": [{"itemId": "X", "quantity": 1}]}`, "bad currency", http.StatusBadRequest},
		{"GET", "/api/requests/no-such-request", "", "missing request", http.StatusNotFound},
		{"GET", "/api/orders/no-such-order", "", "missing order", http.StatusNotFound},
		{"GET", "/api/requests?status=LOST", "", "bad status", http.StatusBadRequest},
		{"GET", "/api/requests?limit=-1", "", "bad limit", http.StatusBadRequest},
		{"GET", "/api/requests?mine=true", "", "mine without username", http.StatusBadRequest},
		{"GET", "/api/workflow", "", "no workflow", http.StatusNotFound},
		{"PUT", "/api/workflow?username=requester", `{"roles": ["manager"]}`, "workflow by non-admin", http.StatusForbidden},
		{"PUT", "/api/workflow?username=admin", `{"roles": ["manager", " "]}`, "blank workflow role", http.StatusBadRequest},
		{"GET", "/api/approvals/pending", "", "inbox without username", http.StatusBadRequest},
	}

	for _, test := range tests {
		do(t, h, test.method, test.target, test.body, test.name, test.status)
	}
}

func TestSubmitWithoutWorkflow(t *testing.T) {
	h := newTestServer(t)

	req := decode[models.PurchaseRequest](t, do(t, h, "POST", "/api/requests/new", newRequestBody, "new request", http.StatusOK))
	data := do(t, h, "PUT", "/api/requests/"+req.Id+"/submit?username=requester", "", "submit", http.StatusBadRequest)

	resp := decode[ErrorResponse](t, data)
	if resp.Reason != models.ErrEmptyWorkflow.Error() {
		t.Errorf("Unexpected reason: %s", resp.Reason)
	}
}

func TestGetRequestsFilter(t *testing.T) {
	h := newTestServer(t, "manager")
	do(t, h, "PUT", "/api/workflow?username=admin", `{"roles": ["manager"]}`, "set workflow", http.StatusOK)

	n := gofakeit.IntRange(2, 6)
	for i := 0; i < n; i++ {
		req := decode[models.PurchaseRequest](t, do(t, h, "POST", "/api/requests/new", newRequestBody, "new request", http.StatusOK))
		if i == 0 {
			do(t, h, "PUT", "/api/requests/"+req.Id+"/submit?username=requester", "", "submit", http.StatusOK)
		}
	}

	all := decode[[]models.PurchaseRequest](t, do(t, h, "GET", "/api/requests?mine=true&username=requester", "", "mine", http.StatusOK))
	if len(all) != n {
		t.Errorf("Expected %d requests, got %d", n, len(all))
	}

	drafts := decode[[]models.PurchaseRequest](t, do(t, h, "GET", "/api/requests?status=DRAFT", "", "drafts", http.StatusOK))
	if len(drafts) != n-1 {
		t.Errorf("Expected %d drafts, got %d", n-1, len(drafts))
	}

	page := decode[[]models.PurchaseRequest](t, do(t, h, "GET", "/api/requests?limit=1&offset=1", "", "page", http.StatusOK))
	if len(page) != 1 {
		t.Errorf("Expected a single request, got %d", len(page))
	}
}

func TestServiceErrorResponse(t *testing.T) {
	c := NewController(nil, zerolog.Nop())

	tests := []struct {
		err    error
		status int
		reason string
	}{
		{fmt.Errorf("service.Service.AddRequest: %w", models.ErrInvalidUser), http.StatusUnauthorized, ""},
		{fmt.Errorf("service.Service.GetRequest: %w", models.ErrNoRequest), http.StatusNotFound, ""},
		{fmt.Errorf("service.Service.GetOrder: %w", models.ErrNoOrder), http.StatusNotFound, ""},
		{fmt.Errorf("service.Service.SubmitRequest: %w", models.ErrNotDraft), http.StatusConflict, models.ErrNotDraft.Error()},
		{fmt.Errorf("a: b: %w", models.Invalidf("title", "must not be empty")), http.StatusBadRequest, "validation failed: field 'title': must not be empty"},
		{fmt.Errorf("service.Service.ApproveRequest: %w", models.ErrNotYourStep), http.StatusForbidden, models.ErrNotYourStep.Error()},
		{errors.New("connection reset"), http.StatusInternalServerError, "internal server error"},
	}

	for _, test := range tests {
		rec := httptest.NewRecorder()
		c.serviceErrorResponse(rec, test.err)
		if rec.Code != test.status {
			t.Errorf("%v: expected status %d, got %d", test.err, test.status, rec.Code)
		}
		resp := decode[ErrorResponse](t, rec.Body.Bytes())
		if test.reason != "" && resp.Reason != test.reason {
			t.Errorf("%v: expected reason '%s', got '%s'", test.err, test.reason, resp.Reason)
		}
	}
}

func TestPriceText(t *testing.T) {
	tests := []struct {
		json    string
		want    string
		wantErr bool
	}{
		{`12.5`, "12.5", false},
		{`"12,50"`, "12,50", false},
		{`""`, "", false},
		{`null`, "", false},
		{`true`, "", true},
	}

	for _, test := range tests {
		var p PriceText
		err := json.Unmarshal([]byte(test.json), &p)
		if (err != nil) != test.wantErr {
			t.Errorf("%s: unexpected error state: %v", test.json, err)
			continue
		}
		if !test.wantErr && string(p) != test.want {
			t.Errorf("%s: expected '%s', got '%s'", test.json, test.want, p)
		}
	}
}

func TestParseAwardReq(t *testing.T) {
	if _, err := ParseAwardReq([]byte(`{"lines": []}`)); err == nil {
		t.Error("Expected an error for missing supplierId")
	}

	input, err := ParseAwardReq([]byte(`{"supplierId": "A", "lines": [{"itemId": "X", "quantity": 2, "price": "3.10"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if input.SupplierId != "A" || len(input.Lines) != 1 || !input.Lines[0].Price.Equal(decimal.RequireFromString("3.1")) {
		t.Errorf("Unexpected award input: %+v", input)
	}
}
