package workflow

import (
	"errors"
	"testing"
	"time"

	"procurement/internal/models"

	"github.com/shopspring/decimal"
)

var testChain = models.WorkflowSnapshot{
	Version: 3,
	Roles:   []string{"procurement_officer", "finance_manager", "exec_director"},
}

var testTime = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func draftRequest() models.PurchaseRequest {
	return models.PurchaseRequest{
		Id:       "req-1",
		Status:   models.RequestDraft,
		Currency: "USD",
		Items: []models.RequestItem{
			{ItemId: "X", Quantity: decimal.NewFromInt(5)},
		},
	}
}

func submitted(t *testing.T) models.PurchaseRequest {
	req, err := Submit(draftRequest(), testChain, testTime)
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func actor(role string) models.Actor {
	return models.Actor{Id: "user-" + role, Name: "User " + role, RoleId: role}
}

func TestSubmit(t *testing.T) {
	req := submitted(t)

	if req.Status != models.RequestPendingApproval {
		t.Errorf("Expected status %s after submit, got %s", models.RequestPendingApproval, req.Status)
	}
	if len(req.Approvals) != len(testChain.Roles) {
		t.Fatalf("Expected %d approval steps, got %d", len(testChain.Roles), len(req.Approvals))
	}
	for i, step := range req.Approvals {
		if step.Status != models.StepPending {
			t.Errorf("Step %d should be %s, got %s", i, models.StepPending, step.Status)
		}
		if step.RoleId != testChain.Roles[i] {
			t.Errorf("Step %d should require role '%s', got '%s'", i, testChain.Roles[i], step.RoleId)
		}
	}
	if req.WorkflowVersion != testChain.Version {
		t.Errorf("Expected workflow version %d, got %d", testChain.Version, req.WorkflowVersion)
	}
	if req.SubmittedAt == nil || !req.SubmittedAt.Equal(testTime) {
		t.Errorf("Expected submittedAt %v, got %v", testTime, req.SubmittedAt)
	}
}

func TestSubmitErrors(t *testing.T) {
	empty := draftRequest()
	empty.Items = nil

	_, err := Submit(empty, testChain, testTime)
	if !errors.Is(err, models.ErrEmptyItems) || !errors.Is(err, models.ErrValidation) {
		t.Errorf("Submit without items should fail with validation error, got %v", err)
	}

	_, err = Submit(draftRequest(), models.WorkflowSnapshot{}, testTime)
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("Submit with empty workflow should fail with validation error, got %v", err)
	}

	again := submitted(t)
	_, err = Submit(again, testChain, testTime)
	if !errors.Is(err, models.ErrState) {
		t.Errorf("Second submit should fail with state error, got %v", err)
	}
}

func TestSubmitCopiesSnapshot(t *testing.T) {
	chain := models.WorkflowSnapshot{Version: 1, Roles: []string{"a", "b"}}
	req, err := Submit(draftRequest(), chain, testTime)
	if err != nil {
		t.Fatal(err)
	}

	// registry edits after submission must not leak into the request
	chain.Roles[0] = "changed"
	if req.Approvals[0].RoleId != "a" {
		t.Errorf("Submitted request changed together with registry: step 0 role is '%s'", req.Approvals[0].RoleId)
	}
}

func TestFindCurrentStep(t *testing.T) {
	steps := func(statuses ...models.StepStatus) models.PurchaseRequest {
		req := models.PurchaseRequest{Status: models.RequestPendingApproval}
		for _, s := range statuses {
			req.Approvals = append(req.Approvals, models.ApprovalStep{RoleId: "r", Status: s})
		}
		return req
	}
	P, A, R := models.StepPending, models.StepApproved, models.StepRejected

	tests := []struct {
		name  string
		req   models.PurchaseRequest
		index int
		ok    bool
	}{
		{"empty", steps(), -1, false},
		{"all pending", steps(P, P, P), 0, true},
		{"first approved", steps(A, P, P), 1, true},
		{"last pending", steps(A, A, P), 2, true},
		{"all approved", steps(A, A, A), -1, false},
		{"rejected in the middle", steps(A, R, P), -1, false},
		{"rejected first", steps(R, P, P), -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index, ok := FindCurrentStep(tt.req)
			if index != tt.index || ok != tt.ok {
				t.Errorf("FindCurrentStep() = (%d, %v), want (%d, %v)", index, ok, tt.index, tt.ok)
			}
		})
	}
}

func TestCanAct(t *testing.T) {
	req := submitted(t)

	if !CanAct(req, "procurement_officer") {
		t.Error("First role in chain should be able to act on a fresh request")
	}
	if CanAct(req, "finance_manager") {
		t.Error("Second role must not act before the first one approved")
	}
	if CanAct(req, "") {
		t.Error("Empty role must never act")
	}
	if CanAct(draftRequest(), "procurement_officer") {
		t.Error("Nobody can act on a draft")
	}

	// repeated calls without a decision in between agree
	if CanAct(req, "procurement_officer") != CanAct(req, "procurement_officer") {
		t.Error("CanAct is not stable between calls")
	}
}

func TestApprove(t *testing.T) {
	req := submitted(t)

	req, err := Approve(req, actor("procurement_officer"), testTime)
	if err != nil {
		t.Fatal(err)
	}
	if req.Status != models.RequestPendingApproval {
		t.Errorf("Approving a non-last step should keep status %s, got %s", models.RequestPendingApproval, req.Status)
	}
	step := req.Approvals[0]
	if step.Status != models.StepApproved || step.ActorId != "user-procurement_officer" || step.ActorName != "User procurement_officer" {
		t.Errorf("Step 0 not recorded correctly: %+v", step)
	}
	if step.Date == nil || !step.Date.Equal(testTime) {
		t.Errorf("Step 0 date should be %v, got %v", testTime, step.Date)
	}
	if i, _ := FindCurrentStep(req); i != 1 {
		t.Errorf("Current step should move to 1, got %d", i)
	}
	if CanAct(req, "procurement_officer") {
		t.Error("Role must not act again once its step is resolved")
	}

	req, err = Approve(req, actor("finance_manager"), testTime)
	if err != nil {
		t.Fatal(err)
	}
	req, err = Approve(req, actor("exec_director"), testTime)
	if err != nil {
		t.Fatal(err)
	}
	if req.Status != models.RequestApproved {
		t.Errorf("Approving the last step should set status %s, got %s", models.RequestApproved, req.Status)
	}
	if _, ok := FindCurrentStep(req); ok {
		t.Error("Fully approved request should have no current step")
	}

	_, err = Approve(req, actor("exec_director"), testTime)
	if !errors.Is(err, models.ErrState) {
		t.Errorf("Approving an approved request should fail with state error, got %v", err)
	}
}

func TestApproveWrongRole(t *testing.T) {
	req := submitted(t)
	before := req.Clone()

	_, err := Approve(req, actor("exec_director"), testTime)
	if !errors.Is(err, models.ErrPermission) {
		t.Fatalf("Out of turn approval should fail with permission error, got %v", err)
	}
	for i := range req.Approvals {
		if req.Approvals[i].Status != before.Approvals[i].Status {
			t.Errorf("Failed approval changed step %d", i)
		}
	}
}

func TestApproveDoesNotMutateInput(t *testing.T) {
	req := submitted(t)

	_, err := Approve(req, actor("procurement_officer"), testTime)
	if err != nil {
		t.Fatal(err)
	}
	if req.Approvals[0].Status != models.StepPending {
		t.Error("Approve modified the request it was given")
	}
}

func TestRejectScenario(t *testing.T) {
	req := submitted(t)

	req, err := Approve(req, actor("procurement_officer"), testTime)
	if err != nil {
		t.Fatal(err)
	}
	req, err = Reject(req, actor("finance_manager"), "budget exceeded", testTime)
	if err != nil {
		t.Fatal(err)
	}

	if req.Status != models.RequestRejected {
		t.Errorf("Expected status %s, got %s", models.RequestRejected, req.Status)
	}
	if req.Approvals[1].Status != models.StepRejected || req.Approvals[1].Comments != "budget exceeded" {
		t.Errorf("Step 1 not rejected correctly: %+v", req.Approvals[1])
	}
	if req.Approvals[2].Status != models.StepPending || req.Approvals[2].ActorId != "" {
		t.Errorf("Step 2 should stay untouched, got %+v", req.Approvals[2])
	}
	if CanAct(req, "exec_director") {
		t.Error("Steps after a rejection must not be actionable")
	}
}

func TestRejectRequiresComments(t *testing.T) {
	req := submitted(t)

	for _, comments := range []string{"", "   ", "\n\t"} {
		_, err := Reject(req, actor("procurement_officer"), comments, testTime)
		if !errors.Is(err, models.ErrEmptyComments) {
			t.Errorf("Reject with comments %q should fail with %v, got %v", comments, models.ErrEmptyComments, err)
		}
	}
	if req.Status != models.RequestPendingApproval || req.Approvals[0].Status != models.StepPending {
		t.Error("Failed reject changed the request")
	}
}

func TestRejectAnyPosition(t *testing.T) {
	for pos := range testChain.Roles {
		req := submitted(t)
		var err error
		for i := 0; i < pos; i++ {
			req, err = Approve(req, actor(testChain.Roles[i]), testTime)
			if err != nil {
				t.Fatal(err)
			}
		}
		req, err = Reject(req, actor(testChain.Roles[pos]), "no", testTime)
		if err != nil {
			t.Fatal(err)
		}
		if req.Status != models.RequestRejected {
			t.Errorf("Rejecting step %d should set status %s, got %s", pos, models.RequestRejected, req.Status)
		}
	}
}
