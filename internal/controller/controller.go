package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"procurement/internal/models"
	"procurement/internal/pricing"
	"procurement/internal/service"

	"github.com/rs/zerolog"
)

type Service interface {
	CurrentWorkflow(ctx context.Context) (models.WorkflowSnapshot, error)
	SetWorkflow(ctx context.Context, username string, roles []string) (models.WorkflowSnapshot, error)

	AddRequest(ctx context.Context, username string, req models.PurchaseRequest) (models.PurchaseRequest, error)
	GetRequest(ctx context.Context, requestId string) (models.PurchaseRequest, error)
	GetRequests(ctx context.Context, username string, mine bool, statuses []models.RequestStatus, limit, offset int) ([]models.PurchaseRequest, error)
	EditRequest(ctx context.Context, username, requestId string, changes service.RequestChanges) (models.PurchaseRequest, error)
	DeleteRequest(ctx context.Context, username, requestId string) error
	SubmitRequest(ctx context.Context, username, requestId string) (models.PurchaseRequest, error)
	CurrentStep(ctx context.Context, requestId string) (models.CurrentStep, error)
	ApproveRequest(ctx context.Context, username, requestId string) (models.PurchaseRequest, error)
	RejectRequest(ctx context.Context, username, requestId, comments string) (models.PurchaseRequest, error)
	PendingApprovals(ctx context.Context, username string, limit, offset int) ([]models.PurchaseRequest, error)
	RequestEvents(ctx context.Context, requestId string, limit, offset int) ([]models.RequestEvent, error)

	SaveQuotations(ctx context.Context, username, requestId string, input service.QuotationInput) ([]models.SupplierQuotation, error)
	GetQuotations(ctx context.Context, requestId string) ([]models.SupplierQuotation, error)
	CompareQuotations(ctx context.Context, requestId string, supplierIds []string) (pricing.Comparison, error)

	AwardRequest(ctx context.Context, username, requestId string, input service.AwardInput) (models.PurchaseOrder, error)
	GetRequestOrders(ctx context.Context, requestId string) ([]models.PurchaseOrder, error)
	GetOrder(ctx context.Context, orderId string) (models.PurchaseOrder, error)
	EditOrder(ctx context.Context, username, orderId string, lines []models.OrderLine) (models.PurchaseOrder, error)
}

type Controller struct {
	service Service
	log     zerolog.Logger
}

func NewController(service Service, log zerolog.Logger) *Controller {
	return &Controller{service: service, log: log}
}

// GET /api/ping
func (c *Controller) Ping(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

//// Workflow

// GET /api/workflow
func (c *Controller) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := c.service.CurrentWorkflow(r.Context())
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, wf)
}

// PUT /api/workflow
func (c *Controller) SetWorkflow(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}

	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}
	req, err := ParseWorkflowReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	wf, err := c.service.SetWorkflow(r.Context(), username, req.Roles)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, wf)
}

//// Requests

// POST /api/requests/new
func (c *Controller) NewRequest(w http.ResponseWriter, r *http.Request) {
	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}

	req, err := ParseNewRequestReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	username := req.RequesterUsername
	if len(username) == 0 {
		username = r.URL.Query().Get("username")
	}
	if len(username) == 0 {
		c.errorResponse(w, http.StatusBadRequest, "empty username supplied")
		return
	}

	added, err := c.service.AddRequest(r.Context(), username, req.Request())
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, added)
}

// GET /api/requests
func (c *Controller) GetRequests(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit, offset, ok := c.paging(w, query)
	if !ok {
		return
	}

	var statuses []models.RequestStatus
	for _, str := range query["status"] {
		status := models.RequestStatus(str)
		if !models.ValidRequestStatus(status) {
			c.errorResponse(w, http.StatusBadRequest, "invalid status supplied: "+str)
			return
		}
		statuses = append(statuses, status)
	}

	mine := false
	if str := query.Get("mine"); len(str) > 0 {
		var err error
		mine, err = strconv.ParseBool(str)
		if err != nil {
			c.errorResponse(w, http.StatusBadRequest, "invalid value of 'mine' query parameter: "+str)
			return
		}
	}

	username := query.Get("username")
	if mine && len(username) == 0 {
		c.errorResponse(w, http.StatusBadRequest, "empty username supplied")
		return
	}

	reqs, err := c.service.GetRequests(r.Context(), username, mine, statuses, limit, offset)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, reqs)
}

// GET /api/requests/{requestId}
func (c *Controller) GetRequest(w http.ResponseWriter, r *http.Request) {
	requestId, ok := c.pathValue(w, r, "requestId")
	if !ok {
		return
	}

	req, err := c.service.GetRequest(r.Context(), requestId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, req)
}

// PATCH /api/requests/{requestId}/edit
func (c *Controller) EditRequest(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}
	requestId, ok := c.pathValue(w, r, "requestId")
	if !ok {
		return
	}

	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}
	changes, err := ParseRequestChangeReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := c.service.EditRequest(r.Context(), username, requestId, changes)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, req)
}

// DELETE /api/requests/{requestId}
func (c *Controller) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}
	requestId, ok := c.pathValue(w, r, "requestId")
	if !ok {
		return
	}

	err := c.service.DeleteRequest(r.Context(), username, requestId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/requests/{requestId}/submit
func (c *Controller) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}
	requestId, ok := c.pathValue(w, r, "requestId")
	if !ok {
		return
	}

	req, err := c.service.SubmitRequest(r.Context(), username, requestId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, req)
}

// GET /api/requests/{requestId}/current_step
func (c *Controller) CurrentStep(w http.ResponseWriter, r *http.Request) {
	requestId, ok := c.pathValue(w, r, "requestId")
	if !ok {
		return
	}

	step, err := c.service.CurrentStep(r.Context(), requestId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, step)
}

// PUT /api/requests/{requestId}/approve
func (c *Controller) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}
	requestId, ok := c.pathValue(w, r, "requestId")
	if !ok {
		return
	}

	req, err := c.service.ApproveRequest(r.Context(), username, requestId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, req)
}

// PUT /api/requests/{requestId}/reject
func (c *Controller) RejectRequest(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}
	requestId, ok := c.pathValue(w, r, "requestId")
	if !ok {
		return
	}

	comments := r.URL.Query().Get("comments")
	if err := checkLengthLimit(comments, "comments", 1000); err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := c.service.RejectRequest(r.Context(), username, requestId, comments)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, req)
}

// GET /api/requests/{requestId}/events
func (c *Controller) RequestEvents(w http.ResponseWriter, r *http.Request) {
	requestId, ok := c.pathValue(w, r, "requestId")
	if !ok {
		return
	}
	limit, offset, ok := c.paging(w, r.URL.Query())
	if !ok {
		return
	}

	events, err := c.service.RequestEvents(r.Context(), requestId, limit, offset)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, events)
}

// GET /api/approvals/pending
func (c *Controller) PendingApprovals(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}
	limit, offset, ok := c.paging(w, r.URL.Query())
	if !ok {
		return
	}

	reqs, err := c.service.PendingApprovals(r.Context(), username, limit, offset)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, reqs)
}

//// Quotations

// PUT /api/requests/{requestId}/quotations
func (c *Controller) SaveQuotations(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}
	requestId, ok := c.pathValue(w, r, "requestId")
	if !ok {
		return
	}

	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}
	input, err := ParseQuotationsReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	qs, err := c.service.SaveQuotations(r.Context(), username, requestId, input)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, qs)
}

// GET /api/requests/{requestId}/quotations
func (c *Controller) GetQuotations(w http.ResponseWriter, r *http.Request) {
	requestId, ok := c.pathValue(w, r, "requestId")
	if !ok {
		return
	}

	qs, err := c.service.GetQuotations(r.Context(), requestId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, qs)
}

// GET /api/requests/{requestId}/comparison
func (c *Controller) CompareQuotations(w http.ResponseWriter, r *http.Request) {
	requestId, ok := c.pathValue(w, r, "requestId")
	if !ok {
		return
	}

	comparison, err := c.service.CompareQuotations(r.Context(), requestId, r.URL.Query()["supplier"])
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, comparison)
}

//// Orders

// POST /api/requests/{requestId}/award
func (c *Controller) AwardRequest(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}
	requestId, ok := c.pathValue(w, r, "requestId")
	if !ok {
		return
	}

	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}
	input, err := ParseAwardReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := c.service.AwardRequest(r.Context(), username, requestId, input)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, order)
}

// GET /api/requests/{requestId}/orders
func (c *Controller) RequestOrders(w http.ResponseWriter, r *http.Request) {
	requestId, ok := c.pathValue(w, r, "requestId")
	if !ok {
		return
	}

	orders, err := c.service.GetRequestOrders(r.Context(), requestId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, orders)
}

// GET /api/orders/{orderId}
func (c *Controller) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderId, ok := c.pathValue(w, r, "orderId")
	if !ok {
		return
	}

	order, err := c.service.GetOrder(r.Context(), orderId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, order)
}

// PATCH /api/orders/{orderId}/edit
func (c *Controller) EditOrder(w http.ResponseWriter, r *http.Request) {
	username, ok := c.username(w, r)
	if !ok {
		return
	}
	orderId, ok := c.pathValue(w, r, "orderId")
	if !ok {
		return
	}

	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}
	lines, err := ParseOrderChangeReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := c.service.EditOrder(r.Context(), username, orderId, lines)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, order)
}

// Service

type ErrorResponse struct {
	Reason string `json:"reason"`
}

func (c *Controller) username(w http.ResponseWriter, r *http.Request) (string, bool) {
	username := r.URL.Query().Get("username")
	if len(username) == 0 {
		c.errorResponse(w, http.StatusBadRequest, "empty username supplied")
		return "", false
	}
	return username, true
}

func (c *Controller) pathValue(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	val := r.PathValue(key)
	if len(val) == 0 {
		c.errorResponse(w, http.StatusBadRequest, "empty "+key+" supplied")
		return "", false
	}
	return val, true
}

func (c *Controller) paging(w http.ResponseWriter, query url.Values) (limit, offset int, ok bool) {
	limit, err := c.getQueryInt(query, "limit")
	if err != nil || limit < 0 {
		c.errorResponse(w, http.StatusBadRequest, "invalid value of 'limit' query parameter: "+query.Get("limit"))
		return 0, 0, false
	}

	offset, err = c.getQueryInt(query, "offset")
	if err != nil || offset < 0 {
		c.errorResponse(w, http.StatusBadRequest, "invalid value of 'offset' query parameter: "+query.Get("offset"))
		return 0, 0, false
	}

	return limit, offset, true
}

func (c *Controller) getQueryInt(query url.Values, key string) (int, error) {
	strs, ok := query[key]
	if ok && len(strs) > 0 {
		return strconv.Atoi(strs[0])
	}
	return 0, nil
}

func (c *Controller) errorResponse(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	data, err := json.Marshal(ErrorResponse{Reason: text})
	if err != nil {
		c.log.Error().Err(err).Msg("controller.Controller.errorResponse")
		return
	}

	_, err = w.Write(data)
	if err != nil {
		c.log.Error().Err(err).Msg("controller.Controller.errorResponse")
		return
	}
}

func (c *Controller) serviceErrorResponse(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidUser):
		c.errorResponse(w, http.StatusUnauthorized, "user does not exist or have no rights for requested action")
	case errors.Is(err, models.ErrNoRequest):
		c.errorResponse(w, http.StatusNotFound, "requested purchase request does not exist")
	case errors.Is(err, models.ErrNoOrder):
		c.errorResponse(w, http.StatusNotFound, "requested purchase order does not exist")
	case errors.Is(err, models.ErrNoWorkflow):
		c.errorResponse(w, http.StatusNotFound, "approval workflow is not configured")
	case errors.Is(err, models.ErrValidation):
		c.errorResponse(w, http.StatusBadRequest, reason(err, models.ErrValidation))
	case errors.Is(err, models.ErrPermission):
		c.errorResponse(w, http.StatusForbidden, reason(err, models.ErrPermission))
	case errors.Is(err, models.ErrState):
		c.errorResponse(w, http.StatusConflict, reason(err, models.ErrState))
	default:
		c.log.Error().Err(err).Msg("controller: unexpected service error")
		c.errorResponse(w, http.StatusInternalServerError, "internal server error")
	}
}

// reason cuts the call path prefix off a wrapped error, starting the message
// at its kind.
func reason(err error, kind error) string {
	msg := err.Error()
	if i := strings.Index(msg, kind.Error()); i >= 0 {
		return msg[i:]
	}
	return kind.Error()
}

func (c *Controller) marshalResponse(w http.ResponseWriter, data any) {
	d, err := json.Marshal(data)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not marhsal response data")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(d)
	if err != nil {
		c.log.Error().Err(err).Msg("controller.Controller.marshalResponse: could not write response data")
		return
	}
}

func (c *Controller) readBody(src io.ReadCloser) ([]byte, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	src.Close()
	return data, nil
}
