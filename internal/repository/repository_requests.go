package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"procurement/internal/models"

	"github.com/lib/pq"
)

func (repo *Repository) prepRequestsQuery(limit, offset int, filter models.RequestFilter) (query string, queryParams []interface{}) {
	query = `
	SELECT
		id,
		version,
		requester_id,
		title,
		description,
		currency,
		status,
		items,
		approvals,
		workflow_version,
		submitted_at,
		created_at,
		updated_at
	FROM purchase_requests
	$conditions$
	ORDER BY created_at DESC, id
	LIMIT $1
	OFFSET $2
	`

	queryParams = make([]interface{}, 0, 5)
	conditions := make([]string, 0, 3)

	if limit <= 0 {
		queryParams = append(queryParams, nil)
	} else {
		queryParams = append(queryParams, limit)
	}
	queryParams = append(queryParams, offset)

	if len(filter.RequestId) > 0 {
		conditions = append(conditions, "id = $$")
		queryParams = append(queryParams, filter.RequestId)
	}

	if len(filter.RequesterId) > 0 {
		conditions = append(conditions, "requester_id = $$")
		queryParams = append(queryParams, filter.RequesterId)
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		conditions = append(conditions, "status = any($$)")
		queryParams = append(queryParams, pq.Array(statuses))
	}

	condStr := ""
	if len(conditions) > 0 {
		for i := 0; i < len(conditions); i++ {
			conditions[i] = strings.Replace(conditions[i], "$$", "$"+strconv.Itoa(i+3), -1)
		}
		condStr = "WHERE " + strings.Join(conditions, " AND ")
	}
	query = strings.Replace(query, "$conditions$", condStr, -1)

	return query, queryParams
}

func scanRequest(rows *sql.Rows) (models.PurchaseRequest, error) {
	var req models.PurchaseRequest
	var items, approvals []byte

	err := rows.Scan(&req.Id, &req.Version, &req.RequesterId, &req.Title, &req.Description, &req.Currency, &req.Status,
		&items, &approvals, &req.WorkflowVersion, &req.SubmittedAt, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return req, err
	}

	if err = json.Unmarshal(items, &req.Items); err != nil {
		return req, fmt.Errorf("decoding items: %w", err)
	}
	if err = json.Unmarshal(approvals, &req.Approvals); err != nil {
		return req, fmt.Errorf("decoding approvals: %w", err)
	}
	return req, nil
}

func (repo *Repository) GetRequests(ctx context.Context, limit, offset int, filter models.RequestFilter) ([]models.PurchaseRequest, error) {
	query, queryParams := repo.prepRequestsQuery(limit, offset, filter)

	rows, err := repo.db.QueryContext(ctx, query, queryParams...)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetRequests: %w", err)
	}
	defer rows.Close()

	result := []models.PurchaseRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.GetRequests: row scan failed: %w", err)
		}
		result = append(result, req)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository.Repository.GetRequests: %w", err)
	}

	return result, nil
}

func (repo *Repository) GetRequestByUUID(ctx context.Context, UUID string) (models.PurchaseRequest, error) {
	return repo.getRequestByUUID(ctx, UUID, nil)
}

func (repo *Repository) getRequestByUUID(ctx context.Context, UUID string, tx *sql.Tx) (models.PurchaseRequest, error) {
	if err := checkUUID(UUID, models.ErrNoRequest); err != nil {
		return models.PurchaseRequest{}, fmt.Errorf("repository.Repository.GetRequestByUUID: %w", err)
	}

	query, queryParams := repo.prepRequestsQuery(1, 0, models.RequestFilter{RequestId: UUID})

	rows, err := repo.conn(tx).QueryContext(ctx, query, queryParams...)
	if err != nil {
		return models.PurchaseRequest{}, fmt.Errorf("repository.Repository.GetRequestByUUID: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return models.PurchaseRequest{}, fmt.Errorf("repository.Repository.GetRequestByUUID: %w", err)
		}
		return models.PurchaseRequest{}, fmt.Errorf("repository.Repository.GetRequestByUUID: %s: %w", UUID, models.ErrNoRequest)
	}

	req, err := scanRequest(rows)
	if err != nil {
		return req, fmt.Errorf("repository.Repository.GetRequestByUUID: row scan failed: %w", err)
	}
	return req, nil
}

// AddRequest stores a new request together with its "created" event.
func (repo *Repository) AddRequest(ctx context.Context, req models.PurchaseRequest, event models.RequestEvent) (models.PurchaseRequest, error) {
	items, approvals, err := encodeRequest(req)
	if err != nil {
		return req, fmt.Errorf("repository.Repository.AddRequest: %w", err)
	}

	query := `
	INSERT INTO purchase_requests
		(version, requester_id, title, description, currency, status, items, approvals, workflow_version, submitted_at)
	VALUES
		(1, $1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING
		id, version, created_at, updated_at
	`

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return req, fmt.Errorf("repository.Repository.AddRequest: failed to start transaction: %w", err)
	}

	result := req.Clone()
	row := tx.QueryRowContext(ctx, query, req.RequesterId, req.Title, req.Description, req.Currency, req.Status, items, approvals, req.WorkflowVersion, req.SubmittedAt)
	err = row.Scan(&result.Id, &result.Version, &result.CreatedAt, &result.UpdatedAt)
	if err != nil {
		return req, wrapRollbackErr(tx, fmt.Errorf("repository.Repository.AddRequest: %w", err))
	}

	event.RequestId = result.Id
	_, err = repo.addEvent(ctx, event, tx)
	if err != nil {
		return req, wrapRollbackErr(tx, fmt.Errorf("repository.Repository.AddRequest: %w", err))
	}

	err = tx.Commit()
	if err != nil {
		return req, fmt.Errorf("repository.Repository.AddRequest: failed to commit transaction: %w", err)
	}

	return result, nil
}

// UpdateRequest overwrites the mutable columns, bumps the version and records
// the event in the same transaction.
func (repo *Repository) UpdateRequest(ctx context.Context, req models.PurchaseRequest, event models.RequestEvent) (models.PurchaseRequest, error) {
	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return req, fmt.Errorf("repository.Repository.UpdateRequest: failed to start transaction: %w", err)
	}

	result, err := repo.updateRequest(ctx, req, tx)
	if err != nil {
		return req, wrapRollbackErr(tx, fmt.Errorf("repository.Repository.UpdateRequest: %w", err))
	}

	event.RequestId = result.Id
	_, err = repo.addEvent(ctx, event, tx)
	if err != nil {
		return req, wrapRollbackErr(tx, fmt.Errorf("repository.Repository.UpdateRequest: %w", err))
	}

	err = tx.Commit()
	if err != nil {
		return req, fmt.Errorf("repository.Repository.UpdateRequest: failed to commit transaction: %w", err)
	}

	return result, nil
}

func (repo *Repository) updateRequest(ctx context.Context, req models.PurchaseRequest, tx *sql.Tx) (models.PurchaseRequest, error) {
	items, approvals, err := encodeRequest(req)
	if err != nil {
		return req, err
	}

	query := `
	UPDATE purchase_requests
	SET (version, title, description, currency, status, items, approvals, workflow_version, submitted_at, updated_at) =
	(version + 1, $1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP)
	WHERE id = $9
	RETURNING
		version, updated_at
	`

	result := req.Clone()
	row := repo.conn(tx).QueryRowContext(ctx, query, req.Title, req.Description, req.Currency, req.Status, items, approvals, req.WorkflowVersion, req.SubmittedAt, req.Id)
	err = row.Scan(&result.Version, &result.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return req, fmt.Errorf("%s: %w", req.Id, models.ErrNoRequest)
	} else if err != nil {
		return req, err
	}
	return result, nil
}

// DeleteRequest removes a request; its quotations, orders and events go with
// it through ON DELETE CASCADE.
func (repo *Repository) DeleteRequest(ctx context.Context, requestId string) error {
	if err := checkUUID(requestId, models.ErrNoRequest); err != nil {
		return fmt.Errorf("repository.Repository.DeleteRequest: %w", err)
	}

	res, err := repo.db.ExecContext(ctx, "DELETE FROM purchase_requests WHERE id = $1", requestId)
	if err != nil {
		return fmt.Errorf("repository.Repository.DeleteRequest: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository.Repository.DeleteRequest: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("repository.Repository.DeleteRequest: %s: %w", requestId, models.ErrNoRequest)
	}
	return nil
}

// encodeRequest returns JSON text; lib/pq would send []byte as bytea.
func encodeRequest(req models.PurchaseRequest) (items, approvals string, err error) {
	itemList, stepList := req.Items, req.Approvals
	if itemList == nil {
		itemList = []models.RequestItem{}
	}
	if stepList == nil {
		stepList = []models.ApprovalStep{}
	}

	itemsJSON, err := json.Marshal(itemList)
	if err != nil {
		return "", "", fmt.Errorf("encoding items: %w", err)
	}
	approvalsJSON, err := json.Marshal(stepList)
	if err != nil {
		return "", "", fmt.Errorf("encoding approvals: %w", err)
	}
	return string(itemsJSON), string(approvalsJSON), nil
}
