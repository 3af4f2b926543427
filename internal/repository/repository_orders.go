package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"procurement/internal/models"
)

const orderColumns = `
		id,
		po_number,
		purchase_request_id,
		supplier_id,
		currency,
		items,
		total_amount,
		status,
		COALESCE(issued_by::text, ''),
		created_at,
		updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (models.PurchaseOrder, error) {
	var o models.PurchaseOrder
	var items []byte

	err := row.Scan(&o.Id, &o.PoNumber, &o.PurchaseRequestId, &o.SupplierId, &o.Currency, &items, &o.TotalAmount, &o.Status, &o.IssuedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return o, err
	}
	if err = json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("decoding items: %w", err)
	}
	return o, nil
}

// NextOrderSequence allocates the next purchase order number.
func (repo *Repository) NextOrderSequence(ctx context.Context) (int64, error) {
	var seq int64
	err := repo.db.QueryRowContext(ctx, "SELECT nextval('purchase_order_seq')").Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("repository.Repository.NextOrderSequence: %w", err)
	}
	return seq, nil
}

// AddOrder stores an issued order, the awarded request and the event in one
// transaction.
func (repo *Repository) AddOrder(ctx context.Context, o models.PurchaseOrder, req models.PurchaseRequest, event models.RequestEvent) (models.PurchaseOrder, models.PurchaseRequest, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return o, req, fmt.Errorf("repository.Repository.AddOrder: encoding items: %w", err)
	}

	query := `
	INSERT INTO purchase_orders
		(po_number, purchase_request_id, supplier_id, currency, items, total_amount, status, issued_by)
	VALUES
		($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING
		id, created_at, updated_at
	`

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return o, req, fmt.Errorf("repository.Repository.AddOrder: failed to start transaction: %w", err)
	}

	order := o
	row := tx.QueryRowContext(ctx, query, o.PoNumber, o.PurchaseRequestId, o.SupplierId, o.Currency, string(items), o.TotalAmount, o.Status, nullUUID(o.IssuedBy))
	err = row.Scan(&order.Id, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return o, req, wrapRollbackErr(tx, fmt.Errorf("repository.Repository.AddOrder: %w", err))
	}

	awarded, err := repo.updateRequest(ctx, req, tx)
	if err != nil {
		return o, req, wrapRollbackErr(tx, fmt.Errorf("repository.Repository.AddOrder: %w", err))
	}

	event.RequestId = req.Id
	_, err = repo.addEvent(ctx, event, tx)
	if err != nil {
		return o, req, wrapRollbackErr(tx, fmt.Errorf("repository.Repository.AddOrder: %w", err))
	}

	err = tx.Commit()
	if err != nil {
		return o, req, fmt.Errorf("repository.Repository.AddOrder: failed to commit transaction: %w", err)
	}

	return order, awarded, nil
}

func (repo *Repository) GetOrderByUUID(ctx context.Context, UUID string) (models.PurchaseOrder, error) {
	if err := checkUUID(UUID, models.ErrNoOrder); err != nil {
		return models.PurchaseOrder{}, fmt.Errorf("repository.Repository.GetOrderByUUID: %w", err)
	}

	query := `SELECT` + orderColumns + `FROM purchase_orders WHERE id = $1`

	o, err := scanOrder(repo.db.QueryRowContext(ctx, query, UUID))
	if errors.Is(err, sql.ErrNoRows) {
		return o, fmt.Errorf("repository.Repository.GetOrderByUUID: %s: %w", UUID, models.ErrNoOrder)
	} else if err != nil {
		return o, fmt.Errorf("repository.Repository.GetOrderByUUID: %w", err)
	}
	return o, nil
}

func (repo *Repository) GetRequestOrders(ctx context.Context, requestId string) ([]models.PurchaseOrder, error) {
	query := `SELECT` + orderColumns + `FROM purchase_orders WHERE purchase_request_id = $1 ORDER BY po_number`

	rows, err := repo.db.QueryContext(ctx, query, requestId)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetRequestOrders: %w", err)
	}
	defer rows.Close()

	result := []models.PurchaseOrder{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.GetRequestOrders: rows scan failed: %w", err)
		}
		result = append(result, o)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository.Repository.GetRequestOrders: %w", err)
	}

	return result, nil
}

// UpdateOrder rewrites the lines and total of an order and records the event.
func (repo *Repository) UpdateOrder(ctx context.Context, o models.PurchaseOrder, event models.RequestEvent) (models.PurchaseOrder, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return o, fmt.Errorf("repository.Repository.UpdateOrder: encoding items: %w", err)
	}

	query := `
	UPDATE purchase_orders
	SET (items, total_amount, updated_at) = ($1, $2, CURRENT_TIMESTAMP)
	WHERE id = $3
	RETURNING
		updated_at
	`

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return o, fmt.Errorf("repository.Repository.UpdateOrder: failed to start transaction: %w", err)
	}

	result := o
	err = tx.QueryRowContext(ctx, query, string(items), o.TotalAmount, o.Id).Scan(&result.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return o, wrapRollbackErr(tx, fmt.Errorf("repository.Repository.UpdateOrder: %s: %w", o.Id, models.ErrNoOrder))
	} else if err != nil {
		return o, wrapRollbackErr(tx, fmt.Errorf("repository.Repository.UpdateOrder: %w", err))
	}

	event.RequestId = o.PurchaseRequestId
	_, err = repo.addEvent(ctx, event, tx)
	if err != nil {
		return o, wrapRollbackErr(tx, fmt.Errorf("repository.Repository.UpdateOrder: %w", err))
	}

	err = tx.Commit()
	if err != nil {
		return o, fmt.Errorf("repository.Repository.UpdateOrder: failed to commit transaction: %w", err)
	}

	return result, nil
}
