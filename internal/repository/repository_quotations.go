package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"procurement/internal/models"
)

// ReplaceQuotations makes qs the complete quotation set of a request.
// Suppliers missing from qs lose their stored quotation.
func (repo *Repository) ReplaceQuotations(ctx context.Context, requestId string, qs []models.SupplierQuotation, event models.RequestEvent) ([]models.SupplierQuotation, error) {
	query := `
	INSERT INTO supplier_quotations
		(purchase_request_id, supplier_id, items, discount)
	VALUES
		($1, $2, $3, $4)
	RETURNING
		id, created_at
	`

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.ReplaceQuotations: failed to start transaction: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM supplier_quotations WHERE purchase_request_id = $1", requestId)
	if err != nil {
		return nil, wrapRollbackErr(tx, fmt.Errorf("repository.Repository.ReplaceQuotations: %w", err))
	}

	result := make([]models.SupplierQuotation, 0, len(qs))
	for _, q := range qs {
		items, err := json.Marshal(q.Items)
		if err != nil {
			return nil, wrapRollbackErr(tx, fmt.Errorf("repository.Repository.ReplaceQuotations: encoding items: %w", err))
		}

		q.PurchaseRequestId = requestId
		row := tx.QueryRowContext(ctx, query, requestId, q.SupplierId, string(items), q.Discount)
		err = row.Scan(&q.Id, &q.CreatedAt)
		if err != nil {
			return nil, wrapRollbackErr(tx, fmt.Errorf("repository.Repository.ReplaceQuotations: %w", err))
		}
		result = append(result, q)
	}

	event.RequestId = requestId
	_, err = repo.addEvent(ctx, event, tx)
	if err != nil {
		return nil, wrapRollbackErr(tx, fmt.Errorf("repository.Repository.ReplaceQuotations: %w", err))
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.ReplaceQuotations: failed to commit transaction: %w", err)
	}

	return result, nil
}

func (repo *Repository) GetQuotations(ctx context.Context, requestId string) ([]models.SupplierQuotation, error) {
	query := `
	SELECT
		id,
		purchase_request_id,
		supplier_id,
		items,
		discount,
		created_at
	FROM supplier_quotations
	WHERE purchase_request_id = $1
	ORDER BY supplier_id
	`

	rows, err := repo.db.QueryContext(ctx, query, requestId)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetQuotations: %w", err)
	}
	defer rows.Close()

	result := []models.SupplierQuotation{}
	for rows.Next() {
		var q models.SupplierQuotation
		var items []byte
		err = rows.Scan(&q.Id, &q.PurchaseRequestId, &q.SupplierId, &items, &q.Discount, &q.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.GetQuotations: rows scan failed: %w", err)
		}
		if err = json.Unmarshal(items, &q.Items); err != nil {
			return nil, fmt.Errorf("repository.Repository.GetQuotations: decoding items: %w", err)
		}
		result = append(result, q)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository.Repository.GetQuotations: %w", err)
	}

	return result, nil
}
