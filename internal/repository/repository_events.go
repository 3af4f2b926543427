package repository

import (
	"context"
	"database/sql"
	"fmt"

	"procurement/internal/models"
)

func (repo *Repository) addEvent(ctx context.Context, e models.RequestEvent, tx *sql.Tx) (models.RequestEvent, error) {
	query := `
	INSERT INTO request_events
		(request_id, action, actor_id, status_before, status_after, comments)
	VALUES
		($1, $2, $3, $4, $5, $6)
	RETURNING
		id, created_at
	`

	row := repo.conn(tx).QueryRowContext(ctx, query, e.RequestId, e.Action, nullUUID(e.ActorId), e.StatusBefore, e.StatusAfter, e.Comments)
	err := row.Scan(&e.Id, &e.CreatedAt)
	if err != nil {
		return e, fmt.Errorf("repository.Repository.addEvent: %w", err)
	}
	return e, nil
}

// GetRequestEvents lists the audit trail of a request, oldest first.
func (repo *Repository) GetRequestEvents(ctx context.Context, requestId string, limit, offset int) ([]models.RequestEvent, error) {
	query := `
	SELECT
		id,
		request_id,
		action,
		COALESCE(actor_id::text, ''),
		status_before,
		status_after,
		comments,
		created_at
	FROM request_events
	WHERE request_id = $3
	ORDER BY created_at, id
	LIMIT $1
	OFFSET $2
	`

	params := make([]interface{}, 0, 3)
	if limit <= 0 {
		params = append(params, nil)
	} else {
		params = append(params, limit)
	}
	params = append(params, offset, requestId)

	rows, err := repo.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetRequestEvents: %w", err)
	}
	defer rows.Close()

	events := []models.RequestEvent{}
	var e models.RequestEvent
	for rows.Next() {
		err = rows.Scan(&e.Id, &e.RequestId, &e.Action, &e.ActorId, &e.StatusBefore, &e.StatusAfter, &e.Comments, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.GetRequestEvents: rows scan failed: %w", err)
		}
		events = append(events, e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository.Repository.GetRequestEvents: %w", err)
	}

	return events, nil
}
