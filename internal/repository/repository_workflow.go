package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"procurement/internal/models"

	"github.com/lib/pq"
)

// CurrentWorkflow returns the latest registry version. ok is false while the
// registry has never been set.
func (repo *Repository) CurrentWorkflow(ctx context.Context) (models.WorkflowSnapshot, bool, error) {
	query := `
	SELECT
		version,
		roles,
		updated_by,
		created_at
	FROM workflow_versions
	ORDER BY version DESC
	LIMIT 1
	`

	var w models.WorkflowSnapshot
	row := repo.db.QueryRowContext(ctx, query)
	err := row.Scan(&w.Version, pq.Array(&w.Roles), &w.UpdatedBy, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return w, false, nil
	} else if err != nil {
		return w, false, fmt.Errorf("repository.Repository.CurrentWorkflow: %w", err)
	}

	return w, true, nil
}

// AddWorkflow appends a new registry version.
func (repo *Repository) AddWorkflow(ctx context.Context, roles []string, updatedBy string) (models.WorkflowSnapshot, error) {
	query := `
	INSERT INTO workflow_versions
		(roles, updated_by)
	VALUES
		($1, $2)
	RETURNING
		version, created_at
	`

	w := models.WorkflowSnapshot{Roles: append([]string(nil), roles...), UpdatedBy: updatedBy}
	row := repo.db.QueryRowContext(ctx, query, pq.Array(roles), updatedBy)
	err := row.Scan(&w.Version, &w.CreatedAt)
	if err != nil {
		return w, fmt.Errorf("repository.Repository.AddWorkflow: %w", err)
	}

	return w, nil
}
