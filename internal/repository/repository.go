package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"procurement/internal/config"
	"procurement/internal/models"

	postgres "procurement/internal/repository/db"

	"github.com/google/uuid"
)

type Repository struct {
	db  *sql.DB
	cfg *config.PostgresConfig
}

func NewRepository(db *sql.DB, cfg *config.PostgresConfig) (*Repository, error) {
	var err error

	repo := &Repository{
		db:  db,
		cfg: cfg,
	}

	if repo.cfg == nil {
		repo.cfg, err = config.NewPostgresConfig()
		if err != nil {
			return nil, fmt.Errorf("repository.NewRepository: could not load postgres config: %w", err)
		}
	}

	if repo.db == nil {
		repo.db, err = postgres.NewPostgresDB(repo.cfg)
		if err != nil {
			return nil, fmt.Errorf("repository.NewRepository: could not open postgres db: %w", err)
		}
	}

	if repo.cfg.AutoMigrateUp == "true" {
		err = repo.MigrateUp()
		if err != nil {
			return nil, err
		}
	}

	return repo, nil
}

func (repo *Repository) MigrateUp() error {
	err := postgres.MigrateUp(repo.db, repo.cfg.MigrationsURL)
	if err != nil {
		return fmt.Errorf("repository.Repository.MigrateUp: %w", err)
	}
	return nil
}

func (repo *Repository) MigrateDown() error {
	err := postgres.MigrateDown(repo.db, repo.cfg.MigrationsURL)
	if err != nil {
		return fmt.Errorf("repository.Repository.MigrateDown: %w", err)
	}
	return nil
}

const userColumns = `
		id,
		username,
		COALESCE(first_name, ''),
		COALESCE(last_name, ''),
		role_id,
		created_at,
		updated_at
`

func scanUser(row *sql.Row) (models.User, bool, error) {
	var user models.User
	err := row.Scan(&user.Id, &user.Username, &user.FirstName, &user.LastName, &user.RoleId, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return user, false, nil
	} else if err != nil {
		return user, false, err
	}
	return user, true, nil
}

func (repo *Repository) UserByUsername(ctx context.Context, username string) (models.User, bool, error) {
	query := `SELECT` + userColumns + `FROM employee WHERE username = $1 LIMIT 1`

	user, ok, err := scanUser(repo.db.QueryRowContext(ctx, query, username))
	if err != nil {
		return user, false, fmt.Errorf("repository.Repository.UserByUsername: %w", err)
	}
	return user, ok, nil
}

func (repo *Repository) UserByUUID(ctx context.Context, UUID string) (models.User, bool, error) {
	if _, err := uuid.Parse(UUID); err != nil {
		return models.User{}, false, nil
	}
	query := `SELECT` + userColumns + `FROM employee WHERE id = $1 LIMIT 1`

	user, ok, err := scanUser(repo.db.QueryRowContext(ctx, query, UUID))
	if err != nil {
		return user, false, fmt.Errorf("repository.Repository.UserByUUID: %w", err)
	}
	return user, ok, nil
}

func (repo *Repository) AddUser(ctx context.Context, u models.User) (models.User, error) {
	query := `
	INSERT INTO employee
		(username, first_name, last_name, role_id)
	VALUES
		($1, $2, $3, $4)
	RETURNING
		id, created_at, updated_at
	`

	result := u
	row := repo.db.QueryRowContext(ctx, query, u.Username, u.FirstName, u.LastName, u.RoleId)
	err := row.Scan(&result.Id, &result.CreatedAt, &result.UpdatedAt)
	if err != nil {
		return result, fmt.Errorf("repository.Repository.AddUser: %w", err)
	}
	return result, nil
}

func (repo *Repository) Close() error {
	var migErr error
	if repo.cfg.AutoMigrateDown == "true" {
		migErr = repo.MigrateDown()
	}

	err := repo.db.Close()
	return errors.Join(migErr, err)
}

//// Service

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (repo *Repository) conn(tx *sql.Tx) dbtx {
	if tx == nil {
		return repo.db
	}
	return tx
}

func wrapRollbackErr(tx *sql.Tx, err error) error {
	rollerr := tx.Rollback()
	if rollerr == nil {
		return err
	}
	return fmt.Errorf("failed to rollback transaction after previous error: %w, %w", rollerr, err)
}

// nullUUID maps an empty id to NULL for nullable uuid columns.
func nullUUID(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}

// checkUUID reports malformed ids as notFound instead of letting postgres
// fail the uuid cast.
func checkUUID(id string, notFound error) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%s: %w", id, notFound)
	}
	return nil
}
