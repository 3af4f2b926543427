package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"procurement/internal/config"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

func NewPostgresDB(cfg *config.PostgresConfig) (*sql.DB, error) {
	log.Info().Str("host", hostOf(cfg.Conn)).Msg("connecting db")

	db, err := sql.Open("postgres", cfg.Conn)
	if err != nil {
		return nil, fmt.Errorf("db.NewPostgresDB: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("db.NewPostgresDB: %w", err)
	}

	return db, nil
}

// hostOf keeps credentials out of the log.
func hostOf(conn string) string {
	u, err := url.Parse(conn)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
