package store

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"checkout-service/internal/util"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStore connects to Postgres. credential is the service key, used as the
// password when databaseURL does not carry one.
func NewStore(databaseURL, credential string) (*Store, error) {
	dsn, err := BuildDSN(databaseURL, credential)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, logger: util.GetLogger()}, nil
}

// BuildDSN injects credential as the password of a postgres:// URL that has
// none. Key/value DSNs are returned unchanged.
func BuildDSN(databaseURL, credential string) (string, error) {
	if !strings.HasPrefix(databaseURL, "postgres://") && !strings.HasPrefix(databaseURL, "postgresql://") {
		return databaseURL, nil
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	if credential == "" {
		return u.String(), nil
	}
	if u.User == nil {
		u.User = url.UserPassword("postgres", credential)
	} else if _, ok := u.User.Password(); !ok {
		u.User = url.UserPassword(u.User.Username(), credential)
	}
	return u.String(), nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
