package internal

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const (
	dbConnectAttempts = 10
	dbConnectBackoff  = time.Second
)

// ConnString returns a postgres URL with credentials escaped.
func (c *DatabaseConfig) ConnString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// NewDBPool connects to Postgres, retrying the initial ping while the
// database starts up.
func NewDBPool(ctx context.Context, cfg *DatabaseConfig, log logrus.FieldLogger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	for attempt := 1; ; attempt++ {
		err = pool.Ping(ctx)
		if err == nil {
			return pool, nil
		}
		if attempt == dbConnectAttempts {
			break
		}
		log.WithError(err).WithField("attempt", attempt).Warn("database not ready, retrying")
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(dbConnectBackoff):
		}
	}
	pool.Close()
	return nil, fmt.Errorf("failed to ping database: %w", err)
}
