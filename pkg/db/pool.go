package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CredentialProvider supplies credentials for every new physical connection
// the pool opens. Implementations backed by a secrets manager can rotate
// passwords without restarting the worker.
type CredentialProvider interface {
	Credentials(ctx context.Context) (user string, password string, err error)
}

// StaticCredentials satisfies CredentialProvider with fixed values.
type StaticCredentials struct {
	User     string
	Password string
}

func (s StaticCredentials) Credentials(context.Context) (string, string, error) {
	return s.User, s.Password, nil
}

// NewPool builds a pgx pool whose BeforeConnect hook asks the provider for a
// fresh credential per physical connection.
func NewPool(ctx context.Context, cfg Config, creds CredentialProvider) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("can't parse db config, %v", err)
	}
	poolCfg.BeforeConnect = func(ctx context.Context, connCfg *pgx.ConnConfig) error {
		user, password, err := creds.Credentials(ctx)
		if err != nil {
			return fmt.Errorf("can't obtain db credentials, %v", err)
		}
		connCfg.User = user
		connCfg.Password = password
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool, %v", err)
	}
	return pool, nil
}
