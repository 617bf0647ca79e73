package db

import (
	"fmt"

	"github.com/getsupporthub/search-provisioner/pkg/env"
)

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	// MaxConns bounds the pool, ConnTimeout applies per connection attempt.
	MaxConns    string
	ConnTimeout string
}

func NewConfig() Config {
	return Config{
		Host:        env.GetEnv("DB_HOST", "localhost"),
		Port:        env.GetEnv("DB_PORT", "5432"),
		User:        env.GetEnv("DB_USER", "postgres"),
		Password:    env.GetEnv("DB_PASSWORD", "postgres"),
		Database:    env.GetEnv("DB_NAME", "supporthub"),
		SSLMode:     env.GetEnv("DB_SSLMODE", "disable"),
		MaxConns:    env.GetEnv("DB_MAX_CONNS", "10"),
		ConnTimeout: env.GetEnv("DB_CONN_TIMEOUT", "5"),
	}
}

func (c Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s&pool_max_conns=%s&connect_timeout=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode, c.MaxConns, c.ConnTimeout)
}
