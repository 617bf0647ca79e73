package interfaces

import "github.com/jackc/pgx/v5"

type UoW interface {
	Begin() (pgx.Tx, error)
	Commit() error
	Rollback() error
	GetTx() pgx.Tx
}

type Event interface {
	GetType() string
}
