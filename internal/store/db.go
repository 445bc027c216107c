package store

import (
	"context"
	"database/sql"
	"errors"
)

// ErrConditionFailed is returned when a guarded UPDATE matched no row.
var ErrConditionFailed = errors.New("store: conditional update matched no rows")

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type Selecter interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type DB interface {
	Execer
	Getter
	Selecter
}

type Tx interface {
	Execer
	Getter
}

func derefStringPtr(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func requireOneRow(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrConditionFailed
	}
	return nil
}

// guarded turns sql.ErrNoRows from an UPDATE ... RETURNING into ErrConditionFailed.
func guarded(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrConditionFailed
	}
	return err
}
