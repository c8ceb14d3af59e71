package repository

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrConnection means the database could not be reached.
	ErrConnection = errors.New("database unreachable")
	// ErrStore wraps any other failed statement.
	ErrStore = errors.New("task store failure")
)

// PostgreSQL SQLSTATE codes.
const (
	pgUndefinedTable = "42P01"
	pgDuplicateTable = "42P07"
)

// classify tags err with ErrConnection or ErrStore, keeping the cause.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConnection) || errors.Is(err, ErrStore) {
		return err
	}
	if isConnectionError(err) {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return fmt.Errorf("%w: %w", ErrStore, err)
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// isMissingRelation reports a statement that failed because the table does not exist.
func isMissingRelation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUndefinedTable
	}
	return strings.Contains(err.Error(), "no such table")
}

// isDuplicateRelation reports a CREATE TABLE that lost a race.
func isDuplicateRelation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgDuplicateTable
	}
	return strings.Contains(err.Error(), "already exists")
}
