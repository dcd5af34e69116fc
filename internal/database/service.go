package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"mysql-backup-verify/internal/errors"
	"mysql-backup-verify/internal/logging"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// DatabaseService defines the interface for database operations
type DatabaseService interface {
	Connect(dsn string, host, database string) (*sql.DB, error)
	TestConnection(db *sql.DB) error
	Close(db *sql.DB) error
	CountRows(ctx context.Context, db *sql.DB, schema, table string) (int64, error)
	CountRowsUpTo(ctx context.Context, db *sql.DB, schema, table, column string, cutoffMillis int64) (int64, error)
	CountRowsSince(ctx context.Context, db *sql.DB, schema, table, column string, sinceMillis int64) (int64, error)
	DropDatabaseIfExists(ctx context.Context, db *sql.DB, name string) error
	CreateDatabase(ctx context.Context, db *sql.DB, name string) error
}

// Service implements the DatabaseService interface
type Service struct {
	connectionTimeout time.Duration
	logger            *logging.Logger
}

// NewService creates a new database service with default settings
func NewService() *Service {
	return &Service{
		connectionTimeout: 30 * time.Second,
		logger:            logging.NewDefaultLogger(),
	}
}

// NewServiceWithLogger creates a new database service with a custom logger
func NewServiceWithLogger(logger *logging.Logger) *Service {
	return &Service{
		connectionTimeout: 30 * time.Second,
		logger:            logger,
	}
}

// Connect establishes a connection to a MySQL endpoint
func (s *Service) Connect(dsn string, host, database string) (*sql.DB, error) {
	startTime := time.Now()

	s.logger.WithFields(map[string]interface{}{
		"host":     host,
		"database": database,
	}).Info("Attempting database connection")

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		s.logger.LogDatabaseConnection(host, database, false, time.Since(startTime), err)
		return nil, errors.WrapError(err, "failed to open database connection")
	}

	// Connection pool settings. The orchestration is strictly sequential,
	// so a small pool is sufficient.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := s.TestConnection(db); err != nil {
		db.Close()
		s.logger.LogDatabaseConnection(host, database, false, time.Since(startTime), err)
		return nil, err
	}

	s.logger.LogDatabaseConnection(host, database, true, time.Since(startTime), nil)
	return db, nil
}

// TestConnection verifies that the database connection is working
func (s *Service) TestConnection(db *sql.DB) error {
	if db == nil {
		return errors.NewAppError(errors.ErrorTypeValidation, "database connection is nil", nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.connectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return errors.WrapError(err, "failed to ping database")
	}

	s.logger.Debug("Database connection test successful")
	return nil
}

// Close gracefully closes the database connection
func (s *Service) Close(db *sql.DB) error {
	if db == nil {
		s.logger.Debug("Database connection is nil, nothing to close")
		return nil
	}

	if err := db.Close(); err != nil {
		s.logger.WithField("error", err.Error()).Error("Failed to close database connection")
		return errors.WrapError(err, "failed to close database connection")
	}

	return nil
}

// CountRows returns the number of rows in schema.table
func (s *Service) CountRows(ctx context.Context, db *sql.DB, schema, table string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s.%s", quoteIdentifier(schema), quoteIdentifier(table))
	return s.scalarCount(ctx, db, query)
}

// CountRowsUpTo returns the number of rows in schema.table whose column value
// is at or before cutoffMillis. Used for drift estimation against the
// snapshot's logical cutoff instant.
func (s *Service) CountRowsUpTo(ctx context.Context, db *sql.DB, schema, table, column string, cutoffMillis int64) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s.%s WHERE %s <= ?",
		quoteIdentifier(schema), quoteIdentifier(table), quoteIdentifier(column))
	return s.scalarCount(ctx, db, query, cutoffMillis)
}

// CountRowsSince returns the number of rows written after sinceMillis. Used
// to measure live write throughput over a trailing window.
func (s *Service) CountRowsSince(ctx context.Context, db *sql.DB, schema, table, column string, sinceMillis int64) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s.%s WHERE %s > ?",
		quoteIdentifier(schema), quoteIdentifier(table), quoteIdentifier(column))
	return s.scalarCount(ctx, db, query, sinceMillis)
}

// scalarCount executes a single-integer count query with logging
func (s *Service) scalarCount(ctx context.Context, db *sql.DB, query string, args ...interface{}) (int64, error) {
	if db == nil {
		return 0, errors.NewAppError(errors.ErrorTypeValidation, "database connection is nil", nil)
	}

	var count int64
	startTime := time.Now()
	err := db.QueryRowContext(ctx, query, args...).Scan(&count)
	s.logger.LogSQLExecution(logging.SanitizeSQL(query), time.Since(startTime), 1, err)

	if err != nil {
		return 0, errors.WrapError(err, "count query failed")
	}
	return count, nil
}

// DropDatabaseIfExists drops the named database when present. Absence is not
// an error; the validation database is rebuilt from scratch on every run.
func (s *Service) DropDatabaseIfExists(ctx context.Context, db *sql.DB, name string) error {
	if db == nil {
		return errors.NewAppError(errors.ErrorTypeValidation, "database connection is nil", nil)
	}

	query := fmt.Sprintf("DROP DATABASE IF EXISTS %s", quoteIdentifier(name))
	startTime := time.Now()
	_, err := db.ExecContext(ctx, query)
	s.logger.LogSQLExecution(logging.SanitizeSQL(query), time.Since(startTime), 0, err)

	if err != nil {
		return errors.WrapError(err, fmt.Sprintf("failed to drop database %s", name))
	}
	return nil
}

// CreateDatabase creates the named database
func (s *Service) CreateDatabase(ctx context.Context, db *sql.DB, name string) error {
	if db == nil {
		return errors.NewAppError(errors.ErrorTypeValidation, "database connection is nil", nil)
	}

	query := fmt.Sprintf("CREATE DATABASE %s", quoteIdentifier(name))
	startTime := time.Now()
	_, err := db.ExecContext(ctx, query)
	s.logger.LogSQLExecution(logging.SanitizeSQL(query), time.Since(startTime), 0, err)

	if err != nil {
		return errors.WrapError(err, fmt.Sprintf("failed to create database %s", name))
	}
	return nil
}

// quoteIdentifier wraps a MySQL identifier in backticks, stripping any
// embedded backticks to keep the identifier unambiguous.
func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "") + "`"
}

// Ensure Service satisfies DatabaseService
var _ DatabaseService = (*Service)(nil)
