package database

import (
	"database/sql"
	"fmt"

	"mysql-backup-verify/internal/config"
)

// ConnectionManager manages the three connections a verification run needs:
// the live database, the validation database, and a schema-less admin
// connection used to drop and recreate the validation database.
type ConnectionManager struct {
	service      DatabaseService
	liveDB       *sql.DB
	validationDB *sql.DB
	adminDB      *sql.DB
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(service DatabaseService) *ConnectionManager {
	return &ConnectionManager{
		service: service,
	}
}

// ConnectToLive establishes the connection to the live database
func (cm *ConnectionManager) ConnectToLive(cfg config.DatabaseConfig) error {
	if cm.liveDB != nil {
		cm.service.Close(cm.liveDB)
	}

	db, err := cm.service.Connect(cfg.DSN(), cfg.Host, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to live database: %w", err)
	}

	cm.liveDB = db
	return nil
}

// ConnectAdmin establishes the schema-less admin connection used for
// DROP/CREATE of the validation database.
func (cm *ConnectionManager) ConnectAdmin(cfg config.DatabaseConfig) error {
	if cm.adminDB != nil {
		cm.service.Close(cm.adminDB)
	}

	db, err := cm.service.Connect(cfg.AdminDSN(), cfg.Host, "")
	if err != nil {
		return fmt.Errorf("failed to connect for database administration: %w", err)
	}

	cm.adminDB = db
	return nil
}

// ConnectToValidation establishes the connection to the validation database.
// It must be called after the validation database has been created; the
// connection is torn down and rebuilt on every attempt.
func (cm *ConnectionManager) ConnectToValidation(cfg config.DatabaseConfig, validationDatabase string) error {
	if cm.validationDB != nil {
		cm.service.Close(cm.validationDB)
	}

	validationCfg := cfg
	validationCfg.Database = validationDatabase

	db, err := cm.service.Connect(validationCfg.DSN(), validationCfg.Host, validationDatabase)
	if err != nil {
		return fmt.Errorf("failed to connect to validation database: %w", err)
	}

	cm.validationDB = db
	return nil
}

// GetLiveDB returns the live database connection
func (cm *ConnectionManager) GetLiveDB() *sql.DB {
	return cm.liveDB
}

// GetValidationDB returns the validation database connection
func (cm *ConnectionManager) GetValidationDB() *sql.DB {
	return cm.validationDB
}

// GetAdminDB returns the admin connection
func (cm *ConnectionManager) GetAdminDB() *sql.DB {
	return cm.adminDB
}

// TestConnections tests the live and admin connections
func (cm *ConnectionManager) TestConnections() error {
	if cm.liveDB == nil {
		return fmt.Errorf("live database connection is not established")
	}
	if cm.adminDB == nil {
		return fmt.Errorf("admin database connection is not established")
	}

	if err := cm.service.TestConnection(cm.liveDB); err != nil {
		return fmt.Errorf("live database connection test failed: %w", err)
	}
	if err := cm.service.TestConnection(cm.adminDB); err != nil {
		return fmt.Errorf("admin database connection test failed: %w", err)
	}
	return nil
}

// Close gracefully closes all database connections
func (cm *ConnectionManager) Close() error {
	var errs []error

	if cm.liveDB != nil {
		if err := cm.service.Close(cm.liveDB); err != nil {
			errs = append(errs, fmt.Errorf("failed to close live database: %w", err))
		}
		cm.liveDB = nil
	}

	if cm.validationDB != nil {
		if err := cm.service.Close(cm.validationDB); err != nil {
			errs = append(errs, fmt.Errorf("failed to close validation database: %w", err))
		}
		cm.validationDB = nil
	}

	if cm.adminDB != nil {
		if err := cm.service.Close(cm.adminDB); err != nil {
			errs = append(errs, fmt.Errorf("failed to close admin connection: %w", err))
		}
		cm.adminDB = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing connections: %v", errs)
	}

	return nil
}
