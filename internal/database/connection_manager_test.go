package database

import (
	"context"
	"database/sql"
	"testing"

	"mysql-backup-verify/internal/config"
)

// stubService hands out pre-built connections without touching a server
type stubService struct {
	DatabaseService

	connected []string
	closed    int
}

func (s *stubService) Connect(dsn, host, database string) (*sql.DB, error) {
	s.connected = append(s.connected, database)
	return &sql.DB{}, nil
}

func (s *stubService) Close(db *sql.DB) error {
	s.closed++
	return nil
}

func (s *stubService) TestConnection(db *sql.DB) error { return nil }

func (s *stubService) DropDatabaseIfExists(ctx context.Context, db *sql.DB, name string) error {
	return nil
}

func testDatabaseConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host: "localhost", Port: 3306,
		Username: "backup", Password: "pw", Database: "thingsboard",
	}
}

func TestConnectionManager_ConnectAll(t *testing.T) {
	service := &stubService{}
	cm := NewConnectionManager(service)

	if err := cm.ConnectToLive(testDatabaseConfig()); err != nil {
		t.Fatalf("ConnectToLive failed: %v", err)
	}
	if err := cm.ConnectAdmin(testDatabaseConfig()); err != nil {
		t.Fatalf("ConnectAdmin failed: %v", err)
	}
	if err := cm.ConnectToValidation(testDatabaseConfig(), "thingsboard_validation"); err != nil {
		t.Fatalf("ConnectToValidation failed: %v", err)
	}

	if cm.GetLiveDB() == nil || cm.GetAdminDB() == nil || cm.GetValidationDB() == nil {
		t.Error("Expected all three connections to be established")
	}

	// Admin connection is schema-less
	expected := []string{"thingsboard", "", "thingsboard_validation"}
	for i, database := range expected {
		if service.connected[i] != database {
			t.Errorf("Expected connection %d to target %q, got %q", i, database, service.connected[i])
		}
	}
}

func TestConnectionManager_ValidationReconnectClosesPrevious(t *testing.T) {
	service := &stubService{}
	cm := NewConnectionManager(service)

	if err := cm.ConnectToValidation(testDatabaseConfig(), "thingsboard_validation"); err != nil {
		t.Fatalf("First validation connect failed: %v", err)
	}
	if err := cm.ConnectToValidation(testDatabaseConfig(), "thingsboard_validation"); err != nil {
		t.Fatalf("Second validation connect failed: %v", err)
	}

	if service.closed != 1 {
		t.Errorf("Expected previous validation connection to be closed once, got %d", service.closed)
	}
}

func TestConnectionManager_TestConnectionsRequiresLiveAndAdmin(t *testing.T) {
	cm := NewConnectionManager(&stubService{})

	if err := cm.TestConnections(); err == nil {
		t.Error("Expected error before connections are established")
	}
}

func TestConnectionManager_Close(t *testing.T) {
	service := &stubService{}
	cm := NewConnectionManager(service)

	cm.ConnectToLive(testDatabaseConfig())
	cm.ConnectAdmin(testDatabaseConfig())
	cm.ConnectToValidation(testDatabaseConfig(), "thingsboard_validation")

	if err := cm.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if service.closed != 3 {
		t.Errorf("Expected all three connections closed, got %d", service.closed)
	}

	if cm.GetLiveDB() != nil || cm.GetAdminDB() != nil || cm.GetValidationDB() != nil {
		t.Error("Expected connections to be cleared after close")
	}
}
