package verify

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"mysql-backup-verify/internal/config"
	"mysql-backup-verify/internal/database"
	"mysql-backup-verify/internal/logging"
)

func testVerifyConfig() config.VerifyConfig {
	return config.VerifyConfig{
		ValidationDatabase: "thingsboard_validation",
		StructuralTables:   []string{"device", "tenant"},
		TimeSeriesTable:    "ts_kv",
		TimeSeriesColumn:   "ts",
		AcceptMultiplier:   5,
		WarnMultiplier:     15,
	}
}

func countQuery(schema, table string) string {
	return regexp.QuoteMeta("SELECT COUNT(*) FROM `" + schema + "`.`" + table + "`")
}

func TestCompute_DerivesCeilingsFromThroughput(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	// 1800 rows in the trailing 60s window is 30 rows/sec
	mock.ExpectQuery(countQuery("thingsboard", "ts_kv")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1800))

	engine := NewThresholdEngine(database.NewService(), testVerifyConfig(), logging.NewDefaultLogger())

	thresholds, err := engine.Compute(context.Background(), db, "thingsboard", 10*time.Second)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if thresholds.RowsPerSecond != 30 {
		t.Errorf("Expected 30 rows/sec, got %d", thresholds.RowsPerSecond)
	}
	if thresholds.Expected != 300 {
		t.Errorf("Expected 300 expected rows, got %d", thresholds.Expected)
	}
	if thresholds.AcceptCeiling != 1500 {
		t.Errorf("Expected accept ceiling 1500, got %d", thresholds.AcceptCeiling)
	}
	if thresholds.WarnCeiling != 4500 {
		t.Errorf("Expected warn ceiling 4500, got %d", thresholds.WarnCeiling)
	}
	if thresholds.AcceptCeiling > thresholds.WarnCeiling {
		t.Error("Accept ceiling must never exceed warn ceiling")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestCompute_TruncatesFractionalThroughput(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	// 119 rows over 60s truncates to 1 row/sec, not 2
	mock.ExpectQuery(countQuery("thingsboard", "ts_kv")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(119))

	engine := NewThresholdEngine(database.NewService(), testVerifyConfig(), logging.NewDefaultLogger())

	thresholds, err := engine.Compute(context.Background(), db, "thingsboard", 60*time.Second)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if thresholds.RowsPerSecond != 1 {
		t.Errorf("Expected truncated 1 row/sec, got %d", thresholds.RowsPerSecond)
	}
	if thresholds.Expected != 60 {
		t.Errorf("Expected 60 expected rows, got %d", thresholds.Expected)
	}
}

func TestCompute_IdleSystemYieldsZeroCeilings(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(countQuery("thingsboard", "ts_kv")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	engine := NewThresholdEngine(database.NewService(), testVerifyConfig(), logging.NewDefaultLogger())

	thresholds, err := engine.Compute(context.Background(), db, "thingsboard", 5*time.Minute)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if thresholds.AcceptCeiling != 0 || thresholds.WarnCeiling != 0 {
		t.Errorf("Expected zero ceilings on idle system, got accept=%d warn=%d",
			thresholds.AcceptCeiling, thresholds.WarnCeiling)
	}
}

func TestCompute_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(countQuery("thingsboard", "ts_kv")).
		WillReturnError(sqlmock.ErrCancelled)

	engine := NewThresholdEngine(database.NewService(), testVerifyConfig(), logging.NewDefaultLogger())

	if _, err := engine.Compute(context.Background(), db, "thingsboard", time.Second); err == nil {
		t.Error("Expected error when throughput query fails")
	}
}
