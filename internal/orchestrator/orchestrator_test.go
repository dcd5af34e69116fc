package orchestrator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mysql-backup-verify/internal/command"
	"mysql-backup-verify/internal/config"
	"mysql-backup-verify/internal/database"
	apperrors "mysql-backup-verify/internal/errors"
	"mysql-backup-verify/internal/logging"
	"mysql-backup-verify/internal/notify"
	"mysql-backup-verify/internal/snapshot"
	"mysql-backup-verify/internal/verify"
)

// fakeRunner simulates mysqldump and the mysql client. dumpDelay stretches
// the dump phase to model a loaded server.
type fakeRunner struct {
	dumpDelay time.Duration
}

func (f *fakeRunner) Run(ctx context.Context, spec command.Spec) error {
	switch spec.Name {
	case "mysqldump":
		if f.dumpDelay > 0 {
			time.Sleep(f.dumpDelay)
		}
		io.WriteString(spec.Stdout, "CREATE TABLE device (id INT);\n")
	case "mysql":
		if spec.Stdin != nil {
			io.Copy(io.Discard, spec.Stdin)
		}
	}
	return nil
}

// fakeDBService scripts the count queries per verification attempt. The
// attempt counter advances when the validation database is dropped, which
// happens exactly once per attempt.
type fakeDBService struct {
	attempt int
	dropped int
	created int

	// structural returns the row count of a structural table; schema
	// distinguishes the live from the restored side.
	structural func(attempt int, schema, table string) int64
	// upTo returns the pre-cutoff time-series count per side
	upTo func(attempt int, schema string) int64
	// recent is the trailing-window throughput sample
	recent int64
}

func (f *fakeDBService) Connect(dsn, host, database string) (*sql.DB, error) { return nil, nil }
func (f *fakeDBService) TestConnection(db *sql.DB) error                     { return nil }
func (f *fakeDBService) Close(db *sql.DB) error                              { return nil }

func (f *fakeDBService) CountRows(ctx context.Context, db *sql.DB, schema, table string) (int64, error) {
	if f.structural != nil {
		return f.structural(f.attempt, schema, table), nil
	}
	return 10, nil
}

func (f *fakeDBService) CountRowsUpTo(ctx context.Context, db *sql.DB, schema, table, column string, cutoffMillis int64) (int64, error) {
	if f.upTo != nil {
		return f.upTo(f.attempt, schema), nil
	}
	return 100, nil
}

func (f *fakeDBService) CountRowsSince(ctx context.Context, db *sql.DB, schema, table, column string, sinceMillis int64) (int64, error) {
	return f.recent, nil
}

func (f *fakeDBService) DropDatabaseIfExists(ctx context.Context, db *sql.DB, name string) error {
	f.attempt++
	f.dropped++
	return nil
}

func (f *fakeDBService) CreateDatabase(ctx context.Context, db *sql.DB, name string) error {
	f.created++
	return nil
}

var _ database.DatabaseService = (*fakeDBService)(nil)

func testConfig(t *testing.T, backupDir string) *config.Config {
	t.Helper()
	return &config.Config{
		Live: config.DatabaseConfig{
			Host: "localhost", Port: 3306,
			Username: "backup", Password: "secret", Database: "thingsboard",
		},
		Backup: config.BackupConfig{
			Directory: backupDir, Prefix: "tb", Compression: "gzip", Level: 6,
		},
		Verify: config.VerifyConfig{
			ValidationDatabase: "thingsboard_validation",
			StructuralTables:   []string{"device"},
			TimeSeriesTable:    "ts_kv",
			TimeSeriesColumn:   "ts",
			AcceptMultiplier:   5,
			WarnMultiplier:     15,
		},
		Retry: config.RetryConfig{MaxAttempts: 3, BaseInterval: time.Millisecond},
	}
}

func buildOrchestrator(t *testing.T, cfg *config.Config, service database.DatabaseService, notification config.NotificationConfig) *Orchestrator {
	t.Helper()
	return buildOrchestratorWithRunner(t, cfg, service, notification, &fakeRunner{})
}

func buildOrchestratorWithRunner(t *testing.T, cfg *config.Config, service database.DatabaseService, notification config.NotificationConfig, runner command.Runner) *Orchestrator {
	t.Helper()
	logger := logging.NewDefaultLogger()

	store := snapshot.NewStore(cfg.Backup.Directory, cfg.Backup.Prefix, logger)
	producer, err := snapshot.NewProducer(store, runner, cfg.Live, cfg.Backup, logger)
	if err != nil {
		t.Fatalf("Failed to create producer: %v", err)
	}

	restorer := verify.NewRestorer(store, runner, service, cfg.Live, logger)
	checker := verify.NewConsistencyChecker(service, cfg.Verify, logger)
	estimator := verify.NewDriftEstimator(service, cfg.Verify, logger)
	thresholds := verify.NewThresholdEngine(service, cfg.Verify, logger)
	connections := database.NewConnectionManager(service)
	notifier := notify.NewManager(logger, notification)

	orch, err := New(cfg, store, producer, restorer, checker, estimator, thresholds, connections, notifier, logger)
	if err != nil {
		t.Fatalf("Failed to create orchestrator: %v", err)
	}
	return orch
}

func backupArtifacts(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "tb_*"))
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	return matches
}

func TestRun_FirstAttemptKept(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	service := &fakeDBService{} // exact restore on an idle system

	orch := buildOrchestrator(t, cfg, service, config.NotificationConfig{})

	result, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Outcome != OutcomeKept {
		t.Errorf("Expected KEPT, got %s", result.Outcome)
	}
	if result.Verdict != verify.VerdictStable {
		t.Errorf("Expected stable verdict, got %s", result.Verdict)
	}
	if result.Drift != 0 {
		t.Errorf("Expected zero drift, got %d", result.Drift)
	}
	if len(result.Attempts) != 1 {
		t.Errorf("Expected a single attempt, got %d", len(result.Attempts))
	}
	if result.Token == "" {
		t.Error("Expected kept result to carry the backup token")
	}

	// The kept set stays on disk
	if artifacts := backupArtifacts(t, dir); len(artifacts) == 0 {
		t.Error("Expected backup artifacts to remain after a kept run")
	}

	// Validation database was rebuilt exactly once
	if service.dropped != 1 || service.created != 1 {
		t.Errorf("Expected one drop and one create, got %d/%d", service.dropped, service.created)
	}
}

func TestRun_RetriesAfterMismatchThenKeeps(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)

	service := &fakeDBService{
		structural: func(attempt int, schema, table string) int64 {
			// First attempt: restored copy is short one device row
			if attempt == 1 && schema == "thingsboard_validation" {
				return 9
			}
			return 10
		},
	}

	orch := buildOrchestrator(t, cfg, service, config.NotificationConfig{})

	result, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Outcome != OutcomeKept {
		t.Errorf("Expected KEPT after retry, got %s", result.Outcome)
	}
	if len(result.Attempts) != 2 {
		t.Fatalf("Expected 2 attempts, got %d", len(result.Attempts))
	}
	if result.Attempts[0].Error == "" {
		t.Error("Expected first attempt to record a failure")
	}
	if result.Attempts[1].Error != "" {
		t.Errorf("Expected second attempt to succeed, got %s", result.Attempts[1].Error)
	}
}

func TestRun_ExhaustionDeletesEverythingAndAlerts(t *testing.T) {
	dir := t.TempDir()
	alertPath := filepath.Join(t.TempDir(), "alerts.log")

	cfg := testConfig(t, dir)
	cfg.Retry.MaxAttempts = 2

	// Idle system with persistent drift: every attempt is rejected
	service := &fakeDBService{
		upTo: func(attempt int, schema string) int64 {
			if schema == "thingsboard" {
				return 1000
			}
			return 900
		},
	}

	notification := config.NotificationConfig{
		Enabled: true,
		File:    &config.FileAlertConfig{Path: alertPath, Format: "json"},
	}

	orch := buildOrchestrator(t, cfg, service, notification)

	result, err := orch.Run(context.Background())
	if err == nil {
		t.Fatal("Expected exhaustion error")
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Type != apperrors.ErrorTypeExhaustion {
		t.Errorf("Expected exhaustion error type, got %v", err)
	}
	if result.Outcome != OutcomeExhausted {
		t.Errorf("Expected EXHAUSTED, got %s", result.Outcome)
	}
	if len(result.Attempts) != 2 {
		t.Errorf("Expected 2 attempts, got %d", len(result.Attempts))
	}

	// Every failed set was deleted in full
	if artifacts := backupArtifacts(t, dir); len(artifacts) != 0 {
		t.Errorf("Expected no artifacts after exhaustion, found %v", artifacts)
	}

	// The exhaustion alert reached the file channel
	data, err := os.ReadFile(alertPath)
	if err != nil {
		t.Fatalf("Expected alert file: %v", err)
	}
	var alert notify.Alert
	if err := json.Unmarshal(data, &alert); err != nil {
		t.Fatalf("Expected JSON alert record: %v", err)
	}
	if alert.Severity != notify.SeverityCritical {
		t.Errorf("Expected critical alert, got %s", alert.Severity)
	}
	if alert.ID == "" {
		t.Error("Expected alert to carry a correlation ID")
	}
}

func TestRun_RejectedDriftRecordsVerdict(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	cfg.Retry.MaxAttempts = 1

	service := &fakeDBService{
		upTo: func(attempt int, schema string) int64 {
			if schema == "thingsboard" {
				return 500
			}
			return 400
		},
	}

	orch := buildOrchestrator(t, cfg, service, config.NotificationConfig{})

	result, _ := orch.Run(context.Background())
	if len(result.Attempts) != 1 {
		t.Fatalf("Expected 1 attempt, got %d", len(result.Attempts))
	}

	attempt := result.Attempts[0]
	if attempt.Verdict != verify.VerdictRejected {
		t.Errorf("Expected rejected verdict, got %s", attempt.Verdict)
	}
	if attempt.Drift != 100 {
		t.Errorf("Expected drift 100, got %d", attempt.Drift)
	}
}

func TestRun_SlowDumpWidensDriftCeilings(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	cfg.Retry.MaxAttempts = 1

	// One row per second of live load, with a small drift. The drift only
	// fits inside the accept ceiling when the dump window counts toward the
	// attempt duration: the snapshot freezes at transaction start, so live
	// keeps gaining cutoff-eligible rows while the dump runs.
	service := &fakeDBService{
		recent: 60,
		upTo: func(attempt int, schema string) int64 {
			if schema == "thingsboard" {
				return 1005
			}
			return 1000
		},
	}

	runner := &fakeRunner{dumpDelay: 1200 * time.Millisecond}
	orch := buildOrchestratorWithRunner(t, cfg, service, config.NotificationConfig{}, runner)

	result, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcome != OutcomeKept {
		t.Fatalf("Expected KEPT, got %s", result.Outcome)
	}
	if result.Verdict != verify.VerdictStable {
		t.Errorf("Expected stable verdict, got %s", result.Verdict)
	}
	if result.Drift != 5 {
		t.Errorf("Expected drift 5, got %d", result.Drift)
	}
}

func TestRun_CancelledContextStopsRetrying(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)

	// Every attempt fails on a structural mismatch
	service := &fakeDBService{
		structural: func(attempt int, schema, table string) int64 {
			if schema == "thingsboard_validation" {
				return 9
			}
			return 10
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orch := buildOrchestrator(t, cfg, service, config.NotificationConfig{})

	result, err := orch.Run(ctx)
	if err == nil {
		t.Fatal("Expected error from cancelled run")
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Type != apperrors.ErrorTypeInterruption {
		t.Errorf("Expected interruption error, got %v", err)
	}
	if len(result.Attempts) != 1 {
		t.Errorf("Expected the run to stop after the first attempt, got %d", len(result.Attempts))
	}
}

func TestRun_NegativeDriftIsKept(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)

	// Retention cleanup between dump and judgement
	service := &fakeDBService{
		upTo: func(attempt int, schema string) int64 {
			if schema == "thingsboard" {
				return 800
			}
			return 1000
		},
	}

	orch := buildOrchestrator(t, cfg, service, config.NotificationConfig{})

	result, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcome != OutcomeKept {
		t.Errorf("Expected negative drift to be kept, got %s", result.Outcome)
	}
	if result.Drift != -200 {
		t.Errorf("Expected drift -200, got %d", result.Drift)
	}
}
