package verify

import (
	"context"
	"database/sql"
	"fmt"

	"mysql-backup-verify/internal/config"
	"mysql-backup-verify/internal/database"
	"mysql-backup-verify/internal/logging"
	"mysql-backup-verify/internal/snapshot"
)

// DriftEstimator measures how many time-series rows the live database holds
// beyond the restored copy, considering only rows stamped at or before the
// backup's logical cutoff. Rows written after the cutoff are expected to be
// absent from the copy and never count as drift.
type DriftEstimator struct {
	service   database.DatabaseService
	verifyCfg config.VerifyConfig
	logger    *logging.Logger
}

// DriftResult carries the estimate and the counts it was derived from
type DriftResult struct {
	CutoffMillis int64
	LiveRows     int64
	RestoredRows int64
	Drift        int64
}

// NewDriftEstimator creates a drift estimator
func NewDriftEstimator(service database.DatabaseService, verifyCfg config.VerifyConfig, logger *logging.Logger) *DriftEstimator {
	return &DriftEstimator{
		service:   service,
		verifyCfg: verifyCfg,
		logger:    logger,
	}
}

// Estimate derives the cutoff from the backup token and compares the
// time-series row counts up to that instant on both sides. A negative drift
// means the restored copy holds more pre-cutoff rows than the live database,
// which happens when retention cleanup ran between dump and judgement.
func (e *DriftEstimator) Estimate(ctx context.Context, liveDB, validationDB *sql.DB, liveSchema string, token snapshot.Token) (DriftResult, error) {
	cutoff, err := token.CutoffMillis(e.verifyCfg.TimezoneOffsetMinutes)
	if err != nil {
		return DriftResult{}, err
	}

	liveRows, err := e.service.CountRowsUpTo(ctx, liveDB,
		liveSchema, e.verifyCfg.TimeSeriesTable, e.verifyCfg.TimeSeriesColumn, cutoff)
	if err != nil {
		return DriftResult{}, fmt.Errorf("failed to count live time-series rows: %w", err)
	}

	restoredRows, err := e.service.CountRowsUpTo(ctx, validationDB,
		e.verifyCfg.ValidationDatabase, e.verifyCfg.TimeSeriesTable, e.verifyCfg.TimeSeriesColumn, cutoff)
	if err != nil {
		return DriftResult{}, fmt.Errorf("failed to count restored time-series rows: %w", err)
	}

	result := DriftResult{
		CutoffMillis: cutoff,
		LiveRows:     liveRows,
		RestoredRows: restoredRows,
		Drift:        liveRows - restoredRows,
	}

	fields := map[string]interface{}{
		"cutoff_millis": cutoff,
		"live_rows":     liveRows,
		"restored_rows": restoredRows,
		"drift":         result.Drift,
	}
	if result.Drift < 0 {
		e.logger.WithFields(fields).Debug("Negative drift, restored copy ahead of live pre-cutoff count")
	} else {
		e.logger.WithFields(fields).Debug("Drift estimated")
	}

	return result, nil
}
