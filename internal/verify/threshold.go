package verify

import (
	"context"
	"database/sql"
	"time"

	"mysql-backup-verify/internal/config"
	"mysql-backup-verify/internal/database"
	"mysql-backup-verify/internal/logging"
)

// throughputWindow is the trailing interval over which the live write rate is
// sampled before each drift judgement.
const throughputWindow = 60 * time.Second

// Thresholds are the drift ceilings for one attempt, derived from the live
// write throughput at judgement time and the attempt's duration. Expected is
// the number of rows the live database plausibly gained while the attempt
// ran; the ceilings scale it by the configured multipliers.
type Thresholds struct {
	RowsPerSecond int64
	Expected      int64
	AcceptCeiling int64
	WarnCeiling   int64
}

// ThresholdEngine computes drift ceilings from observed load. Idle systems
// yield zero ceilings, which makes any positive drift a rejection; that is
// intentional, since an idle system should restore exactly.
type ThresholdEngine struct {
	service   database.DatabaseService
	verifyCfg config.VerifyConfig
	logger    *logging.Logger
}

// NewThresholdEngine creates a threshold engine
func NewThresholdEngine(service database.DatabaseService, verifyCfg config.VerifyConfig, logger *logging.Logger) *ThresholdEngine {
	return &ThresholdEngine{
		service:   service,
		verifyCfg: verifyCfg,
		logger:    logger,
	}
}

// Compute samples the live write throughput over the trailing window and
// derives the ceilings for an attempt of the given duration. Throughput is
// truncated to whole rows per second before scaling, matching the coarse
// rows/sec granularity the multipliers were calibrated against.
func (e *ThresholdEngine) Compute(ctx context.Context, liveDB *sql.DB, liveSchema string, attemptDuration time.Duration) (Thresholds, error) {
	since := time.Now().Add(-throughputWindow).UnixMilli()

	recent, err := e.service.CountRowsSince(ctx, liveDB,
		liveSchema, e.verifyCfg.TimeSeriesTable, e.verifyCfg.TimeSeriesColumn, since)
	if err != nil {
		return Thresholds{}, err
	}

	rowsPerSecond := recent / int64(throughputWindow/time.Second)
	expected := rowsPerSecond * int64(attemptDuration/time.Second)

	thresholds := Thresholds{
		RowsPerSecond: rowsPerSecond,
		Expected:      expected,
		AcceptCeiling: expected * int64(e.verifyCfg.AcceptMultiplier),
		WarnCeiling:   expected * int64(e.verifyCfg.WarnMultiplier),
	}

	e.logger.WithFields(map[string]interface{}{
		"recent_rows":    recent,
		"rows_per_sec":   rowsPerSecond,
		"expected":       expected,
		"accept_ceiling": thresholds.AcceptCeiling,
		"warn_ceiling":   thresholds.WarnCeiling,
	}).Debug("Drift thresholds computed")

	return thresholds, nil
}
