package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"mysql-backup-verify/internal/command"
	"mysql-backup-verify/internal/config"
	apperrors "mysql-backup-verify/internal/errors"
	"mysql-backup-verify/internal/logging"
)

// Producer creates backup sets. The structured dump is the only mandatory
// artifact; its absence after a run fails the attempt. The archives are best
// effort and never fail a run on their own.
type Producer struct {
	store       *Store
	runner      command.Runner
	live        config.DatabaseConfig
	backup      config.BackupConfig
	compression CompressionType
	logger      *logging.Logger
}

// NewProducer creates a backup producer
func NewProducer(store *Store, runner command.Runner, live config.DatabaseConfig, backup config.BackupConfig, logger *logging.Logger) (*Producer, error) {
	compression, err := ParseCompressionType(backup.Compression)
	if err != nil {
		return nil, err
	}

	return &Producer{
		store:       store,
		runner:      runner,
		live:        live,
		backup:      backup,
		compression: compression,
		logger:      logger,
	}, nil
}

// Produce creates a fresh backup set identified by a new token: the
// structured dump first, then the auxiliary archives. The returned token
// names every artifact of the set.
func (p *Producer) Produce(ctx context.Context) (Token, error) {
	token := NewToken(time.Now())

	if err := p.store.EnsureBaseDirectory(); err != nil {
		return "", apperrors.NewArtifactError("backup directory unavailable", err)
	}

	if err := p.produceDump(ctx, token); err != nil {
		return "", err
	}

	p.captureArchives(ctx, token)

	p.logger.WithFields(map[string]interface{}{
		"token":     token.String(),
		"directory": p.store.BaseDir(),
	}).Info("Backup set produced")

	return token, nil
}

// produceDump runs mysqldump and streams its output through the configured
// compression into the dump artifact. The dump intentionally omits the
// --databases flag so the output carries no CREATE DATABASE or USE statement
// and can be restored into the validation database under a different name.
func (p *Producer) produceDump(ctx context.Context, token Token) error {
	dumpPath := p.store.DumpPath(token, p.compression)

	file, err := os.Create(dumpPath)
	if err != nil {
		return apperrors.NewArtifactError(fmt.Sprintf("cannot create dump file %s", dumpPath), err)
	}

	writer, err := NewCompressingWriter(file, p.compression, p.backup.Level)
	if err != nil {
		file.Close()
		os.Remove(dumpPath)
		return apperrors.NewArtifactError("cannot initialize compression", err)
	}

	spec := command.Spec{
		Name: "mysqldump",
		Args: []string{
			"--host", p.live.Host,
			"--port", strconv.Itoa(p.live.Port),
			"--user", p.live.Username,
			"--single-transaction",
			"--quick",
			"--routines",
			"--triggers",
			"--events",
			"--hex-blob",
			"--no-tablespaces",
			p.live.Database,
		},
		Env:    []string{"MYSQL_PWD=" + p.live.Password},
		Stdout: writer,
	}

	runErr := p.runner.Run(ctx, spec)

	if err := writer.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to finalize compressed dump: %w", err)
	}
	if err := file.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to close dump file: %w", err)
	}

	if runErr != nil {
		os.Remove(dumpPath)
		return apperrors.NewArtifactError("database dump failed", runErr)
	}

	// The dump is the artifact the whole verification hinges on; a missing
	// or empty file means the attempt cannot proceed.
	info, err := os.Stat(dumpPath)
	if err != nil {
		return apperrors.NewArtifactError(fmt.Sprintf("dump artifact %s is missing", dumpPath), err)
	}
	if info.Size() == 0 {
		os.Remove(dumpPath)
		return apperrors.NewArtifactError(fmt.Sprintf("dump artifact %s is empty", dumpPath), nil)
	}

	p.logger.WithFields(map[string]interface{}{
		"path": dumpPath,
		"size": info.Size(),
	}).Debug("Dump artifact written")

	return nil
}

// captureArchives collects the optional filesystem artifacts. An unconfigured
// or absent source is skipped quietly; a configured source that fails to
// archive is logged and the run carries on.
func (p *Producer) captureArchives(ctx context.Context, token Token) {
	p.captureArchive(ctx, token, "conf", p.backup.ConfDir)

	dataDir := p.backup.DataDir
	if dataDir != "" {
		if _, err := os.Stat(dataDir); os.IsNotExist(err) && p.backup.DataDirFallback != "" {
			p.logger.WithFields(map[string]interface{}{
				"primary":  dataDir,
				"fallback": p.backup.DataDirFallback,
			}).Debug("Primary data directory absent, using fallback")
			dataDir = p.backup.DataDirFallback
		}
	}
	p.captureArchive(ctx, token, "data", dataDir)

	p.captureArchive(ctx, token, "license", p.backup.LicenseFile)
	p.captureArchive(ctx, token, "ui_branding", p.backup.UIBrandingDir)
}

func (p *Producer) captureArchive(ctx context.Context, token Token, kind, source string) {
	if source == "" {
		return
	}
	if _, err := os.Stat(source); os.IsNotExist(err) {
		p.logger.WithFields(map[string]interface{}{
			"kind":   kind,
			"source": source,
		}).Debug("Archive source absent, skipping")
		return
	}

	archivePath := p.store.ArchivePath(kind, token)
	spec := command.Spec{
		Name: "tar",
		Args: []string{
			"-czf", archivePath,
			"-C", filepath.Dir(source),
			filepath.Base(source),
		},
	}

	if err := p.runner.Run(ctx, spec); err != nil {
		os.Remove(archivePath)
		p.logger.WithFields(map[string]interface{}{
			"kind":   kind,
			"source": source,
			"error":  err.Error(),
		}).Warn("Failed to capture archive artifact")
		return
	}

	p.logger.WithFields(map[string]interface{}{
		"kind": kind,
		"path": archivePath,
	}).Debug("Archive artifact written")
}
