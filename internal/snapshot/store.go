package snapshot

import (
	"fmt"
	"os"
	"path/filepath"

	"mysql-backup-verify/internal/logging"
)

// Store owns the filesystem layout of backup sets under a single backup
// root. Artifact names follow the convention
// <prefix>_<kind>_<token>.<ext>; every artifact of a set shares the token,
// which lets the store enumerate and remove a set atomically enough for the
// complete-or-absent invariant.
type Store struct {
	baseDir string
	prefix  string
	logger  *logging.Logger
}

// NewStore creates a store rooted at baseDir
func NewStore(baseDir, prefix string, logger *logging.Logger) *Store {
	return &Store{
		baseDir: baseDir,
		prefix:  prefix,
		logger:  logger,
	}
}

// EnsureBaseDirectory creates the backup root if missing. Ownership and
// group access for the database service account are provisioned by the
// environment, not here.
func (s *Store) EnsureBaseDirectory() error {
	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory %s: %w", s.baseDir, err)
	}
	return nil
}

// DumpPath returns the path of the mandatory structured dump artifact
func (s *Store) DumpPath(token Token, compression CompressionType) string {
	name := fmt.Sprintf("%s_db_%s.sql%s", s.prefix, token, compression.Extension())
	return filepath.Join(s.baseDir, name)
}

// ArchivePath returns the path of an optional archive artifact, e.g.
// kind "conf" yields <prefix>_conf_<token>.tar.gz.
func (s *Store) ArchivePath(kind string, token Token) string {
	name := fmt.Sprintf("%s_%s_%s.tar.gz", s.prefix, kind, token)
	return filepath.Join(s.baseDir, name)
}

// Artifacts lists every file belonging to the token's backup set
func (s *Store) Artifacts(token Token) ([]string, error) {
	pattern := filepath.Join(s.baseDir, fmt.Sprintf("%s_*_%s.*", s.prefix, token))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list backup set %s: %w", token, err)
	}
	return matches, nil
}

// Delete removes every artifact of the token's backup set. Missing files are
// ignored so the operation is idempotent; a set is either complete-and-kept
// or fully removed.
func (s *Store) Delete(token Token) error {
	artifacts, err := s.Artifacts(token)
	if err != nil {
		return err
	}

	var failed []string
	for _, path := range artifacts {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			failed = append(failed, path)
			s.logger.WithFields(map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			}).Error("Failed to remove backup artifact")
			continue
		}
		s.logger.WithField("path", path).Debug("Removed backup artifact")
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to remove %d artifact(s) of backup set %s", len(failed), token)
	}

	s.logger.WithFields(map[string]interface{}{
		"token":     token.String(),
		"artifacts": len(artifacts),
	}).Info("Backup set deleted")
	return nil
}

// BaseDir returns the backup root
func (s *Store) BaseDir() string {
	return s.baseDir
}
