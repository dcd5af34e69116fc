package verify

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"

	"mysql-backup-verify/internal/command"
	"mysql-backup-verify/internal/config"
	"mysql-backup-verify/internal/database"
	apperrors "mysql-backup-verify/internal/errors"
	"mysql-backup-verify/internal/logging"
	"mysql-backup-verify/internal/snapshot"
)

// definerClause matches the DEFINER attribute mysqldump emits on views,
// routines and triggers. The clause binds objects to accounts of the live
// server; stripping it lets the dump load into the validation database under
// the verifying account.
var definerClause = regexp.MustCompile("DEFINER=`[^`]*`@`[^`]*`")

// Restorer loads a backup set's dump into the validation database. Every
// restore starts from a dropped and recreated database so no state leaks
// between attempts.
type Restorer struct {
	store   *snapshot.Store
	runner  command.Runner
	service database.DatabaseService
	live    config.DatabaseConfig
	logger  *logging.Logger
}

// NewRestorer creates a validation restorer
func NewRestorer(store *snapshot.Store, runner command.Runner, service database.DatabaseService, live config.DatabaseConfig, logger *logging.Logger) *Restorer {
	return &Restorer{
		store:   store,
		runner:  runner,
		service: service,
		live:    live,
		logger:  logger,
	}
}

// Restore rebuilds the validation database from the token's dump artifact.
// adminDB must be a schema-less connection with DROP/CREATE privileges.
func (r *Restorer) Restore(ctx context.Context, adminDB *sql.DB, token snapshot.Token, validationDatabase string, compression snapshot.CompressionType) error {
	if err := r.service.DropDatabaseIfExists(ctx, adminDB, validationDatabase); err != nil {
		return apperrors.NewRestoreError("failed to drop validation database", err)
	}
	if err := r.service.CreateDatabase(ctx, adminDB, validationDatabase); err != nil {
		return apperrors.NewRestoreError("failed to create validation database", err)
	}

	dumpPath := r.store.DumpPath(token, compression)
	file, err := os.Open(dumpPath)
	if err != nil {
		return apperrors.NewArtifactError(fmt.Sprintf("cannot open dump artifact %s", dumpPath), err)
	}
	defer file.Close()

	reader, err := snapshot.NewDecompressingReader(file, compression)
	if err != nil {
		return apperrors.NewRestoreError("cannot initialize decompression", err)
	}
	defer reader.Close()

	done := r.logger.LogOperationStart("validation_restore", map[string]interface{}{
		"token":    token.String(),
		"database": validationDatabase,
	})

	filtered := stripDefiners(reader)
	defer filtered.Close()

	spec := command.Spec{
		Name: "mysql",
		Args: []string{
			"--host", r.live.Host,
			"--port", strconv.Itoa(r.live.Port),
			"--user", r.live.Username,
			validationDatabase,
		},
		Env:   []string{"MYSQL_PWD=" + r.live.Password},
		Stdin: filtered,
	}

	if err := r.runner.Run(ctx, spec); err != nil {
		done(err)
		return apperrors.NewRestoreError("restore into validation database failed", err)
	}

	done(nil)
	return nil
}

// stripDefiners filters a SQL stream, removing DEFINER clauses line by line.
// Bulk INSERT lines never carry the clause and pass through untouched. The
// caller must close the returned stream; closing unblocks the filter when the
// consumer stops reading early.
func stripDefiners(r io.Reader) io.ReadCloser {
	pr, pw := io.Pipe()

	go func() {
		reader := bufio.NewReaderSize(r, 1<<20)
		for {
			line, err := reader.ReadBytes('\n')
			if len(line) > 0 {
				if definerClause.Match(line) {
					line = definerClause.ReplaceAll(line, nil)
				}
				if _, werr := pw.Write(line); werr != nil {
					pw.CloseWithError(werr)
					return
				}
			}
			if err != nil {
				if err == io.EOF {
					pw.Close()
				} else {
					pw.CloseWithError(err)
				}
				return
			}
		}
	}()

	return pr
}
