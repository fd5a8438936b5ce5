package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	ierrors "github.com/inkstonehq/inkstone/internal/errors"
	"github.com/inkstonehq/inkstone/vecstore"
)

// Migration System Overview:
//
// Schema and index changes are versioned units applied strictly in version
// order at startup, before the service accepts traffic. Every successfully
// applied version is recorded in the migration_history ledger before the
// next migration begins; versions already present in the ledger are skipped
// entirely, making re-runs side-effect free.
//
// Migration Files:
// - Location: store/migration/{driver}/NNN__description.sql
// - Naming: NNN is a zero-padded version number, description is human-readable
// - Ordering: files sorted by version and applied in order, each in its own
//   transaction
//
// Vector index migrations run after the SQL migrations. They are idempotent
// at a finer grain: creating an index that already exists is logged at debug
// level; any other index-creation error is logged as a warning and does not
// abort startup. A missing index degrades query performance but is not fatal
// to availability.

//go:embed migration
var migrationFS embed.FS

// MigrateFileNameSplit is the split character between the version and the
// description in the migration file name, e.g. "001__init.sql".
const MigrateFileNameSplit = "__"

// memoCollection is the vector store collection holding memo records.
const memoCollection = "memo"

// vectorIndexMigration declares a scalar index on a vector store column.
type vectorIndexMigration struct {
	Collection  string
	Column      string
	Kind        vecstore.IndexKind
	Description string
}

// vectorIndexMigrations is applied in order on every startup.
var vectorIndexMigrations = []vectorIndexMigration{
	{memoCollection, "uid", vecstore.IndexBitmap, "owner equality filter for scoped search"},
	{memoCollection, "type", vecstore.IndexBitmap, "memo type has three distinct values"},
	{memoCollection, "category_id", vecstore.IndexBitmap, "category equality filter"},
	{memoCollection, "created_ts", vecstore.IndexSorted, "date range and sort"},
}

// Migrate applies all pending schema migrations and vector index migrations.
// A SQL migration failure aborts startup; the process must not serve traffic
// with an unmigrated schema.
func (s *Store) Migrate(ctx context.Context, vec *vecstore.Store) error {
	if err := s.ensureLedger(ctx); err != nil {
		return ierrors.Wrap(err, ierrors.CodeMigrationFailure, "failed to ensure migration ledger")
	}

	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return ierrors.Wrap(err, ierrors.CodeMigrationFailure, "failed to read migration ledger")
	}

	filePaths, err := fs.Glob(migrationFS, fmt.Sprintf("%s*.sql", s.getMigrationBasePath()))
	if err != nil {
		return ierrors.Wrap(err, ierrors.CodeMigrationFailure, "failed to read migration files")
	}
	sort.Strings(filePaths)

	migrationsApplied := 0
	for _, filePath := range filePaths {
		version, err := versionOfMigrationFile(filePath)
		if err != nil {
			return ierrors.Wrap(err, ierrors.CodeMigrationFailure, "invalid migration file name")
		}
		if _, ok := applied[version]; ok {
			slog.Debug("migration already applied, skipping",
				slog.String("file", filePath),
				slog.Int64("version", version))
			continue
		}

		slog.Info("applying migration",
			slog.String("file", filePath),
			slog.Int64("version", version))

		bytes, err := migrationFS.ReadFile(filePath)
		if err != nil {
			return ierrors.Wrap(err, ierrors.CodeMigrationFailure, fmt.Sprintf("failed to read migration file %s", filePath))
		}
		if err := s.applyInTx(ctx, string(bytes)); err != nil {
			return ierrors.Wrap(err, ierrors.CodeMigrationFailure, fmt.Sprintf("failed to execute migration %s", filePath))
		}

		// Record completion before the next migration begins.
		if _, err := s.UpsertMigrationHistory(ctx, &UpsertMigrationHistory{Version: version}); err != nil {
			return ierrors.Wrap(err, ierrors.CodeMigrationFailure, fmt.Sprintf("failed to record migration %d", version))
		}
		migrationsApplied++
	}

	slog.Info("schema migration completed", slog.Int("migrationsApplied", migrationsApplied))

	if vec != nil {
		s.migrateVectorIndexes(vec)
	}
	return nil
}

// migrateVectorIndexes creates the declared scalar indexes on the vector
// store. Index failures never abort startup.
func (s *Store) migrateVectorIndexes(vec *vecstore.Store) {
	for _, m := range vectorIndexMigrations {
		err := vec.CreateScalarIndex(m.Collection, m.Column, m.Kind)
		switch {
		case err == nil:
			slog.Info("created vector scalar index",
				slog.String("collection", m.Collection),
				slog.String("column", m.Column),
				slog.String("kind", string(m.Kind)))
		case errors.Is(err, vecstore.ErrIndexExists):
			slog.Debug("vector scalar index already exists",
				slog.String("collection", m.Collection),
				slog.String("column", m.Column))
		default:
			slog.Warn("failed to create vector scalar index",
				slog.String("collection", m.Collection),
				slog.String("column", m.Column),
				slog.String("error", err.Error()))
		}
	}
}

// ensureLedger creates the ledger table if missing. The DDL is portable
// across the three supported engines.
func (s *Store) ensureLedger(ctx context.Context) error {
	stmt := `CREATE TABLE IF NOT EXISTS migration_history (
		version BIGINT NOT NULL PRIMARY KEY,
		created_ts BIGINT NOT NULL
	)`
	if _, err := s.driver.GetDB().ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, "failed to create migration_history table")
	}
	return nil
}

func (s *Store) appliedVersions(ctx context.Context) (map[int64]struct{}, error) {
	histories, err := s.ListMigrationHistories(ctx, &FindMigrationHistory{})
	if err != nil {
		return nil, err
	}
	applied := make(map[int64]struct{}, len(histories))
	for _, h := range histories {
		applied[h.Version] = struct{}{}
	}
	return applied, nil
}

func (s *Store) getMigrationBasePath() string {
	return fmt.Sprintf("migration/%s/", s.profile.Driver)
}

// versionOfMigrationFile extracts the numeric version from a migration file
// path of the form migration/<driver>/NNN__description.sql.
func versionOfMigrationFile(filePath string) (int64, error) {
	filename := filepath.Base(filePath)
	if !strings.Contains(filename, MigrateFileNameSplit) {
		return 0, errors.Errorf("invalid migration filename format (missing %s): %s", MigrateFileNameSplit, filename)
	}
	raw := strings.SplitN(filename, MigrateFileNameSplit, 2)[0]
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.Errorf("migration filename must start with a number: %s", filename)
	}
	return version, nil
}

// applyInTx executes one migration file in its own transaction.
func (s *Store) applyInTx(ctx context.Context, stmt string) error {
	tx, err := s.driver.GetDB().Begin()
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	if err := s.execute(ctx, tx, stmt); err != nil {
		return err
	}
	return tx.Commit()
}

// execute executes a SQL statement within a transaction context.
// For PostgreSQL and MySQL, it splits multi-statement SQL and executes each
// statement separately.
func (s *Store) execute(ctx context.Context, tx *sql.Tx, stmt string) error {
	// Neither PostgreSQL nor MySQL (without multiStatements) accepts multiple
	// statements in a single ExecContext call.
	if s.profile.Driver == "postgres" || s.profile.Driver == "mysql" {
		for i, single := range splitSQL(stmt) {
			if single == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, single); err != nil {
				return errors.Wrapf(err, "failed to execute statement %d", i+1)
			}
		}
		return nil
	}
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, "failed to execute statement")
	}
	return nil
}

// splitSQL splits a multi-statement SQL string into individual statements,
// skipping line comments. Migration files here contain plain DDL, so no
// dollar-quote handling is needed.
func splitSQL(script string) []string {
	var statements []string
	var current strings.Builder

	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSpace(current.String())
			stmt = strings.TrimSuffix(stmt, ";")
			if stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
		}
	}
	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		statements = append(statements, stmt)
	}
	return statements
}
