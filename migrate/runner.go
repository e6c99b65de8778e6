package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Script is one on-disk migration: a folder name (conventionally
// timestamp-prefixed — sortable naming is a convention this package assumes
// but does not enforce) and the SQL script
// it contains.
type Script struct {
	Name string
	SQL  string
}

// AppliedState is the introspected state of the migration bookkeeping
// tables: the names already recorded in _pyre_migrations. An empty
// AppliedState (no rows, possibly because the bookkeeping tables don't
// exist yet) means every script on disk is still pending.
type AppliedState struct {
	Applied []string
}

// Pending filters scripts down to the ones not yet recorded in state,
// ordered by folder-name lexicographic order (the planner's only ordering
// rule — a lightweight stand-in for a real dependency graph).
func Pending(state AppliedState, scripts []Script) []Script {
	applied := make(map[string]bool, len(state.Applied))
	for _, name := range state.Applied {
		applied[name] = true
	}

	var pending []Script
	for _, s := range scripts {
		if !applied[s.Name] {
			pending = append(pending, s)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Name < pending[j].Name })
	return pending
}

// ReadAppliedState queries the _pyre_migrations bookkeeping table for the
// names already applied. A missing table (first run against a fresh
// database) is reported as an empty AppliedState, not an error, since
// Migrate creates the bookkeeping tables itself before relying on them.
func ReadAppliedState(ctx context.Context, db *sql.DB) (AppliedState, error) {
	rows, err := db.QueryContext(ctx, listAppliedMigrationsSQL)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return AppliedState{}, nil
		}
		return AppliedState{}, fmt.Errorf("migrate: reading applied migrations: %w", err)
	}
	defer rows.Close()

	var state AppliedState
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return AppliedState{}, fmt.Errorf("migrate: scanning applied migration name: %w", err)
		}
		state.Applied = append(state.Applied, name)
	}
	return state, rows.Err()
}

// validateScripts checks every script's SQL text is present before any of
// them touch the database, bounding the checking work to GOMAXPROCS
// concurrent goroutines. The checks themselves are cheap; what matters is
// failing the whole batch before the single required transaction opens,
// not partway through applying it.
func validateScripts(ctx context.Context, scripts []Script) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))

	for _, script := range scripts {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if strings.TrimSpace(script.Name) == "" {
				return fmt.Errorf("migrate: script has an empty name")
			}
			if strings.TrimSpace(script.SQL) == "" {
				return fmt.Errorf("migrate: script %q has empty SQL", script.Name)
			}
			return nil
		})
	}
	return eg.Wait()
}

// Migrate runs every pending script against db inside one transaction
// (opened with database/sql's default options; no BEGIN IMMEDIATE is
// issued), preserving strict ordering:
//  1. validate every script has a name and a body, then drop the ones
//     _pyre_migrations already records (see Pending);
//  2. create the bookkeeping tables if missing;
//  3. apply each pending script in folder-name order, one ExecContext per
//     script;
//  4. insert one _pyre_migrations row per applied script;
//  5. insert the declared schema snapshot;
//  6. commit — any failure aborts the whole transaction, leaving the
//     database exactly as it was.
//
// declaredSchemaText is the serialised form of the schema currently being
// migrated to; it becomes the new latest row in _pyre_schema so a later
// run can recover the declared shape without replaying every script.
func Migrate(ctx context.Context, db *sql.DB, scripts []Script, declaredSchemaText string) (err error) {
	if err = validateScripts(ctx, scripts); err != nil {
		return err
	}
	state, err := ReadAppliedState(ctx, db)
	if err != nil {
		return err
	}
	scripts = Pending(state, scripts)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, createMigrationsTableSQL); err != nil {
		return fmt.Errorf("migrate: creating bookkeeping table: %w", err)
	}
	if _, err = tx.ExecContext(ctx, createSchemaTableSQL); err != nil {
		return fmt.Errorf("migrate: creating schema snapshot table: %w", err)
	}

	for _, script := range scripts {
		if _, err = tx.ExecContext(ctx, script.SQL); err != nil {
			return fmt.Errorf("migrate: applying %s: %w", script.Name, err)
		}
		if _, err = tx.ExecContext(ctx, insertMigrationSQL, script.Name, script.SQL); err != nil {
			return fmt.Errorf("migrate: recording %s: %w", script.Name, err)
		}
	}

	if _, err = tx.ExecContext(ctx, insertSchemaSnapshotSQL, declaredSchemaText); err != nil {
		return fmt.Errorf("migrate: inserting schema snapshot: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("migrate: committing: %w", err)
	}
	return nil
}

// LatestSchemaSnapshot returns the most recently recorded declared-schema
// text from _pyre_schema, or "" if the table is missing or empty — the
// state a fresh database is in before its first migration.
func LatestSchemaSnapshot(ctx context.Context, db *sql.DB) (string, error) {
	var text string
	err := db.QueryRowContext(ctx, latestSchemaSnapshotSQL).Scan(&text)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return "", nil
		}
		return "", fmt.Errorf("migrate: reading latest schema snapshot: %w", err)
	}
	return text, nil
}

// ExecuteDDL applies an ordered DDL batch (as produced by Plan) inside one
// transaction, the way Migrate applies versioned scripts. Used by the push
// path that reconciles a declared schema straight against a live database,
// as opposed to applying hand-authored migration folders.
func ExecuteDDL(ctx context.Context, db *sql.DB, stmts []Statement) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, stmt := range stmts {
		if _, err = tx.ExecContext(ctx, stmt.SQL, stmt.Args...); err != nil {
			return fmt.Errorf("migrate: executing %q: %w", stmt.SQL, err)
		}
	}
	return tx.Commit()
}
