package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema migrations are registered per storage area: each table the editor
// persists declares its own DDL, and a version groups the areas that ship
// together. A version applies in one transaction, so an upgrade either
// brings every table to the new schema or leaves the database untouched.

type tableDDL struct {
	Table      string
	Statements []string
}

type migration struct {
	Version int
	Name    string
	Tables  []tableDDL
}

var graphsDDL = tableDDL{
	Table: "process_graphs",
	Statements: []string{
		// definition holds the serialized storage record; derived connection
		// decorations are never stored.
		`CREATE TABLE IF NOT EXISTS process_graphs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'draft',
			definition TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			published_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_process_graphs_status ON process_graphs(status)`,
	},
}

var executionsDDL = tableDDL{
	Table: "executions",
	Statements: []string{
		// Local bookkeeping for submitted graphs. The engine owns the
		// authoritative state; rows here cache the last inspected values.
		`CREATE TABLE IF NOT EXISTS executions (
			ref TEXT PRIMARY KEY,
			graph_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			current_step_id TEXT,
			submitted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (graph_id) REFERENCES process_graphs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_graph ON executions(graph_id)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_status ON executions(status)`,
	},
}

var scheduledRunsDDL = tableDDL{
	Table: "scheduled_runs",
	Statements: []string{
		`CREATE TABLE IF NOT EXISTS scheduled_runs (
			id TEXT PRIMARY KEY,
			graph_id TEXT NOT NULL,
			cron_expression TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			last_run_at TIMESTAMP,
			next_run_at TIMESTAMP,
			last_run_status TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (graph_id) REFERENCES process_graphs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scheduled_runs_enabled ON scheduled_runs(enabled, next_run_at)`,
	},
}

var formTemplatesDDL = tableDDL{
	Table: "form_templates",
	Statements: []string{
		// Reusable form definitions referenced by form steps via template_id.
		`CREATE TABLE IF NOT EXISTS form_templates (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			fields TEXT,
			form_schema TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_form_templates_name ON form_templates(name)`,
	},
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "editor_core",
		Tables:  []tableDDL{graphsDDL, executionsDDL, scheduledRunsDDL, formTemplatesDDL},
	},
}

// runMigrations creates the schema_version table and applies any pending
// versions, table by table in registration order (referenced tables first,
// so foreign keys resolve).
func runMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var current int
	row := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		for _, t := range m.Tables {
			for _, stmt := range t.Statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					_ = tx.Rollback()
					return fmt.Errorf("migration %d (%s) table %s: %w", m.Version, m.Name, t.Table, err)
				}
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version, name) VALUES (?, ?)`, m.Version, m.Name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}
