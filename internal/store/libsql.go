package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/credativa/procflow/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-20000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Process graphs ---

func (s *LibSQLStore) CreateGraph(ctx context.Context, rec *GraphRecord) error {
	def, err := Serialize(&rec.Definition)
	if err != nil {
		return err
	}
	status := rec.Status
	if status == "" {
		status = GraphStatusDraft
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO process_graphs (id, name, status, definition, created_at, updated_at, published_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, string(status), string(def),
		timeOrNow(rec.CreatedAt), timeOrNow(rec.UpdatedAt), nullTime(rec.PublishedAt),
	)
	return err
}

func (s *LibSQLStore) GetGraph(ctx context.Context, id string) (*GraphRecord, error) {
	rec := &GraphRecord{}
	var status, defJSON string
	var publishedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, status, definition, created_at, updated_at, published_at
		 FROM process_graphs WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Name, &status, &defJSON, &rec.CreatedAt, &rec.UpdatedAt, &publishedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("process_graph", id)
	}
	if err != nil {
		return nil, err
	}
	rec.Status = GraphStatus(status)
	def, err := Deserialize([]byte(defJSON))
	if err != nil {
		return nil, fmt.Errorf("deserialize definition: %w", err)
	}
	rec.Definition = *def
	if publishedAt.Valid {
		rec.PublishedAt = &publishedAt.Time
	}
	return rec, nil
}

func (s *LibSQLStore) UpdateGraph(ctx context.Context, id string, update GraphUpdate) error {
	var sets []string
	var args []any

	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*update.Status))
	}
	if update.Definition != nil {
		def, err := Serialize(update.Definition)
		if err != nil {
			return err
		}
		sets = append(sets, "definition = ?")
		args = append(args, string(def))
	}
	if update.PublishedAt != nil {
		sets = append(sets, "published_at = ?")
		args = append(args, *update.PublishedAt)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE process_graphs SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "process_graph", id)
}

func (s *LibSQLStore) ListGraphs(ctx context.Context, filter GraphFilter) ([]*GraphRecord, error) {
	var where []string
	var args []any

	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}

	query := `SELECT id, name, status, definition, created_at, updated_at, published_at FROM process_graphs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*GraphRecord
	for rows.Next() {
		rec := &GraphRecord{}
		var status, defJSON string
		var publishedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Name, &status, &defJSON, &rec.CreatedAt, &rec.UpdatedAt, &publishedAt); err != nil {
			return nil, err
		}
		rec.Status = GraphStatus(status)
		def, err := Deserialize([]byte(defJSON))
		if err != nil {
			return nil, fmt.Errorf("deserialize definition: %w", err)
		}
		rec.Definition = *def
		if publishedAt.Valid {
			rec.PublishedAt = &publishedAt.Time
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *LibSQLStore) DeleteGraph(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM process_graphs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "process_graph", id)
}

// --- Executions ---

func (s *LibSQLStore) CreateExecution(ctx context.Context, exec *Execution) error {
	status := exec.Status
	if status == "" {
		status = schema.ExecutionPending
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executions (ref, graph_id, status, current_step_id, submitted_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		exec.Ref, exec.GraphID, string(status), nullStr(exec.CurrentStepID),
		timeOrNow(exec.SubmittedAt), timeOrNow(exec.UpdatedAt),
	)
	return err
}

func (s *LibSQLStore) GetExecution(ctx context.Context, ref string) (*Execution, error) {
	e := &Execution{}
	var status string
	var currentStep sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT ref, graph_id, status, current_step_id, submitted_at, updated_at
		 FROM executions WHERE ref = ?`, ref,
	).Scan(&e.Ref, &e.GraphID, &status, &currentStep, &e.SubmittedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("execution", ref)
	}
	if err != nil {
		return nil, err
	}
	e.Status = schema.ExecutionStatus(status)
	e.CurrentStepID = currentStep.String
	return e, nil
}

func (s *LibSQLStore) UpdateExecution(ctx context.Context, ref string, update ExecutionUpdate) error {
	var sets []string
	var args []any

	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*update.Status))
	}
	if update.CurrentStepID != nil {
		sets = append(sets, "current_step_id = ?")
		args = append(args, nullStr(*update.CurrentStepID))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, ref)

	query := fmt.Sprintf("UPDATE executions SET %s WHERE ref = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "execution", ref)
}

func (s *LibSQLStore) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*Execution, error) {
	var where []string
	var args []any

	if filter.GraphID != "" {
		where = append(where, "graph_id = ?")
		args = append(args, filter.GraphID)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}

	query := `SELECT ref, graph_id, status, current_step_id, submitted_at, updated_at FROM executions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY submitted_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []*Execution
	for rows.Next() {
		e := &Execution{}
		var status string
		var currentStep sql.NullString
		if err := rows.Scan(&e.Ref, &e.GraphID, &status, &currentStep, &e.SubmittedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Status = schema.ExecutionStatus(status)
		e.CurrentStepID = currentStep.String
		executions = append(executions, e)
	}
	return executions, rows.Err()
}

// --- Scheduled runs ---

func (s *LibSQLStore) CreateScheduledRun(ctx context.Context, run *ScheduledRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_runs (id, graph_id, cron_expression, enabled, last_run_at, next_run_at, last_run_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.GraphID, run.CronExpression, run.Enabled,
		nullTime(run.LastRunAt), nullTime(run.NextRunAt), nullStr(run.LastRunStatus),
		timeOrNow(run.CreatedAt),
	)
	return err
}

func (s *LibSQLStore) GetScheduledRun(ctx context.Context, id string) (*ScheduledRun, error) {
	r := &ScheduledRun{}
	var lastRunAt, nextRunAt sql.NullTime
	var lastStatus sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, graph_id, cron_expression, enabled, last_run_at, next_run_at, last_run_status, created_at
		 FROM scheduled_runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.GraphID, &r.CronExpression, &r.Enabled, &lastRunAt, &nextRunAt, &lastStatus, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("scheduled_run", id)
	}
	if err != nil {
		return nil, err
	}
	if lastRunAt.Valid {
		r.LastRunAt = &lastRunAt.Time
	}
	if nextRunAt.Valid {
		r.NextRunAt = &nextRunAt.Time
	}
	r.LastRunStatus = lastStatus.String
	return r, nil
}

func (s *LibSQLStore) UpdateScheduledRun(ctx context.Context, id string, update ScheduledRunUpdate) error {
	var sets []string
	var args []any

	if update.Enabled != nil {
		sets = append(sets, "enabled = ?")
		args = append(args, *update.Enabled)
	}
	if update.LastRunAt != nil {
		sets = append(sets, "last_run_at = ?")
		args = append(args, *update.LastRunAt)
	}
	if update.NextRunAt != nil {
		sets = append(sets, "next_run_at = ?")
		args = append(args, *update.NextRunAt)
	}
	if update.LastRunStatus != "" {
		sets = append(sets, "last_run_status = ?")
		args = append(args, update.LastRunStatus)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE scheduled_runs SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "scheduled_run", id)
}

func (s *LibSQLStore) ListScheduledRuns(ctx context.Context, filter ScheduledRunFilter) ([]*ScheduledRun, error) {
	var where []string
	var args []any

	if filter.Enabled != nil {
		where = append(where, "enabled = ?")
		args = append(args, *filter.Enabled)
	}
	if filter.GraphID != "" {
		where = append(where, "graph_id = ?")
		args = append(args, filter.GraphID)
	}

	query := `SELECT id, graph_id, cron_expression, enabled, last_run_at, next_run_at, last_run_status, created_at FROM scheduled_runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*ScheduledRun
	for rows.Next() {
		r := &ScheduledRun{}
		var lastRunAt, nextRunAt sql.NullTime
		var lastStatus sql.NullString
		if err := rows.Scan(&r.ID, &r.GraphID, &r.CronExpression, &r.Enabled, &lastRunAt, &nextRunAt, &lastStatus, &r.CreatedAt); err != nil {
			return nil, err
		}
		if lastRunAt.Valid {
			r.LastRunAt = &lastRunAt.Time
		}
		if nextRunAt.Valid {
			r.NextRunAt = &nextRunAt.Time
		}
		r.LastRunStatus = lastStatus.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *LibSQLStore) DeleteScheduledRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "scheduled_run", id)
}

// --- Form templates ---

func (s *LibSQLStore) StoreTemplate(ctx context.Context, tpl *FormTemplate) error {
	fields, err := nullableFields(tpl.Fields)
	if err != nil {
		return fmt.Errorf("marshal template fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO form_templates (id, name, description, fields, form_schema, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name, description=excluded.description,
		   fields=excluded.fields, form_schema=excluded.form_schema,
		   updated_at=CURRENT_TIMESTAMP`,
		tpl.ID, tpl.Name, nullStr(tpl.Description), fields, nullRaw(tpl.FormSchema),
		timeOrNow(tpl.CreatedAt), timeOrNow(tpl.UpdatedAt),
	)
	return err
}

func (s *LibSQLStore) GetTemplate(ctx context.Context, id string) (*FormTemplate, error) {
	t := &FormTemplate{}
	var desc, fieldsJSON, schemaJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, fields, form_schema, created_at, updated_at
		 FROM form_templates WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &desc, &fieldsJSON, &schemaJSON, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("form_template", id)
	}
	if err != nil {
		return nil, err
	}
	t.Description = desc.String
	if fieldsJSON.Valid && fieldsJSON.String != "" {
		if err := json.Unmarshal([]byte(fieldsJSON.String), &t.Fields); err != nil {
			return nil, fmt.Errorf("unmarshal template fields: %w", err)
		}
	}
	t.FormSchema = rawOrNil(schemaJSON)
	return t, nil
}

func (s *LibSQLStore) ListTemplates(ctx context.Context, filter TemplateFilter) ([]*FormTemplate, error) {
	var where []string
	var args []any

	if filter.Name != "" {
		where = append(where, "name = ?")
		args = append(args, filter.Name)
	}

	query := `SELECT id, name, description, fields, form_schema, created_at, updated_at FROM form_templates`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*FormTemplate
	for rows.Next() {
		t := &FormTemplate{}
		var desc, fieldsJSON, schemaJSON sql.NullString
		if err := rows.Scan(&t.ID, &t.Name, &desc, &fieldsJSON, &schemaJSON, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.Description = desc.String
		if fieldsJSON.Valid && fieldsJSON.String != "" {
			if err := json.Unmarshal([]byte(fieldsJSON.String), &t.Fields); err != nil {
				return nil, fmt.Errorf("unmarshal template fields: %w", err)
			}
		}
		t.FormSchema = rawOrNil(schemaJSON)
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (s *LibSQLStore) DeleteTemplate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM form_templates WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "form_template", id)
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

func nullableFields(fields []schema.FormField) (any, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

var _ Store = (*LibSQLStore)(nil)
