package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/support-allocation/backend/internal/models"
)

// Postgres implements Store on pgx. Atomicity for the allocation write path
// comes from transactions with a row lock on the resource.
type Postgres struct {
	Pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Postgres{Pool: pool}, nil
}

func (s *Postgres) Close() {
	s.Pool.Close()
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

// EnsureSchema creates the tables on first boot. Statements are idempotent
// so repeated startups are safe.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS requesters (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			city TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS requests (
			id TEXT PRIMARY KEY,
			requester_id TEXT NOT NULL REFERENCES requesters(id),
			requester_name TEXT NOT NULL DEFAULT '',
			requester_city TEXT NOT NULL DEFAULT '',
			service_category TEXT NOT NULL,
			request_type TEXT NOT NULL,
			urgency_level TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			submitted_at TIMESTAMPTZ NOT NULL,
			queued_at TIMESTAMPTZ,
			processed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_status ON requests (status, submitted_at)`,
		`CREATE TABLE IF NOT EXISTS resources (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			city TEXT NOT NULL,
			capacity INT NOT NULL,
			status TEXT NOT NULL DEFAULT 'AVAILABLE'
		)`,
		`CREATE TABLE IF NOT EXISTS assignments (
			id TEXT PRIMARY KEY,
			request_id TEXT NOT NULL REFERENCES requests(id),
			resource_id TEXT NOT NULL REFERENCES resources(id),
			priority_score INT NOT NULL,
			status TEXT NOT NULL DEFAULT 'ASSIGNED',
			assigned_at TIMESTAMPTZ NOT NULL,
			expected_completion_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_assignments_status ON assignments (status, expected_completion_at)`,
		`CREATE TABLE IF NOT EXISTS priority_rules (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			key TEXT NOT NULL DEFAULT '',
			condition TEXT NOT NULL DEFAULT '',
			weight INT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			description TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS system_logs (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL,
			details JSONB,
			timestamp TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_system_logs_ts ON system_logs (timestamp DESC)`,
	}
	for _, stmt := range statements {
		if _, err := s.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Postgres) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const requestColumns = `id, requester_id, requester_name, requester_city, service_category, request_type, urgency_level, status, submitted_at, queued_at, processed_at`

func scanRequest(row pgx.Row) (models.ServiceRequest, error) {
	var r models.ServiceRequest
	err := row.Scan(&r.ID, &r.RequesterID, &r.RequesterName, &r.RequesterCity, &r.ServiceCategory, &r.RequestType, &r.UrgencyLevel, &r.Status, &r.SubmittedAt, &r.QueuedAt, &r.ProcessedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

func (s *Postgres) CreateRequest(ctx context.Context, req models.ServiceRequest) (models.ServiceRequest, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.RequestPending
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now().UTC()
	}
	if req.RequesterCity == "" || req.RequesterName == "" {
		requester, err := s.GetRequester(ctx, req.RequesterID)
		if err != nil {
			return models.ServiceRequest{}, err
		}
		if req.RequesterCity == "" {
			req.RequesterCity = requester.City
		}
		if req.RequesterName == "" {
			req.RequesterName = requester.Name
		}
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO requests (id, requester_id, requester_name, requester_city, service_category, request_type, urgency_level, status, submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, req.ID, req.RequesterID, req.RequesterName, req.RequesterCity, req.ServiceCategory, req.RequestType, req.UrgencyLevel, req.Status, req.SubmittedAt)
	return req, err
}

func (s *Postgres) GetRequest(ctx context.Context, id string) (models.ServiceRequest, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = $1`, id)
	return scanRequest(row)
}

func (s *Postgres) queryRequests(ctx context.Context, query string, args ...any) ([]models.ServiceRequest, error) {
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ServiceRequest
	for rows.Next() {
		var r models.ServiceRequest
		if err := rows.Scan(&r.ID, &r.RequesterID, &r.RequesterName, &r.RequesterCity, &r.ServiceCategory, &r.RequestType, &r.UrgencyLevel, &r.Status, &r.SubmittedAt, &r.QueuedAt, &r.ProcessedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Postgres) ListRequests(ctx context.Context, f RequestFilter) ([]models.ServiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM requests`
	var args []any
	var wheres []string
	if f.Status != "" {
		args = append(args, f.Status)
		wheres = append(wheres, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Urgency != "" {
		args = append(args, f.Urgency)
		wheres = append(wheres, fmt.Sprintf("urgency_level = $%d", len(args)))
	}
	if f.Service != "" {
		args = append(args, f.Service)
		wheres = append(wheres, fmt.Sprintf("service_category = $%d", len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY submitted_at DESC, id ASC"
	return s.queryRequests(ctx, query, args...)
}

func (s *Postgres) PendingRequests(ctx context.Context) ([]models.ServiceRequest, error) {
	return s.queryRequests(ctx, `SELECT `+requestColumns+` FROM requests WHERE status = $1 ORDER BY submitted_at ASC, id ASC`, models.RequestPending)
}

func (s *Postgres) QueuedRequests(ctx context.Context) ([]models.ServiceRequest, error) {
	return s.queryRequests(ctx, `SELECT `+requestColumns+` FROM requests WHERE status = $1 AND queued_at IS NOT NULL ORDER BY submitted_at ASC, id ASC`, models.RequestPending)
}

func (s *Postgres) MarkQueued(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE requests SET queued_at = $1
		WHERE id = $2 AND status = $3 AND queued_at IS NULL
	`, at, id, models.RequestPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Postgres) ListResources(ctx context.Context, city, status string) ([]models.Resource, error) {
	query := `SELECT id, kind, city, capacity, status FROM resources`
	var args []any
	var wheres []string
	if city != "" {
		args = append(args, city)
		wheres = append(wheres, fmt.Sprintf("city = $%d", len(args)))
	}
	if status != "" {
		args = append(args, status)
		wheres = append(wheres, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY id ASC"

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Resource
	for rows.Next() {
		var r models.Resource
		if err := rows.Scan(&r.ID, &r.Kind, &r.City, &r.Capacity, &r.Status); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Postgres) GetResource(ctx context.Context, id string) (models.Resource, error) {
	var r models.Resource
	err := s.Pool.QueryRow(ctx, `SELECT id, kind, city, capacity, status FROM resources WHERE id = $1`, id).
		Scan(&r.ID, &r.Kind, &r.City, &r.Capacity, &r.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

func (s *Postgres) ResourceLoads(ctx context.Context) (map[string]int, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT resource_id, COUNT(*) FROM assignments WHERE status = $1 GROUP BY resource_id
	`, models.AssignmentAssigned)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

func (s *Postgres) RefreshResourceStatus(ctx context.Context, id string) (models.Resource, bool, error) {
	var resource models.Resource
	var changed bool
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT id, kind, city, capacity, status FROM resources WHERE id = $1 FOR UPDATE`, id)
		if err := row.Scan(&resource.ID, &resource.Kind, &resource.City, &resource.Capacity, &resource.Status); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		var active int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM assignments WHERE resource_id = $1 AND status = $2`, id, models.AssignmentAssigned).Scan(&active); err != nil {
			return err
		}
		status := models.ResourceAvailable
		if active >= resource.Capacity {
			status = models.ResourceBusy
		}
		if status == resource.Status {
			return nil
		}
		if _, err := tx.Exec(ctx, `UPDATE resources SET status = $1 WHERE id = $2`, status, id); err != nil {
			return err
		}
		resource.Status = status
		changed = true
		return nil
	})
	return resource, changed, err
}

func (s *Postgres) ResetResources(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `UPDATE resources SET status = $1`, models.ResourceAvailable)
	return err
}

func (s *Postgres) AssignRequest(ctx context.Context, requestID, resourceID string, score int, assignedAt, expectedAt time.Time) (models.Assignment, error) {
	a := models.Assignment{
		ID:                   uuid.NewString(),
		RequestID:            requestID,
		ResourceID:           resourceID,
		PriorityScore:        score,
		Status:               models.AssignmentAssigned,
		AssignedAt:           assignedAt,
		ExpectedCompletionAt: expectedAt,
	}
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		var capacity int
		err := tx.QueryRow(ctx, `SELECT capacity FROM resources WHERE id = $1 FOR UPDATE`, resourceID).Scan(&capacity)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var active int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM assignments WHERE resource_id = $1 AND status = $2`, resourceID, models.AssignmentAssigned).Scan(&active); err != nil {
			return err
		}
		if active >= capacity {
			return ErrResourceBusy
		}
		tag, err := tx.Exec(ctx, `
			UPDATE requests SET status = $1, processed_at = $2
			WHERE id = $3 AND status = $4
		`, models.RequestAssigned, assignedAt, requestID, models.RequestPending)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return ErrRequestNotPending
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO assignments (id, request_id, resource_id, priority_score, status, assigned_at, expected_completion_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, a.ID, a.RequestID, a.ResourceID, a.PriorityScore, a.Status, a.AssignedAt, a.ExpectedCompletionAt)
		return err
	})
	if err != nil {
		return models.Assignment{}, err
	}
	return a, nil
}

func (s *Postgres) CompleteAssignment(ctx context.Context, id string, at time.Time) (models.Assignment, error) {
	var a models.Assignment
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE assignments SET status = $1, completed_at = $2
			WHERE id = $3 AND status = $4
			RETURNING id, request_id, resource_id, priority_score, status, assigned_at, expected_completion_at, completed_at
		`, models.AssignmentCompleted, at, id, models.AssignmentAssigned)
		err := row.Scan(&a.ID, &a.RequestID, &a.ResourceID, &a.PriorityScore, &a.Status, &a.AssignedAt, &a.ExpectedCompletionAt, &a.CompletedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE requests SET status = $1 WHERE id = $2`, models.RequestCompleted, a.RequestID)
		return err
	})
	if err != nil {
		return models.Assignment{}, err
	}
	return a, nil
}

func (s *Postgres) queryAssignments(ctx context.Context, query string, args ...any) ([]models.Assignment, error) {
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Assignment
	for rows.Next() {
		var a models.Assignment
		if err := rows.Scan(&a.ID, &a.RequestID, &a.ResourceID, &a.PriorityScore, &a.Status, &a.AssignedAt, &a.ExpectedCompletionAt, &a.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const assignmentColumns = `id, request_id, resource_id, priority_score, status, assigned_at, expected_completion_at, completed_at`

func (s *Postgres) DueAssignments(ctx context.Context, now time.Time) ([]models.Assignment, error) {
	return s.queryAssignments(ctx, `
		SELECT `+assignmentColumns+` FROM assignments
		WHERE status = $1 AND expected_completion_at <= $2
		ORDER BY expected_completion_at ASC, id ASC
	`, models.AssignmentAssigned, now)
}

func (s *Postgres) ListAssignments(ctx context.Context, status string, limit int) ([]models.Assignment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT ` + assignmentColumns + ` FROM assignments`
	var args []any
	if status != "" {
		args = append(args, status)
		query += " WHERE status = $1"
	}
	query += fmt.Sprintf(" ORDER BY assigned_at DESC, id ASC LIMIT $%d", len(args)+1)
	args = append(args, limit)
	return s.queryAssignments(ctx, query, args...)
}

func (s *Postgres) AssignmentsSince(ctx context.Context, since time.Time) ([]models.Assignment, error) {
	if since.IsZero() {
		return s.queryAssignments(ctx, `SELECT `+assignmentColumns+` FROM assignments ORDER BY assigned_at ASC, id ASC`)
	}
	return s.queryAssignments(ctx, `
		SELECT `+assignmentColumns+` FROM assignments
		WHERE assigned_at >= $1
		ORDER BY assigned_at ASC, id ASC
	`, since)
}

func (s *Postgres) CountAssignments(ctx context.Context, status string) (int, error) {
	query := `SELECT COUNT(*) FROM assignments`
	var args []any
	if status != "" {
		args = append(args, status)
		query += " WHERE status = $1"
	}
	var n int
	err := s.Pool.QueryRow(ctx, query, args...).Scan(&n)
	return n, err
}

const ruleColumns = `id, name, category, key, condition, weight, active, description, updated_at`

func (s *Postgres) queryRules(ctx context.Context, query string, args ...any) ([]models.PriorityRule, error) {
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PriorityRule
	for rows.Next() {
		var r models.PriorityRule
		if err := rows.Scan(&r.ID, &r.Name, &r.Category, &r.Key, &r.Condition, &r.Weight, &r.Active, &r.Description, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Postgres) ActiveRules(ctx context.Context) ([]models.PriorityRule, error) {
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM priority_rules WHERE active ORDER BY category ASC, name ASC`)
}

func (s *Postgres) ListRules(ctx context.Context) ([]models.PriorityRule, error) {
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM priority_rules ORDER BY category ASC, name ASC`)
}

func (s *Postgres) GetRule(ctx context.Context, id string) (models.PriorityRule, error) {
	var r models.PriorityRule
	err := s.Pool.QueryRow(ctx, `SELECT `+ruleColumns+` FROM priority_rules WHERE id = $1`, id).
		Scan(&r.ID, &r.Name, &r.Category, &r.Key, &r.Condition, &r.Weight, &r.Active, &r.Description, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

func (s *Postgres) CreateRule(ctx context.Context, r models.PriorityRule) (models.PriorityRule, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.UpdatedAt = time.Now().UTC()
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO priority_rules (id, name, category, key, condition, weight, active, description, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			condition = EXCLUDED.condition,
			weight = EXCLUDED.weight,
			active = EXCLUDED.active,
			description = EXCLUDED.description,
			updated_at = EXCLUDED.updated_at
	`, r.ID, r.Name, r.Category, r.Key, r.Condition, r.Weight, r.Active, r.Description, r.UpdatedAt)
	return r, err
}

func (s *Postgres) UpdateRule(ctx context.Context, id string, upd RuleUpdate) (models.PriorityRule, error) {
	sets := []string{"updated_at = NOW()"}
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Weight != nil {
		add("weight", *upd.Weight)
	}
	if upd.Active != nil {
		add("active", *upd.Active)
	}
	if upd.Condition != nil {
		add("condition", *upd.Condition)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE priority_rules SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	tag, err := s.Pool.Exec(ctx, query, args...)
	if err != nil {
		return models.PriorityRule{}, err
	}
	if tag.RowsAffected() == 0 {
		return models.PriorityRule{}, ErrNotFound
	}
	return s.GetRule(ctx, id)
}

func (s *Postgres) DeleteRule(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM priority_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) ListRequesters(ctx context.Context) ([]models.Requester, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name, city FROM requesters ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Requester
	for rows.Next() {
		var r models.Requester
		if err := rows.Scan(&r.ID, &r.Name, &r.City); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Postgres) GetRequester(ctx context.Context, id string) (models.Requester, error) {
	var r models.Requester
	err := s.Pool.QueryRow(ctx, `SELECT id, name, city FROM requesters WHERE id = $1`, id).Scan(&r.ID, &r.Name, &r.City)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

func (s *Postgres) AppendLog(ctx context.Context, e models.LogEntry) (models.LogEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	var details []byte
	if e.Details != nil {
		details, _ = json.Marshal(e.Details)
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO system_logs (id, event_type, entity_type, entity_id, message, details, timestamp)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, e.ID, e.EventType, e.EntityType, e.EntityID, e.Message, details, e.Timestamp)
	return e, err
}

func (s *Postgres) ListLogs(ctx context.Context, f LogFilter) ([]models.LogEntry, int, error) {
	var args []any
	var wheres []string
	if f.EventType != "" {
		args = append(args, f.EventType)
		wheres = append(wheres, fmt.Sprintf("event_type = $%d", len(args)))
	}
	if f.EntityType != "" {
		args = append(args, f.EntityType)
		wheres = append(wheres, fmt.Sprintf("entity_type = $%d", len(args)))
	}
	if f.EntityID != "" {
		args = append(args, f.EntityID)
		wheres = append(wheres, fmt.Sprintf("entity_id = $%d", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		wheres = append(wheres, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if !f.Until.IsZero() {
		args = append(args, f.Until)
		wheres = append(wheres, fmt.Sprintf("timestamp <= $%d", len(args)))
	}
	where := ""
	if len(wheres) > 0 {
		where = " WHERE " + strings.Join(wheres, " AND ")
	}

	var total int
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM system_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	query := `SELECT id, event_type, entity_type, entity_id, message, details, timestamp FROM system_logs` + where +
		fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.LogEntry
	for rows.Next() {
		var e models.LogEntry
		var details []byte
		if err := rows.Scan(&e.ID, &e.EventType, &e.EntityType, &e.EntityID, &e.Message, &details, &e.Timestamp); err != nil {
			return nil, 0, err
		}
		if len(details) > 0 {
			_ = json.Unmarshal(details, &e.Details)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (s *Postgres) RecentLogs(ctx context.Context, limit int) ([]models.LogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	out, _, err := s.ListLogs(ctx, LogFilter{Limit: limit})
	return out, err
}

func (s *Postgres) ClearTransient(ctx context.Context) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `TRUNCATE assignments, requests, system_logs`); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE resources SET status = $1`, models.ResourceAvailable)
		return err
	})
}
