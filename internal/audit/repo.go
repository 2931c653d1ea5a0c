package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const auditCols = `audit_id, admin_id, action_type, COALESCE(target_table, ''), COALESCE(target_id, ''), COALESCE(description, ''), COALESCE(ip_address, ''), timestamp`

// Repository persists audit records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes one audit row. Empty optional fields are stored as NULL.
func (r *Repository) Insert(ctx context.Context, rec Record) error {
	if rec.AuditID == "" {
		rec.AuditID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (audit_id, admin_id, action_type, target_table, target_id, description, ip_address, timestamp)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8)
	`, rec.AuditID, rec.AdminID, rec.ActionType, rec.TargetTable, rec.TargetID, rec.Description, rec.IPAddress, rec.Timestamp)
	return err
}

func scanRecord(row interface{ Scan(...any) error }) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.AuditID, &rec.AdminID, &rec.ActionType, &rec.TargetTable,
		&rec.TargetID, &rec.Description, &rec.IPAddress, &rec.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ByID fetches one audit record.
func (r *Repository) ByID(ctx context.Context, auditID string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+auditCols+` FROM audit_logs WHERE audit_id = $1`, auditID)
	return scanRecord(row)
}

// Filter restricts an audit listing.
type Filter struct {
	AdminID    string
	ActionType string
	Start      *time.Time
	End        *time.Time
	Page       int
	Limit      int
}

// List returns a filtered page of audit records plus the total count.
func (r *Repository) List(ctx context.Context, f Filter) ([]Record, int, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}

	var clauses []string
	var args []any
	add := func(clause string, val any) {
		args = append(args, val)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.AdminID != "" {
		add("admin_id = $%d", f.AdminID)
	}
	if f.ActionType != "" {
		add("action_type = $%d", f.ActionType)
	}
	if f.Start != nil {
		add("timestamp >= $%d", *f.Start)
	}
	if f.End != nil {
		add("timestamp <= $%d", *f.End)
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	q := `SELECT ` + auditCols + ` FROM audit_logs` + where +
		fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, *rec)
	}
	return records, total, rows.Err()
}

// Stats summarizes the audit trail: totals per action type and activity
// in the last 24 hours.
type Stats struct {
	Total      int            `json:"total"`
	ByAction   map[string]int `json:"byAction"`
	Last24h    int            `json:"last24h"`
	AdminCount int            `json:"adminCount"`
}

// Summarize computes audit statistics.
func (r *Repository) Summarize(ctx context.Context) (Stats, error) {
	stats := Stats{ByAction: map[string]int{}}

	rows, err := r.db.QueryContext(ctx,
		`SELECT action_type, COUNT(*) FROM audit_logs GROUP BY action_type`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return Stats{}, err
		}
		stats.ByAction[action] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_logs WHERE timestamp >= NOW() - interval '24 hours'`).Scan(&stats.Last24h); err != nil {
		return Stats{}, err
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT admin_id) FROM audit_logs`).Scan(&stats.AdminCount); err != nil {
		return Stats{}, err
	}
	return stats, nil
}
