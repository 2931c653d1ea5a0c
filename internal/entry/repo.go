package entry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const userCols = `user_id, id_number, rfid_tag, first_name, last_name, email, user_type, college, department, year_level, status, created_at, updated_at`

// Repository persists users and entry logs in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	err := row.Scan(&u.UserID, &u.IDNumber, &u.RFIDTag, &u.FirstName, &u.LastName, &u.Email,
		&u.UserType, &u.College, &u.Department, &u.YearLevel, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// UserByTag looks a user up by RFID tag regardless of status.
func (r *Repository) UserByTag(ctx context.Context, tag string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE rfid_tag = $1`, tag)
	return scanUser(row)
}

// ActiveUserByIDNumber looks an active user up by ID number.
func (r *Repository) ActiveUserByIDNumber(ctx context.Context, idNumber string) (*User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id_number = $1 AND status = 'active'`, idNumber)
	return scanUser(row)
}

// UserByID fetches a user by primary key.
func (r *Repository) UserByID(ctx context.Context, userID string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE user_id = $1`, userID)
	return scanUser(row)
}

// LookupUser finds a user by ID number or RFID tag.
func (r *Repository) LookupUser(ctx context.Context, key string) (*User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id_number = $1 OR rfid_tag = $1`, key)
	return scanUser(row)
}

// UserByIDNumberOrTag finds an existing user for the upsert flow.
// idNumber may be empty, in which case only the tag is matched.
func (r *Repository) UserByIDNumberOrTag(ctx context.Context, idNumber, tag string) (*User, error) {
	if idNumber == "" {
		return r.UserByTag(ctx, tag)
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id_number = $1 OR rfid_tag = $2`, idNumber, tag)
	return scanUser(row)
}

// CreateUser inserts a new user, assigning its id and timestamps.
func (r *Repository) CreateUser(ctx context.Context, u *User) error {
	if u.UserID == "" {
		u.UserID = uuid.NewString()
	}
	if u.Status == "" {
		u.Status = UserActive
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (user_id, id_number, rfid_tag, first_name, last_name, email, user_type, college, department, year_level, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, u.UserID, u.IDNumber, u.RFIDTag, u.FirstName, u.LastName, u.Email,
		u.UserType, u.College, u.Department, u.YearLevel, u.Status, u.CreatedAt, u.UpdatedAt)
	return err
}

// UpdateUser writes all mutable fields of a user.
func (r *Repository) UpdateUser(ctx context.Context, u *User) error {
	u.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET id_number = $2, rfid_tag = $3, first_name = $4, last_name = $5, email = $6,
		    user_type = $7, college = $8, department = $9, year_level = $10, status = $11, updated_at = $12
		WHERE user_id = $1
	`, u.UserID, u.IDNumber, u.RFIDTag, u.FirstName, u.LastName, u.Email,
		u.UserType, u.College, u.Department, u.YearLevel, u.Status, u.UpdatedAt)
	return err
}

// DeleteUser removes a user. Returns false when no row matched.
func (r *Repository) DeleteUser(ctx context.Context, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE user_id = $1`, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListUsers returns a page of users plus the total count.
func (r *Repository) ListUsers(ctx context.Context, page, limit int) ([]User, int, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userCols+` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

// SearchUsers matches name or ID number, case-insensitive.
func (r *Repository) SearchUsers(ctx context.Context, query string, limit int) ([]User, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + query + "%"
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userCols+` FROM users
		WHERE first_name ILIKE $1 OR last_name ILIKE $1 OR id_number ILIKE $1
		ORDER BY last_name, first_name
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// ---- entry logs ----

// LastSuccessSince returns the most recent success entry for a user at
// or after since, or nil when none exists.
func (r *Repository) LastSuccessSince(ctx context.Context, userID string, since time.Time) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT log_id, user_id, entry_timestamp, entry_method, status, created_at
		FROM entry_logs
		WHERE user_id = $1 AND status = 'success' AND entry_timestamp >= $2
		ORDER BY entry_timestamp DESC
		LIMIT 1
	`, userID, since)
	var e Entry
	if err := row.Scan(&e.LogID, &e.UserID, &e.EntryTimestamp, &e.EntryMethod, &e.Status, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// InsertEntry writes a new entry log row.
func (r *Repository) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	if e.LogID == "" {
		e.LogID = uuid.NewString()
	}
	if e.EntryTimestamp.IsZero() {
		e.EntryTimestamp = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = StatusSuccess
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO entry_logs (log_id, user_id, entry_timestamp, entry_method, status)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, e.LogID, e.UserID, e.EntryTimestamp, e.EntryMethod, e.Status)
	if err := row.Scan(&e.CreatedAt); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// InsertSuccessIfFresh inserts a success row only when the user has no
// success entry at or after since. The check and the insert are one
// statement, so concurrent scans of the same tag cannot both succeed.
// Returns nil when the insert was skipped.
func (r *Repository) InsertSuccessIfFresh(ctx context.Context, userID, method string, at, since time.Time) (*Entry, error) {
	e := Entry{
		LogID:          uuid.NewString(),
		UserID:         userID,
		EntryTimestamp: at,
		EntryMethod:    method,
		Status:         StatusSuccess,
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO entry_logs (log_id, user_id, entry_timestamp, entry_method, status)
		SELECT $1, $2, $3, $4, 'success'
		WHERE NOT EXISTS (
			SELECT 1 FROM entry_logs
			WHERE user_id = $2 AND status = 'success' AND entry_timestamp >= $5
		)
		RETURNING created_at
	`, e.LogID, e.UserID, e.EntryTimestamp, e.EntryMethod, since)
	if err := row.Scan(&e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

const entryJoinCols = `e.log_id, e.user_id, e.entry_timestamp, e.entry_method, e.status, e.created_at,
	u.user_id, u.id_number, u.rfid_tag, u.first_name, u.last_name, u.email, u.user_type, u.college, u.department, u.year_level, u.status, u.created_at, u.updated_at`

func scanEntryWithUser(row interface{ Scan(...any) error }) (*Entry, error) {
	var e Entry
	var u User
	err := row.Scan(&e.LogID, &e.UserID, &e.EntryTimestamp, &e.EntryMethod, &e.Status, &e.CreatedAt,
		&u.UserID, &u.IDNumber, &u.RFIDTag, &u.FirstName, &u.LastName, &u.Email,
		&u.UserType, &u.College, &u.Department, &u.YearLevel, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	e.User = &u
	return &e, nil
}

// EntryByID fetches one entry with its user.
func (r *Repository) EntryByID(ctx context.Context, logID string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+entryJoinCols+`
		FROM entry_logs e JOIN users u ON u.user_id = e.user_id
		WHERE e.log_id = $1
	`, logID)
	return scanEntryWithUser(row)
}

// ListEntries returns a page of entries with users, newest first.
func (r *Repository) ListEntries(ctx context.Context, page, limit int) ([]Entry, int, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entry_logs`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryJoinCols+`
		FROM entry_logs e JOIN users u ON u.user_id = e.user_id
		ORDER BY e.entry_timestamp DESC
		LIMIT $1 OFFSET $2
	`, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		e, err := scanEntryWithUser(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *e)
	}
	return entries, total, rows.Err()
}

// UpdateEntry applies the provided fields to an entry. Nil/empty fields
// are left as they are. Returns nil when the entry does not exist.
func (r *Repository) UpdateEntry(ctx context.Context, logID string, ts *time.Time, method, status string) (*Entry, error) {
	existing, err := r.EntryByID(ctx, logID)
	if err != nil || existing == nil {
		return existing, err
	}
	if ts != nil {
		existing.EntryTimestamp = *ts
	}
	if method != "" {
		existing.EntryMethod = method
	}
	if status != "" {
		existing.Status = status
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE entry_logs SET entry_timestamp = $2, entry_method = $3, status = $4 WHERE log_id = $1
	`, logID, existing.EntryTimestamp, existing.EntryMethod, existing.Status)
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// DeleteEntry removes an entry. Returns false when no row matched.
func (r *Repository) DeleteEntry(ctx context.Context, logID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM entry_logs WHERE log_id = $1`, logID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SuccessEntriesSince returns success entries at or after since, newest
// first, for the live monitoring view.
func (r *Repository) SuccessEntriesSince(ctx context.Context, since time.Time, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryJoinCols+`
		FROM entry_logs e JOIN users u ON u.user_id = e.user_id
		WHERE e.entry_timestamp >= $1 AND e.status = 'success'
		ORDER BY e.entry_timestamp DESC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		e, err := scanEntryWithUser(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Filter restricts an entry search.
type Filter struct {
	College    string
	Department string
	UserType   string
	Start      *time.Time
	End        *time.Time
	Search     string
	Page       int
	Limit      int
}

// FilterEntries searches entries by date range, user attributes and a
// free-text name/ID query.
func (r *Repository) FilterEntries(ctx context.Context, f Filter) ([]Entry, int, error) {
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
	if f.Start != nil {
		add("e.entry_timestamp >= $%d", *f.Start)
	}
	if f.End != nil {
		add("e.entry_timestamp <= $%d", *f.End)
	}
	if f.College != "" {
		add("u.college = $%d", f.College)
	}
	if f.Department != "" {
		add("u.department = $%d", f.Department)
	}
	if f.UserType != "" {
		add("u.user_type = $%d", f.UserType)
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		args = append(args, pattern)
		n := len(args)
		clauses = append(clauses,
			fmt.Sprintf("(u.first_name ILIKE $%d OR u.last_name ILIKE $%d OR u.id_number ILIKE $%d)", n, n, n))
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	countQ := `SELECT COUNT(*) FROM entry_logs e JOIN users u ON u.user_id = e.user_id` + where
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	q := `SELECT ` + entryJoinCols + `
		FROM entry_logs e JOIN users u ON u.user_id = e.user_id` + where +
		fmt.Sprintf(" ORDER BY e.entry_timestamp DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		e, err := scanEntryWithUser(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *e)
	}
	return entries, total, rows.Err()
}
