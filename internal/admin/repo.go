package admin

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

const adminCols = `admin_id, username, password_hash, full_name, email, role, last_login, created_at, updated_at`

// Repository persists admin accounts in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func scanAdmin(row interface{ Scan(...any) error }) (*Admin, error) {
	var a Admin
	err := row.Scan(&a.AdminID, &a.Username, &a.PasswordHash, &a.FullName, &a.Email,
		&a.Role, &a.LastLogin, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// ByUsername fetches an admin by login name.
func (r *Repository) ByUsername(ctx context.Context, username string) (*Admin, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+adminCols+` FROM admins WHERE username = $1`, username)
	return scanAdmin(row)
}

// ByID fetches an admin by primary key.
func (r *Repository) ByID(ctx context.Context, adminID string) (*Admin, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+adminCols+` FROM admins WHERE admin_id = $1`, adminID)
	return scanAdmin(row)
}

// List returns all admins, newest first.
func (r *Repository) List(ctx context.Context) ([]Admin, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+adminCols+` FROM admins ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var admins []Admin
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, err
		}
		admins = append(admins, *a)
	}
	return admins, rows.Err()
}

// Create inserts a new admin, assigning its id and timestamps.
func (r *Repository) Create(ctx context.Context, a *Admin) error {
	if a.AdminID == "" {
		a.AdminID = uuid.NewString()
	}
	if a.Role == "" {
		a.Role = RoleAdmin
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO admins (admin_id, username, password_hash, full_name, email, role, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, a.AdminID, a.Username, a.PasswordHash, a.FullName, a.Email, a.Role, a.CreatedAt, a.UpdatedAt)
	return err
}

// Update writes the mutable fields of an admin.
func (r *Repository) Update(ctx context.Context, a *Admin) error {
	a.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE admins
		SET username = $2, password_hash = $3, full_name = $4, email = $5, role = $6, updated_at = $7
		WHERE admin_id = $1
	`, a.AdminID, a.Username, a.PasswordHash, a.FullName, a.Email, a.Role, a.UpdatedAt)
	return err
}

// Delete removes an admin. Returns false when no row matched.
func (r *Repository) Delete(ctx context.Context, adminID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM admins WHERE admin_id = $1`, adminID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// TouchLastLogin stamps a successful login.
func (r *Repository) TouchLastLogin(ctx context.Context, adminID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE admins SET last_login = NOW(), updated_at = NOW() WHERE admin_id = $1`, adminID)
	return err
}

// Count returns the number of admin accounts.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&n)
	return n, err
}
