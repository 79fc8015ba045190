package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// AuditRepository defines the data access contract for the audit log.
// All SQL lives in the concrete implementation -- no SQL leaks out.
type AuditRepository interface {
	// Insert appends one entry.
	Insert(ctx context.Context, entry *Entry) error

	// List returns paginated entries, most recent first, optionally
	// filtered by admin login. Returns the entries, total count, and
	// any error.
	List(ctx context.Context, adminLogin string, limit, offset int) ([]Entry, int, error)
}

// auditRepository implements AuditRepository with MariaDB queries.
type auditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new repository backed by the given DB pool.
func NewAuditRepository(db *sql.DB) AuditRepository {
	return &auditRepository{db: db}
}

// Insert appends one entry to audit_log.
func (r *auditRepository) Insert(ctx context.Context, entry *Entry) error {
	query := `INSERT INTO audit_log (id, admin_login, action, entity_kind, entity_id, detail, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.AdminLogin, entry.Action,
		entry.EntityKind, entry.EntityID, entry.Detail,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// List returns entries ordered by most recent first. An empty adminLogin
// returns everyone's actions.
func (r *auditRepository) List(ctx context.Context, adminLogin string, limit, offset int) ([]Entry, int, error) {
	countQuery := `SELECT COUNT(*) FROM audit_log WHERE (? = '' OR admin_login = ?)`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, adminLogin, adminLogin).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting audit entries: %w", err)
	}

	query := `SELECT id, admin_login, action, entity_kind, entity_id, detail, created_at
	          FROM audit_log
	          WHERE (? = '' OR admin_login = ?)
	          ORDER BY created_at DESC
	          LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, adminLogin, adminLogin, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.AdminLogin, &e.Action,
			&e.EntityKind, &e.EntityID, &e.Detail, &e.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scanning audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating audit rows: %w", err)
	}

	return entries, total, nil
}
