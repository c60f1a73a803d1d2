/*
Package sqlite provides a SQLite-backed implementation of leave.TxStore.

KEY TABLES:
  time_off_requests: one row per request, status mutated via the engine
  approvals:         one row per request (unique org_id+request_id)
  vacation_balances: one row per (org, employee, year), integer
                     hundredths columns

CONCURRENCY:
  The database is opened in WAL mode. Status transitions rely on the
  conditional UPDATE in TransitionApproval (compare-and-set on the
  status column); taken mutations are single atomic UPSERT increments.
  Both therefore stay correct under concurrent writers without
  in-process locking.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/peoplekit/leave-engine/leave"
)

// Store implements leave.TxStore using SQLite.
type Store struct {
	db *sql.DB
}

var _ leave.TxStore = (*Store)(nil)

// New opens (and migrates) the database at path. Use ":memory:" for an
// in-memory database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection: SQLite serializes writers anyway, and a
	// ":memory:" database exists per-connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS time_off_requests (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		start_date TEXT NOT NULL,
		end_date TEXT,
		half_day INTEGER NOT NULL DEFAULT 0,
		note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_org_employee
		ON time_off_requests(org_id, employee_id);
	CREATE INDEX IF NOT EXISTS idx_requests_org_status
		ON time_off_requests(org_id, status);

	CREATE TABLE IF NOT EXISTS approvals (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		request_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		approved_by TEXT,
		approved_at TEXT,
		rejection_reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- One approval per request
	CREATE UNIQUE INDEX IF NOT EXISTS idx_approvals_request
		ON approvals(org_id, request_id);
	CREATE INDEX IF NOT EXISTS idx_approvals_org_status
		ON approvals(org_id, status);

	CREATE TABLE IF NOT EXISTS vacation_balances (
		org_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		from_last_year INTEGER NOT NULL DEFAULT 0,
		accrued INTEGER NOT NULL DEFAULT 0,
		taken INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (org_id, employee_id, year)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so every query helper
// works inside and outside WithTx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// REQUESTS
// =============================================================================

func (s *Store) CreateRequest(ctx context.Context, r *leave.TimeOffRequest) error {
	return createRequest(ctx, s.db, r)
}

func createRequest(ctx context.Context, db dbtx, r *leave.TimeOffRequest) error {
	var endDate any
	if r.EndDate != nil {
		endDate = r.EndDate.String()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO time_off_requests
			(id, org_id, employee_id, type, status, start_date, end_date, half_day, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.OrgID, r.EmployeeID, string(r.Type), string(r.Status),
		r.StartDate.String(), endDate, r.HalfDay, r.Note,
		r.CreatedAt.UTC().Format(time.RFC3339), r.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

const requestColumns = `id, org_id, employee_id, type, status, start_date, end_date, half_day, note, created_at, updated_at`

func (s *Store) GetRequest(ctx context.Context, orgID, id string) (*leave.TimeOffRequest, error) {
	return getRequest(ctx, s.db, orgID, id)
}

func getRequest(ctx context.Context, db dbtx, orgID, id string) (*leave.TimeOffRequest, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM time_off_requests WHERE org_id = ? AND id = ?`,
		orgID, id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, leave.ErrRequestNotFound
	}
	return r, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*leave.TimeOffRequest, error) {
	var (
		r                    leave.TimeOffRequest
		typ, status          string
		startDate            string
		endDate              sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&r.ID, &r.OrgID, &r.EmployeeID, &typ, &status,
		&startDate, &endDate, &r.HalfDay, &r.Note, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	r.Type = leave.Type(typ)
	r.Status = leave.Status(status)
	if r.StartDate, err = leave.ParseDate(startDate); err != nil {
		return nil, err
	}
	if endDate.Valid {
		d, err := leave.ParseDate(endDate.String)
		if err != nil {
			return nil, err
		}
		r.EndDate = &d
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &r, nil
}

func (s *Store) UpdateRequestStatus(ctx context.Context, orgID, id string, status leave.Status, at time.Time) error {
	return updateRequestStatus(ctx, s.db, orgID, id, status, at)
}

func updateRequestStatus(ctx context.Context, db dbtx, orgID, id string, status leave.Status, at time.Time) error {
	res, err := db.ExecContext(ctx,
		`UPDATE time_off_requests SET status = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
		string(status), at.UTC().Format(time.RFC3339), orgID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return leave.ErrRequestNotFound
	}
	return nil
}

func (s *Store) ListPendingRequests(ctx context.Context, orgID string) ([]*leave.TimeOffRequest, error) {
	return listPendingRequests(ctx, s.db, orgID)
}

func listPendingRequests(ctx context.Context, db dbtx, orgID string) ([]*leave.TimeOffRequest, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM time_off_requests
		 WHERE org_id = ? AND status = ? ORDER BY created_at ASC`,
		orgID, string(leave.StatusPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*leave.TimeOffRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// APPROVALS
// =============================================================================

func (s *Store) CreateApproval(ctx context.Context, a *leave.Approval) error {
	return createApproval(ctx, s.db, a)
}

func createApproval(ctx context.Context, db dbtx, a *leave.Approval) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO approvals
			(id, org_id, request_id, status, approved_by, approved_at, rejection_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OrgID, a.RequestID, string(a.Status),
		a.ApprovedBy, nullTime(a.ApprovedAt), a.RejectionReason,
		a.CreatedAt.UTC().Format(time.RFC3339), a.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

const approvalColumns = `id, org_id, request_id, status, approved_by, approved_at, rejection_reason, created_at, updated_at`

func (s *Store) GetApproval(ctx context.Context, orgID, id string) (*leave.Approval, error) {
	return getApproval(ctx, s.db,
		`SELECT `+approvalColumns+` FROM approvals WHERE org_id = ? AND id = ?`, orgID, id)
}

func (s *Store) GetApprovalForRequest(ctx context.Context, orgID, requestID string) (*leave.Approval, error) {
	return getApproval(ctx, s.db,
		`SELECT `+approvalColumns+` FROM approvals WHERE org_id = ? AND request_id = ?`, orgID, requestID)
}

func getApproval(ctx context.Context, db dbtx, query string, args ...any) (*leave.Approval, error) {
	var (
		a                    leave.Approval
		status               string
		approvedBy           sql.NullString
		approvedAt           sql.NullString
		createdAt, updatedAt string
	)
	err := db.QueryRowContext(ctx, query, args...).Scan(
		&a.ID, &a.OrgID, &a.RequestID, &status, &approvedBy, &approvedAt,
		&a.RejectionReason, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, leave.ErrApprovalNotFound
	}
	if err != nil {
		return nil, err
	}

	a.Status = leave.Status(status)
	if approvedBy.Valid {
		a.ApprovedBy = &approvedBy.String
	}
	if approvedAt.Valid {
		t, _ := time.Parse(time.RFC3339, approvedAt.String)
		a.ApprovedAt = &t
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &a, nil
}

func (s *Store) TransitionApproval(ctx context.Context, orgID, id string, from leave.Status, upd leave.ApprovalUpdate) (bool, error) {
	return transitionApproval(ctx, s.db, orgID, id, from, upd)
}

// transitionApproval is the compare-and-set: the WHERE clause pins the
// prior status, so a concurrent transition makes this a zero-row update.
func transitionApproval(ctx context.Context, db dbtx, orgID, id string, from leave.Status, upd leave.ApprovalUpdate) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE approvals
		SET status = ?, approved_by = ?, approved_at = ?, rejection_reason = ?, updated_at = ?
		WHERE org_id = ? AND id = ? AND status = ?`,
		string(upd.Status), upd.ApprovedBy, nullTime(upd.ApprovedAt),
		upd.RejectionReason, upd.UpdatedAt.UTC().Format(time.RFC3339),
		orgID, id, string(from),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// =============================================================================
// BALANCES
// =============================================================================

func (s *Store) GetBalance(ctx context.Context, orgID, employeeID string, year int) (*leave.VacationBalance, error) {
	return getBalance(ctx, s.db, orgID, employeeID, year)
}

func getBalance(ctx context.Context, db dbtx, orgID, employeeID string, year int) (*leave.VacationBalance, error) {
	var b leave.VacationBalance
	err := db.QueryRowContext(ctx, `
		SELECT org_id, employee_id, year, from_last_year, accrued, taken
		FROM vacation_balances
		WHERE org_id = ? AND employee_id = ? AND year = ?`,
		orgID, employeeID, year,
	).Scan(&b.OrgID, &b.EmployeeID, &b.Year, &b.FromLastYear, &b.Accrued, &b.Taken)
	if err == sql.ErrNoRows {
		return nil, nil // missing balance reads as zero
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) PutBalance(ctx context.Context, b *leave.VacationBalance) error {
	return putBalance(ctx, s.db, b)
}

func putBalance(ctx context.Context, db dbtx, b *leave.VacationBalance) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO vacation_balances (org_id, employee_id, year, from_last_year, accrued, taken)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(org_id, employee_id, year) DO UPDATE SET
			from_last_year = excluded.from_last_year,
			accrued = excluded.accrued,
			taken = excluded.taken`,
		b.OrgID, b.EmployeeID, b.Year, int64(b.FromLastYear), int64(b.Accrued), int64(b.Taken))
	return err
}

func (s *Store) AddTaken(ctx context.Context, orgID, employeeID string, year int, delta leave.Hundredths) error {
	return addTaken(ctx, s.db, orgID, employeeID, year, delta)
}

// addTaken increments taken in a single statement; there is no
// read-modify-write window for concurrent deducts to race through.
func addTaken(ctx context.Context, db dbtx, orgID, employeeID string, year int, delta leave.Hundredths) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO vacation_balances (org_id, employee_id, year, taken)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(org_id, employee_id, year) DO UPDATE SET
			taken = taken + excluded.taken`,
		orgID, employeeID, year, int64(delta))
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

var _ leave.Store = (*txStore)(nil)

func (ts *txStore) CreateRequest(ctx context.Context, r *leave.TimeOffRequest) error {
	return createRequest(ctx, ts.tx, r)
}

func (ts *txStore) GetRequest(ctx context.Context, orgID, id string) (*leave.TimeOffRequest, error) {
	return getRequest(ctx, ts.tx, orgID, id)
}

func (ts *txStore) UpdateRequestStatus(ctx context.Context, orgID, id string, status leave.Status, at time.Time) error {
	return updateRequestStatus(ctx, ts.tx, orgID, id, status, at)
}

func (ts *txStore) ListPendingRequests(ctx context.Context, orgID string) ([]*leave.TimeOffRequest, error) {
	return listPendingRequests(ctx, ts.tx, orgID)
}

func (ts *txStore) CreateApproval(ctx context.Context, a *leave.Approval) error {
	return createApproval(ctx, ts.tx, a)
}

func (ts *txStore) GetApproval(ctx context.Context, orgID, id string) (*leave.Approval, error) {
	return getApproval(ctx, ts.tx,
		`SELECT `+approvalColumns+` FROM approvals WHERE org_id = ? AND id = ?`, orgID, id)
}

func (ts *txStore) GetApprovalForRequest(ctx context.Context, orgID, requestID string) (*leave.Approval, error) {
	return getApproval(ctx, ts.tx,
		`SELECT `+approvalColumns+` FROM approvals WHERE org_id = ? AND request_id = ?`, orgID, requestID)
}

func (ts *txStore) TransitionApproval(ctx context.Context, orgID, id string, from leave.Status, upd leave.ApprovalUpdate) (bool, error) {
	return transitionApproval(ctx, ts.tx, orgID, id, from, upd)
}

func (ts *txStore) GetBalance(ctx context.Context, orgID, employeeID string, year int) (*leave.VacationBalance, error) {
	return getBalance(ctx, ts.tx, orgID, employeeID, year)
}

func (ts *txStore) PutBalance(ctx context.Context, b *leave.VacationBalance) error {
	return putBalance(ctx, ts.tx, b)
}

func (ts *txStore) AddTaken(ctx context.Context, orgID, employeeID string, year int, delta leave.Hundredths) error {
	return addTaken(ctx, ts.tx, orgID, employeeID, year, delta)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
