/*
Package postgres provides a PostgreSQL-backed implementation of
leave.TxStore on top of a pgx connection pool.

The semantics mirror store/sqlite: compare-and-set transitions via a
conditional UPDATE, atomic taken increments via INSERT ... ON CONFLICT,
and a missing balance row reading as zero. Dates are DATE columns,
timestamps TIMESTAMPTZ.
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peoplekit/leave-engine/leave"
)

// Store implements leave.TxStore using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ leave.TxStore = (*Store)(nil)

// New connects to the database at url and verifies the connection.
func New(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS time_off_requests (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		start_date DATE NOT NULL,
		end_date DATE,
		half_day BOOLEAN NOT NULL DEFAULT FALSE,
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_org_employee
		ON time_off_requests(org_id, employee_id);
	CREATE INDEX IF NOT EXISTS idx_requests_org_status
		ON time_off_requests(org_id, status);

	CREATE TABLE IF NOT EXISTS approvals (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		request_id TEXT NOT NULL REFERENCES time_off_requests(id),
		status TEXT NOT NULL DEFAULT 'pending',
		approved_by TEXT,
		approved_at TIMESTAMPTZ,
		rejection_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_approvals_request
		ON approvals(org_id, request_id);
	CREATE INDEX IF NOT EXISTS idx_approvals_org_status
		ON approvals(org_id, status);

	CREATE TABLE IF NOT EXISTS vacation_balances (
		org_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		year INT NOT NULL,
		from_last_year BIGINT NOT NULL DEFAULT 0,
		accrued BIGINT NOT NULL DEFAULT 0,
		taken BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (org_id, employee_id, year)
	);
	`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so every query
// helper works inside and outside WithTx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// =============================================================================
// REQUESTS
// =============================================================================

func (s *Store) CreateRequest(ctx context.Context, r *leave.TimeOffRequest) error {
	return createRequest(ctx, s.pool, r)
}

func createRequest(ctx context.Context, q querier, r *leave.TimeOffRequest) error {
	var endDate *time.Time
	if r.EndDate != nil {
		t := r.EndDate.Time()
		endDate = &t
	}
	_, err := q.Exec(ctx, `
		INSERT INTO time_off_requests
			(id, org_id, employee_id, type, status, start_date, end_date, half_day, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.ID, r.OrgID, r.EmployeeID, string(r.Type), string(r.Status),
		r.StartDate.Time(), endDate, r.HalfDay, r.Note, r.CreatedAt, r.UpdatedAt,
	)
	return err
}

const requestColumns = `id, org_id, employee_id, type, status, start_date, end_date, half_day, note, created_at, updated_at`

func (s *Store) GetRequest(ctx context.Context, orgID, id string) (*leave.TimeOffRequest, error) {
	return getRequest(ctx, s.pool, orgID, id)
}

func getRequest(ctx context.Context, q querier, orgID, id string) (*leave.TimeOffRequest, error) {
	row := q.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM time_off_requests WHERE org_id = $1 AND id = $2`,
		orgID, id)
	r, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, leave.ErrRequestNotFound
	}
	return r, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*leave.TimeOffRequest, error) {
	var (
		r           leave.TimeOffRequest
		typ, status string
		startDate   time.Time
		endDate     *time.Time
	)
	err := row.Scan(&r.ID, &r.OrgID, &r.EmployeeID, &typ, &status,
		&startDate, &endDate, &r.HalfDay, &r.Note, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	r.Type = leave.Type(typ)
	r.Status = leave.Status(status)
	r.StartDate = leave.DateOf(startDate)
	if endDate != nil {
		d := leave.DateOf(*endDate)
		r.EndDate = &d
	}
	return &r, nil
}

func (s *Store) UpdateRequestStatus(ctx context.Context, orgID, id string, status leave.Status, at time.Time) error {
	return updateRequestStatus(ctx, s.pool, orgID, id, status, at)
}

func updateRequestStatus(ctx context.Context, q querier, orgID, id string, status leave.Status, at time.Time) error {
	tag, err := q.Exec(ctx,
		`UPDATE time_off_requests SET status = $1, updated_at = $2 WHERE org_id = $3 AND id = $4`,
		string(status), at, orgID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return leave.ErrRequestNotFound
	}
	return nil
}

func (s *Store) ListPendingRequests(ctx context.Context, orgID string) ([]*leave.TimeOffRequest, error) {
	return listPendingRequests(ctx, s.pool, orgID)
}

func listPendingRequests(ctx context.Context, q querier, orgID string) ([]*leave.TimeOffRequest, error) {
	rows, err := q.Query(ctx,
		`SELECT `+requestColumns+` FROM time_off_requests
		 WHERE org_id = $1 AND status = $2 ORDER BY created_at ASC`,
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
	return createApproval(ctx, s.pool, a)
}

func createApproval(ctx context.Context, q querier, a *leave.Approval) error {
	_, err := q.Exec(ctx, `
		INSERT INTO approvals
			(id, org_id, request_id, status, approved_by, approved_at, rejection_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.OrgID, a.RequestID, string(a.Status),
		a.ApprovedBy, a.ApprovedAt, a.RejectionReason, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

const approvalColumns = `id, org_id, request_id, status, approved_by, approved_at, rejection_reason, created_at, updated_at`

func (s *Store) GetApproval(ctx context.Context, orgID, id string) (*leave.Approval, error) {
	return getApproval(ctx, s.pool,
		`SELECT `+approvalColumns+` FROM approvals WHERE org_id = $1 AND id = $2`, orgID, id)
}

func (s *Store) GetApprovalForRequest(ctx context.Context, orgID, requestID string) (*leave.Approval, error) {
	return getApproval(ctx, s.pool,
		`SELECT `+approvalColumns+` FROM approvals WHERE org_id = $1 AND request_id = $2`, orgID, requestID)
}

func getApproval(ctx context.Context, q querier, query string, args ...any) (*leave.Approval, error) {
	var (
		a      leave.Approval
		status string
	)
	err := q.QueryRow(ctx, query, args...).Scan(
		&a.ID, &a.OrgID, &a.RequestID, &status, &a.ApprovedBy, &a.ApprovedAt,
		&a.RejectionReason, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, leave.ErrApprovalNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Status = leave.Status(status)
	return &a, nil
}

func (s *Store) TransitionApproval(ctx context.Context, orgID, id string, from leave.Status, upd leave.ApprovalUpdate) (bool, error) {
	return transitionApproval(ctx, s.pool, orgID, id, from, upd)
}

// transitionApproval pins the prior status in the WHERE clause; a
// concurrent transition makes this a zero-row update.
func transitionApproval(ctx context.Context, q querier, orgID, id string, from leave.Status, upd leave.ApprovalUpdate) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE approvals
		SET status = $1, approved_by = $2, approved_at = $3, rejection_reason = $4, updated_at = $5
		WHERE org_id = $6 AND id = $7 AND status = $8`,
		string(upd.Status), upd.ApprovedBy, upd.ApprovedAt,
		upd.RejectionReason, upd.UpdatedAt,
		orgID, id, string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// =============================================================================
// BALANCES
// =============================================================================

func (s *Store) GetBalance(ctx context.Context, orgID, employeeID string, year int) (*leave.VacationBalance, error) {
	return getBalance(ctx, s.pool, orgID, employeeID, year)
}

func getBalance(ctx context.Context, q querier, orgID, employeeID string, year int) (*leave.VacationBalance, error) {
	var b leave.VacationBalance
	err := q.QueryRow(ctx, `
		SELECT org_id, employee_id, year, from_last_year, accrued, taken
		FROM vacation_balances
		WHERE org_id = $1 AND employee_id = $2 AND year = $3`,
		orgID, employeeID, year,
	).Scan(&b.OrgID, &b.EmployeeID, &b.Year, &b.FromLastYear, &b.Accrued, &b.Taken)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil // missing balance reads as zero
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) PutBalance(ctx context.Context, b *leave.VacationBalance) error {
	return putBalance(ctx, s.pool, b)
}

func putBalance(ctx context.Context, q querier, b *leave.VacationBalance) error {
	_, err := q.Exec(ctx, `
		INSERT INTO vacation_balances (org_id, employee_id, year, from_last_year, accrued, taken)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (org_id, employee_id, year) DO UPDATE SET
			from_last_year = EXCLUDED.from_last_year,
			accrued = EXCLUDED.accrued,
			taken = EXCLUDED.taken`,
		b.OrgID, b.EmployeeID, b.Year,
		int64(b.FromLastYear), int64(b.Accrued), int64(b.Taken))
	return err
}

func (s *Store) AddTaken(ctx context.Context, orgID, employeeID string, year int, delta leave.Hundredths) error {
	return addTaken(ctx, s.pool, orgID, employeeID, year, delta)
}

func addTaken(ctx context.Context, q querier, orgID, employeeID string, year int, delta leave.Hundredths) error {
	_, err := q.Exec(ctx, `
		INSERT INTO vacation_balances (org_id, employee_id, year, taken)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (org_id, employee_id, year) DO UPDATE SET
			taken = vacation_balances.taken + EXCLUDED.taken`,
		orgID, employeeID, year, int64(delta))
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type txStore struct {
	tx pgx.Tx
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
		`SELECT `+approvalColumns+` FROM approvals WHERE org_id = $1 AND id = $2`, orgID, id)
}

func (ts *txStore) GetApprovalForRequest(ctx context.Context, orgID, requestID string) (*leave.Approval, error) {
	return getApproval(ctx, ts.tx,
		`SELECT `+approvalColumns+` FROM approvals WHERE org_id = $1 AND request_id = $2`, orgID, requestID)
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
