/*
store.go - Persistence interface for requests, approvals, and balances

PURPOSE:
  Defines the boundary between the engine and the database. Three
  implementations exist: store/memory (tests, dev), store/sqlite, and
  store/postgres.

ATOMICITY CONTRACT:
  Every approval transition (status writes + ledger mutation) runs
  inside WithTx so a mid-sequence failure leaves no partial state.

  TransitionApproval is a compare-and-set: the update applies only if
  the approval's current status still equals `from`. Concurrent callers
  racing on the same approval see exactly one winner; losers get
  applied=false and must not touch the ledger.

  AddTaken is an atomic in-database increment (UPDATE ... SET taken =
  taken + delta, upserting the row when absent). Deduct/restore never
  read-modify-write the taken column.
*/
package leave

import (
	"context"
	"time"
)

// ApprovalUpdate is the field set written by a state transition.
// ApprovedBy/ApprovedAt nil means "clear" (the Cancelled transition).
type ApprovalUpdate struct {
	Status          Status
	ApprovedBy      *string
	ApprovedAt      *time.Time
	RejectionReason string
	UpdatedAt       time.Time
}

// Store persists the engine's three record kinds. All lookups are scoped
// by organization id; no entity is shared across organizations.
type Store interface {
	// Requests
	CreateRequest(ctx context.Context, r *TimeOffRequest) error
	// GetRequest returns ErrRequestNotFound when absent.
	GetRequest(ctx context.Context, orgID, id string) (*TimeOffRequest, error)
	UpdateRequestStatus(ctx context.Context, orgID, id string, status Status, at time.Time) error
	ListPendingRequests(ctx context.Context, orgID string) ([]*TimeOffRequest, error)

	// Approvals
	CreateApproval(ctx context.Context, a *Approval) error
	// GetApproval returns ErrApprovalNotFound when absent.
	GetApproval(ctx context.Context, orgID, id string) (*Approval, error)
	GetApprovalForRequest(ctx context.Context, orgID, requestID string) (*Approval, error)
	// TransitionApproval applies upd iff the approval's status still
	// equals from. Returns applied=false (no error) on a lost race or a
	// terminal approval.
	TransitionApproval(ctx context.Context, orgID, id string, from Status, upd ApprovalUpdate) (applied bool, err error)

	// Balances
	// GetBalance returns (nil, nil) when no row exists; callers treat
	// that as a zero balance, never an error.
	GetBalance(ctx context.Context, orgID, employeeID string, year int) (*VacationBalance, error)
	// PutBalance upserts a full balance row (seeding, rollover).
	PutBalance(ctx context.Context, b *VacationBalance) error
	// AddTaken atomically increments taken by delta, creating the row
	// with zero accrued/carry-over if it does not exist.
	AddTaken(ctx context.Context, orgID, employeeID string, year int, delta Hundredths) error
}

// TxStore wraps Store with transaction support. If fn returns an error
// the transaction is rolled back, otherwise committed.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
