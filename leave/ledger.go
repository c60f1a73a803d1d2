/*
ledger.go - Vacation balance accounting

PURPOSE:
  The Ledger owns every mutation of VacationBalance.Taken. Balances are
  keyed by (org, employee, accounting year = request start date's year)
  and counted in integer hundredths-of-a-day.

CRITICAL BEHAVIOR:
  - A missing balance row reads as zero, never an error. Downstream
    validation depends on this fallback to reject over-requests for
    employees whose balance was never seeded.
  - Deduct is NOT idempotent: each call adds the request's span to
    taken. Processors guarantee a single invocation per approval
    transition; the state machine's compare-and-set guard enforces it
    under concurrency.
  - Restore is the exact inverse, used when cancelling an approved
    request. Deduct-then-restore with the same request leaves taken
    unchanged.
*/
package leave

import (
	"context"
	"fmt"
)

// Ledger performs balance reads and taken-column mutations over a Store.
// Construct one per unit of work: inside WithTx, build it over the
// transactional store so ledger writes commit with the status writes.
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Balance returns the row for (org, employee, year), or a zero-valued
// row when none exists.
func (l *Ledger) Balance(ctx context.Context, orgID, employeeID string, year int) (VacationBalance, error) {
	b, err := l.store.GetBalance(ctx, orgID, employeeID, year)
	if err != nil {
		return VacationBalance{}, fmt.Errorf("load balance: %w", err)
	}
	if b == nil {
		return VacationBalance{OrgID: orgID, EmployeeID: employeeID, Year: year}, nil
	}
	return *b, nil
}

// Remaining returns accrued + carried-over - taken for the year.
func (l *Ledger) Remaining(ctx context.Context, orgID, employeeID string, year int) (Hundredths, error) {
	b, err := l.Balance(ctx, orgID, employeeID, year)
	if err != nil {
		return 0, err
	}
	return b.Remaining(), nil
}

// Deduct adds the request's span to taken for the request's balance
// year. Callers invoke this exactly once per approval.
func (l *Ledger) Deduct(ctx context.Context, r *TimeOffRequest) error {
	span := r.Span()
	if err := l.store.AddTaken(ctx, r.OrgID, r.EmployeeID, r.BalanceYear(), span); err != nil {
		return fmt.Errorf("deduct %s from balance: %w", span, err)
	}
	return nil
}

// Restore subtracts the request's span from taken, reversing a prior
// Deduct for the same request.
func (l *Ledger) Restore(ctx context.Context, r *TimeOffRequest) error {
	span := r.Span()
	if err := l.store.AddTaken(ctx, r.OrgID, r.EmployeeID, r.BalanceYear(), -span); err != nil {
		return fmt.Errorf("restore %s to balance: %w", span, err)
	}
	return nil
}

// Rollover carries an employee's remaining balance for fromYear into the
// next year's from-last-year bucket. The next year's accrued and taken
// buckets are preserved if a row already exists.
func (l *Ledger) Rollover(ctx context.Context, orgID, employeeID string, fromYear int) (VacationBalance, error) {
	current, err := l.Balance(ctx, orgID, employeeID, fromYear)
	if err != nil {
		return VacationBalance{}, err
	}

	remaining := current.Remaining()
	if remaining.IsNegative() {
		remaining = 0 // an overdrawn year carries nothing forward
	}

	next, err := l.Balance(ctx, orgID, employeeID, fromYear+1)
	if err != nil {
		return VacationBalance{}, err
	}
	next.FromLastYear = remaining

	if err := l.store.PutBalance(ctx, &next); err != nil {
		return VacationBalance{}, fmt.Errorf("save rollover balance: %w", err)
	}
	return next, nil
}
