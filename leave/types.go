/*
Package leave implements the time-off request lifecycle for a multi-tenant
HR system.

PURPOSE:
  This package owns the only part of the system with real invariants:
  the pending → approved/rejected/cancelled approval state machine, the
  per-employee-per-year vacation balance ledger, and the per-type
  validation and processing strategies that tie the two together.

KEY CONCEPTS IN THIS FILE (types.go):
  - Hundredths: a day quantity in integer hundredths-of-a-day
  - Type: the closed set of time-off types (vacation, sick, ...)
  - TimeOffRequest / Approval: the request and its decision record
  - VacationBalance: accrued/taken/carried-over bookkeeping for one
    employee-year

DESIGN PRINCIPLES:
  1. Integer arithmetic: balances never touch floating point; decimal
     conversion happens only at display time
  2. Closed type set: strategy dispatch is an exhaustive switch, not a
     runtime registry
  3. Explicit tenancy: every operation carries an organization id; there
     is no ambient "current organization"

SEE ALSO:
  - dayspan.go:  request quantity calculation
  - ledger.go:   deduct/restore over VacationBalance
  - validate.go: per-type validation strategies
  - process.go:  per-type approval side effects
  - approval.go: the state machine itself
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// HUNDREDTHS - Day quantity in integer hundredths-of-a-day
// =============================================================================

// Hundredths is a day count stored as integer hundredths-of-a-day.
// A full day is 100, a half day 50. All balance arithmetic stays in this
// integer space; Days() is for display only.
type Hundredths int64

const (
	HalfDay Hundredths = 50
	FullDay Hundredths = 100
)

func (h Hundredths) Add(o Hundredths) Hundredths { return h + o }
func (h Hundredths) Sub(o Hundredths) Hundredths { return h - o }
func (h Hundredths) IsNegative() bool            { return h < 0 }
func (h Hundredths) IsZero() bool                { return h == 0 }

// Days converts to display units (hundredths ÷ 100) without losing
// precision. 150 → "1.5", 300 → "3".
func (h Hundredths) Days() decimal.Decimal {
	return decimal.NewFromInt(int64(h)).Div(decimal.NewFromInt(100))
}

// String renders the display-unit value, e.g. "1.5" for 150.
func (h Hundredths) String() string { return h.Days().String() }

// =============================================================================
// TIME-OFF TYPES - Closed enum, dispatched via exhaustive switch
// =============================================================================

type Type string

const (
	TypeVacation    Type = "vacation"
	TypeSickLeave   Type = "sick_leave"
	TypePersonalDay Type = "personal_day"
	TypeBereavement Type = "bereavement"
)

// Types lists every known time-off type.
var Types = []Type{TypeVacation, TypeSickLeave, TypePersonalDay, TypeBereavement}

func (t Type) Valid() bool {
	switch t {
	case TypeVacation, TypeSickLeave, TypePersonalDay, TypeBereavement:
		return true
	}
	return false
}

// BalanceBearing reports whether approving this type mutates the
// vacation ledger. Only vacation carries a balance.
func (t Type) BalanceBearing() bool { return t == TypeVacation }

// =============================================================================
// STATUS - Shared by requests and approvals
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is allowed from this
// status. Approved is not terminal: an approved request may still be
// cancelled, reversing its ledger effect.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

// =============================================================================
// TIME-OFF REQUEST
// =============================================================================

// TimeOffRequest is one employee's request for time off. Status is
// mutated only through the ApprovalService.
//
// INVARIANT: when HalfDay is true, EndDate is nil (a half-day request
// spans exactly one day; Submit normalizes any supplied end date away).
// EndDate, when present, is >= StartDate once validation has passed.
type TimeOffRequest struct {
	ID         string
	OrgID      string
	EmployeeID string
	Type       Type
	Status     Status
	StartDate  Date
	EndDate    *Date
	HalfDay    bool
	Note       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Span returns the quantity this request consumes, in hundredths.
func (r *TimeOffRequest) Span() Hundredths {
	return DaySpan(r.StartDate, r.EndDate, r.HalfDay)
}

// BalanceYear is the accounting year the request draws from.
func (r *TimeOffRequest) BalanceYear() int { return r.StartDate.Year() }

// =============================================================================
// APPROVAL - Decision record, 1:1 with a request
// =============================================================================

// Approval tracks the decision lifecycle of a TimeOffRequest, distinct
// from the request's own status field.
//
// RequestID is a direct foreign key. The system this grew out of used a
// polymorphic approvable reference; requests are the only approvable
// kind, so the generality was dropped.
//
// INVARIANT: ApprovedBy and ApprovedAt are set together, only on the
// Approved and Rejected transitions; both stay nil for Pending and are
// cleared on Cancelled.
type Approval struct {
	ID              string
	OrgID           string
	RequestID       string
	Status          Status
	ApprovedBy      *string
	ApprovedAt      *time.Time
	RejectionReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// =============================================================================
// VACATION BALANCE - One row per (org, employee, year)
// =============================================================================

// VacationBalance is the ledger row for one employee and accounting
// year. All three buckets are integer hundredths. Taken is mutated only
// through Ledger.Deduct/Restore.
type VacationBalance struct {
	OrgID        string
	EmployeeID   string
	Year         int
	FromLastYear Hundredths
	Accrued      Hundredths
	Taken        Hundredths
}

// Remaining is derived on read, never stored.
func (b VacationBalance) Remaining() Hundredths {
	return b.Accrued + b.FromLastYear - b.Taken
}
