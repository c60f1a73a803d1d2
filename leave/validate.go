/*
validate.go - Per-type validation strategies

PURPOSE:
  A validator is selected by time-off type and runs against the proposed
  request fields before anything is persisted. The result is a field →
  message map; an empty map means the request may be created.

DISPATCH:
  ValidatorFor is an exhaustive switch over the closed Type set. Adding
  a type without a validator arm is a compile-visible gap, not a silent
  registry miss.

PER-TYPE RULES:
  Vacation     date order + balance sufficiency (read-only ledger check)
  SickLeave    date order
  PersonalDay  date order
  Bereavement  none beyond generic field presence

  Half-day requests skip the date-order check entirely: no end date is
  considered and the requested amount is a fixed half day.
*/
package leave

import (
	"context"
	"fmt"
)

// Validator checks a proposed request before persistence. The error
// return is for infrastructure failures (store unreachable); business
// outcomes are carried in FieldErrors.
type Validator interface {
	Validate(ctx context.Context, r *TimeOffRequest) (FieldErrors, error)
}

// ValidatorFor selects the validation strategy for a time-off type.
func ValidatorFor(t Type, ledger *Ledger) Validator {
	switch t {
	case TypeVacation:
		return &vacationValidator{ledger: ledger}
	case TypeSickLeave, TypePersonalDay:
		return dateOrderValidator{}
	case TypeBereavement:
		return alwaysValid{}
	default:
		return invalidType{t: t}
	}
}

// =============================================================================
// DATE ORDER
// =============================================================================

type dateOrderValidator struct{}

func (dateOrderValidator) Validate(_ context.Context, r *TimeOffRequest) (FieldErrors, error) {
	fe := FieldErrors{}
	checkDateOrder(fe, r)
	return fe, nil
}

func checkDateOrder(fe FieldErrors, r *TimeOffRequest) {
	if r.HalfDay {
		return // half-day spans exactly one day; any end date is ignored
	}
	if r.EndDate != nil && r.EndDate.Before(r.StartDate) {
		fe.add("end_date", "end date must be on or after start date")
	}
}

// =============================================================================
// VACATION - date order + balance sufficiency
// =============================================================================

type vacationValidator struct {
	ledger *Ledger
}

func (v *vacationValidator) Validate(ctx context.Context, r *TimeOffRequest) (FieldErrors, error) {
	fe := FieldErrors{}
	checkDateOrder(fe, r)
	if !fe.OK() {
		return fe, nil
	}

	available, err := v.ledger.Remaining(ctx, r.OrgID, r.EmployeeID, r.BalanceYear())
	if err != nil {
		return nil, err
	}

	requested := r.Span()
	if requested > available {
		fe.add("balance", fmt.Sprintf(
			"insufficient vacation balance: %s day(s) available, %s day(s) requested",
			available, requested))
	}
	return fe, nil
}

// =============================================================================
// TRIVIAL STRATEGIES
// =============================================================================

type alwaysValid struct{}

func (alwaysValid) Validate(context.Context, *TimeOffRequest) (FieldErrors, error) {
	return FieldErrors{}, nil
}

type invalidType struct{ t Type }

func (v invalidType) Validate(context.Context, *TimeOffRequest) (FieldErrors, error) {
	return FieldErrors{"type": fmt.Sprintf("unknown time-off type %q", v.t)}, nil
}
