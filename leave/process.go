/*
process.go - Per-type approval side effects

PURPOSE:
  A processor applies the side effect of approving a request (Process)
  and the inverse used when an approved request is cancelled (Reverse).
  Like the validators, processors are dispatched by an exhaustive switch
  over the closed Type set.

IDEMPOTENCY:
  For the non-balance types Process is idempotent: repeated calls leave
  the request Approved with no duplicate side effects. For Vacation it
  is NOT - every call deducts again. The approval state machine's
  compare-and-set guard is what guarantees a single invocation per
  transition; processors do not defend against double calls themselves.
*/
package leave

import (
	"context"
	"fmt"
	"time"
)

// Processor applies/reverses the ledger side effect of an approval
// decision and moves the request's own status.
type Processor interface {
	// Process is invoked on approval. Leaves the request Approved.
	Process(ctx context.Context, s Store, r *TimeOffRequest) error
	// Reverse is invoked when an approved request is cancelled. Leaves
	// the request Cancelled and undoes any ledger effect.
	Reverse(ctx context.Context, s Store, r *TimeOffRequest) error
}

// ProcessorFor selects the processing strategy for a time-off type.
func ProcessorFor(t Type) Processor {
	switch t {
	case TypeVacation:
		return vacationProcessor{}
	case TypeSickLeave, TypePersonalDay, TypeBereavement:
		return statusOnlyProcessor{}
	default:
		return unknownProcessor{t: t}
	}
}

// =============================================================================
// VACATION - ledger deduct / restore
// =============================================================================

type vacationProcessor struct{}

func (vacationProcessor) Process(ctx context.Context, s Store, r *TimeOffRequest) error {
	if err := NewLedger(s).Deduct(ctx, r); err != nil {
		return err
	}
	return setRequestStatus(ctx, s, r, StatusApproved)
}

func (vacationProcessor) Reverse(ctx context.Context, s Store, r *TimeOffRequest) error {
	if err := NewLedger(s).Restore(ctx, r); err != nil {
		return err
	}
	return setRequestStatus(ctx, s, r, StatusCancelled)
}

// =============================================================================
// SICK / PERSONAL / BEREAVEMENT - status only, no ledger effect
// =============================================================================

type statusOnlyProcessor struct{}

func (statusOnlyProcessor) Process(ctx context.Context, s Store, r *TimeOffRequest) error {
	if r.Status == StatusApproved {
		return nil // already processed; repeated calls are harmless
	}
	return setRequestStatus(ctx, s, r, StatusApproved)
}

func (statusOnlyProcessor) Reverse(ctx context.Context, s Store, r *TimeOffRequest) error {
	if r.Status == StatusCancelled {
		return nil
	}
	return setRequestStatus(ctx, s, r, StatusCancelled)
}

type unknownProcessor struct{ t Type }

func (p unknownProcessor) Process(context.Context, Store, *TimeOffRequest) error {
	return fmt.Errorf("no processor for time-off type %q", p.t)
}

func (p unknownProcessor) Reverse(context.Context, Store, *TimeOffRequest) error {
	return fmt.Errorf("no processor for time-off type %q", p.t)
}

func setRequestStatus(ctx context.Context, s Store, r *TimeOffRequest, status Status) error {
	now := time.Now().UTC()
	if err := s.UpdateRequestStatus(ctx, r.OrgID, r.ID, status, now); err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	r.Status = status
	r.UpdatedAt = now
	return nil
}
