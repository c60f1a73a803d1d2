/*
approval.go - The approval state machine

PURPOSE:
  Owns the Approval lifecycle: Pending → Approved | Rejected | Cancelled,
  plus Approved → Cancelled (the reversal path). Every transition runs
  inside a single store transaction and is guarded by a compare-and-set
  on the approval's current status, so two concurrent approvals of the
  same request cannot both deduct the ledger.

TRANSITIONS:
  Approve  Pending → Approved    sets approver + timestamp, runs the
                                 type's Process (vacation: deduct)
  Reject   Pending → Rejected    sets approver + timestamp + reason,
                                 no processor (nothing was deducted)
  Cancel   Pending  → Cancelled  clears approver fields
           Approved → Cancelled  additionally runs Reverse
                                 (vacation: restore)

  Anything else fails with ErrInvalidTransition.
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ApprovalService is the only writer of request/approval status and,
// through the processors, of VacationBalance.Taken.
type ApprovalService struct {
	Store TxStore
}

func NewApprovalService(store TxStore) *ApprovalService {
	return &ApprovalService{Store: store}
}

// =============================================================================
// SUBMIT - Validate, then create the request + pending approval pair
// =============================================================================

// SubmitInput carries the proposed request fields. Organization id is
// explicit on every call; there is no ambient tenant.
type SubmitInput struct {
	OrgID      string
	EmployeeID string
	Type       Type
	StartDate  Date
	EndDate    *Date
	HalfDay    bool
	Note       string
}

// Submit validates the proposal and, on success, creates a pending
// TimeOffRequest and its Approval in one transaction. On validation
// failure the field-error map is returned and nothing is persisted.
func (s *ApprovalService) Submit(ctx context.Context, in SubmitInput) (*TimeOffRequest, *Approval, FieldErrors, error) {
	now := time.Now().UTC()
	req := &TimeOffRequest{
		ID:         uuid.NewString(),
		OrgID:      in.OrgID,
		EmployeeID: in.EmployeeID,
		Type:       in.Type,
		Status:     StatusPending,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		HalfDay:    in.HalfDay,
		Note:       in.Note,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.HalfDay {
		req.EndDate = nil // a half-day spans exactly one day
	}

	fe := FieldErrors{}
	if in.OrgID == "" {
		fe.add("org_id", "organization id is required")
	}
	if in.EmployeeID == "" {
		fe.add("employee_id", "employee id is required")
	}
	if in.StartDate.IsZero() {
		fe.add("start_date", "start date is required")
	}
	if !in.Type.Valid() {
		fe.add("type", fmt.Sprintf("unknown time-off type %q", in.Type))
	}
	if !fe.OK() {
		return nil, nil, fe, nil
	}

	fe, err := ValidatorFor(req.Type, NewLedger(s.Store)).Validate(ctx, req)
	if err != nil {
		return nil, nil, nil, err
	}
	if !fe.OK() {
		return nil, nil, fe, nil
	}

	approval := &Approval{
		ID:        uuid.NewString(),
		OrgID:     in.OrgID,
		RequestID: req.ID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.Store.WithTx(ctx, func(txs Store) error {
		if err := txs.CreateRequest(ctx, req); err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		if err := txs.CreateApproval(ctx, approval); err != nil {
			return fmt.Errorf("create approval: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return req, approval, nil, nil
}

// =============================================================================
// APPROVE
// =============================================================================

// Approve moves a pending approval to Approved, records the approver,
// and runs the type's processor (vacation requests deduct the ledger).
func (s *ApprovalService) Approve(ctx context.Context, orgID, approvalID, approverID string) (*Approval, error) {
	var out *Approval
	err := s.Store.WithTx(ctx, func(txs Store) error {
		a, err := txs.GetApproval(ctx, orgID, approvalID)
		if err != nil {
			return err
		}
		if a.Status != StatusPending {
			return &TransitionError{ApprovalID: a.ID, From: a.Status, To: StatusApproved}
		}

		now := time.Now().UTC()
		upd := ApprovalUpdate{
			Status:     StatusApproved,
			ApprovedBy: &approverID,
			ApprovedAt: &now,
			UpdatedAt:  now,
		}
		applied, err := txs.TransitionApproval(ctx, orgID, a.ID, StatusPending, upd)
		if err != nil {
			return err
		}
		if !applied {
			return &TransitionError{ApprovalID: a.ID, From: a.Status, To: StatusApproved}
		}

		r, err := txs.GetRequest(ctx, orgID, a.RequestID)
		if err != nil {
			return err
		}
		if err := ProcessorFor(r.Type).Process(ctx, txs, r); err != nil {
			return err
		}

		a.Status = StatusApproved
		a.ApprovedBy = upd.ApprovedBy
		a.ApprovedAt = upd.ApprovedAt
		a.UpdatedAt = now
		out = a
		return nil
	})
	return out, err
}

// =============================================================================
// REJECT
// =============================================================================

// Reject moves a pending approval to Rejected with a reason. No
// processor runs: the request was never approved, so there is no ledger
// effect to undo.
func (s *ApprovalService) Reject(ctx context.Context, orgID, approvalID, approverID, reason string) (*Approval, error) {
	if reason == "" {
		return nil, ErrRejectionReasonRequired
	}

	var out *Approval
	err := s.Store.WithTx(ctx, func(txs Store) error {
		a, err := txs.GetApproval(ctx, orgID, approvalID)
		if err != nil {
			return err
		}
		if a.Status != StatusPending {
			return &TransitionError{ApprovalID: a.ID, From: a.Status, To: StatusRejected}
		}

		now := time.Now().UTC()
		upd := ApprovalUpdate{
			Status:          StatusRejected,
			ApprovedBy:      &approverID,
			ApprovedAt:      &now,
			RejectionReason: reason,
			UpdatedAt:       now,
		}
		applied, err := txs.TransitionApproval(ctx, orgID, a.ID, StatusPending, upd)
		if err != nil {
			return err
		}
		if !applied {
			return &TransitionError{ApprovalID: a.ID, From: a.Status, To: StatusRejected}
		}

		r, err := txs.GetRequest(ctx, orgID, a.RequestID)
		if err != nil {
			return err
		}
		if err := setRequestStatus(ctx, txs, r, StatusRejected); err != nil {
			return err
		}

		a.Status = StatusRejected
		a.ApprovedBy = upd.ApprovedBy
		a.ApprovedAt = upd.ApprovedAt
		a.RejectionReason = reason
		a.UpdatedAt = now
		out = a
		return nil
	})
	return out, err
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel moves a pending or approved approval to Cancelled and clears
// the approver fields. Cancelling an approved request reverses its
// processor side effect, restoring any deducted vacation balance.
func (s *ApprovalService) Cancel(ctx context.Context, orgID, approvalID string) (*Approval, error) {
	var out *Approval
	err := s.Store.WithTx(ctx, func(txs Store) error {
		a, err := txs.GetApproval(ctx, orgID, approvalID)
		if err != nil {
			return err
		}
		prior := a.Status
		if prior != StatusPending && prior != StatusApproved {
			return &TransitionError{ApprovalID: a.ID, From: prior, To: StatusCancelled}
		}

		now := time.Now().UTC()
		upd := ApprovalUpdate{
			Status:    StatusCancelled,
			UpdatedAt: now,
			// ApprovedBy/ApprovedAt nil: cleared on cancellation
		}
		applied, err := txs.TransitionApproval(ctx, orgID, a.ID, prior, upd)
		if err != nil {
			return err
		}
		if !applied {
			return &TransitionError{ApprovalID: a.ID, From: prior, To: StatusCancelled}
		}

		r, err := txs.GetRequest(ctx, orgID, a.RequestID)
		if err != nil {
			return err
		}
		if prior == StatusApproved {
			if err := ProcessorFor(r.Type).Reverse(ctx, txs, r); err != nil {
				return err
			}
		} else {
			if err := setRequestStatus(ctx, txs, r, StatusCancelled); err != nil {
				return err
			}
		}

		a.Status = StatusCancelled
		a.ApprovedBy = nil
		a.ApprovedAt = nil
		a.UpdatedAt = now
		out = a
		return nil
	})
	return out, err
}
