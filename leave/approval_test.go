package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peoplekit/leave-engine/leave"
	"github.com/peoplekit/leave-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*leave.ApprovalService, *memory.Store) {
	t.Helper()
	store := memory.New()
	return leave.NewApprovalService(store), store
}

func submitVacation(t *testing.T, svc *leave.ApprovalService, employeeID string, start leave.Date, end *leave.Date) (*leave.TimeOffRequest, *leave.Approval) {
	t.Helper()
	req, approval, fe, err := svc.Submit(context.Background(), leave.SubmitInput{
		OrgID:      "org-1",
		EmployeeID: employeeID,
		Type:       leave.TypeVacation,
		StartDate:  start,
		EndDate:    end,
	})
	require.NoError(t, err)
	require.True(t, fe.OK(), "unexpected field errors: %v", fe)
	return req, approval
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_CreatesPendingRequestAndApproval(t *testing.T) {
	// GIVEN: An employee with sufficient balance
	// WHEN: Submitting a 3-day vacation
	// THEN: A pending request and its pending approval are persisted
	//       together, and nothing is deducted yet

	svc, store := newTestService(t)
	ctx := context.Background()
	seedBalance(t, store, "emp-1", 2026, 1000)

	req, approval := submitVacation(t, svc, "emp-1", date(2026, time.July, 6), datePtr(2026, time.July, 8))

	assert.Equal(t, leave.StatusPending, req.Status)
	assert.Equal(t, leave.StatusPending, approval.Status)
	assert.Equal(t, req.ID, approval.RequestID)
	assert.Nil(t, approval.ApprovedBy)

	stored, err := store.GetRequest(ctx, "org-1", req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.Hundredths(300), stored.Span())

	b, err := leave.NewLedger(store).Balance(ctx, "org-1", "emp-1", 2026)
	require.NoError(t, err)
	assert.Equal(t, leave.Hundredths(0), b.Taken)
}

func TestSubmit_InsufficientBalance_NothingPersisted(t *testing.T) {
	// GIVEN: 1 day available
	// WHEN: Submitting a 6-day vacation
	// THEN: Field errors come back and no request or approval exists

	svc, store := newTestService(t)
	ctx := context.Background()
	seedBalance(t, store, "emp-1", 2026, 100)

	req, approval, fe, err := svc.Submit(ctx, leave.SubmitInput{
		OrgID:      "org-1",
		EmployeeID: "emp-1",
		Type:       leave.TypeVacation,
		StartDate:  date(2026, time.July, 6),
		EndDate:    datePtr(2026, time.July, 11),
	})
	require.NoError(t, err)
	assert.Nil(t, req)
	assert.Nil(t, approval)
	assert.Equal(t,
		"insufficient vacation balance: 1 day(s) available, 6 day(s) requested",
		fe["balance"])

	pending, err := store.ListPendingRequests(ctx, "org-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSubmit_SickLeaveInvalidDates_NothingPersisted(t *testing.T) {
	// GIVEN: A sick-leave request whose end precedes its start
	// WHEN: Submitting
	// THEN: An end_date field error and no persisted state

	svc, store := newTestService(t)
	ctx := context.Background()

	req, _, fe, err := svc.Submit(ctx, leave.SubmitInput{
		OrgID:      "org-1",
		EmployeeID: "emp-1",
		Type:       leave.TypeSickLeave,
		StartDate:  date(2026, time.March, 10),
		EndDate:    datePtr(2026, time.March, 8),
	})
	require.NoError(t, err)
	assert.Nil(t, req)
	assert.Equal(t, "end date must be on or after start date", fe["end_date"])

	pending, err := store.ListPendingRequests(ctx, "org-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSubmit_HalfDayDropsEndDate(t *testing.T) {
	// GIVEN: A half-day request that also carries an end date
	// WHEN: Submitting
	// THEN: The stored request has no end date and spans half a day

	svc, store := newTestService(t)
	seedBalance(t, store, "emp-1", 2026, 1000)

	req, _, fe, err := svc.Submit(context.Background(), leave.SubmitInput{
		OrgID:      "org-1",
		EmployeeID: "emp-1",
		Type:       leave.TypeVacation,
		StartDate:  date(2026, time.July, 6),
		EndDate:    datePtr(2026, time.July, 10),
		HalfDay:    true,
	})
	require.NoError(t, err)
	require.True(t, fe.OK())
	assert.Nil(t, req.EndDate)
	assert.Equal(t, leave.HalfDay, req.Span())
}

func TestSubmit_MissingFields(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, fe, err := svc.Submit(context.Background(), leave.SubmitInput{
		OrgID: "org-1",
		Type:  leave.Type("sabbatical"),
	})
	require.NoError(t, err)
	assert.Contains(t, fe, "employee_id")
	assert.Contains(t, fe, "start_date")
	assert.Contains(t, fe, "type")
}

// =============================================================================
// APPROVE
// =============================================================================

func TestApprove_VacationDeductsBalance(t *testing.T) {
	// GIVEN: A pending 3-day vacation and 10 days accrued
	// WHEN: Approving
	// THEN: The approval and request turn approved, approver and time are
	//       recorded, and taken rises by 300

	svc, store := newTestService(t)
	ctx := context.Background()
	seedBalance(t, store, "emp-1", 2026, 1000)

	req, approval := submitVacation(t, svc, "emp-1", date(2026, time.July, 6), datePtr(2026, time.July, 8))

	got, err := svc.Approve(ctx, "org-1", approval.ID, "mgr-1")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, got.Status)
	require.NotNil(t, got.ApprovedBy)
	assert.Equal(t, "mgr-1", *got.ApprovedBy)
	assert.NotNil(t, got.ApprovedAt)

	stored, err := store.GetRequest(ctx, "org-1", req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, stored.Status)

	remaining, err := leave.NewLedger(store).Remaining(ctx, "org-1", "emp-1", 2026)
	require.NoError(t, err)
	assert.Equal(t, leave.Hundredths(700), remaining)
}

func TestApprove_Twice_SecondFailsWithoutDoubleDeduct(t *testing.T) {
	// GIVEN: An already-approved vacation
	// WHEN: Approving again
	// THEN: ErrInvalidTransition, and taken is unchanged

	svc, store := newTestService(t)
	ctx := context.Background()
	seedBalance(t, store, "emp-1", 2026, 1000)

	_, approval := submitVacation(t, svc, "emp-1", date(2026, time.July, 6), datePtr(2026, time.July, 8))

	_, err := svc.Approve(ctx, "org-1", approval.ID, "mgr-1")
	require.NoError(t, err)

	_, err = svc.Approve(ctx, "org-1", approval.ID, "mgr-2")
	assert.ErrorIs(t, err, leave.ErrInvalidTransition)

	b, err := leave.NewLedger(store).Balance(ctx, "org-1", "emp-1", 2026)
	require.NoError(t, err)
	assert.Equal(t, leave.Hundredths(300), b.Taken)
}

func TestApprove_Bereavement_NeverTouchesLedger(t *testing.T) {
	// GIVEN: A bereavement request, no balance rows at all
	// WHEN: Submitting and approving
	// THEN: The request turns approved and the ledger is never read or
	//       written

	svc, store := newTestService(t)
	ctx := context.Background()

	req, approval, fe, err := svc.Submit(ctx, leave.SubmitInput{
		OrgID:      "org-1",
		EmployeeID: "emp-1",
		Type:       leave.TypeBereavement,
		StartDate:  date(2026, time.April, 1),
		EndDate:    datePtr(2026, time.April, 3),
	})
	require.NoError(t, err)
	require.True(t, fe.OK())

	_, err = svc.Approve(ctx, "org-1", approval.ID, "mgr-1")
	require.NoError(t, err)

	stored, err := store.GetRequest(ctx, "org-1", req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, stored.Status)

	assert.Equal(t, 0, store.BalanceReads())
	assert.Equal(t, 0, store.BalanceWrites())
}

func TestApprove_UnknownApproval(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Approve(context.Background(), "org-1", "nope", "mgr-1")
	assert.ErrorIs(t, err, leave.ErrApprovalNotFound)
}

// =============================================================================
// REJECT
// =============================================================================

func TestReject_RequiresReason(t *testing.T) {
	svc, store := newTestService(t)
	seedBalance(t, store, "emp-1", 2026, 1000)
	_, approval := submitVacation(t, svc, "emp-1", date(2026, time.July, 6), nil)

	_, err := svc.Reject(context.Background(), "org-1", approval.ID, "mgr-1", "")
	assert.ErrorIs(t, err, leave.ErrRejectionReasonRequired)
}

func TestReject_SetsReasonAndStatus(t *testing.T) {
	// GIVEN: A pending vacation
	// WHEN: Rejecting with a reason
	// THEN: Approval and request are rejected, the reason is recorded,
	//       and the ledger stays untouched

	svc, store := newTestService(t)
	ctx := context.Background()
	seedBalance(t, store, "emp-1", 2026, 1000)
	req, approval := submitVacation(t, svc, "emp-1", date(2026, time.July, 6), datePtr(2026, time.July, 8))

	got, err := svc.Reject(ctx, "org-1", approval.ID, "mgr-1", "blackout week")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusRejected, got.Status)
	assert.Equal(t, "blackout week", got.RejectionReason)

	stored, err := store.GetRequest(ctx, "org-1", req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusRejected, stored.Status)

	b, err := leave.NewLedger(store).Balance(ctx, "org-1", "emp-1", 2026)
	require.NoError(t, err)
	assert.Equal(t, leave.Hundredths(0), b.Taken)
}

func TestReject_AfterApprove_Fails(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedBalance(t, store, "emp-1", 2026, 1000)
	_, approval := submitVacation(t, svc, "emp-1", date(2026, time.July, 6), nil)

	_, err := svc.Approve(ctx, "org-1", approval.ID, "mgr-1")
	require.NoError(t, err)

	_, err = svc.Reject(ctx, "org-1", approval.ID, "mgr-1", "changed my mind")
	assert.ErrorIs(t, err, leave.ErrInvalidTransition)
}

// =============================================================================
// CANCEL
// =============================================================================

func TestCancel_PendingRequest(t *testing.T) {
	// GIVEN: A pending vacation
	// WHEN: Cancelling
	// THEN: Both records turn cancelled and the ledger stays untouched

	svc, store := newTestService(t)
	ctx := context.Background()
	seedBalance(t, store, "emp-1", 2026, 1000)
	req, approval := submitVacation(t, svc, "emp-1", date(2026, time.July, 6), datePtr(2026, time.July, 8))

	got, err := svc.Cancel(ctx, "org-1", approval.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusCancelled, got.Status)
	assert.Nil(t, got.ApprovedBy)
	assert.Nil(t, got.ApprovedAt)

	stored, err := store.GetRequest(ctx, "org-1", req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusCancelled, stored.Status)

	b, err := leave.NewLedger(store).Balance(ctx, "org-1", "emp-1", 2026)
	require.NoError(t, err)
	assert.Equal(t, leave.Hundredths(0), b.Taken)
}

func TestCancel_ApprovedVacation_RestoresBalance(t *testing.T) {
	// GIVEN: An approved 3-day vacation (taken = 300)
	// WHEN: Cancelling
	// THEN: Taken returns to zero and the approver fields are cleared

	svc, store := newTestService(t)
	ctx := context.Background()
	seedBalance(t, store, "emp-1", 2026, 1000)
	req, approval := submitVacation(t, svc, "emp-1", date(2026, time.July, 6), datePtr(2026, time.July, 8))

	_, err := svc.Approve(ctx, "org-1", approval.ID, "mgr-1")
	require.NoError(t, err)

	got, err := svc.Cancel(ctx, "org-1", approval.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusCancelled, got.Status)
	assert.Nil(t, got.ApprovedBy)

	stored, err := store.GetRequest(ctx, "org-1", req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusCancelled, stored.Status)

	b, err := leave.NewLedger(store).Balance(ctx, "org-1", "emp-1", 2026)
	require.NoError(t, err)
	assert.Equal(t, leave.Hundredths(0), b.Taken)
	assert.Equal(t, leave.Hundredths(1000), b.Remaining())
}

func TestCancel_RejectedRequest_Fails(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedBalance(t, store, "emp-1", 2026, 1000)
	_, approval := submitVacation(t, svc, "emp-1", date(2026, time.July, 6), nil)

	_, err := svc.Reject(ctx, "org-1", approval.ID, "mgr-1", "no coverage")
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, "org-1", approval.ID)
	assert.ErrorIs(t, err, leave.ErrInvalidTransition)
}

func TestCancel_Twice_SecondFails(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedBalance(t, store, "emp-1", 2026, 1000)
	_, approval := submitVacation(t, svc, "emp-1", date(2026, time.July, 6), nil)

	_, err := svc.Cancel(ctx, "org-1", approval.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, "org-1", approval.ID)
	assert.ErrorIs(t, err, leave.ErrInvalidTransition)
}

// =============================================================================
// TENANCY
// =============================================================================

func TestApprove_WrongOrganization_NotFound(t *testing.T) {
	// GIVEN: An approval in org-1
	// WHEN: Approving it through org-2
	// THEN: Not found; entities never leak across organizations

	svc, store := newTestService(t)
	seedBalance(t, store, "emp-1", 2026, 1000)
	_, approval := submitVacation(t, svc, "emp-1", date(2026, time.July, 6), nil)

	_, err := svc.Approve(context.Background(), "org-2", approval.ID, "mgr-1")
	assert.ErrorIs(t, err, leave.ErrApprovalNotFound)
}

// =============================================================================
// PROCESSOR IDEMPOTENCE
// =============================================================================

func TestStatusOnlyProcessor_RepeatedProcessIsHarmless(t *testing.T) {
	// GIVEN: An approved sick-leave request
	// WHEN: Running its processor again
	// THEN: No error, still approved, no ledger activity

	store := memory.New()
	ctx := context.Background()
	r := &leave.TimeOffRequest{
		ID: "req-1", OrgID: "org-1", EmployeeID: "emp-1",
		Type: leave.TypeSickLeave, Status: leave.StatusPending,
		StartDate: date(2026, time.March, 10),
	}
	require.NoError(t, store.CreateRequest(ctx, r))

	p := leave.ProcessorFor(leave.TypeSickLeave)
	require.NoError(t, p.Process(ctx, store, r))
	require.NoError(t, p.Process(ctx, store, r))

	assert.Equal(t, leave.StatusApproved, r.Status)
	assert.Equal(t, 0, store.BalanceWrites())
}

func TestVacationProcessor_RepeatedProcessDeductsAgain(t *testing.T) {
	// The vacation processor is deliberately not idempotent; the state
	// machine's compare-and-set is what prevents double invocation.

	store := memory.New()
	ctx := context.Background()
	r := vacationRequest("emp-1", date(2026, time.July, 6), nil, false)
	require.NoError(t, store.CreateRequest(ctx, r))

	p := leave.ProcessorFor(leave.TypeVacation)
	require.NoError(t, p.Process(ctx, store, r))
	require.NoError(t, p.Process(ctx, store, r))

	b, err := leave.NewLedger(store).Balance(ctx, "org-1", "emp-1", 2026)
	require.NoError(t, err)
	assert.Equal(t, leave.Hundredths(200), b.Taken)
}
