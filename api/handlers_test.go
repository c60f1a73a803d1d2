package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peoplekit/leave-engine/api"
	"github.com/peoplekit/leave-engine/leave"
	"github.com/peoplekit/leave-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := api.NewHandler(leave.NewApprovalService(store), store, logger)
	srv := httptest.NewServer(api.NewRouter(h, logger, []string{"*"}))
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func seedBalance(t *testing.T, store *memory.Store, employeeID string, year int, accrued int64) {
	t.Helper()
	require.NoError(t, store.PutBalance(context.Background(), &leave.VacationBalance{
		OrgID:      "org-1",
		EmployeeID: employeeID,
		Year:       year,
		Accrued:    leave.Hundredths(accrued),
	}))
}

func submitVacation(t *testing.T, srv *httptest.Server) api.SubmitResponseDTO {
	t.Helper()
	end := "2026-07-08"
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/orgs/org-1/requests", api.SubmitRequestDTO{
		EmployeeID: "emp-1",
		Type:       "vacation",
		StartDate:  "2026-07-06",
		EndDate:    &end,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[api.SubmitResponseDTO](t, resp)
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmitRequest_Created(t *testing.T) {
	srv, store := newTestServer(t)
	seedBalance(t, store, "emp-1", 2026, 1000)

	out := submitVacation(t, srv)
	assert.Equal(t, "pending", out.Request.Status)
	assert.Equal(t, "pending", out.Approval.Status)
	assert.Equal(t, out.Request.ID, out.Approval.RequestID)
	assert.Equal(t, "3", out.Request.SpanDays)
	assert.Equal(t, "org-1", out.Request.OrgID)
}

func TestSubmitRequest_ValidationFailure(t *testing.T) {
	// GIVEN: 1 day available
	// WHEN: Submitting a 6-day vacation
	// THEN: 422 with the balance field error

	srv, store := newTestServer(t)
	seedBalance(t, store, "emp-1", 2026, 100)

	end := "2026-07-11"
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/orgs/org-1/requests", api.SubmitRequestDTO{
		EmployeeID: "emp-1",
		Type:       "vacation",
		StartDate:  "2026-07-06",
		EndDate:    &end,
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	out := decode[api.ValidationErrorDTO](t, resp)
	assert.Equal(t,
		"insufficient vacation balance: 1 day(s) available, 6 day(s) requested",
		out.Fields["balance"])
}

func TestSubmitRequest_BadDate(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/orgs/org-1/requests", api.SubmitRequestDTO{
		EmployeeID: "emp-1",
		Type:       "vacation",
		StartDate:  "06/07/2026",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// READS
// =============================================================================

func TestGetRequest(t *testing.T) {
	srv, store := newTestServer(t)
	seedBalance(t, store, "emp-1", 2026, 1000)
	created := submitVacation(t, srv)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/orgs/org-1/requests/"+created.Request.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[api.RequestDTO](t, resp)
	assert.Equal(t, created.Request.ID, out.ID)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/orgs/org-1/requests/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetRequest_WrongOrg(t *testing.T) {
	srv, store := newTestServer(t)
	seedBalance(t, store, "emp-1", 2026, 1000)
	created := submitVacation(t, srv)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/orgs/org-2/requests/"+created.Request.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListPendingRequests(t *testing.T) {
	srv, store := newTestServer(t)
	seedBalance(t, store, "emp-1", 2026, 1000)
	submitVacation(t, srv)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/orgs/org-1/requests/pending", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[[]api.RequestDTO](t, resp)
	assert.Len(t, out, 1)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/orgs/org-2/requests/pending", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]api.RequestDTO](t, resp))
}

func TestGetRequestApproval(t *testing.T) {
	srv, store := newTestServer(t)
	seedBalance(t, store, "emp-1", 2026, 1000)
	created := submitVacation(t, srv)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/orgs/org-1/requests/"+created.Request.ID+"/approval", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[api.ApprovalDTO](t, resp)
	assert.Equal(t, created.Approval.ID, out.ID)
}

// =============================================================================
// DECISIONS
// =============================================================================

func TestApprove_ThenDoubleApproveConflicts(t *testing.T) {
	srv, store := newTestServer(t)
	seedBalance(t, store, "emp-1", 2026, 1000)
	created := submitVacation(t, srv)

	url := srv.URL + "/api/orgs/org-1/approvals/" + created.Approval.ID + "/approve"
	resp := doJSON(t, http.MethodPost, url, api.DecisionDTO{ApproverID: "mgr-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[api.ApprovalDTO](t, resp)
	assert.Equal(t, "approved", out.Status)
	require.NotNil(t, out.ApprovedBy)
	assert.Equal(t, "mgr-1", *out.ApprovedBy)

	resp = doJSON(t, http.MethodPost, url, api.DecisionDTO{ApproverID: "mgr-2"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestApprove_MissingApprover(t *testing.T) {
	srv, store := newTestServer(t)
	seedBalance(t, store, "emp-1", 2026, 1000)
	created := submitVacation(t, srv)

	resp := doJSON(t, http.MethodPost,
		srv.URL+"/api/orgs/org-1/approvals/"+created.Approval.ID+"/approve", api.DecisionDTO{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReject_RequiresReason(t *testing.T) {
	srv, store := newTestServer(t)
	seedBalance(t, store, "emp-1", 2026, 1000)
	created := submitVacation(t, srv)

	url := srv.URL + "/api/orgs/org-1/approvals/" + created.Approval.ID + "/reject"
	resp := doJSON(t, http.MethodPost, url, api.DecisionDTO{ApproverID: "mgr-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, url, api.DecisionDTO{ApproverID: "mgr-1", Reason: "blackout week"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[api.ApprovalDTO](t, resp)
	assert.Equal(t, "rejected", out.Status)
	assert.Equal(t, "blackout week", out.RejectionReason)
}

func TestCancel_ApprovedRestoresBalance(t *testing.T) {
	srv, store := newTestServer(t)
	seedBalance(t, store, "emp-1", 2026, 1000)
	created := submitVacation(t, srv)

	resp := doJSON(t, http.MethodPost,
		srv.URL+"/api/orgs/org-1/approvals/"+created.Approval.ID+"/approve",
		api.DecisionDTO{ApproverID: "mgr-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost,
		srv.URL+"/api/orgs/org-1/approvals/"+created.Approval.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[api.ApprovalDTO](t, resp)
	assert.Equal(t, "cancelled", out.Status)
	assert.Nil(t, out.ApprovedBy)

	resp = doJSON(t, http.MethodGet,
		srv.URL+"/api/orgs/org-1/employees/emp-1/balance?year=2026", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b := decode[api.BalanceDTO](t, resp)
	assert.Equal(t, int64(0), b.Taken)
	assert.Equal(t, int64(1000), b.Remaining)
}

// =============================================================================
// BALANCES
// =============================================================================

func TestGetBalance_RendersDayStrings(t *testing.T) {
	srv, store := newTestServer(t)
	require.NoError(t, store.PutBalance(context.Background(), &leave.VacationBalance{
		OrgID: "org-1", EmployeeID: "emp-1", Year: 2026,
		Accrued: 1000, FromLastYear: 50, Taken: 300,
	}))

	resp := doJSON(t, http.MethodGet,
		srv.URL+"/api/orgs/org-1/employees/emp-1/balance?year=2026", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[api.BalanceDTO](t, resp)
	assert.Equal(t, int64(750), out.Remaining)
	assert.Equal(t, "7.5", out.RemainingDays)
	assert.Equal(t, "3", out.TakenDays)
	assert.Equal(t, "10", out.AccruedDays)
}

func TestGetBalance_UnseededIsZero(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doJSON(t, http.MethodGet,
		srv.URL+"/api/orgs/org-1/employees/emp-nobody/balance?year=2026", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[api.BalanceDTO](t, resp)
	assert.Equal(t, int64(0), out.Remaining)
	assert.Equal(t, "0", out.RemainingDays)
}

func TestSeedBalance(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/orgs/org-1/admin/balances", api.SeedBalanceDTO{
		EmployeeID: "emp-1",
		Year:       2026,
		Accrued:    1500,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[api.BalanceDTO](t, resp)
	assert.Equal(t, int64(1500), out.Remaining)
	assert.Equal(t, "15", out.RemainingDays)
}

func TestRollover(t *testing.T) {
	srv, store := newTestServer(t)
	require.NoError(t, store.PutBalance(context.Background(), &leave.VacationBalance{
		OrgID: "org-1", EmployeeID: "emp-1", Year: 2026, Accrued: 1000, Taken: 600,
	}))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/orgs/org-1/admin/rollover", api.RolloverDTO{
		EmployeeID: "emp-1",
		FromYear:   2026,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[api.BalanceDTO](t, resp)
	assert.Equal(t, 2027, out.Year)
	assert.Equal(t, int64(400), out.FromLastYear)
}
