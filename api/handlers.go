/*
handlers.go - HTTP handlers for the leave engine

PURPOSE:
  Translates HTTP requests into engine calls and engine outcomes into
  status codes. No business rules live here.

STATUS CODE MAPPING:
  201  request submitted
  422  validation failed (field errors in the body)
  409  invalid state transition (already decided, lost race)
  404  unknown request/approval
  400  malformed body, bad date, missing approver/reason
  500  storage failure

TENANCY:
  Every route carries an explicit {orgID} segment; the handlers pass it
  through to the engine untouched.
*/
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/peoplekit/leave-engine/leave"
)

// Handler holds the dependencies shared by all HTTP handlers.
type Handler struct {
	Service *leave.ApprovalService
	Store   leave.TxStore
	Logger  *slog.Logger
}

func NewHandler(service *leave.ApprovalService, store leave.TxStore, logger *slog.Logger) *Handler {
	return &Handler{Service: service, Store: store, Logger: logger}
}

// =============================================================================
// REQUESTS
// =============================================================================

// SubmitRequest handles POST /api/orgs/{orgID}/requests.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")

	var dto SubmitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	start, err := leave.ParseDate(dto.StartDate)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}
	var end *leave.Date
	if dto.EndDate != nil {
		d, err := leave.ParseDate(*dto.EndDate)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
			return
		}
		end = &d
	}

	req, approval, fieldErrs, err := h.Service.Submit(r.Context(), leave.SubmitInput{
		OrgID:      orgID,
		EmployeeID: dto.EmployeeID,
		Type:       leave.Type(dto.Type),
		StartDate:  start,
		EndDate:    end,
		HalfDay:    dto.HalfDay,
		Note:       dto.Note,
	})
	if err != nil {
		h.respondInternal(w, r, "submit request", err)
		return
	}
	if !fieldErrs.OK() {
		h.respondJSON(w, http.StatusUnprocessableEntity, ValidationErrorDTO{
			Error:  "validation failed",
			Fields: fieldErrs,
		})
		return
	}

	h.respondJSON(w, http.StatusCreated, SubmitResponseDTO{
		Request:  toRequestDTO(req),
		Approval: toApprovalDTO(approval),
	})
}

// GetRequest handles GET /api/orgs/{orgID}/requests/{id}.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	id := chi.URLParam(r, "id")

	req, err := h.Store.GetRequest(r.Context(), orgID, id)
	if err != nil {
		h.respondDomainError(w, r, "get request", err)
		return
	}
	h.respondJSON(w, http.StatusOK, toRequestDTO(req))
}

// ListPendingRequests handles GET /api/orgs/{orgID}/requests/pending.
func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")

	reqs, err := h.Store.ListPendingRequests(r.Context(), orgID)
	if err != nil {
		h.respondInternal(w, r, "list pending requests", err)
		return
	}
	out := make([]RequestDTO, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, toRequestDTO(req))
	}
	h.respondJSON(w, http.StatusOK, out)
}

// GetRequestApproval handles GET /api/orgs/{orgID}/requests/{id}/approval.
func (h *Handler) GetRequestApproval(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	id := chi.URLParam(r, "id")

	a, err := h.Store.GetApprovalForRequest(r.Context(), orgID, id)
	if err != nil {
		h.respondDomainError(w, r, "get approval for request", err)
		return
	}
	h.respondJSON(w, http.StatusOK, toApprovalDTO(a))
}

// =============================================================================
// APPROVAL DECISIONS
// =============================================================================

// ApproveRequest handles POST /api/orgs/{orgID}/approvals/{id}/approve.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	id := chi.URLParam(r, "id")

	var dto DecisionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if dto.ApproverID == "" {
		h.respondError(w, http.StatusBadRequest, "approver_id is required")
		return
	}

	a, err := h.Service.Approve(r.Context(), orgID, id, dto.ApproverID)
	if err != nil {
		h.respondDomainError(w, r, "approve", err)
		return
	}
	h.respondJSON(w, http.StatusOK, toApprovalDTO(a))
}

// RejectRequest handles POST /api/orgs/{orgID}/approvals/{id}/reject.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	id := chi.URLParam(r, "id")

	var dto DecisionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if dto.ApproverID == "" {
		h.respondError(w, http.StatusBadRequest, "approver_id is required")
		return
	}

	a, err := h.Service.Reject(r.Context(), orgID, id, dto.ApproverID, dto.Reason)
	if err != nil {
		h.respondDomainError(w, r, "reject", err)
		return
	}
	h.respondJSON(w, http.StatusOK, toApprovalDTO(a))
}

// CancelRequest handles POST /api/orgs/{orgID}/approvals/{id}/cancel.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	id := chi.URLParam(r, "id")

	a, err := h.Service.Cancel(r.Context(), orgID, id)
	if err != nil {
		h.respondDomainError(w, r, "cancel", err)
		return
	}
	h.respondJSON(w, http.StatusOK, toApprovalDTO(a))
}

// =============================================================================
// BALANCES
// =============================================================================

// GetBalance handles GET /api/orgs/{orgID}/employees/{employeeID}/balance.
// The year defaults to the current UTC year; override with ?year=2026.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	employeeID := chi.URLParam(r, "employeeID")

	year := time.Now().UTC().Year()
	if q := r.URL.Query().Get("year"); q != "" {
		y, err := strconv.Atoi(q)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "year must be an integer")
			return
		}
		year = y
	}

	b, err := leave.NewLedger(h.Store).Balance(r.Context(), orgID, employeeID, year)
	if err != nil {
		h.respondInternal(w, r, "get balance", err)
		return
	}
	h.respondJSON(w, http.StatusOK, toBalanceDTO(b))
}

// SeedBalance handles PUT /api/orgs/{orgID}/admin/balances. It upserts
// the full ledger row; quantities are integer hundredths.
func (h *Handler) SeedBalance(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")

	var dto SeedBalanceDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if dto.EmployeeID == "" || dto.Year == 0 {
		h.respondError(w, http.StatusBadRequest, "employee_id and year are required")
		return
	}

	b := leave.VacationBalance{
		OrgID:        orgID,
		EmployeeID:   dto.EmployeeID,
		Year:         dto.Year,
		FromLastYear: leave.Hundredths(dto.FromLastYear),
		Accrued:      leave.Hundredths(dto.Accrued),
		Taken:        leave.Hundredths(dto.Taken),
	}
	if err := h.Store.PutBalance(r.Context(), &b); err != nil {
		h.respondInternal(w, r, "seed balance", err)
		return
	}
	h.respondJSON(w, http.StatusOK, toBalanceDTO(b))
}

// Rollover handles POST /api/orgs/{orgID}/admin/rollover. It carries the
// employee's remaining balance for from_year into the next year.
func (h *Handler) Rollover(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")

	var dto RolloverDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if dto.EmployeeID == "" || dto.FromYear == 0 {
		h.respondError(w, http.StatusBadRequest, "employee_id and from_year are required")
		return
	}

	var next leave.VacationBalance
	err := h.Store.WithTx(r.Context(), func(txs leave.Store) error {
		var err error
		next, err = leave.NewLedger(txs).Rollover(r.Context(), orgID, dto.EmployeeID, dto.FromYear)
		return err
	})
	if err != nil {
		h.respondInternal(w, r, "rollover", err)
		return
	}
	h.respondJSON(w, http.StatusOK, toBalanceDTO(next))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func (h *Handler) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Logger.Error("encode response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, msg string) {
	h.respondJSON(w, status, ErrorDTO{Error: msg})
}

// respondDomainError maps engine errors onto status codes.
func (h *Handler) respondDomainError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, leave.ErrInvalidTransition):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, leave.ErrRequestNotFound),
		errors.Is(err, leave.ErrApprovalNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, leave.ErrRejectionReasonRequired):
		h.respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.respondInternal(w, r, op, err)
	}
}

func (h *Handler) respondInternal(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.Logger.ErrorContext(r.Context(), op, "error", err)
	h.respondError(w, http.StatusInternalServerError, "internal error")
}
