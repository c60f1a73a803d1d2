/*
dto.go - Request/response types for the HTTP API

PURPOSE:
  JSON shapes exchanged with clients. Balance quantities cross the wire
  twice: the raw integer hundredths (the source of truth) and a decimal
  day string rendered from it, so clients never do the division
  themselves.
*/
package api

import (
	"time"

	"github.com/peoplekit/leave-engine/leave"
)

// =============================================================================
// REQUESTS IN
// =============================================================================

// SubmitRequestDTO is the body of POST /requests.
type SubmitRequestDTO struct {
	EmployeeID string  `json:"employee_id"`
	Type       string  `json:"type"`
	StartDate  string  `json:"start_date"` // YYYY-MM-DD
	EndDate    *string `json:"end_date,omitempty"`
	HalfDay    bool    `json:"half_day"`
	Note       string  `json:"note,omitempty"`
}

// DecisionDTO is the body of the approve/reject endpoints.
type DecisionDTO struct {
	ApproverID string `json:"approver_id"`
	Reason     string `json:"reason,omitempty"` // reject only
}

// SeedBalanceDTO is the body of PUT /admin/balances. Quantities are in
// integer hundredths-of-a-day (100 = one day).
type SeedBalanceDTO struct {
	EmployeeID   string `json:"employee_id"`
	Year         int    `json:"year"`
	FromLastYear int64  `json:"from_last_year"`
	Accrued      int64  `json:"accrued"`
	Taken        int64  `json:"taken"`
}

// RolloverDTO is the body of POST /admin/rollover.
type RolloverDTO struct {
	EmployeeID string `json:"employee_id"`
	FromYear   int    `json:"from_year"`
}

// =============================================================================
// RESPONSES OUT
// =============================================================================

// RequestDTO mirrors leave.TimeOffRequest.
type RequestDTO struct {
	ID         string    `json:"id"`
	OrgID      string    `json:"org_id"`
	EmployeeID string    `json:"employee_id"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	StartDate  string    `json:"start_date"`
	EndDate    *string   `json:"end_date,omitempty"`
	HalfDay    bool      `json:"half_day"`
	Note       string    `json:"note,omitempty"`
	SpanDays   string    `json:"span_days"` // decimal day string, e.g. "1.5"
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toRequestDTO(r *leave.TimeOffRequest) RequestDTO {
	dto := RequestDTO{
		ID:         r.ID,
		OrgID:      r.OrgID,
		EmployeeID: r.EmployeeID,
		Type:       string(r.Type),
		Status:     string(r.Status),
		StartDate:  r.StartDate.String(),
		HalfDay:    r.HalfDay,
		Note:       r.Note,
		SpanDays:   r.Span().String(),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.EndDate != nil {
		s := r.EndDate.String()
		dto.EndDate = &s
	}
	return dto
}

// ApprovalDTO mirrors leave.Approval.
type ApprovalDTO struct {
	ID              string     `json:"id"`
	OrgID           string     `json:"org_id"`
	RequestID       string     `json:"request_id"`
	Status          string     `json:"status"`
	ApprovedBy      *string    `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func toApprovalDTO(a *leave.Approval) ApprovalDTO {
	return ApprovalDTO{
		ID:              a.ID,
		OrgID:           a.OrgID,
		RequestID:       a.RequestID,
		Status:          string(a.Status),
		ApprovedBy:      a.ApprovedBy,
		ApprovedAt:      a.ApprovedAt,
		RejectionReason: a.RejectionReason,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

// SubmitResponseDTO pairs the created request with its pending approval.
type SubmitResponseDTO struct {
	Request  RequestDTO  `json:"request"`
	Approval ApprovalDTO `json:"approval"`
}

// BalanceDTO renders one employee-year ledger row. The *_days fields are
// decimal day strings derived from the hundredths values.
type BalanceDTO struct {
	OrgID        string `json:"org_id"`
	EmployeeID   string `json:"employee_id"`
	Year         int    `json:"year"`
	FromLastYear int64  `json:"from_last_year"`
	Accrued      int64  `json:"accrued"`
	Taken        int64  `json:"taken"`
	Remaining    int64  `json:"remaining"`

	AccruedDays   string `json:"accrued_days"`
	TakenDays     string `json:"taken_days"`
	RemainingDays string `json:"remaining_days"`
}

func toBalanceDTO(b leave.VacationBalance) BalanceDTO {
	return BalanceDTO{
		OrgID:         b.OrgID,
		EmployeeID:    b.EmployeeID,
		Year:          b.Year,
		FromLastYear:  int64(b.FromLastYear),
		Accrued:       int64(b.Accrued),
		Taken:         int64(b.Taken),
		Remaining:     int64(b.Remaining()),
		AccruedDays:   b.Accrued.String(),
		TakenDays:     b.Taken.String(),
		RemainingDays: b.Remaining().String(),
	}
}

// ErrorDTO is the uniform error body.
type ErrorDTO struct {
	Error string `json:"error"`
}

// ValidationErrorDTO carries field → message validation failures.
type ValidationErrorDTO struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}
