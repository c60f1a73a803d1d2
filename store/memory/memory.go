// Package memory provides an in-memory leave.TxStore for tests and
// development. WithTx is simulated with a snapshot that is restored on
// error.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/peoplekit/leave-engine/leave"
)

type Store struct {
	mu        sync.RWMutex
	snapMu    sync.Mutex // serializes WithTx blocks
	requests  map[reqKey]*leave.TimeOffRequest
	approvals map[reqKey]*leave.Approval
	byRequest map[reqKey]string // request key → approval id
	balances  map[balKey]*leave.VacationBalance

	// Balance access counters, used by tests asserting that non-balance
	// types never touch the ledger.
	balanceReads  int
	balanceWrites int
}

type reqKey struct {
	OrgID string
	ID    string
}

type balKey struct {
	OrgID      string
	EmployeeID string
	Year       int
}

func New() *Store {
	return &Store{
		requests:  make(map[reqKey]*leave.TimeOffRequest),
		approvals: make(map[reqKey]*leave.Approval),
		byRequest: make(map[reqKey]string),
		balances:  make(map[balKey]*leave.VacationBalance),
	}
}

var _ leave.TxStore = (*Store)(nil)

// =============================================================================
// REQUESTS
// =============================================================================

func (m *Store) CreateRequest(_ context.Context, r *leave.TimeOffRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.requests[reqKey{r.OrgID, r.ID}] = &cp
	return nil
}

func (m *Store) GetRequest(_ context.Context, orgID, id string) (*leave.TimeOffRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[reqKey{orgID, id}]
	if !ok {
		return nil, leave.ErrRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *Store) UpdateRequestStatus(_ context.Context, orgID, id string, status leave.Status, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[reqKey{orgID, id}]
	if !ok {
		return leave.ErrRequestNotFound
	}
	r.Status = status
	r.UpdatedAt = at
	return nil
}

func (m *Store) ListPendingRequests(_ context.Context, orgID string) ([]*leave.TimeOffRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*leave.TimeOffRequest
	for k, r := range m.requests {
		if k.OrgID == orgID && r.Status == leave.StatusPending {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// =============================================================================
// APPROVALS
// =============================================================================

func (m *Store) CreateApproval(_ context.Context, a *leave.Approval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.approvals[reqKey{a.OrgID, a.ID}] = &cp
	m.byRequest[reqKey{a.OrgID, a.RequestID}] = a.ID
	return nil
}

func (m *Store) GetApproval(_ context.Context, orgID, id string) (*leave.Approval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.approvals[reqKey{orgID, id}]
	if !ok {
		return nil, leave.ErrApprovalNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Store) GetApprovalForRequest(_ context.Context, orgID, requestID string) (*leave.Approval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byRequest[reqKey{orgID, requestID}]
	if !ok {
		return nil, leave.ErrApprovalNotFound
	}
	a := m.approvals[reqKey{orgID, id}]
	cp := *a
	return &cp, nil
}

func (m *Store) TransitionApproval(_ context.Context, orgID, id string, from leave.Status, upd leave.ApprovalUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.approvals[reqKey{orgID, id}]
	if !ok {
		return false, leave.ErrApprovalNotFound
	}
	if a.Status != from {
		return false, nil
	}
	a.Status = upd.Status
	a.ApprovedBy = upd.ApprovedBy
	a.ApprovedAt = upd.ApprovedAt
	a.RejectionReason = upd.RejectionReason
	a.UpdatedAt = upd.UpdatedAt
	return true, nil
}

// =============================================================================
// BALANCES
// =============================================================================

func (m *Store) GetBalance(_ context.Context, orgID, employeeID string, year int) (*leave.VacationBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balanceReads++
	b, ok := m.balances[balKey{orgID, employeeID, year}]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *Store) PutBalance(_ context.Context, b *leave.VacationBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balanceWrites++
	cp := *b
	m.balances[balKey{b.OrgID, b.EmployeeID, b.Year}] = &cp
	return nil
}

func (m *Store) AddTaken(_ context.Context, orgID, employeeID string, year int, delta leave.Hundredths) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balanceWrites++
	k := balKey{orgID, employeeID, year}
	b, ok := m.balances[k]
	if !ok {
		b = &leave.VacationBalance{OrgID: orgID, EmployeeID: employeeID, Year: year}
		m.balances[k] = b
	}
	b.Taken += delta
	return nil
}

// BalanceReads returns how many balance lookups have been performed.
func (m *Store) BalanceReads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balanceReads
}

// BalanceWrites returns how many balance mutations have been performed.
func (m *Store) BalanceWrites() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balanceWrites
}

// =============================================================================
// TRANSACTIONS - snapshot + rollback on error
// =============================================================================

func (m *Store) WithTx(_ context.Context, fn func(leave.Store) error) error {
	m.snapMu.Lock()
	defer m.snapMu.Unlock()

	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	requests  map[reqKey]*leave.TimeOffRequest
	approvals map[reqKey]*leave.Approval
	byRequest map[reqKey]string
	balances  map[balKey]*leave.VacationBalance
}

func (m *Store) snapshot() snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := snapshot{
		requests:  make(map[reqKey]*leave.TimeOffRequest, len(m.requests)),
		approvals: make(map[reqKey]*leave.Approval, len(m.approvals)),
		byRequest: make(map[reqKey]string, len(m.byRequest)),
		balances:  make(map[balKey]*leave.VacationBalance, len(m.balances)),
	}
	for k, v := range m.requests {
		cp := *v
		s.requests[k] = &cp
	}
	for k, v := range m.approvals {
		cp := *v
		s.approvals[k] = &cp
	}
	for k, v := range m.byRequest {
		s.byRequest[k] = v
	}
	for k, v := range m.balances {
		cp := *v
		s.balances[k] = &cp
	}
	return s
}

func (m *Store) restore(s snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = s.requests
	m.approvals = s.approvals
	m.byRequest = s.byRequest
	m.balances = s.balances
}
