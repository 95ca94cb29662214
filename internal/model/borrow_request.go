package model

import "time"

// RequestStatus enumerates the lifecycle states of a borrow request.
// PENDING is the only non-terminal entry state; APPROVED may still
// move to RETURNED; REJECTED and RETURNED are terminal.
type RequestStatus string

const (
    RequestPending  RequestStatus = "PENDING"
    RequestApproved RequestStatus = "APPROVED"
    RequestRejected RequestStatus = "REJECTED"
    RequestReturned RequestStatus = "RETURNED"
)

// Action names the owner/borrower operations that drive a request
// through its lifecycle.  Values match the PATCH /v1/requests/:id
// request body.
type Action string

const (
    ActionApprove Action = "approve"
    ActionReject  Action = "reject"
    ActionReturn  Action = "return"
)

// BorrowRequest is one user's ask to hold a book for a bounded number
// of days.  Many requests may reference the same book over time, but
// at most one may be APPROVED at any instant.
type BorrowRequest struct {
    ID           uint64        `json:"id"`            // borrow_requests.id
    BookID       uint64        `json:"book_id"`       // borrow_requests.book_id
    RequesterID  uint64        `json:"requester_id"`  // borrow_requests.requester_id
    Status       RequestStatus `json:"status"`        // borrow_requests.status
    DurationDays uint32        `json:"duration_days"` // borrow_requests.duration_days
    CreatedAt    time.Time     `json:"created_at"`    // borrow_requests.created_at
}

// Terminal reports whether no further transition is permitted from s.
func (s RequestStatus) Terminal() bool {
    return s == RequestRejected || s == RequestReturned
}

// CanTransition reports whether the request state machine allows
// moving from s to target.  The table is intentionally closed; any
// pair not listed here is forbidden.
func (s RequestStatus) CanTransition(target RequestStatus) bool {
    switch s {
    case RequestPending:
        return target == RequestApproved || target == RequestRejected
    case RequestApproved:
        return target == RequestReturned
    }
    return false
}

// TargetStatus maps an action to the request status it produces.  The
// boolean is false for unknown actions.
func (a Action) TargetStatus() (RequestStatus, bool) {
    switch a {
    case ActionApprove:
        return RequestApproved, true
    case ActionReject:
        return RequestRejected, true
    case ActionReturn:
        return RequestReturned, true
    }
    return "", false
}
