// Package queue defines message payloads exchanged over the message
// broker along with the publisher and background consumer for the
// lending.events queue.
package queue

import "github.com/iliyamo/book-exchange/internal/model"

// Event type identifiers carried in LendingEvent.Type.
const (
    EventRequestApproved = "request.approved"
    EventRequestReturned = "request.returned"
)

// LendingEvent is published when a borrow request is approved or a
// book is returned.  It carries enough information for downstream
// consumers to log or notify without querying the primary database.
// Rejections are deliberately not published: the application treats
// sibling rejection as implicit supersession and never notifies the
// losing requesters.
type LendingEvent struct {
    Type         string `json:"type"`
    RequestID    uint64 `json:"request_id"`
    BookID       uint64 `json:"book_id"`
    BookTitle    string `json:"book_title"`
    OwnerID      uint64 `json:"owner_id"`
    RequesterID  uint64 `json:"requester_id"`
    DurationDays uint32 `json:"duration_days"`
    OccurredAt   string `json:"occurred_at"`
}

// EventTypeFor maps a coordinator action to the event type it emits.
// Actions without a public event map to the empty string.
func EventTypeFor(a model.Action) string {
    switch a {
    case model.ActionApprove:
        return EventRequestApproved
    case model.ActionReturn:
        return EventRequestReturned
    }
    return ""
}
