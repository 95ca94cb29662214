// Package service implements the lending coordinator, the single
// authority for transitioning a borrow request's status together with
// the referenced book's availability.  Every mutating operation runs
// inside one database transaction: the book row is locked first, the
// status flip is applied as a compare-and-set, and nothing becomes
// visible before commit, so a cancelled call leaves no partial state.
package service

import (
    "context"
    "database/sql"
    "log"
    "time"

    "github.com/iliyamo/book-exchange/internal/model"
    "github.com/iliyamo/book-exchange/internal/queue"
    "github.com/iliyamo/book-exchange/internal/repository"
)

// EventSink receives lending events after a transition has committed.
// Delivery failures must not fail the originating request; the
// coordinator logs and drops them.
type EventSink func(ctx context.Context, ev queue.LendingEvent) error

// Coordinator wires the catalog and ledger repositories together and
// enforces the request state machine.  Book status is written nowhere
// else in the code base.
type Coordinator struct {
    db       *sql.DB
    books    *repository.BookRepo
    requests *repository.BorrowRequestRepo
    events   EventSink // optional; nil disables event publishing
}

// New constructs a Coordinator.  The repositories must be non-nil and
// bound to the same database as db.  events may be nil.
func New(db *sql.DB, books *repository.BookRepo, requests *repository.BorrowRequestRepo, events EventSink) *Coordinator {
    if db == nil || books == nil || requests == nil {
        panic("nil dependency passed to service.New")
    }
    return &Coordinator{db: db, books: books, requests: requests, events: events}
}

// AddBook lists a new book for its owner.  The book always starts
// AVAILABLE.  Returns repository.ErrValidation for blank title/author
// or a max borrow duration outside 1–90 days.
func (s *Coordinator) AddBook(ctx context.Context, ownerID uint64, title, author, imageURL string, maxBorrowDurationDays uint32) (*model.Book, error) {
    b := &model.Book{
        Title:                 title,
        Author:                author,
        ImageURL:              imageURL,
        OwnerID:               ownerID,
        MaxBorrowDurationDays: maxBorrowDurationDays,
    }
    if err := s.books.Create(ctx, b); err != nil {
        return nil, err
    }
    return b, nil
}

// GetBook returns a single book by ID.
func (s *Coordinator) GetBook(ctx context.Context, id uint64) (*model.Book, error) {
    return s.books.GetByID(ctx, id)
}

// ListAvailable returns the browse feed for a viewer: every AVAILABLE
// book except the viewer's own listings, newest first.
func (s *Coordinator) ListAvailable(ctx context.Context, viewerID uint64) ([]model.Book, error) {
    return s.books.ListAvailableExcludingOwner(ctx, viewerID)
}

// ListOwnedBooks returns the user's own library, newest first.
func (s *Coordinator) ListOwnedBooks(ctx context.Context, ownerID uint64) ([]model.Book, error) {
    return s.books.ListByOwner(ctx, ownerID)
}

// SentRequests returns the requests the user has sent, optionally
// narrowed to one status, newest first.
func (s *Coordinator) SentRequests(ctx context.Context, userID uint64, status model.RequestStatus) ([]repository.RequestDetail, error) {
    return s.requests.ListByRequester(ctx, userID, status)
}

// IncomingRequests returns requests targeting the owner's books,
// optionally narrowed to one status, newest first.
func (s *Coordinator) IncomingRequests(ctx context.Context, ownerID uint64, status model.RequestStatus) ([]repository.RequestDetail, error) {
    return s.requests.ListForOwnerBooks(ctx, ownerID, status)
}

// RequestToBorrow creates a PENDING borrow request for a book.  The
// book row is locked for the duration of the transaction so the
// availability check cannot race a concurrent approval.  Failure
// modes: ErrBookNotFound, ErrConflict when the book is not AVAILABLE
// (or an approved request already exists), and ErrValidation when the
// requester owns the book or the duration is outside 1..max.
func (s *Coordinator) RequestToBorrow(ctx context.Context, bookID, requesterID uint64, durationDays uint32) (req *model.BorrowRequest, err error) {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    book, err := s.books.GetByIDForUpdateTx(ctx, tx, bookID)
    if err != nil {
        return nil, err
    }
    if book.Status != model.BookAvailable {
        return nil, repository.ErrConflict
    }
    if book.OwnerID == requesterID {
        return nil, repository.ErrValidation
    }
    if durationDays < model.MinBorrowDurationDays || durationDays > book.MaxBorrowDurationDays {
        return nil, repository.ErrValidation
    }
    // An AVAILABLE book must have no approved request; a leftover one
    // means the invariant was broken elsewhere, so refuse to pile on.
    approved, err := s.requests.HasApprovedForBookTx(ctx, tx, bookID)
    if err != nil {
        return nil, err
    }
    if approved {
        return nil, repository.ErrConflict
    }

    req = &model.BorrowRequest{
        BookID:       bookID,
        RequesterID:  requesterID,
        DurationDays: durationDays,
    }
    if err = s.requests.CreateTx(ctx, tx, req); err != nil {
        return nil, err
    }
    if err = tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    return req, nil
}

// ApplyAction drives a borrow request through its state machine on
// behalf of an acting user.  approve and reject belong to the book's
// owner; return may come from the owner or the borrower.  The request
// transition and the correlated book status flip commit as one atomic
// unit; the losing side of a race gets ErrConflict (book flip lost)
// or ErrInvalidState (request already moved on).
func (s *Coordinator) ApplyAction(ctx context.Context, requestID uint64, action model.Action, actingUserID uint64) (req *model.BorrowRequest, err error) {
    target, ok := action.TargetStatus()
    if !ok {
        return nil, repository.ErrValidation
    }

    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    req, err = s.requests.GetByIDTx(ctx, tx, requestID)
    if err != nil {
        return nil, err
    }
    // Lock the book row before inspecting any status.  Concurrent
    // actions on the same book serialize here.
    book, err := s.books.GetByIDForUpdateTx(ctx, tx, req.BookID)
    if err != nil {
        return nil, err
    }
    if err = authorizeAction(action, book.OwnerID, req.RequesterID, actingUserID); err != nil {
        return nil, err
    }
    if !req.Status.CanTransition(target) {
        return nil, repository.ErrInvalidState
    }

    switch action {
    case model.ActionApprove:
        flipped, ferr := s.books.UpdateStatusTx(ctx, tx, book.ID, model.BookAvailable, model.BookBorrowed)
        if ferr != nil {
            return nil, ferr
        }
        if !flipped {
            // Request is still PENDING but the book is no longer
            // available: a racing approval won.
            return nil, repository.ErrConflict
        }
        if err = s.requests.UpdateStatusTx(ctx, tx, req.ID, model.RequestApproved); err != nil {
            return nil, err
        }
        // Sweep sibling PENDING requests so none is left pointing at
        // a book that cannot be borrowed anymore.
        if _, err = s.requests.RejectOtherPendingTx(ctx, tx, book.ID, req.ID); err != nil {
            return nil, err
        }
    case model.ActionReject:
        if err = s.requests.UpdateStatusTx(ctx, tx, req.ID, model.RequestRejected); err != nil {
            return nil, err
        }
    case model.ActionReturn:
        flipped, ferr := s.books.UpdateStatusTx(ctx, tx, book.ID, model.BookBorrowed, model.BookAvailable)
        if ferr != nil {
            return nil, ferr
        }
        if !flipped {
            return nil, repository.ErrConflict
        }
        if err = s.requests.UpdateStatusTx(ctx, tx, req.ID, model.RequestReturned); err != nil {
            return nil, err
        }
    }

    if err = tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    req.Status = target

    if s.events != nil && (action == model.ActionApprove || action == model.ActionReturn) {
        ev := queue.LendingEvent{
            Type:         queue.EventTypeFor(action),
            RequestID:    req.ID,
            BookID:       book.ID,
            BookTitle:    book.Title,
            OwnerID:      book.OwnerID,
            RequesterID:  req.RequesterID,
            DurationDays: req.DurationDays,
            OccurredAt:   time.Now().UTC().Format(time.RFC3339),
        }
        if perr := s.events(ctx, ev); perr != nil {
            log.Printf("coordinator: publish lending event failed: %v", perr)
        }
    }
    return req, nil
}

// authorizeAction checks who may trigger each action: approve and
// reject are owner-only, return is allowed for the owner or the
// requester.  Returns repository.ErrForbidden on any mismatch.
func authorizeAction(action model.Action, ownerID, requesterID, actor uint64) error {
    switch action {
    case model.ActionApprove, model.ActionReject:
        if actor != ownerID {
            return repository.ErrForbidden
        }
    case model.ActionReturn:
        if actor != ownerID && actor != requesterID {
            return repository.ErrForbidden
        }
    default:
        return repository.ErrValidation
    }
    return nil
}
