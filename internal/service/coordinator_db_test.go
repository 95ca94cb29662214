package service

import (
    "context"
    "database/sql"
    "os"
    "sync"
    "testing"
    "time"

    _ "github.com/go-sql-driver/mysql"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/book-exchange/internal/model"
    "github.com/iliyamo/book-exchange/internal/repository"
)

// These tests exercise the coordinator against a real MySQL instance
// because the atomicity guarantees they verify (row locks, the status
// compare-and-set) live in the storage layer.  They are skipped unless
// TEST_DB_DSN points at a database with schema.sql applied, e.g.
//
//	TEST_DB_DSN="root@tcp(localhost:3306)/bookexchange_test?parseTime=true&loc=UTC"

func openTestDB(t *testing.T) *sql.DB {
    t.Helper()
    dsn := os.Getenv("TEST_DB_DSN")
    if dsn == "" {
        t.Skip("TEST_DB_DSN not set; skipping database-backed tests")
    }
    db, err := sql.Open("mysql", dsn)
    require.NoError(t, err)
    require.NoError(t, db.Ping())
    _, err = db.Exec(`DELETE FROM borrow_requests`)
    require.NoError(t, err)
    _, err = db.Exec(`DELETE FROM books`)
    require.NoError(t, err)
    t.Cleanup(func() { _ = db.Close() })
    return db
}

func newTestCoordinator(db *sql.DB) *Coordinator {
    return New(db, repository.NewBookRepo(db), repository.NewBorrowRequestRepo(db), nil)
}

func requestStatus(t *testing.T, db *sql.DB, id uint64) model.RequestStatus {
    t.Helper()
    var s model.RequestStatus
    require.NoError(t, db.QueryRow(`SELECT status FROM borrow_requests WHERE id = ?`, id).Scan(&s))
    return s
}

func approvedCount(t *testing.T, db *sql.DB, bookID uint64) int {
    t.Helper()
    var n int
    require.NoError(t, db.QueryRow(
        `SELECT COUNT(*) FROM borrow_requests WHERE book_id = ? AND status = ?`,
        bookID, model.RequestApproved).Scan(&n))
    return n
}

func TestLendingLifecycle(t *testing.T) {
    db := openTestDB(t)
    svc := newTestCoordinator(db)
    ctx := context.Background()

    const (
        owner      uint64 = 1
        borrower   uint64 = 2
        latecomer  uint64 = 3
    )

    book, err := svc.AddBook(ctx, owner, "The Go Programming Language", "Donovan & Kernighan", "https://cdn.example/gopl.jpg", 14)
    require.NoError(t, err)
    assert.Equal(t, model.BookAvailable, book.Status)

    req, err := svc.RequestToBorrow(ctx, book.ID, borrower, 10)
    require.NoError(t, err)
    assert.Equal(t, model.RequestPending, req.Status)

    // Owner approves: request APPROVED, book BORROWED.
    approved, err := svc.ApplyAction(ctx, req.ID, model.ActionApprove, owner)
    require.NoError(t, err)
    assert.Equal(t, model.RequestApproved, approved.Status)

    got, err := svc.GetBook(ctx, book.ID)
    require.NoError(t, err)
    assert.Equal(t, model.BookBorrowed, got.Status)

    // A borrowed book cannot be requested; no request row is created.
    _, err = svc.RequestToBorrow(ctx, book.ID, latecomer, 5)
    assert.ErrorIs(t, err, repository.ErrConflict)

    // Return flips the book back to AVAILABLE.
    returned, err := svc.ApplyAction(ctx, req.ID, model.ActionReturn, owner)
    require.NoError(t, err)
    assert.Equal(t, model.RequestReturned, returned.Status)

    got, err = svc.GetBook(ctx, book.ID)
    require.NoError(t, err)
    assert.Equal(t, model.BookAvailable, got.Status)

    // And the latecomer can request it now.
    late, err := svc.RequestToBorrow(ctx, book.ID, latecomer, 5)
    require.NoError(t, err)
    assert.Equal(t, model.RequestPending, late.Status)
}

func TestApproveRejectsSiblingPending(t *testing.T) {
    db := openTestDB(t)
    svc := newTestCoordinator(db)
    ctx := context.Background()

    book, err := svc.AddBook(ctx, 1, "Clean Architecture", "Robert C. Martin", "", 30)
    require.NoError(t, err)

    first, err := svc.RequestToBorrow(ctx, book.ID, 2, 7)
    require.NoError(t, err)
    second, err := svc.RequestToBorrow(ctx, book.ID, 3, 14)
    require.NoError(t, err)

    _, err = svc.ApplyAction(ctx, first.ID, model.ActionApprove, 1)
    require.NoError(t, err)

    // The sibling was swept to REJECTED in the same transaction and
    // the single-approved invariant holds.
    assert.Equal(t, model.RequestRejected, requestStatus(t, db, second.ID))
    assert.Equal(t, 1, approvedCount(t, db, book.ID))
}

func TestRequestValidation(t *testing.T) {
    db := openTestDB(t)
    svc := newTestCoordinator(db)
    ctx := context.Background()

    book, err := svc.AddBook(ctx, 1, "SICP", "Abelson & Sussman", "", 14)
    require.NoError(t, err)

    // Duration above the book's maximum fails before any write.
    _, err = svc.RequestToBorrow(ctx, book.ID, 2, 20)
    assert.ErrorIs(t, err, repository.ErrValidation)

    // Zero-day loans are malformed too.
    _, err = svc.RequestToBorrow(ctx, book.ID, 2, 0)
    assert.ErrorIs(t, err, repository.ErrValidation)

    // Owners cannot request their own books.
    _, err = svc.RequestToBorrow(ctx, book.ID, 1, 7)
    assert.ErrorIs(t, err, repository.ErrValidation)

    // Unknown books are reported as such.
    _, err = svc.RequestToBorrow(ctx, book.ID+1000, 2, 7)
    assert.ErrorIs(t, err, repository.ErrBookNotFound)

    var n int
    require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM borrow_requests`).Scan(&n))
    assert.Equal(t, 0, n)
}

func TestBookValidation(t *testing.T) {
    db := openTestDB(t)
    svc := newTestCoordinator(db)
    ctx := context.Background()

    _, err := svc.AddBook(ctx, 1, "", "Somebody", "", 14)
    assert.ErrorIs(t, err, repository.ErrValidation)
    _, err = svc.AddBook(ctx, 1, "Title", "  ", "", 14)
    assert.ErrorIs(t, err, repository.ErrValidation)
    _, err = svc.AddBook(ctx, 1, "Title", "Somebody", "", 0)
    assert.ErrorIs(t, err, repository.ErrValidation)
    _, err = svc.AddBook(ctx, 1, "Title", "Somebody", "", 91)
    assert.ErrorIs(t, err, repository.ErrValidation)

    var n int
    require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM books`).Scan(&n))
    assert.Equal(t, 0, n)
}

func TestTerminalStatesAreImmutable(t *testing.T) {
    db := openTestDB(t)
    svc := newTestCoordinator(db)
    ctx := context.Background()

    book, err := svc.AddBook(ctx, 1, "TAOCP", "Donald Knuth", "", 60)
    require.NoError(t, err)
    req, err := svc.RequestToBorrow(ctx, book.ID, 2, 30)
    require.NoError(t, err)

    // Reject leaves the book available.
    _, err = svc.ApplyAction(ctx, req.ID, model.ActionReject, 1)
    require.NoError(t, err)
    got, err := svc.GetBook(ctx, book.ID)
    require.NoError(t, err)
    assert.Equal(t, model.BookAvailable, got.Status)

    // No transition leaves a terminal state, and nothing changes.
    for _, action := range []model.Action{model.ActionApprove, model.ActionReject, model.ActionReturn} {
        _, err = svc.ApplyAction(ctx, req.ID, action, 1)
        assert.ErrorIs(t, err, repository.ErrInvalidState, "action %q", action)
    }
    assert.Equal(t, model.RequestRejected, requestStatus(t, db, req.ID))
    got, err = svc.GetBook(ctx, book.ID)
    require.NoError(t, err)
    assert.Equal(t, model.BookAvailable, got.Status)
}

func TestReturnAuthorization(t *testing.T) {
    db := openTestDB(t)
    svc := newTestCoordinator(db)
    ctx := context.Background()

    book, err := svc.AddBook(ctx, 1, "The Mythical Man-Month", "Fred Brooks", "", 21)
    require.NoError(t, err)
    req, err := svc.RequestToBorrow(ctx, book.ID, 2, 14)
    require.NoError(t, err)
    _, err = svc.ApplyAction(ctx, req.ID, model.ActionApprove, 1)
    require.NoError(t, err)

    // A third party cannot return the book.
    _, err = svc.ApplyAction(ctx, req.ID, model.ActionReturn, 3)
    assert.ErrorIs(t, err, repository.ErrForbidden)

    // The borrower can.
    returned, err := svc.ApplyAction(ctx, req.ID, model.ActionReturn, 2)
    require.NoError(t, err)
    assert.Equal(t, model.RequestReturned, returned.Status)
}

func TestConcurrentApprovalsSingleWinner(t *testing.T) {
    db := openTestDB(t)
    svc := newTestCoordinator(db)
    ctx := context.Background()

    book, err := svc.AddBook(ctx, 1, "Designing Data-Intensive Applications", "Martin Kleppmann", "", 28)
    require.NoError(t, err)

    reqA, err := svc.RequestToBorrow(ctx, book.ID, 2, 7)
    require.NoError(t, err)
    reqB, err := svc.RequestToBorrow(ctx, book.ID, 3, 7)
    require.NoError(t, err)

    // Two approvals race on the same book.  The row lock serializes
    // them; the winner flips the book, the loser must fail with
    // ErrConflict (lost the flip) or ErrInvalidState (its request was
    // already swept to REJECTED).
    var wg sync.WaitGroup
    errs := make([]error, 2)
    for i, id := range []uint64{reqA.ID, reqB.ID} {
        wg.Add(1)
        go func(i int, id uint64) {
            defer wg.Done()
            _, errs[i] = svc.ApplyAction(ctx, id, model.ActionApprove, 1)
        }(i, id)
    }
    wg.Wait()

    var wins, losses int
    for _, err := range errs {
        if err == nil {
            wins++
            continue
        }
        losses++
        if !assert.True(t,
            err == repository.ErrConflict || err == repository.ErrInvalidState,
            "unexpected loser error: %v", err) {
            t.FailNow()
        }
    }
    assert.Equal(t, 1, wins)
    assert.Equal(t, 1, losses)

    got, err := svc.GetBook(ctx, book.ID)
    require.NoError(t, err)
    assert.Equal(t, model.BookBorrowed, got.Status)
    assert.Equal(t, 1, approvedCount(t, db, book.ID))
}

func TestCancelledOperationLeavesNoPartialEffect(t *testing.T) {
    db := openTestDB(t)
    svc := newTestCoordinator(db)
    ctx := context.Background()

    book, err := svc.AddBook(ctx, 1, "The Pragmatic Programmer", "Hunt & Thomas", "", 14)
    require.NoError(t, err)
    req, err := svc.RequestToBorrow(ctx, book.ID, 2, 7)
    require.NoError(t, err)

    // Hold the book row lock from a separate transaction so the
    // approval blocks before it can commit, then cancel it mid-flight.
    holder, err := db.BeginTx(ctx, nil)
    require.NoError(t, err)
    var lockedID uint64
    require.NoError(t, holder.QueryRow(
        `SELECT id FROM books WHERE id = ? FOR UPDATE`, book.ID).Scan(&lockedID))

    opCtx, cancel := context.WithCancel(context.Background())
    done := make(chan error, 1)
    go func() {
        _, err := svc.ApplyAction(opCtx, req.ID, model.ActionApprove, 1)
        done <- err
    }()
    time.Sleep(100 * time.Millisecond)
    cancel()
    err = <-done
    require.Error(t, err)
    require.NoError(t, holder.Rollback())

    got, err := svc.GetBook(ctx, book.ID)
    require.NoError(t, err)
    assert.Equal(t, model.BookAvailable, got.Status)
    assert.Equal(t, model.RequestPending, requestStatus(t, db, req.ID))
    assert.Equal(t, 0, approvedCount(t, db, book.ID))

    // A context cancelled before the call starts must not create rows.
    cancelledCtx, cancelNow := context.WithCancel(context.Background())
    cancelNow()
    _, err = svc.RequestToBorrow(cancelledCtx, book.ID, 3, 7)
    require.Error(t, err)
    var n int
    require.NoError(t, db.QueryRow(
        `SELECT COUNT(*) FROM borrow_requests WHERE requester_id = ?`, uint64(3)).Scan(&n))
    assert.Equal(t, 0, n)
}

func TestRequestListings(t *testing.T) {
    db := openTestDB(t)
    svc := newTestCoordinator(db)
    ctx := context.Background()

    const (
        owner    uint64 = 1
        borrower uint64 = 2
        other    uint64 = 3
    )

    first, err := svc.AddBook(ctx, owner, "Clean Code", "Robert C. Martin", "https://cdn.example/clean-code.jpg", 21)
    require.NoError(t, err)
    second, err := svc.AddBook(ctx, owner, "Refactoring", "Martin Fowler", "", 14)
    require.NoError(t, err)
    unrelated, err := svc.AddBook(ctx, other, "SICP", "Abelson & Sussman", "", 30)
    require.NoError(t, err)

    reqFirst, err := svc.RequestToBorrow(ctx, first.ID, borrower, 7)
    require.NoError(t, err)
    reqSecond, err := svc.RequestToBorrow(ctx, second.ID, borrower, 7)
    require.NoError(t, err)
    _, err = svc.RequestToBorrow(ctx, unrelated.ID, borrower, 7)
    require.NoError(t, err)
    _, err = svc.ApplyAction(ctx, reqFirst.ID, model.ActionApprove, owner)
    require.NoError(t, err)

    // Sent requests: all three, newest first, joined with book fields.
    sent, err := svc.SentRequests(ctx, borrower, "")
    require.NoError(t, err)
    require.Len(t, sent, 3)
    assert.Equal(t, "SICP", sent[0].BookTitle)
    assert.Equal(t, reqSecond.ID, sent[1].ID)
    assert.Equal(t, reqFirst.ID, sent[2].ID)
    assert.Equal(t, "Clean Code", sent[2].BookTitle)
    assert.Equal(t, "Robert C. Martin", sent[2].BookAuthor)
    assert.Equal(t, "https://cdn.example/clean-code.jpg", sent[2].BookImageURL)
    assert.Equal(t, owner, sent[2].BookOwnerID)
    assert.Equal(t, model.RequestApproved, sent[2].Status)

    // Status filter on sent requests.
    borrowing, err := svc.SentRequests(ctx, borrower, model.RequestApproved)
    require.NoError(t, err)
    require.Len(t, borrowing, 1)
    assert.Equal(t, reqFirst.ID, borrowing[0].ID)

    // Incoming requests only cover the owner's books.
    incoming, err := svc.IncomingRequests(ctx, owner, "")
    require.NoError(t, err)
    require.Len(t, incoming, 2)
    assert.Equal(t, reqSecond.ID, incoming[0].ID)
    assert.Equal(t, reqFirst.ID, incoming[1].ID)

    pending, err := svc.IncomingRequests(ctx, owner, model.RequestPending)
    require.NoError(t, err)
    require.Len(t, pending, 1)
    assert.Equal(t, reqSecond.ID, pending[0].ID)

    empty, err := svc.SentRequests(ctx, owner, "")
    require.NoError(t, err)
    assert.Empty(t, empty)
}
