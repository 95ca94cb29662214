package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/iliyamo/book-exchange/internal/model"
)

// BorrowRequestRepo provides persistence for the borrow_requests
// table.  Requests are append-only from the client's point of view:
// they are created as PENDING and afterwards mutated only by the
// lending coordinator, never deleted.  All timestamps are stored in
// UTC.
type BorrowRequestRepo struct {
    db *sql.DB
}

// NewBorrowRequestRepo returns a new BorrowRequestRepo bound to the
// given database.
func NewBorrowRequestRepo(db *sql.DB) *BorrowRequestRepo { return &BorrowRequestRepo{db: db} }

const requestColumns = `id, book_id, requester_id, status, duration_days, created_at`

// CreateTx inserts a new borrow request within the scope of an
// existing transaction and populates the generated ID and created_at
// timestamp.  Status is forced to PENDING.  The caller must have
// validated the duration against the book and holds the book row
// lock; the caller commits or rolls back the transaction.
func (r *BorrowRequestRepo) CreateTx(ctx context.Context, tx *sql.Tx, req *model.BorrowRequest) error {
    req.Status = model.RequestPending
    const q = `INSERT INTO borrow_requests (book_id, requester_id, status, duration_days) VALUES (?, ?, ?, ?)`
    result, err := tx.ExecContext(ctx, q, req.BookID, req.RequesterID, req.Status, req.DurationDays)
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    req.ID = uint64(id)
    const sel = `SELECT created_at FROM borrow_requests WHERE id = ?`
    return tx.QueryRowContext(ctx, sel, req.ID).Scan(&req.CreatedAt)
}

// GetByIDTx loads a single request inside the given transaction.
// Returns ErrRequestNotFound when absent.
func (r *BorrowRequestRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.BorrowRequest, error) {
    const q = `SELECT ` + requestColumns + ` FROM borrow_requests WHERE id = ?`
    var req model.BorrowRequest
    err := tx.QueryRowContext(ctx, q, id).Scan(&req.ID, &req.BookID, &req.RequesterID, &req.Status, &req.DurationDays, &req.CreatedAt)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrRequestNotFound
        }
        return nil, err
    }
    return &req, nil
}

// RequestDetail pairs a borrow request with the book fields needed to
// display it in a list without a second lookup.
type RequestDetail struct {
    model.BorrowRequest
    BookTitle    string `json:"book_title"`
    BookAuthor   string `json:"book_author"`
    BookImageURL string `json:"book_image_url"`
    BookOwnerID  uint64 `json:"book_owner_id"`
}

const detailColumns = `r.id, r.book_id, r.requester_id, r.status, r.duration_days, r.created_at,
                       b.title, b.author, b.image_url, b.owner_id`

func scanDetails(rows *sql.Rows) ([]RequestDetail, error) {
    defer rows.Close()
    details := make([]RequestDetail, 0)
    for rows.Next() {
        var d RequestDetail
        if err := rows.Scan(&d.ID, &d.BookID, &d.RequesterID, &d.Status, &d.DurationDays, &d.CreatedAt,
            &d.BookTitle, &d.BookAuthor, &d.BookImageURL, &d.BookOwnerID); err != nil {
            return nil, err
        }
        details = append(details, d)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return details, nil
}

// ListByRequester returns requests the given user has sent, newest
// first, joined with the referenced book for display.  The status
// filter narrows the list to a single request status (the profile
// view splits borrowing, pending and declined); an empty status
// returns all of them.
func (r *BorrowRequestRepo) ListByRequester(ctx context.Context, requesterID uint64, status model.RequestStatus) ([]RequestDetail, error) {
    q := `SELECT ` + detailColumns + `
          FROM borrow_requests r
          JOIN books b ON b.id = r.book_id
          WHERE r.requester_id = ?`
    args := []interface{}{requesterID}
    if status != "" {
        q += ` AND r.status = ?`
        args = append(args, status)
    }
    q += ` ORDER BY r.created_at DESC, r.id DESC`
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    return scanDetails(rows)
}

// ListForOwnerBooks returns requests whose referenced book belongs to
// the given owner, newest first.  The status filter narrows the list
// to a single request status; an empty status returns all of them.
// This is the owner's incoming-requests view.
func (r *BorrowRequestRepo) ListForOwnerBooks(ctx context.Context, ownerID uint64, status model.RequestStatus) ([]RequestDetail, error) {
    q := `SELECT ` + detailColumns + `
          FROM borrow_requests r
          JOIN books b ON b.id = r.book_id
          WHERE b.owner_id = ?`
    args := []interface{}{ownerID}
    if status != "" {
        q += ` AND r.status = ?`
        args = append(args, status)
    }
    q += ` ORDER BY r.created_at DESC, r.id DESC`
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    return scanDetails(rows)
}

// UpdateStatusTx sets a request's status inside the provided
// transaction.  State-machine checks belong to the coordinator; this
// method only persists the decision.  The caller commits or rolls
// back the transaction.
func (r *BorrowRequestRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.RequestStatus) error {
    const q = `UPDATE borrow_requests SET status = ? WHERE id = ?`
    result, err := tx.ExecContext(ctx, q, status, id)
    if err != nil {
        return err
    }
    n, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrRequestNotFound
    }
    return nil
}

// HasApprovedForBookTx reports whether the book already has an
// APPROVED request, inside the given transaction.  It backs the
// ledger invariant that at most one approved request exists per book.
func (r *BorrowRequestRepo) HasApprovedForBookTx(ctx context.Context, tx *sql.Tx, bookID uint64) (bool, error) {
    const q = `SELECT COUNT(*) FROM borrow_requests WHERE book_id = ? AND status = ?`
    var n int64
    if err := tx.QueryRowContext(ctx, q, bookID, model.RequestApproved).Scan(&n); err != nil {
        return false, err
    }
    return n > 0, nil
}

// RejectOtherPendingTx transitions every PENDING request for the book
// other than keepID to REJECTED, inside the given transaction.  It
// returns the number of requests swept.  The coordinator calls this
// when approving a request so that no pending request is left
// pointing at a book that is no longer available.
func (r *BorrowRequestRepo) RejectOtherPendingTx(ctx context.Context, tx *sql.Tx, bookID, keepID uint64) (int64, error) {
    const q = `UPDATE borrow_requests SET status = ? WHERE book_id = ? AND id != ? AND status = ?`
    result, err := tx.ExecContext(ctx, q, model.RequestRejected, bookID, keepID, model.RequestPending)
    if err != nil {
        return 0, err
    }
    return result.RowsAffected()
}
