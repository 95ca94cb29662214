package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"

    "github.com/iliyamo/book-exchange/internal/model"
)

// BookRepo provides persistence for the books table.  Books are the
// shared resource contended over by concurrent borrow requests, so the
// repository exposes transaction-scoped variants of its lookups and a
// status compare-and-set that the coordinator uses to serialize
// availability flips.  All timestamps are stored in UTC.
type BookRepo struct {
    db *sql.DB
}

// NewBookRepo returns a new BookRepo bound to the given database.
func NewBookRepo(db *sql.DB) *BookRepo { return &BookRepo{db: db} }

// DB exposes the underlying handle so that the coordinator can open
// transactions spanning books and borrow_requests.
func (r *BookRepo) DB() *sql.DB { return r.db }

// Create inserts a new book and populates the generated ID and the
// created_at timestamp on the passed model.  Status is forced to
// AVAILABLE regardless of what the caller set.  It returns
// ErrValidation when title or author are blank or the maximum borrow
// duration falls outside the allowed range; nothing is written in
// that case.
func (r *BookRepo) Create(ctx context.Context, b *model.Book) error {
    if strings.TrimSpace(b.Title) == "" || strings.TrimSpace(b.Author) == "" {
        return ErrValidation
    }
    if b.MaxBorrowDurationDays < model.MinBorrowDurationDays || b.MaxBorrowDurationDays > model.MaxBorrowDurationDays {
        return ErrValidation
    }
    b.Status = model.BookAvailable
    const q = `INSERT INTO books (title, author, image_url, owner_id, status, max_borrow_duration_days)
               VALUES (?, ?, ?, ?, ?, ?)`
    result, err := r.db.ExecContext(ctx, q, b.Title, b.Author, b.ImageURL, b.OwnerID, b.Status, b.MaxBorrowDurationDays)
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    b.ID = uint64(id)
    // Query back the row so the caller sees the DB-assigned timestamp.
    const sel = `SELECT created_at FROM books WHERE id = ?`
    return r.db.QueryRowContext(ctx, sel, b.ID).Scan(&b.CreatedAt)
}

// scanBook reads one books row from the given row scanner.
func scanBook(row *sql.Row) (*model.Book, error) {
    var b model.Book
    err := row.Scan(&b.ID, &b.Title, &b.Author, &b.ImageURL, &b.OwnerID, &b.Status, &b.MaxBorrowDurationDays, &b.CreatedAt)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrBookNotFound
        }
        return nil, err
    }
    return &b, nil
}

const bookColumns = `id, title, author, image_url, owner_id, status, max_borrow_duration_days, created_at`

// GetByID returns a single book or ErrBookNotFound when absent.
func (r *BookRepo) GetByID(ctx context.Context, id uint64) (*model.Book, error) {
    const q = `SELECT ` + bookColumns + ` FROM books WHERE id = ?`
    return scanBook(r.db.QueryRowContext(ctx, q, id))
}

// GetByIDForUpdateTx loads a book inside the given transaction and
// pins its row with FOR UPDATE.  Concurrent coordinator operations on
// the same book serialize on this lock, which is what makes the
// status check-and-set race free.  Returns ErrBookNotFound when the
// book does not exist.
func (r *BookRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Book, error) {
    const q = `SELECT ` + bookColumns + ` FROM books WHERE id = ? FOR UPDATE`
    return scanBook(tx.QueryRowContext(ctx, q, id))
}

// ListAvailableExcludingOwner returns every AVAILABLE book not owned
// by the given user, newest first.  This backs the public browse feed
// where users discover books they can request.  When no books match,
// an empty slice is returned.
func (r *BookRepo) ListAvailableExcludingOwner(ctx context.Context, ownerID uint64) ([]model.Book, error) {
    const q = `SELECT ` + bookColumns + `
               FROM books
               WHERE status = ? AND owner_id != ?
               ORDER BY created_at DESC, id DESC`
    rows, err := r.db.QueryContext(ctx, q, model.BookAvailable, ownerID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    books := make([]model.Book, 0)
    for rows.Next() {
        var b model.Book
        if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.ImageURL, &b.OwnerID, &b.Status, &b.MaxBorrowDurationDays, &b.CreatedAt); err != nil {
            return nil, err
        }
        books = append(books, b)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return books, nil
}

// ListByOwner returns all books listed by the given user, newest
// first, regardless of status.  This backs the owner's library view.
func (r *BookRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Book, error) {
    const q = `SELECT ` + bookColumns + `
               FROM books
               WHERE owner_id = ?
               ORDER BY created_at DESC, id DESC`
    rows, err := r.db.QueryContext(ctx, q, ownerID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    books := make([]model.Book, 0)
    for rows.Next() {
        var b model.Book
        if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.ImageURL, &b.OwnerID, &b.Status, &b.MaxBorrowDurationDays, &b.CreatedAt); err != nil {
            return nil, err
        }
        books = append(books, b)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return books, nil
}

// UpdateStatusTx flips a book's status from one value to another
// inside the provided transaction.  The update is a compare-and-set:
// it only applies while the book still holds the expected current
// status, and the boolean result reports whether a row was changed.
// A false result means a concurrent transition got there first and
// the caller must treat the operation as lost.  The coordinator is
// the only caller; book status is never written anywhere else.
func (r *BookRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.BookStatus) (bool, error) {
    const q = `UPDATE books SET status = ? WHERE id = ? AND status = ?`
    result, err := tx.ExecContext(ctx, q, to, id, from)
    if err != nil {
        return false, err
    }
    n, err := result.RowsAffected()
    if err != nil {
        return false, err
    }
    return n == 1, nil
}
