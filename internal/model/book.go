package model

import "time"

// BookStatus enumerates the availability states of a book.  Only two
// states exist: a book is either on its owner's shelf (AVAILABLE) or
// out with a borrower (BORROWED).  The status column is written
// exclusively by the lending coordinator; creation always starts a
// book as AVAILABLE.
type BookStatus string

const (
    BookAvailable BookStatus = "AVAILABLE" // book can be requested
    BookBorrowed  BookStatus = "BORROWED"  // book is out with a borrower
)

// Duration bounds for max_borrow_duration_days.  Owners pick how long
// a single loan may last when listing a book.
const (
    MinBorrowDurationDays = 1
    MaxBorrowDurationDays = 90
)

// Book describes a physical book listed for lending.
//
// Fields:
//  ID                    – primary key identifier.
//  Title                 – book title, non-empty.
//  Author                – book author, non-empty.
//  ImageURL              – cover image hosted by the external media store.
//  OwnerID               – user who listed the book; immutable.
//  Status                – AVAILABLE or BORROWED, owned by the coordinator.
//  MaxBorrowDurationDays – longest loan the owner allows, 1–90 days.
//  CreatedAt             – creation timestamp.
type Book struct {
    ID                    uint64     `json:"id"`                       // books.id
    Title                 string     `json:"title"`                    // books.title
    Author                string     `json:"author"`                   // books.author
    ImageURL              string     `json:"image_url"`                // books.image_url
    OwnerID               uint64     `json:"owner_id"`                 // books.owner_id
    Status                BookStatus `json:"status"`                   // books.status
    MaxBorrowDurationDays uint32     `json:"max_borrow_duration_days"` // books.max_borrow_duration_days
    CreatedAt             time.Time  `json:"created_at"`               // books.created_at
}
