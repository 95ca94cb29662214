package handler

import (
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/book-exchange/internal/service"
)

// BookHandler exposes the catalog endpoints: listing a new book,
// fetching one, and browsing the available feed.  All methods assume
// that JWT authentication has already been performed by middleware and
// may return 401 Unauthorized if the user ID cannot be extracted from
// the context.
type BookHandler struct {
    Svc *service.Coordinator
}

// NewBookHandler constructs a BookHandler.  The coordinator must be
// non-nil.
func NewBookHandler(svc *service.Coordinator) *BookHandler {
    if svc == nil {
        panic("nil coordinator passed to NewBookHandler")
    }
    return &BookHandler{Svc: svc}
}

// CreateBook handles POST /v1/books.  The request body carries the
// title, author, cover image URL (already uploaded to the external
// media store) and the maximum borrow duration in days (1–90).  The
// authenticated user becomes the owner and the book starts AVAILABLE.
// Returns 201 Created with the stored book.
func (h *BookHandler) CreateBook(c echo.Context) error {
    ownerID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body struct {
        Title                 string `json:"title"`
        Author                string `json:"author"`
        ImageURL              string `json:"image_url"`
        MaxBorrowDurationDays uint32 `json:"max_borrow_duration_days"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    book, err := h.Svc.AddBook(c.Request().Context(), ownerID, body.Title, body.Author, body.ImageURL, body.MaxBorrowDurationDays)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"item": book})
}

// GetBook handles GET /v1/books/:id and returns a single book.
func (h *BookHandler) GetBook(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book id"})
    }
    book, err := h.Svc.GetBook(c.Request().Context(), id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"item": book})
}

// ListBooks handles GET /v1/books.  It returns every AVAILABLE book
// except the caller's own listings, newest first.  This is the browse
// feed users request books from.
func (h *BookHandler) ListBooks(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    books, err := h.Svc.ListAvailable(c.Request().Context(), userID)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": books})
}

// ListMyBooks handles GET /v1/my-books.  It returns the caller's own
// library, newest first, including borrowed books.
func (h *BookHandler) ListMyBooks(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    books, err := h.Svc.ListOwnedBooks(c.Request().Context(), userID)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": books})
}
