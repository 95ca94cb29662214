package handler

import (
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/book-exchange/internal/model"
    "github.com/iliyamo/book-exchange/internal/service"
)

// RequestHandler exposes the borrow-request endpoints: creating a
// request for a book, listing sent and incoming requests, and driving
// a request through approve/reject/return.  All mutations go through
// the lending coordinator so the book status and request status move
// together.
type RequestHandler struct {
    Svc *service.Coordinator
}

// NewRequestHandler constructs a RequestHandler.  The coordinator
// must be non-nil.
func NewRequestHandler(svc *service.Coordinator) *RequestHandler {
    if svc == nil {
        panic("nil coordinator passed to NewRequestHandler")
    }
    return &RequestHandler{Svc: svc}
}

// CreateRequest handles POST /v1/books/:id/requests.  The body must
// carry the requested loan length in days; it must be between 1 and
// the book's maximum.  Returns 201 Created with the PENDING request,
// 404 when the book does not exist, 409 when it is not available, and
// 400 when the duration is out of range or the caller owns the book.
func (h *RequestHandler) CreateRequest(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    bookID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || bookID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book id"})
    }
    var body struct {
        DurationDays uint32 `json:"duration_days"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    req, err := h.Svc.RequestToBorrow(c.Request().Context(), bookID, userID, body.DurationDays)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"item": req})
}

// SentRequests handles GET /v1/users/:id/requests.  Users may only
// read their own sent requests; any other id yields 403.  The
// optional ?status= query narrows the list to one request status so
// the profile tabs (borrowing, pending, declined) can each fetch
// exactly what they show; omitting it returns all.
func (h *RequestHandler) SentRequests(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    pathID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || pathID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
    }
    if pathID != userID {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }
    status := model.RequestStatus(c.QueryParam("status"))
    switch status {
    case "", model.RequestPending, model.RequestApproved, model.RequestRejected, model.RequestReturned:
    default:
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status filter"})
    }
    items, err := h.Svc.SentRequests(c.Request().Context(), userID, status)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// IncomingRequests handles GET /v1/users/:id/incoming-requests.  It
// lists requests targeting the caller's books, newest first.  The
// optional ?status= query narrows the list to one request status
// (e.g. PENDING for the approval inbox); omitting it returns all.
func (h *RequestHandler) IncomingRequests(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    pathID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || pathID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
    }
    if pathID != userID {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }
    status := model.RequestStatus(c.QueryParam("status"))
    switch status {
    case "", model.RequestPending, model.RequestApproved, model.RequestRejected, model.RequestReturned:
    default:
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status filter"})
    }
    items, err := h.Svc.IncomingRequests(c.Request().Context(), userID, status)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ApplyAction handles PATCH /v1/requests/:id with a body of
// {"action": "approve"|"reject"|"return"}.  Approve and reject belong
// to the book's owner; return may come from the owner or the
// borrower.  The response carries the updated request.  409 responses
// distinguish invalid_state (the request already moved on) from
// conflict (a concurrent transition won the race) in the code field.
func (h *RequestHandler) ApplyAction(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    requestID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || requestID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
    }
    var body struct {
        Action string `json:"action"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    action := model.Action(body.Action)
    if _, ok := action.TargetStatus(); !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "action must be approve, reject or return"})
    }
    req, err := h.Svc.ApplyAction(c.Request().Context(), requestID, action, userID)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"item": req})
}
