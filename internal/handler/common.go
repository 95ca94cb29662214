package handler // handler defines http handlers

import (
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/book-exchange/internal/repository"
)

// getUserID extracts the user_id from echo.Context and converts it to
// uint64.  The JWT middleware stores the token subject under this key;
// the claim type depends on how the token was encoded, hence the
// type switch.
func getUserID(c echo.Context) (uint64, error) {
    v := c.Get("user_id")
    switch t := v.(type) {
    case uint64:
        return t, nil
    case int:
        return uint64(t), nil
    case int64:
        return uint64(t), nil
    case float64:
        return uint64(t), nil
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

// respondError maps the sentinel errors of the repository and service
// layers to HTTP responses.  Each failure class keeps a distinct code
// so clients can tell an invalid transition (the request already moved
// on) apart from a lost race (someone else's approval landed first),
// even though both map to 409.
func respondError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, repository.ErrValidation):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "code": "validation"})
    case errors.Is(err, repository.ErrBookNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "book not found", "code": "not_found"})
    case errors.Is(err, repository.ErrRequestNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "borrow request not found", "code": "not_found"})
    case errors.Is(err, repository.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "code": "forbidden"})
    case errors.Is(err, repository.ErrInvalidState):
        return c.JSON(http.StatusConflict, echo.Map{"error": "transition not permitted from current state", "code": "invalid_state"})
    case errors.Is(err, repository.ErrConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": "conflicting concurrent change", "code": "conflict"})
    }
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error", "code": "internal"})
}
