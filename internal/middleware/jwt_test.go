package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/book-exchange/internal/config"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.MapClaims) string {
    t.Helper()
    tok := jwt.NewWithClaims(method, claims)
    s, err := tok.SignedString([]byte(secret))
    require.NoError(t, err)
    return s
}

// runJWT pushes a request through JWTAuth and reports the resulting
// status code plus whatever user_id landed in the context.
func runJWT(t *testing.T, authHeader string) (int, interface{}) {
    t.Helper()
    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, "/v1/books", nil)
    if authHeader != "" {
        req.Header.Set("Authorization", authHeader)
    }
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)

    var captured interface{}
    h := JWTAuth(testSecret)(func(c echo.Context) error {
        captured = c.Get("user_id")
        return c.String(http.StatusOK, "ok")
    })
    require.NoError(t, h(c))
    return rec.Code, captured
}

func TestJWTAuthValidToken(t *testing.T) {
    raw := signToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{
        "sub": "42",
        "exp": time.Now().Add(time.Hour).Unix(),
    })
    code, uid := runJWT(t, "Bearer "+raw)
    assert.Equal(t, http.StatusOK, code)
    assert.Equal(t, "42", uid)
}

func TestJWTAuthMissingHeader(t *testing.T) {
    code, uid := runJWT(t, "")
    assert.Equal(t, http.StatusUnauthorized, code)
    assert.Nil(t, uid)
}

func TestJWTAuthWrongSecret(t *testing.T) {
    raw := signToken(t, "other-secret", jwt.SigningMethodHS256, jwt.MapClaims{"sub": "42"})
    code, uid := runJWT(t, "Bearer "+raw)
    assert.Equal(t, http.StatusUnauthorized, code)
    assert.Nil(t, uid)
}

func TestJWTAuthExpiredToken(t *testing.T) {
    raw := signToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{
        "sub": "42",
        "exp": time.Now().Add(-time.Hour).Unix(),
    })
    code, uid := runJWT(t, "Bearer "+raw)
    assert.Equal(t, http.StatusUnauthorized, code)
    assert.Nil(t, uid)
}

func TestJWTAuthMissingSubject(t *testing.T) {
    raw := signToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"role": "user"})
    code, uid := runJWT(t, "Bearer "+raw)
    assert.Equal(t, http.StatusUnauthorized, code)
    assert.Nil(t, uid)
}

func TestTokenBucketDisabledWithoutRedis(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodPost, "/v1/books", nil)
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)

    mw := NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil)
    h := mw(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
    require.NoError(t, h(c))
    assert.Equal(t, http.StatusOK, rec.Code)
}
