package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "fmt"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/book-exchange/internal/config"
)

// bodyCapture duplicates the response body into a buffer while
// forwarding it to the client, up to a size limit.
type bodyCapture struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    size   int64
    limit  int64
}

func (w *bodyCapture) WriteHeader(code int) {
    w.status = code
    w.ResponseWriter.WriteHeader(code)
}

func (w *bodyCapture) Write(b []byte) (int, error) {
    if w.limit <= 0 || w.size+int64(len(b)) <= w.limit {
        w.buf.Write(b)
    }
    w.size += int64(len(b))
    return w.ResponseWriter.Write(b)
}

// cacheKey builds the Redis key for a request.  The acting user is
// always part of the key: the book feed excludes the caller's own
// listings, so two users asking the same route must never share an
// entry.
func cacheKey(prefix string, c echo.Context) string {
    who := "anon"
    if v := c.Get("user_id"); v != nil {
        who = fmt.Sprint(v)
    }
    tail := strings.Join([]string{who, c.Path(), c.Request().URL.RawQuery}, "|")
    sum := sha1.Sum([]byte(tail))
    return fmt.Sprintf("%s:%x", prefix, sum[:])
}

// encodeEntry packs [4 bytes status][body].
func encodeEntry(status int, body []byte) []byte {
    out := make([]byte, 4+len(body))
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    copy(out[4:], body)
    return out
}

func decodeEntry(bs []byte) (status int, body []byte, ok bool) {
    if len(bs) < 4 {
        return 0, nil, false
    }
    return int(binary.BigEndian.Uint32(bs[0:4])), bs[4:], true
}

// NewResponseCache caches successful JSON responses in Redis for the
// configured TTL.  It is applied to the book browse feed only; the
// short TTL bounds how stale an availability flip can look to
// browsers.  Disabled config or a nil Redis client yields a no-op
// middleware, and only methods listed in the config (normally GET)
// are considered.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return func(c echo.Context) error { return next(c) } }
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
                return next(c)
            }

            ctx := c.Request().Context()
            key := cacheKey(cfg.Prefix, c)

            if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
                if status, body, ok := decodeEntry(bs); ok {
                    c.Response().Header().Set("X-Cache", "HIT")
                    return c.JSONBlob(status, body)
                }
            }

            cw := &bodyCapture{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(cfg.MaxBodyBytes)}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }

            // Only successful, size-bounded responses are worth keeping.
            if cw.status == http.StatusOK && (cw.limit <= 0 || cw.size <= cw.limit) {
                entry := encodeEntry(cw.status, cw.buf.Bytes())
                _ = rdb.SetEx(context.Background(), key, entry, cfg.TTL).Err()
            }
            return nil
        }
    }
}
