package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4" // Echo web framework used for routing
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/book-exchange/internal/config"
    "github.com/iliyamo/book-exchange/internal/handler"
    "github.com/iliyamo/book-exchange/internal/middleware"
)

// Register wires every route of the lending API onto the provided
// Echo instance.  All /v1 routes require a valid bearer token issued
// by the external identity provider; the health check stays open for
// load balancers.  Mutating routes additionally sit behind the Redis
// rate limiter, and the browse feed behind the response cache.  rdb
// may be nil, in which case both middlewares are no-ops.
func Register(e *echo.Echo, books *handler.BookHandler, requests *handler.RequestHandler, jwtSecret string, rdb *redis.Client) {
    // Liveness probe for load balancers and monitoring.
    e.GET("/healthz", handler.Health)

    limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
    cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb)

    // Every endpoint below operates on behalf of an authenticated
    // user, so the whole group runs behind JWTAuth.
    v1 := e.Group("/v1")
    v1.Use(middleware.JWTAuth(jwtSecret))

    // Catalog: create and browse books.  The feed response is cached
    // per user for a short TTL.
    v1.POST("/books", books.CreateBook, limiter)
    v1.GET("/books", books.ListBooks, cache)
    v1.GET("/books/:id", books.GetBook)
    v1.GET("/my-books", books.ListMyBooks)

    // Borrow requests: request a book, list sent/incoming requests,
    // and drive a request through approve/reject/return.
    v1.POST("/books/:id/requests", requests.CreateRequest, limiter)
    v1.GET("/users/:id/requests", requests.SentRequests)
    v1.GET("/users/:id/incoming-requests", requests.IncomingRequests)
    v1.PATCH("/requests/:id", requests.ApplyAction, limiter)
}
