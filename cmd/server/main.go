package main // Entry point package

import (
    "log" // Logging library

    "github.com/joho/godotenv"    // .env bootstrap for local development
    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/iliyamo/book-exchange/internal/config"
    "github.com/iliyamo/book-exchange/internal/database"
    "github.com/iliyamo/book-exchange/internal/handler"
    "github.com/iliyamo/book-exchange/internal/queue"
    "github.com/iliyamo/book-exchange/internal/repository"
    "github.com/iliyamo/book-exchange/internal/router"
    "github.com/iliyamo/book-exchange/internal/service"
)

func main() {
    // Load .env when present; real deployments set the environment
    // directly and the file is simply absent.
    _ = godotenv.Load()

    cfg := config.Load()

    db, err := database.Open(cfg)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    // Redis is optional: a nil client disables rate limiting and the
    // feed cache but the API stays fully functional.
    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Printf("redis unavailable; rate limiting and response cache disabled")
    }

    books := repository.NewBookRepo(db)
    requests := repository.NewBorrowRequestRepo(db)
    coordinator := service.New(db, books, requests, queue.PublishLendingEvent)

    bookHandler := handler.NewBookHandler(coordinator)
    requestHandler := handler.NewRequestHandler(coordinator)

    e := echo.New()
    router.Register(e, bookHandler, requestHandler, cfg.JWTSecret, rdb)

    // Background consumer appending lending events to logs/lending.log.
    // It reconnects on its own and never takes the server down.
    go func() {
        if err := queue.StartLendingConsumer(); err != nil {
            log.Printf("lending consumer stopped: %v", err)
        }
    }()

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)

    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
