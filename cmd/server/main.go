package main

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/shopspring/decimal"

	"vendingstore/internal/config"
	"vendingstore/internal/database"
	"vendingstore/internal/handler"
	"vendingstore/internal/middleware"
	"vendingstore/internal/queue"
	"vendingstore/internal/repository"
	"vendingstore/internal/router"
	"vendingstore/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env wins

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	initialBalance, err := decimal.NewFromString(cfg.InitialBalance)
	if err != nil {
		log.Fatalf("invalid INITIAL_BALANCE %q: %v", cfg.InitialBalance, err)
	}

	// Repositories and the transactional ledger.
	products := repository.NewProductRepo(db)
	users := repository.NewUserRepo(db)
	transactions := repository.NewTransactionRepo(db)
	tokens := repository.NewTokenRepo(db)
	ledger := repository.NewSQLLedger(db, products, users, transactions)

	// Services.
	tokenSvc := service.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer,
		time.Duration(cfg.AccessTTLSecs)*time.Second,
		time.Duration(cfg.RefreshTTLDays)*24*time.Hour,
		tokens)
	purchaseSvc := service.NewPurchaseService(ledger, service.DenyAdminPurchases())

	// Events are optional; without a broker URL purchases simply
	// don't publish.
	var events handler.EventPublisher
	if cfg.RabbitURL != "" {
		events = queue.NewPublisher()
		go func() {
			if err := queue.StartPurchaseConsumer(); err != nil {
				log.Printf("purchase consumer stopped: %v", err)
			}
		}()
	}

	// Handlers.
	authH := handler.NewAuthHandler(users, tokenSvc, cfg.BcryptCost, initialBalance)
	productH := handler.NewProductHandler(products)
	purchaseH := handler.NewPurchaseHandler(purchaseSvc, events)
	transactionH := handler.NewTransactionHandler(transactions, users)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	// Redis-backed middleware for the public catalog; both become
	// pass-throughs when Redis is unreachable.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and caching disabled")
	}
	publicMW := []echo.MiddlewareFunc{
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	}

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, tokenSvc)
	router.RegisterCatalog(e, productH, tokenSvc, publicMW...)
	router.RegisterPurchases(e, purchaseH, transactionH, tokenSvc)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
