package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"vendingstore/internal/handler"
	"vendingstore/internal/middleware"
	"vendingstore/internal/model"
	"vendingstore/internal/service"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check, used by load balancers
// and monitoring to verify the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication endpoints. Register,
// login, refresh and logout live under /api/auth and need no session;
// /api/auth/me requires a bearer token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, tokens *service.TokenService) {
	g := e.Group("/api/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Refresh rotates: the presented refresh token is revoked and a
	// new pair issued.
	g.POST("/refresh", a.Refresh)
	// Logout accepts a refresh token in the body, or a bearer token
	// to revoke every session at once. No middleware so that a body
	// token works without a live access token.
	g.POST("/logout", a.Logout)

	g.GET("/me", a.Me, middleware.BearerAuth(tokens))
}

// RegisterCatalog registers the product catalog. Public reads are
// wrapped in the rate limiter and response cache; writes are admin
// only and never cached.
func RegisterCatalog(e *echo.Echo, p *handler.ProductHandler, tokens *service.TokenService, public ...echo.MiddlewareFunc) {
	g := e.Group("/api/products", public...)
	g.GET("", p.Index)
	g.GET("/search", p.Search)
	g.GET("/:id", p.Show)

	admin := e.Group("/api/products",
		middleware.BearerAuth(tokens),
		middleware.RequireRole(model.RoleAdmin))
	admin.POST("", p.Store)
	admin.PUT("/:id", p.Update)
	admin.DELETE("/:id", p.Destroy)
	admin.PATCH("/:id/stock", p.AdjustStock)
}

// RegisterPurchases registers the authenticated purchase and history
// endpoints.
func RegisterPurchases(e *echo.Echo, pu *handler.PurchaseHandler, tr *handler.TransactionHandler, tokens *service.TokenService) {
	auth := e.Group("/api", middleware.BearerAuth(tokens))
	auth.POST("/products/:id/purchase", pu.Purchase)
	auth.GET("/transactions", tr.Index)
	auth.GET("/transactions/:id", tr.Show)
	auth.GET("/balance", tr.Balance)
}
