package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"vendingstore/internal/middleware"
	"vendingstore/internal/queue"
	"vendingstore/internal/service"
)

// EventPublisher is what the purchase handler needs from the broker.
// A nil publisher disables events entirely.
type EventPublisher interface {
	PurchaseCompleted(ctx context.Context, event queue.PurchaseCompletedEvent) error
}

// PurchaseHandler exposes the buy-with-balance workflow over HTTP.
type PurchaseHandler struct {
	Purchases *service.PurchaseService
	Events    EventPublisher
}

// NewPurchaseHandler constructs a PurchaseHandler. events may be nil.
func NewPurchaseHandler(purchases *service.PurchaseService, events EventPublisher) *PurchaseHandler {
	return &PurchaseHandler{Purchases: purchases, Events: events}
}

type purchaseReq struct {
	Quantity *int64 `json:"quantity"`
}

// Purchase handles POST /api/products/:id/purchase. Quantity defaults
// to 1 when the body omits it. Failures answer {success:false, error}
// with a status matching the error kind; unexpected causes are logged
// and answered generically.
func (h *PurchaseHandler) Purchase(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	productID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid product id"})
	}

	var req purchaseReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid body"})
	}
	quantity := int64(1)
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	result, err := h.Purchases.Purchase(c.Request().Context(), id.UserID, productID, quantity)
	if err != nil {
		return h.purchaseError(c, err)
	}

	if h.Events != nil {
		// Best effort: the purchase already committed, a broker
		// hiccup must not fail the response.
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = h.Events.PurchaseCompleted(ctx, queue.PurchaseCompletedEvent{
			TransactionID: result.TransactionID,
			UserID:        id.UserID,
			Username:      id.Username,
			ProductID:     result.ProductID,
			ProductName:   result.ProductName,
			Quantity:      result.Quantity,
			UnitPrice:     result.UnitPrice.StringFixed(2),
			TotalAmount:   result.TotalAmount.StringFixed(2),
			NewBalance:    result.NewBalance.StringFixed(2),
			CompletedAt:   time.Now().UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Purchase successful!",
		"data": echo.Map{
			"transaction_id": result.TransactionID,
			"product": echo.Map{
				"id":   result.ProductID,
				"name": result.ProductName,
			},
			"quantity":     result.Quantity,
			"unit_price":   result.UnitPrice.StringFixed(2),
			"total_amount": result.TotalAmount.StringFixed(2),
			"new_balance":  result.NewBalance.StringFixed(2),
		},
	})
}

func (h *PurchaseHandler) purchaseError(c echo.Context, err error) error {
	fail := func(status int, msg string) error {
		return c.JSON(status, echo.Map{"success": false, "error": msg})
	}

	var stockErr *service.InsufficientStockError
	var balanceErr *service.InsufficientBalanceError
	switch {
	case errors.Is(err, service.ErrInvalidQuantity):
		return fail(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrAccountNotFound):
		return fail(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAdminPurchase):
		return fail(http.StatusForbidden, err.Error())
	case errors.As(err, &stockErr), errors.As(err, &balanceErr),
		errors.Is(err, service.ErrProductUnavailable):
		return fail(http.StatusBadRequest, err.Error())
	}
	// Integrity failures (gate trips inside the transaction) and
	// unexpected causes stay opaque: the rollback already happened,
	// the client just retries.
	c.Logger().Errorf("purchase failed: %v", err)
	return fail(http.StatusInternalServerError, "Purchase failed. Please try again.")
}
