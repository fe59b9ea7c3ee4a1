package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"vendingstore/internal/middleware"
	"vendingstore/internal/model"
	"vendingstore/internal/repository"
)

// TransactionHandler serves purchase history and the balance
// endpoint. Regular users only see their own rows; admins see all.
type TransactionHandler struct {
	Transactions *repository.TransactionRepo
	Users        *repository.UserRepo
}

// NewTransactionHandler constructs a TransactionHandler.
func NewTransactionHandler(transactions *repository.TransactionRepo, users *repository.UserRepo) *TransactionHandler {
	return &TransactionHandler{Transactions: transactions, Users: users}
}

type transactionResp struct {
	ID              uint64  `json:"id"`
	UserID          uint64  `json:"user_id"`
	Username        string  `json:"username"`
	ProductID       uint64  `json:"product_id"`
	ProductName     string  `json:"product_name"`
	Quantity        int64   `json:"quantity"`
	UnitPrice       string  `json:"unit_price"`
	TotalAmount     string  `json:"total_amount"`
	Status          string  `json:"status"`
	PaymentMethod   string  `json:"payment_method"`
	Notes           *string `json:"notes"`
	TransactionDate string  `json:"transaction_date"`
}

func toTransactionResp(d repository.TransactionDetail) transactionResp {
	return transactionResp{
		ID:              d.ID,
		UserID:          d.UserID,
		Username:        d.Username,
		ProductID:       d.ProductID,
		ProductName:     d.ProductName,
		Quantity:        d.Quantity,
		UnitPrice:       d.UnitPrice.StringFixed(2),
		TotalAmount:     d.TotalAmount.StringFixed(2),
		Status:          d.Status,
		PaymentMethod:   d.PaymentMethod,
		Notes:           d.Notes,
		TransactionDate: d.TransactionDate.UTC().Format("2006-01-02 15:04:05"),
	}
}

// Index lists transactions newest first: the caller's own, or
// everyone's when the caller is an admin.
func (h *TransactionHandler) Index(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	page := queryInt(c, "page", 1)
	perPage := queryInt(c, "per_page", 10)
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	var userID *uint64
	if id.Role != model.RoleAdmin {
		userID = &id.UserID
	}
	items, total, err := h.Transactions.Paginate(c.Request().Context(), page, perPage, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	out := make([]transactionResp, 0, len(items))
	for _, d := range items {
		out = append(out, toTransactionResp(d))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":         out,
		"total":        total,
		"per_page":     perPage,
		"current_page": page,
	})
}

// Show returns one transaction to its owner or an admin.
func (h *TransactionHandler) Show(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	txID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	d, err := h.Transactions.GetByID(c.Request().Context(), txID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "transaction not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if d.UserID != id.UserID && id.Role != model.RoleAdmin {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, toTransactionResp(d))
}

// Balance returns the caller's current balance.
func (h *TransactionHandler) Balance(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	u, err := h.Users.GetByID(c.Request().Context(), id.UserID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"balance": u.Balance.StringFixed(2)})
}
