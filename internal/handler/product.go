package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"vendingstore/internal/model"
	"vendingstore/internal/repository"
)

// ProductHandler serves the catalog endpoints. The public routes only
// ever expose active products; admin routes see everything.
type ProductHandler struct {
	Products *repository.ProductRepo
}

// NewProductHandler constructs a ProductHandler.
func NewProductHandler(products *repository.ProductRepo) *ProductHandler {
	return &ProductHandler{Products: products}
}

type productResp struct {
	ID                uint64  `json:"id"`
	Name              string  `json:"name"`
	Description       *string `json:"description"`
	Price             string  `json:"price"`
	QuantityAvailable int64   `json:"quantity_available"`
	ImageURL          *string `json:"image_url"`
	IsActive          bool    `json:"is_active"`
}

func toProductResp(p model.Product) productResp {
	return productResp{
		ID:                p.ID,
		Name:              p.Name,
		Description:       p.Description,
		Price:             p.Price.StringFixed(2),
		QuantityAvailable: p.QuantityAvailable,
		ImageURL:          p.ImageURL,
		IsActive:          p.IsActive,
	}
}

func toProductResps(ps []model.Product) []productResp {
	out := make([]productResp, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProductResp(p))
	}
	return out
}

func queryInt(c echo.Context, name string, def int) int {
	if v := c.QueryParam(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Index lists active products one page at a time. page and per_page
// are clamped, sort is whitelisted by the repository.
func (h *ProductHandler) Index(c echo.Context) error {
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

	result, err := h.Products.Paginate(c.Request().Context(), repository.ProductPageQuery{
		Page:       page,
		PerPage:    perPage,
		SortBy:     c.QueryParam("sort"),
		SortDir:    c.QueryParam("dir"),
		ActiveOnly: true,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":         toProductResps(result.Items),
		"total":        result.Total,
		"per_page":     result.PerPage,
		"current_page": result.CurrentPage,
		"last_page":    result.LastPage,
		"from":         result.From,
		"to":           result.To,
	})
}

// Search matches active products by name or description.
func (h *ProductHandler) Search(c echo.Context) error {
	term := strings.TrimSpace(c.QueryParam("q"))
	if term == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "q required"})
	}
	items, err := h.Products.Search(c.Request().Context(), term)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": toProductResps(items)})
}

// Show returns one product. Inactive products are indistinguishable
// from missing ones on the public route.
func (h *ProductHandler) Show(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	p, err := h.Products.GetByID(c.Request().Context(), id)
	if err != nil || !p.IsActive {
		if err == nil || errors.Is(err, repository.ErrProductNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toProductResp(p))
}

// ----- admin endpoints -----

type productWriteReq struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       *string `json:"price"`
	Quantity    *int64  `json:"quantity_available"`
	ImageURL    *string `json:"image_url"`
	IsActive    *bool   `json:"is_active"`
}

// Store creates a product. Name, a positive price and a non-negative
// quantity are required.
func (h *ProductHandler) Store(c echo.Context) error {
	var req productWriteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" || req.Price == nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "name and price required"})
	}
	price, err := decimal.NewFromString(*req.Price)
	if err != nil || !price.IsPositive() {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "price must be a positive decimal"})
	}
	var quantity int64
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "quantity_available cannot be negative"})
		}
		quantity = *req.Quantity
	}

	p, err := h.Products.Create(c.Request().Context(),
		strings.TrimSpace(*req.Name), req.Description, price, quantity, req.ImageURL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create product failed"})
	}
	return c.JSON(http.StatusCreated, toProductResp(p))
}

// Update applies a partial product update.
func (h *ProductHandler) Update(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req productWriteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	upd := repository.ProductUpdate{
		Name:        req.Name,
		Description: req.Description,
		Quantity:    req.Quantity,
		ImageURL:    req.ImageURL,
		IsActive:    req.IsActive,
	}
	if req.Price != nil {
		price, err := decimal.NewFromString(*req.Price)
		if err != nil || !price.IsPositive() {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "price must be a positive decimal"})
		}
		upd.Price = &price
	}
	if req.Quantity != nil && *req.Quantity < 0 {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "quantity_available cannot be negative"})
	}

	p, err := h.Products.Update(c.Request().Context(), id, upd)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update product failed"})
	}
	return c.JSON(http.StatusOK, toProductResp(p))
}

// Destroy soft-deletes a product; it disappears from the public
// catalog but historical transactions keep referencing it.
func (h *ProductHandler) Destroy(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if err := h.Products.Deactivate(c.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete product failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

type stockReq struct {
	Delta int64 `json:"delta"`
}

// AdjustStock shifts stock by a delta (restock or write-off). The
// repository guard rejects shifts that would take stock negative.
func (h *ProductHandler) AdjustStock(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req stockReq
	if err := c.Bind(&req); err != nil || req.Delta == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "non-zero delta required"})
	}
	if err := h.Products.AdjustQuantity(c.Request().Context(), id, req.Delta); err != nil {
		if errors.Is(err, repository.ErrQuantityBelowZero) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "stock cannot go below zero"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "adjust stock failed"})
	}
	p, err := h.Products.GetByID(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toProductResp(p))
}
