package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/shop-auth-api/internal/apperr"
	"github.com/iliyamo/shop-auth-api/internal/model"
	"github.com/iliyamo/shop-auth-api/internal/repository"
)

const (
	cacheProductList = "public, s-maxage=60, stale-while-revalidate=120"
	cacheProductItem = "public, s-maxage=120, stale-while-revalidate=240"
)

// ProductHandler serves the public catalog.
type ProductHandler struct {
	Products repository.ProductStore
}

func NewProductHandler(products repository.ProductStore) *ProductHandler {
	return &ProductHandler{Products: products}
}

func invalidCategory() error {
	return apperr.NewBadInput("Invalid category. Allowed: " + strings.Join(model.Categories, ", "))
}

// List returns all products, optionally filtered by ?category and
// ?minAvailability.
func (h *ProductHandler) List(c echo.Context) error {
	f := model.ProductFilter{Category: strings.ToLower(strings.TrimSpace(c.QueryParam("category")))}
	if f.Category != "" && !model.IsCategory(f.Category) {
		return invalidCategory()
	}
	if raw := c.QueryParam("minAvailability"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return apperr.NewBadInput("minAvailability must be a non-negative integer")
		}
		f.MinAvailability = &n
	}
	return h.list(c, f)
}

// ByCategory returns the products of :category.
func (h *ProductHandler) ByCategory(c echo.Context) error {
	category := strings.ToLower(c.Param("category"))
	if !model.IsCategory(category) {
		return invalidCategory()
	}
	return h.list(c, model.ProductFilter{Category: category})
}

func (h *ProductHandler) list(c echo.Context, f model.ProductFilter) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	products, err := h.Products.List(ctx, f)
	if err != nil {
		return apperr.NewInternal(err)
	}
	c.Response().Header().Set("Cache-Control", cacheProductList)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "count": len(products), "products": products})
}

// Get returns the product with productId :product.
func (h *ProductHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	p, err := h.Products.FindByID(ctx, c.Param("product"))
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NewNotFound("Product not found")
	case err != nil:
		return apperr.NewInternal(err)
	}
	c.Response().Header().Set("Cache-Control", cacheProductItem)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "product": p})
}
