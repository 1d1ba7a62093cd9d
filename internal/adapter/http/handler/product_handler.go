package handler

import (
	"vending-kernel/internal/adapter/http/dto"
	"vending-kernel/internal/core/ports"
	"vending-kernel/pkg/apperror"
	"vending-kernel/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ProductHandler serves the catalog.
type ProductHandler struct {
	catalog  ports.CatalogService
	currency dto.Currency
}

func NewProductHandler(catalog ports.CatalogService, currency dto.Currency) *ProductHandler {
	return &ProductHandler{catalog: catalog, currency: currency}
}

// ListProducts handles GET /api/v1/products.
func (h *ProductHandler) ListProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	items := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		items = append(items, dto.NewProductResponse(&products[i], h.currency))
	}
	response.List(c, items, len(items))
}

// GetProduct handles GET /api/v1/products/:id.
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("product id must be a UUID"))
		return
	}
	p, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewProductResponse(p, h.currency))
}
