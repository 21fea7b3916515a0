package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/marketplace-backend/internal/http/response"
	"github.com/yungbote/marketplace-backend/internal/services"
)

type ProductHandler struct {
	catalog services.CatalogService
}

func NewProductHandler(catalog services.CatalogService) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

// GET /api/products?genre=&limit=&offset=
func (h *ProductHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	out, err := h.catalog.ListProducts(c.Request.Context(), c.Query("genre"), limit, offset)
	if err != nil {
		response.RespondFailure(c, "list_products_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"products": out})
}

// GET /api/products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	p, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		response.RespondFailure(c, "load_product_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"product": p})
}
