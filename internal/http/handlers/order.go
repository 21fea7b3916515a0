package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/marketplace-backend/internal/domain"
	domainagg "github.com/yungbote/marketplace-backend/internal/domain/aggregates"
	"github.com/yungbote/marketplace-backend/internal/http/response"
	"github.com/yungbote/marketplace-backend/internal/services"
)

type OrderHandler struct {
	catalog     services.CatalogService
	marketplace domainagg.MarketplaceAggregate
}

func NewOrderHandler(catalog services.CatalogService, marketplace domainagg.MarketplaceAggregate) *OrderHandler {
	return &OrderHandler{catalog: catalog, marketplace: marketplace}
}

// POST /api/orders
//
// Only admins may place an order on behalf of another customer email.
func (h *OrderHandler) Create(c *gin.Context) {
	rd, ok := caller(c)
	if !ok {
		return
	}
	var req types.OrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if strings.TrimSpace(req.CustomerEmail) == "" || !rd.Admin {
		req.CustomerEmail = rd.Email
	}
	order, err := h.marketplace.CreateOrder(c.Request.Context(), domainagg.CreateOrderInput{
		Order:          req,
		IdempotencyKey: idempotencyKey(c),
	})
	if err != nil {
		response.RespondFailure(c, "create_order_failed", err)
		return
	}
	response.RespondCreated(c, gin.H{"order": order})
}

// POST /api/checkout
func (h *OrderHandler) Checkout(c *gin.Context) {
	rd, ok := caller(c)
	if !ok {
		return
	}
	var req struct {
		Billing types.BillingInfo `json:"billing"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	order, err := h.marketplace.Checkout(c.Request.Context(), domainagg.CheckoutInput{
		AccountEmail:   rd.Email,
		Billing:        req.Billing,
		IdempotencyKey: idempotencyKey(c),
	})
	if err != nil {
		response.RespondFailure(c, "checkout_failed", err)
		return
	}
	response.RespondCreated(c, gin.H{"order": order})
}

// GET /api/orders
func (h *OrderHandler) List(c *gin.Context) {
	rd, ok := caller(c)
	if !ok {
		return
	}
	out, err := h.catalog.ListOrders(c.Request.Context(), rd.AccountID)
	if err != nil {
		response.RespondFailure(c, "list_orders_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"orders": out})
}

// DELETE /api/admin/orders/:id
func (h *OrderHandler) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	order, err := h.marketplace.DeleteOrder(c.Request.Context(), id)
	if err != nil {
		response.RespondFailure(c, "delete_order_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"order": order})
}
