package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/marketplace-backend/internal/domain/aggregates"
	"github.com/yungbote/marketplace-backend/internal/http/response"
)

type CartHandler struct {
	marketplace domainagg.MarketplaceAggregate
}

func NewCartHandler(marketplace domainagg.MarketplaceAggregate) *CartHandler {
	return &CartHandler{marketplace: marketplace}
}

// POST /api/cart
func (h *CartHandler) Add(c *gin.Context) {
	rd, ok := caller(c)
	if !ok {
		return
	}
	var req struct {
		ProductName string `json:"product_name"`
		Quantity    int    `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	item, err := h.marketplace.AddCartItem(c.Request.Context(), domainagg.AddCartItemInput{
		AccountEmail: rd.Email,
		ProductName:  req.ProductName,
		Quantity:     req.Quantity,
	})
	if err != nil {
		response.RespondFailure(c, "add_cart_item_failed", err)
		return
	}
	response.RespondCreated(c, gin.H{"item": item})
}

// POST /api/cart/:itemId/increment
func (h *CartHandler) Increment(c *gin.Context) {
	h.adjust(c, h.marketplace.IncrementCartItem, "increment_cart_item_failed")
}

// POST /api/cart/:itemId/decrement
func (h *CartHandler) Decrement(c *gin.Context) {
	h.adjust(c, h.marketplace.DecrementCartItem, "decrement_cart_item_failed")
}

func (h *CartHandler) adjust(c *gin.Context, fn func(ctx context.Context, in domainagg.CartItemRef) (domainagg.CartItemResult, error), code string) {
	rd, ok := caller(c)
	if !ok {
		return
	}
	itemID, ok := uuidParam(c, "itemId")
	if !ok {
		return
	}
	res, err := fn(c.Request.Context(), domainagg.CartItemRef{AccountEmail: rd.Email, ItemID: itemID})
	if err != nil {
		response.RespondFailure(c, code, err)
		return
	}
	response.RespondOK(c, gin.H{"item": res.Item, "removed": res.Removed})
}

// DELETE /api/cart/:itemId
func (h *CartHandler) Delete(c *gin.Context) {
	rd, ok := caller(c)
	if !ok {
		return
	}
	itemID, ok := uuidParam(c, "itemId")
	if !ok {
		return
	}
	item, err := h.marketplace.DeleteCartItem(c.Request.Context(), domainagg.CartItemRef{AccountEmail: rd.Email, ItemID: itemID})
	if err != nil {
		response.RespondFailure(c, "delete_cart_item_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"item": item})
}
