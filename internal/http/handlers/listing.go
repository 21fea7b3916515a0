package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/marketplace-backend/internal/domain"
	domainagg "github.com/yungbote/marketplace-backend/internal/domain/aggregates"
	"github.com/yungbote/marketplace-backend/internal/http/response"
)

type ListingHandler struct {
	marketplace domainagg.MarketplaceAggregate
}

func NewListingHandler(marketplace domainagg.MarketplaceAggregate) *ListingHandler {
	return &ListingHandler{marketplace: marketplace}
}

// POST /api/listings
func (h *ListingHandler) Create(c *gin.Context) {
	rd, ok := caller(c)
	if !ok {
		return
	}
	var req types.ProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	product, err := h.marketplace.AddListing(c.Request.Context(), domainagg.AddListingInput{
		AccountID:      rd.AccountID,
		Product:        req,
		IdempotencyKey: idempotencyKey(c),
	})
	if err != nil {
		response.RespondFailure(c, "add_listing_failed", err)
		return
	}
	response.RespondCreated(c, gin.H{"product": product})
}

// PATCH /api/listings/:id
func (h *ListingHandler) Update(c *gin.Context) {
	rd, ok := caller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	// Only whitelisted fields are accepted; anything else is a 400.
	var patch types.ProductPatch
	if !bindStrictJSON(c, &patch) {
		return
	}
	product, err := h.marketplace.UpdateListing(c.Request.Context(), domainagg.UpdateListingInput{
		AccountID: rd.AccountID,
		ProductID: id,
		Patch:     patch,
	})
	if err != nil {
		response.RespondFailure(c, "update_listing_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"product": product})
}

// DELETE /api/listings/:id
func (h *ListingHandler) Delete(c *gin.Context) {
	rd, ok := caller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	res, err := h.marketplace.RemoveListing(c.Request.Context(), domainagg.RemoveListingInput{
		AccountID: rd.AccountID,
		ProductID: id,
	})
	if err != nil {
		response.RespondFailure(c, "remove_listing_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"product": res.Product, "warnings": res.Warnings})
}
