package handlers

import (
	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/marketplace-backend/internal/domain/aggregates"
	"github.com/yungbote/marketplace-backend/internal/http/response"
	"github.com/yungbote/marketplace-backend/internal/services"
)

type AccountHandler struct {
	catalog     services.CatalogService
	marketplace domainagg.MarketplaceAggregate
}

func NewAccountHandler(catalog services.CatalogService, marketplace domainagg.MarketplaceAggregate) *AccountHandler {
	return &AccountHandler{catalog: catalog, marketplace: marketplace}
}

// GET /api/me
func (h *AccountHandler) GetMe(c *gin.Context) {
	rd, ok := caller(c)
	if !ok {
		return
	}
	view, err := h.catalog.GetAccountView(c.Request.Context(), rd.AccountID)
	if err != nil {
		response.RespondFailure(c, "load_account_failed", err)
		return
	}
	response.RespondOK(c, view)
}

// DELETE /api/me
func (h *AccountHandler) DeleteMe(c *gin.Context) {
	rd, ok := caller(c)
	if !ok {
		return
	}
	res, err := h.marketplace.DeleteAccount(c.Request.Context(), rd.AccountID)
	if err != nil {
		response.RespondFailure(c, "delete_account_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"account":          res.Account,
		"deleted_products": res.DeletedProducts,
		"deleted_orders":   res.DeletedOrders,
	})
}
