package app

import (
	"gorm.io/gorm"

	httpH "github.com/yungbote/marketplace-backend/internal/http/handlers"
	"github.com/yungbote/marketplace-backend/internal/platform/logger"
)

type Handlers struct {
	Health      *httpH.HealthHandler
	Auth        *httpH.AuthHandler
	Account     *httpH.AccountHandler
	Listing     *httpH.ListingHandler
	Cart        *httpH.CartHandler
	Order       *httpH.OrderHandler
	Product     *httpH.ProductHandler
	Consistency *httpH.ConsistencyHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:      httpH.NewHealthHandler(db),
		Auth:        httpH.NewAuthHandler(services.Auth),
		Account:     httpH.NewAccountHandler(services.Catalog, services.Marketplace),
		Listing:     httpH.NewListingHandler(services.Marketplace),
		Cart:        httpH.NewCartHandler(services.Marketplace),
		Order:       httpH.NewOrderHandler(services.Catalog, services.Marketplace),
		Product:     httpH.NewProductHandler(services.Catalog),
		Consistency: httpH.NewConsistencyHandler(services.Consistency),
	}
}
