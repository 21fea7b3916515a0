package app

import (
	httpapi "github.com/yungbote/marketplace-backend/internal/http"
	"github.com/yungbote/marketplace-backend/internal/observability"
	"github.com/yungbote/marketplace-backend/internal/platform/logger"
)

func routerConfig(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) httpapi.RouterConfig {
	rc := httpapi.RouterConfig{
		Log:                log,
		Metrics:            metrics,
		CORSOrigins:        cfg.HTTP.CORSOrigins,
		AuthHandler:        handlers.Auth,
		AuthMiddleware:     middleware.Auth,
		AccountHandler:     handlers.Account,
		ListingHandler:     handlers.Listing,
		CartHandler:        handlers.Cart,
		OrderHandler:       handlers.Order,
		ProductHandler:     handlers.Product,
		ConsistencyHandler: handlers.Consistency,
		HealthHandler:      handlers.Health,
	}
	if cfg.Otel.Enabled {
		rc.ServiceName = cfg.Otel.ServiceName
	}
	return rc
}
