package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/marketplace-backend/internal/http/handlers"
	httpMW "github.com/yungbote/marketplace-backend/internal/http/middleware"
	"github.com/yungbote/marketplace-backend/internal/observability"
	"github.com/yungbote/marketplace-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	AuthHandler        *httpH.AuthHandler
	AuthMiddleware     *httpMW.AuthMiddleware
	AccountHandler     *httpH.AccountHandler
	ListingHandler     *httpH.ListingHandler
	CartHandler        *httpH.CartHandler
	OrderHandler       *httpH.OrderHandler
	ProductHandler     *httpH.ProductHandler
	ConsistencyHandler *httpH.ConsistencyHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Ops
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		// Auth (public)
		if cfg.AuthHandler != nil {
			api.POST("/register", cfg.AuthHandler.Register)
			api.POST("/login", cfg.AuthHandler.Login)
		}

		// Catalog (public)
		if cfg.ProductHandler != nil {
			api.GET("/products", cfg.ProductHandler.List)
			api.GET("/products/:id", cfg.ProductHandler.Get)
		}
	}

	protected := api.Group("/")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
	}
	{
		// Account (Me)
		if cfg.AccountHandler != nil {
			protected.GET("/me", cfg.AccountHandler.GetMe)
			protected.DELETE("/me", cfg.AccountHandler.DeleteMe)
		}

		// Listings
		if cfg.ListingHandler != nil {
			protected.POST("/listings", cfg.ListingHandler.Create)
			protected.PATCH("/listings/:id", cfg.ListingHandler.Update)
			protected.DELETE("/listings/:id", cfg.ListingHandler.Delete)
		}

		// Cart
		if cfg.CartHandler != nil {
			protected.POST("/cart", cfg.CartHandler.Add)
			protected.POST("/cart/:itemId/increment", cfg.CartHandler.Increment)
			protected.POST("/cart/:itemId/decrement", cfg.CartHandler.Decrement)
			protected.DELETE("/cart/:itemId", cfg.CartHandler.Delete)
		}

		// Orders
		if cfg.OrderHandler != nil {
			protected.POST("/orders", cfg.OrderHandler.Create)
			protected.GET("/orders", cfg.OrderHandler.List)
			protected.POST("/checkout", cfg.OrderHandler.Checkout)
		}
	}

	admin := protected.Group("/admin")
	if cfg.AuthMiddleware != nil {
		admin.Use(cfg.AuthMiddleware.RequireAdmin())
	}
	{
		if cfg.OrderHandler != nil {
			admin.DELETE("/orders/:id", cfg.OrderHandler.Delete)
		}
		if cfg.ConsistencyHandler != nil {
			admin.POST("/consistency/check", cfg.ConsistencyHandler.Check)
			admin.GET("/consistency/runs", cfg.ConsistencyHandler.Runs)
			admin.GET("/consistency/latest", cfg.ConsistencyHandler.Latest)
		}
	}

	return r
}
