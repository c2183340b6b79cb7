package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/media"
	"github.com/utafrali/marketplace/internal/payment"
	"github.com/utafrali/marketplace/internal/service"
	"github.com/utafrali/marketplace/pkg/health"
	"github.com/utafrali/marketplace/pkg/middleware"
)

// Services holds the collaborators the HTTP layer dispatches to.
type Services struct {
	Auth       *service.AuthService
	Catalog    *service.CatalogService
	Categories *service.CategoryService
	Orders     *service.OrderService
	Reviews    *service.ReviewService
	Admin      *service.AdminService
	Payments   *payment.Service
	// Webhooks verifies processor callbacks. Nil disables the webhook route.
	Webhooks payment.WebhookVerifier
	Media    *media.Service
}

// RouterConfig holds the edge settings of the HTTP surface.
type RouterConfig struct {
	ServiceName string
	Tokens      middleware.TokenValidator
	CORS        middleware.CORSConfig
	// AuthLimiter throttles /auth per client IP. Nil disables it.
	AuthLimiter *middleware.IPRateLimiter
	// CacheMaxAge is the public cache lifetime of anonymous catalog reads.
	CacheMaxAge int
}

// NewRouter creates a chi router with the full marketplace API mounted
// under /api/v1.
func NewRouter(svc Services, cfg RouterConfig, healthHandler *health.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	authHandler := NewAuthHandler(svc.Auth, logger)
	categoryHandler := NewCategoryHandler(svc.Categories, logger)
	productHandler := NewProductHandler(svc.Catalog, logger)
	reviewHandler := NewReviewHandler(svc.Reviews, logger)
	orderHandler := NewOrderHandler(svc.Orders, logger)
	adminHandler := NewAdminHandler(svc.Admin, svc.Catalog, svc.Orders, svc.Reviews, svc.Categories, logger)
	paymentHandler := NewPaymentHandler(svc.Payments, svc.Webhooks, svc.Orders, logger)
	mediaHandler := NewMediaHandler(svc.Media, logger)

	r.Route("/api/v1", func(r chi.Router) {
		// Processor callbacks carry no bearer token.
		if svc.Webhooks != nil {
			r.Post("/payments/webhook", paymentHandler.Webhook)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.Tokens))
			r.Use(ResolveIdentity(svc.Auth, logger))

			r.Route("/auth", func(r chi.Router) {
				if cfg.AuthLimiter != nil {
					r.Use(middleware.RateLimit(cfg.AuthLimiter, logger))
				}
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
				r.Get("/profile", authHandler.GetProfile)
				r.Put("/profile", authHandler.UpdateProfile)
			})

			r.Group(func(r chi.Router) {
				if cfg.CacheMaxAge > 0 {
					r.Use(middleware.CacheControl(cfg.CacheMaxAge))
				}
				r.Get("/categories", categoryHandler.ListCategories)
				r.Get("/products", productHandler.ListProducts)
				r.Get("/products/{id}", productHandler.GetProduct)
				r.Get("/products/{id}/reviews", reviewHandler.ListProductReviews)
				r.Get("/sellers/{id}/products", productHandler.ListSellerProducts)
				r.Get("/search/products", productHandler.SearchProducts)
			})

			r.Post("/categories", categoryHandler.CreateCategory)
			r.Put("/categories/{id}", categoryHandler.UpdateCategory)
			r.Delete("/categories/{id}", categoryHandler.DeleteCategory)

			r.Get("/products/seller/mine", productHandler.ListMyProducts)
			r.Post("/products", productHandler.CreateProduct)
			r.Put("/products/{id}", productHandler.UpdateProduct)
			r.Delete("/products/{id}", productHandler.DeleteProduct)

			r.Post("/products/{id}/reviews", reviewHandler.CreateReview)
			r.Get("/reviews/mine", reviewHandler.ListMyReviews)
			r.Put("/reviews/{id}", reviewHandler.UpdateReview)
			r.Delete("/reviews/{id}", reviewHandler.DeleteReview)

			r.Post("/orders", orderHandler.CreateOrder)
			r.Get("/orders", orderHandler.ListOrders)
			r.Get("/orders/seller", orderHandler.ListSellerOrders)
			r.Get("/orders/{id}", orderHandler.GetOrder)
			r.Patch("/orders/{id}/status", orderHandler.UpdateStatus)

			r.Post("/payments/intent", paymentHandler.CreateIntent)
			r.Post("/media/images", mediaHandler.UploadImage)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(domain.RoleAdmin))

				r.Get("/stats", adminHandler.GetStats)
				r.Get("/users", adminHandler.ListUsers)
				r.Patch("/users/{id}/approve", adminHandler.ApproveUser)
				r.Patch("/users/{id}/ban", adminHandler.BanUser)
				r.Delete("/users/{id}", adminHandler.DeleteUser)
				r.Get("/products", adminHandler.ListProducts)
				r.Get("/orders", adminHandler.ListOrders)
				r.Get("/reviews", adminHandler.ListReviews)
				r.Get("/categories", adminHandler.ListCategories)
			})
		})
	})

	return r
}
