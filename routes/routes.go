package routes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"furnistore/controllers"
	"furnistore/metrics"
	"furnistore/middleware"
	"furnistore/ratelimit"
	"furnistore/services"
)

// Deps is everything the HTTP layer needs. Limiters may be nil to disable
// rate limiting.
type Deps struct {
	Responder  *middleware.Responder
	Accounts   *services.Accounts
	Catalog    *services.Catalog
	Carts      *services.Carts
	Orders     *services.Orders
	Reconciler *services.Reconciler
	Relay      controllers.Relayer
	Metrics    *metrics.Metrics
	Log        *slog.Logger

	AllowedOrigins  []string
	MaxBodyBytes    int64
	RequestTimeout  time.Duration
	LoginLimiter    ratelimit.Limiter
	CheckoutLimiter ratelimit.Limiter

	// Health reports whether storage is reachable.
	Health func(ctx context.Context) error
}

func (d Deps) limit(l ratelimit.Limiter, scope string) gin.HandlerFunc {
	if l == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.RateLimit(l, scope, d.Metrics, d.Responder)
}

func NewEngine(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	_ = r.SetTrustedProxies(nil)
	RegisterRoutes(r, d)
	return r
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	base := controllers.Base{R: d.Responder}
	authCtl := &controllers.AuthController{Base: base, Accounts: d.Accounts}
	productCtl := &controllers.ProductController{Base: base, Catalog: d.Catalog}
	cartCtl := &controllers.CartController{Base: base, Carts: d.Carts}
	orderCtl := &controllers.OrderController{Base: base, Orders: d.Orders}
	adminOrderCtl := &controllers.AdminOrderController{OrderController: *orderCtl, Relay: d.Relay}
	webhookCtl := &controllers.WebhookController{Base: base, Reconciler: d.Reconciler}

	r.Use(
		middleware.RequestLogger(d.Log),
		middleware.Metrics(d.Metrics),
		middleware.Timeout(d.RequestTimeout),
		middleware.Locale(d.Responder.Bundle),
	)

	r.GET("/health", func(c *gin.Context) {
		if d.Health != nil {
			if err := d.Health(c.Request.Context()); err != nil {
				d.Responder.Log.Error("health check failed", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	bodyLimit := middleware.BodyLimit(d.MaxBodyBytes, d.Responder)

	// Provider callbacks are authenticated by signature, not by origin.
	r.POST("/api/webhooks/payment", bodyLimit, webhookCtl.Payment)

	api := r.Group("/api")
	api.Use(middleware.SameOrigin(d.AllowedOrigins, d.Responder), bodyLimit)
	{
		authRequired := middleware.Auth(d.Accounts, d.Responder)

		api.POST("/register", authCtl.Register)
		api.POST("/login", d.limit(d.LoginLimiter, "login"), authCtl.Login)
		api.POST("/logout", authRequired, authCtl.Logout)

		api.GET("/products", productCtl.List)
		api.GET("/products/:id", productCtl.Get)
		api.GET("/categories", productCtl.Categories)

		protected := api.Group("/")
		protected.Use(authRequired)
		{
			admin := protected.Group("/admin")
			admin.Use(middleware.Admin(d.Responder))
			{
				admin.POST("/products", productCtl.Create)
				admin.PUT("/products/:id", productCtl.Update)
				admin.DELETE("/products/:id", productCtl.Delete)
				admin.GET("/products", productCtl.ListAdmin)

				admin.GET("/orders", adminOrderCtl.List)
				admin.GET("/orders/:id", adminOrderCtl.Get)
				admin.PATCH("/orders/:id/status", adminOrderCtl.UpdateStatus)
				admin.PUT("/orders/:id/status", adminOrderCtl.UpdateStatus)
				admin.PUT("/orders/:id/cancel", adminOrderCtl.Cancel)

				admin.POST("/outbox/relay", adminOrderCtl.RelayOutbox)
			}

			user := protected.Group("/user")
			{
				user.GET("/products", productCtl.List)

				user.POST("/cart", cartCtl.Add)
				user.GET("/cart", cartCtl.Get)
				user.PUT("/cart", cartCtl.Replace)
				user.PUT("/cart/:productId", cartCtl.Update)
				user.DELETE("/cart/:productId", cartCtl.Remove)

				user.POST("/checkout", d.limit(d.CheckoutLimiter, "checkout"), orderCtl.Checkout)
				user.GET("/orders", orderCtl.List)
				user.GET("/orders/:id", orderCtl.Get)
				user.PUT("/orders/:id/cancel", orderCtl.Cancel)
			}
		}
	}
}
