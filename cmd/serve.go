package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"furnistore/middleware"
	"furnistore/routes"
	"furnistore/services"
)

func serveCmd() *cobra.Command {
	var migrateFirst bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if migrateFirst {
				changed, err := a.store.MigrateUp()
				if err != nil {
					return err
				}
				a.log.Info("migrations applied", "changed", changed)
			}
			return serve(ctx, a)
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", true, "apply pending migrations before serving")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	cfg := a.cfg
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	gw := a.gateway()
	dispatcher := a.dispatcher()
	s := a.store

	deps := routes.Deps{
		Responder:  &middleware.Responder{Bundle: a.bundle, Production: cfg.Production(), Log: a.log},
		Accounts:   services.NewAccounts(s.Users, cfg.JWTSecret, cfg.JWTTTL),
		Catalog:    services.NewCatalog(s.Products, a.cacheStore(), cfg.CatalogCacheTTL, a.log),
		Carts:      services.NewCarts(s, s.Carts, s.Products),
		Orders:     services.NewOrders(s, s.Orders, s.Products, gw, cfg.Payment.Currency, cfg.PublicURL, a.metrics, a.log),
		Reconciler: services.NewReconciler(services.ReconcilerDeps{
			Tx:       s,
			Orders:   s.Orders,
			Carts:    s.Carts,
			Products: s.Products,
			Events:   s.WebhookEvents,
			Outbox:   s.Outbox,
			Gateway:  gw,
			Mailer:   dispatcher,
			Bundle:   a.bundle,
			Metrics:  a.metrics,
			Log:      a.log,
		}),
		Relay:   dispatcher,
		Metrics: a.metrics,
		Log:     a.log,

		AllowedOrigins:  cfg.AllowedOrigins,
		MaxBodyBytes:    cfg.MaxBodyBytes,
		RequestTimeout:  cfg.RequestTimeout,
		LoginLimiter:    a.limiter("login", cfg.RateLimitLogin),
		CheckoutLimiter: a.limiter("checkout", cfg.RateLimitCheckout),
		Health:          s.Ping,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.NewEngine(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("listening", "addr", srv.Addr, "provider", gw.Name(), "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
