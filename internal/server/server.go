// Package server wires the application together and runs the HTTP
// listener. Everything downstream of config is constructor-injected so
// tests can assemble the same graph with fakes.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/driftmarket/driftmarket/app/controllers"
	"github.com/driftmarket/driftmarket/app/repositories"
	"github.com/driftmarket/driftmarket/app/routes"
	"github.com/driftmarket/driftmarket/app/services"
	"github.com/driftmarket/driftmarket/config"
	"github.com/driftmarket/driftmarket/pkg/cache"
	"github.com/driftmarket/driftmarket/pkg/database"
	"github.com/driftmarket/driftmarket/pkg/logger"
	"github.com/driftmarket/driftmarket/pkg/mail"
	"github.com/driftmarket/driftmarket/pkg/metrics"
	"github.com/driftmarket/driftmarket/pkg/middleware"
	"github.com/driftmarket/driftmarket/pkg/migration"
	"github.com/driftmarket/driftmarket/pkg/reqid"
	"github.com/driftmarket/driftmarket/pkg/router"
	"github.com/driftmarket/driftmarket/pkg/schedule"
	"github.com/driftmarket/driftmarket/pkg/storage"
	"github.com/driftmarket/driftmarket/pkg/workerpool"
	"gorm.io/gorm"
)

// App is the assembled application graph.
type App struct {
	DB     *gorm.DB
	Cache  *cache.Client
	Router *router.Router
	Sweep  *services.SweepService
	pool   *workerpool.Pool
}

// Build assembles the application from config. The caller owns shutdown
// of the returned App.
func Build(ctx context.Context) (*App, error) {
	if err := config.Load(); err != nil {
		return nil, err
	}
	registerEventListeners()

	db, err := database.Connect()
	if err != nil {
		return nil, fmt.Errorf("server: database: %w", err)
	}

	cacheClient, err := cache.Connect(ctx)
	if err != nil {
		// Redis is optional: the cache degrades to a no-op and the
		// sweep lock falls back to the in-process mutex.
		logger.Warn("server: redis unavailable, running degraded", "error", err)
	}

	disk, err := storage.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("server: storage: %w", err)
	}

	transport := mail.NewSMTPTransport(mail.ConfigFromEnv())
	pool := workerpool.New(config.SweepBatchSize())

	var locker cache.Locker
	if cacheClient.Available() {
		locker = cache.NewRedisLocker(cacheClient)
	} else {
		locker = cache.NewMutexLocker()
	}

	// Repositories.
	productRepo := repositories.NewProductRepository(db, config.FeaturedLimit())
	orderRepo := repositories.NewOrderRepository(db, config.MaxEmailRetries())

	// Services.
	mailer := services.NewOrderMailer(transport, orderRepo)
	checkout := services.NewCheckoutService(orderRepo, mailer,
		time.Duration(config.CheckoutEmailTimeoutSecs())*time.Second)
	sweep := services.NewSweepService(orderRepo, mailer, locker, pool,
		config.SweepBatchSize(),
		time.Duration(config.SweepBatchDelaySecs())*time.Second)
	productSvc := services.NewProductService(productRepo, cacheClient, config.ListedByAllowList())
	exporter := services.NewExportService(productRepo)
	importer := services.NewImportService(productRepo, disk)

	// HTTP surface.
	r := router.New()
	r.Use(
		middleware.Recovery,
		reqid.Middleware(),
		middleware.Logger,
		metrics.Middleware(),
		middleware.CORS(middleware.DefaultCORSOptions()),
	)
	routes.RegisterAPI(r, routes.Controllers{
		Storefront: controllers.NewStorefrontController(productRepo, productSvc),
		Checkout:   controllers.NewCheckoutController(checkout),
		AdminAuth:  controllers.NewAdminAuthController(),
		Products:   controllers.NewAdminProductController(productRepo, productSvc, exporter, importer),
		Orders:     controllers.NewAdminOrderController(orderRepo, sweep),
		Cron:       controllers.NewCronController(sweep),
	})

	return &App{DB: db, Cache: cacheClient, Router: r, Sweep: sweep, pool: pool}, nil
}

// Close releases the app's long-lived resources.
func (a *App) Close() {
	a.pool.Shutdown()
	if err := a.Cache.Close(); err != nil {
		logger.Warn("server: close cache", "error", err)
	}
}

// Start builds the app and serves HTTP until SIGINT/SIGTERM, then drains
// in-flight requests.
func Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := Build(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := migration.New(app.DB).Run(); err != nil {
		return err
	}

	// Optional in-process sweep; most deployments drive it from the
	// cron endpoint instead.
	if mins := config.SweepIntervalMinutes(); mins > 0 {
		sched := schedule.New()
		sched.Every(time.Duration(mins) * time.Minute).
			Name("sweep-order-emails").
			WithoutOverlapping().
			Run(func() {
				if _, err := app.Sweep.Run(ctx, 100, "schedule"); err != nil &&
					!errors.Is(err, services.ErrSweepRunning) {
					logger.Error("server: scheduled sweep", "error", err)
				}
			})
		sched.Start(ctx)
	}

	srv := &http.Server{
		Addr:              ":" + config.AppPort(),
		Handler:           app.Router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server: listening", "addr", srv.Addr, "env", config.AppEnv())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
