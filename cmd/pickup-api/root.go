// README: serve command; loads config, wires stores and services, runs the HTTP server until SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pickup/internal/config"
	httptransport "pickup/internal/http"
	"pickup/internal/infra"
	"pickup/internal/logger"
	"pickup/internal/maps"
	"pickup/internal/metrics"
	"pickup/internal/modules/address"
	"pickup/internal/modules/driver"
	"pickup/internal/modules/eta"
	"pickup/internal/modules/matching"
	"pickup/internal/modules/pickup"
)

var migrateOnStart bool

var rootCmd = &cobra.Command{
	Use:           "pickup-api",
	Short:         "Pickup dispatch and ETA service",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          serve,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  serve,
}

func init() {
	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		c.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply pending migrations before serving")
	}
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.SetLevel(cfg.Log.Level)
	log := logger.New("main")

	if migrateOnStart {
		if err := infra.MigrateUp(cfg.DB.DSN); err != nil {
			return err
		}
		log.Info().Msg("migrations applied")
	}

	var (
		dbPool      *pgxpool.Pool
		redisClient *redis.Client
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dbPool, err = infra.NewDB(gctx, cfg.DB.DSN)
		return err
	})
	if cfg.Redis.Addr != "" && cfg.ETA.CacheTTL > 0 {
		g.Go(func() error {
			var err error
			redisClient, err = infra.NewRedis(gctx, cfg.Redis.Addr, cfg.Redis.Password)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		if dbPool != nil {
			dbPool.Close()
		}
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return err
	}
	defer dbPool.Close()
	if redisClient != nil {
		defer redisClient.Close()
	}

	rec, err := metrics.NewRecorder(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	estimator, err := newEstimator(cfg, redisClient, rec)
	if err != nil {
		return err
	}

	addressStore := address.NewStore(dbPool)
	addressSvc := address.NewService(addressStore)

	driverStore := driver.NewStore(dbPool)
	driverSvc := driver.NewService(driverStore)

	pickupStore := pickup.NewStore(dbPool)
	pickupSvc := pickup.NewService(pickupStore, driverStore, logger.New("pickup"), rec)

	locator := matching.NewLocator(matching.NewStore(dbPool), cfg.Dispatch)
	matchingSvc := matching.NewService(locator, driverStore, pickupStore, estimator, logger.New("matching"), rec)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Dispatch:  matchingSvc,
		Pickups:   pickupSvc,
		Drivers:   driverSvc,
		Addresses: addressSvc,
		Gatherer:  prometheus.DefaultGatherer,
		Logger:    logger.New("http"),
	})

	server := httptransport.NewServer(cfg.HTTP.Addr, router, logger.New("http"))
	return server.Run(ctx)
}

// newEstimator uses live routing when an API key is configured and adds the
// Redis cache when a client is available.
func newEstimator(cfg config.Config, rdb *redis.Client, rec *metrics.Recorder) (*eta.Estimator, error) {
	log := logger.New("eta")
	opts := eta.Options{Timeout: cfg.Maps.Timeout, Logger: log, Metrics: rec}

	if cfg.Maps.APIKey == "" {
		log.Warn().Msg("PICKUP_MAPS_API_KEY not set; ETAs use the distance heuristic")
		return eta.NewEstimator(nil, opts), nil
	}

	routes, err := maps.NewRouteService(cfg.Maps.APIKey, maps.RouteOptions{
		Language:     cfg.Maps.Language,
		Region:       cfg.Maps.Region,
		Alternatives: cfg.Maps.Alternatives,
		HTTPClient:   &http.Client{Timeout: cfg.Maps.Timeout},
	})
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		opts.Cache = eta.NewRedisCache(rdb, cfg.ETA.CacheTTL)
	}
	return eta.NewEstimator(routes, opts), nil
}
