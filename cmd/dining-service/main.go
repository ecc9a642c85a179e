package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"resto/internal/broker"
	"resto/internal/config"
	"resto/internal/dining"
	"resto/internal/events"
	"resto/internal/httpapi"
	"resto/internal/hub"
	"resto/internal/payment"
	"resto/internal/seed"
	"resto/internal/store"
	"resto/internal/store/memory"
	"resto/internal/store/postgres"
	"resto/internal/telemetry"

	"github.com/igm/sockjs-go/sockjs"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const serviceName = "dining-service"

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:          serviceName,
		Short:        "Multi-tenant restaurant API with realtime table and order updates",
		SilenceUsage: true,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.New(), configFile)
			if err != nil {
				return err
			}
			return serve(c.Context(), cfg)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", os.Getenv("CONFIG_FILE"), "Path to an optional configuration file")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and realtime endpoint",
			RunE:  rootCmd.RunE,
		},
		migrateCommand(&configFile),
		seedCommand(&configFile),
		watchCommand(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	shutdownTelemetry := telemetry.Setup(ctx, serviceName, telemetry.Options{
		Endpoint: cfg.Telemetry.Endpoint,
		Insecure: cfg.Telemetry.Insecure,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("store close error: %v", err)
		}
	}()

	if cfg.SeedFile != "" {
		result, err := seed.LoadFile(ctx, st, cfg.SeedFile)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		log.Printf("seed file=%s created=%d skipped=%d", cfg.SeedFile, result.Created, result.Skipped)
	}

	h := hub.New()
	var forwarder events.Forwarder
	if cfg.AMQPURL != "" {
		pub, err := broker.Dial(cfg.AMQPURL)
		if err != nil {
			return err
		}
		defer func() {
			if err := pub.Close(); err != nil {
				log.Printf("broker close error: %v", err)
			}
		}()
		forwarder = pub
	}
	publisher := events.NewPublisher(h, forwarder)

	svc := dining.NewService(st, publisher, dining.Options{
		SessionTTL: cfg.SessionTTL,
		CatalogTTL: cfg.CatalogTTL,
	})

	var provider payment.Provider
	if cfg.Payment.Enabled() {
		provider = payment.NewClient(cfg.Payment.APIURL, cfg.Payment.AccessToken)
	} else {
		log.Printf("payment provider disabled: PAYMENT_ACCESS_TOKEN not set")
	}
	processor := payment.NewProcessor(provider, svc, st, payment.Options{
		WebhookSecret:   cfg.Payment.WebhookSecret,
		NotificationURL: cfg.Payment.NotificationURL,
	})

	sessions := &hub.Sessions{
		Hub:          h,
		Authenticate: svc.Authenticate,
		Snapshot: func(ctx context.Context, tenantID string) ([]byte, error) {
			snapshot, err := svc.Snapshot(ctx, tenantID)
			if err != nil {
				return nil, err
			}
			return publisher.Ready(tenantID, snapshot)
		},
	}
	realtime := sockjs.NewHandler("/realtime", sockjs.DefaultOptions, func(session sockjs.Session) {
		sessions.Serve(session)
	})

	api := httpapi.NewHandler(svc, httpapi.Options{
		RateLimit: httpapi.RateLimitConfig{
			IPPerMinute:     cfg.RateLimitPerMinute,
			IPBurst:         cfg.RateLimitBurst,
			TenantPerMinute: cfg.TenantRateLimitPerMinute,
			TenantBurst:     cfg.TenantRateLimitBurst,
		},
		Payments: processor,
		Realtime: realtime,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(api.Routes(), serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("%s listening on %s store=%s", serviceName, server.Addr, cfg.Store.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		h.RunHeartbeat(gctx, cfg.Heartbeat, publisher.Heartbeat)
		return nil
	})
	g.Go(func() error {
		runAlertCleanup(gctx, svc, cfg.AlertCleanup, cfg.AlertRetention)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		return nil
	})
	return g.Wait()
}

type alertCleaner interface {
	CleanupAlerts(ctx context.Context, retention time.Duration) (int, error)
}

// runAlertCleanup skips a tick while the previous sweep is still running.
func runAlertCleanup(ctx context.Context, svc alertCleaner, interval, retention time.Duration) {
	if interval <= 0 || retention <= 0 {
		return
	}
	var running int32
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !atomic.CompareAndSwapInt32(&running, 0, 1) {
				continue
			}
			go func() {
				defer atomic.StoreInt32(&running, 0)
				sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				removed, err := svc.CleanupAlerts(sweepCtx, retention)
				if err != nil {
					log.Printf("alert cleanup error: %v", err)
					return
				}
				if removed > 0 {
					log.Printf("alert cleanup removed=%d", removed)
				}
			}()
		}
	}
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		st, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		return st, nil
	default:
		st, err := memory.Open(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("open memory store: %w", err)
		}
		return st, nil
	}
}
