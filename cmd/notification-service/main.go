package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resto/internal/broker"
	"resto/internal/config"
	"resto/internal/push"
	"resto/internal/store/postgres"

	"github.com/cenkalti/backoff/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const serviceName = "notification-service"

func main() {
	var configFile string
	var prefetch int

	rootCmd := &cobra.Command{
		Use:          serviceName,
		Short:        "Send web push notifications for realtime alert events",
		SilenceUsage: true,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.New(), configFile)
			if err != nil {
				return err
			}
			return run(c.Context(), cfg, prefetch)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", os.Getenv("CONFIG_FILE"), "Path to an optional configuration file")
	rootCmd.Flags().IntVar(&prefetch, "prefetch", 10, "Unacknowledged deliveries held at once")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config.Config, prefetch int) error {
	if cfg.AMQPURL == "" {
		return errors.New("AMQP_URL is required")
	}

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("store close error: %v", err)
		}
	}()

	var sender push.Sender = push.LogSender{}
	if cfg.Push.VAPIDPrivateKey != "" && cfg.Push.VAPIDPublicKey != "" {
		sender = push.NewWebPushSender(push.VAPID{
			PublicKey:  cfg.Push.VAPIDPublicKey,
			PrivateKey: cfg.Push.VAPIDPrivateKey,
			Subject:    cfg.Push.VAPIDSubject,
		})
	} else {
		log.Printf("VAPID keys not set, push payloads are logged only")
	}
	worker := push.NewWorker(st, sender, push.Config{MaxAttempts: cfg.Push.MaxAttempts})

	// The broker may come up after this process; keep dialing until it answers.
	consumer, err := backoff.Retry(ctx, func() (*broker.Consumer, error) {
		c, err := broker.DialConsumer(cfg.AMQPURL, prefetch)
		if err != nil {
			log.Printf("broker dial error: %v", err)
		}
		return c, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxElapsedTime(2*time.Minute))
	if err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			log.Printf("broker close error: %v", err)
		}
	}()

	deliveries, err := consumer.Deliveries(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	log.Printf("%s consuming queue=%s", serviceName, broker.PushQueue)
	worker.Run(ctx, deliveries)
	return nil
}

// openStore needs a store shared with the API process. The memory store is
// process-local and its file is rewritten by its owner, so only postgres works.
func openStore(ctx context.Context, cfg config.StoreConfig) (*postgres.Store, error) {
	if cfg.Driver != config.DriverPostgres {
		return nil, fmt.Errorf("%s requires STORE_DRIVER=%s, got %s", serviceName, config.DriverPostgres, cfg.Driver)
	}
	st, err := postgres.Open(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	return st, nil
}
