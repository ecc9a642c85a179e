package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"resto/internal/bridge"
	"resto/internal/config"
	"resto/internal/seed"
	"resto/internal/socket"
	"resto/internal/store/postgres"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func migrateCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the postgres schema",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.New(), *configFile)
			if err != nil {
				return err
			}
			if cfg.Store.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate requires STORE_DRIVER=%s, got %s", config.DriverPostgres, cfg.Store.Driver)
			}
			ctx, cancel := context.WithTimeout(c.Context(), time.Minute)
			defer cancel()
			st, err := postgres.Open(ctx, cfg.Store.DSN)
			if err != nil {
				return fmt.Errorf("db connect: %w", err)
			}
			defer st.Close()
			if err := st.Migrate(ctx); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
			log.Printf("schema applied")
			return nil
		},
	}
}

func seedCommand(configFile *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a YAML fixture into the configured store",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.New(), *configFile)
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.SeedFile
			}
			if file == "" {
				return errors.New("a fixture is required: pass --file or set SEED_FILE")
			}
			st, err := openStore(c.Context(), cfg.Store)
			if err != nil {
				return err
			}
			result, err := seed.LoadFile(c.Context(), st, file)
			if closeErr := st.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}
			log.Printf("seed file=%s created=%d skipped=%d", file, result.Created, result.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Fixture file (defaults to SEED_FILE)")
	return cmd
}

var watchedEvents = []string{
	socket.EventReady,
	socket.EventTableUpdated,
	socket.EventLayoutUpdated,
	socket.EventOrderCreated,
	socket.EventOrderUpdated,
	socket.EventSummaryUpdated,
	socket.EventAlertCreated,
	socket.EventAlertUpdated,
}

// watchCommand tails realtime events from a running server.
func watchCommand() *cobra.Command {
	var (
		baseURL   string
		sessionID string
		tableID   string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print realtime events for the session's tenant",
		RunE: func(c *cobra.Command, args []string) error {
			if sessionID == "" {
				sessionID = os.Getenv("SESSION_ID")
			}
			if sessionID == "" {
				return errors.New("a session is required: pass --session or set SESSION_ID")
			}
			b, err := bridge.New(bridge.Options{BaseURL: baseURL, SessionID: sessionID})
			if err != nil {
				return err
			}

			out := json.NewEncoder(c.OutOrStdout())
			for _, event := range watchedEvents {
				b.On(event, func(env socket.Envelope) {
					_ = out.Encode(env)
				})
			}
			b.OnStateChange(func(s bridge.State) {
				log.Printf("bridge state=%s", s)
			})

			ctx := c.Context()
			if err := b.Acquire(ctx); err != nil {
				return err
			}
			defer b.Release()

			readyCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			snapshot, err := b.WaitReady(readyCtx)
			cancel()
			if err != nil {
				if rejected := b.Err(); rejected != nil {
					return rejected
				}
				return fmt.Errorf("wait for ready: %w", err)
			}
			log.Printf("ready tables=%d alerts=%d orders=%d", len(snapshot.Tables), len(snapshot.Alerts), snapshot.Summary.Total)
			if tableID != "" {
				if err := b.Subscribe(tableID); err != nil {
					return err
				}
			}

			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "Server base URL")
	cmd.Flags().StringVar(&sessionID, "session", "", "Staff session id (defaults to SESSION_ID)")
	cmd.Flags().StringVar(&tableID, "table", "", "Narrow the stream to one table")
	return cmd
}
