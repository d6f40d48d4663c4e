package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wingmanhq/wingman/internal/db"
	"github.com/wingmanhq/wingman/internal/orchestrator"
	"github.com/wingmanhq/wingman/internal/server"
	"github.com/wingmanhq/wingman/internal/thread"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the coaching HTTP and websocket server",
	Long:  `Starts the wingman server with a REST API for threads and turns, a websocket chat endpoint and retrieval helpers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = serverPort
		}

		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		kb, err := loadKnowledge(cfg, log)
		if err != nil {
			return err
		}

		llmProvider, err := createLLMProviderFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("creating LLM provider: %w", err)
		}

		// Open database.
		dbPath := filepath.Join(cfg.DataDir, db.FileName)
		database, err := db.Open(dbPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		engine := orchestrator.New(orchestrator.Deps{
			Repository: thread.NewSQLiteRepository(database),
			Provider:   llmProvider,
			Knowledge:  kb,
			Logger:     log,
			Options:    engineOptions(cfg),
		})

		srv := server.New(server.Config{
			Port:     cfg.Port,
			AllowAll: cfg.AllowAllOrigins,
		}, engine, log)

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go engine.RetryLoop(ctx, cfg.SaveRetryInterval)

		go func() {
			<-ctx.Done()
			log.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("server shutdown", zap.Error(err))
			}
			if left := engine.RetryPendingSaves(shutdownCtx); left > 0 {
				log.Error("threads left unsaved at shutdown", zap.Int("count", left))
			}
		}()

		log.Info("wingman server starting",
			zap.String("version", Version),
			zap.Int("port", cfg.Port),
			zap.String("database", dbPath),
			zap.String("provider", llmProvider.Name()),
			zap.String("model", cfg.Model),
		)

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "HTTP port (overrides config)")
	rootCmd.AddCommand(serverCmd)
}
