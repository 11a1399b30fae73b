package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andrew/voice-tutor/pkg/api"
	"github.com/andrew/voice-tutor/pkg/config"
	"github.com/andrew/voice-tutor/pkg/llm"
	"github.com/andrew/voice-tutor/pkg/logging"
	"github.com/andrew/voice-tutor/pkg/retrieval"
	"github.com/andrew/voice-tutor/pkg/session"
	"github.com/andrew/voice-tutor/pkg/tutor"
	"github.com/andrew/voice-tutor/pkg/vector"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	var configFile, envFile string

	rootCmd := &cobra.Command{
		Use:           "tutor-server",
		Short:         "Conversational tutor over a local document corpus",
		Long:          "tutor-server indexes a directory of course material at startup and answers questions about it over HTTP, keeping per-session chat history.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFile(envFile); err != nil {
				return err
			}
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to a YAML config file")
	flags.StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")
	flags.String("addr", ":8000", "Address to listen on")
	flags.String("content", "./content", "Directory of course material to index")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("provider", llm.ProviderOllama, "LLM provider (ollama, openai)")
	flags.String("vector-backend", vector.BackendMemory, "Vector index backend (memory, qdrant)")

	for key, name := range map[string]string{
		"server.addr":    "addr",
		"corpus.dir":     "content",
		"log.level":      "log-level",
		"llm.provider":   "provider",
		"vector.backend": "vector-backend",
	} {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}

	rootCmd.AddCommand(newIndexCmd(v, &configFile, &envFile))
	return rootCmd
}

// loadEnvFile populates the environment from a dotenv file if one exists
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func run(ctx context.Context, cfg config.Config) error {
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)

	client, err := llm.NewClient(cfg.ProviderConfig())
	if err != nil {
		return err
	}
	defer client.Close()

	store, err := vector.New(cfg.VectorConfig(), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := prepareIndex(ctx, cfg, client, store, logger); err != nil {
		return err
	}

	retriever := retrieval.New(client, store, retrieval.Config{DefaultK: cfg.Retrieval.K}, logger)
	sessions := session.NewMemoryStore(cfg.SessionConfig(), logger)
	pipeline := tutor.NewPipeline(client, retriever, sessions, tutor.Options{
		K:                 cfg.Retrieval.K,
		SerializeSessions: cfg.Session.Serialize,
		Model:             cfg.ModelConfig(),
	}, logger)

	handler, err := api.NewServer(pipeline, store, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server: listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
