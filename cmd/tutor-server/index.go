package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/andrew/voice-tutor/pkg/config"
	"github.com/andrew/voice-tutor/pkg/indexer"
	"github.com/andrew/voice-tutor/pkg/llm"
	"github.com/andrew/voice-tutor/pkg/logging"
	"github.com/andrew/voice-tutor/pkg/vector"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newIndexCmd rebuilds the index once and exits. With the qdrant backend the
// collection outlives the process and can be served with corpus.reuse_index.
func newIndexCmd(v *viper.Viper, configFile, envFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the corpus into the configured vector backend and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFile(*envFile); err != nil {
				return err
			}
			cfg, err := config.Load(v, *configFile)
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

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

			n, err := indexCorpus(cmd.Context(), cfg, client, store, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks from %s\n", n, cfg.Corpus.Dir)
			return nil
		},
	}
	return cmd
}

// prepareIndex makes store ready to serve. With corpus.reuse_index set, a store
// that already holds chunks is used as is; otherwise the corpus is rebuilt.
func prepareIndex(ctx context.Context, cfg config.Config, embedder llm.Embedder, store vector.Store, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Corpus.ReuseIndex {
		n, err := store.Count(ctx)
		switch {
		case err != nil:
			logger.Warn("server: existing index unavailable, rebuilding", "error", err)
		case n > 0:
			logger.Info("server: reusing existing index", "chunks", n)
			return n, nil
		default:
			logger.Info("server: existing index is empty, rebuilding")
		}
	}
	return indexCorpus(ctx, cfg, embedder, store, logger)
}

// indexCorpus loads, splits and embeds the corpus directory into store,
// replacing its previous contents
func indexCorpus(ctx context.Context, cfg config.Config, embedder llm.Embedder, store vector.Store, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	splitter, err := indexer.NewSplitter(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return 0, err
	}
	docs, err := indexer.LoadDirectory(cfg.Corpus.Dir, cfg.Corpus.Extensions)
	if err != nil {
		return 0, fmt.Errorf("load corpus: %w", err)
	}
	logger.Info("server: indexing corpus", "dir", cfg.Corpus.Dir, "documents", len(docs))

	start := time.Now()
	n, err := indexer.New(embedder, store, splitter, logger).BuildIndex(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("build index: %w", err)
	}
	logger.Info("server: index ready", "chunks", n, "elapsed_ms", time.Since(start).Milliseconds())
	return n, nil
}
