package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"narrative-agent/config"
	"narrative-agent/database"
	"narrative-agent/export"
	"narrative-agent/graph"
	"narrative-agent/llmclient"
	"narrative-agent/pipeline"
	"narrative-agent/web"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	flagInput string
	flagModel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "narrative-agent",
		Short: "Incremental narrative information extraction over an LLM oracle",
	}

	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Run one document through chunked extraction and write JSON/CSV output",
		RunE:  runExtract,
	}
	extractCmd.Flags().StringVar(&flagInput, "input", "", "path to a .txt, .md, or .pdf document")
	extractCmd.Flags().StringVar(&flagModel, "model", "ollama", "oracle backend: ollama | mock")
	extractCmd.Flags().Int("chunk-size", 1000, "chunk size in characters")
	extractCmd.Flags().Int("overlap", 180, "chunk overlap in characters")
	extractCmd.Flags().String("outdir", "./output", "output directory")
	extractCmd.MarkFlagRequired("input")
	viper.BindPFlag("CHUNK_SIZE", extractCmd.Flags().Lookup("chunk-size"))
	viper.BindPFlag("CHUNK_OVERLAP", extractCmd.Flags().Lookup("overlap"))
	viper.BindPFlag("OUTPUT_DIR", extractCmd.Flags().Lookup("outdir"))

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the extraction HTTP API",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&flagModel, "model", "ollama", "oracle backend: ollama | mock")
	serveCmd.Flags().Int("port", 8089, "listen port")
	viper.BindPFlag("WEB_PORT", serveCmd.Flags().Lookup("port"))

	rootCmd.AddCommand(extractCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap initializes logging and configuration: a temporary logger loads
// the config, then the configured level wins.
func bootstrap() (*config.Config, *zap.Logger, error) {
	tempLogger, err := config.InitLogger("info")
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}

	cfg := config.Load(tempLogger)

	logger, err := config.InitLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("re-initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func buildOracle(cfg *config.Config, logger *zap.Logger) (pipeline.Oracle, error) {
	switch flagModel {
	case "mock":
		return llmclient.NewMock(), nil
	case "ollama":
		return llmclient.New(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown oracle backend %q (use ollama or mock)", flagModel)
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer config.Cleanup()

	oracle, err := buildOracle(cfg, logger)
	if err != nil {
		return err
	}
	pipe := pipeline.New(cfg, oracle, logger)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, err := pipe.Run(ctx, flagInput)
	if err != nil {
		logger.Error("Extraction failed", zap.String("input", flagInput), zap.Error(err))
		return err
	}

	jsonPath, err := export.WriteAll(result, cfg.OutputDir)
	if err != nil {
		logger.Error("Export failed", zap.Error(err))
		return err
	}

	if cfg.DatabaseURL != "" {
		store, err := database.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			logger.Warn("Run archive unavailable", zap.Error(err))
		} else {
			defer store.Close()
			relGraph := graph.New(store.DB, logger, cfg.GraphIndex)
			if err := store.EnsureSchema(ctx); err != nil {
				logger.Warn("Failed to ensure archive schema", zap.Error(err))
			} else if err := relGraph.EnsureSchema(ctx); err != nil {
				logger.Warn("Failed to ensure graph schema", zap.Error(err))
			} else if err := store.SaveRun(ctx, result); err != nil {
				logger.Warn("Failed to archive run", zap.Error(err))
			} else if err := relGraph.IndexRun(ctx, result.RunID, result.State); err != nil {
				logger.Warn("Failed to index run graph", zap.Error(err))
			}
		}
	}

	logger.Info("Extraction complete",
		zap.String("doc_id", result.DocID),
		zap.Int("chunks", result.TotalChunks),
		zap.Int("characters", len(result.State.Characters)),
		zap.Int("events", len(result.State.Events)),
		zap.String("json", jsonPath),
		zap.String("outdir", cfg.OutputDir))
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer config.Cleanup()

	oracle, err := buildOracle(cfg, logger)
	if err != nil {
		return err
	}
	pipe := pipeline.New(cfg, oracle, logger)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var store *database.PostgresStore
	var relGraph *graph.Graph
	if cfg.DatabaseURL != "" {
		store, err = database.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect to run archive", zap.Error(err))
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Fatal("Failed to ensure archive schema", zap.Error(err))
		}
		relGraph = graph.New(store.DB, logger, cfg.GraphIndex)
		if err := relGraph.EnsureSchema(ctx); err != nil {
			logger.Fatal("Failed to ensure graph schema", zap.Error(err))
		}
	}

	server := web.NewServer(pipe, store, relGraph, logger, cfg)
	addr := fmt.Sprintf(":%d", cfg.WebPort)
	if err := server.Start(ctx, addr); err != nil {
		logger.Error("Extraction API error", zap.Error(err))
		return err
	}
	return nil
}
