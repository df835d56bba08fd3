package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sigma-chat/internal/catalog"
	"sigma-chat/internal/config"
	"sigma-chat/internal/logging"
	"sigma-chat/internal/responder"
	"sigma-chat/internal/response"
)

var (
	// Global flags
	verbose    bool
	homeDir    string
	configPath string
	renderMode string
	mode       string
	model      string
	storyDelay time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "sigma-chat",
	Short: "Sigma shopping assistant chat widget",
	Long: `sigma-chat is a terminal and web chat widget for the Sigma shopping assistant.

Answers come from the product catalog, a scripted demo story or Gemini,
and stream into the transcript as they arrive.

Run without arguments to start the interactive chat interface.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "Data directory (or set SIGMA_CHAT_HOME)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <home>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&renderMode, "render", "", "Render mode: plain, lite or glamour")
	rootCmd.PersistentFlags().StringVar(&mode, "responder", "", "Responder: auto, catalog, canned or gemini")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "Gemini model name")
	rootCmd.PersistentFlags().DurationVar(&storyDelay, "story-delay", 120*time.Millisecond, "Delay between demo story fragments")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(initConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig() (config.AppConfig, error) {
	cfg, err := config.Load(homeDir, configPath)
	if err != nil {
		return cfg, err
	}
	if renderMode != "" {
		cfg.Widget.RenderMode = renderMode
	}
	if mode != "" {
		cfg.Responder = mode
	}
	if model != "" {
		cfg.Model = model
	}
	cfg.Verbose = verbose
	return cfg, cfg.Validate()
}

// newLogger logs to logPath, or to stderr when logPath is empty.
func newLogger(logPath string) (*zap.Logger, error) {
	return logging.New(logPath, verbose)
}

// openCatalog opens the product database and seeds it on first use.
func openCatalog(ctx context.Context, cfg config.AppConfig, log *zap.Logger) (*catalog.Catalog, error) {
	cat, err := catalog.Open(cfg.DBPath, false)
	if err != nil {
		return nil, err
	}
	n, err := cat.SeedDefault(ctx)
	if err != nil {
		_ = cat.Close()
		return nil, err
	}
	if n > 0 {
		log.Info("seeded catalog", zap.Int("products", n), zap.String("db", cfg.DBPath))
	}
	return cat, nil
}

// newCollaborator builds the responder chain for cfg. The catalog is
// optional unless the catalog responder was requested.
func newCollaborator(ctx context.Context, cfg config.AppConfig, log *zap.Logger) (response.Collaborator, func(), error) {
	opts := responder.Options{
		Mode:         cfg.Responder,
		APIKey:       cfg.APIKey,
		Model:        cfg.Model,
		SystemPrompt: cfg.Widget.SystemPrompt,
		BotName:      cfg.Widget.BotName,
		StoryDelay:   storyDelay,
		Logger:       log,
	}
	cleanup := func() {}

	if cfg.Responder != config.ResponderCanned && cfg.Responder != config.ResponderGemini {
		cat, err := openCatalog(ctx, cfg, log)
		switch {
		case err == nil:
			opts.Catalog = cat
			cleanup = func() { _ = cat.Close() }
		case cfg.Responder == config.ResponderCatalog:
			return nil, cleanup, fmt.Errorf("open catalog: %w", err)
		default:
			log.Warn("catalog unavailable, continuing without product answers", zap.Error(err))
		}
	}

	collab, err := responder.New(ctx, opts)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return collab, cleanup, nil
}
