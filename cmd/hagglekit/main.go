// HaggleKit is a negotiation assistant for second-hand marketplace
// deals: a chat surface that drafts replies to the seller, plus a
// screenshot analyzer that reads the seller's messages and suggests a
// counter.
//
// Environment variables:
//
//	HAGGLEKIT_CONFIG_JSON  - Full config JSON (alternative to config file)
//	HAGGLEKIT_CONFIG_PATH  - Config file path (default: config.json)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hagglekit/hagglekit/pkg/analysis"
	"github.com/hagglekit/hagglekit/pkg/assistant"
	"github.com/hagglekit/hagglekit/pkg/bus"
	"github.com/hagglekit/hagglekit/pkg/channels"
	"github.com/hagglekit/hagglekit/pkg/config"
	"github.com/hagglekit/hagglekit/pkg/export"
	"github.com/hagglekit/hagglekit/pkg/logger"
	"github.com/hagglekit/hagglekit/pkg/providers"
	"github.com/hagglekit/hagglekit/pkg/store"
	"github.com/hagglekit/hagglekit/pkg/upload"
)

const version = "0.1.0"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "hagglekit",
		Short: "Negotiation assistant for second-hand marketplace deals",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "config file path")

	rootCmd.AddCommand(serveCmd(), analyzeCmd(), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if p := os.Getenv("HAGGLEKIT_CONFIG_PATH"); p != "" {
		return p
	}
	return "config.json"
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := providers.CreateProvider(cfg)
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}

	var analyzer assistant.ImageAnalyzer
	if cfg.Providers.Gemini.APIKey != "" {
		extractor, err := analysis.NewExtractor(ctx, cfg.Providers.Gemini.APIKey, cfg.Analysis)
		if err != nil {
			return fmt.Errorf("creating extractor: %w", err)
		}
		analyzer = extractor
	} else {
		logger.WarnC("main", "No Gemini API key configured, screenshot analysis disabled")
		analyzer = unavailableAnalyzer{}
	}

	var transcripts assistant.TranscriptStore
	if path := cfg.StorePath(); path != "" {
		st, err := store.Open(path)
		if err != nil {
			logger.WarnCF("main", "Transcript store unavailable, running in-memory only",
				map[string]interface{}{"path": path, "error": err.Error()})
		} else {
			defer st.Close()
			transcripts = st
		}
	}

	msgBus := bus.NewMessageBus()
	asst := assistant.New(cfg, provider, analyzer, transcripts, msgBus, nil)

	if !cfg.Channels.Web.Enabled {
		return fmt.Errorf("no channel enabled, set channels.web.enabled")
	}

	web := channels.NewWebChannel(cfg.Channels.Web, asst, msgBus)
	asst.SetNotify(web.Notify)
	go asst.Run(ctx)

	if err := web.Start(ctx); err != nil {
		return fmt.Errorf("starting web channel: %w", err)
	}

	logger.InfoCF("main", "HaggleKit running", map[string]interface{}{
		"version": version,
		"model":   cfg.Assistant.Model,
	})

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := web.Stop(shutdownCtx); err != nil {
		logger.WarnCF("main", "Shutdown error", map[string]interface{}{"error": err.Error()})
	}
	logger.InfoC("main", "Shutdown complete")
	return nil
}

func analyzeCmd() *cobra.Command {
	var category string
	var copyReply bool

	cmd := &cobra.Command{
		Use:   "analyze <image>",
		Short: "Analyze one screenshot and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Providers.Gemini.APIKey == "" {
				return fmt.Errorf("no Gemini API key configured")
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading image: %w", err)
			}
			info, err := upload.ValidateImage(args[0], data, cfg.Upload.MaxBytes)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			extractor, err := analysis.NewExtractor(ctx, cfg.Providers.Gemini.APIKey, cfg.Analysis)
			if err != nil {
				return fmt.Errorf("creating extractor: %w", err)
			}

			res, err := extractor.Extract(ctx, data, info.MIME, category)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))

			if copyReply {
				if err := export.CopyText(res.SuggestedResponse); err != nil {
					fmt.Fprintln(os.Stderr, err)
				} else {
					fmt.Fprintln(os.Stderr, "Suggested response copied to clipboard")
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "item category hint for the extractor")
	cmd.Flags().BoolVar(&copyReply, "copy", false, "copy the suggested response to the clipboard")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("hagglekit %s\n", version)
		},
	}
}

// unavailableAnalyzer stands in when no multimodal key is configured.
type unavailableAnalyzer struct{}

func (unavailableAnalyzer) Extract(ctx context.Context, imageBytes []byte, mimeType, category string) (*analysis.Result, error) {
	return nil, fmt.Errorf("screenshot analysis is not configured, set a Gemini API key")
}
