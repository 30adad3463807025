package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pbaille/readai/internal/ai"
	"github.com/pbaille/readai/internal/api"
	"github.com/pbaille/readai/internal/config"
	"github.com/pbaille/readai/internal/extractor"
	"github.com/pbaille/readai/internal/fetcher"
	"github.com/pbaille/readai/internal/logging"
	"github.com/pbaille/readai/internal/service"
	"github.com/pbaille/readai/internal/store"
	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"
)

var (
	configPaths []string
	output      string
	logLevel    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "readai",
		Short:         "Reading assistant: save articles and PDFs, highlight, explain and summarize",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringSliceVarP(&configPaths, "config", "c", nil, "TOML config file (repeatable, later files win)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(explainCmd())
	rootCmd.AddCommand(summarizeCmd())
	rootCmd.AddCommand(sourcesCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type app struct {
	cfg    *config.Config
	logger arbor.ILogger
}

func loadApp() (*app, error) {
	switch output {
	case "text", "json", "yaml":
	default:
		return nil, fmt.Errorf("unknown output format %q (want text, json or yaml)", output)
	}

	cfg, err := config.Load(configPaths...)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Output: cfg.Logging.Output,
		Dir:    cfg.Logging.Dir,
	})
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) extractor() *extractor.Extractor {
	f := fetcher.New(fetcher.Config{
		Timeout:   a.cfg.FetchTimeout(),
		UserAgent: a.cfg.Fetch.UserAgent,
		MaxBody:   a.cfg.Fetch.MaxBodyBytes,
	})
	return extractor.New(f, a.logger)
}

func (a *app) assistant(ctx context.Context) (*ai.Assistant, error) {
	completer, err := ai.NewCompleter(ctx, ai.Config{
		Provider:    a.cfg.AI.Provider,
		Model:       a.cfg.AI.Model,
		APIKey:      a.cfg.AI.APIKey,
		MaxTokens:   a.cfg.AI.MaxTokens,
		Temperature: a.cfg.AI.Temperature,
		Timeout:     a.cfg.AITimeout(),
	}, a.logger)
	if err != nil {
		return nil, err
	}
	return ai.NewAssistant(completer, ai.Options{
		Timeout:       a.cfg.AITimeout(),
		MaxInputChars: a.cfg.AI.MaxInputChars,
	}, a.logger), nil
}

func serveCmd() *cobra.Command {
	var (
		host    string
		port    int
		backend string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			config.ApplyFlagOverrides(a.cfg, host, port, backend)
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := store.New(a.cfg.Storage.Backend)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			_, err = service.NewUserService(st, a.logger).Seed(ctx, service.SeedRequest{
				Username: a.cfg.Seed.Username,
				Password: a.cfg.Seed.Password,
			})
			if err != nil {
				return fmt.Errorf("seed default user: %w", err)
			}

			assistant, err := a.assistant(ctx)
			if err != nil {
				return err
			}

			server := api.New(api.Services{
				Documents:  service.NewDocumentService(st, a.extractor(), a.logger),
				Highlights: service.NewHighlightService(st, a.logger),
				Assistant:  service.NewAssistantService(st, assistant, a.logger),
			}, api.Config{
				Addr:            a.cfg.Addr(),
				AllowedOrigins:  a.cfg.Server.AllowedOrigins,
				ShutdownTimeout: a.cfg.ShutdownTimeout(),
			}, a.logger)

			a.logger.Info().
				Str("storage", a.cfg.Storage.Backend).
				Str("ai_provider", a.cfg.AI.Provider).
				Bool("ai_configured", a.cfg.AI.APIKey != "").
				Msg("readai starting")

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.Run(gctx)
			})
			g.Go(func() error {
				<-gctx.Done()
				a.logger.Info().Msg("Stop requested")
				return nil
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	cmd.Flags().StringVar(&backend, "storage", "", "storage backend: memory or sqlite")
	return cmd
}

func extractCmd() *cobra.Command {
	var markdown bool

	cmd := &cobra.Command{
		Use:   "extract [url]",
		Short: "Fetch a web page and print its readable article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}

			article, err := a.extractor().Extract(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if markdown {
				article.Content = extractor.ToMarkdown(article.Content, args[0])
			}

			return printResult(cmd.OutOrStdout(), output, article, func() string {
				return fmt.Sprintf("%s\n(%d min read)\n\n%s\n", article.Title, article.EstimatedReadTime, article.Content)
			})
		},
	}

	cmd.Flags().BoolVar(&markdown, "markdown", false, "convert the article to Markdown")
	return cmd
}

func explainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain [text]",
		Short: "Explain a passage",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			assistant, err := a.assistant(cmd.Context())
			if err != nil {
				return err
			}

			x, err := assistant.Explain(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), output, x, func() string { return formatExplanation(x) })
		},
	}
}

func summarizeCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "summarize [text]",
		Short: "Summarize text, or a web page with --url",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if url == "" && strings.TrimSpace(text) == "" {
				return fmt.Errorf("either --url or text must be provided")
			}

			a, err := loadApp()
			if err != nil {
				return err
			}
			assistant, err := a.assistant(cmd.Context())
			if err != nil {
				return err
			}

			if url != "" {
				article, err := a.extractor().Extract(cmd.Context(), url)
				if err != nil {
					return err
				}
				text = extractor.ToMarkdown(article.Content, url)
			}

			summary, err := assistant.Summarize(cmd.Context(), text)
			if err != nil {
				return err
			}
			res := service.SummarizeResult{Summary: summary}
			return printResult(cmd.OutOrStdout(), output, res, func() string { return summary + "\n" })
		},
	}

	cmd.Flags().StringVarP(&url, "url", "u", "", "summarize the article at this URL")
	return cmd
}

func sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources [text]",
		Short: "Suggest further reading on a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			assistant, err := a.assistant(cmd.Context())
			if err != nil {
				return err
			}

			list, err := assistant.FindSources(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), output, list, func() string { return formatSources(list) })
		},
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			format := output
			if format == "text" {
				format = "yaml"
			}
			return printResult(cmd.OutOrStdout(), format, redact(a.cfg), nil)
		},
	}
}
