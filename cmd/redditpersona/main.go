package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/redditpersona/internal/analyze"
	"github.com/TobiSchelling/redditpersona/internal/config"
	"github.com/TobiSchelling/redditpersona/internal/pipeline"
	"github.com/TobiSchelling/redditpersona/internal/report"
	"github.com/TobiSchelling/redditpersona/internal/server"
	"github.com/TobiSchelling/redditpersona/internal/store"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "redditpersona",
	Short:   "Build cited user personas from Reddit activity",
	Long:    "redditpersona fetches a Reddit account's posts and comments, asks an LLM for persona traits, and links every cited quote back to its source.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			logger = newLogger("INFO")
			return nil
		}

		if err := config.LoadDotEnv(); err != nil {
			return fmt.Errorf("loading .env: %w", err)
		}

		var err error
		cfg, err = config.LoadOrDefault(configPath)
		if err != nil {
			return err
		}

		level := cfg.Logging.Level
		if verbose {
			level = "DEBUG"
		}
		logger = newLogger(level)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(promptCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("redditpersona", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in the XDG config directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure Reddit credentials, the LLM provider and the store.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store and provider status",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := newApp()
		defer app.Close()

		uri := cfg.GetStoreURI()
		fmt.Println("Store:")
		fmt.Printf("  Backend: %s\n", store.Backend(uri))
		stats, err := app.pipeline.Stats(cmd.Context())
		if err != nil {
			fmt.Printf("  Unavailable: %v\n", err)
		} else {
			fmt.Printf("  Snapshots: %d\n", stats.Snapshots)
			fmt.Printf("  Personas: %d\n", stats.Personas)
		}
		fmt.Println("\nLLM:")
		fmt.Printf("  Provider: %s\n", cfg.LLM.Provider)
		fmt.Printf("  Model: %s\n", cfg.LLM.Model)
		fmt.Printf("  Configured: %t\n", app.provider != nil)
		fmt.Println("\nReddit:")
		fmt.Printf("  Source: %s\n", cfg.Reddit.Source)
		fmt.Printf("  Authenticated: %t\n", cfg.Reddit.ClientID != "")
		fmt.Printf("  Fetch limit: %d\n", cfg.Reddit.FetchLimit)
		fmt.Println("\nEvents:")
		if cfg.Events.NATSURL == "" {
			fmt.Println("  Disabled")
		} else {
			fmt.Printf("  NATS: %s\n", cfg.Events.NATSURL)
		}
		return nil
	},
}

// --- single-user commands ---

var fetchCmd = &cobra.Command{
	Use:   "fetch <username>",
	Short: "Fetch an account's posts and comments and store the snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := newApp()
		defer app.Close()

		snap, err := app.pipeline.FetchAndStore(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Stored u/%s: %d posts, %d comments\n", snap.Username, len(snap.Posts), len(snap.Comments))
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate <username>",
	Short: "Generate a persona from the stored snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := newApp()
		defer app.Close()

		rec, err := app.pipeline.GeneratePersona(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		resolved, unresolved := rec.CitationStats()
		fmt.Printf("Persona stored for u/%s (%d citations resolved, %d unresolved)\n", rec.Username, resolved, unresolved)
		if missing := rec.MissingKeys(); len(missing) > 0 {
			fmt.Printf("  Missing: %s\n", strings.Join(missing, ", "))
		}
		return nil
	},
}

var refresh bool

var runCmd = &cobra.Command{
	Use:   "run <username>",
	Short: "Serve a stored complete persona or fetch and generate a new one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := newApp()
		defer app.Close()

		result := app.pipeline.Run(cmd.Context(), args[0], refresh)
		for i, step := range result.Steps {
			fmt.Printf("\nStep %d: %s\n", i+1, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}
		if err := result.Err(); err != nil {
			return err
		}
		fmt.Printf("\nDone. Run 'redditpersona show %s' to read the persona.\n", result.Persona.Username)
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&refresh, "refresh", false, "Re-fetch and regenerate even if a complete persona is stored")
}

var (
	showFormat string
	showOutput string
)

var showCmd = &cobra.Command{
	Use:     "show <username>",
	Aliases: []string{"export"},
	Short:   "Print or export the stored persona",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := newApp()
		defer app.Close()

		rec, err := app.pipeline.Persona(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if showOutput == "" {
			return report.Write(os.Stdout, rec, showFormat)
		}
		f, err := os.Create(showOutput)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		if err := report.Write(f, rec, showFormat); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", showOutput)
		return nil
	},
}

func init() {
	showCmd.Flags().StringVarP(&showFormat, "format", "f", report.FormatMarkdown, "Output format: json, markdown or html")
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "", "Write to file instead of stdout")
}

var completeCmd = &cobra.Command{
	Use:   "complete <username>",
	Short: "Report whether a complete persona is stored",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := newApp()
		defer app.Close()

		ok, err := app.pipeline.IsPersonaComplete(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(ok)
		return nil
	},
}

var promptCmd = &cobra.Command{
	Use:   "prompt <username>",
	Short: "Print the analysis prompt for the stored snapshot without calling the model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := newApp()
		defer app.Close()

		snap, err := app.pipeline.Snapshot(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(analyze.BuildPrompt(snap))
		return nil
	},
}

// --- batch command ---

var (
	batchParallel int
	batchRefresh  bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <username>...",
	Short: "Run several usernames concurrently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := newApp()
		defer app.Close()

		results := make([]*pipeline.Result, len(args))
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(max(batchParallel, 1))
		for i, username := range args {
			g.Go(func() error {
				results[i] = app.pipeline.Run(ctx, username, batchRefresh)
				return nil
			})
		}
		_ = g.Wait()

		var failed int
		for _, r := range results {
			if err := r.Err(); err != nil {
				failed++
				fmt.Printf("  %-24s error: %v\n", r.Username, err)
				continue
			}
			resolved, unresolved := r.Persona.CitationStats()
			fmt.Printf("  %-24s ok (%d/%d citations resolved)\n", r.Username, resolved, resolved+unresolved)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d usernames failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVarP(&batchParallel, "parallel", "p", 4, "Maximum concurrent runs")
	batchCmd.Flags().BoolVar(&batchRefresh, "refresh", false, "Re-fetch and regenerate every username")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := newApp()
		defer app.Close()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		srv := server.New(app.pipeline, app.metrics, logger)
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return srv.ListenAndServe(cmd.Context(), fmt.Sprintf(":%d", port))
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
