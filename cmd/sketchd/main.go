package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"sketchd/internal/agents"
	"sketchd/internal/bridge"
	"sketchd/internal/config"
	"sketchd/internal/gemini"
	"sketchd/internal/logging"
	"sketchd/internal/session"
)

var version = "dev"

var (
	// Global flags
	configPath string
	verbose    bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sketchd",
	Short: "sketchd - natural-language drawing engine for a shared canvas",
	Long: `sketchd turns natural-language requests into live canvas actions.

It accepts websocket clients, decomposes each request into drawing tasks,
streams model output through a partial-JSON decoder, and forwards actions
to the client as they finalize. Voice input rides a direct audio relay to
the generation backend.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// serveCmd runs the websocket server until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sketchd server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the sketchd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sketchd %s\n", version)
	},
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	stateDir, err := cfg.StateDir()
	if err != nil {
		return err
	}
	if err := logging.Initialize(stateDir, logging.Options{
		DebugMode:  cfg.Logging.DebugMode || verbose,
		Level:      cfg.Logging.Level,
		Categories: cfg.Logging.Categories,
	}); err != nil {
		return fmt.Errorf("failed to initialize file logging: %w", err)
	}
	defer logging.Shutdown()

	registry := session.NewRegistry(controllerFactory(cfg))
	server := bridge.NewServer(cfg, registry)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("sketchd listening", zap.String("addr", addr), zap.String("version", version))
		logging.Boot("sketchd %s listening on %s", version, addr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ttl := cfg.SessionIdleTTL()
		ticker := time.NewTicker(ttl / 4)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n := registry.Sweep(ttl); n > 0 {
					logger.Info("swept idle sessions", zap.Int("count", n))
				}
			}
		}
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// controllerFactory wires one session's role agents. The planner and
// verifier share one unary client per session; the executor gets its own
// lazily-connecting live connection so a streaming task never contends with
// review calls.
func controllerFactory(cfg *config.Config) func(id string) *session.Controller {
	return func(id string) *session.Controller {
		unary := gemini.NewClient(gemini.ClientConfig{
			APIKey:       cfg.Gen.APIKey,
			BaseURL:      cfg.Gen.BaseURL,
			Model:        cfg.Gen.Model,
			Timeout:      cfg.GenTimeout(),
			JSONResponse: true,
		})
		live := gemini.NewLiveClient(gemini.LiveConfig{
			Endpoint:          cfg.Gen.LiveEndpoint,
			APIKey:            cfg.Gen.APIKey,
			Model:             cfg.Gen.LiveModel,
			SystemInstruction: agents.ExecutorSystem(cfg.Prompts.ExecutorSystem),
			Modalities:        []string{"TEXT"},
			ReadTimeout:       cfg.GenReadTimeout(),
		})

		planner := agents.NewPlanner(unary, cfg.Prompts.PlannerSystem, cfg.Session.MaxTasks)
		executor := agents.NewExecutor(live, cfg.Prompts.ForceJSONPrefix)
		verifier := agents.NewVerifier(unary, cfg.Prompts.VerifierSystem)

		closeConns := func() { live.Drop() }
		return session.NewController(id, planner, executor, verifier, closeConns)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "sketchd.yaml", "path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
