// Package main provides the CLI entry point for the deskpilot broker.
//
// Deskpilot sits between a conversational assistant and the office booking
// surfaces (meeting rooms, Google Calendar), injecting each user's stored
// credentials into tool calls and streaming the assistant's replies back
// over HTTP.
//
// # Basic Usage
//
// Start the server:
//
//	deskpilot serve --config deskpilot.yaml
//
// Chat from a terminal:
//
//	deskpilot chat
//
// Manage stored secrets:
//
//	deskpilot secrets set DISH_COOKIE <value>
//	deskpilot secrets list
//
// # Environment Variables
//
//   - SECRETS_ENCRYPTION_KEY: base64 key for the secrets store (required)
//   - ANTHROPIC_API_KEY / OPENAI_API_KEY: model backend keys
//   - GOOGLE_OAUTH_CREDENTIALS: path to the Google client secrets JSON
//   - GOOGLE_OAUTH_REDIRECT_URI: overrides the OAuth callback URL
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/deskpilot/deskpilot/internal/agent"
	"github.com/deskpilot/deskpilot/internal/agent/providers"
	"github.com/deskpilot/deskpilot/internal/auth"
	"github.com/deskpilot/deskpilot/internal/config"
	"github.com/deskpilot/deskpilot/internal/credentials"
	"github.com/deskpilot/deskpilot/internal/gcal"
	"github.com/deskpilot/deskpilot/internal/hooks"
	"github.com/deskpilot/deskpilot/internal/observability"
	"github.com/deskpilot/deskpilot/internal/provider"
	"github.com/deskpilot/deskpilot/internal/web"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "deskpilot",
		Short: "Deskpilot - assistant broker for office bookings",
		Long: `Deskpilot brokers a conversational assistant onto the office booking
surfaces: meeting rooms and Google Calendar. Per-user credentials are stored
encrypted and injected into tool calls at the transport boundary, so the
model never sees them.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildChatCmd(),
		buildSecretsCmd(),
	)

	return rootCmd
}

// buildServeCmd creates the "serve" command that starts the HTTP server.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the deskpilot HTTP server",
		Long: `Start the deskpilot server.

The server will:
1. Load configuration from the specified file (defaults apply without one)
2. Open the encrypted per-user secrets store
3. Start the configured tool providers and connect to them
4. Initialize the selected LLM backend (Anthropic or OpenAI)
5. Serve the HTTP API: secrets CRUD, send-message, SSE streaming, OAuth

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with defaults
  deskpilot serve

  # Start with a config file and debug logging
  deskpilot serve --config /etc/deskpilot/deskpilot.yaml --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
	slog.SetDefault(logger)

	logger.Info("starting deskpilot",
		"version", version,
		"commit", commit,
		"config", configPath,
		"llm_provider", cfg.LLM.Provider,
	)

	metrics := observability.NewMetrics()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry, err := connectProviders(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer registry.CloseAll()

	llm, err := buildLLMProvider(cfg)
	if err != nil {
		return err
	}

	runtime := agent.NewRuntime(agent.RuntimeConfig{
		Provider:  llm,
		Registry:  registry,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Logger:    logger,
		Metrics:   metrics,
	})
	sessions := agent.NewManager(agent.NewTranslator(runtime, logger), logger)

	oauth, err := gcal.NewOAuthFromEnv()
	if err != nil {
		if errors.Is(err, gcal.ErrNotConfigured) {
			logger.Info("google oauth not configured, calendar linking disabled")
		} else {
			logger.Warn("google oauth misconfigured, calendar linking disabled", "error", err)
		}
		oauth = nil
	}

	jwtSvc := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	if !jwtSvc.Enabled() {
		logger.Warn("auth disabled, all requests run as the local principal")
	}

	server := web.NewServer(web.Config{
		Sessions: sessions,
		Secrets:  store,
		OAuth:    oauth,
		JWT:      jwtSvc,
		Logger:   logger,
		Metrics:  metrics,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("deskpilot listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received, initiating graceful shutdown")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}

	logger.Info("deskpilot stopped gracefully")
	return nil
}

// buildChatCmd creates the "chat" command: a local REPL against the same
// runtime the server uses, running as the local principal.
func buildChatCmd() *cobra.Command {
	var (
		configPath string
		session    string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant from the terminal",
		Long: `Start an interactive chat session. Tool providers are started and the
local principal's stored credentials are injected into tool calls, exactly
as they would be for an HTTP request.

Commands inside the REPL:
  reset        clear the conversation history
  quit, exit   leave the chat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), configPath, session)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVarP(&session, "session", "s", "default", "Session name for conversation history")

	return cmd
}

func runChat(ctx context.Context, configPath, session string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Keep the REPL quiet: warnings and errors only.
	logger := observability.NewLogger(observability.LogConfig{
		Level:  "warn",
		Format: "text",
		Output: os.Stderr,
	})

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry, err := connectProviders(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer registry.CloseAll()

	llm, err := buildLLMProvider(cfg)
	if err != nil {
		return err
	}

	runtime := agent.NewRuntime(agent.RuntimeConfig{
		Provider:  llm,
		Registry:  registry,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Logger:    logger,
	})
	sessions := agent.NewManager(agent.NewTranslator(runtime, logger), logger)

	secrets, err := store.GetAll(ctx, "local")
	if err != nil {
		logger.Warn("failed to load secrets, continuing without credentials", "error", err)
		secrets = nil
	}
	bag := credentials.FromSecrets(secrets)

	key := "local:" + session
	fmt.Println("deskpilot chat - type 'quit' to exit, 'reset' to clear history")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "reset":
			sessions.Reset(key)
			fmt.Println("history cleared")
			continue
		}

		text, err := sessions.Send(ctx, key, line, bag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			fmt.Println(strings.TrimSpace(text))
		}
	}
	return scanner.Err()
}

// buildSecretsCmd creates the "secrets" command group for managing the
// encrypted per-user store from the terminal.
func buildSecretsCmd() *cobra.Command {
	var (
		configPath string
		userID     string
	)

	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage stored credentials",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.PersistentFlags().StringVarP(&userID, "user", "u", "local", "User the secrets belong to")

	withStore := func(fn func(ctx context.Context, store *credentials.SQLiteStore) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger := slog.Default()
			store, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()
			return fn(cmd.Context(), store)
		}
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store or replace a secret",
		Args:  cobra.ExactArgs(2),
	}
	setCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store *credentials.SQLiteStore) error {
			if err := store.Set(ctx, userID, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", args[0])
			return nil
		})(cmd, args)
	}

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a stored secret",
		Args:  cobra.ExactArgs(1),
	}
	getCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store *credentials.SQLiteStore) error {
			value, err := store.Get(ctx, userID, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		})(cmd, args)
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored secret keys",
		Args:  cobra.NoArgs,
	}
	listCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store *credentials.SQLiteStore) error {
			keys, err := store.ListKeys(ctx, userID)
			if err != nil {
				return err
			}
			for _, key := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}
			return nil
		})(cmd, args)
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a stored secret",
		Args:  cobra.ExactArgs(1),
	}
	deleteCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store *credentials.SQLiteStore) error {
			if err := store.Delete(ctx, userID, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		})(cmd, args)
	}

	generateKeyCmd := &cobra.Command{
		Use:   "generate-key",
		Short: "Generate a new SECRETS_ENCRYPTION_KEY value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := credentials.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}

	cmd.AddCommand(setCmd, getCmd, listCmd, deleteCmd, generateKeyCmd)
	return cmd
}

// openStore opens the encrypted secrets store using the key from the
// environment.
func openStore(cfg *config.Config, logger *slog.Logger) (*credentials.SQLiteStore, error) {
	key := os.Getenv("SECRETS_ENCRYPTION_KEY")
	if key == "" {
		return nil, fmt.Errorf("SECRETS_ENCRYPTION_KEY is not set; generate one with `deskpilot secrets generate-key`")
	}
	cipher, err := credentials.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("invalid SECRETS_ENCRYPTION_KEY: %w", err)
	}
	store, err := credentials.NewSQLiteStore(cfg.Secrets.DBPath, cipher, logger)
	if err != nil {
		return nil, fmt.Errorf("open secrets store: %w", err)
	}
	return store, nil
}

// connectProviders loads the tool provider registry, binds the credential
// injection hooks, and connects every provider subprocess.
func connectProviders(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*provider.Registry, error) {
	loaded, err := provider.LoadProviders(cfg.Providers.ConfigPath, hooks.ForProviders(), logger)
	if err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}
	for _, p := range loaded {
		p.SetCallTimeout(cfg.Providers.CallTimeout)
	}

	registry := provider.NewRegistry(loaded, logger)
	if err := registry.ConnectAll(ctx); err != nil {
		return nil, fmt.Errorf("connect providers: %w", err)
	}
	return registry, nil
}

// buildLLMProvider selects the model backend from configuration. API keys
// fall back to the conventional environment variables.
func buildLLMProvider(cfg *config.Config) (agent.LLMProvider, error) {
	switch cfg.LLM.Provider {
	case "anthropic":
		apiKey := cfg.LLM.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       apiKey,
			BaseURL:      cfg.LLM.BaseURL,
			DefaultModel: cfg.LLM.Model,
		})
	case "openai":
		apiKey := cfg.LLM.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		return providers.NewOpenAIProvider(apiKey), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
