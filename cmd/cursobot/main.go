// Package main is the cursobot CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hyperjump/cursobot/internal/cli"
	"github.com/hyperjump/cursobot/internal/config"
	"github.com/hyperjump/cursobot/internal/models"
	"github.com/hyperjump/cursobot/internal/ranking"
	"github.com/hyperjump/cursobot/internal/server"
	"github.com/hyperjump/cursobot/internal/storage"
	"github.com/hyperjump/cursobot/internal/watcher"
	"github.com/hyperjump/cursobot/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/cursobot/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory wins if present; when neither exists the built-in
// defaults and the environment are used. Returns the path actually loaded
// (empty for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		cwd, err := os.Getwd()
		if err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			cfg, err := config.Default(cwd)
			return cfg, "", err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "recommend":
		runRecommend()
	case "chat":
		runChat()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("cursobot version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func mustLogger(cfg *config.Config, debug bool) *zap.Logger {
	logger, err := utils.NewLogger(debug, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (dialogue transitions, requests, ranking)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger := mustLogger(cfg, debugMode)
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.String("dialogue_store", cfg.Dialogue.Store),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if cfg.Catalog.Watch {
		provider := components.Catalogs
		w, err := watcher.NewWatcher(
			[]string{cfg.Catalog.CoursesPath, cfg.Catalog.EmbeddingsPath},
			func(changed []string) {
				logger.Info("catalog files changed, reloading", zap.Strings("files", changed))
				// A failed reload keeps the previous snapshot; the provider logs it.
				_, _ = provider.Reload()
			},
			watcher.WithLogger(logger),
		)
		if err != nil {
			logger.Fatal("Failed to create catalog watcher", zap.Error(err))
		}
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start catalog watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(server.Deps{
		Chat:     components.Chat,
		Store:    components.Storage,
		Catalogs: components.Catalogs,
		Ranker:   components.Ranker,
		Tagger:   components.Tagger,
		Config:   cfg,
		Logger:   logger,
	})
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}

// joinArgs joins all positional args with spaces so multi-word input works
// the same with or without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// reorderArgs moves flags that appear after positional args to the front so
// that flag.Parse sees them ("cursobot recommend python -limit 3").
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runRecommend() {
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (local mode)")
	serverURL := fs.String("server", "", "server URL; empty ranks locally from the catalog files")
	limit := fs.Int("limit", 5, "number of results")
	variant := fs.String("variant", "", "ranking variant: standard or contextual (default from config)")
	weight := fs.Float64("weight", -1, "embedding weight in [0,1] (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: cursobot recommend [flags] <query>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	query := joinArgs(fs.Args())
	if query == "" {
		fs.Usage()
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var resp *models.RecommendationResponse
	if *serverURL != "" {
		resp, err = newClient(*serverURL).recommend(query, *limit, *variant)
	} else {
		resp, err = recommendLocal(*configPath, query, *limit, *variant, *weight)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Recommend failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteRecommendations(os.Stdout, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// recommendLocal loads the catalog from disk and ranks query without a server.
func recommendLocal(configPath, query string, limit int, variant string, weight float64) (*models.RecommendationResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := mustLogger(cfg, cfg.Debug)
	defer logger.Sync()

	if variant == "" {
		variant = cfg.Ranking.Variant
	}
	v, err := ranking.ParseVariant(variant)
	if err != nil {
		return nil, err
	}
	if weight < 0 {
		weight = cfg.Ranking.EmbeddingWeightOrDefault()
	}
	provider := newProvider(cfg, logger)
	cat, err := provider.Get()
	if err != nil {
		return nil, err
	}
	r, err := newRanker(cfg, logger)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := r.RankVariant(v, query, cat, limit, weight)
	if err != nil {
		return nil, err
	}
	return server.NewRecommendationResponse(query, res, time.Since(start)), nil
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	conversation := fs.String("conversation", "", "conversation id to continue (empty starts a new one)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: cursobot chat [flags] <message>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	resp, err := newClient(*serverURL).send(joinArgs(fs.Args()), *conversation)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chat failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteReply(os.Stdout, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (local mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read storage and catalog directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status *statusResponse
	var err error
	if *serverURL != "" {
		status, err = newClient(*serverURL).status()
	} else {
		status, err = statusLocal(*configPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		writeStatusText(os.Stdout, status)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
	if !status.Ready {
		os.Exit(2)
	}
}

// statusLocal reports the same fields as the status endpoint without a server.
// The tagger is not loaded.
func statusLocal(configPath string) (*statusResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := mustLogger(cfg, cfg.Debug)
	defer logger.Sync()

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	convs, err := store.CountConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("count conversations: %w", err)
	}
	msgs, err := store.CountMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	cat := newProvider(cfg, logger).Status()
	status := &statusResponse{
		Ready:         cat.Loaded,
		Catalog:       cat,
		Tagger:        server.TaggerStatus{Enabled: cfg.Tagging.Enabled, Embedder: cfg.Tagging.Embedder},
		Conversations: convs,
		Messages:      msgs,
		Ranking: statusRanking{
			Variant:         cfg.Ranking.Variant,
			EmbeddingWeight: cfg.Ranking.EmbeddingWeightOrDefault(),
			TypoCorrection:  cfg.Ranking.TypoCorrectionOrDefault(),
		},
	}
	paths := []string{cfg.Dialogue.StatePath}
	if cfg.Storage.Driver == config.StorageSQLite {
		paths = append(paths, cfg.Storage.DatabasePath)
	}
	if n, err := storage.UsageBytes(paths...); err == nil {
		status.DiskUsageBytes = &n
	}
	return status, nil
}

func printUsage() {
	fmt.Println(`cursobot - Course recommendation chatbot

Usage:
  cursobot server [flags]             Start the HTTP server
  cursobot recommend [flags] <query>  Rank courses for a query
  cursobot chat [flags] <message>     Send a message to a running server
  cursobot status [flags]             Show catalog, tagger and storage status
  cursobot version                    Show version
  cursobot help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/cursobot/config.yaml)
  --debug            Enable debug logging

Recommend Flags:
  --config string    Config file path (local mode)
  --server string    Server URL. Empty (default) ranks locally from the catalog files.
  --limit int        Number of results (default: 5)
  --variant string   standard or contextual (default from config)
  --weight float     Embedding weight in [0,1] (default from config)
  --output string    Output format: text or json (default: text)

Chat Flags:
  --server string        Server URL (default: http://localhost:8080)
  --conversation string  Conversation id to continue
  --output string        Output format: text or json (default: text)

Status Flags:
  --config string    Config file path (local mode)
  --server string    Server URL (default: http://localhost:8080). Empty reads storage directly.
  --output string    Output format: text or json (default: text)

Environment:
  CURSOBOT_HOST, CURSOBOT_PORT, CURSOBOT_DEBUG, CURSOBOT_LOG_LEVEL,
  CURSOBOT_STORAGE_DRIVER, CURSOBOT_DATABASE_URL,
  CURSOBOT_COURSES_PATH, CURSOBOT_EMBEDDINGS_PATH
  A .env file in the working directory is loaded first.

Examples:
  cursobot server
  cursobot recommend programación en python
  cursobot recommend --variant contextual --output json "finanzas personales"
  cursobot chat hola
  cursobot chat --conversation 0b6f9c2e-... virtual
  cursobot status --output json`)
}
