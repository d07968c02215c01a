// Package main is the Musubu CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/musubu/internal/catalog"
	"github.com/hyperjump/musubu/internal/cli"
	"github.com/hyperjump/musubu/internal/config"
	"github.com/hyperjump/musubu/internal/hdc"
	"github.com/hyperjump/musubu/internal/hdql"
	"github.com/hyperjump/musubu/internal/server"
	"github.com/hyperjump/musubu/internal/store"
	"github.com/hyperjump/musubu/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/musubu/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "musubu server" from the project dir uses the project's config (including debug).
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "query":
		runQuery()
	case "explain":
		runExplain()
	case "add":
		runAdd()
	case "snapshot":
		runSnapshot()
	case "import":
		runImport()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("musubu version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (compiled plans, entity updates, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *store.Watcher
	if cfg.Watch.EnabledOrDefault() && cfg.Storage.SnapshotPath != "" {
		watchSvc = store.NewWatcher(cfg.Storage.SnapshotPath, components.Store, logger)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start snapshot watcher", zap.Error(err))
		}
	}

	srv := server.NewServer(
		components.Engine,
		components.Store,
		components.Catalog,
		components.SQLite,
		&cfg.Server,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := components.SQLite.SaveStore(ctx, components.Store); err != nil {
		logger.Warn("entity persistence on shutdown failed", zap.Error(err))
	}
	_ = srv.Stop(ctx)
}

// readQueryInput reads the AST JSON: from the file named by the first
// positional argument, or from stdin when the argument is absent or "-".
func readQueryInput(fs *flag.FlagSet) ([]byte, error) {
	if fs.NArg() >= 1 && fs.Arg(0) != "-" {
		return os.ReadFile(fs.Arg(0))
	}
	return io.ReadAll(os.Stdin)
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use local storage when server is not running)")
	topK := fs.Int("top-k", 0, "maximum number of results (0 = config default)")
	outputFormat := fs.String("output", "text", "output format: text (human-readable) or json (parseable)")
	showTrace := fs.Bool("trace", false, "print the reasoning trace after the result")
	_ = fs.Parse(os.Args[2:])

	format := cli.OutputText
	switch *outputFormat {
	case "json":
		format = cli.OutputJSON
	case "text":
		format = cli.OutputText
	default:
		fmt.Printf("Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}

	raw, err := readQueryInput(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read query: %v\n", err)
		os.Exit(1)
	}

	if *serverURL != "" {
		// Use HTTP API when server is running (avoids SQLite lock conflict).
		result, err := queryViaHTTP(*serverURL, raw, *topK)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			os.Exit(1)
		}
		writeQueryOutput(result, format, *showTrace)
		return
	}

	// Direct storage access (when server is not running).
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	root, err := hdql.UnmarshalNode(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid query: %v\n", err)
		os.Exit(1)
	}
	plan, err := components.Engine.CompileTopK(root, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Compilation failed: %v\n", err)
		os.Exit(1)
	}
	result, err := components.Engine.Run(plan)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	writeQueryOutput(result, format, *showTrace)
}

func writeQueryOutput(result hdql.Result, format cli.OutputFormat, showTrace bool) {
	if err := cli.WriteResult(os.Stdout, result, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if showTrace {
		fmt.Println()
		cli.WriteTrace(os.Stdout, result)
	}
}

func queryViaHTTP(serverURL string, rawQuery []byte, topK int) (hdql.Result, error) {
	body, err := json.Marshal(map[string]any{
		"query": json.RawMessage(rawQuery),
		"top_k": topK,
	})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var envelope struct {
		Kind   string          `json:"kind"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	switch envelope.Kind {
	case string(hdql.KindRecommendation):
		var r hdql.RecommendationResult
		if err := json.Unmarshal(envelope.Result, &r); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &r, nil
	default:
		var r hdql.VectorQueryResult
		if err := json.Unmarshal(envelope.Result, &r); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &r, nil
	}
}

func runExplain() {
	fs := flag.NewFlagSet("explain", flag.ExitOnError)
	topK := fs.Int("top-k", 0, "maximum number of results (0 = compiler default)")
	_ = fs.Parse(os.Args[2:])

	raw, err := readQueryInput(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read query: %v\n", err)
		os.Exit(1)
	}
	root, err := hdql.UnmarshalNode(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid query: %v\n", err)
		os.Exit(1)
	}
	plan, err := hdql.Compile(root, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Compilation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(plan.Explain())
}

// parseAttrs parses "k=v,k2=v2" into an attribute map.
func parseAttrs(raw string) (map[string]float64, error) {
	if raw == "" {
		return nil, nil
	}
	attrs := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("invalid attribute %q, want name=value", pair)
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid attribute value %q: %w", value, err)
		}
		attrs[strings.TrimSpace(name)] = f
	}
	return attrs, nil
}

func runAdd() {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use local storage)")
	entityType := fs.String("type", "", "entity type (required)")
	name := fs.String("name", "", "entity name (required)")
	description := fs.String("description", "", "entity description")
	attrsRaw := fs.String("attrs", "", "numeric attributes as name=value pairs, comma separated")
	_ = fs.Parse(os.Args[2:])

	if *entityType == "" || *name == "" {
		fmt.Println("Usage: musubu add --type <type> --name <name> [--description ...] [--attrs outcome_coverage=0.9,...]")
		os.Exit(1)
	}
	attrs, err := parseAttrs(*attrsRaw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid attributes: %v\n", err)
		os.Exit(1)
	}
	e := hdql.Entity{
		Type:        *entityType,
		Name:        *name,
		Description: *description,
		Attributes:  attrs,
	}

	if *serverURL != "" {
		body, _ := json.Marshal(e)
		resp, err := http.Post(*serverURL+"/api/v1/entities", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Add failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Entity stored: %s\n", e.Key())
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	components.Store.Add(e)
	if err := components.Catalog.Index(e); err != nil {
		logger.Warn("catalog indexing failed", zap.String("key", e.Key()), zap.Error(err))
	}
	if err := components.SQLite.PutEntity(context.Background(), e); err != nil {
		fmt.Fprintf(os.Stderr, "Persistence failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Entity stored: %s\n", e.Key())
}

func runSnapshot() {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	path := cfg.Storage.SnapshotPath
	if fs.NArg() >= 1 {
		path = fs.Arg(0)
	}
	if path == "" {
		fmt.Println("Usage: musubu snapshot [flags] <path>")
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	if err := components.Store.SaveFile(path); err != nil {
		fmt.Fprintf(os.Stderr, "Snapshot failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d entities to %s\n", components.Store.Len(), path)
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: musubu import [flags] <snapshot.json>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	loaded, err := store.LoadFile(path, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}
	sqlite, err := store.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer sqlite.Close()
	if err := sqlite.SaveStore(context.Background(), loaded); err != nil {
		fmt.Fprintf(os.Stderr, "Persistence failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Imported %d entities from %s\n", loaded.Len(), path)
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Entities          int      `json:"entities"`
	Types             []string `json:"types"`
	Dimensions        int      `json:"dimensions"`
	Strategy          string   `json:"strategy"`
	CatalogEntities   *uint64  `json:"catalog_entities,omitempty"`
	PersistedEntities *int64   `json:"persisted_entities,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use local storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		status = statusResponse{
			Entities:   components.Store.Len(),
			Types:      components.Store.Types(),
			Dimensions: components.Store.Dimensions(),
			Strategy:   string(components.Store.Strategy()),
		}
		if count, err := components.Catalog.Count(); err == nil {
			status.CatalogEntities = &count
		}
		if count, err := components.SQLite.CountEntities(context.Background()); err == nil {
			status.PersistedEntities = &count
		}
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
		fmt.Printf("entities:    %d\n", status.Entities)
		fmt.Printf("types:       %s\n", strings.Join(status.Types, ", "))
		fmt.Printf("dimensions:  %d\n", status.Dimensions)
		fmt.Printf("strategy:    %s\n", status.Strategy)
		if status.CatalogEntities != nil {
			fmt.Printf("catalog:     %d\n", *status.CatalogEntities)
		}
		if status.PersistedEntities != nil {
			fmt.Printf("persisted:   %d\n", *status.PersistedEntities)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// Components holds initialized services.
type Components struct {
	SQLite  *store.SQLiteStore
	Store   *store.Store
	Catalog *catalog.Catalog
	Engine  *hdql.Engine
}

func (c *Components) Close() {
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
	if c.SQLite != nil {
		_ = c.SQLite.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	strategy, err := hdc.ParseStrategy(cfg.Embedding.Strategy)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedding strategy: %w", err)
	}

	sqlite, err := store.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	st, err := sqlite.LoadStore(context.Background(), cfg.Embedding.Dimensions, strategy, logger)
	if err != nil {
		_ = sqlite.Close()
		return nil, fmt.Errorf("failed to load entities: %w", err)
	}
	// An empty database with a snapshot present means a fresh install seeded
	// from a JSON file: load the snapshot instead.
	if st.Len() == 0 && cfg.Storage.SnapshotPath != "" {
		if _, statErr := os.Stat(cfg.Storage.SnapshotPath); statErr == nil {
			loaded, loadErr := store.LoadFile(cfg.Storage.SnapshotPath, logger)
			if loadErr != nil {
				logger.Warn("snapshot load skipped", zap.String("path", cfg.Storage.SnapshotPath), zap.Error(loadErr))
			} else if loaded.Dimensions() == st.Dimensions() {
				st = loaded
			}
		}
	}
	logger.Info("entity store initialized",
		zap.Int("entities", st.Len()),
		zap.Int("dimensions", st.Dimensions()),
		zap.String("strategy", string(strategy)),
	)

	cat, err := catalog.New()
	if err != nil {
		_ = sqlite.Close()
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}
	entities, err := st.AllEntities()
	if err == nil {
		if err := cat.IndexAll(entities); err != nil {
			logger.Warn("catalog seeding failed", zap.Error(err))
		}
	}

	engine := hdql.NewEngine(st, cfg.Query.TopK, logger,
		hdql.WithSimilarityThreshold(cfg.Query.SimilarityThreshold),
		hdql.WithMaxEditDistance(cfg.Query.MaxEditDistance),
	)

	return &Components{
		SQLite:  sqlite,
		Store:   st,
		Catalog: cat,
		Engine:  engine,
	}, nil
}

func printUsage() {
	fmt.Println(`musubu - Hyperdimensional entity store and query engine

Usage:
  musubu server [flags]             Start the HTTP server
  musubu query [flags] [file]       Run a query (AST JSON from file or stdin)
  musubu explain [flags] [file]     Show the compiled plan for a query
  musubu add [flags]                Add an entity
  musubu snapshot [flags] [path]    Write a JSON snapshot of all entities
  musubu import [flags] <path>      Load a JSON snapshot into the database
  musubu status [flags]             Show store/catalog status
  musubu version                    Show version
  musubu help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/musubu/config.yaml)
  --debug            Enable debug logging (compiled plans, entity updates, etc.)

Query Flags:
  --config string    Config file path (for local storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for local storage when server is not running.
  --top-k int        Maximum number of results (default from config)
  --output string    Output format: text or json (default: text)
  --trace            Print the reasoning trace after the result

Add Flags:
  --config string       Config file path (for local storage mode)
  --server string       Server URL (default: http://localhost:8080). Use empty (--server "") for local storage.
  --type string         Entity type (required)
  --name string         Entity name (required)
  --description string  Entity description
  --attrs string        Numeric attributes as name=value pairs, comma separated

Status Flags:
  --config string    Config file path (for local storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for local storage.
  --output string    Output format: text or json (default: text)

Examples:
  musubu server
  musubu query query.json
  echo '{"node":"atomic","entity_type":"persona","identifier":"developer"}' | musubu query --server ""
  musubu query --output json --trace query.json
  musubu explain query.json
  musubu add --type solution --name search --attrs outcome_coverage=0.9,job_frequency=0.8
  musubu snapshot ./entities.json
  musubu import ./entities.json
  musubu status`)
}
