// Package main is the doko CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dokoapp/doko/internal/assets"
	"github.com/dokoapp/doko/internal/caption"
	"github.com/dokoapp/doko/internal/config"
	"github.com/dokoapp/doko/internal/embedding"
	"github.com/dokoapp/doko/internal/ingest"
	"github.com/dokoapp/doko/internal/inventory"
	"github.com/dokoapp/doko/internal/keyword"
	"github.com/dokoapp/doko/internal/models"
	"github.com/dokoapp/doko/internal/search"
	"github.com/dokoapp/doko/internal/server"
	"github.com/dokoapp/doko/internal/storage"
	"github.com/dokoapp/doko/internal/vector"
	"github.com/dokoapp/doko/internal/watcher"
	"github.com/dokoapp/doko/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/doko/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory, so "doko server" from the project
// dir uses the project's config.
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
	case "search":
		runSearch()
	case "ingest":
		runIngest()
	case "containers":
		runContainers()
	case "move":
		runMove()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("doko version %s\n", version)
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
	debug := fs.Bool("debug", false, "enable debug logging")
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

	if err := components.Service.Rebuild(context.Background()); err != nil {
		logger.Fatal("Failed to rebuild vector index", zap.Error(err))
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.Enabled {
		if cfg.Watch.ContainerID == "" {
			logger.Fatal("watch.container_id is required when watch is enabled")
		}
		inboxIngester := &ingest.InboxIngester{
			Coordinator: components.Coordinator,
			ContainerID: cfg.Watch.ContainerID,
		}
		watchSvc := watcher.NewWatcher(cfg.Watch.Inbox, inboxIngester, watcher.WithLogger(logger))
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start inbox watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(
		components.Engine,
		components.Service,
		components.Coordinator,
		components.Assets,
		components.Store,
		cfg,
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
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildQuery joins all positional args with spaces so multi-word queries work
// the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", `server URL (empty = direct storage access)`)
	k := fs.Int("k", 10, "number of results")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	queryStr := buildQuery(fs.Args())
	if queryStr == "" {
		fmt.Println("Usage: doko search [flags] <query>")
		os.Exit(1)
	}
	query := &models.SearchQuery{Query: queryStr, K: *k}

	var response *models.SearchResponse
	if *serverURL != "" {
		var err error
		response, err = searchViaHTTP(*serverURL, query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		components := mustInitialize(*configPath)
		defer components.Close()
		if err := components.Service.Rebuild(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to rebuild vector index: %v\n", err)
			os.Exit(1)
		}
		var err error
		response, err = components.Engine.Search(context.Background(), query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(response); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		if len(response.Results) == 0 {
			fmt.Println("No results.")
			return
		}
		for _, res := range response.Results {
			fmt.Printf("%2d. %s  (score %.3f)\n", res.Rank, res.Item.Name, res.Score)
			if len(res.ContainerPath) > 0 {
				fmt.Printf("    in: %s\n", strings.Join(res.ContainerPath, " > "))
			}
			if res.Item.Description != "" {
				fmt.Printf("    %s\n", utils.Truncate(res.Item.Description, 120))
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	containerID := fs.String("container", "", "target container id")
	_ = fs.Parse(os.Args[2:])

	if *containerID == "" || fs.NArg() < 1 {
		fmt.Println("Usage: doko ingest --container <id> <photo> [photo...]")
		os.Exit(1)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", path, err)
			os.Exit(1)
		}
		part, err := mw.CreateFormFile("photos", filepath.Base(path))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Upload failed: %v\n", err)
			os.Exit(1)
		}
		if _, err := part.Write(data); err != nil {
			fmt.Fprintf(os.Stderr, "Upload failed: %v\n", err)
			os.Exit(1)
		}
	}
	mw.Close()

	resp, err := http.Post(
		*serverURL+"/api/v1/containers/"+*containerID+"/ingest",
		mw.FormDataContentType(),
		&buf,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Ingest failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var out struct {
		Outcomes []*models.IngestOutcome `json:"outcomes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	for _, o := range out.Outcomes {
		if o.Status == models.OutcomeSucceeded {
			fmt.Printf("ok      %s  -> item %s\n", o.Source, o.ItemID)
		} else {
			fmt.Printf("failed  %s  (%s)\n", o.Source, o.Reason)
		}
	}
}

func runContainers() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: doko containers <add|list|remove> [flags]")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("containers", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	location := fs.String("location", "", "container location (add)")
	parentID := fs.String("parent", "", "parent container id (add)")
	_ = fs.Parse(os.Args[3:])

	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: doko containers add [flags] <name>")
			os.Exit(1)
		}
		input := models.ContainerInput{
			Name:     buildQuery(fs.Args()),
			Location: *location,
			ParentID: *parentID,
		}
		body, _ := json.Marshal(input)
		resp, err := http.Post(*serverURL+"/api/v1/containers", "application/json", bytes.NewReader(body))
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
		var c models.Container
		if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created container %s (%s)\n", c.Name, c.ID)
	case "list":
		resp, err := http.Get(*serverURL + "/api/v1/containers")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "List failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Containers []*models.Container `json:"containers"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
		for _, c := range out.Containers {
			label := c.PathLabel()
			if c.ParentID != "" {
				label += "  (in " + c.ParentID + ")"
			}
			fmt.Printf("%s  %s\n", c.ID, label)
		}
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: doko containers remove <id>")
			os.Exit(1)
		}
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/containers/"+fs.Arg(0), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Remove failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", fs.Arg(0))
	default:
		fmt.Printf("Unknown containers subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runMove() {
	fs := flag.NewFlagSet("move", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 2 {
		fmt.Println("Usage: doko move <item-id> <container-id>")
		os.Exit(1)
	}
	itemID, containerID := fs.Arg(0), fs.Arg(1)
	body, _ := json.Marshal(map[string]string{"container_id": containerID})
	resp, err := http.Post(*serverURL+"/api/v1/items/"+itemID+"/move", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Move failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	fmt.Printf("Moved %s to %s\n", itemID, containerID)
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Containers         int64  `json:"containers"`
	Items              int64  `json:"items"`
	Vectors            int64  `json:"vectors"`
	VectorIndexSize    int    `json:"vector_index_size"`
	EmbeddingCacheSize int    `json:"embedding_cache_size"`
	DiskUsageBytes     *int64 `json:"disk_usage_bytes,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", `server URL (empty = direct storage access)`)
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/api/v1/status")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		components := mustInitialize(*configPath)
		defer components.Close()
		if err := components.Service.Rebuild(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to rebuild vector index: %v\n", err)
			os.Exit(1)
		}
		stats, err := components.Service.Stats(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = statusResponse{
			Containers:         stats.Containers,
			Items:              stats.Items,
			Vectors:            stats.Vectors,
			VectorIndexSize:    stats.IndexSize,
			EmbeddingCacheSize: stats.CacheSize,
		}
		diskBytes, err := storage.DiskUsageBytes(
			components.Config.Storage.DatabasePath,
			components.Config.Storage.AssetsPath,
			components.Config.Storage.BrowseIndexPath,
		)
		if err == nil {
			status.DiskUsageBytes = &diskBytes
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
		fmt.Printf("containers:          %d\n", status.Containers)
		fmt.Printf("items:               %d\n", status.Items)
		fmt.Printf("vectors:             %d\n", status.Vectors)
		fmt.Printf("vector_index_size:   %d\n", status.VectorIndexSize)
		fmt.Printf("embedding_cache:     %d\n", status.EmbeddingCacheSize)
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes:    %d\n", *status.DiskUsageBytes)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Config      *config.Config
	Store       storage.Store
	Assets      assets.Store
	Gateway     *embedding.Gateway
	Index       vector.Index
	Browse      keyword.Index
	Service     *inventory.Service
	Engine      *search.Engine
	Coordinator *ingest.Coordinator
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Assets != nil {
		_ = c.Assets.Close()
	}
	if c.Gateway != nil {
		_ = c.Gateway.Close()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Browse != nil {
		_ = c.Browse.Close()
	}
}

func mustInitialize(configPath string) *Components {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return components
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	assetStore, err := assets.NewBoltStore(cfg.Storage.AssetsPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize asset store: %w", err)
	}

	embedder := embedding.NewRemoteEmbedder(
		cfg.Embedding.BaseURL,
		cfg.Embedding.Model,
		cfg.Embedding.Dimensions,
		time.Duration(cfg.Embedding.TimeoutSeconds)*time.Second,
	)
	gateway := embedding.NewGateway(embedder, cfg.Embedding.CacheSize)

	index, err := vector.NewIndex(vector.IndexTypeMemory, cfg.Embedding.Dimensions)
	if err != nil {
		_ = store.Close()
		_ = assetStore.Close()
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}

	browse, err := keyword.NewBleveIndex(cfg.Storage.BrowseIndexPath)
	if err != nil {
		_ = store.Close()
		_ = assetStore.Close()
		return nil, fmt.Errorf("failed to initialize browse index: %w", err)
	}

	service := inventory.NewService(store, index, gateway,
		inventory.WithLogger(logger),
		inventory.WithBrowseIndex(browse),
	)
	engine := search.NewEngine(store, gateway, index,
		search.WithLogger(logger),
		search.WithQueryPrefix(cfg.Embedding.QueryPrefix),
		search.WithKLimits(cfg.Search.DefaultK, cfg.Search.MaxK),
	)
	captioner := caption.NewOpenAIClient(
		cfg.Caption.BaseURL,
		cfg.Caption.APIKey,
		cfg.Caption.Model,
		float64(cfg.Caption.RequestsPerMinute)/60.0,
		time.Duration(cfg.Caption.TimeoutSeconds)*time.Second,
	)
	coordinator := ingest.NewCoordinator(service, captioner, assetStore, store,
		ingest.WithLogger(logger),
		ingest.WithConcurrency(cfg.Ingest.Concurrency),
	)

	return &Components{
		Config:      cfg,
		Store:       store,
		Assets:      assetStore,
		Gateway:     gateway,
		Index:       index,
		Browse:      browse,
		Service:     service,
		Engine:      engine,
		Coordinator: coordinator,
	}, nil
}

func printUsage() {
	fmt.Println(`doko - photo-first household inventory with semantic search

Usage:
  doko server [flags]                     Start the HTTP server
  doko search [flags] <query>             Find items by natural-language query
  doko ingest --container <id> <photo>..  Upload photos into a container
  doko containers <add|list|remove>       Manage containers
  doko move <item-id> <container-id>      Move an item to another container
  doko status [flags]                     Show inventory and index status
  doko version                            Show version
  doko help                               Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/doko/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage access.
  --config string    Config file path (direct mode)
  --k int            Number of results (default: 10)
  --output string    Output format: text or json (default: text)

Examples:
  doko server
  doko search where are my hiking boots
  doko search --output json "tool for cutting threads"
  doko containers add --location "garage, north wall" Shelf 1
  doko ingest --container b7f2 photo1.jpg photo2.jpg
  doko move 41ab b7f2
  doko status`)
}
