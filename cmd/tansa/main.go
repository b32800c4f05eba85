// Package main is the Tansa CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tansa-search/tansa/internal/catalog"
	"github.com/tansa-search/tansa/internal/cli"
	"github.com/tansa-search/tansa/internal/config"
	"github.com/tansa-search/tansa/internal/controller"
	"github.com/tansa-search/tansa/internal/index"
	"github.com/tansa-search/tansa/internal/models"
	"github.com/tansa-search/tansa/internal/query"
	"github.com/tansa-search/tansa/internal/server"
	"github.com/tansa-search/tansa/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/tansa/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
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
	case "index":
		runIndexCommand()
	case "roots":
		runRoots()
	case "status":
		runStatus()
	case "sessions":
		runSessions()
	case "version", "--version", "-v":
		fmt.Printf("tansa version %s\n", version)
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
	debug := fs.Bool("debug", false, "enable debug logging (scanner progress, watcher events, etc.)")
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
	if err := components.Controller.Watch(watchCtx); err != nil {
		logger.Warn("change watcher not started", zap.Error(err))
	}

	srv := server.NewServer(components.Engine, components.Controller, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil {
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

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: tansa search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Wrap regex sub-queries in slashes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  tansa search quarterly report
  tansa search "quarterly report"            # same as above
  tansa search /v[0-9]+/ release             # regex and free text combined
  tansa search --mime text/plain invoice     # restrict to a MIME type
  tansa search --min-size 1048576 backup     # files of at least 1 MiB
  tansa search --page 2 --per-page 50 logs
`)
}

func runSearch() {
	searchArgs := cli.ReorderArgs(os.Args[2:])

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct index mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = open the index directly when the server is not running)")
	page := fs.Int("page", 1, "result page, 1-based")
	perPage := fs.Int("per-page", 20, "results per page")
	mime := fs.String("mime", "", "restrict to an exact MIME type")
	minSize := fs.Int64("min-size", 0, "minimum file size in bytes")
	maxSize := fs.Int64("max-size", 0, "maximum file size in bytes")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	if fs.NArg() < 1 {
		printSearchUsage(fs)
		os.Exit(1)
	}
	queryStr := cli.BuildQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	req := &models.SearchRequest{
		Query:   queryStr,
		Page:    *page,
		PerPage: *perPage,
		Filters: models.Filters{
			MIMEType: *mime,
			MinSize:  *minSize,
			MaxSize:  *maxSize,
		},
	}

	var response *models.SearchResponse
	if *serverURL != "" {
		// Use the HTTP API when the server is running, which avoids a
		// bleve/SQLite lock conflict with the server process.
		response, err = searchViaHTTP(*serverURL, req)
	} else {
		response, err = searchDirect(*configPath, req)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, req *models.SearchRequest) (*models.SearchResponse, error) {
	body, err := json.Marshal(req)
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

func searchDirect(configPath string, req *models.SearchRequest) (*models.SearchResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	store, err := index.Open(cfg.Storage.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	defer store.Close()
	engine := query.New(store, cfg.Search)
	return engine.Search(context.Background(), req)
}

func runIndexCommand() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: tansa index <start|pause|resume|cancel|progress> [flags]")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	root := fs.String("root", "", "root directory to authorize before starting (start only)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[3:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	switch sub {
	case "start":
		var body io.Reader
		if *root != "" {
			abs, err := filepath.Abs(*root)
			if err != nil {
				fmt.Printf("Invalid root: %v\n", err)
				os.Exit(1)
			}
			b, _ := json.Marshal(map[string]string{"root": abs})
			body = bytes.NewReader(b)
		}
		resp, err := http.Post(*serverURL+"/api/v1/index/start", "application/json", body)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusAccepted {
			fmt.Printf("Start failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			SessionID string `json:"session_id"`
			State     string `json:"state"`
		}
		if err := json.Unmarshal(b, &out); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Session started: %s (%s)\n", out.SessionID, out.State)
	case "pause", "resume", "cancel":
		resp, err := http.Post(*serverURL+"/api/v1/index/"+sub, "application/json", nil)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fmt.Printf("%s failed (%d): %s\n", sub, resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Status string `json:"status"`
			Reason string `json:"reason"`
			State  string `json:"state"`
		}
		if err := json.Unmarshal(b, &out); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		if out.Status == "noop" {
			fmt.Printf("Nothing to %s: %s\n", sub, out.Reason)
			return
		}
		fmt.Printf("State: %s\n", out.State)
	case "progress":
		resp, err := http.Get(*serverURL + "/api/v1/index/progress")
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Progress failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var p models.Progress
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteProgress(os.Stdout, &p, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Printf("Unknown index subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runRoots() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: tansa roots <add|remove|list> [path]")
		fmt.Println("  tansa roots add <path>     Authorize a directory for indexing")
		fmt.Println("  tansa roots remove <path>  De-authorize a directory and purge its documents")
		fmt.Println("  tansa roots list           List authorized roots")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("roots", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[3:])
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: tansa roots add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body, _ := json.Marshal(map[string]string{"path": path})
		resp, err := http.Post(*serverURL+"/api/v1/roots", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Add failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: tansa roots remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/roots?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Remove failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		resp, err := http.Get(*serverURL + "/api/v1/roots")
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("List failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Roots []catalog.Root `json:"roots"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		for _, r := range out.Roots {
			fmt.Println(r.Path)
		}
	default:
		fmt.Printf("Unknown roots subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = open the index directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	var stats models.IndexStats
	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/api/v1/index/stats")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Status failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
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
		s, err := components.Controller.Stats(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
			os.Exit(1)
		}
		stats = *s
	}

	if err := cli.WriteStats(os.Stdout, &stats, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runSessions() {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	limit := fs.Int("limit", 20, "number of sessions to list")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/sessions?limit=%d", *serverURL, *limit))
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Printf("List failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var out struct {
		Sessions []catalog.Session `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Printf("Parse failed: %v\n", err)
		os.Exit(1)
	}
	for _, s := range out.Sessions {
		finished := "-"
		if s.FinishedAt != nil {
			finished = s.FinishedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%s  %-10s  started %s  finished %s  %d/%d files, %d errors\n",
			s.ID, s.State, s.StartedAt.Format("2006-01-02 15:04:05"), finished,
			s.Processed, s.Discovered, s.Errored)
	}
}

// Components holds initialized services for server and direct modes.
type Components struct {
	Store      *index.Store
	Catalog    *catalog.Catalog
	Controller *controller.Controller
	Engine     *query.Engine
}

func (c *Components) Close() {
	if c.Controller != nil {
		c.Controller.Close()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := index.Open(cfg.Storage.IndexPath)
	if err != nil {
		if !errors.Is(err, index.ErrCorrupt) {
			return nil, fmt.Errorf("failed to open index: %w", err)
		}
		logger.Warn("index corrupt, rebuilding", zap.String("path", cfg.Storage.IndexPath), zap.Error(err))
		store, err = index.Rebuild(cfg.Storage.IndexPath)
		if err != nil {
			return nil, fmt.Errorf("failed to rebuild index: %w", err)
		}
	}

	cat, err := catalog.Open(cfg.Storage.CatalogPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	ctrl, err := controller.New(cfg, store, cat, controller.WithLogger(logger))
	if err != nil {
		_ = cat.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize controller: %w", err)
	}

	// Roots from config are merged into the persisted set on every start.
	for _, root := range cfg.Scan.Roots {
		if _, err := ctrl.AddRoot(context.Background(), root); err != nil && !isRootExists(err) {
			logger.Warn("failed to register configured root", zap.String("root", root), zap.Error(err))
		}
	}

	engine := query.New(store, cfg.Search, query.WithLogger(logger))

	return &Components{
		Store:      store,
		Catalog:    cat,
		Controller: ctrl,
		Engine:     engine,
	}, nil
}

func isRootExists(err error) bool {
	return errors.Is(err, catalog.ErrRootExists)
}

func printUsage() {
	fmt.Println(`tansa - Local full-text file search engine

Usage:
  tansa server [flags]                       Start the HTTP server
  tansa search [flags] <query>               Search indexed files
  tansa index <start|pause|resume|cancel|progress> [flags]
                                             Control the indexing session
  tansa roots <add|remove|list> [path]       Manage authorized directories
  tansa sessions [flags]                     List recent indexing sessions
  tansa status [flags]                       Show index statistics
  tansa version                              Show version
  tansa help                                 Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/tansa/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --config string    Config file path (for direct index mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to open the index directly.
  --page int         Result page, 1-based (default: 1)
  --per-page int     Results per page (default: 20)
  --mime string      Restrict to an exact MIME type
  --min-size int     Minimum file size in bytes
  --max-size int     Maximum file size in bytes
  --output string    Output format: text, compact, or json (default: text)

Examples:
  tansa server
  tansa roots add ~/Documents
  tansa index start
  tansa index progress
  tansa search "quarterly report"
  tansa search /v[0-9]+/ release
  tansa search --mime application/pdf invoice
  tansa status --output json`)
}
