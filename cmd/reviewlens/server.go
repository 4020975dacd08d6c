package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"

	"github.com/kalambet/reviewlens/internal/analysis"
	"github.com/kalambet/reviewlens/internal/api"
	"github.com/kalambet/reviewlens/internal/classifier"
	"github.com/kalambet/reviewlens/internal/config"
	"github.com/kalambet/reviewlens/internal/metrics"
	"github.com/kalambet/reviewlens/internal/reviews"
	"github.com/kalambet/reviewlens/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reviewlens server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running reviewlens server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return signalServer(syscall.SIGTERM, "stop")
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload the review dataset in the running server",
	Long: `Reload the review dataset in the running server.

The server rebuilds its in-memory review store from the database and drops
every cached analysis. Run this after "reviewlens ingest".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return signalServer(syscall.SIGHUP, "reload")
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show reviewlens status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdin/stdout")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "reviewlens.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func setupLogging(cfg config.Config) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()})))
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "reviewlens version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)
	metrics.Init()

	// Refuse to start twice against the same port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(cfg.BaseURL() + "/health"); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("reviewlens is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("reviewlens is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	labels, err := cfg.Labels()
	if err != nil {
		return fmt.Errorf("parsing labels: %w", err)
	}
	menuOpts := reviews.MenuOptions{Size: cfg.Analysis.MenuSize, MinReviews: cfg.Analysis.MenuMinReviews}

	loadStart := time.Now()
	reviewStore, err := reviews.Load(ctx, store, menuOpts)
	if err != nil {
		return fmt.Errorf("loading review store: %w", err)
	}
	slog.Info("review store loaded",
		"products", reviewStore.ProductCount(),
		"reviews", reviewStore.ReviewCount(),
		"menu", len(reviewStore.Menu()),
		"duration_ms", time.Since(loadStart).Milliseconds(),
	)
	if reviewStore.ReviewCount() == 0 {
		printWarning("dataset is empty; run `reviewlens ingest --reviews <file> --meta <file>` and then `reviewlens reload`")
	}

	clf := classifier.NewClient(cfg.Classifier.BaseURL, cfg.Classifier.Model, cfg.Classifier.APIKey, cfg.ClassifierTimeout())
	if cfg.Classifier.WarmUp {
		go warmUp(ctx, clf, labels, cfg.ClassifierTimeout())
	}

	cache, err := analysis.NewCache(cfg.Analysis.CacheSize)
	if err != nil {
		return err
	}
	analyzer := analysis.NewAnalyzer(reviewStore, clf, cache, analysis.Options{
		MaxReviews: cfg.Analysis.MaxReviews,
		Labels:     labels,
		Menu:       menuOpts,
		Logger:     slog.Default(),
	})
	reload := func(ctx context.Context) (*reviews.Store, error) {
		return analyzer.Reload(ctx, store)
	}

	deps := api.Deps{
		Analyzer:    analyzer,
		Feedback:    store,
		Reload:      reload,
		AdminToken:  cfg.Server.AdminToken,
		CORSOrigins: cfg.CORSOrigins(),
		Logger:      slog.Default(),
	}

	go reloadOnHangup(ctx, reload)

	if withMCP {
		stdioSrv := server.NewStdioServer(api.NewMCPServer(deps, version))
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Addr(), err)
	}
	ln = netutil.LimitListener(ln, cfg.Server.MaxConns)

	srv := &http.Server{
		Handler:           api.NewHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("reviewlens listening", "addr", ln.Addr().String(), "max_conns", cfg.Server.MaxConns)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func warmUp(ctx context.Context, c classifier.Classifier, labels []string, timeout time.Duration) {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	if err := classifier.WarmUp(wctx, c, labels); err != nil {
		slog.Warn("classifier warm-up failed; first analysis may be slow", "error", err)
		return
	}
	slog.Info("classifier warm", "duration_ms", time.Since(start).Milliseconds())
}

// reloadOnHangup rebuilds the review store on every SIGHUP until ctx ends.
func reloadOnHangup(ctx context.Context, reload api.ReloadFunc) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if _, err := reload(ctx); err != nil {
				slog.Error("reload failed; keeping current review store", "error", err)
			}
		}
	}
}

func signalServer(sig syscall.Signal, action string) error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("reviewlens is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(sig); err != nil {
		printError("could not %s reviewlens (PID %d): %v", action, pid, err)
		if sig == syscall.SIGTERM {
			removePIDFile(pidPath)
		}
		return err
	}

	printSuccess("Sent %s signal to reviewlens (PID %d)", action, pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &apiClient{baseURL: cfg.BaseURL(), httpClient: &http.Client{Timeout: 2 * time.Second}}
	running := false
	if resp, err := client.get(ctx, "/health"); err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on %s", cfg.Addr())
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if running {
		if resp, err := client.get(ctx, "/products"); err == nil {
			var menu []reviews.MenuEntry
			if decodeJSON(resp, &menu) == nil {
				printStatus("Menu", "%d products", len(menu))
			}
		}
	}

	if store, err := storage.Open(cfg.Storage.DataDir); err == nil {
		if products, revs, err := store.DatasetCounts(ctx); err == nil {
			printStatus("Dataset", "%d products, %d reviews", products, revs)
		}
		store.Close()
	}

	printStatus("Classifier", "%s at %s", cfg.Classifier.Model, cfg.Classifier.BaseURL)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
