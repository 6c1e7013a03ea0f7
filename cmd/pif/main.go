// Command pif upgrades progressive image placeholders in HTML documents.
//
// Usage:
//
//	pif -in page.html -base https://example.com/   # upgrade a file, write HTML to stdout
//	pif -in https://example.com/post -out post.html
//	pif -serve -config pif.yaml                    # HTTP API
//	pif -mcp                                       # MCP tools over stdio
//	pif -thumb media/photo.jpg                     # write media/photo_thumb.jpg
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/pif/imagefield"
	"github.com/hazyhaar/pif/progressive"
)

const version = "1.0.0"

type options struct {
	configPath string
	in         string
	base       string
	out        string
	pageID     string
	serve      bool
	mcpStdio   bool
	thumb      string
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "path to pif.yaml config file")
	flag.StringVar(&o.in, "in", "", "HTML input: file path, - for stdin, or http(s) URL")
	flag.StringVar(&o.base, "base", "", "base URL for relative image URLs (defaults to -in when it is a URL)")
	flag.StringVar(&o.out, "out", "-", "output file for the upgraded HTML, - for stdout")
	flag.StringVar(&o.pageID, "page-id", "", "page identifier used in events (generated when empty)")
	flag.BoolVar(&o.serve, "serve", false, "run the HTTP API")
	flag.BoolVar(&o.mcpStdio, "mcp", false, "serve MCP tools over stdio")
	flag.StringVar(&o.thumb, "thumb", "", "generate the thumbnail of an image file and exit")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, o); err != nil {
		logger.Error("pif: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, o options) error {
	if o.thumb != "" {
		return runThumb(logger, o.thumb)
	}
	if !o.serve && !o.mcpStdio && o.in == "" {
		fmt.Fprintln(os.Stderr, "usage: pif -in <file|-|url> | -serve | -mcp | -thumb <image>")
		os.Exit(2)
	}

	cfg := progressive.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = progressive.LoadConfigFile(o.configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	if o.mcpStdio {
		// stdout carries the MCP stream.
		sinks := cfg.Sinks[:0]
		for _, sc := range cfg.Sinks {
			if sc.Type == "stdout" {
				logger.Warn("pif: stdout sink disabled in mcp mode")
				continue
			}
			sinks = append(sinks, sc)
		}
		cfg.Sinks = sinks
	}

	var store *progressive.Store
	if cfg.Store.Path != "" {
		var err error
		if store, err = progressive.OpenStore(cfg.Store); err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()
	}

	up := progressive.New(cfg, logger, progressive.SinksFromConfig(cfg, store, logger)...)
	defer up.Close()

	switch {
	case o.serve:
		if store != nil {
			go pruneMetrics(ctx, logger, store, cfg.Metrics.Retention)
		}
		return runServe(ctx, logger, cfg, progressive.NewService(cfg, up, store, logger))
	case o.mcpStdio:
		return runMCP(ctx, progressive.NewService(cfg, up, store, logger))
	default:
		return runUpgrade(ctx, logger, cfg, up, o)
	}
}

func runUpgrade(ctx context.Context, logger *slog.Logger, cfg *progressive.Config, up *progressive.Upgrader, o options) error {
	id := o.pageID
	if id == "" {
		id = progressive.NewPageID()
	}

	var (
		page *progressive.Page
		err  error
	)
	if strings.HasPrefix(o.in, "http://") || strings.HasPrefix(o.in, "https://") {
		opts := []progressive.PageFetcherOption{
			progressive.WithPageUserAgent(cfg.Fetch.UserAgent),
			progressive.WithPageSanitize(cfg.Sanitize),
			progressive.WithPageLogger(logger),
		}
		if cfg.Fetch.BlockPrivate {
			opts = append(opts, progressive.WithPageBlockPrivate())
		}
		page, err = progressive.NewPageFetcher(opts...).Fetch(ctx, o.in, id)
		if err == nil && o.base != "" {
			page, err = progressive.NewPage(id, o.base, page.Doc)
		}
	} else {
		var r io.Reader = os.Stdin
		if o.in != "-" {
			f, ferr := os.Open(o.in)
			if ferr != nil {
				return fmt.Errorf("open input: %w", ferr)
			}
			defer f.Close()
			r = f
		}
		src, rerr := io.ReadAll(io.LimitReader(r, cfg.MaxDocument+1))
		if rerr != nil {
			return fmt.Errorf("read input: %w", rerr)
		}
		if int64(len(src)) > cfg.MaxDocument {
			return fmt.Errorf("input exceeds %d bytes", cfg.MaxDocument)
		}
		if cfg.Sanitize {
			src = progressive.Sanitize(src)
		}
		page, err = progressive.ParsePage(id, o.base, bytes.NewReader(src))
	}
	if err != nil {
		return err
	}

	rep, err := up.Run(ctx, page)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if o.out != "-" {
		f, err := os.Create(o.out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	logger.Debug("pif: report", "id", rep.ID, "html_hash", rep.HTMLHash, "appended", rep.Appended)
	return nil
}

func runServe(ctx context.Context, logger *slog.Logger, cfg *progressive.Config, svc *progressive.Service) error {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.SettleTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("pif: server starting", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}
	logger.Info("pif: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("pif: server stopped")
	return nil
}

func pruneMetrics(ctx context.Context, logger *slog.Logger, store *progressive.Store, retention time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		n, err := progressive.PruneMetrics(ctx, store, retention)
		if err != nil {
			logger.Warn("pif: prune metrics", "error", err)
		} else if n > 0 {
			logger.Info("pif: metrics pruned", "deleted", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runMCP(ctx context.Context, svc *progressive.Service) error {
	srv := mcp.NewServer(&mcp.Implementation{Name: "pif", Version: version}, nil)
	svc.RegisterMCP(srv)
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}

func runThumb(logger *slog.Logger, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer in.Close()

	dst := imagefield.ThumbName(path)
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create thumb: %w", err)
	}
	format, err := imagefield.GenerateThumb(in, out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return err
	}
	logger.Info("pif: thumbnail written", "path", dst, "format", format)
	return nil
}
