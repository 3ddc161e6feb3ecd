// Command sample demonstrates the bodylimit middleware in a small ingest
// service built on chi.
//
// Run:
//
//	go run ./cmd/sample
//	go run ./cmd/sample -config sample.yaml
//
// Then exercise it:
//
//	curl -d 'hello world' http://localhost:8080/v1/echo       — within the limit
//	head -c 2M /dev/urandom | curl --data-binary @- \
//	    http://localhost:8080/v1/echo                         — 413 problem+json
//	head -c 8M /dev/urandom | curl -T - \
//	    http://localhost:8080/v1/upload                       — chunked upload, larger limit
//	curl http://localhost:8080/metrics                        — enforcement counters
//
// Config file (YAML, all fields optional):
//
//	addr: ":8080"
//	body_limit: 1MiB
//	upload_limit: 32MiB
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	"github.com/bjaus/bodylimit"
)

func main() {
	configFlag := flag.String("config", "", "Path to a YAML config file")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})))

	cfg, err := loadConfig(*configFlag)
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	slog.Info("starting server",
		"addr", cfg.Addr,
		"body_limit", cfg.BodyLimit,
		"upload_limit", cfg.UploadLimit,
	)

	if err := serve(ctx, cfg); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "err", err)
	}

	slog.Info("server stopped")
}

func serve(ctx context.Context, cfg config) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func newRouter(cfg config) http.Handler {
	logger := slog.Default()
	metrics := bodylimit.NewMetrics(nil)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// Default limit for API traffic.
		r.Group(func(r chi.Router) {
			r.Use(bodylimit.New(cfg.BodyLimit.Bytes(), bodylimit.Config{
				Logger:   logger,
				Recorder: metrics,
			}))
			r.Post("/echo", handleEcho)
		})

		// Uploads get their own, larger limit.
		r.Group(func(r chi.Router) {
			r.Use(bodylimit.New(cfg.UploadLimit.Bytes(), bodylimit.Config{
				Logger:   logger,
				Recorder: metrics,
			}))
			r.Post("/upload", handleUpload)
			r.Put("/upload", handleUpload)
		})
	})

	return r
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

type config struct {
	Addr        string         `yaml:"addr"`
	BodyLimit   bodylimit.Size `yaml:"body_limit"`
	UploadLimit bodylimit.Size `yaml:"upload_limit"`
}

func loadConfig(path string) (config, error) {
	cfg := config{
		Addr:        ":8080",
		BodyLimit:   bodylimit.Size(1 << 20),
		UploadLimit: bodylimit.Size(32 << 20),
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // user-provided CLI flag
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	//nolint:errcheck // best-effort response write
	fmt.Fprintln(w, "ok")
}

// handleEcho reads the whole body and echoes it back. ReadAll is safe here
// precisely because the middleware bounds how much a client can send.
func handleEcho(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		bodylimit.WriteProblem(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	//nolint:errcheck,gosec // best-effort write
	w.Write(data)
}

// handleUpload streams the body to a sink and reports how much arrived,
// along with the limit that applied to this route.
func handleUpload(w http.ResponseWriter, r *http.Request) {
	n, err := io.Copy(io.Discard, r.Body)
	if err != nil {
		bodylimit.WriteProblem(w, err)
		return
	}

	limit, _ := bodylimit.FromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	//nolint:errcheck,errchkjson,gosec // best-effort after WriteHeader
	json.NewEncoder(w).Encode(map[string]any{
		"received_bytes": n,
		"limit_bytes":    limit,
	})
}
