// cmd/snippet-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"printhub/internal/analysis"
	"printhub/internal/assets"
	"printhub/internal/identity"
	"printhub/internal/permissions"
	"printhub/internal/snippets"
	"printhub/pkg/config"
	"printhub/pkg/db"
	"printhub/pkg/logger"
	"printhub/pkg/middleware"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	pool := db.MustConnect(cfg, log)
	if pool == nil {
		log.Fatalw("DATABASE_URL is required")
	}
	rdb := db.MustRedis(cfg, log)

	repo := snippets.NewRepo(pool)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		log.Fatalw("schema", "err", err)
	}

	perms := permissions.New(cfg, log)
	store := assets.New(cfg, log)
	analyzer := analysis.NewClient(cfg, rdb, log)
	idp := identity.NewCredentials(cfg, log)

	svc := snippets.NewService(repo, perms, store, analyzer, log)
	app := snippets.NewApp(svc, analyzer, idp, log)

	r := chi.NewRouter()
	r.Use(middleware.Correlation())
	r.Use(middleware.Recover(log))
	// Public service: allow cross-origin for development/tooling.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Correlation-Id")
			w.Header().Set("Access-Control-Max-Age", "86400")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Use(middleware.Tracing())
	r.Use(middleware.JWTAuth(cfg))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	app.Routes(r)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Infow("snippet-service listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("snippet-service stopped")
}
