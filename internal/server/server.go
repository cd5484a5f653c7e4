// Package server is the read-only HTTP API over the stored headlines.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/fx"

	v1 "github.com/jdholdren/juicer/api/news/v1"
	jerrs "github.com/jdholdren/juicer/internal/errors"
	"github.com/jdholdren/juicer/internal/juicer"
	"github.com/jdholdren/juicer/internal/serverutil"
)

const (
	defaultLimit = 50
	maxLimit     = 100

	cacheTTL = 5 * time.Second
)

type (
	// Reader is the part of the store the API needs.
	Reader interface {
		Ping(ctx context.Context) error
		LatestHeadlines(ctx context.Context, limit int) ([]juicer.Headline, error)
	}

	// Server serves the latest headlines.
	Server struct {
		*http.Server

		repo Reader
		// Responses by limit, so the store isn't hit on every request.
		cache *expirable.LRU[int, v1.ListNewsResponse]
	}

	ServerConfig struct {
		Port       int
		CorsOrigin string
	}

	Params struct {
		fx.In

		Config ServerConfig
		Repo   Reader
	}
)

// New builds the server and its routes without starting it.
func New(config ServerConfig, repo Reader) Server {
	r := serverutil.ErrRouter{Router: mux.NewRouter()}
	srvr := Server{
		repo:  repo,
		cache: expirable.NewLRU[int, v1.ListNewsResponse](maxLimit, nil, cacheTTL),
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			Handler: handlers.CORS(
				handlers.AllowedOrigins([]string{config.CorsOrigin}),
				handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
				handlers.AllowedHeaders([]string{"content-type"}),
			)(r),
		},
	}

	r.Use(serverutil.AccessLogMiddleware) // Log everything
	r.HandleFuncE("/api/news", srvr.getNews).Methods(http.MethodGet)
	r.HandleFuncE("/healthz", srvr.getHealthz).Methods(http.MethodGet)

	return srvr
}

// NewServer provides the server to fx and ties it to the app's lifecycle.
func NewServer(lc fx.Lifecycle, p Params) Server {
	srvr := New(p.Config, p.Repo)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srvr.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					slog.Error("error serving read api", "error", err)
				}
			}()

			slog.Info("started read api", "port", p.Config.Port)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srvr.Shutdown(ctx)
		},
	})

	return srvr
}

func (s Server) getNews(w http.ResponseWriter, r *http.Request) error {
	limit, err := parseLimit(r)
	if err != nil {
		return err
	}

	if resp, ok := s.cache.Get(limit); ok {
		return serverutil.WriteJSON(w, http.StatusOK, resp)
	}

	headlines, err := s.repo.LatestHeadlines(r.Context(), limit)
	if err != nil {
		return jerrs.E(err, http.StatusServiceUnavailable)
	}

	resp := v1.ListNewsResponse{News: make([]v1.Headline, len(headlines))}
	for i, h := range headlines {
		resp.News[i] = v1.Headline{
			ID:          h.ID,
			Title:       h.Title,
			DisplayTime: h.DisplayTime,
			Timestamp:   h.Timestamp,
		}
	}
	s.cache.Add(limit, resp)

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}

// Defaults the limit when absent, rejects anything that isn't a positive
// number and caps it.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, jerrs.E(
			"invalid limit",
			jerrs.Detail{Field: "limit", Error: "must be a positive number"},
			http.StatusBadRequest,
		)
	}

	return min(limit, maxLimit), nil
}

func (s Server) getHealthz(w http.ResponseWriter, r *http.Request) error {
	if err := s.repo.Ping(r.Context()); err != nil {
		return jerrs.E(err, http.StatusServiceUnavailable)
	}

	return serverutil.WriteJSON(w, http.StatusOK, v1.HealthResponse{Status: "ok"})
}
