// Package server wires the HTTP surface: routing, content headers, caching
// validators and lifecycle.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/opencdms-dev/opencdms-api/internal/api"
	"github.com/opencdms-dev/opencdms-api/internal/config"
	"github.com/opencdms-dev/opencdms-api/internal/health"
	imw "github.com/opencdms-dev/opencdms-api/internal/middleware"
)

// Options bundles everything the router needs beyond runtime config.
type Options struct {
	Engine *api.Engine
	Meta   config.Metadata
	Logger *zerolog.Logger
	// Checks feed the readiness endpoint.
	Checks map[string]health.Check
}

// NewRouter builds the full route table.
func NewRouter(cfg config.Config, opts Options) http.Handler {
	log := opts.Logger

	r := chi.NewRouter()
	r.Use(imw.Recover(log))
	r.Use(imw.RequestID())
	r.Use(imw.Logging(log, routePattern))
	r.Use(imw.CORS())
	r.Use(chimw.Compress(5))

	r.Get("/", landing(cfg, opts.Meta))
	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(opts.Checks))
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/collections", respond(func(req *http.Request) api.Response {
		return opts.Engine.DescribeCollections(req.Context(), apiRequest(req, ""))
	}))
	r.Get("/collections/{collectionId}", respond(func(req *http.Request) api.Response {
		return opts.Engine.DescribeCollections(req.Context(), apiRequest(req, chi.URLParam(req, "collectionId")))
	}))
	r.Get("/collections/{collectionId}/queryables", respond(func(req *http.Request) api.Response {
		return opts.Engine.DescribeQueryables(req.Context(), apiRequest(req, chi.URLParam(req, "collectionId")))
	}))
	r.Get("/collections/{collectionId}/items", respond(func(req *http.Request) api.Response {
		return opts.Engine.QueryItems(req.Context(), apiRequest(req, chi.URLParam(req, "collectionId")))
	}))

	return r
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func apiRequest(r *http.Request, dataset string) api.Request {
	return api.Request{
		Dataset: dataset,
		Params:  r.URL.Query(),
		Accept:  r.Header.Get("Accept"),
	}
}

// respond writes an engine response, attaching a content hash validator on
// success so unchanged documents short-circuit to 304.
func respond(fn func(*http.Request) api.Response) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := fn(r)

		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		if resp.ContentType != "" {
			w.Header().Set("Content-Type", resp.ContentType)
		}

		if resp.Status == http.StatusOK {
			etag := fmt.Sprintf("%q", strconv.FormatUint(xxhash.Sum64(resp.Body), 16))
			w.Header().Set("ETag", etag)
			if r.Header.Get("If-None-Match") == etag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}

		w.WriteHeader(resp.Status)
		_, _ = w.Write(resp.Body)
	}
}

func landing(cfg config.Config, meta config.Metadata) http.HandlerFunc {
	type link struct {
		Type  string `json:"type"`
		Rel   string `json:"rel"`
		Title string `json:"title"`
		Href  string `json:"href"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		locale := r.URL.Query().Get("lang")
		if locale == "" {
			locale = cfg.DefaultLanguage
		}
		doc := map[string]any{
			"title":       meta.Title.Translate(locale),
			"description": meta.Description.Translate(locale),
			"links": []link{
				{Type: "application/json", Rel: "self", Title: "This document as JSON", Href: cfg.BaseURL + "?f=json"},
				{Type: "application/json", Rel: "data", Title: "Collections", Href: cfg.BaseURL + "/collections?f=json"},
			},
		}
		body, err := json.Marshal(doc)
		if err != nil {
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, cfg config.Config, log *zerolog.Logger, handler http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("http listen")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
		return nil
	case err := <-errCh:
		return err
	}
}
