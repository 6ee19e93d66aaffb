// Package server exposes the HTTP API: catalog, builds, used market, auth,
// orders, chat, stats, settings and the AI build generator.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rigforge/rigforge/internal/auth"
	"github.com/rigforge/rigforge/internal/builder"
	"github.com/rigforge/rigforge/internal/catalog"
	"github.com/rigforge/rigforge/internal/config"
	"github.com/rigforge/rigforge/internal/model"
	"github.com/rigforge/rigforge/internal/store"
	"github.com/rigforge/rigforge/pkg/anthropic"
)

// GenerateFunc runs one build-generation request against the given settings.
// Indirection point so handler tests do not need a live completion service.
type GenerateFunc func(ctx context.Context, settings model.AISettings, req builder.GenerateRequest) (*model.GeneratedBuild, error)

// Server wires the services behind the HTTP API.
type Server struct {
	store    store.Store
	catalog  *catalog.Service
	auth     *auth.Service
	tokens   *auth.TokenManager
	generate GenerateFunc
	cfg      config.ServerConfig
	aiCfg    config.AIConfig
}

// New creates a Server. builderOpts configures the default generation path;
// aiCfg supplies fallback completion settings until an admin stores their own.
func New(st store.Store, cat *catalog.Service, authSvc *auth.Service, tokens *auth.TokenManager, builderOpts builder.Options, cfg config.ServerConfig, aiCfg config.AIConfig) *Server {
	s := &Server{
		store:   st,
		catalog: cat,
		auth:    authSvc,
		tokens:  tokens,
		cfg:     cfg,
		aiCfg:   aiCfg,
	}
	s.generate = func(ctx context.Context, settings model.AISettings, req builder.GenerateRequest) (*model.GeneratedBuild, error) {
		var opts []anthropic.Option
		if settings.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(settings.BaseURL))
		}
		client := anthropic.NewClient(settings.APIKey, opts...)
		return builder.New(st, client, settings, builderOpts).Generate(ctx, req)
	}
	return s
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/ai/generate", s.handleGenerate)

		r.Route("/hardware", func(r chi.Router) {
			r.Get("/", s.handleListHardware)
			r.Get("/{id}", s.handleGetHardware)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth, s.requireAdmin)
				r.Post("/", s.handleCreateHardware)
				r.Put("/{id}", s.handleUpdateHardware)
				r.Put("/{id}/price", s.handleUpdatePrice)
				r.Delete("/{id}", s.handleDeleteHardware)
			})
		})
		r.Get("/price-history", s.handlePriceHistory)

		r.Route("/builds", func(r chi.Router) {
			r.Get("/", s.handleListBuilds)
			r.Get("/{id}", s.handleGetBuild)
			r.Post("/{id}/like", s.handleLikeBuild)
			r.Post("/{id}/view", s.handleViewBuild)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/", s.handleCreateBuild)
				r.Put("/{id}", s.handleUpdateBuild)
				r.Delete("/{id}", s.handleDeleteBuild)
			})
		})

		r.Route("/used", func(r chi.Router) {
			r.Get("/", s.handleListUsed)
			r.Get("/{id}", s.handleGetUsed)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/", s.handleCreateUsed)
				r.Put("/{id}", s.handleUpdateUsed)
			})
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Post("/code", s.handleSendCode)
			r.Post("/verify", s.handleVerifyCode)
		})
		r.With(s.requireAuth).Get("/me", s.handleMe)
		r.With(s.requireAuth).Post("/invitations", s.handleCreateInvitation)

		r.Route("/orders", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/", s.handleCreateOrder)
			r.Get("/{id}", s.handleGetOrder)
			r.With(s.requireAdmin).Post("/{id}/paid", s.handleMarkOrderPaid)
		})

		r.Route("/chat", func(r chi.Router) {
			r.With(s.requireAuth, s.requireAdmin).Get("/sessions", s.handleListChatSessions)
			r.Get("/sessions/{id}/messages", s.handleListChatMessages)
			r.Post("/sessions/{id}/messages", s.handlePostChatMessage)
			r.With(s.requireAuth, s.requireAdmin).Post("/sessions/{id}/read", s.handleMarkSessionRead)
		})

		r.With(s.requireAuth, s.requireAdmin).Get("/stats/daily", s.handleDailyStats)

		r.Route("/settings", func(r chi.Router) {
			r.Use(s.requireAuth, s.requireAdmin)
			r.Get("/{key}", s.handleGetSetting)
			r.Put("/{key}", s.handlePutSetting)
		})
	})

	return r
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		timeout := time.Duration(s.cfg.ShutdownTimeout) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Error("server shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("starting server", zap.Int("port", s.cfg.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// bumpStat increments a daily counter, logging rather than failing the request
// when the write does not land.
func (s *Server) bumpStat(ctx context.Context, field store.StatField) {
	date := time.Now().UTC().Format("2006-01-02")
	if err := s.store.BumpDailyStat(ctx, date, field); err != nil {
		zap.L().Warn("bump daily stat failed", zap.String("field", string(field)), zap.Error(err))
	}
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
