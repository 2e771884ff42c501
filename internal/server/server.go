// Package server exposes the catalog and the acquisition pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaki95/yt-media-server/config"
	"github.com/jaki95/yt-media-server/internal/domain"
	"github.com/jaki95/yt-media-server/internal/pipeline"
	"github.com/jaki95/yt-media-server/internal/ratelimit"
)

const shutdownTimeout = 10 * time.Second

// Catalog lists the audio files currently on disk.
type Catalog interface {
	Build(ctx context.Context) []domain.TrackDescriptor
}

// ChapterReader reads chapter sidecars.
type ChapterReader interface {
	Read(name string) []domain.ChapterMark
}

// Acquirer runs an acquisition for a remote reference.
type Acquirer interface {
	Acquire(ctx context.Context, ref string, opts ...pipeline.AcquireOption) (*domain.AcquisitionResult, error)
}

type Deps struct {
	Catalog  Catalog
	Chapters ChapterReader
	Acquirer Acquirer
}

// Server handles HTTP requests for the media server
type Server struct {
	cfg     *config.Config
	router  *gin.Engine
	deps    Deps
	users   map[string]string
	limiter *ratelimit.Limiter
}

// New creates a new HTTP server instance
func New(cfg *config.Config, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	users := make(map[string]string, len(cfg.Auth.Users))
	for _, u := range cfg.Auth.Users {
		users[u.Username] = u.PasswordHash
	}

	s := &Server{
		cfg:    cfg,
		router: router,
		deps:   deps,
		users:  users,
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		s.limiter = ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(cors())

	s.router.GET("/health", s.healthCheck)

	s.router.GET("/audioList", s.audioList)
	s.router.GET("/chapters", s.getChapters)

	limited := s.router.Group("/")
	limited.Use(s.rateLimit())
	{
		limited.POST("/download", s.download)
		limited.POST("/login", s.login)
	}

	s.router.Static("/audios", s.cfg.Storage.AudioDir)
	s.router.Static("/images", s.cfg.Storage.ImageDir)
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases background resources.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}
