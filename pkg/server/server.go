package server

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/ksuid"

	"storybook/pkg/pipeline"
)

type Options struct {
	// Backends names the configured image backends, in fallback order.
	Backends []string
	// Gatherer backs GET /metrics. Nil disables the route.
	Gatherer  prometheus.Gatherer
	BodyLimit string
}

type Server struct {
	Echo     *echo.Echo
	Pipeline *pipeline.Pipeline
	Ctx      context.Context

	backends []string
	gatherer prometheus.Gatherer
}

func NewServer(ctx context.Context, p *pipeline.Pipeline, opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		Echo:     e,
		Pipeline: p,
		Ctx:      ctx,
		backends: opts.Backends,
		gatherer: opts.Gatherer,
	}
	e.HTTPErrorHandler = s.handleError

	bodyLimit := opts.BodyLimit
	if bodyLimit == "" {
		bodyLimit = "25M"
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator:    func() string { return ksuid.New().String() },
		TargetHeader: echo.HeaderXRequestID,
		RequestIDHandler: func(c echo.Context, id string) {
			log.Debug("Request", "id", id, "method", c.Request().Method, "path", c.Request().URL.Path)
		},
	}))
	e.Use(middleware.Logger())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit(bodyLimit))

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.Echo.GET("/", s.handleGetRoot)
	s.Echo.GET("/health", s.handleGetHealth)
	if s.gatherer != nil {
		s.Echo.GET("/metrics", s.handleGetMetrics())
	}

	api := s.Echo.Group("/api")
	api.GET("/themes", s.handleGetThemes)
	api.GET("/themes/:theme/episodes", s.handleGetEpisodes)
	api.GET("/age-levels", s.handleGetAgeLevels)

	api.POST("/extract-and-reveal", s.handlePostExtractAndReveal)
	api.POST("/stories", s.handlePostStories)
	api.POST("/cover", s.handlePostCover)
	api.POST("/episode", s.handlePostEpisode)
	api.POST("/adventure", s.handlePostAdventure)
	api.POST("/adventure/stream", s.handlePostAdventureStream)
	api.POST("/book/pdf", s.handlePostBook)
}

func (s *Server) Start(addr string) error {
	log.Info("Server listening", "addr", addr, "backends", s.backends)
	return s.Echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("Shutting down server...")
	return s.Echo.Shutdown(ctx)
}
