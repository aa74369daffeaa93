package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/david/gsa-finder/internal/catalog"
	"github.com/david/gsa-finder/internal/source"
)

type Server struct {
	Echo     *echo.Echo
	Data     *source.Dataset
	Catalog  *catalog.Catalog
	Sessions *Sessions

	reload chan struct{}
	now    func() time.Time
}

// Options wires a Server. Sessions defaults to in-memory persistence with
// the standard apply delay.
type Options struct {
	Data        *source.Dataset
	Catalog     *catalog.Catalog
	Sessions    *Sessions
	CORSOrigins []string
}

func NewServer(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	allowedOrigins := opts.CORSOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		AllowCredentials: !(len(allowedOrigins) == 1 && allowedOrigins[0] == "*"),
	}))

	sessions := opts.Sessions
	if sessions == nil {
		sessions = NewSessions(SessionConfig{})
	}

	s := &Server{
		Echo:     e,
		Data:     opts.Data,
		Catalog:  opts.Catalog,
		Sessions: sessions,
		reload:   make(chan struct{}, 1),
		now:      time.Now,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	s.Echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.Echo.GET("/data/applications.json", s.handleRawData)

	api := s.Echo.Group("/api/v1")
	api.GET("/catalog", s.handleCatalog)
	api.GET("/data/status", s.handleDataStatus)
	api.POST("/data/reload", s.handleDataReload)

	// Session-scoped routes
	sess := api.Group("")
	sess.Use(s.Sessions.Middleware)
	sess.GET("/state", s.handleGetState)
	sess.PUT("/state/draft", s.handleReplaceDraft)
	sess.PATCH("/state/draft", s.handlePatchDraft)
	sess.POST("/state/apply", s.handleApply)
	sess.POST("/state/reset", s.handleReset)
	sess.POST("/state/sort", s.handleSort)

	sess.GET("/presets", s.handleListPresets)
	sess.POST("/presets", s.handleSavePreset)
	sess.POST("/presets/:name/load", s.handleLoadPreset)

	sess.GET("/opportunities", s.handleListOpportunities)
	sess.POST("/opportunities/:id/submit", s.handleSubmit)
	sess.PUT("/opportunities/:id/status", s.handleSetStatus)
	sess.GET("/progress", s.handleProgress)
	sess.GET("/export.csv", s.handleExport)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleCatalog(c echo.Context) error {
	if s.Catalog == nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "catalog unavailable"})
	}
	return c.JSON(http.StatusOK, s.Catalog)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}
