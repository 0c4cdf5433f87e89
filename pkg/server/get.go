package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storybook/pkg/schema"
)

func (s *Server) handleGetRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"service": "Storybook API",
		"status":  "ok",
	})
}

// GET /health
func (s *Server) handleGetHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "ok",
		"backends": s.backends,
		"themes":   len(s.Pipeline.Catalog().Themes()),
	})
}

func (s *Server) handleGetMetrics() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

// GET /api/themes
func (s *Server) handleGetThemes(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]schema.Theme{
		"themes": s.Pipeline.Catalog().Themes(),
	})
}

// GET /api/themes/:theme/episodes
func (s *Server) handleGetEpisodes(c echo.Context) error {
	id := c.Param("theme")
	episodes, err := s.Pipeline.Catalog().Episodes(id)
	if err != nil {
		return err
	}
	choicePoints, err := s.Pipeline.Catalog().ChoicePoints(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"theme_id":      id,
		"episodes":      episodes,
		"choice_points": choicePoints,
	})
}

// GET /api/age-levels
func (s *Server) handleGetAgeLevels(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]schema.AgeRules{
		"age_levels": s.Pipeline.Catalog().AgeLevels(),
	})
}
