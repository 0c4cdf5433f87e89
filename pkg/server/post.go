package server

import (
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/segmentio/ksuid"

	"storybook/pkg/render"
	"storybook/pkg/schema"
	"storybook/pkg/utils"
)

// POST /api/stories
func (s *Server) handlePostStories(c echo.Context) error {
	var req schema.StoriesRequest
	if err := c.Bind(&req); err != nil {
		return invalidJSON(err)
	}
	resp, err := s.Pipeline.Stories(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// POST /api/cover
func (s *Server) handlePostCover(c echo.Context) error {
	var req schema.CoverRequest
	if err := c.Bind(&req); err != nil {
		return invalidJSON(err)
	}
	page, err := s.Pipeline.Cover(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// POST /api/episode
func (s *Server) handlePostEpisode(c echo.Context) error {
	var req schema.EpisodeRequest
	if err := c.Bind(&req); err != nil {
		return invalidJSON(err)
	}
	page, err := s.Pipeline.Episode(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// POST /api/adventure returns all ten pages or an error.
func (s *Server) handlePostAdventure(c echo.Context) error {
	var req schema.AdventureRequest
	if err := c.Bind(&req); err != nil {
		return invalidJSON(err)
	}
	resp, err := s.Pipeline.Adventure(c.Request().Context(), req, nil)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// POST /api/adventure/stream sends each page as an SSE "page" event as soon
// as it is drawn, so finished pages survive a later failure.
func (s *Server) handlePostAdventureStream(c echo.Context) error {
	var req schema.AdventureRequest
	if err := c.Bind(&req); err != nil {
		return invalidJSON(err)
	}
	if err := s.Pipeline.CheckAdventure(req); err != nil {
		return err
	}

	w := utils.NewSSEWriter(c)
	defer w.Close()

	resp, err := s.Pipeline.Adventure(c.Request().Context(), req, func(page schema.EpisodePage) error {
		return w.Event("page", page)
	})
	if err != nil {
		log.Error("Adventure stream stopped", "theme", req.Theme, "pages", len(resp.Episodes), "error", err)
		e, ok := schema.AsError(err)
		if !ok {
			e = schema.ErrBackendUnavailable.Wrap(err)
		}
		if err := w.Event("error", errorBody(e)); err != nil {
			log.Warn("SSE write error", "error", err)
		}
		return nil
	}

	return w.Event("done", map[string]any{
		"choice_path": resp.ChoicePath,
		"episodes":    len(resp.Episodes),
	})
}

// POST /api/book/pdf
func (s *Server) handlePostBook(c echo.Context) error {
	var req schema.BookRequest
	if err := c.Bind(&req); err != nil {
		return invalidJSON(err)
	}
	if len(req.Pages) == 0 {
		return schema.ErrInvalidRequest.Withf("pages are required")
	}

	pdf, err := render.Book(c.Request().Context(), req.Title, req.Pages)
	if err != nil {
		return schema.ErrInvalidRequest.Withf("could not assemble book: %v", err).Wrap(err)
	}

	filename := fmt.Sprintf("book-%s.pdf", ksuid.New().String())
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}
