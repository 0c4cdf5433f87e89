package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"storybook/pkg/schema"
)

type extractReq struct {
	Image         []byte `json:"image"`
	CharacterName string `json:"character_name"`
	Quality       string `json:"quality,omitempty"`
}

// POST /api/extract-and-reveal accepts either a multipart upload with an
// "image" file or JSON carrying the drawing as base64.
func (s *Server) handlePostExtractAndReveal(c echo.Context) error {
	req, err := readDrawing(c)
	if err != nil {
		return err
	}
	result, err := s.Pipeline.ExtractAndReveal(c.Request().Context(), req.Image, req.CharacterName, req.Quality)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func readDrawing(c echo.Context) (extractReq, error) {
	var req extractReq
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		if err := c.Bind(&req); err != nil {
			return req, invalidJSON(err)
		}
		return req, nil
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return req, schema.ErrInvalidRequest.Withf("image file is required").Wrap(err)
	}
	f, err := fh.Open()
	if err != nil {
		return req, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	req.Image, err = io.ReadAll(f)
	if err != nil {
		return req, fmt.Errorf("failed to read upload: %w", err)
	}
	req.CharacterName = c.FormValue("character_name")
	req.Quality = c.FormValue("quality")
	return req, nil
}
