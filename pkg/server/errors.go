package server

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"storybook/pkg/schema"
	"storybook/pkg/utils"
)

// status maps an error code onto the HTTP status returned to the caller.
func status(e *schema.Error) int {
	switch e.Category {
	case schema.CategoryValidation:
		if errors.Is(e, schema.ErrUnknownTheme) || errors.Is(e, schema.ErrEpisodeNotFound) {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	case schema.CategoryUpstream:
		if errors.Is(e, schema.ErrBackendUnavailable) {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type errorDetail struct {
	Category schema.Category `json:"category"`
	Code     schema.Code     `json:"code"`
	Detail   string          `json:"detail"`
	Provider string          `json:"provider,omitempty"`
}

func errorBody(e *schema.Error) map[string]any {
	return map[string]any{
		"success": false,
		"error": errorDetail{
			Category: e.Category,
			Code:     e.Code,
			Detail:   e.Error(),
			Provider: e.Provider,
		},
	}
}

// handleError writes every failure as a structured error body.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	e, ok := schema.AsError(err)
	if !ok {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg := http.StatusText(he.Code)
			if m, ok := he.Message.(string); ok {
				msg = m
			}
			writeError(c, he.Code, utils.ErrJSON(msg))
			return
		}
		log.Error("Unhandled error", "path", c.Path(), "error", err)
		writeError(c, http.StatusInternalServerError, utils.ErrJSON("internal error"))
		return
	}

	code := status(e)
	if code >= http.StatusInternalServerError {
		log.Error("Request failed", "path", c.Path(), "code", e.Code, "provider", e.Provider, "error", e)
	} else {
		log.Debug("Request rejected", "path", c.Path(), "code", e.Code, "error", e)
	}
	writeError(c, code, errorBody(e))
}

func writeError(c echo.Context, code int, body any) {
	var err error
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, body)
	}
	if err != nil {
		log.Error("Failed to write error response", "error", err)
	}
}

func invalidJSON(err error) error {
	return schema.ErrInvalidRequest.Withf("invalid json").Wrap(err)
}
