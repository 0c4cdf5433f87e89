package inference

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"

	"storybook/pkg/schema"
)

// classify maps a provider failure onto the upstream error taxonomy.
// Errors that already carry a category pass through unchanged.
func classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := schema.AsError(err); ok {
		return err
	}

	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return fromStatus(provider, oaErr.StatusCode, oaErr.Message, err)
	}
	var gErr genai.APIError
	if errors.As(err, &gErr) {
		return fromStatus(provider, gErr.Code, gErr.Message, err)
	}
	var gErrPtr *genai.APIError
	if errors.As(err, &gErrPtr) {
		return fromStatus(provider, gErrPtr.Code, gErrPtr.Message, err)
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return schema.ErrBackendUnavailable.From(provider, 0).Withf("request cancelled").Wrap(err)
	case errors.Is(err, context.DeadlineExceeded):
		return schema.ErrBackendUnavailable.From(provider, 0).Withf("request timed out").Wrap(err)
	case errors.As(err, &netErr):
		return schema.ErrBackendUnavailable.From(provider, 0).Wrap(err)
	}
	return schema.ErrBackendUnavailable.From(provider, 0).Wrap(err)
}

func fromStatus(provider string, status int, message string, err error) error {
	if message == "" {
		message = err.Error()
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return schema.ErrBackendUnauthenticated.From(provider, status).Withf("%s", message).Wrap(err)
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return schema.ErrBackendUnavailable.From(provider, status).Withf("%s", message).Wrap(err)
	default:
		return schema.ErrBackendRejected.From(provider, status).Withf("%s", message).Wrap(err)
	}
}
