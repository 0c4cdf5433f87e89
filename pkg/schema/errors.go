package schema

import (
	"errors"
	"fmt"
	"strings"
)

type Category string

const (
	CategoryConfiguration Category = "ConfigurationError"
	CategoryValidation    Category = "ValidationError"
	CategoryUpstream      Category = "UpstreamError"
	CategoryDegraded      Category = "DegradedUpstreamError"
)

type Code string

// Error is the single error type crossing package boundaries. Two errors
// match under errors.Is when their codes are equal.
type Error struct {
	Category Category `json:"category"`
	Code     Code     `json:"code"`
	Detail   string   `json:"detail,omitempty"`
	Provider string   `json:"provider,omitempty"`
	Status   int      `json:"status,omitempty"`
	Err      error    `json:"-"`
}

func newError(category Category, code Code) *Error {
	return &Error{Category: category, Code: code}
}

var (
	ErrMissingCredential = newError(CategoryConfiguration, "MissingCredential")
	ErrCatalogInvalid    = newError(CategoryConfiguration, "CatalogInvalid")

	ErrInvalidRequest    = newError(CategoryValidation, "InvalidRequest")
	ErrInvalidAgeLevel   = newError(CategoryValidation, "InvalidAgeLevel")
	ErrUnknownAgeLevel   = newError(CategoryValidation, "UnknownAgeLevel")
	ErrInvalidEpisodeNum = newError(CategoryValidation, "InvalidEpisodeNum")
	ErrUnknownTheme      = newError(CategoryValidation, "UnknownTheme")
	ErrEpisodeNotFound   = newError(CategoryValidation, "EpisodeNotFound")

	ErrBackendUnauthenticated = newError(CategoryUpstream, "BackendUnauthenticated")
	ErrBackendRejected        = newError(CategoryUpstream, "BackendRejected")
	ErrBackendUnavailable     = newError(CategoryUpstream, "BackendUnavailable")
	ErrNoImagePayload         = newError(CategoryUpstream, "NoImagePayload")
	ErrNoStoryPayload         = newError(CategoryUpstream, "NoStoryPayload")

	ErrEndingNotFound   = newError(CategoryDegraded, "EndingNotFound")
	ErrEnrichmentFailed = newError(CategoryDegraded, "EnrichmentFailed")
)

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Provider != "" {
		b.WriteString(" (" + e.Provider)
		if e.Status != 0 {
			fmt.Fprintf(&b, " %d", e.Status)
		}
		b.WriteString(")")
	}
	if e.Detail != "" {
		b.WriteString(": " + e.Detail)
	}
	if e.Err != nil && e.Detail == "" {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Withf returns a copy of e carrying a formatted detail.
func (e *Error) Withf(format string, args ...any) *Error {
	c := *e
	c.Detail = fmt.Sprintf(format, args...)
	return &c
}

// Wrap returns a copy of e wrapping err.
func (e *Error) Wrap(err error) *Error {
	c := *e
	c.Err = err
	return &c
}

// From returns a copy of e attributed to an upstream provider.
func (e *Error) From(provider string, status int) *Error {
	c := *e
	c.Provider = provider
	c.Status = status
	return &c
}

// AsError extracts the *Error carried by err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
