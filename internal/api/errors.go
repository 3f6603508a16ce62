// Package api implements the collection query engine: parameter validation,
// provider dispatch, link synthesis and response formatting for the
// OGC API Features surface.
package api

import (
	"errors"
	"net/http"

	"github.com/opencdms-dev/opencdms-api/internal/provider"
	"github.com/opencdms-dev/opencdms-api/internal/registry"
)

// OGC exception codes carried in error bodies.
const (
	codeInvalidParameter = "InvalidParameterValue"
	codeNotFound         = "NotFound"
	codeNoApplicableCode = "NoApplicableCode"
)

// Error is a request-terminating failure with its HTTP mapping. Description
// is the public message; backend detail never travels in it.
type Error struct {
	Status      int
	Code        string
	Description string
}

func (e *Error) Error() string {
	return e.Description
}

func invalidParameter(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: codeInvalidParameter, Description: msg}
}

func notFound(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Code: codeNotFound, Description: msg}
}

func serverError(msg string) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: codeNoApplicableCode, Description: msg}
}

// translateError maps registry and provider failures onto the public
// taxonomy. The generic 500 messages deliberately carry no backend detail;
// the real error is logged at the call site.
func translateError(err error) *Error {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, registry.ErrCollectionNotFound):
		return notFound("Collection not found")
	case errors.Is(err, registry.ErrCapabilityUnsupported):
		return &Error{Status: http.StatusBadRequest, Code: codeNoApplicableCode, Description: "Invalid provider type"}
	case errors.Is(err, provider.ErrConnection):
		return serverError("connection error (check logs)")
	case errors.Is(err, provider.ErrQuery):
		return serverError("query error (check logs)")
	default:
		return serverError("generic error (check logs)")
	}
}
