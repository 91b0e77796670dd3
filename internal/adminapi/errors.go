package adminapi

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotLoaded is returned by Result.Unwrap for a result still loading.
	ErrNotLoaded = errors.New("adminapi.not_loaded")
	// ErrUpstreamUnavailable indicates the upstream API could not be reached.
	ErrUpstreamUnavailable = errors.New("adminapi.upstream.unavailable")
	// ErrMalformedResponse indicates an unusable upstream body.
	ErrMalformedResponse = errors.New("adminapi.upstream.malformed_response")
	// ErrInvalidArgument indicates a blank identifier or unknown status.
	ErrInvalidArgument = errors.New("adminapi.invalid_argument")
	// ErrAlreadyReviewed indicates a verification that is no longer pending.
	ErrAlreadyReviewed = errors.New("adminapi.verification.already_reviewed")
	// ErrProviderNotCandidate indicates a provider that is not among the job's skilled users.
	ErrProviderNotCandidate = errors.New("adminapi.match.provider_not_candidate")
)

// UpstreamError is a non-2xx answer from the upstream admin API.
type UpstreamError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (upstreamErr *UpstreamError) Error() string {
	if upstreamErr.Message == "" {
		return fmt.Sprintf("adminapi.%s: upstream status %d", upstreamErr.Operation, upstreamErr.StatusCode)
	}
	return fmt.Sprintf("adminapi.%s: upstream status %d: %s", upstreamErr.Operation, upstreamErr.StatusCode, upstreamErr.Message)
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var upstreamErr *UpstreamError
	return errors.As(err, &upstreamErr) && upstreamErr.StatusCode == http.StatusNotFound
}

// HTTPStatus maps an adminapi error onto the status the dashboard answers with.
func HTTPStatus(err error) int {
	var upstreamErr *UpstreamError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrAlreadyReviewed):
		return http.StatusConflict
	case errors.Is(err, ErrProviderNotCandidate):
		return http.StatusNotFound
	case errors.As(err, &upstreamErr):
		switch upstreamErr.StatusCode {
		case http.StatusNotFound, http.StatusBadRequest, http.StatusConflict:
			return upstreamErr.StatusCode
		case http.StatusUnauthorized, http.StatusForbidden:
			return http.StatusUnauthorized
		default:
			return http.StatusBadGateway
		}
	default:
		return http.StatusBadGateway
	}
}

// ErrorCode is the stable code used in JSON error bodies.
func ErrorCode(err error) string {
	var upstreamErr *UpstreamError
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrAlreadyReviewed):
		return "already_reviewed"
	case errors.Is(err, ErrProviderNotCandidate):
		return "provider_not_candidate"
	case errors.As(err, &upstreamErr) && upstreamErr.StatusCode == http.StatusNotFound:
		return "not_found"
	case errors.As(err, &upstreamErr) && (upstreamErr.StatusCode == http.StatusUnauthorized || upstreamErr.StatusCode == http.StatusForbidden):
		return "unauthorized"
	case errors.Is(err, ErrMalformedResponse):
		return "upstream_malformed"
	default:
		return "upstream_unavailable"
	}
}
