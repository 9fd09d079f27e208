package transport

import (
	"encoding/json"
	"net/http"

	"github.com/rhuss/relaychat/pkg/api"
)

// NDJSONContentType is the media type of every /api/chat response body.
const NDJSONContentType = "application/x-ndjson; charset=utf-8"

// HTTPStatusFromError maps an APIError type to the corresponding HTTP status
// code. Transport-level errors (body too large, method not allowed) are
// handled separately by the HTTP adapter.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	case api.ErrorTypeUpstreamError, api.ErrorTypeUpstreamUnavailable:
		return http.StatusBadGateway
	case api.ErrorTypeServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorLine writes a non-streaming failure: the status code followed
// by a single {"error":"..."} NDJSON line.
func WriteErrorLine(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", NDJSONContentType)
	w.WriteHeader(statusCode)
	data, err := json.Marshal(api.ErrorEvent(apiErr.Message))
	if err != nil {
		return
	}
	w.Write(append(data, '\n'))
}

// WriteAPIError writes an error line, deriving the HTTP status code from
// the error type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorLine(w, apiErr, HTTPStatusFromError(apiErr))
}
