package attachment

import (
	"errors"
	"net/http"

	"github.com/commboard/service/internal/response"
)

var (
	// ErrInvalidInput covers empty uploads, oversized files and disallowed types.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned for missing or tombstoned files and parents.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when the caller does not own the parent.
	ErrUnauthorized = errors.New("caller does not own the resource")
	// ErrExternalService wraps failures of the presigned-URL issuing service.
	ErrExternalService = errors.New("presigned url service failed")
	// ErrUploadTransport wraps failures moving bytes to the object store.
	ErrUploadTransport = errors.New("object upload failed")
	// ErrKeyConflict is returned when a storage key is already recorded.
	ErrKeyConflict = errors.New("storage key already in use")
)

// StatusFor maps an attachment error to an HTTP status and a client-facing message.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden, "you do not own this resource"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "resource not found"
	case errors.Is(err, ErrExternalService):
		return http.StatusBadGateway, "file service unavailable"
	case errors.Is(err, ErrUploadTransport):
		return http.StatusBadGateway, "file upload to storage failed"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// WriteError writes err as an envelope with the mapped status.
func WriteError(w http.ResponseWriter, err error) {
	status, msg := StatusFor(err)
	response.Error(w, status, msg)
}
