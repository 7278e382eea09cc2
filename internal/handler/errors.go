package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"yeenote-sync-server/internal/service"
	"yeenote-sync-server/pkg/response"

	"github.com/go-playground/validator/v10"
)

const maxJSONBody = 10 << 20

// writeError maps a service error to its HTTP status. Unexpected errors are
// logged and reported with fallback.
func writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		response.BadRequest(w, err.Error())
	case errors.Is(err, service.ErrInvalidLogin), errors.Is(err, service.ErrInvalidRefresh):
		response.Unauthorized(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrAlreadyExists):
		response.Conflict(w, err.Error())
	case errors.Is(err, service.ErrStorage):
		log.Printf("[HTTP] %s: %v", fallback, err)
		response.Unavailable(w, "Storage temporarily unavailable")
	default:
		log.Printf("[HTTP] %s: %v", fallback, err)
		response.InternalError(w, fallback)
	}
}

// decodeAndValidate reads a JSON body into v and runs the struct tags. It
// writes the 400 itself and reports whether the handler may continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, validate *validator.Validate, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.BadRequest(w, "Invalid request body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		response.BadRequest(w, err.Error())
		return false
	}
	return true
}
