package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/miele-backoffice/internal/remote"
	"github.com/tbourn/miele-backoffice/internal/services"
)

// Stable error codes carried in ErrorResponse.Code. Clients branch on these,
// never on the message.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeValidation       = "validation_failed"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeUnknownTable     = "unknown_table"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"

	ErrCodeListFailed   = "list_failed"
	ErrCodeCreateFailed = "create_failed"
	ErrCodeUpdateFailed = "update_failed"
	ErrCodeDeleteFailed = "delete_failed"
)

// failErr maps a service error onto the envelope. fallback is the code used
// for unexpected 500s.
func failErr(c *gin.Context, err error, fallback string) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		fail(c, http.StatusBadRequest, ErrCodeValidation, ve.Error())
	case errors.Is(err, services.ErrUnknownTable):
		fail(c, http.StatusNotFound, ErrCodeUnknownTable, "unknown table")
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "record not found")
	case errors.Is(err, services.ErrDuplicate):
		fail(c, http.StatusConflict, ErrCodeConflict, "record already exists")
	case errors.Is(err, remote.ErrUnknownColumn):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, fallback, err.Error())
	}
}
