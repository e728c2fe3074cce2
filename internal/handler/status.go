package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"creatorvault/internal/domain"
)

// DomainError maps a domain failure to its HTTP status and writes the
// response. Anything outside the taxonomy is an infrastructure failure and
// surfaces as a 502 so callers know to retry the whole operation.
func DomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidAmount):
		Error(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		Error(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, domain.ErrInsufficientLiquidity),
		errors.Is(err, domain.ErrInsufficientBalance):
		Error(c, http.StatusUnprocessableEntity, err.Error(), nil)
	case errors.Is(err, domain.ErrMarketClosed),
		errors.Is(err, domain.ErrAlreadyResolved),
		errors.Is(err, domain.ErrAlreadyClaimed),
		errors.Is(err, domain.ErrInvalidClaim),
		errors.Is(err, domain.ErrAlreadyReferred),
		errors.Is(err, domain.ErrSelfReferral),
		errors.Is(err, domain.ErrUnknownCode):
		Error(c, http.StatusConflict, err.Error(), nil)
	default:
		Error(c, http.StatusBadGateway, err.Error(), nil)
	}
}
