package restapi

import (
	"errors"
	"net/http"

	"kaia_defi/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrWalletNotConnected):
		return http.StatusUnauthorized
	case errors.Is(err, entity.ErrWrongNetwork), errors.Is(err, entity.ErrStaleResult):
		return http.StatusConflict
	case errors.Is(err, entity.ErrInvalidAmount),
		errors.Is(err, entity.ErrInvalidAddress),
		errors.Is(err, entity.ErrInvalidHash),
		errors.Is(err, entity.ErrUnknownToken):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrUnknownFarm), errors.Is(err, entity.ErrNotDeployed):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrInsufficientBalance),
		errors.Is(err, entity.ErrNoLiquidity),
		errors.Is(err, entity.ErrLTVTooHigh):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entity.ErrContractReverted):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// APIResponse is the envelope of every API answer. Data may carry the
// feature state even when Error is set.
type APIResponse struct {
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func respond(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse{Data: data, RequestID: requestID(c)})
}

func respondError(c *gin.Context, err error, data any) {
	status := StatusFor(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, APIResponse{Data: data, Error: err.Error(), RequestID: requestID(c)})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, APIResponse{Error: "invalid request body: " + err.Error(), RequestID: requestID(c)})
}
