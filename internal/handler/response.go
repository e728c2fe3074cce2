// Package handler is the HTTP surface: gin handlers over the trading,
// referral and prediction services, all replying in one envelope.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// apiResponse is the uniform reply envelope. Code is 0 on success and the
// HTTP status on failure; Meta carries pagination and read-path extras such
// as cached prices.
type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

// Created is Ok with a 201, for handlers that mint a new resource (tokens,
// markets, wagers).
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, apiResponse{
		Code:    0,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}
