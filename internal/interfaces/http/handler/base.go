package handler

import (
	"errors"
	"net/http"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/logger"
	"github.com/erp/erli-connector/internal/interfaces/http/dto"
	"github.com/erp/erli-connector/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// errorCode maps domain sentinel errors to API error codes
func errorCode(err error) (code, message string) {
	switch {
	case errors.Is(err, integration.ErrRunInProgress):
		return dto.ErrCodeRunInProgress, "Another sync run is in progress"
	case errors.Is(err, integration.ErrNotFound):
		return dto.ErrCodeNotFound, "Resource not found"
	case errors.Is(err, integration.ErrProductInactive):
		return dto.ErrCodeProductInactive, "Product is inactive"
	case errors.Is(err, integration.ErrValidation):
		return dto.ErrCodeValidation, "Validation failed"
	case errors.Is(err, integration.ErrRateLimited):
		return dto.ErrCodeUpstreamRateLimited, "Marketplace rate limit exceeded"
	case errors.Is(err, integration.ErrUpstream), errors.Is(err, integration.ErrMalformedResponse):
		return dto.ErrCodeUpstream, "Marketplace request failed"
	case errors.Is(err, integration.ErrMarketplaceNotConfigured):
		return dto.ErrCodeNotConfigured, "Marketplace is not configured"
	default:
		return dto.ErrCodeInternal, "An unexpected error occurred"
	}
}

// HandleError converts an error into an HTTP response. Internal errors are
// logged with the request logger and never leak their text to the client.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	code, message := errorCode(err)
	status := dto.GetHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		logger.GetGinLogger(c).Error("Request failed", zap.String("code", code), zap.Error(err))
	}
	_ = c.Error(err)
	h.Error(c, status, code, message)
}
