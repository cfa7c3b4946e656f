package handler

import (
	"errors"
	"net/http"

	appeinvoice "github.com/einvoice/backend/internal/application/einvoice"
	"github.com/einvoice/backend/internal/domain/einvoice"
	"github.com/einvoice/backend/internal/domain/shared"
	"github.com/einvoice/backend/internal/interfaces/http/dto"
	"github.com/einvoice/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDKey is the context key for request ID
const RequestIDKey = "request_id"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader("X-Request-ID")
}

// getTenantID extracts the tenant ID set by the tenant middleware, falling
// back to the X-Tenant-ID header when the middleware is not installed.
func getTenantID(c *gin.Context) (uuid.UUID, error) {
	if id := middleware.GetTenantID(c); id != "" {
		return uuid.Parse(id)
	}
	if id := c.GetHeader(middleware.TenantHeaderKey); id != "" {
		return uuid.Parse(id)
	}
	return uuid.Nil, errors.New("tenant ID not found in context")
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	requestID := getRequestID(c)
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, requestID))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Conflict sends a 409 conflict response
func (h *BaseHandler) Conflict(c *gin.Context, message string) {
	h.Error(c, http.StatusConflict, dto.ErrCodeConflict, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// sentinelErrorCodes maps well-known domain sentinel errors to HTTP-facing
// error codes. Unlisted errors fall through to ERR_INTERNAL.
var sentinelErrorCodes = []struct {
	err  error
	code string
}{
	{einvoice.ErrDocumentNotFound, dto.ErrCodeNotFound},
	{einvoice.ErrDocumentTerminal, dto.ErrCodeInvalidState},
	{einvoice.ErrInvalidTransition, dto.ErrCodeInvalidState},
	{einvoice.ErrMissingExternalRef, dto.ErrCodeInvalidState},
	{einvoice.ErrInvalidProfile, dto.ErrCodeInvalidInput},
	{einvoice.ErrMissingCounterpartID, dto.ErrCodeInvalidInput},
	{einvoice.ErrProviderNotConfigured, dto.ErrCodeProviderNotConfigured},
	{einvoice.ErrProviderAuthFailed, dto.ErrCodeProviderAuth},
	{einvoice.ErrProviderUnavailable, dto.ErrCodeProviderUnavailable},
	{einvoice.ErrProviderInvalidReply, dto.ErrCodeProviderUnavailable},
	{appeinvoice.ErrConfirmationPending, dto.ErrCodeConfirmationRequired},
	{appeinvoice.ErrNoConfirmationPending, dto.ErrCodeNoConfirmationPending},
	{shared.ErrNotFound, dto.ErrCodeNotFound},
}

// HandleDomainError converts domain errors to HTTP responses
func (h *BaseHandler) HandleDomainError(c *gin.Context, err error) {
	requestID := getRequestID(c)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		statusCode := dto.GetHTTPStatus(code)
		c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID))
		return
	}

	for _, entry := range sentinelErrorCodes {
		if errors.Is(err, entry.err) {
			statusCode := dto.GetHTTPStatus(entry.code)
			c.JSON(statusCode, dto.NewErrorResponseWithRequestID(entry.code, err.Error(), requestID))
			return
		}
	}

	h.InternalError(c, "An unexpected error occurred")
}
