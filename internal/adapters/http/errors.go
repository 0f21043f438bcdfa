package http

import (
	"github.com/gin-gonic/gin"

	"github.com/geulsup/garden-gateway/internal/adapters/http/dto"
)

// AbortWithErrorCode aborts the request chain with a specific error code.
func AbortWithErrorCode(c *gin.Context, code, message string) {
	errResp := dto.NewErrorResponse(code, message).WithTraceID(dto.GetTraceID(c))
	c.AbortWithStatusJSON(dto.HTTPStatusFromCode(code), errResp)
}

// notFound answers unknown routes and methods with the JSON envelope
// instead of gin's plain-text default.
func notFound(c *gin.Context) {
	AbortWithErrorCode(c, dto.ErrorCodeNotFound, "route not found")
}
