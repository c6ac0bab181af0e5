package handlers

import (
	"errors"
	"net/http"

	"github.com/geocoder89/authhub/internal/service"
	"github.com/gin-gonic/gin"
)

// Error bodies are always {"error": "<message>"}. Service error variants are
// mapped to status codes here and nowhere else.

func RespondError(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{"error": message})
}

func RespondBadRequest(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusBadRequest, message)
}

func RespondUnauthorized(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusUnauthorized, message)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, message)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, message)
}

// RespondServiceError is the single boundary mapping for the closed set of
// service error variants. Anything outside the set is an internal failure
// and never leaks its message.
func RespondServiceError(ctx *gin.Context, err error) {
	var validationErr *service.ValidationError
	var conflictErr *service.ConflictError
	var authErr *service.AuthError
	var notFoundErr *service.NotFoundError

	switch {
	case errors.As(err, &validationErr):
		RespondBadRequest(ctx, validationErr.Message)
	case errors.As(err, &conflictErr):
		RespondBadRequest(ctx, conflictErr.Message)
	case errors.As(err, &authErr):
		RespondUnauthorized(ctx, authErr.Message)
	case errors.As(err, &notFoundErr):
		RespondNotFound(ctx, notFoundErr.Message)
	default:
		RespondInternal(ctx, "internal server error")
	}
}
