package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"anime-watchlist/internal/service"
)

const internalErrorMessage = "Internal Server Error"

type errorMapping struct {
	target  error
	status  int
	message string
}

// errorTable traduce errores de negocio a status y mensaje público.
// ErrInvalidInput expone el detalle envuelto.
var errorTable = []errorMapping{
	{service.ErrInvalidInput, http.StatusBadRequest, ""},
	{service.ErrEmailTaken, http.StatusBadRequest, "User already exists."},
	{service.ErrAlreadyInWatchlist, http.StatusBadRequest, "Anime already exists in your watchlist."},
	{service.ErrInvalidToken, http.StatusBadRequest, "Invalid token."},
	{service.ErrAlreadyVerified, http.StatusBadRequest, "Account already verified."},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password."},
	{service.ErrNotVerified, http.StatusUnauthorized, "Please verify your account before logging in."},
	{service.ErrUnauthenticated, http.StatusUnauthorized, "You are not logged in to your account."},
	{service.ErrForbidden, http.StatusUnauthorized, "You are not authorized to perform this action."},
	{service.ErrInvalidDetails, http.StatusUnauthorized, "Invalid details."},
	{service.ErrUploadFailed, http.StatusUnauthorized, "Image upload failed."},
	{service.ErrUserNotFound, http.StatusNotFound, "User not found."},
	{service.ErrEntryNotFound, http.StatusNotFound, "Anime not found in your watchlist."},
	{service.ErrUpstreamUnavailable, http.StatusBadGateway, "Anime catalog is unavailable, please try again later."},
}

// translateError devuelve el status y el mensaje visibles para el cliente.
func translateError(err error) (int, string) {
	for _, m := range errorTable {
		if !errors.Is(err, m.target) {
			continue
		}
		if m.message != "" {
			return m.status, m.message
		}
		msg := strings.TrimPrefix(err.Error(), m.target.Error()+": ")
		return m.status, msg
	}
	return http.StatusInternalServerError, internalErrorMessage
}

// errorMiddleware responde con el último error registrado vía c.Error.
func errorMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status, msg := translateError(err)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
		}
		c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
	}
}

// badRequest se usa cuando falla el binding del cuerpo.
func badRequest(c *gin.Context, logger *zap.Logger, what string, err error) {
	logger.Warn("invalid "+what+" request", zap.Error(err))
	_ = c.Error(fmt.Errorf("%w: invalid request", service.ErrInvalidInput))
}
