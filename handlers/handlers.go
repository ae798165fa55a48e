package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"checkout-gateway/logging"
	"checkout-gateway/service"
)

const msgInternal = "Internal server error"

// GatewayAdapter exposes one payment provider integration over HTTP.
// Adapters are mounted according to configuration.
type GatewayAdapter interface {
	Name() string
	RegisterRoutes(r gin.IRouter)
}

// bindJSON decodes the request body into dst. An empty body leaves dst at
// its zero value so that field validation reports what is missing.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
		return false
	}
	return true
}

// writeError maps service errors to HTTP responses.
func writeError(c *gin.Context, err error) {
	var (
		verr *service.ValidationError
		cerr *service.ConfigurationError
		uerr *service.UpstreamError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": verr.Message})
	case errors.Is(err, service.ErrSignatureMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid signature"})
	case errors.As(err, &cerr):
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": cerr.Message})
	case errors.As(err, &uerr):
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": uerr.Message})
	default:
		logging.FromContext(c.Request.Context()).Error("Unhandled request error",
			zap.Error(err),
			zap.String("path", c.FullPath()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": msgInternal})
	}
}
