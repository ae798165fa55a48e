package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"checkout-gateway/monitoring"
)

// RouterOptions configures the HTTP surface
type RouterOptions struct {
	ServiceName   string
	AllowedOrigin string
	// Metrics serves /metrics when non-nil.
	Metrics http.Handler
}

// NewRouter builds the gin engine with middleware, health routes and the
// routes of every enabled adapter.
func NewRouter(opts RouterOptions, adapters ...GatewayAdapter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.Use(otelgin.Middleware(opts.ServiceName))
	r.Use(httpMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{opts.AllowedOrigin},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	names := make([]string, 0, len(adapters))
	for _, a := range adapters {
		a.RegisterRoutes(r)
		names = append(names, a.Name())
	}

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Payment gateway server is running")
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "gateways": names})
	})
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	return r
}

// httpMetricsMiddleware records HTTP request metrics
func httpMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := float64(time.Since(start).Milliseconds())

		monitoring.HTTPServerDuration.Record(c.Request.Context(), duration,
			metric.WithAttributes(
				attribute.String("http_method", c.Request.Method),
				attribute.String("http_route", c.FullPath()),
				attribute.String("http_status_code", strconv.Itoa(c.Writer.Status())),
			),
		)
	}
}
