package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"checkout-gateway/logging"
	"checkout-gateway/models"
	"checkout-gateway/service"
)

const maxCallbackBody = 1 << 20

// PhonePeHandler serves payment initiation, status and callback routes
type PhonePeHandler struct {
	gateway *service.ChecksumGateway
}

// NewPhonePeHandler exposes gateway over HTTP
func NewPhonePeHandler(gateway *service.ChecksumGateway) *PhonePeHandler {
	return &PhonePeHandler{gateway: gateway}
}

func (h *PhonePeHandler) Name() string { return h.gateway.Name() }

func (h *PhonePeHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/api/pay", h.Pay)
	r.POST("/api/callback", h.Callback)
	r.GET("/api/status/:txnId", h.Status)
}

// Pay handles POST /api/pay and relays the provider response verbatim
func (h *PhonePeHandler) Pay(c *gin.Context) {
	var req models.PayRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.gateway.InitiatePayment(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(resp.StatusCode, resp.ContentType, resp.Body)
}

// Status handles GET /api/status/:txnId
func (h *PhonePeHandler) Status(c *gin.Context) {
	resp, err := h.gateway.CheckStatus(c.Request.Context(), c.Param("txnId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(resp.StatusCode, resp.ContentType, resp.Body)
}

// Callback handles POST /api/callback. The provider treats anything but a
// fast 200 as a failed delivery, so the response never depends on the body.
func (h *PhonePeHandler) Callback(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		logging.FromContext(c.Request.Context()).Warn("Failed to read callback body", zap.Error(err))
	}
	h.gateway.ReceiveCallback(c.Request.Context(), body, c.GetHeader("X-VERIFY"))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Callback received"})
}
