package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"checkout-gateway/models"
	"checkout-gateway/service"
)

// RazorpayHandler serves the order creation and payment verification routes
type RazorpayHandler struct {
	gateway *service.OrderGateway
}

// NewRazorpayHandler exposes gateway over HTTP
func NewRazorpayHandler(gateway *service.OrderGateway) *RazorpayHandler {
	return &RazorpayHandler{gateway: gateway}
}

func (h *RazorpayHandler) Name() string { return h.gateway.Name() }

func (h *RazorpayHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/api/razorpay-order", h.CreateOrder)
	r.POST("/api/razorpay-verify", h.VerifyPayment)
}

// CreateOrder handles POST /api/razorpay-order
func (h *RazorpayHandler) CreateOrder(c *gin.Context) {
	var req models.OrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.gateway.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}

// VerifyPayment handles POST /api/razorpay-verify
func (h *RazorpayHandler) VerifyPayment(c *gin.Context) {
	var req models.PaymentConfirmation
	if !bindJSON(c, &req) {
		return
	}

	ok, err := h.gateway.VerifyPayment(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		writeError(c, service.ErrSignatureMismatch)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Payment verified"})
}
