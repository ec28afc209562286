package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"warelog/internal/domain/ordersync"
	"warelog/internal/infrastructure/http/v1/dto"
)

// OrderSyncHandler handles external order webhooks.
type OrderSyncHandler struct {
	*BaseHandler
	service *ordersync.Service
}

// NewOrderSyncHandler creates a new order sync handler.
func NewOrderSyncHandler(base *BaseHandler, service *ordersync.Service) *OrderSyncHandler {
	return &OrderSyncHandler{
		BaseHandler: base,
		service:     service,
	}
}

// OrderConfirmed handles POST /orders/confirmed - creates an open WZ
// reserving stock for the order.
func (h *OrderSyncHandler) OrderConfirmed(c *gin.Context) {
	var req dto.OrderConfirmedRequest
	if !h.BindJSON(c, &req) {
		return
	}

	order, err := req.ToOrder()
	if err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.HandleOrderConfirmed(c.Request.Context(), order)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromDocument(doc))
}

// OrderStatusChanged handles POST /orders/status - closes the linked WZ
// once the order is shipped. Earlier statuses are acknowledged no-ops.
func (h *OrderSyncHandler) OrderStatusChanged(c *gin.Context) {
	var req dto.OrderStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.HandleOrderStatusChanged(c.Request.Context(), req.OrderRef, req.Status); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "order status processed")
}
