package api

import (
	"net/http"

	"payment-gateway/internal/apperr"
	"payment-gateway/internal/engine"

	"github.com/gin-gonic/gin"
)

func (h *Handler) createOrder(c *gin.Context) {
	var req engine.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperr.Validation("Invalid request body"))
		return
	}

	order, err := h.engine.CreateOrder(c.Request.Context(), merchantFrom(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.engine.GetOrder(c.Request.Context(), merchantFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) getPublicOrder(c *gin.Context) {
	order, err := h.engine.GetPublicOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
