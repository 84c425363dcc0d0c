package api

import (
	"net/http"
	"strconv"

	"payment-gateway/internal/apperr"
	"payment-gateway/internal/engine"
	"payment-gateway/internal/model"

	"github.com/gin-gonic/gin"
)

func (h *Handler) createPayment(c *gin.Context) {
	var req engine.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperr.Validation("Invalid request body"))
		return
	}

	payment, err := h.engine.CreatePayment(c.Request.Context(), merchantFrom(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func (h *Handler) checkout(c *gin.Context) {
	var req engine.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperr.Validation("Invalid request body"))
		return
	}

	payment, err := h.engine.Checkout(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func (h *Handler) getPayment(c *gin.Context) {
	payment, err := h.engine.GetPayment(c.Request.Context(), merchantFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *Handler) listPayments(c *gin.Context) {
	filter := model.PaymentFilter{
		OrderID: c.Query("order_id"),
		Status:  model.PaymentStatus(c.Query("status")),
	}

	var err error
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		h.writeError(c, apperr.Validation("limit must be an integer"))
		return
	}
	if filter.Offset, err = queryInt(c, "offset"); err != nil {
		h.writeError(c, apperr.Validation("offset must be an integer"))
		return
	}

	payments, err := h.engine.ListPayments(c.Request.Context(), merchantFrom(c), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, PaymentList{Items: payments, Count: len(payments)})
}

func (h *Handler) paymentStats(c *gin.Context) {
	stats, err := h.engine.Stats(c.Request.Context(), merchantFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
