package api

import (
	"context"
	"net/http"
	"time"

	"payment-gateway/internal/apperr"
	"payment-gateway/internal/ledger"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

const healthTimeout = 2 * time.Second

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	database := "connected"
	if err := h.store.Ping(ctx); err != nil {
		h.logger.WarnContext(ctx, "Database ping failed", "error", err)
		database = "disconnected"
	}

	c.JSON(http.StatusOK, Health{
		Status:    "healthy",
		Database:  database,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) testMerchant(c *gin.Context) {
	merchant, err := h.store.GetMerchantByEmail(c.Request.Context(), ledger.TestMerchantEmail)
	if errors.Is(err, ledger.ErrNotFound) {
		h.writeError(c, apperr.NotFound("Test merchant not found"))
		return
	}
	if err != nil {
		h.writeError(c, apperr.Internal(errors.Wrap(err, "get test merchant")))
		return
	}

	c.JSON(http.StatusOK, TestMerchant{
		ID:     merchant.ID,
		Email:  merchant.Email,
		APIKey: merchant.APIKey,
		Seeded: true,
	})
}
