package api

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"payment-gateway/internal/apperr"
	"payment-gateway/internal/ledger"
	"payment-gateway/internal/logcontext"
	"payment-gateway/internal/metrics"
	"payment-gateway/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderAPIKey    = "X-Api-Key"
	HeaderAPISecret = "X-Api-Secret"

	merchantKey = "merchant"
)

func (h *Handler) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" {
			rid = uuid.New().String()
		}

		ctx := logcontext.AppendCtx(c.Request.Context(), slog.String("requestId", rid))
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderRequestID, rid)

		c.Next()
	}
}

func (h *Handler) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		h.logger.InfoContext(c.Request.Context(), "HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start).String(),
			"clientIp", c.ClientIP())

		metrics.HTTPRequests(c.Request.Method, route, status).Inc()
		metrics.HTTPRequestDuration(c.Request.Method, route).UpdateDuration(start)
	}
}

func (h *Handler) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		h.logger.ErrorContext(c.Request.Context(), "Panic recovered",
			"panic", fmt.Sprint(recovered),
			"stack", string(debug.Stack()))
		h.writeError(c, apperr.Internal(errors.Errorf("panic: %v", recovered)))
	})
}

// authenticate resolves the X-Api-Key / X-Api-Secret pair to an active
// merchant or rejects the request with 401.
func (h *Handler) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderAPIKey)
		secret := c.GetHeader(HeaderAPISecret)
		if key == "" || secret == "" {
			h.writeError(c, apperr.Authentication())
			return
		}

		merchant, err := h.store.GetMerchantByAPIKey(c.Request.Context(), key)
		if err != nil && !errors.Is(err, ledger.ErrNotFound) {
			h.writeError(c, apperr.Internal(errors.Wrap(err, "authenticate")))
			return
		}
		if err != nil || subtle.ConstantTimeCompare([]byte(merchant.APISecret), []byte(secret)) != 1 || !merchant.Active {
			h.writeError(c, apperr.Authentication())
			return
		}

		ctx := logcontext.AppendCtx(c.Request.Context(), slog.String("merchantId", merchant.ID.String()))
		c.Request = c.Request.WithContext(ctx)
		c.Set(merchantKey, merchant)
		c.Next()
	}
}

func merchantFrom(c *gin.Context) *model.Merchant {
	return c.MustGet(merchantKey).(*model.Merchant)
}
