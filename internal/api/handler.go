package api

import (
	"log/slog"
	"net/http"

	"payment-gateway/internal/apperr"
	"payment-gateway/internal/engine"
	"payment-gateway/internal/ledger"
	"payment-gateway/internal/metrics"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	engine        *engine.Engine
	store         ledger.Store
	logger        *slog.Logger
	testEndpoints bool
}

func NewHandler(eng *engine.Engine, store ledger.Store, logger *slog.Logger, testEndpoints bool) *Handler {
	return &Handler{
		engine:        eng,
		store:         store,
		logger:        logger,
		testEndpoints: testEndpoints,
	}
}

// Router builds the gin engine. Routes outside the authenticated group are
// the public allow-list.
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(h.requestID(), h.recovery(), h.accessLog())

	router.NoRoute(func(c *gin.Context) {
		h.writeError(c, apperr.NotFound("Route not found"))
	})

	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/api/v1")

	public := v1.Group("")
	{
		public.GET("/orders/:id/public", h.getPublicOrder)
		public.POST("/checkout/pay", h.checkout)
		if h.testEndpoints {
			public.GET("/test/merchant", h.testMerchant)
		}
	}

	authed := v1.Group("", h.authenticate())
	{
		authed.POST("/orders", h.createOrder)
		authed.GET("/orders/:id", h.getOrder)

		authed.POST("/payments", h.createPayment)
		authed.GET("/payments", h.listPayments)
		authed.GET("/payments/stats", h.paymentStats)
		authed.GET("/payments/:id", h.getPayment)
	}

	return router
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(c.Request.Context(), "Request failed", "path", c.Request.URL.Path, "error", err)
	} else {
		h.logger.InfoContext(c.Request.Context(), "Request rejected", "path", c.Request.URL.Path, "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, apperr.ToEnvelope(err))
}
