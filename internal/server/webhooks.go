package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/railzwaylabs/atelier/internal/payment/domain"
)

const maxWebhookBody = 1 << 20

// StripeWebhook acknowledges every authentic event with 200 so the gateway stops retrying,
// including events that could not produce an order. Storage failures return 5xx to get a retry.
// POST /webhooks/stripe
func (s *Server) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, paymentdomain.ErrInvalidPayload)
		return
	}

	outcome, err := s.webhooks.Ingest(c.Request.Context(), payload, c.Request.Header)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "outcome": outcome})
}
