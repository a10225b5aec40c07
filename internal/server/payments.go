package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/railzwaylabs/atelier/internal/payment/domain"
)

// CreateCheckoutSession opens a hosted checkout and returns the redirect URL.
// POST /api/checkout/sessions
func (s *Server) CreateCheckoutSession(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	checkout, err := s.checkout.CreateHostedCheckout(c.Request.Context(), s.checkoutRequest(c, req))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, checkout)
}

// VerifyCheckoutSession confirms the order behind a session on the customer's return.
// GET /api/checkout/sessions/:session_id/verify
func (s *Server) VerifyCheckoutSession(c *gin.Context) {
	order, err := s.checkout.ConfirmRedirect(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, order)
}

// CreateWalletPayment
// POST /api/payments/wallet
func (s *Server) CreateWalletPayment(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	payment, err := s.wallet.Initiate(c.Request.Context(), s.checkoutRequest(c, req))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, payment)
}

// WalletCallback reconciles a wallet payment. The outcome is always read back from the wallet API.
// GET|POST /api/payments/wallet/callback?externalId=
func (s *Server) WalletCallback(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("externalId"))
	if raw == "" {
		raw = strings.TrimSpace(c.PostForm("externalId"))
	}
	externalID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		AbortWithError(c, paymentdomain.ErrInvalidExternalID)
		return
	}

	result, err := s.wallet.HandleCallback(c.Request.Context(), externalID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, result)
}
