package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	attributiondomain "github.com/railzwaylabs/atelier/internal/attribution/domain"
	clientdomain "github.com/railzwaylabs/atelier/internal/client/domain"
	commissiondomain "github.com/railzwaylabs/atelier/internal/commission/domain"
	consultantdomain "github.com/railzwaylabs/atelier/internal/consultant/domain"
	orderdomain "github.com/railzwaylabs/atelier/internal/order/domain"
	paymentdomain "github.com/railzwaylabs/atelier/internal/payment/domain"
	reportingdomain "github.com/railzwaylabs/atelier/internal/reporting/domain"
)

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not_found")
	ErrInternal       = errors.New("internal_error")
)

const (
	typeInvalidRequest = "invalid_request_error"
	typeAuthentication = "authentication_error"
	typeNotFound       = "not_found_error"
	typeConflict       = "conflict_error"
	typeGateway        = "gateway_error"
	typeAPI            = "api_error"
)

type errorMapping struct {
	err    error
	status int
	kind   string
}

var errorMappings = []errorMapping{
	{ErrInvalidRequest, http.StatusBadRequest, typeInvalidRequest},
	{orderdomain.ErrEmptyOrder, http.StatusBadRequest, typeInvalidRequest},
	{orderdomain.ErrInvalidQuantity, http.StatusBadRequest, typeInvalidRequest},
	{orderdomain.ErrInvalidPrice, http.StatusBadRequest, typeInvalidRequest},
	{orderdomain.ErrInvalidChannel, http.StatusBadRequest, typeInvalidRequest},
	{orderdomain.ErrInvalidStatus, http.StatusBadRequest, typeInvalidRequest},
	{orderdomain.ErrInvalidReference, http.StatusBadRequest, typeInvalidRequest},
	{clientdomain.ErrInvalidEmail, http.StatusBadRequest, typeInvalidRequest},
	{attributiondomain.ErrInvalidCode, http.StatusBadRequest, typeInvalidRequest},
	{commissiondomain.ErrInvalidStatus, http.StatusBadRequest, typeInvalidRequest},
	{commissiondomain.ErrInvalidPeriod, http.StatusBadRequest, typeInvalidRequest},
	{consultantdomain.ErrInvalidCode, http.StatusBadRequest, typeInvalidRequest},
	{consultantdomain.ErrInvalidName, http.StatusBadRequest, typeInvalidRequest},
	{consultantdomain.ErrInvalidPercent, http.StatusBadRequest, typeInvalidRequest},
	{consultantdomain.ErrInvalidStatus, http.StatusBadRequest, typeInvalidRequest},
	{reportingdomain.ErrInvalidPeriod, http.StatusBadRequest, typeInvalidRequest},
	{paymentdomain.ErrInvalidExternalID, http.StatusBadRequest, typeInvalidRequest},
	{paymentdomain.ErrCartTooLarge, http.StatusBadRequest, typeInvalidRequest},
	{paymentdomain.ErrInvalidPayload, http.StatusBadRequest, typeInvalidRequest},
	{paymentdomain.ErrInvalidSignature, http.StatusBadRequest, typeInvalidRequest},

	{ErrUnauthorized, http.StatusUnauthorized, typeAuthentication},

	{ErrNotFound, http.StatusNotFound, typeNotFound},
	{orderdomain.ErrNotFound, http.StatusNotFound, typeNotFound},
	{commissiondomain.ErrNotFound, http.StatusNotFound, typeNotFound},
	{consultantdomain.ErrNotFound, http.StatusNotFound, typeNotFound},
	{paymentdomain.ErrCheckoutSessionNotFound, http.StatusNotFound, typeNotFound},

	{orderdomain.ErrInvalidTransition, http.StatusConflict, typeConflict},
	{commissiondomain.ErrInvalidTransition, http.StatusConflict, typeConflict},
	{reportingdomain.ErrBatchRunning, http.StatusConflict, typeConflict},
	{paymentdomain.ErrCheckoutSessionNotPaid, http.StatusConflict, typeConflict},

	{paymentdomain.ErrGatewayUnavailable, http.StatusBadGateway, typeGateway},
	{paymentdomain.ErrGatewayNotConfigured, http.StatusServiceUnavailable, typeGateway},
}

// AbortWithError maps known sentinel errors to a status and a stable error type.
// Anything else is a 500 whose message does not leak internals.
func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		err = ErrInternal
	}
	_ = c.Error(err)

	status, kind, message := http.StatusInternalServerError, typeAPI, ErrInternal.Error()
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			status, kind, message = m.status, m.kind, m.err.Error()
			break
		}
	}

	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"type":    kind,
			"message": message,
		},
	})
}
