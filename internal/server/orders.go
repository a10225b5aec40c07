package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	clientdomain "github.com/railzwaylabs/atelier/internal/client/domain"
	orderdomain "github.com/railzwaylabs/atelier/internal/order/domain"
	paymentdomain "github.com/railzwaylabs/atelier/internal/payment/domain"
	"github.com/shopspring/decimal"
)

type customerRequest struct {
	Name  string `json:"name" binding:"required,max=200"`
	Email string `json:"email" binding:"required,email,max=320"`
	Phone string `json:"phone" binding:"max=32"`
}

type lineItemRequest struct {
	SKU       string          `json:"sku" binding:"required,max=64"`
	Name      string          `json:"name" binding:"required,max=200"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

type addressRequest struct {
	Line1      string `json:"line1" binding:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" binding:"required"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code" binding:"required"`
	Country    string `json:"country" binding:"required,len=2"`
}

// orderRequest is the cart body shared by every storefront intake route.
// Item validation is left to the pricing rule so callers get the domain error.
// An unusable referral code only leaves the order unattributed.
type orderRequest struct {
	Customer        customerRequest   `json:"customer"`
	Items           []lineItemRequest `json:"items" binding:"dive"`
	ShippingAddress *addressRequest   `json:"shipping_address"`
	ReferralCode    string            `json:"referral_code"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (r orderRequest) contact() clientdomain.Contact {
	return clientdomain.Contact{
		Name:  strings.TrimSpace(r.Customer.Name),
		Email: strings.TrimSpace(r.Customer.Email),
		Phone: strings.TrimSpace(r.Customer.Phone),
	}
}

func (r orderRequest) items() []orderdomain.LineItem {
	out := make([]orderdomain.LineItem, 0, len(r.Items))
	for _, item := range r.Items {
		out = append(out, orderdomain.LineItem{
			SKU:       strings.TrimSpace(item.SKU),
			Name:      strings.TrimSpace(item.Name),
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}
	return out
}

func (r orderRequest) address() *orderdomain.Address {
	if r.ShippingAddress == nil {
		return nil
	}
	a := r.ShippingAddress
	return &orderdomain.Address{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		Region:     a.Region,
		PostalCode: a.PostalCode,
		Country:    strings.ToUpper(a.Country),
	}
}

// referralCode prefers the code typed at checkout over the stored attribution token.
func (s *Server) referralCode(c *gin.Context, explicit string) string {
	if code := strings.TrimSpace(explicit); code != "" {
		return code
	}
	if token := s.currentToken(c); token != nil {
		return token.Code
	}
	return ""
}

func (s *Server) checkoutRequest(c *gin.Context, req orderRequest) paymentdomain.CheckoutRequest {
	return paymentdomain.CheckoutRequest{
		Customer:        req.contact(),
		Items:           req.items(),
		ShippingAddress: req.address(),
		ReferralCode:    s.referralCode(c, req.ReferralCode),
	}
}

// CreateOrder places a direct order. It stays pending until an operator marks it paid.
// POST /api/orders
func (s *Server) CreateOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	res, err := s.orders.Place(c.Request.Context(), orderdomain.PlaceOrderInput{
		Channel:         orderdomain.ChannelDirect,
		Customer:        req.contact(),
		Items:           req.items(),
		ShippingAddress: req.address(),
		ReferralCode:    s.referralCode(c, req.ReferralCode),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, res.Order)
}

// GetOrder
// GET /admin/orders/:id
func (s *Server) GetOrder(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, orderdomain.ErrNotFound)
		return
	}

	order, err := s.orders.FindByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, order)
}

// UpdateOrderStatus
// POST /admin/orders/:id/status
func (s *Server) UpdateOrderStatus(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, orderdomain.ErrNotFound)
		return
	}

	var req updateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	status := orderdomain.PaymentStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	order, err := s.orders.TransitionStatus(c.Request.Context(), id, status)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, order)
}
