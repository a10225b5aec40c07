package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/railzwaylabs/atelier/internal/client/domain"
	"github.com/railzwaylabs/atelier/internal/clock"
	"github.com/railzwaylabs/atelier/internal/observability"
	orderdomain "github.com/railzwaylabs/atelier/internal/order/domain"
	"github.com/railzwaylabs/atelier/internal/payment/domain"
	"github.com/railzwaylabs/atelier/pkg/db"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Gateway domain.Gateway
	Orders  orderdomain.Service
	Metrics *observability.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	gateway domain.Gateway
	orders  orderdomain.Service
	metrics *observability.Metrics
}

func New(p Params) domain.WebhookService {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("payment.webhook"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		gateway: p.Gateway,
		orders:  p.Orders,
		metrics: p.Metrics,
	}
}

// Ingest verifies the delivery before reading it, then creates or confirms the
// order keyed by the checkout session id. Redeliveries are successful no-ops.
func (s *Service) Ingest(ctx context.Context, payload []byte, headers http.Header) (domain.Outcome, error) {
	ctx, span := observability.Tracer().Start(ctx, "payment.webhook.ingest")
	defer span.End()

	provider := s.gateway.Name()
	if err := s.gateway.Verify(ctx, payload, headers); err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			s.log.Warn("webhook signature rejected",
				zap.String("event", "webhook.signature_invalid"),
				zap.String("provider", provider),
				zap.Int("payload_size", len(payload)))
		}
		s.metrics.WebhookOutcome(string(domain.OutcomeRejected))
		return domain.OutcomeRejected, err
	}
	if !json.Valid(payload) {
		s.metrics.WebhookOutcome(string(domain.OutcomeRejected))
		return domain.OutcomeRejected, domain.ErrInvalidPayload
	}

	event, err := s.gateway.Parse(ctx, payload)
	if err != nil {
		if !errors.Is(err, domain.ErrEventIgnored) {
			s.log.Warn("authentic webhook could not be parsed",
				zap.String("provider", provider),
				zap.Error(err))
		}
		return s.finish(domain.OutcomeIgnored), nil
	}
	span.SetAttributes(
		attribute.String("event_id", event.EventID),
		attribute.String("session_id", event.SessionID))

	seen, err := s.repo.FindEvent(ctx, s.db, provider, event.EventID)
	if err != nil {
		return "", err
	}
	if seen != nil {
		return s.finish(domain.OutcomeDuplicate), nil
	}

	outcome, order, err := s.apply(ctx, event)
	if err != nil {
		if !isUnusable(err) {
			s.log.Error("webhook processing failed",
				zap.String("provider", provider),
				zap.String("event_id", event.EventID),
				zap.Error(err))
			return "", err
		}
		s.log.Error("paid checkout could not become an order, reconcile manually",
			zap.String("provider", provider),
			zap.String("event_id", event.EventID),
			zap.String("session_id", event.SessionID),
			zap.Error(err))
		outcome = domain.OutcomeIgnored
	}

	s.record(ctx, event, outcome, order)
	s.log.Info("webhook processed",
		zap.String("provider", provider),
		zap.String("event_id", event.EventID),
		zap.String("session_id", event.SessionID),
		zap.String("outcome", string(outcome)))
	return s.finish(outcome), nil
}

func (s *Service) apply(ctx context.Context, event *domain.CheckoutEvent) (domain.Outcome, *orderdomain.Order, error) {
	if !event.Paid {
		return domain.OutcomeIgnored, nil, nil
	}

	existing, err := s.orders.FindByExternalReference(ctx, event.SessionID)
	switch {
	case err == nil:
		order, confirmed, err := s.orders.ConfirmPayment(ctx, existing.ID)
		if err != nil {
			return "", nil, err
		}
		if confirmed {
			return domain.OutcomeConfirmed, order, nil
		}
		return domain.OutcomeDuplicate, order, nil
	case !errors.Is(err, orderdomain.ErrNotFound):
		return "", nil, err
	}

	result, err := s.orders.Place(ctx, orderdomain.PlaceOrderInput{
		Channel:                  orderdomain.ChannelHostedCheckoutWebhook,
		Customer:                 event.Customer,
		Items:                    event.Items,
		ShippingAddress:          event.ShippingAddress,
		ReferralCode:             event.ReferralCode,
		ExternalPaymentReference: event.SessionID,
		PaymentConfirmed:         true,
	})
	if err != nil {
		return "", nil, err
	}
	switch {
	case !result.Duplicate:
		return domain.OutcomeCreated, result.Order, nil
	case result.Confirmed:
		return domain.OutcomeConfirmed, result.Order, nil
	default:
		return domain.OutcomeDuplicate, result.Order, nil
	}
}

// record writes the ledger entry. The order write already happened, so a ledger
// failure only costs a redundant no-op on redelivery.
func (s *Service) record(ctx context.Context, event *domain.CheckoutEvent, outcome domain.Outcome, order *orderdomain.Order) {
	now := s.clock.Now(ctx)
	record := &domain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.EventID,
		EventType:       event.EventType,
		Reference:       event.SessionID,
		Outcome:         string(outcome),
		Payload:         maskPayload(event.RawPayload),
		ReceivedAt:      now,
		ProcessedAt:     &now,
	}
	if order != nil {
		id := order.ID
		record.OrderID = &id
	}
	if err := s.repo.InsertEvent(ctx, s.db, record); err != nil && !db.IsUniqueViolation(err) {
		s.log.Error("failed to record webhook event",
			zap.String("event_id", event.EventID),
			zap.Error(err))
	}
}

func (s *Service) finish(outcome domain.Outcome) domain.Outcome {
	s.metrics.WebhookOutcome(string(outcome))
	return outcome
}

// isUnusable reports errors that a redelivery of the same payload cannot fix.
func isUnusable(err error) bool {
	for _, target := range []error{
		orderdomain.ErrEmptyOrder,
		orderdomain.ErrInvalidQuantity,
		orderdomain.ErrInvalidPrice,
		orderdomain.ErrInvalidReference,
		clientdomain.ErrInvalidEmail,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func maskPayload(raw []byte) []byte {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return raw
	}
	maskMap(obj)
	masked, err := json.Marshal(obj)
	if err != nil {
		return raw
	}
	return masked
}

func maskMap(m map[string]any) {
	for k, v := range m {
		switch strings.ToLower(k) {
		case "card", "billing_details", "shipping_details", "payment_method_details", "customer_details", "phone":
			m[k] = "***"
		default:
			if nested, ok := v.(map[string]any); ok {
				maskMap(nested)
			} else if arr, ok := v.([]any); ok {
				for _, item := range arr {
					if itemMap, ok := item.(map[string]any); ok {
						maskMap(itemMap)
					}
				}
			}
		}
	}
}
