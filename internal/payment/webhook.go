package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"resto/internal/models"
	"resto/internal/store"
)

const providerName = "mercadopago"

var (
	ErrNotConfigured = errors.New("payment provider not configured")
	ErrOrderSettled  = errors.New("order payment already settled")
)

type Provider interface {
	CreatePreference(ctx context.Context, req PreferenceRequest) (Preference, error)
	GetPayment(ctx context.Context, paymentID string) (Payment, error)
}

// OrderBook is the order side the processor drives.
type OrderBook interface {
	GetOrder(ctx context.Context, tenantID, orderID string) (models.Order, error)
	SetPaymentReference(ctx context.Context, tenantID, orderID, reference string) (models.Order, error)
	UpdatePaymentStatus(ctx context.Context, tenantID, orderID, status, reference string) (models.Order, error)
	Settings(ctx context.Context, tenantID string) (models.TenantSettings, json.RawMessage, error)
}

type Options struct {
	WebhookSecret   string
	NotificationURL string
}

type Processor struct {
	provider Provider
	orders   OrderBook
	ledger   store.WebhookLedger
	opts     Options
}

// NewProcessor returns a processor. provider may be nil when no access token
// is configured.
func NewProcessor(provider Provider, orders OrderBook, ledger store.WebhookLedger, opts Options) *Processor {
	return &Processor{provider: provider, orders: orders, ledger: ledger, opts: opts}
}

func ExternalReference(tenantID, orderID string) string {
	return tenantID + ":" + orderID
}

func ParseExternalReference(ref string) (tenantID, orderID string, err error) {
	tenantID, orderID, ok := strings.Cut(ref, ":")
	if !ok || tenantID == "" || orderID == "" {
		return "", "", fmt.Errorf("malformed external reference %q", ref)
	}
	return tenantID, orderID, nil
}

// CreateCheckout opens a checkout preference for a pending order.
func (p *Processor) CreateCheckout(ctx context.Context, tenantID, orderID string) (Preference, error) {
	if p.provider == nil {
		return Preference{}, ErrNotConfigured
	}
	order, err := p.orders.GetOrder(ctx, tenantID, orderID)
	if err != nil {
		return Preference{}, err
	}
	if order.PaymentStatus != models.PaymentPending {
		return Preference{}, ErrOrderSettled
	}
	settings, _, err := p.orders.Settings(ctx, tenantID)
	if err != nil {
		return Preference{}, err
	}
	pref, err := p.provider.CreatePreference(ctx, PreferenceRequest{
		Items: []PreferenceItem{{
			ID:         order.OrderID,
			Title:      fmt.Sprintf("Order %s", shortID(order.OrderID)),
			Quantity:   1,
			UnitPrice:  float64(order.TotalCents) / 100,
			CurrencyID: settings.Currency,
		}},
		ExternalReference: ExternalReference(tenantID, orderID),
		NotificationURL:   p.opts.NotificationURL,
	})
	if err != nil {
		return Preference{}, err
	}
	if _, err := p.orders.SetPaymentReference(ctx, tenantID, orderID, pref.ID); err != nil {
		return Preference{}, err
	}
	return pref, nil
}

type Notification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

// WebhookRequest is the raw material of one provider callback.
type WebhookRequest struct {
	Body        []byte
	Signature   string
	RequestID   string
	QueryType   string
	QueryDataID string
}

// HandleWebhook processes a provider callback. Every failure is written to
// the ledger and returned for logging; the provider is acknowledged
// regardless by the caller.
func (p *Processor) HandleWebhook(ctx context.Context, req WebhookRequest) error {
	err := p.process(ctx, req)
	if err != nil {
		p.record(ctx, req, err)
	}
	return err
}

func (p *Processor) process(ctx context.Context, req WebhookRequest) error {
	var note Notification
	if len(req.Body) > 0 {
		if err := json.Unmarshal(req.Body, &note); err != nil {
			return fmt.Errorf("decode notification: %w", err)
		}
	}
	if note.Type == "" {
		note.Type = req.QueryType
	}
	dataID := note.Data.ID
	if dataID == "" {
		dataID = req.QueryDataID
	}

	if p.opts.WebhookSecret != "" {
		if err := VerifySignature(p.opts.WebhookSecret, req.Signature, req.RequestID, dataID); err != nil {
			return err
		}
	}
	if note.Type != "payment" {
		return nil
	}
	if dataID == "" {
		return errors.New("payment notification without data id")
	}
	if p.provider == nil {
		return ErrNotConfigured
	}

	pay, err := p.provider.GetPayment(ctx, dataID)
	if err != nil {
		return err
	}
	status, ok := mapStatus(pay.Status)
	if !ok {
		log.Printf("payment webhook ignored payment=%s status=%s", dataID, pay.Status)
		return nil
	}
	tenantID, orderID, err := ParseExternalReference(pay.ExternalReference)
	if err != nil {
		return err
	}
	order, err := p.orders.GetOrder(ctx, tenantID, orderID)
	if err != nil {
		return err
	}
	if status == models.PaymentPaid && pay.TransactionAmount > 0 {
		if cents := int64(math.Round(pay.TransactionAmount * 100)); cents != order.TotalCents {
			log.Printf("payment amount mismatch order=%s paid=%d total=%d", orderID, cents, order.TotalCents)
		}
	}
	if _, err := p.orders.UpdatePaymentStatus(ctx, tenantID, orderID, status, dataID); err != nil {
		return err
	}
	return nil
}

func mapStatus(providerStatus string) (string, bool) {
	switch providerStatus {
	case "approved":
		return models.PaymentPaid, true
	case "rejected", "cancelled":
		return models.PaymentCancelled, true
	default:
		return "", false
	}
}

func (p *Processor) record(ctx context.Context, req WebhookRequest, cause error) {
	log.Printf("payment webhook failed request_id=%s: %v", req.RequestID, cause)
	if p.ledger == nil {
		return
	}
	failure := models.WebhookFailure{
		Provider:   providerName,
		Payload:    string(req.Body),
		Error:      cause.Error(),
		ReceivedAt: time.Now().UTC(),
	}
	if err := p.ledger.RecordWebhookFailure(ctx, failure); err != nil {
		log.Printf("record webhook failure: %v", err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
