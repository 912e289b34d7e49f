package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/razorpay/razorpay-go/utils"
	"github.com/sirupsen/logrus"

	"github.com/kycfabric/gateway/internal/domain"
)

var (
	ErrOrderNotFound     = errors.New("payment order not found")
	ErrInvalidSignature  = errors.New("invalid payment signature")
	ErrPaymentIncomplete = errors.New("payment not completed")
)

// LinkCreator creates hosted payment links. The Razorpay SDK's PaymentLink
// resource satisfies it.
type LinkCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// OrderStore persists payment orders.
type OrderStore interface {
	InsertPaymentOrder(ctx context.Context, o *domain.PaymentOrder) error
	GetPaymentOrderByOrderID(ctx context.Context, orderID string) (*domain.PaymentOrder, error)
	GetPaymentOrderByLinkID(ctx context.Context, linkID string) (*domain.PaymentOrder, error)
	ListPaymentOrders(ctx context.Context, userID string, limit int) ([]domain.PaymentOrder, error)
	MarkPaymentOrderPaid(ctx context.Context, orderID, paymentID string) (bool, error)
	UpdatePaymentOrderStatus(ctx context.Context, orderID, orderStatus, paymentStatus string) error
}

// Ledger is the credit top-up surface.
type Ledger interface {
	IncreaseCredits(ctx context.Context, userID string, amount float64, description string) (*domain.LedgerTransaction, error)
}

// Config carries wiring for the payment service.
type Config struct {
	KeySecret     string
	WebhookSecret string
	FrontendURL   string
	CallbackURL   string
	LinkExpiry    time.Duration
}

// Service sells credits through hosted payment links. Payment confirmation
// arrives on two independent paths, the browser callback and the gateway
// webhook; crediting is idempotent across both.
type Service struct {
	store  OrderStore
	links  LinkCreator
	ledger Ledger
	cfg    Config
	log    *logrus.Logger
}

func NewService(store OrderStore, links LinkCreator, ledger Ledger, cfg Config, log *logrus.Logger) *Service {
	if cfg.LinkExpiry <= 0 {
		cfg.LinkExpiry = 20 * time.Minute
	}
	return &Service{store: store, links: links, ledger: ledger, cfg: cfg, log: log}
}

// CreateLink opens a payment link for the given credit purchase and records
// the pending order.
func (s *Service) CreateLink(ctx context.Context, user *domain.User, amount, credits float64) (*domain.PaymentOrder, error) {
	orderID := uuid.NewString()

	data := map[string]interface{}{
		"amount":          int64(math.Round(amount * 100)),
		"currency":        "INR",
		"accept_partial":  false,
		"reference_id":    orderID,
		"description":     fmt.Sprintf("Purchase of %g credits", credits),
		"expire_by":       time.Now().Add(s.cfg.LinkExpiry).Unix(),
		"reminder_enable": true,
		"customer": map[string]interface{}{
			"name":    strings.TrimSpace(user.FirstName + " " + user.LastName),
			"email":   user.Email,
			"contact": user.PhoneNumber,
		},
		"notify": map[string]interface{}{
			"sms":   true,
			"email": true,
		},
		"notes": map[string]interface{}{
			"user_id":           user.ID,
			"credits_purchased": fmt.Sprintf("%g", credits),
		},
		"callback_url":    s.cfg.CallbackURL,
		"callback_method": "get",
	}

	resp, err := s.links.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("create payment link: %w", err)
	}

	order := &domain.PaymentOrder{
		ID:               uuid.NewString(),
		UserID:           user.ID,
		OrderID:          orderID,
		TotalAmount:      amount,
		Currency:         "INR",
		CreditsPurchased: credits,
		OrderStatus:      domain.OrderStatusPending,
		PaymentStatus:    domain.PaymentStatusCreated,
		PaymentLinkID:    stringField(resp, "id"),
		ShortURL:         stringField(resp, "short_url"),
		ProviderResponse: resp,
	}
	if err := s.store.InsertPaymentOrder(ctx, order); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"order_id": orderID,
		"amount":   amount,
		"credits":  credits,
	}).Info("payment link created")
	return order, nil
}

// CallbackParams are the query parameters the gateway appends when
// redirecting the payer back to us.
type CallbackParams struct {
	PaymentID   string
	LinkID      string
	ReferenceID string
	LinkStatus  string
	Signature   string
}

// HandleCallback validates the browser return leg and, on a completed
// payment, credits the purchase. Crediting is idempotent with the webhook
// path; whichever lands first wins and the other becomes a no-op.
func (s *Service) HandleCallback(ctx context.Context, p CallbackParams) error {
	order, err := s.store.GetPaymentOrderByOrderID(ctx, p.ReferenceID)
	if err != nil {
		return ErrOrderNotFound
	}

	if !s.validCallbackSignature(p) {
		s.log.WithField("order_id", order.OrderID).Warn("callback signature mismatch")
		if err := s.store.UpdatePaymentOrderStatus(ctx, order.OrderID, domain.OrderStatusFailed, domain.PaymentStatusFailed); err != nil {
			s.log.WithError(err).Error("failed to mark order failed")
		}
		return ErrInvalidSignature
	}

	if p.LinkStatus != "paid" {
		orderStatus := domain.OrderStatusFailed
		if p.LinkStatus == "cancelled" {
			orderStatus = domain.OrderStatusCancelled
		}
		if err := s.store.UpdatePaymentOrderStatus(ctx, order.OrderID, orderStatus, domain.PaymentStatusFailed); err != nil {
			s.log.WithError(err).Error("failed to record payment state")
		}
		return ErrPaymentIncomplete
	}

	return s.creditPurchase(ctx, order, p.PaymentID)
}

// The callback signature covers the pipe-joined link id, reference id,
// link status and payment id, signed with the API key secret.
func (s *Service) validCallbackSignature(p CallbackParams) bool {
	payload := strings.Join([]string{p.LinkID, p.ReferenceID, p.LinkStatus, p.PaymentID}, "|")
	mac := hmac.New(sha256.New, []byte(s.cfg.KeySecret))
	mac.Write([]byte(payload))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(p.Signature))
}

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		PaymentLink struct {
			Entity struct {
				ID          string `json:"id"`
				ReferenceID string `json:"reference_id"`
				Status      string `json:"status"`
			} `json:"entity"`
		} `json:"payment_link"`
		Payment struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// HandleWebhook processes gateway notifications. Only payment_link.paid
// changes state; everything else is acknowledged and dropped.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !utils.VerifyWebhookSignature(string(body), signature, s.cfg.WebhookSecret) {
		return ErrInvalidSignature
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode webhook event: %w", err)
	}
	if event.Event != "payment_link.paid" {
		s.log.WithField("event", event.Event).Debug("ignoring webhook event")
		return nil
	}

	order, err := s.store.GetPaymentOrderByOrderID(ctx, event.Payload.PaymentLink.Entity.ReferenceID)
	if err != nil {
		order, err = s.store.GetPaymentOrderByLinkID(ctx, event.Payload.PaymentLink.Entity.ID)
	}
	if err != nil {
		return ErrOrderNotFound
	}

	return s.creditPurchase(ctx, order, event.Payload.Payment.Entity.ID)
}

func (s *Service) creditPurchase(ctx context.Context, order *domain.PaymentOrder, paymentID string) error {
	first, err := s.store.MarkPaymentOrderPaid(ctx, order.OrderID, paymentID)
	if err != nil {
		return err
	}
	if !first {
		s.log.WithField("order_id", order.OrderID).Debug("order already credited")
		return nil
	}

	description := fmt.Sprintf("Purchase of %g credits", order.CreditsPurchased)
	if _, err := s.ledger.IncreaseCredits(ctx, order.UserID, order.CreditsPurchased, description); err != nil {
		return fmt.Errorf("credit purchase: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"order_id": order.OrderID,
		"user_id":  order.UserID,
		"credits":  order.CreditsPurchased,
	}).Info("credits purchased")
	return nil
}

// Status returns one of the user's orders.
func (s *Service) Status(ctx context.Context, userID, orderID string) (*domain.PaymentOrder, error) {
	order, err := s.store.GetPaymentOrderByOrderID(ctx, orderID)
	if err != nil || order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// Orders lists the user's purchase history, newest first.
func (s *Service) Orders(ctx context.Context, userID string, limit int) ([]domain.PaymentOrder, error) {
	return s.store.ListPaymentOrders(ctx, userID, limit)
}

// SuccessRedirect is where the payer lands after a verified payment.
func (s *Service) SuccessRedirect() string {
	return s.cfg.FrontendURL + "/#/success-payment"
}

// FailureRedirect is where the payer lands when anything went wrong.
func (s *Service) FailureRedirect() string {
	return s.cfg.FrontendURL + "/#/failure-payment"
}

func stringField(m map[string]interface{}, key string) string {
	v, _ := m[key].(string)
	return v
}
