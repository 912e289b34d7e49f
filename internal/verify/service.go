package verify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/kycfabric/gateway/internal/domain"
	"github.com/kycfabric/gateway/internal/provider"
)

var (
	verificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kyc_verifications_total",
			Help: "Total verification attempts by service, outcome and cache source.",
		},
		[]string{"api_name", "status", "cached"},
	)
	providerTAT = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kyc_provider_tat_seconds",
			Help:    "Wall-clock turnaround of upstream provider calls.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"api_name"},
	)
)

// ErrInsufficientCredits is returned before any record is written when the
// user cannot afford the requested service.
var ErrInsufficientCredits = errors.New("insufficient credits")

// TransactionStore is the audit log the pipeline writes to.
type TransactionStore interface {
	InsertVerification(ctx context.Context, t *domain.VerificationTransaction) error
	UpdateVerification(ctx context.Context, t *domain.VerificationTransaction) error
	// FindCachedVerification returns (nil, nil) on a cache miss.
	FindCachedVerification(ctx context.Context, f domain.TransactionFilter) (*domain.VerificationTransaction, error)
}

// Ledger is the billing surface the pipeline charges against.
type Ledger interface {
	CheckEligible(ctx context.Context, userID, service string) (bool, error)
	DeductCredits(ctx context.Context, userID, service, description string) (*domain.LedgerTransaction, error)
}

// CallFunc performs the upstream lookup for one document type.
type CallFunc func(ctx context.Context, fields map[string]string) (*provider.Result, error)

// Definition describes one document type completely: its identifier fields,
// how to reach the upstream source, how to read the reply, and which
// outcomes are billable. The pipeline itself is identical for every type.
type Definition struct {
	APIName string

	// Fields lists the accepted identifier fields in canonical order.
	Fields []string

	// IdentifierPriority orders fields for audit identifiers; the first
	// non-empty one wins. Defaults to Fields.
	IdentifierPriority []string

	// MatchAny makes the cache lookup accept a match on any single
	// provided field instead of requiring all of them.
	MatchAny bool

	// Billable lists the terminal statuses that consume credits. The same
	// set gates which past transactions are servable from cache.
	Billable []domain.Status

	Classify ClassifyFunc
	Call     CallFunc

	// PostProcess optionally enriches the provider response before it is
	// stored and returned, e.g. derived confidence scores.
	PostProcess func(httpStatus int, body map[string]any)
}

// Identifier picks the audit identifier from the request fields.
func (d Definition) Identifier(fields map[string]string) string {
	priority := d.IdentifierPriority
	if len(priority) == 0 {
		priority = d.Fields
	}
	for _, name := range priority {
		if v := fields[name]; v != "" {
			return v
		}
	}
	return ""
}

func (d Definition) billable(status domain.Status) bool {
	for _, s := range d.Billable {
		if s == status {
			return true
		}
	}
	return false
}

// Outcome is what a completed pipeline run hands back to the transport
// layer. HTTPStatus is the classified upstream status, echoed to the caller.
type Outcome struct {
	Payload    map[string]any
	HTTPStatus int
	Status     domain.Status
	Message    string
	IsCached   bool
	TAT        float64
}

// Service runs the verification pipeline shared by every document type:
// eligibility gate, placeholder audit record, cache lookup, provider call,
// classification, exactly one record update, then billing.
type Service struct {
	store  TransactionStore
	ledger Ledger
	log    *logrus.Logger
}

func NewService(store TransactionStore, ledger Ledger, log *logrus.Logger) *Service {
	return &Service{store: store, ledger: ledger, log: log}
}

// Verify executes one verification attempt end to end. Cache hits bill
// exactly like live calls; serving from our own store is still a lookup
// the caller pays for.
func (s *Service) Verify(ctx context.Context, def Definition, userID string, fields map[string]string) (*Outcome, error) {
	identifier := def.Identifier(fields)
	logger := s.log.WithFields(logrus.Fields{
		"api_name":   def.APIName,
		"user_id":    userID,
		"identifier": identifier,
	})

	// 1. Eligibility gate before any record exists.
	eligible, err := s.ledger.CheckEligible(ctx, userID, def.APIName)
	if err != nil {
		return nil, fmt.Errorf("eligibility check failed: %w", err)
	}
	if !eligible {
		logger.Warn("verification refused, insufficient credits")
		return nil, ErrInsufficientCredits
	}

	// 2. Placeholder record, so an unhandled failure still leaves an
	// ERROR row behind for the audit trail.
	txn := &domain.VerificationTransaction{
		ID:             uuid.NewString(),
		UserID:         userID,
		APIName:        def.APIName,
		ProviderName:   domain.ProviderInternal,
		Status:         domain.StatusError,
		HTTPStatusCode: http.StatusInternalServerError,
	}
	if err := s.store.InsertVerification(ctx, txn); err != nil {
		return nil, fmt.Errorf("placeholder insert failed: %w", err)
	}

	start := time.Now()

	// 3. Cache lookup across prior billable outcomes. A failing lookup is
	// logged and treated as a miss; the provider is the fallback.
	cached, err := s.lookupCache(ctx, def, fields)
	if err != nil {
		logger.WithError(err).Error("cache lookup failed, falling back to provider")
		cached = nil
	}

	if cached != nil {
		// 4a. Replay the cached result. TAT becomes the time the lookup
		// itself took; the stored response is returned verbatim.
		txn.ProviderName = domain.ProviderInternal
		txn.TransactionDetails = cached.TransactionDetails
		txn.ProviderRequest = cached.ProviderRequest
		txn.ProviderResponse = cached.ProviderResponse
		txn.Status = cached.Status
		txn.HTTPStatusCode = cached.HTTPStatusCode
		txn.Message = cached.Message
		txn.IsCached = true
		txn.TAT = time.Since(start).Seconds()

		logger.WithField("source_txn", cached.ID).Info("served from cache")
	} else {
		// 4b. Live provider call.
		res, err := def.Call(ctx, fields)
		if err != nil {
			return nil, fmt.Errorf("%s provider call failed: %w", def.APIName, err)
		}
		providerTAT.WithLabelValues(def.APIName).Observe(res.TAT)

		status := def.Classify(res.StatusCode, providerStatusCode(res.Body))
		if def.PostProcess != nil {
			def.PostProcess(res.StatusCode, res.Body)
		}

		txn.ProviderName = domain.ProviderExternal
		txn.TransactionDetails = details(def, fields)
		txn.ProviderRequest = res.Request
		txn.ProviderResponse = res.Body
		txn.Status = status
		txn.HTTPStatusCode = res.StatusCode
		txn.Message = messageFrom(res.Body)
		txn.IsCached = false
		txn.TAT = res.TAT

		logger.WithFields(logrus.Fields{
			"status":      status,
			"http_status": res.StatusCode,
			"tat":         res.TAT,
		}).Info("provider call completed")
	}

	// 5. Exactly one update of the placeholder.
	if err := s.store.UpdateVerification(ctx, txn); err != nil {
		return nil, fmt.Errorf("transaction update failed: %w", err)
	}

	verificationsTotal.WithLabelValues(def.APIName, string(txn.Status), strconv.FormatBool(txn.IsCached)).Inc()

	// 6. Billing, cache hits included.
	if def.billable(txn.Status) {
		description := fmt.Sprintf("%s|%s", txn.Status, identifier)
		if _, err := s.ledger.DeductCredits(ctx, userID, def.APIName, description); err != nil {
			return nil, fmt.Errorf("credit deduction failed: %w", err)
		}
	}

	return &Outcome{
		Payload:    txn.ProviderResponse,
		HTTPStatus: txn.HTTPStatusCode,
		Status:     txn.Status,
		Message:    txn.Message,
		IsCached:   txn.IsCached,
		TAT:        txn.TAT,
	}, nil
}

func (s *Service) lookupCache(ctx context.Context, def Definition, fields map[string]string) (*domain.VerificationTransaction, error) {
	var filters []domain.FilterField
	for _, name := range def.Fields {
		if v := fields[name]; v != "" {
			filters = append(filters, domain.FilterField{Name: name, Value: v})
		}
	}
	if len(filters) == 0 {
		return nil, nil
	}
	return s.store.FindCachedVerification(ctx, domain.TransactionFilter{
		APIName:  def.APIName,
		Fields:   filters,
		MatchAny: def.MatchAny,
		Statuses: def.Billable,
	})
}

// details records every declared field of the request, empty ones included,
// so cache lookups can match on any of them later.
func details(def Definition, fields map[string]string) map[string]any {
	d := make(map[string]any, len(def.Fields))
	for _, name := range def.Fields {
		d[name] = fields[name]
	}
	return d
}

// providerStatusCode reads the provider's own status_code field, tolerating
// both JSON numbers and absent values.
func providerStatusCode(body map[string]any) int {
	switch v := body["status_code"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

const defaultMessage = "No message provided"

func messageFrom(body map[string]any) string {
	if m, ok := body["message"].(string); ok && m != "" {
		return m
	}
	return defaultMessage
}
