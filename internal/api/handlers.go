package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/kycfabric/gateway/internal/auth"
	"github.com/kycfabric/gateway/internal/domain"
	"github.com/kycfabric/gateway/internal/ledger"
	"github.com/kycfabric/gateway/internal/payment"
	"github.com/kycfabric/gateway/internal/verify"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kyc_http_requests_total",
			Help: "Total number of HTTP requests by method, endpoint and status.",
		},
		[]string{"method", "endpoint", "status"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kyc_http_request_duration_seconds",
			Help:    "HTTP request latency by method and endpoint.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// VerifyService runs the verification pipeline.
type VerifyService interface {
	Verify(ctx context.Context, def verify.Definition, userID string, fields map[string]string) (*verify.Outcome, error)
}

// AuthService covers user accounts, sessions and machine credentials.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Logout(ctx context.Context, userID, refreshToken string) error
	Authenticate(ctx context.Context, accessToken string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, in auth.UpdateProfileInput) (*domain.User, error)
	RequestOTP(ctx context.Context, email, phoneNumber string) error
	VerifyOTP(ctx context.Context, email, otp string) error
	CreateAPIClient(ctx context.Context, userID string, enabledAPIs []string) (*domain.APIClient, string, error)
	ListAPIClients(ctx context.Context, userID string) ([]domain.APIClient, error)
	SetAPIClientEnabled(ctx context.Context, clientID string, enabled bool) error
	AuthenticateAPIClient(ctx context.Context, clientID, secret, apiName string) (*domain.APIClient, *domain.User, error)
}

// LedgerService exposes balances and usage reporting.
type LedgerService interface {
	Balance(ctx context.Context, userID string) (float64, error)
	History(ctx context.Context, userID string, limit int) ([]domain.LedgerTransaction, error)
	ServiceUsageCounts(ctx context.Context, userID string) (map[string]int, error)
	WeeklyServiceStats(ctx context.Context, userID, service string) ([]ledger.DailyStat, error)
}

// PaymentService sells credits through hosted payment links.
type PaymentService interface {
	CreateLink(ctx context.Context, user *domain.User, amount, credits float64) (*domain.PaymentOrder, error)
	HandleCallback(ctx context.Context, p payment.CallbackParams) error
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	Status(ctx context.Context, userID, orderID string) (*domain.PaymentOrder, error)
	Orders(ctx context.Context, userID string, limit int) ([]domain.PaymentOrder, error)
	SuccessRedirect() string
	FailureRedirect() string
}

type Handler struct {
	verifier VerifyService
	auth     AuthService
	ledger   LedgerService
	payments PaymentService
	registry *verify.Registry
	log      *logrus.Logger
}

func NewHandler(verifier VerifyService, authSvc AuthService, ledgerSvc LedgerService,
	payments PaymentService, registry *verify.Registry, log *logrus.Logger) *Handler {
	return &Handler{
		verifier: verifier,
		auth:     authSvc,
		ledger:   ledgerSvc,
		payments: payments,
		registry: registry,
		log:      log,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// Verification endpoints answer in a fixed envelope mirroring the
// classified upstream status.
func respondSuccess(w http.ResponseWriter, code int, result any) {
	respondWithJSON(w, code, map[string]any{
		"http_status_code": code,
		"message":          "Success",
		"result":           result,
	})
}

func respondFailure(w http.ResponseWriter, code int, errMsg string) {
	respondWithJSON(w, code, map[string]any{
		"http_status_code": code,
		"message":          "Failure",
		"error":            errMsg,
	})
}
