package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kycfabric/gateway/internal/domain"
)

// NewRouter builds the full route table. Two verification surfaces share
// the same handlers: the dashboard surface authenticates users with bearer
// tokens, the machine surface authenticates API clients with Basic
// credentials tied to a service allowlist.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(h.loggingMiddleware)

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	authRouter := r.PathPrefix("/auth").Subrouter()
	authRouter.Use(metricsMiddleware)
	authRouter.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	authRouter.HandleFunc("/refresh", h.Refresh).Methods(http.MethodPost)
	authRouter.HandleFunc("/request-otp", h.RequestOTP).Methods(http.MethodPost)
	authRouter.HandleFunc("/verify-otp", h.VerifyOTP).Methods(http.MethodPost)
	authRouter.HandleFunc("/logout", h.requireUser(h.Logout)).Methods(http.MethodPost)
	authRouter.HandleFunc("/me", h.requireUser(h.Me)).Methods(http.MethodGet)
	authRouter.HandleFunc("/me", h.requireUser(h.UpdateMe)).Methods(http.MethodPut)

	dash := r.PathPrefix("/dashboard/api/v1").Subrouter()
	dash.Use(metricsMiddleware)
	dash.HandleFunc("/pan/verify", h.requireUser(h.VerifyPAN)).Methods(http.MethodPost)
	dash.HandleFunc("/rc/verify", h.requireUser(h.VerifyRC)).Methods(http.MethodPost)
	dash.HandleFunc("/voter/verify", h.requireUser(h.VerifyVoter)).Methods(http.MethodPost)
	dash.HandleFunc("/dl/verify", h.requireUser(h.VerifyDL)).Methods(http.MethodPost)
	dash.HandleFunc("/passport/verify", h.requireUser(h.VerifyPassport)).Methods(http.MethodPost)
	dash.HandleFunc("/aadhaar/verify", h.requireUser(h.VerifyAadhaar)).Methods(http.MethodPost)
	dash.HandleFunc("/mobile-lookup/verify", h.requireUser(h.VerifyMobile)).Methods(http.MethodPost)
	dash.HandleFunc("/email-lookup/verify", h.requireUser(h.VerifyEmail)).Methods(http.MethodPost)
	dash.HandleFunc("/employment-latest/verify", h.requireUser(h.VerifyEmploymentLatest)).Methods(http.MethodPost)
	dash.HandleFunc("/employment-history/verify", h.requireUser(h.VerifyEmploymentHistory)).Methods(http.MethodPost)
	dash.HandleFunc("/gstin/verify", h.requireUser(h.VerifyGSTIN)).Methods(http.MethodPost)

	dash.HandleFunc("/ledger/balance", h.requireUser(h.GetBalance)).Methods(http.MethodGet)
	dash.HandleFunc("/ledger/transactions", h.requireUser(h.GetTransactions)).Methods(http.MethodGet)
	dash.HandleFunc("/stats/summary", h.requireUser(h.GetUsageSummary)).Methods(http.MethodGet)
	dash.HandleFunc("/stats/credits", h.requireUser(h.GetBalance)).Methods(http.MethodGet)
	dash.HandleFunc("/stats/weekly/{service}", h.requireUser(h.GetWeeklyStats)).Methods(http.MethodGet)

	dash.HandleFunc("/payment/create-link", h.requireUser(h.CreatePaymentLink)).Methods(http.MethodPost)
	dash.HandleFunc("/payment/orders", h.requireUser(h.ListPaymentOrders)).Methods(http.MethodGet)
	dash.HandleFunc("/payment/status/{order_id}", h.requireUser(h.PaymentStatus)).Methods(http.MethodGet)
	// The gateway calls these two; they carry their own signatures instead
	// of session auth.
	dash.HandleFunc("/payment/callback", h.PaymentCallback).Methods(http.MethodGet)
	dash.HandleFunc("/payment/webhook", h.PaymentWebhook).Methods(http.MethodPost)

	dash.HandleFunc("/clients", h.requireAdmin(h.CreateAPIClient)).Methods(http.MethodPost)
	dash.HandleFunc("/clients", h.requireAdmin(h.ListAPIClients)).Methods(http.MethodGet)
	dash.HandleFunc("/clients/{client_id}", h.requireAdmin(h.UpdateAPIClient)).Methods(http.MethodPatch)

	machine := r.PathPrefix("/api/v1").Subrouter()
	machine.Use(metricsMiddleware)
	machine.HandleFunc("/pan/verify", h.requireClient(domain.ServicePAN, h.VerifyPAN)).Methods(http.MethodPost)
	machine.HandleFunc("/rc/verify", h.requireClient(domain.ServiceRC, h.VerifyRC)).Methods(http.MethodPost)
	machine.HandleFunc("/voter/verify", h.requireClient(domain.ServiceVoter, h.VerifyVoter)).Methods(http.MethodPost)
	machine.HandleFunc("/dl/verify", h.requireClient(domain.ServiceDL, h.VerifyDL)).Methods(http.MethodPost)
	machine.HandleFunc("/passport/verify", h.requireClient(domain.ServicePassport, h.VerifyPassport)).Methods(http.MethodPost)
	machine.HandleFunc("/aadhaar/verify", h.requireClient(domain.ServiceAadhaar, h.VerifyAadhaar)).Methods(http.MethodPost)
	machine.HandleFunc("/mobile-lookup/verify", h.requireClient(domain.ServiceMobileLookup, h.VerifyMobile)).Methods(http.MethodPost)
	machine.HandleFunc("/email-lookup/verify", h.requireClient(domain.ServiceEmailLookup, h.VerifyEmail)).Methods(http.MethodPost)
	machine.HandleFunc("/employment-latest/verify", h.requireClient(domain.ServiceEmploymentLatest, h.VerifyEmploymentLatest)).Methods(http.MethodPost)
	machine.HandleFunc("/employment-history/verify", h.requireClient(domain.ServiceEmploymentHistory, h.VerifyEmploymentHistory)).Methods(http.MethodPost)
	machine.HandleFunc("/gstin/verify", h.requireClient(domain.ServiceGSTIN, h.VerifyGSTIN)).Methods(http.MethodPost)

	return r
}
