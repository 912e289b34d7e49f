package main

import (
	"net/http"

	gorillahandlers "github.com/gorilla/handlers"
	razorpay "github.com/razorpay/razorpay-go"

	"github.com/kycfabric/gateway/internal/api"
	"github.com/kycfabric/gateway/internal/auth"
	"github.com/kycfabric/gateway/internal/config"
	"github.com/kycfabric/gateway/internal/ledger"
	"github.com/kycfabric/gateway/internal/logger"
	"github.com/kycfabric/gateway/internal/mailer"
	"github.com/kycfabric/gateway/internal/payment"
	"github.com/kycfabric/gateway/internal/provider"
	"github.com/kycfabric/gateway/internal/scraper"
	"github.com/kycfabric/gateway/internal/store"
	"github.com/kycfabric/gateway/internal/verify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet; nothing to do but die loudly.
		panic(err)
	}
	log := logger.New(cfg.Env)

	db, err := store.NewStore(cfg.DBSource)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()

	ledgerSvc := ledger.NewService(db.Db, cfg.Pricing, log)

	providerClient, err := provider.NewClient(provider.ClientConfig{
		APIKey:     cfg.RapidAPIKey,
		Timeout:    cfg.ProviderTimeout,
		RetryDelay: cfg.ProviderRetryDelay,
		Logger:     log,
	})
	if err != nil {
		log.WithError(err).Fatal("provider client setup failed")
	}
	gstinScraper := scraper.NewGSTIN(cfg.Endpoints.GSTINBaseURL, cfg.ProviderTimeout, log)

	registry := verify.NewRegistry(providerClient, gstinScraper, cfg.Endpoints)
	verifier := verify.NewService(db, ledgerSvc, log)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	otpMailer := mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom, log)
	authSvc := auth.NewService(db, tokens, otpMailer, log)

	razorpayClient := razorpay.NewClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	paymentSvc := payment.NewService(db, razorpayClient.PaymentLink, ledgerSvc, payment.Config{
		KeySecret:     cfg.RazorpayKeySecret,
		WebhookSecret: cfg.RazorpayWebhookSecret,
		FrontendURL:   cfg.FrontendBaseURL,
		CallbackURL:   cfg.CallbackBaseURL + "/dashboard/api/v1/payment/callback",
		LinkExpiry:    cfg.PaymentLinkExpiry,
	}, log)

	handler := api.NewHandler(verifier, authSvc, ledgerSvc, paymentSvc, registry, log)
	router := api.NewRouter(handler)

	cors := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins([]string{cfg.FrontendBaseURL}),
		gorillahandlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	log.WithField("port", cfg.Port).Info("starting verification gateway")
	if err := http.ListenAndServe(":"+cfg.Port, cors(router)); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
