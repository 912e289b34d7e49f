package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/kycfabric/gateway/internal/domain"
)

// ProviderEndpoints holds the upstream URL for each verification service.
// Host is the optional x-rapidapi-host header value for that endpoint.
type ProviderEndpoints struct {
	PANURL               string
	PANHost              string
	RCURL                string
	VoterURL             string
	DLURL                string
	PassportURL          string
	AadhaarURL           string
	MobileLookupURL      string
	EmailLookupURL       string
	EmploymentLatestURL  string
	EmploymentHistoryURL string
	GSTINBaseURL         string
}

type Config struct {
	DBSource string
	Port     string
	Env      string

	JWTSecret        string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration

	RapidAPIKey        string
	Endpoints          ProviderEndpoints
	ProviderTimeout    time.Duration
	ProviderRetryDelay time.Duration

	// Pricing maps service tags to per-call credit costs.
	Pricing map[string]float64

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	FrontendBaseURL       string
	CallbackBaseURL       string
	PaymentLinkExpiry     time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
}

func Load() (*Config, error) {
	// Missing .env is fine; containers inject the environment directly.
	_ = godotenv.Load()

	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	refreshSecret := os.Getenv("JWT_REFRESH_SECRET")
	if refreshSecret == "" {
		return nil, fmt.Errorf("JWT_REFRESH_SECRET environment variable is required")
	}

	return &Config{
		DBSource: dbSource,
		Port:     getEnv("SERVER_PORT", "8080"),
		Env:      getEnv("ENVIRONMENT", "development"),

		JWTSecret:        jwtSecret,
		JWTRefreshSecret: refreshSecret,
		AccessTokenTTL:   getEnvDuration("ACCESS_TOKEN_TTL", 30*time.Minute),
		RefreshTokenTTL:  getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		RapidAPIKey: os.Getenv("RAPIDAPI_KEY"),
		Endpoints: ProviderEndpoints{
			PANURL:               os.Getenv("PAN_VERIFICATION_URL"),
			PANHost:              os.Getenv("PAN_VERIFICATION_HOST"),
			RCURL:                os.Getenv("RC_VERIFICATION_URL"),
			VoterURL:             os.Getenv("VOTER_VERIFICATION_URL"),
			DLURL:                os.Getenv("DL_VERIFICATION_URL"),
			PassportURL:          os.Getenv("PASSPORT_VERIFICATION_URL"),
			AadhaarURL:           os.Getenv("AADHAAR_VERIFICATION_URL"),
			MobileLookupURL:      os.Getenv("MOBILE_LOOKUP_URL"),
			EmailLookupURL:       os.Getenv("EMAIL_LOOKUP_URL"),
			EmploymentLatestURL:  os.Getenv("EMPLOYMENT_LATEST_URL"),
			EmploymentHistoryURL: os.Getenv("EMPLOYMENT_HISTORY_URL"),
			GSTINBaseURL:         os.Getenv("GSTIN_PORTAL_BASE_URL"),
		},
		ProviderTimeout:    getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),
		ProviderRetryDelay: getEnvDuration("PROVIDER_RETRY_DELAY", 2*time.Second),

		Pricing: loadPricing(),

		RazorpayKeyID:         os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
		FrontendBaseURL:       getEnv("FRONTEND_BASE_URL", "http://localhost:5173"),
		CallbackBaseURL:       getEnv("CALLBACK_BASE_URL", "http://localhost:8080"),
		PaymentLinkExpiry:     getEnvDuration("PAYMENT_LINK_EXPIRY", 20*time.Minute),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     getEnv("SMTP_FROM", os.Getenv("SMTP_USER")),
	}, nil
}

// loadPricing reads the per-service cost table. Services absent from the
// returned map are treated as free by Price.
func loadPricing() map[string]float64 {
	return map[string]float64{
		domain.ServicePAN:               getEnvFloat("KYC_PAN_COST", 2.0),
		domain.ServiceRC:                getEnvFloat("KYC_RC_COST", 2.5),
		domain.ServiceVoter:             getEnvFloat("KYC_VOTER_COST", 2.0),
		domain.ServiceDL:                getEnvFloat("KYC_DL_COST", 2.5),
		domain.ServicePassport:          getEnvFloat("KYC_PASSPORT_COST", 2.5),
		domain.ServiceAadhaar:           getEnvFloat("KYC_AADHAAR_COST", 2.0),
		domain.ServiceMobileLookup:      getEnvFloat("KYC_MOBILE_LOOKUP_COST", 3.0),
		domain.ServiceEmailLookup:       getEnvFloat("KYC_EMAIL_LOOKUP_COST", 3.0),
		domain.ServiceEmploymentLatest:  getEnvFloat("EV_EMPLOYMENT_LATEST_COST", 4.0),
		domain.ServiceEmploymentHistory: getEnvFloat("EV_EMPLOYMENT_HISTORY_COST", 5.0),
		domain.ServiceGSTIN:             getEnvFloat("KYB_GSTIN_COST", 3.0),
	}
}

// Price returns the credit cost for a service tag, 0 when unknown.
func (c *Config) Price(service string) float64 {
	return c.Pricing[service]
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
