package domain

import "time"

// Status is the terminal classification of a verification attempt.
type Status string

const (
	StatusFound           Status = "FOUND"
	StatusNotFound        Status = "NOT_FOUND"
	StatusBadRequest      Status = "BAD_REQUEST"
	StatusTooManyRequests Status = "TOO_MANY_REQUESTS"
	StatusSourceDown      Status = "SOURCE_DOWN"
	StatusPartialContent  Status = "PARTIAL_CONTENT"
	StatusError           Status = "ERROR"
)

// Provider tells whether a result came from the upstream source or our own cache.
type Provider string

const (
	ProviderExternal Provider = "EXTERNAL"
	ProviderInternal Provider = "INTERNAL"
)

// Service tags double as ledger transaction types and price table keys.
const (
	ServicePAN               = "KYC_PAN"
	ServiceRC                = "KYC_RC"
	ServiceVoter             = "KYC_VOTER"
	ServiceDL                = "KYC_DL"
	ServicePassport          = "KYC_PASSPORT"
	ServiceAadhaar           = "KYC_AADHAAR"
	ServiceMobileLookup      = "KYC_MOBILE_LOOKUP"
	ServiceEmailLookup       = "KYC_EMAIL_LOOKUP"
	ServiceEmploymentLatest  = "EV_EMPLOYMENT_LATEST"
	ServiceEmploymentHistory = "EV_EMPLOYMENT_HISTORY"
	ServiceGSTIN             = "KYB_GSTIN"

	// LedgerTypeCredit marks credit purchases and top-ups.
	LedgerTypeCredit = "CREDIT"
)

// User is a dashboard account able to spend credits on verifications.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	PhoneNumber    string    `json:"phone_number"`
	HashedPassword string    `json:"-"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Role           string    `json:"role"`
	IsActive       bool      `json:"is_active"`
	Credits        float64   `json:"credits"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// VerificationTransaction is the audit record written for every verification
// attempt, created as an ERROR placeholder and updated exactly once.
type VerificationTransaction struct {
	ID                 string         `json:"id"`
	UserID             string         `json:"user_id"`
	APIName            string         `json:"api_name"`
	ProviderName       Provider       `json:"provider_name"`
	TransactionDetails map[string]any `json:"transaction_details"`
	ProviderRequest    map[string]any `json:"provider_request"`
	ProviderResponse   map[string]any `json:"provider_response"`
	Status             Status         `json:"status"`
	HTTPStatusCode     int            `json:"http_status_code"`
	Message            string         `json:"message"`
	IsCached           bool           `json:"is_cached"`
	TAT                float64        `json:"tat"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// LedgerTransaction is one movement on a user's credit balance.
// Balance carries the post-transaction balance for audit replay.
type LedgerTransaction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Type        string    `json:"type"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	Balance     float64   `json:"balance"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RefreshToken is a server-side session record; Token stores the jti
// embedded in the signed refresh JWT, not the JWT itself.
type RefreshToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// VerifiedContact tracks OTP verification state for an email/phone pair.
type VerifiedContact struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PhoneNumber  string    `json:"phone_number"`
	OTP          string    `json:"-"`
	OTPExpiresAt time.Time `json:"-"`
	IsVerified   bool      `json:"is_verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PaymentOrder tracks one hosted payment link through its lifecycle.
// OrderID is our reference passed to the gateway; PaymentLinkID is theirs.
type PaymentOrder struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	OrderID          string         `json:"order_id"`
	TotalAmount      float64        `json:"total_amount"`
	Currency         string         `json:"currency"`
	CreditsPurchased float64        `json:"credits_purchased"`
	OrderStatus      string         `json:"order_status"`
	PaymentStatus    string         `json:"payment_status"`
	PaymentID        string         `json:"payment_id"`
	PaymentLinkID    string         `json:"payment_link_id"`
	ShortURL         string         `json:"short_url"`
	ProviderResponse map[string]any `json:"-"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Payment order lifecycle states.
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusFailed    = "failed"
	OrderStatusCancelled = "cancelled"

	PaymentStatusPending  = "pending"
	PaymentStatusCreated  = "created"
	PaymentStatusCaptured = "captured"
	PaymentStatusFailed   = "failed"
)

// APIClient is a machine credential for the server-to-server surface.
// An empty EnabledAPIs list places no restriction on reachable services.
type APIClient struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ClientID     string    `json:"client_id"`
	HashedSecret string    `json:"-"`
	IsEnabled    bool      `json:"is_enabled"`
	EnabledAPIs  []string  `json:"enabled_apis"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FilterField is one identifier equality constraint in a cache lookup.
type FilterField struct {
	Name  string
	Value string
}

// TransactionFilter selects prior successful verifications usable as cache.
// Fields combine with AND unless MatchAny is set (multi-identifier types).
type TransactionFilter struct {
	APIName  string
	Fields   []FilterField
	MatchAny bool
	Statuses []Status
}
