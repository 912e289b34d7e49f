package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/kycfabric/gateway/internal/domain"
	"github.com/kycfabric/gateway/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrEmailTaken         = errors.New("user with this email already exists")
	ErrUsernameTaken      = errors.New("username already registered")
	ErrInvalidOTP         = errors.New("invalid or expired otp")
	ErrInvalidClient      = errors.New("invalid client credentials")
	ErrClientDisabled     = errors.New("client is disabled")
	ErrServiceNotAllowed  = errors.New("service not enabled for client")
)

// New accounts start with a small trial balance.
const defaultCredits = 10.0

const otpTTL = 10 * time.Minute

// Store is the persistence surface the auth service needs.
type Store interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	SetUserActive(ctx context.Context, id string, active bool) error
	UpdateUserProfile(ctx context.Context, u *domain.User) error

	InsertRefreshToken(ctx context.Context, t *domain.RefreshToken) error
	GetRefreshToken(ctx context.Context, userID, token string) (*domain.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) error
	DeleteUserRefreshTokens(ctx context.Context, userID string) error

	UpsertContactOTP(ctx context.Context, c *domain.VerifiedContact) error
	GetContactByEmail(ctx context.Context, email string) (*domain.VerifiedContact, error)
	MarkContactVerified(ctx context.Context, email string) error

	InsertAPIClient(ctx context.Context, c *domain.APIClient) error
	GetAPIClientByClientID(ctx context.Context, clientID string) (*domain.APIClient, error)
	ListAPIClients(ctx context.Context, userID string) ([]domain.APIClient, error)
	SetAPIClientEnabled(ctx context.Context, clientID string, enabled bool) error
}

// Mailer delivers OTP mail. Satisfied by the SMTP mailer; faked in tests.
type Mailer interface {
	SendOTP(to, otp string) error
}

// TokenPair is the login/refresh response body.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Service implements registration, credential and session management for
// dashboard users, and credential checks for machine API clients.
type Service struct {
	store  Store
	tokens *TokenManager
	mailer Mailer
	log    *logrus.Logger
}

func NewService(store Store, tokens *TokenManager, mailer Mailer, log *logrus.Logger) *Service {
	return &Service{store: store, tokens: tokens, mailer: mailer, log: log}
}

// RegisterInput carries the signup form.
type RegisterInput struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
}

// Register creates a user account with the trial credit balance.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if _, err := s.store.GetUserByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if _, err := s.store.GetUserByUsername(ctx, in.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:             uuid.NewString(),
		Email:          in.Email,
		Username:       in.Username,
		PhoneNumber:    in.PhoneNumber,
		HashedPassword: string(hashed),
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Role:           "user",
		IsActive:       true,
		Credits:        defaultCredits,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("user registered")
	return user, nil
}

// Login checks credentials, marks the account active and opens a session.
func (s *Service) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.store.SetUserActive(ctx, user.ID, true); err != nil {
		return nil, err
	}

	access, expiresAt, err := s.tokens.NewAccessToken(user.ID)
	if err != nil {
		return nil, err
	}
	refresh, jti, refreshExpiry, err := s.tokens.NewRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertRefreshToken(ctx, &domain.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     jti,
		ExpiresAt: refreshExpiry,
	}); err != nil {
		return nil, err
	}

	s.log.WithField("user_id", user.ID).Info("user logged in")
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresAt:    expiresAt,
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The
// refresh token itself stays valid until logout or expiry.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, jti, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if _, err := s.store.GetRefreshToken(ctx, userID, jti); err != nil {
		return nil, ErrInvalidToken
	}

	access, expiresAt, err := s.tokens.NewAccessToken(userID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, TokenType: "bearer", ExpiresAt: expiresAt}, nil
}

// Logout terminates every session the user has and marks the account
// inactive until the next login.
func (s *Service) Logout(ctx context.Context, userID, refreshToken string) error {
	if _, jti, err := s.tokens.ParseRefreshToken(refreshToken); err == nil {
		if err := s.store.DeleteRefreshToken(ctx, jti); err != nil {
			return err
		}
	}
	if err := s.store.DeleteUserRefreshTokens(ctx, userID); err != nil {
		return err
	}
	if err := s.store.SetUserActive(ctx, userID, false); err != nil {
		return err
	}
	s.log.WithField("user_id", userID).Info("user logged out")
	return nil
}

// Authenticate resolves an access token to its user.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*domain.User, error) {
	userID, err := s.tokens.ParseAccessToken(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateProfileInput carries partial profile edits; nil fields are left
// untouched.
type UpdateProfileInput struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	PhoneNumber *string `json:"phone_number"`
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*domain.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.FirstName != nil {
		user.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		user.LastName = *in.LastName
	}
	if in.PhoneNumber != nil {
		user.PhoneNumber = *in.PhoneNumber
	}
	if err := s.store.UpdateUserProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// RequestOTP issues a fresh one-time code to the contact and emails it.
func (s *Service) RequestOTP(ctx context.Context, email, phoneNumber string) error {
	otp, err := generateOTP()
	if err != nil {
		return err
	}
	contact := &domain.VerifiedContact{
		ID:           uuid.NewString(),
		Email:        email,
		PhoneNumber:  phoneNumber,
		OTP:          otp,
		OTPExpiresAt: time.Now().Add(otpTTL),
	}
	if err := s.store.UpsertContactOTP(ctx, contact); err != nil {
		return err
	}
	if err := s.mailer.SendOTP(email, otp); err != nil {
		return fmt.Errorf("send otp mail: %w", err)
	}
	s.log.WithField("email", email).Info("otp issued")
	return nil
}

// VerifyOTP confirms the emailed code and marks the contact verified.
func (s *Service) VerifyOTP(ctx context.Context, email, otp string) error {
	contact, err := s.store.GetContactByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidOTP
	}
	if err != nil {
		return err
	}
	if contact.OTP == "" || contact.OTP != otp || time.Now().After(contact.OTPExpiresAt) {
		return ErrInvalidOTP
	}
	return s.store.MarkContactVerified(ctx, email)
}

// CreateAPIClient mints a machine credential for the user. The plaintext
// secret is returned exactly once; only its hash is stored.
func (s *Service) CreateAPIClient(ctx context.Context, userID string, enabledAPIs []string) (*domain.APIClient, string, error) {
	clientID, err := randomHex(16)
	if err != nil {
		return nil, "", err
	}
	secret, err := randomHex(32)
	if err != nil {
		return nil, "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash client secret: %w", err)
	}

	client := &domain.APIClient{
		ID:           uuid.NewString(),
		UserID:       userID,
		ClientID:     clientID,
		HashedSecret: string(hashed),
		IsEnabled:    true,
		EnabledAPIs:  enabledAPIs,
	}
	if client.EnabledAPIs == nil {
		client.EnabledAPIs = []string{}
	}
	if err := s.store.InsertAPIClient(ctx, client); err != nil {
		return nil, "", err
	}

	s.log.WithFields(logrus.Fields{"user_id": userID, "client_id": clientID}).Info("api client created")
	return client, secret, nil
}

func (s *Service) ListAPIClients(ctx context.Context, userID string) ([]domain.APIClient, error) {
	return s.store.ListAPIClients(ctx, userID)
}

func (s *Service) SetAPIClientEnabled(ctx context.Context, clientID string, enabled bool) error {
	return s.store.SetAPIClientEnabled(ctx, clientID, enabled)
}

// AuthenticateAPIClient resolves Basic credentials from the machine surface
// to the owning user, enforcing the enabled flag and per-service allowlist.
// The owner's dashboard session state is deliberately ignored here; login
// and logout must not interrupt server-to-server traffic.
func (s *Service) AuthenticateAPIClient(ctx context.Context, clientID, secret, apiName string) (*domain.APIClient, *domain.User, error) {
	client, err := s.store.GetAPIClientByClientID(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrInvalidClient
	}
	if err != nil {
		return nil, nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(client.HashedSecret), []byte(secret)) != nil {
		return nil, nil, ErrInvalidClient
	}
	if !client.IsEnabled {
		return nil, nil, ErrClientDisabled
	}
	if len(client.EnabledAPIs) > 0 && !contains(client.EnabledAPIs, apiName) {
		return nil, nil, ErrServiceNotAllowed
	}

	user, err := s.store.GetUserByID(ctx, client.UserID)
	if err != nil {
		return nil, nil, err
	}
	return client, user, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
