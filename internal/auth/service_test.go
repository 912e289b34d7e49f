package auth

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/kycfabric/gateway/internal/domain"
	"github.com/kycfabric/gateway/internal/store"
)

// memStore keeps the auth service's persistence surface in maps, honoring
// the same sentinel errors the SQL store returns.
type memStore struct {
	users    map[string]*domain.User
	tokens   map[string]*domain.RefreshToken
	contacts map[string]*domain.VerifiedContact
	clients  map[string]*domain.APIClient
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]*domain.User{},
		tokens:   map[string]*domain.RefreshToken{},
		contacts: map[string]*domain.VerifiedContact{},
		clients:  map[string]*domain.APIClient{},
	}
}

func (m *memStore) CreateUser(_ context.Context, u *domain.User) error {
	for _, existing := range m.users {
		if existing.Email == u.Email || existing.Username == u.Username {
			return store.ErrDuplicate
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) SetUserActive(_ context.Context, id string, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.IsActive = active
	return nil
}

func (m *memStore) UpdateUserProfile(_ context.Context, u *domain.User) error {
	existing, ok := m.users[u.ID]
	if !ok {
		return store.ErrNotFound
	}
	existing.FirstName = u.FirstName
	existing.LastName = u.LastName
	existing.PhoneNumber = u.PhoneNumber
	return nil
}

func (m *memStore) InsertRefreshToken(_ context.Context, t *domain.RefreshToken) error {
	cp := *t
	m.tokens[t.Token] = &cp
	return nil
}

func (m *memStore) GetRefreshToken(_ context.Context, userID, token string) (*domain.RefreshToken, error) {
	t, ok := m.tokens[token]
	if !ok || t.UserID != userID || time.Now().After(t.ExpiresAt) {
		return nil, store.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) DeleteRefreshToken(_ context.Context, token string) error {
	delete(m.tokens, token)
	return nil
}

func (m *memStore) DeleteUserRefreshTokens(_ context.Context, userID string) error {
	for k, t := range m.tokens {
		if t.UserID == userID {
			delete(m.tokens, k)
		}
	}
	return nil
}

func (m *memStore) UpsertContactOTP(_ context.Context, c *domain.VerifiedContact) error {
	cp := *c
	cp.IsVerified = false
	m.contacts[c.Email] = &cp
	return nil
}

func (m *memStore) GetContactByEmail(_ context.Context, email string) (*domain.VerifiedContact, error) {
	c, ok := m.contacts[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) MarkContactVerified(_ context.Context, email string) error {
	c, ok := m.contacts[email]
	if !ok {
		return store.ErrNotFound
	}
	c.IsVerified = true
	c.OTP = ""
	return nil
}

func (m *memStore) InsertAPIClient(_ context.Context, c *domain.APIClient) error {
	cp := *c
	m.clients[c.ClientID] = &cp
	return nil
}

func (m *memStore) GetAPIClientByClientID(_ context.Context, clientID string) (*domain.APIClient, error) {
	c, ok := m.clients[clientID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) ListAPIClients(_ context.Context, userID string) ([]domain.APIClient, error) {
	out := []domain.APIClient{}
	for _, c := range m.clients {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStore) SetAPIClientEnabled(_ context.Context, clientID string, enabled bool) error {
	c, ok := m.clients[clientID]
	if !ok {
		return store.ErrNotFound
	}
	c.IsEnabled = enabled
	return nil
}

type fakeMailer struct {
	to  string
	otp string
	err error
}

func (f *fakeMailer) SendOTP(to, otp string) error {
	f.to = to
	f.otp = otp
	return f.err
}

func newTestService(t *testing.T) (*Service, *memStore, *fakeMailer) {
	t.Helper()
	st := newMemStore()
	mailer := &fakeMailer{}
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewService(st, newTestManager(), mailer, log), st, mailer
}

func mustRegister(t *testing.T, svc *Service, username string) *domain.User {
	t.Helper()
	user, err := svc.Register(context.Background(), RegisterInput{
		Email:    username + "@example.com",
		Username: username,
		Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", username, err)
	}
	return user
}

func TestRegister(t *testing.T) {
	svc, st, _ := newTestService(t)

	user := mustRegister(t, svc, "ramesh")

	if user.Credits != 10.0 {
		t.Errorf("credits = %v, want the 10 credit trial balance", user.Credits)
	}
	if user.Role != "user" {
		t.Errorf("role = %q, want user", user.Role)
	}
	if !user.IsActive {
		t.Error("new account not active")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte("s3cret-pass")); err != nil {
		t.Error("stored hash does not match the password")
	}
	if _, ok := st.users[user.ID]; !ok {
		t.Error("user not persisted")
	}
}

func TestRegisterDuplicates(t *testing.T) {
	svc, _, _ := newTestService(t)
	mustRegister(t, svc, "ramesh")

	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "ramesh@example.com", Username: "other", Password: "x",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate email err = %v, want ErrEmailTaken", err)
	}

	_, err = svc.Register(context.Background(), RegisterInput{
		Email: "other@example.com", Username: "ramesh", Password: "x",
	})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("duplicate username err = %v, want ErrUsernameTaken", err)
	}
}

func TestLoginIssuesSession(t *testing.T) {
	svc, st, _ := newTestService(t)
	user := mustRegister(t, svc, "ramesh")

	pair, err := svc.Login(context.Background(), "ramesh", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Error("token pair incomplete")
	}
	if pair.TokenType != "bearer" {
		t.Errorf("token type = %q", pair.TokenType)
	}
	if len(st.tokens) != 1 {
		t.Errorf("stored %d session rows, want 1", len(st.tokens))
	}

	resolved, err := svc.Authenticate(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if resolved.ID != user.ID {
		t.Errorf("authenticated user = %s, want %s", resolved.ID, user.ID)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _, _ := newTestService(t)
	mustRegister(t, svc, "ramesh")

	if _, err := svc.Login(context.Background(), "ramesh", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(context.Background(), "nobody", "s3cret-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user err = %v, want ErrInvalidCredentials", err)
	}
}

func TestRefreshMintsAccessOnly(t *testing.T) {
	svc, _, _ := newTestService(t)
	user := mustRegister(t, svc, "ramesh")

	pair, err := svc.Login(context.Background(), "ramesh", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	refreshed, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if refreshed.AccessToken == "" {
		t.Error("no access token issued")
	}
	if refreshed.RefreshToken != "" {
		t.Error("refresh token rotated; it should stay valid until logout")
	}

	resolved, err := svc.Authenticate(context.Background(), refreshed.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if resolved.ID != user.ID {
		t.Errorf("authenticated user = %s, want %s", resolved.ID, user.ID)
	}
}

func TestLogoutTerminatesSessions(t *testing.T) {
	svc, st, _ := newTestService(t)
	user := mustRegister(t, svc, "ramesh")

	pair, err := svc.Login(context.Background(), "ramesh", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := svc.Logout(context.Background(), user.ID, pair.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	if len(st.tokens) != 0 {
		t.Errorf("%d session rows left after logout", len(st.tokens))
	}
	if st.users[user.ID].IsActive {
		t.Error("user still active after logout")
	}
	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("refresh after logout err = %v, want ErrInvalidToken", err)
	}
}

func TestAuthenticateRejectsUnknownSubjects(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.Authenticate(context.Background(), "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage token err = %v, want ErrInvalidToken", err)
	}

	// Correctly signed but for a user the store has never seen.
	signed, _, err := newTestManager().NewAccessToken("ghost")
	if err != nil {
		t.Fatalf("NewAccessToken failed: %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ghost user err = %v, want ErrInvalidToken", err)
	}
}

func TestUpdateProfilePartial(t *testing.T) {
	svc, _, _ := newTestService(t)
	user := mustRegister(t, svc, "ramesh")

	first := "Ramesh"
	updated, err := svc.UpdateProfile(context.Background(), user.ID, UpdateProfileInput{FirstName: &first})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if updated.FirstName != "Ramesh" {
		t.Errorf("first name = %q", updated.FirstName)
	}
	if updated.LastName != user.LastName {
		t.Error("untouched field changed")
	}
}

func TestOTPFlow(t *testing.T) {
	svc, st, mailer := newTestService(t)

	if err := svc.RequestOTP(context.Background(), "ramesh@example.com", "9876543210"); err != nil {
		t.Fatalf("RequestOTP failed: %v", err)
	}
	if mailer.to != "ramesh@example.com" {
		t.Errorf("otp mailed to %q", mailer.to)
	}
	if len(mailer.otp) != 6 {
		t.Errorf("otp = %q, want 6 digits", mailer.otp)
	}

	if err := svc.VerifyOTP(context.Background(), "ramesh@example.com", "000000"); !errors.Is(err, ErrInvalidOTP) {
		t.Errorf("wrong otp err = %v, want ErrInvalidOTP", err)
	}
	if st.contacts["ramesh@example.com"].IsVerified {
		t.Error("contact verified by a wrong otp")
	}

	if err := svc.VerifyOTP(context.Background(), "ramesh@example.com", mailer.otp); err != nil {
		t.Fatalf("VerifyOTP failed: %v", err)
	}
	contact := st.contacts["ramesh@example.com"]
	if !contact.IsVerified {
		t.Error("contact not marked verified")
	}
	if contact.OTP != "" {
		t.Error("otp not cleared after verification")
	}
}

func TestVerifyOTPExpired(t *testing.T) {
	svc, st, mailer := newTestService(t)

	if err := svc.RequestOTP(context.Background(), "ramesh@example.com", ""); err != nil {
		t.Fatalf("RequestOTP failed: %v", err)
	}
	st.contacts["ramesh@example.com"].OTPExpiresAt = time.Now().Add(-time.Minute)

	if err := svc.VerifyOTP(context.Background(), "ramesh@example.com", mailer.otp); !errors.Is(err, ErrInvalidOTP) {
		t.Errorf("expired otp err = %v, want ErrInvalidOTP", err)
	}
}

func TestVerifyOTPUnknownEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	if err := svc.VerifyOTP(context.Background(), "nobody@example.com", "123456"); !errors.Is(err, ErrInvalidOTP) {
		t.Errorf("unknown email err = %v, want ErrInvalidOTP", err)
	}
}

func TestAPIClientLifecycle(t *testing.T) {
	svc, _, _ := newTestService(t)
	user := mustRegister(t, svc, "ramesh")

	client, secret, err := svc.CreateAPIClient(context.Background(), user.ID, []string{domain.ServicePAN})
	if err != nil {
		t.Fatalf("CreateAPIClient failed: %v", err)
	}
	if len(secret) != 64 {
		t.Errorf("secret length = %d, want 64 hex chars", len(secret))
	}
	if client.HashedSecret == secret {
		t.Error("plaintext secret stored")
	}

	gotClient, gotUser, err := svc.AuthenticateAPIClient(context.Background(), client.ClientID, secret, domain.ServicePAN)
	if err != nil {
		t.Fatalf("AuthenticateAPIClient failed: %v", err)
	}
	if gotClient.ClientID != client.ClientID || gotUser.ID != user.ID {
		t.Error("client resolved to the wrong owner")
	}

	if _, _, err := svc.AuthenticateAPIClient(context.Background(), client.ClientID, "wrong", domain.ServicePAN); !errors.Is(err, ErrInvalidClient) {
		t.Errorf("wrong secret err = %v, want ErrInvalidClient", err)
	}
	if _, _, err := svc.AuthenticateAPIClient(context.Background(), "nobody", secret, domain.ServicePAN); !errors.Is(err, ErrInvalidClient) {
		t.Errorf("unknown client err = %v, want ErrInvalidClient", err)
	}
	if _, _, err := svc.AuthenticateAPIClient(context.Background(), client.ClientID, secret, domain.ServiceRC); !errors.Is(err, ErrServiceNotAllowed) {
		t.Errorf("allowlist miss err = %v, want ErrServiceNotAllowed", err)
	}

	if err := svc.SetAPIClientEnabled(context.Background(), client.ClientID, false); err != nil {
		t.Fatalf("SetAPIClientEnabled failed: %v", err)
	}
	if _, _, err := svc.AuthenticateAPIClient(context.Background(), client.ClientID, secret, domain.ServicePAN); !errors.Is(err, ErrClientDisabled) {
		t.Errorf("disabled client err = %v, want ErrClientDisabled", err)
	}
}

func TestAPIClientEmptyAllowlistUnrestricted(t *testing.T) {
	svc, _, _ := newTestService(t)
	user := mustRegister(t, svc, "ramesh")

	client, secret, err := svc.CreateAPIClient(context.Background(), user.ID, nil)
	if err != nil {
		t.Fatalf("CreateAPIClient failed: %v", err)
	}
	if client.EnabledAPIs == nil {
		t.Error("nil allowlist not normalized to empty")
	}

	for _, api := range []string{domain.ServicePAN, domain.ServiceGSTIN} {
		if _, _, err := svc.AuthenticateAPIClient(context.Background(), client.ClientID, secret, api); err != nil {
			t.Errorf("empty allowlist rejected %s: %v", api, err)
		}
	}
}
