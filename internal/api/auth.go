package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kycfabric/gateway/internal/auth"
)

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if !decodeJSON(r, &in) {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if in.Email == "" || in.Username == "" || in.Password == "" {
		respondWithError(w, http.StatusBadRequest, "email, username and password are required")
		return
	}

	user, err := h.auth.Register(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken), errors.Is(err, auth.ErrUsernameTaken):
			respondWithError(w, http.StatusBadRequest, err.Error())
		default:
			h.log.WithError(err).Error("registration failed")
			respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}
	respondWithJSON(w, http.StatusCreated, user)
}

// Login accepts the OAuth2 password form used by the dashboard.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		respondWithError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	pair, err := h.auth.Login(r.Context(), username, password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			respondWithError(w, http.StatusUnauthorized, "Incorrect username or password")
		default:
			h.log.WithError(err).Error("login failed")
			respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}
	respondWithJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(r, &req) || req.RefreshToken == "" {
		respondWithError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			respondWithError(w, http.StatusUnauthorized, "Could not validate credentials")
		default:
			h.log.WithError(err).Error("token refresh failed")
			respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}
	respondWithJSON(w, http.StatusOK, pair)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	var req refreshRequest
	decodeJSON(r, &req)

	if err := h.auth.Logout(r.Context(), user.ID, req.RefreshToken); err != nil {
		h.log.WithError(err).Error("logout failed")
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"detail": "Successfully logged out and all sessions terminated",
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	respondWithJSON(w, http.StatusOK, user)
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	var in auth.UpdateProfileInput
	if !decodeJSON(r, &in) {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	updated, err := h.auth.UpdateProfile(r.Context(), user.ID, in)
	if err != nil {
		h.log.WithError(err).Error("profile update failed")
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

type otpRequest struct {
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	OTP         string `json:"otp"`
}

func (h *Handler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !decodeJSON(r, &req) || strings.TrimSpace(req.Email) == "" {
		respondWithError(w, http.StatusBadRequest, "email is required")
		return
	}

	if err := h.auth.RequestOTP(r.Context(), strings.TrimSpace(req.Email), strings.TrimSpace(req.PhoneNumber)); err != nil {
		h.log.WithError(err).Error("otp request failed")
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"detail": "OTP sent successfully"})
}

func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !decodeJSON(r, &req) || req.Email == "" || req.OTP == "" {
		respondWithError(w, http.StatusBadRequest, "email and otp are required")
		return
	}

	if err := h.auth.VerifyOTP(r.Context(), strings.TrimSpace(req.Email), strings.TrimSpace(req.OTP)); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidOTP):
			respondWithError(w, http.StatusBadRequest, "Invalid or expired OTP")
		default:
			h.log.WithError(err).Error("otp verification failed")
			respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"detail": "Email verified successfully"})
}
