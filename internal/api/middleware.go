package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/kycfabric/gateway/internal/auth"
	"github.com/kycfabric/gateway/internal/domain"
)

type contextKey string

const userContextKey contextKey = "user"

func withUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFrom returns the authenticated user middleware placed on the context.
func UserFrom(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	return user, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, found := strings.CutPrefix(header, "Bearer "); found {
		return token
	}
	return ""
}

// requireUser authenticates the dashboard surface with a bearer access
// token and rejects accounts logged out elsewhere.
func (h *Handler) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondWithError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		user, err := h.auth.Authenticate(r.Context(), token)
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		if !user.IsActive {
			respondWithError(w, http.StatusBadRequest, "Inactive user")
			return
		}
		next(w, r.WithContext(withUser(r.Context(), user)))
	}
}

// requireAdmin restricts an endpoint to administrator accounts.
func (h *Handler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return h.requireUser(func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFrom(r.Context())
		if user.Role != "admin" {
			respondWithError(w, http.StatusForbidden, "Not enough permissions")
			return
		}
		next(w, r)
	})
}

// requireClient authenticates the machine surface with Basic credentials
// and resolves the owning user for billing.
func (h *Handler) requireClient(apiName string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID, secret, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="api"`)
			respondWithError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		_, user, err := h.auth.AuthenticateAPIClient(r.Context(), clientID, secret, apiName)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrInvalidClient):
			respondWithError(w, http.StatusUnauthorized, "Invalid client credentials")
			return
		case errors.Is(err, auth.ErrClientDisabled), errors.Is(err, auth.ErrServiceNotAllowed):
			respondWithError(w, http.StatusForbidden, "Not enough permissions")
			return
		default:
			h.log.WithError(err).Error("client authentication failed")
			respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		next(w, r.WithContext(withUser(r.Context(), user)))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware records request counts and latencies under the route
// template, keeping label cardinality bounded.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(r.Method, endpoint))
		next.ServeHTTP(rec, r)
		timer.ObserveDuration()

		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}

func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).Seconds(),
			"remote":   r.RemoteAddr,
		}).Info("request completed")
	})
}
