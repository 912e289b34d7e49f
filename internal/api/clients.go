package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kycfabric/gateway/internal/domain"
	"github.com/kycfabric/gateway/internal/store"
)

type createClientRequest struct {
	UserID      string   `json:"user_id"`
	EnabledAPIs []string `json:"enabled_apis"`
}

// CreateAPIClient mints a machine credential. Admin only; the plaintext
// secret appears in this response and nowhere else.
func (h *Handler) CreateAPIClient(w http.ResponseWriter, r *http.Request) {
	admin, _ := UserFrom(r.Context())

	var req createClientRequest
	if !decodeJSON(r, &req) {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	for _, apiName := range req.EnabledAPIs {
		if _, ok := h.registry.Get(apiName); !ok {
			respondWithError(w, http.StatusBadRequest, "Unknown service: "+apiName)
			return
		}
	}
	userID := req.UserID
	if userID == "" {
		userID = admin.ID
	}

	client, secret, err := h.auth.CreateAPIClient(r.Context(), userID, req.EnabledAPIs)
	if err != nil {
		h.log.WithError(err).Error("api client creation failed")
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]any{
		"client":        client,
		"client_secret": secret,
	})
}

func (h *Handler) ListAPIClients(w http.ResponseWriter, r *http.Request) {
	admin, _ := UserFrom(r.Context())

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = admin.ID
	}

	clients, err := h.auth.ListAPIClients(r.Context(), userID)
	if err != nil {
		h.log.WithError(err).Error("api client list failed")
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if clients == nil {
		clients = []domain.APIClient{}
	}
	respondWithJSON(w, http.StatusOK, clients)
}

type updateClientRequest struct {
	IsEnabled bool `json:"is_enabled"`
}

func (h *Handler) UpdateAPIClient(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["client_id"]

	var req updateClientRequest
	if !decodeJSON(r, &req) {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.auth.SetAPIClientEnabled(r.Context(), clientID, req.IsEnabled); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "Client not found")
		default:
			h.log.WithError(err).Error("api client update failed")
			respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"detail": "Client updated"})
}
