package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/kycfabric/gateway/internal/domain"
	"github.com/kycfabric/gateway/internal/ledger"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

func historyLimit(r *http.Request) int {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return limit
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	credits, err := h.ledger.Balance(r.Context(), user.ID)
	if err != nil {
		h.log.WithError(err).Error("balance lookup failed")
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]float64{"credits": credits})
}

func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	txns, err := h.ledger.History(r.Context(), user.ID, historyLimit(r))
	if err != nil {
		h.log.WithError(err).Error("ledger history lookup failed")
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if txns == nil {
		txns = []domain.LedgerTransaction{}
	}
	respondWithJSON(w, http.StatusOK, txns)
}

// GetUsageSummary reports 30-day call counts per service for the dashboard
// landing page.
func (h *Handler) GetUsageSummary(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	counts, err := h.ledger.ServiceUsageCounts(r.Context(), user.ID)
	if err != nil {
		h.log.WithError(err).Error("usage summary lookup failed")
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	respondWithJSON(w, http.StatusOK, counts)
}

// GetWeeklyStats reports per-day usage of one service over the last week.
func (h *Handler) GetWeeklyStats(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	service := mux.Vars(r)["service"]

	if _, ok := h.registry.Get(service); !ok && service != domain.LedgerTypeCredit {
		respondWithError(w, http.StatusBadRequest, "Unknown service")
		return
	}

	stats, err := h.ledger.WeeklyServiceStats(r.Context(), user.ID, service)
	if err != nil {
		h.log.WithError(err).Error("weekly stats lookup failed")
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if stats == nil {
		stats = []ledger.DailyStat{}
	}
	respondWithJSON(w, http.StatusOK, stats)
}
