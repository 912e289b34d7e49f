package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kycfabric/gateway/internal/domain"
	"github.com/kycfabric/gateway/internal/payment"
)

type createLinkRequest struct {
	TotalAmount      float64 `json:"total_amount"`
	CreditsPurchased float64 `json:"credits_purchased"`
}

func (h *Handler) CreatePaymentLink(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	var req createLinkRequest
	if !decodeJSON(r, &req) {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.TotalAmount <= 0 || req.CreditsPurchased <= 0 {
		respondWithError(w, http.StatusBadRequest, "total_amount and credits_purchased must be positive")
		return
	}

	order, err := h.payments.CreateLink(r.Context(), user, req.TotalAmount, req.CreditsPurchased)
	if err != nil {
		h.log.WithError(err).Error("payment link creation failed")
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	respondWithJSON(w, http.StatusCreated, order)
}

// PaymentCallback handles the browser return leg. Whatever happened, the
// payer ends up back on the frontend; only the landing page differs.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := payment.CallbackParams{
		PaymentID:   q.Get("razorpay_payment_id"),
		LinkID:      q.Get("razorpay_payment_link_id"),
		ReferenceID: q.Get("razorpay_payment_link_reference_id"),
		LinkStatus:  q.Get("razorpay_payment_link_status"),
		Signature:   q.Get("razorpay_signature"),
	}

	if err := h.payments.HandleCallback(r.Context(), params); err != nil {
		h.log.WithError(err).WithField("order_id", params.ReferenceID).Warn("payment callback rejected")
		http.Redirect(w, r, h.payments.FailureRedirect(), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, h.payments.SuccessRedirect(), http.StatusSeeOther)
}

// PaymentWebhook handles gateway notifications. The gateway retries on
// non-2xx, so processing failures are logged but still acknowledged.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "error"})
		return
	}

	if err := h.payments.HandleWebhook(r.Context(), body, r.Header.Get("X-Razorpay-Signature")); err != nil {
		h.log.WithError(err).Warn("payment webhook rejected")
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "error"})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	orderID := mux.Vars(r)["order_id"]

	order, err := h.payments.Status(r.Context(), user.ID, orderID)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrOrderNotFound):
			respondWithError(w, http.StatusNotFound, "Order not found")
		default:
			h.log.WithError(err).Error("payment status lookup failed")
			respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}
	respondWithJSON(w, http.StatusOK, order)
}

func (h *Handler) ListPaymentOrders(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	orders, err := h.payments.Orders(r.Context(), user.ID, historyLimit(r))
	if err != nil {
		h.log.WithError(err).Error("payment orders lookup failed")
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if orders == nil {
		orders = []domain.PaymentOrder{}
	}
	respondWithJSON(w, http.StatusOK, orders)
}
