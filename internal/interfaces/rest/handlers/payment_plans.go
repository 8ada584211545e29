package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/DanielPopoola/membership-reconciler/internal/domain"
	"github.com/DanielPopoola/membership-reconciler/internal/infrastructure/webhook"
	"github.com/DanielPopoola/membership-reconciler/internal/interfaces/rest"
	"github.com/go-chi/chi/v5"
)

func (h *Handlers) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.plans.GetByAccount(r.Context(), chi.URLParam(r, "accountRef"))
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toPaymentPlanResponse(plan))
}

func (h *Handlers) GetPlanByUserAndOrg(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	orgID := r.URL.Query().Get("organizationId")
	if userID == "" || orgID == "" {
		rest.WriteValidationError(w, map[string]string{"userId": "required", "organizationId": "required"})
		return
	}

	plan, err := h.plans.GetByUserAndOrg(r.Context(), userID, orgID)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toPaymentPlanResponse(plan))
}

func (h *Handlers) CheckAccess(w http.ResponseWriter, r *http.Request) {
	accountRef := chi.URLParam(r, "accountRef")
	valid, err := h.plans.IsAccessValid(r.Context(), accountRef)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, AccessResponse{AccountRef: accountRef, Valid: valid})
}

func (h *Handlers) IntegritySignature(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := strconv.ParseInt(q.Get("amountInCents"), 10, 64)
	if err != nil || amount < 0 {
		rest.WriteValidationError(w, map[string]string{"amountInCents": "must be a non-negative integer"})
		return
	}
	reference := q.Get("reference")
	if reference == "" {
		rest.WriteValidationError(w, map[string]string{"reference": "required"})
		return
	}

	req := webhook.SignRequest{
		Reference:      reference,
		AmountInCents:  amount,
		Currency:       q.Get("currency"),
		ExpirationTime: q.Get("expirationTime"),
	}
	signature, err := h.signer.Sign(req)
	if err != nil {
		h.logger.Error("integrity signature failed", "reference", reference, "error", err)
		rest.WriteError(w, err)
		return
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	rest.WriteJSON(w, http.StatusOK, IntegritySignatureResponse{
		Reference:     reference,
		AmountInCents: amount,
		Currency:      currency,
		Signature:     signature,
	})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			h.logger.Error("health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}
	rest.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
