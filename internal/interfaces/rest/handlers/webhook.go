package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/DanielPopoola/membership-reconciler/internal/application"
	"github.com/DanielPopoola/membership-reconciler/internal/interfaces/rest"
	"github.com/go-chi/chi/v5"
)

const maxWebhookBody = 1 << 20

// ReceiveWebhook acknowledges with 200 once the event is authenticated and its
// status transition committed.
func (h *Handlers) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rest.WriteError(w, application.NewValidationError(err))
			return
		}
		rest.WriteError(w, application.NewInternalError(err))
		return
	}

	if err := h.webhooks.Handle(r.Context(), r.Header, body); err != nil {
		h.logger.Warn("webhook rejected",
			"code", application.ToErrorCode(err),
			"category", application.CategorizeError(err))
		rest.WriteError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handlers) SyncTransaction(w http.ResponseWriter, r *http.Request) {
	pr, err := h.sync.SyncTransaction(r.Context(), chi.URLParam(r, "transactionId"))
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toPaymentRequestResponse(pr))
}
