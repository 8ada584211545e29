package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/DanielPopoola/membership-reconciler/internal/application/services"
	"github.com/DanielPopoola/membership-reconciler/internal/interfaces/rest"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator"
)

func (h *Handlers) CreatePaymentRequest(w http.ResponseWriter, r *http.Request) {
	var body CreatePaymentRequestBody
	if !h.decode(w, r, &body) {
		return
	}

	pr, err := h.requests.Create(r.Context(), services.CreatePaymentRequestCommand{
		Reference:      body.Reference,
		UserID:         body.UserID,
		OrganizationID: body.OrganizationID,
		AmountCents:    body.AmountInCents,
		Currency:       body.Currency,
	})
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, toPaymentRequestResponse(pr))
}

func (h *Handlers) LinkTransaction(w http.ResponseWriter, r *http.Request) {
	var body LinkTransactionBody
	if !h.decode(w, r, &body) {
		return
	}

	pr, err := h.requests.LinkTransaction(r.Context(), chi.URLParam(r, "reference"), body.TransactionID)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toPaymentRequestResponse(pr))
}

func (h *Handlers) GetByReference(w http.ResponseWriter, r *http.Request) {
	pr, err := h.requests.GetByReference(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toPaymentRequestResponse(pr))
}

func (h *Handlers) GetByTransactionID(w http.ResponseWriter, r *http.Request) {
	pr, err := h.requests.GetByTransactionID(r.Context(), chi.URLParam(r, "transactionId"))
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toPaymentRequestResponse(pr))
}

// decode reads and validates a JSON body, writing the 400 itself on failure.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		rest.WriteValidationError(w, map[string]string{"body": "malformed JSON"})
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		details := map[string]string{}
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				details[fe.Field()] = fe.Tag()
			}
		}
		rest.WriteValidationError(w, details)
		return false
	}
	return true
}
