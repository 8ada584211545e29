package handlers

import (
	"time"

	"github.com/DanielPopoola/membership-reconciler/internal/domain"
)

type CreatePaymentRequestBody struct {
	Reference      string `json:"reference" validate:"required,max=255"`
	UserID         string `json:"userId" validate:"required"`
	OrganizationID string `json:"organizationId" validate:"required"`
	AmountInCents  int64  `json:"amountInCents" validate:"min=0"`
	Currency       string `json:"currency" validate:"omitempty,len=3"`
}

type LinkTransactionBody struct {
	TransactionID string `json:"transactionId" validate:"required"`
}

type StatusChangeResponse struct {
	At     time.Time `json:"at"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	Source string    `json:"source"`
}

type PaymentRequestResponse struct {
	Reference       string                 `json:"reference"`
	UserID          string                 `json:"userId"`
	OrganizationID  string                 `json:"organizationId"`
	AmountInCents   int64                  `json:"amountInCents"`
	Currency        string                 `json:"currency"`
	Status          string                 `json:"status"`
	TransactionID   string                 `json:"transactionId,omitempty"`
	StatusHistory   []StatusChangeResponse `json:"statusHistory"`
	ActivatedAt     *time.Time             `json:"activatedAt,omitempty"`
	ActivatedPlanID string                 `json:"activatedPlanId,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

type PlanEventResponse struct {
	At            time.Time `json:"at"`
	Action        string    `json:"action"`
	Source        string    `json:"source"`
	TransactionID string    `json:"transactionId,omitempty"`
	Reference     string    `json:"reference,omitempty"`
	DateUntil     time.Time `json:"dateUntil"`
}

type PaymentPlanResponse struct {
	ID            string              `json:"id"`
	AccountRef    string              `json:"accountRef"`
	DaysValid     int                 `json:"daysValid"`
	DateUntil     time.Time           `json:"dateUntil"`
	PriceInCents  int64               `json:"priceInCents"`
	Currency      string              `json:"currency"`
	Source        string              `json:"source"`
	TransactionID string              `json:"transactionId,omitempty"`
	Reference     string              `json:"reference,omitempty"`
	StatusHistory []PlanEventResponse `json:"statusHistory"`
}

type AccessResponse struct {
	AccountRef string `json:"accountRef"`
	Valid      bool   `json:"valid"`
}

type IntegritySignatureResponse struct {
	Reference     string `json:"reference"`
	AmountInCents int64  `json:"amountInCents"`
	Currency      string `json:"currency"`
	Signature     string `json:"signature"`
}

func toPaymentRequestResponse(pr *domain.PaymentRequest) PaymentRequestResponse {
	history := make([]StatusChangeResponse, 0, len(pr.StatusHistory))
	for _, c := range pr.StatusHistory {
		history = append(history, StatusChangeResponse{
			At:     c.At,
			From:   string(c.From),
			To:     string(c.To),
			Source: string(c.Source),
		})
	}
	return PaymentRequestResponse{
		Reference:       pr.Reference,
		UserID:          pr.UserID,
		OrganizationID:  pr.OrganizationID,
		AmountInCents:   pr.AmountCents,
		Currency:        pr.Currency,
		Status:          string(pr.Status),
		TransactionID:   pr.TransactionID,
		StatusHistory:   history,
		ActivatedAt:     pr.ActivatedAt,
		ActivatedPlanID: pr.ActivatedPlanID,
		CreatedAt:       pr.CreatedAt,
		UpdatedAt:       pr.UpdatedAt,
	}
}

func toPaymentPlanResponse(p *domain.PaymentPlan) PaymentPlanResponse {
	events := make([]PlanEventResponse, 0, len(p.StatusHistory))
	for _, e := range p.StatusHistory {
		events = append(events, PlanEventResponse{
			At:            e.At,
			Action:        string(e.Action),
			Source:        string(e.Source),
			TransactionID: e.TransactionID,
			Reference:     e.Reference,
			DateUntil:     e.DateUntil,
		})
	}
	return PaymentPlanResponse{
		ID:            p.ID,
		AccountRef:    p.AccountRef,
		DaysValid:     p.DaysValid,
		DateUntil:     p.DateUntil,
		PriceInCents:  p.PriceCents,
		Currency:      p.Currency,
		Source:        string(p.Source),
		TransactionID: p.TransactionID,
		Reference:     p.Reference,
		StatusHistory: events,
	}
}
