package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/DanielPopoola/membership-reconciler/internal/domain"
)

func toPaymentRequestModel(pr *domain.PaymentRequest) (PaymentRequestModel, error) {
	history, err := marshalList(pr.StatusHistory)
	if err != nil {
		return PaymentRequestModel{}, fmt.Errorf("marshal status history: %w", err)
	}
	snapshots, err := marshalList(pr.GatewaySnapshots)
	if err != nil {
		return PaymentRequestModel{}, fmt.Errorf("marshal gateway snapshots: %w", err)
	}

	return PaymentRequestModel{
		Reference:        pr.Reference,
		UserID:           pr.UserID,
		OrganizationID:   pr.OrganizationID,
		AmountCents:      pr.AmountCents,
		Currency:         pr.Currency,
		Status:           string(pr.Status),
		StatusHistory:    history,
		TransactionID:    nullable(pr.TransactionID),
		GatewaySnapshots: snapshots,
		RawWebhook:       rawJSON(pr.RawWebhook),
		ActivatedAt:      pr.ActivatedAt,
		ActivatedPlanID:  nullable(pr.ActivatedPlanID),
		CreatedAt:        pr.CreatedAt,
		UpdatedAt:        pr.UpdatedAt,
	}, nil
}

func toPaymentRequest(m PaymentRequestModel) (*domain.PaymentRequest, error) {
	pr := &domain.PaymentRequest{
		Reference:       m.Reference,
		UserID:          m.UserID,
		OrganizationID:  m.OrganizationID,
		AmountCents:     m.AmountCents,
		Currency:        m.Currency,
		Status:          domain.PaymentStatus(m.Status),
		TransactionID:   deref(m.TransactionID),
		RawWebhook:      rawJSON(m.RawWebhook),
		ActivatedAt:     m.ActivatedAt,
		ActivatedPlanID: deref(m.ActivatedPlanID),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if err := unmarshalList(m.StatusHistory, &pr.StatusHistory); err != nil {
		return nil, fmt.Errorf("unmarshal status history of %s: %w", m.Reference, err)
	}
	if err := unmarshalList(m.GatewaySnapshots, &pr.GatewaySnapshots); err != nil {
		return nil, fmt.Errorf("unmarshal gateway snapshots of %s: %w", m.Reference, err)
	}
	return pr, nil
}

func toPaymentPlanModel(p *domain.PaymentPlan) (PaymentPlanModel, error) {
	history, err := marshalList(p.StatusHistory)
	if err != nil {
		return PaymentPlanModel{}, fmt.Errorf("marshal plan history: %w", err)
	}
	return PaymentPlanModel{
		ID:                p.ID,
		AccountRef:        p.AccountRef,
		DaysValid:         p.DaysValid,
		DateUntil:         p.DateUntil,
		PriceCents:        p.PriceCents,
		Currency:          p.Currency,
		Source:            string(p.Source),
		TransactionID:     nullable(p.TransactionID),
		Reference:         nullable(p.Reference),
		PaymentRequestRef: nullable(p.PaymentRequestRef),
		RawPayload:        rawJSON(p.RawPayload),
		StatusHistory:     history,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}, nil
}

func toPaymentPlan(m PaymentPlanModel) (*domain.PaymentPlan, error) {
	p := &domain.PaymentPlan{
		ID:                m.ID,
		AccountRef:        m.AccountRef,
		DaysValid:         m.DaysValid,
		DateUntil:         m.DateUntil,
		PriceCents:        m.PriceCents,
		Currency:          m.Currency,
		Source:            domain.PlanSource(m.Source),
		TransactionID:     deref(m.TransactionID),
		Reference:         deref(m.Reference),
		PaymentRequestRef: deref(m.PaymentRequestRef),
		RawPayload:        rawJSON(m.RawPayload),
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	if err := unmarshalList(m.StatusHistory, &p.StatusHistory); err != nil {
		return nil, fmt.Errorf("unmarshal plan history of %s: %w", m.AccountRef, err)
	}
	return p, nil
}

func toAccount(m AccountModel) *domain.Account {
	return &domain.Account{
		ID:             m.ID,
		UserID:         m.UserID,
		OrganizationID: m.OrganizationID,
		DisplayName:    m.DisplayName,
		Email:          m.Email,
		PaymentPlanID:  deref(m.PaymentPlanID),
	}
}

// marshalList never yields JSON null, so NOT NULL array columns stay arrays.
func marshalList[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

func unmarshalList[T any](data []byte, out *[]T) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func rawJSON(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
