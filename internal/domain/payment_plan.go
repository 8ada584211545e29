package domain

import (
	"encoding/json"
	"time"
)

// DefaultMembershipDays is the validity window of a gateway activation.
const DefaultMembershipDays = 365

type PlanSource string

const (
	PlanSourceGateway PlanSource = "gateway"
	PlanSourceManual  PlanSource = "manual"
	PlanSourceAdmin   PlanSource = "admin"
)

// PlanAction names the branch an activation took.
type PlanAction string

const (
	PlanActionCreate   PlanAction = "create"
	PlanActionExtend   PlanAction = "extend"
	PlanActionMetadata PlanAction = "metadata"
	PlanActionSkip     PlanAction = "idempotent_skip"
)

// PlanEvent is one entry of a plan's activation history.
type PlanEvent struct {
	At            time.Time  `json:"at"`
	Action        PlanAction `json:"action"`
	Source        PlanSource `json:"source"`
	TransactionID string     `json:"transaction_id,omitempty"`
	Reference     string     `json:"reference,omitempty"`
	DateUntil     time.Time  `json:"date_until"`
}

type PaymentPlan struct {
	ID         string
	AccountRef string
	DaysValid  int
	DateUntil  time.Time
	PriceCents int64
	Currency   string
	Source     PlanSource

	TransactionID     string
	Reference         string
	PaymentRequestRef string
	RawPayload        json.RawMessage

	StatusHistory []PlanEvent

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Activation carries everything a payment contributes to a membership plan.
type Activation struct {
	DaysValid         int
	Price             Money
	TransactionID     string
	Reference         string
	PaymentRequestRef string
	Source            PlanSource
	RawPayload        json.RawMessage
}

func (a Activation) expiry(now time.Time) time.Time {
	days := a.DaysValid
	if days <= 0 {
		days = DefaultMembershipDays
	}
	return now.AddDate(0, 0, days)
}

func NewPaymentPlan(id, accountRef string, a Activation, now time.Time) (*PaymentPlan, error) {
	if id == "" {
		return nil, NewMissingRequiredFieldError("plan id")
	}
	if accountRef == "" {
		return nil, NewMissingRequiredFieldError("accountRef")
	}
	days := a.DaysValid
	if days <= 0 {
		days = DefaultMembershipDays
	}

	p := &PaymentPlan{
		ID:         id,
		AccountRef: accountRef,
		DaysValid:  days,
		DateUntil:  a.expiry(now),
		CreatedAt:  now,
	}
	p.refresh(a, now)
	p.record(PlanActionCreate, a, now)
	return p, nil
}

// AlreadyApplied reports whether the activation's transaction is the plan's latest one.
func (p *PaymentPlan) AlreadyApplied(a Activation) bool {
	return a.TransactionID != "" && p.TransactionID == a.TransactionID
}

// Extend pushes DateUntil forward when the activation expires later, and always
// refreshes price and provenance. DateUntil never moves backwards.
func (p *PaymentPlan) Extend(a Activation, now time.Time) PlanAction {
	action := PlanActionMetadata
	if target := a.expiry(now); target.After(p.DateUntil) {
		p.DateUntil = target
		p.DaysValid = a.DaysValid
		if p.DaysValid <= 0 {
			p.DaysValid = DefaultMembershipDays
		}
		action = PlanActionExtend
	}
	p.refresh(a, now)
	p.record(action, a, now)
	return action
}

// IsActive reports whether the plan grants access at the given instant.
func (p *PaymentPlan) IsActive(at time.Time) bool {
	return !at.After(p.DateUntil)
}

func (p *PaymentPlan) refresh(a Activation, now time.Time) {
	p.PriceCents = a.Price.Amount
	p.Currency = a.Price.Currency
	if p.Currency == "" {
		p.Currency = DefaultCurrency
	}
	p.Source = a.Source
	if p.Source == "" {
		p.Source = PlanSourceGateway
	}
	p.TransactionID = a.TransactionID
	p.Reference = a.Reference
	p.PaymentRequestRef = a.PaymentRequestRef
	if len(a.RawPayload) > 0 {
		p.RawPayload = a.RawPayload
	}
	p.UpdatedAt = now
}

func (p *PaymentPlan) record(action PlanAction, a Activation, now time.Time) {
	p.StatusHistory = append(p.StatusHistory, PlanEvent{
		At:            now,
		Action:        action,
		Source:        p.Source,
		TransactionID: a.TransactionID,
		Reference:     a.Reference,
		DateUntil:     p.DateUntil,
	})
}
