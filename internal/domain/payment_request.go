package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// MaxGatewaySnapshots bounds the forensic snapshot list; the oldest entries are dropped.
const MaxGatewaySnapshots = 20

// StatusChange is one append-only entry of a payment request's status history.
type StatusChange struct {
	At     time.Time     `json:"at"`
	From   PaymentStatus `json:"from"`
	To     PaymentStatus `json:"to"`
	Source Source        `json:"source"`
}

// GatewaySnapshot is a raw gateway payload kept for replay, whatever its business effect.
type GatewaySnapshot struct {
	Source  Source          `json:"source"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

type PaymentRequest struct {
	Reference      string
	UserID         string
	OrganizationID string
	AmountCents    int64
	Currency       string
	Status         PaymentStatus

	StatusHistory    []StatusChange
	TransactionID    string
	GatewaySnapshots []GatewaySnapshot
	RawWebhook       json.RawMessage

	ActivatedAt     *time.Time
	ActivatedPlanID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewPaymentRequest(reference, userID, organizationID string, amount Money) (*PaymentRequest, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, NewMissingRequiredFieldError("reference")
	}
	if userID == "" {
		return nil, NewMissingRequiredFieldError("userId")
	}
	if organizationID == "" {
		return nil, NewMissingRequiredFieldError("organizationId")
	}
	if amount.Amount < 0 {
		return nil, NewInvalidAmountError(amount.Amount)
	}

	now := time.Now().UTC()
	return &PaymentRequest{
		Reference:      reference,
		UserID:         userID,
		OrganizationID: organizationID,
		AmountCents:    amount.Amount,
		Currency:       amount.Currency,
		Status:         StatusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Outcome classifies what ApplyStatus decided.
type Outcome string

const (
	OutcomeApplied           Outcome = "applied"
	OutcomeIdempotent        Outcome = "idempotent"
	OutcomeInvalidStatus     Outcome = "invalid_status"
	OutcomeTerminalBlocked   Outcome = "terminal_blocked"
	OutcomeRegressionBlocked Outcome = "regression_blocked"
	OutcomeNotFound          Outcome = "not_found"
)

// Changed reports whether the outcome requires the status fields to be persisted.
func (o Outcome) Changed() bool {
	return o == OutcomeApplied
}

// Transition describes the effect of one ApplyStatus call.
type Transition struct {
	Outcome        Outcome
	From           PaymentStatus
	To             PaymentStatus
	BecameApproved bool

	// TransactionIDAssigned is true when this call set a previously empty transaction id.
	TransactionIDAssigned bool
	// ConflictingTransactionID holds the incoming id when it differed from an already-set one.
	ConflictingTransactionID string
}

// RecordSnapshot appends a raw gateway payload, keeping only the newest MaxGatewaySnapshots.
func (p *PaymentRequest) RecordSnapshot(source Source, payload json.RawMessage, at time.Time) {
	if len(payload) == 0 {
		return
	}
	p.GatewaySnapshots = append(p.GatewaySnapshots, GatewaySnapshot{
		Source:  source,
		At:      at,
		Payload: payload,
	})
	if n := len(p.GatewaySnapshots); n > MaxGatewaySnapshots {
		trimmed := make([]GatewaySnapshot, MaxGatewaySnapshots)
		copy(trimmed, p.GatewaySnapshots[n-MaxGatewaySnapshots:])
		p.GatewaySnapshots = trimmed
	}
}

// ApplyStatus runs the monotonic state machine against an observed gateway status.
// The snapshot, if any, is recorded before any decision is taken.
func (p *PaymentRequest) ApplyStatus(next PaymentStatus, transactionID string, source Source, raw json.RawMessage, at time.Time) Transition {
	p.RecordSnapshot(source, raw, at)

	prev := p.Status
	t := Transition{From: prev, To: next}

	sameStatus := prev == next
	sameTransaction := transactionID == "" || p.TransactionID == "" || p.TransactionID == transactionID
	if sameStatus && sameTransaction {
		t.Outcome = OutcomeIdempotent
		return t
	}

	if !next.Valid() {
		t.Outcome = OutcomeInvalidStatus
		return t
	}

	if prev.IsTerminal() && prev != next {
		t.Outcome = OutcomeTerminalBlocked
		return t
	}

	if next.Rank() < prev.Rank() {
		t.Outcome = OutcomeRegressionBlocked
		return t
	}

	// A same-status observation only gets here with a foreign transaction id;
	// it is still recorded so the history shows every applied observation.
	p.StatusHistory = append(p.StatusHistory, StatusChange{
		At:     at,
		From:   prev,
		To:     next,
		Source: source,
	})
	p.Status = next

	if transactionID != "" {
		switch {
		case p.TransactionID == "":
			p.TransactionID = transactionID
			t.TransactionIDAssigned = true
		case p.TransactionID != transactionID:
			t.ConflictingTransactionID = transactionID
		}
	}

	if source == SourceWebhook && len(raw) > 0 {
		p.RawWebhook = raw
	}

	t.Outcome = OutcomeApplied
	t.BecameApproved = prev != StatusApproved && next == StatusApproved
	p.UpdatedAt = at
	return t
}

// ReleaseTransactionID undoes an assignment that collided with another request.
func (p *PaymentRequest) ReleaseTransactionID(t Transition) {
	if t.TransactionIDAssigned {
		p.TransactionID = ""
	}
}

// LinkTransaction sets the transaction id only when none is known yet.
func (p *PaymentRequest) LinkTransaction(transactionID string, at time.Time) bool {
	if transactionID == "" || p.TransactionID != "" {
		return false
	}
	p.TransactionID = transactionID
	p.UpdatedAt = at
	return true
}

// MarkActivated records that membership activation completed for this request.
func (p *PaymentRequest) MarkActivated(planID string, at time.Time) bool {
	if p.ActivatedAt != nil && p.ActivatedPlanID == planID {
		return false
	}
	p.ActivatedAt = &at
	p.ActivatedPlanID = planID
	p.UpdatedAt = at
	return true
}

// NeedsActivation is true for approved requests whose membership was never confirmed.
func (p *PaymentRequest) NeedsActivation() bool {
	return p.Status == StatusApproved && p.ActivatedAt == nil
}

func (p *PaymentRequest) IsTerminal() bool {
	return p.Status.IsTerminal()
}
