// Package domain encodes payment requests, membership plans and the rules that move them.
package domain

import (
	"strings"
)

// PaymentStatus represents where a payment request is in its lifecycle.
type PaymentStatus string

const (
	StatusCreated  PaymentStatus = "CREATED"
	StatusPending  PaymentStatus = "PENDING"
	StatusApproved PaymentStatus = "APPROVED"
	StatusDeclined PaymentStatus = "DECLINED"
	StatusVoided   PaymentStatus = "VOIDED"
	StatusError    PaymentStatus = "ERROR"
)

const (
	rankUnknown  = 0
	rankCreated  = 1
	rankPending  = 2
	rankTerminal = 3
)

// ParseStatus normalises a gateway status string. Unknown values are returned
// as-is (upper-cased) together with ErrInvalidStatus so callers can still log them.
func ParseStatus(raw string) (PaymentStatus, error) {
	s := PaymentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return s, NewInvalidStatusError(raw)
	}
	return s, nil
}

// Rank orders statuses so that CREATED < PENDING < any terminal status.
func (s PaymentStatus) Rank() int {
	switch s {
	case StatusCreated:
		return rankCreated
	case StatusPending:
		return rankPending
	case StatusApproved, StatusDeclined, StatusVoided, StatusError:
		return rankTerminal
	default:
		return rankUnknown
	}
}

func (s PaymentStatus) Valid() bool {
	return s.Rank() != rankUnknown
}

// IsTerminal reports whether no further transition is accepted from s.
func (s PaymentStatus) IsTerminal() bool {
	return s.Rank() == rankTerminal
}

func (s PaymentStatus) String() string {
	return string(s)
}

// Source identifies which surface produced a status observation.
type Source string

const (
	SourceFrontend  Source = "frontend"
	SourceWebhook   Source = "webhook"
	SourcePoll      Source = "poll"
	SourceReconcile Source = "reconcile"
	SourceService   Source = "service"
)
