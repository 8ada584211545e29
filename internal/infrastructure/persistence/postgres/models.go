package postgres

import (
	"time"
)

// PaymentRequestModel mirrors a payment_requests row. JSONB columns travel as raw bytes.
type PaymentRequestModel struct {
	Reference        string
	UserID           string
	OrganizationID   string
	AmountCents      int64
	Currency         string
	Status           string
	StatusHistory    []byte
	TransactionID    *string
	GatewaySnapshots []byte
	RawWebhook       []byte
	ActivatedAt      *time.Time
	ActivatedPlanID  *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type PaymentPlanModel struct {
	ID                string
	AccountRef        string
	DaysValid         int
	DateUntil         time.Time
	PriceCents        int64
	Currency          string
	Source            string
	TransactionID     *string
	Reference         *string
	PaymentRequestRef *string
	RawPayload        []byte
	StatusHistory     []byte
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type AccountModel struct {
	ID             string
	UserID         string
	OrganizationID string
	DisplayName    string
	Email          string
	PaymentPlanID  *string
}

// PaymentLogModel is one audit row in payment_logs.
type PaymentLogModel struct {
	ID             string
	Level          string
	Message        string
	Source         *string
	Reference      *string
	TransactionID  *string
	OrganizationID *string
	UserID         *string
	Status         *string
	AmountCents    *int64
	Currency       *string
	Meta           []byte
	CreatedAt      time.Time
}
