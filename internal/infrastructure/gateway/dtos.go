package gateway

import (
	"encoding/json"
	"time"
)

// Transaction is the gateway's view of one payment execution.
type Transaction struct {
	ID                string     `json:"id"`
	Reference         string     `json:"reference"`
	Status            string     `json:"status"`
	StatusMessage     string     `json:"status_message,omitempty"`
	AmountInCents     int64      `json:"amount_in_cents"`
	Currency          string     `json:"currency"`
	PaymentMethodType string     `json:"payment_method_type,omitempty"`
	CustomerEmail     string     `json:"customer_email,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	FinalizedAt       *time.Time `json:"finalized_at,omitempty"`

	// Raw is the unmodified JSON object the gateway returned for this transaction.
	Raw json.RawMessage `json:"-"`
}

type ListQuery struct {
	From     time.Time
	Until    time.Time
	Page     int
	PageSize int
	Status   string
}

type PageMeta struct {
	Page         int `json:"page"`
	PageSize     int `json:"page_size"`
	TotalResults int `json:"total_results"`
}

// LastPage is ceil(total/pageSize), or the current page when the gateway omits totals.
func (m PageMeta) LastPage() int {
	if m.PageSize <= 0 || m.TotalResults <= 0 {
		return m.Page
	}
	return (m.TotalResults + m.PageSize - 1) / m.PageSize
}

type TransactionPage struct {
	Items []Transaction
	Meta  PageMeta
}

type transactionEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type listEnvelope struct {
	Data []json.RawMessage `json:"data"`
	Meta PageMeta          `json:"meta"`
}

func decodeTransaction(raw json.RawMessage) (Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return Transaction{}, err
	}
	tx.Raw = raw
	return tx, nil
}
