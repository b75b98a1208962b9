package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	StatusStarted   PaymentStatus = "Started"
	StatusVerified  PaymentStatus = "Verified"
	StatusCompleted PaymentStatus = "Completed"
)

// statusRank orders the lifecycle so a record can never move backwards.
var statusRank = map[PaymentStatus]int{
	StatusStarted:   0,
	StatusVerified:  1,
	StatusCompleted: 2,
}

// Before reports whether s comes earlier in the lifecycle than other.
func (s PaymentStatus) Before(other PaymentStatus) bool {
	return statusRank[s] < statusRank[other]
}

// ExpressPayment is one checkout transaction, keyed by the token the
// gateway hands out at SetExpressCheckout time.
type ExpressPayment struct {
	bun.BaseModel `bun:"table:express_payments"`

	Token         string        `bun:"token,pk" json:"token"`
	Status        PaymentStatus `bun:"status" json:"status"`
	Amount        float64       `bun:"amount" json:"amount"`
	Currency      string        `bun:"currency" json:"currency"`
	PayerID       string        `bun:"payer_id,nullzero" json:"payer_id,omitempty"`
	PayerEmail    string        `bun:"payer_email,nullzero" json:"payer_email,omitempty"`
	TransactionID string        `bun:"transaction_id,nullzero" json:"transaction_id,omitempty"`
	CorrelationID string        `bun:"correlation_id,nullzero" json:"correlation_id,omitempty"`
	ReferenceType string        `bun:"reference_type,nullzero" json:"reference_type,omitempty"`
	ReferenceName string        `bun:"reference_name,nullzero" json:"reference_name,omitempty"`
	Data          string        `bun:"data,nullzero" json:"data,omitempty"`
	CreatedAt     time.Time     `bun:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// GatewayLog is an append-only audit row written when a capture attempt
// fails. The checkout flow never reads it back; it exists for operators.
type GatewayLog struct {
	bun.BaseModel `bun:"table:gateway_logs"`

	LogID     string    `bun:"log_id,pk" json:"log_id"`
	Token     string    `bun:"token,nullzero" json:"token,omitempty"`
	Error     string    `bun:"error" json:"error"`
	Params    string    `bun:"params" json:"params"`
	CreatedAt time.Time `bun:"created_at" json:"created_at"`
}

type PaymentEvent struct {
	Type          string    `json:"type"`
	Token         string    `json:"token"`
	Amount        float64   `json:"amount,omitempty"`
	Currency      string    `json:"currency,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	ReferenceType string    `json:"reference_type,omitempty"`
	ReferenceName string    `json:"reference_name,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
