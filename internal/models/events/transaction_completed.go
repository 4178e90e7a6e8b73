package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// TopicTransactionCompleted is the topic every committed ledger
// operation is announced on.
const TopicTransactionCompleted = "transaction_completed"

// TransactionCompleted is published after a ledger operation commits.
type TransactionCompleted struct {
	TransactionID string          `json:"transaction_id"`
	Type          string          `json:"type"`
	FromAccount   string          `json:"from_account,omitempty"`
	ToAccount     string          `json:"to_account,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	OccurredAt    time.Time       `json:"occurred_at"`
}
