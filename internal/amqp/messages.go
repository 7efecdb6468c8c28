package amqp

import (
	"encoding/json"
	"time"
)

// Reasons carried by DatasetChangedMessage.
const (
	ReasonTransactionCreated = "transaction_created"
	ReasonTransactionUpdated = "transaction_updated"
	ReasonTransactionDeleted = "transaction_deleted"
	ReasonCatalogChanged     = "catalog_changed"
	ReasonImport             = "import"
)

// DatasetChangedMessage tells the export worker that the ledger changed and
// which calendar year is affected. Year is 0 when the change has no date
// or spans several years; the worker then refreshes every year it knows.
type DatasetChangedMessage struct {
	Reason        string    `json:"reason"`
	TransactionID string    `json:"transactionId,omitempty"`
	Year          int       `json:"year"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewDatasetChangedMessage(reason, transactionID string, year int) *DatasetChangedMessage {
	return &DatasetChangedMessage{
		Reason:        reason,
		TransactionID: transactionID,
		Year:          year,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *DatasetChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DatasetChangedMessageFromJSON(data []byte) (*DatasetChangedMessage, error) {
	var msg DatasetChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
