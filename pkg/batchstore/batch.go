/*
Package batchstore implements the batch tracking store: the lifecycle
of a submitted batch from first sight through commit or rejection,
scoped per service_id and durable across restarts.
*/
package batchstore

import (
	"time"

	"github.com/google/uuid"
)

// NonSplinterServiceID is the sentinel service_id used for batches
// submitted outside of any circuit-scoped service.
const NonSplinterServiceID = "----"

// Status is where a batch currently sits in its lifecycle:
// Unknown -> Pending -> (Delayed)* -> Valid -> Committed, with Invalid
// absorbing either validation or external-submission failures.
type Status string

const (
	StatusUnknown   Status = "Unknown"
	StatusPending   Status = "Pending"
	StatusDelayed   Status = "Delayed"
	StatusInvalid   Status = "Invalid"
	StatusValid     Status = "Valid"
	StatusCommitted Status = "Committed"
)

// InvalidTransaction records why one transaction in a batch was rejected.
type InvalidTransaction struct {
	TransactionID        string
	ErrorMessage         string
	ErrorData            []byte
	ExternalErrorStatus  string
	ExternalErrorMessage string
}

// ValidTransaction names a transaction that passed validation.
type ValidTransaction struct {
	TransactionID string
}

// SubmissionError describes a failure submitting a batch to the DLT,
// distinct from a validation failure of the batch's contents.
type SubmissionError struct {
	ErrorType    string
	ErrorMessage string
}

// Transaction is the store's record of one transaction within a tracked
// batch.
type Transaction struct {
	FamilyName        string
	FamilyVersion     string
	TransactionHeader string
	Payload           []byte
	SignerPublicKey   string
	ServiceID         string
}

// Batch is the store's full lifecycle record for one submitted batch.
type Batch struct {
	ServiceID         string
	BatchHeader       string
	DataChangeID      string
	SignerPublicKey   string
	Trace             bool
	SerializedBatch   []byte
	Submitted       bool
	CreatedAt       time.Time
	Transactions    []Transaction
	Status          Status
	InvalidTxns     []InvalidTransaction
	ValidTxns       []ValidTransaction
	SubmissionError *SubmissionError
}

// Key uniquely identifies a tracked batch: its header within its service
// scope. All reads and writes are scoped by service_id.
type Key struct {
	ServiceID   string
	BatchHeader string
}

// NewBatch builds a Batch in the initial Unknown status, applying the
// NonSplinterServiceID sentinel when serviceID is empty. It always
// generates a fresh DataChangeID trace id via google/uuid (the original
// external-data-change correlation id); it takes no caller-supplied id.
func NewBatch(serviceID, batchHeader, signerPublicKey string, serializedBatch []byte, trace bool) *Batch {
	if serviceID == "" {
		serviceID = NonSplinterServiceID
	}
	return &Batch{
		ServiceID:       serviceID,
		BatchHeader:     batchHeader,
		DataChangeID:    uuid.NewString(),
		SignerPublicKey: signerPublicKey,
		Trace:           trace,
		SerializedBatch: serializedBatch,
		CreatedAt:       time.Now(),
		Status:          StatusUnknown,
	}
}
