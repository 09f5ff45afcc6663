package purchaseorder

import "encoding/json"

// Action tags which variant of Payload is populated.
type Action string

const (
	ActionCreatePurchaseOrder Action = "CREATE_PURCHASE_ORDER"
	ActionUpdatePurchaseOrder Action = "UPDATE_PURCHASE_ORDER"
	ActionCreateVersion       Action = "CREATE_VERSION"
	ActionUpdateVersion       Action = "UPDATE_VERSION"
	ActionDeleteVersion       Action = "DELETE_VERSION"
	ActionAcceptVersion       Action = "ACCEPT_VERSION"
)

// WorkflowState is a node in the per-purchase-order state machine.
type WorkflowState string

const (
	StateCreated   WorkflowState = "CREATED"
	StateIssued    WorkflowState = "ISSUED"
	StateReviewed  WorkflowState = "REVIEWED"
	StateConfirmed WorkflowState = "CONFIRMED"
	StateClosed    WorkflowState = "CLOSED"
)

// Payload is the PurchaseOrder family's transaction payload.
type Payload struct {
	Action    Action
	Timestamp uint64

	CreatePurchaseOrder *CreatePurchaseOrderAction `json:",omitempty"`
	UpdatePurchaseOrder *UpdatePurchaseOrderAction `json:",omitempty"`
	CreateVersion       *CreateVersionAction       `json:",omitempty"`
	UpdateVersion       *UpdateVersionAction       `json:",omitempty"`
	DeleteVersion       *DeleteVersionAction       `json:",omitempty"`
	AcceptVersion       *AcceptVersionAction       `json:",omitempty"`
}

// CreatePurchaseOrderAction opens a new negotiated-procurement record.
type CreatePurchaseOrderAction struct {
	UID          string
	BuyerOrgID   string
	SellerOrgID  string
	WorkflowType string
	AlternateIDs map[string]string
	CreatedAt    uint64
}

// UpdatePurchaseOrderAction transitions the order's workflow state.
type UpdatePurchaseOrderAction struct {
	UID           string
	WorkflowState WorkflowState
}

// CreateVersionAction opens a new negotiation line with its first revision.
type CreateVersionAction struct {
	UID           string
	VersionID     string
	IsDraft       bool
	WorkflowState WorkflowState
	OrderXMLV34   string
	CreatedAt     uint64
}

// UpdateVersionAction appends a new revision to an existing version.
// ReopenAccepted must be set to mutate a version that is currently the
// order's accepted version.
type UpdateVersionAction struct {
	UID            string
	VersionID      string
	WorkflowState  WorkflowState
	OrderXMLV34    string
	CreatedAt      uint64
	ReopenAccepted bool
}

// DeleteVersionAction retires a draft version.
type DeleteVersionAction struct {
	UID       string
	VersionID string
}

// AcceptVersionAction marks a version as the order's accepted version.
type AcceptVersionAction struct {
	UID       string
	VersionID string
}

// DecodePayload parses raw into a Payload.
func DecodePayload(raw []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
