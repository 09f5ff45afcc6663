package trackandtrace

import "encoding/json"

// Action tags which variant of Payload is populated.
type Action string

const (
	ActionCreateRecord     Action = "CREATE_RECORD"
	ActionFinalizeRecord   Action = "FINALIZE_RECORD"
	ActionCreateProposal   Action = "CREATE_PROPOSAL"
	ActionAnswerProposal   Action = "ANSWER_PROPOSAL"
	ActionUpdateProperties Action = "UPDATE_PROPERTIES"
)

// Role names a capability a Proposal transfers.
type Role string

const (
	RoleOwner     Role = "OWNER"
	RoleCustodian Role = "CUSTODIAN"
	RoleReporter  Role = "REPORTER"
)

// ProposalResponse is the answer to an open Proposal.
type ProposalResponse string

const (
	ResponseAccept ProposalResponse = "ACCEPT"
	ResponseReject ProposalResponse = "REJECT"
	ResponseCancel ProposalResponse = "CANCEL"
)

// Payload is the track-and-trace family's transaction payload.
type Payload struct {
	Action    Action
	Timestamp uint64

	CreateRecord     *CreateRecordAction     `json:",omitempty"`
	FinalizeRecord   *FinalizeRecordAction   `json:",omitempty"`
	CreateProposal   *CreateProposalAction   `json:",omitempty"`
	AnswerProposal   *AnswerProposalAction   `json:",omitempty"`
	UpdateProperties *UpdatePropertiesAction `json:",omitempty"`
}

// CreateRecordAction opens a new track-and-trace subject, with the signer
// as its initial owner and custodian.
type CreateRecordAction struct {
	RecordID   string
	SchemaName string
}

// FinalizeRecordAction marks a record immutable.
type FinalizeRecordAction struct {
	RecordID string
}

// CreateProposalAction offers a role transfer over a record to another
// agent; properties scopes the offer to REPORTER proposals.
type CreateProposalAction struct {
	RecordID       string
	ReceivingAgent string
	Role           Role
	Properties     []string
}

// AnswerProposalAction resolves an open Proposal.
type AnswerProposalAction struct {
	RecordID       string
	ReceivingAgent string
	Response       ProposalResponse
}

// ReportedValueInput carries one typed measurement for UpdatePropertiesAction.
type ReportedValueInput struct {
	Name         string
	Timestamp    uint64
	BytesValue   []byte
	BooleanValue bool
	NumberValue  int64
	StringValue  string
	EnumValue    int32
	LatValue     int64
	LongValue    int64
}

// UpdatePropertiesAction appends one reported value per named property.
type UpdatePropertiesAction struct {
	RecordID string
	Updates  []ReportedValueInput
}

// DecodePayload parses raw into a Payload.
func DecodePayload(raw []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
