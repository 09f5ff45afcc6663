/*
Package wire defines the envelope types exchanged over a circuit: direct
service-to-service messages, admin consensus messages, and typed error
frames. These stand in for protobuf-generated types; no protoc step
runs in this repo, so they are hand-written Go structs shaped the same
way a .proto-derived type would be.
*/
package wire

// CircuitDirectMessage is routed between two services on the same
// circuit by the circuit fabric.
type CircuitDirectMessage struct {
	CircuitID     string
	Sender        string
	Recipient     string
	Payload       []byte
	CorrelationID string
}

// CircuitErrorCode enumerates the typed failures the routing handler can
// report back to the sending peer.
type CircuitErrorCode string

const (
	ErrCircuitDoesNotExist        CircuitErrorCode = "ERROR_CIRCUIT_DOES_NOT_EXIST"
	ErrSenderNotInCircuitRoster   CircuitErrorCode = "ERROR_SENDER_NOT_IN_CIRCUIT_ROSTER"
	ErrSenderNotInDirectory       CircuitErrorCode = "ERROR_SENDER_NOT_IN_DIRECTORY"
	ErrRecipientNotInRoster       CircuitErrorCode = "ERROR_RECIPIENT_NOT_IN_CIRCUIT_ROSTER"
	ErrRecipientNotInDirectory    CircuitErrorCode = "ERROR_RECIPIENT_NOT_IN_DIRECTORY"
)

// CircuitError is returned to source_peer when routing fails.
// CorrelationID echoes the triggering message's.
type CircuitError struct {
	CircuitID     string
	Code          CircuitErrorCode
	Message       string
	CorrelationID string
}

func (e *CircuitError) Error() string { return string(e.Code) + ": " + e.Message }

// AdminMessageType tags which phase of the proposal protocol an
// AdminMessage belongs to.
type AdminMessageType string

const (
	AdminMessageProposedCircuit  AdminMessageType = "PROPOSED_CIRCUIT"
	AdminMessageConsensusMessage AdminMessageType = "CONSENSUS_MESSAGE"
	AdminMessageMemberReady      AdminMessageType = "MEMBER_READY"
)

// AdminMessage is exchanged between admin services over the implicit
// admin circuit.
type AdminMessage struct {
	Type          AdminMessageType
	ProposalID    string
	SenderNodeID  string
	Payload       []byte
	Vote          *Vote `json:",omitempty"`
}

// Vote is a participant's acknowledgement within the two-phase commit
// round for a proposal.
type Vote struct {
	ProposalID string
	NodeID     string
	Approve    bool
}
