/*
Package admin implements the admin service: the proposal protocol, a
bespoke coordinator-timed two-phase commit (not a replicated-log
consensus), an in-memory event subscription mailbox, and the peer-
authorization coupling that lets pending proposals advance as peers
authenticate.
*/
package admin

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/cuemby/gridfabric/pkg/fabric"
)

// CircuitManagementAction tags the kind of change a CircuitManagementPayload
// proposes, standing in for the protobuf oneof the original wire format
// describes.
type CircuitManagementAction string

const (
	ActionCircuitCreateRequest CircuitManagementAction = "CIRCUIT_CREATE_REQUEST"
	ActionCircuitVoteRequest   CircuitManagementAction = "CIRCUIT_VOTE_REQUEST"
)

// CircuitManagementPayload is what a client submits to the local admin
// service to kick off the proposal protocol.
type CircuitManagementPayload struct {
	Action  CircuitManagementAction
	Circuit *fabric.Circuit
}

// EncodePayload serializes a CircuitManagementPayload for hashing and
// broadcast.
func EncodePayload(p *CircuitManagementPayload) ([]byte, error) {
	return json.Marshal(p)
}

// DecodePayload parses a previously-encoded CircuitManagementPayload.
func DecodePayload(raw []byte) (*CircuitManagementPayload, error) {
	var p CircuitManagementPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Proposal is the admin service's in-flight record of a
// CircuitManagementPayload working its way through two-phase commit (spec
// §4.6, step 2): id is the SHA-256 of the encoded payload, summary echoes
// that same digest as a human-checkable expected hash, and consensus_data
// names the verifiers whose acknowledgement the coordinator waits for.
type Proposal struct {
	ID                string
	Summary           string
	Payload           []byte
	ProposedCircuit   *fabric.Circuit
	RequiredVerifiers []string
	CreatedAt         time.Time
}

// NewProposal builds a Proposal from an encoded payload and the circuit it
// proposes, requiring an acknowledgement from each of requiredVerifiers
// before it can commit.
func NewProposal(payload []byte, circuit *fabric.Circuit, requiredVerifiers []string) *Proposal {
	sum := sha256.Sum256(payload)
	id := hex.EncodeToString(sum[:])
	return &Proposal{
		ID:                id,
		Summary:           id,
		Payload:           payload,
		ProposedCircuit:   circuit,
		RequiredVerifiers: requiredVerifiers,
		CreatedAt:         time.Now(),
	}
}
