package admin

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/gridfabric/pkg/fabric"
	"github.com/cuemby/gridfabric/pkg/fabric/wire"
)

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []sentMessage
}

type sentMessage struct {
	nodeID string
	msg    *wire.AdminMessage
}

func (b *recordingBroadcaster) Send(nodeID string, msg *wire.AdminMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sentMessage{nodeID: nodeID, msg: msg})
	return nil
}

func (b *recordingBroadcaster) messagesTo(nodeID string) []*wire.AdminMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*wire.AdminMessage
	for _, s := range b.sent {
		if s.nodeID == nodeID {
			out = append(out, s.msg)
		}
	}
	return out
}

type noopOrchestrator struct {
	started []string
}

func (o *noopOrchestrator) StartServices(circuit *fabric.Circuit, localNode string) error {
	o.started = append(o.started, circuit.ID)
	return nil
}

func testCircuit() *fabric.Circuit {
	return &fabric.Circuit{
		ID:      "test_propose_circuit",
		Members: []string{"test-node", "other-node"},
		Roster: []fabric.ServiceDefinition{
			{ServiceID: "service-a", AllowedNodes: []string{"test-node"}},
			{ServiceID: "service-b", AllowedNodes: []string{"other-node"}},
		},
	}
}

// TestProposeSendsExactlyOnePROPOSEDCIRCUITToOtherMember exercises the
// admin proposal scenario: proposing test_propose_circuit with members
// {test-node, other-node} causes exactly one outbound admin message to
// admin::other-node of type PROPOSED_CIRCUIT whose payload decodes to a
// CIRCUIT_CREATE_REQUEST with the proposed circuit embedded byte-for-byte.
func TestProposeSendsExactlyOnePROPOSEDCIRCUITToOtherMember(t *testing.T) {
	state, _ := fabric.NewSplinterState("")
	broadcaster := &recordingBroadcaster{}
	orchestrator := &noopOrchestrator{}
	svc := NewService("test-node", state, NewMailbox(), broadcaster, orchestrator)

	circuit := testCircuit()
	proposal, err := svc.Propose(circuit)
	if err != nil {
		t.Fatalf("Propose returned error: %v", err)
	}

	msgs := broadcaster.messagesTo("other-node")
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one message to other-node, got %d", len(msgs))
	}
	msg := msgs[0]
	if msg.Type != wire.AdminMessageProposedCircuit {
		t.Fatalf("expected PROPOSED_CIRCUIT, got %s", msg.Type)
	}
	if msg.ProposalID != proposal.ID {
		t.Fatalf("message proposal id %q does not match proposal %q", msg.ProposalID, proposal.ID)
	}

	decoded, err := DecodePayload(msg.Payload)
	if err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded.Action != ActionCircuitCreateRequest {
		t.Fatalf("expected CIRCUIT_CREATE_REQUEST, got %s", decoded.Action)
	}
	if decoded.Circuit.ID != circuit.ID || len(decoded.Circuit.Roster) != len(circuit.Roster) {
		t.Fatalf("embedded circuit does not match proposed circuit: %+v", decoded.Circuit)
	}
	wantCircuit, err := json.Marshal(circuit)
	if err != nil {
		t.Fatalf("failed to encode proposed circuit: %v", err)
	}
	gotCircuit, err := json.Marshal(decoded.Circuit)
	if err != nil {
		t.Fatalf("failed to encode embedded circuit: %v", err)
	}
	if !bytes.Equal(gotCircuit, wantCircuit) {
		t.Fatalf("embedded circuit is not byte-for-byte the proposed circuit:\n got %s\nwant %s", gotCircuit, wantCircuit)
	}

	if len(broadcaster.messagesTo("test-node")) != 0 {
		t.Fatalf("coordinator must not message itself")
	}
}

// TestFullTwoPhaseCommitAppliesCircuitAndDeliversCircuitReady walks the
// complete round trip: coordinator proposes, participant votes, the
// commit applies to both directories, and MEMBER_READY tracking delivers
// CircuitReady once every member has announced readiness.
func TestFullTwoPhaseCommitAppliesCircuitAndDeliversCircuitReady(t *testing.T) {
	coordState, _ := fabric.NewSplinterState("")
	coordMailbox := NewMailbox()
	participantState, _ := fabric.NewSplinterState("")
	participantMailbox := NewMailbox()

	bus := &loopbackBus{}
	coordinator := NewService("test-node", coordState, coordMailbox, bus, &noopOrchestrator{})
	participant := NewService("other-node", participantState, participantMailbox, bus, &noopOrchestrator{})
	bus.register("test-node", coordinator)
	bus.register("other-node", participant)

	circuit := testCircuit()
	proposal, err := coordinator.Propose(circuit)
	if err != nil {
		t.Fatalf("Propose returned error: %v", err)
	}

	if _, ok := coordState.GetCircuit(circuit.ID); !ok {
		t.Fatalf("coordinator never committed the circuit")
	}
	if _, ok := participantState.GetCircuit(circuit.ID); !ok {
		t.Fatalf("participant never committed the circuit")
	}

	since := proposal.CreatedAt.Add(-time.Second)
	found := false
	for _, mb := range []*Mailbox{coordMailbox, participantMailbox} {
		for _, evt := range mb.Since(since) {
			if evt.Type == EventCircuitReady && evt.CircuitID == circuit.ID {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected CircuitReady event on at least one member's mailbox once both applied")
	}
}

// TestTimeoutAbortsAndPublishesFailureEvent exercises the coordinator
// timeout path when a required verifier never acknowledges.
func TestTimeoutAbortsAndPublishesFailureEvent(t *testing.T) {
	state, _ := fabric.NewSplinterState("")
	mailbox := NewMailbox()
	svc := NewService("test-node", state, mailbox, &recordingBroadcaster{}, &noopOrchestrator{})
	svc.coordinatorTimeout = 10 * time.Millisecond

	circuit := testCircuit()
	before := time.Now().Add(-time.Second)
	if _, err := svc.Propose(circuit); err != nil {
		t.Fatalf("Propose returned error: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		for _, evt := range mailbox.Since(before) {
			if evt.Type == EventProposalFailed {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected ProposalFailed event after coordinator timeout")
}

func TestOnPeerAuthorizedReturnsTypedErrorWhenPoisoned(t *testing.T) {
	state, _ := fabric.NewSplinterState("")
	svc := NewService("test-node", state, NewMailbox(), &recordingBroadcaster{}, &noopOrchestrator{})

	func() {
		defer func() { recover() }()
		_ = svc.withLock(func() error { panic("simulated corruption") })
	}()

	err := svc.OnPeerAuthorized("peer-1")
	var authErr *AuthorizationCallbackError
	if err == nil {
		t.Fatalf("expected AuthorizationCallbackError once poisoned")
	}
	if !asAuthErr(err, &authErr) {
		t.Fatalf("expected *AuthorizationCallbackError, got %T", err)
	}
}

func asAuthErr(err error, target **AuthorizationCallbackError) bool {
	if e, ok := err.(*AuthorizationCallbackError); ok {
		*target = e
		return true
	}
	return false
}

// loopbackBus wires two in-process Services together so HandleAdminMessage
// runs synchronously on Send, modeling the fabric's delivery without a
// real transport.
type loopbackBus struct {
	mu       sync.Mutex
	services map[string]*Service
}

func (b *loopbackBus) register(nodeID string, svc *Service) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.services == nil {
		b.services = make(map[string]*Service)
	}
	b.services[nodeID] = svc
}

func (b *loopbackBus) Send(nodeID string, msg *wire.AdminMessage) error {
	b.mu.Lock()
	svc, ok := b.services[nodeID]
	b.mu.Unlock()
	if !ok {
		return nil
	}
	return svc.HandleAdminMessage(msg)
}
