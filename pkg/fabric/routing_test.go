package fabric

import (
	"testing"

	"github.com/cuemby/gridfabric/pkg/fabric/wire"
)

type recordingForwarder struct {
	peerID string
	msg    *wire.CircuitDirectMessage
	calls  int
}

func (f *recordingForwarder) Forward(peerID string, msg *wire.CircuitDirectMessage) error {
	f.peerID = peerID
	f.msg = msg
	f.calls++
	return nil
}

func newTestCircuit(id string, services ...string) *Circuit {
	roster := make([]ServiceDefinition, len(services))
	for i, s := range services {
		roster[i] = ServiceDefinition{ServiceID: s}
	}
	return &Circuit{ID: id, Roster: roster}
}

func TestRouteCircuitDoesNotExist(t *testing.T) {
	state, err := NewSplinterState("")
	if err != nil {
		t.Fatal(err)
	}
	fw := &recordingForwarder{}
	router := NewRouter(state, "node-1", fw)

	cerr := router.Route(&wire.CircuitDirectMessage{CircuitID: "missing", Sender: "a", Recipient: "b"}, "peer-1")
	if cerr == nil || cerr.Code != wire.ErrCircuitDoesNotExist {
		t.Fatalf("expected ERROR_CIRCUIT_DOES_NOT_EXIST, got %+v", cerr)
	}
}

func TestRouteSenderNotInRoster(t *testing.T) {
	state, _ := NewSplinterState("")
	state.AddCircuit(newTestCircuit("c1", "svc-b"))
	fw := &recordingForwarder{}
	router := NewRouter(state, "node-1", fw)

	cerr := router.Route(&wire.CircuitDirectMessage{CircuitID: "c1", Sender: "svc-a", Recipient: "svc-b"}, "peer-1")
	if cerr == nil || cerr.Code != wire.ErrSenderNotInCircuitRoster {
		t.Fatalf("expected ERROR_SENDER_NOT_IN_CIRCUIT_ROSTER, got %+v", cerr)
	}
}

func TestRouteSenderNotInDirectory(t *testing.T) {
	state, _ := NewSplinterState("")
	state.AddCircuit(newTestCircuit("c1", "svc-a", "svc-b"))
	fw := &recordingForwarder{}
	router := NewRouter(state, "node-1", fw)

	cerr := router.Route(&wire.CircuitDirectMessage{CircuitID: "c1", Sender: "svc-a", Recipient: "svc-b"}, "peer-1")
	if cerr == nil || cerr.Code != wire.ErrSenderNotInDirectory {
		t.Fatalf("expected ERROR_SENDER_NOT_IN_DIRECTORY, got %+v", cerr)
	}
}

func TestRouteRecipientNotInRoster(t *testing.T) {
	state, _ := NewSplinterState("")
	state.AddCircuit(newTestCircuit("c1", "svc-a"))
	state.RegisterService(&ServiceRecord{ServiceID: "svc-a", CircuitID: "c1", NodeID: "node-1"})
	fw := &recordingForwarder{}
	router := NewRouter(state, "node-1", fw)

	cerr := router.Route(&wire.CircuitDirectMessage{CircuitID: "c1", Sender: "svc-a", Recipient: "svc-missing"}, "peer-1")
	if cerr == nil || cerr.Code != wire.ErrRecipientNotInRoster {
		t.Fatalf("expected ERROR_RECIPIENT_NOT_IN_CIRCUIT_ROSTER, got %+v", cerr)
	}
}

func TestRouteRecipientNotInDirectory(t *testing.T) {
	state, _ := NewSplinterState("")
	state.AddCircuit(newTestCircuit("c1", "svc-a", "svc-b"))
	state.RegisterService(&ServiceRecord{ServiceID: "svc-a", CircuitID: "c1", NodeID: "node-1"})
	fw := &recordingForwarder{}
	router := NewRouter(state, "node-1", fw)

	cerr := router.Route(&wire.CircuitDirectMessage{CircuitID: "c1", Sender: "svc-a", Recipient: "svc-b"}, "peer-1")
	if cerr == nil || cerr.Code != wire.ErrRecipientNotInDirectory {
		t.Fatalf("expected ERROR_RECIPIENT_NOT_IN_DIRECTORY, got %+v", cerr)
	}
}

func TestRouteForwardsToRemoteNode(t *testing.T) {
	state, _ := NewSplinterState("")
	state.AddCircuit(newTestCircuit("c1", "svc-a", "svc-b"))
	state.RegisterService(&ServiceRecord{ServiceID: "svc-a", CircuitID: "c1", NodeID: "node-1"})
	state.RegisterService(&ServiceRecord{ServiceID: "svc-b", CircuitID: "c1", NodeID: "node-2"})
	fw := &recordingForwarder{}
	router := NewRouter(state, "node-1", fw)

	cerr := router.Route(&wire.CircuitDirectMessage{CircuitID: "c1", Sender: "svc-a", Recipient: "svc-b", CorrelationID: "corr-1"}, "peer-1")
	if cerr != nil {
		t.Fatalf("expected no error, got %+v", cerr)
	}
	if fw.calls != 1 || fw.peerID != "node-2" {
		t.Fatalf("expected one forward to node-2, got %d calls to %q", fw.calls, fw.peerID)
	}
}

func TestRouteForwardsToLocalPeer(t *testing.T) {
	state, _ := NewSplinterState("")
	state.AddCircuit(newTestCircuit("c1", "svc-a", "svc-b"))
	state.RegisterService(&ServiceRecord{ServiceID: "svc-a", CircuitID: "c1", NodeID: "node-1"})
	state.RegisterService(&ServiceRecord{ServiceID: "svc-b", CircuitID: "c1", NodeID: "node-1", PeerID: "peer-svc-b"})
	fw := &recordingForwarder{}
	router := NewRouter(state, "node-1", fw)

	cerr := router.Route(&wire.CircuitDirectMessage{CircuitID: "c1", Sender: "svc-a", Recipient: "svc-b"}, "peer-1")
	if cerr != nil {
		t.Fatalf("expected no error, got %+v", cerr)
	}
	if fw.calls != 1 || fw.peerID != "peer-svc-b" {
		t.Fatalf("expected one forward to peer-svc-b, got %d calls to %q", fw.calls, fw.peerID)
	}
}

func TestRouteDropsSilentlyWhenLocalServiceUnattached(t *testing.T) {
	state, _ := NewSplinterState("")
	state.AddCircuit(newTestCircuit("c1", "svc-a", "svc-b"))
	state.RegisterService(&ServiceRecord{ServiceID: "svc-a", CircuitID: "c1", NodeID: "node-1"})
	state.RegisterService(&ServiceRecord{ServiceID: "svc-b", CircuitID: "c1", NodeID: "node-1"})
	fw := &recordingForwarder{}
	router := NewRouter(state, "node-1", fw)

	cerr := router.Route(&wire.CircuitDirectMessage{CircuitID: "c1", Sender: "svc-a", Recipient: "svc-b"}, "peer-1")
	if cerr != nil {
		t.Fatalf("expected silent drop (nil error), got %+v", cerr)
	}
	if fw.calls != 0 {
		t.Fatalf("expected no forward for unattached local service, got %d calls", fw.calls)
	}
}

func TestAdminCircuitRosterMatchesPrefix(t *testing.T) {
	state, _ := NewSplinterState("")
	state.RegisterService(&ServiceRecord{ServiceID: "admin::node-1", CircuitID: AdminCircuitID, NodeID: "node-1"})
	state.RegisterService(&ServiceRecord{ServiceID: "admin::node-2", CircuitID: AdminCircuitID, NodeID: "node-2", PeerID: ""})
	fw := &recordingForwarder{}
	router := NewRouter(state, "node-1", fw)

	cerr := router.Route(&wire.CircuitDirectMessage{CircuitID: AdminCircuitID, Sender: "admin::node-1", Recipient: "admin::node-2"}, "peer-1")
	if cerr != nil {
		t.Fatalf("expected implicit admin circuit routing to succeed, got %+v", cerr)
	}
	if fw.calls != 1 || fw.peerID != "node-2" {
		t.Fatalf("expected forward to node-2, got %d calls to %q", fw.calls, fw.peerID)
	}
}
