package fabric

import (
	"github.com/cuemby/gridfabric/pkg/fabric/wire"
	"github.com/cuemby/gridfabric/pkg/log"
	"github.com/cuemby/gridfabric/pkg/metrics"
)

// Forwarder delivers a routed frame to a peer. Route never calls it for a
// message destined for a local service with no peer id yet; Route drops
// such a message itself.
type Forwarder interface {
	Forward(peerID string, msg *wire.CircuitDirectMessage) error
}

// Router implements the CircuitDirectMessage routing handler (spec
// §4.5): six ordered checks, then either a forward or a typed
// CircuitError back to the sender.
type Router struct {
	state      *SplinterState
	localNode  string
	forwarder  Forwarder
}

// NewRouter creates a Router for the node named localNode, forwarding
// accepted messages through forwarder.
func NewRouter(state *SplinterState, localNode string, forwarder Forwarder) *Router {
	return &Router{state: state, localNode: localNode, forwarder: forwarder}
}

func circuitError(circuitID string, code wire.CircuitErrorCode, message, correlationID string) *wire.CircuitError {
	return &wire.CircuitError{CircuitID: circuitID, Code: code, Message: message, CorrelationID: correlationID}
}

// Route applies six ordered checks to msg, arriving from sourcePeer, and
// either forwards it or returns a CircuitError to report to sourcePeer.
func (r *Router) Route(msg *wire.CircuitDirectMessage, sourcePeer string) *wire.CircuitError {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DirectMessageRoutingDuration)

	outcome := "forwarded"
	defer func() { metrics.DirectMessagesTotal.WithLabelValues(outcome).Inc() }()

	circuit, exists := r.state.GetCircuit(msg.CircuitID)
	if !exists {
		outcome = string(wire.ErrCircuitDoesNotExist)
		return circuitError(msg.CircuitID, wire.ErrCircuitDoesNotExist, "circuit does not exist", msg.CorrelationID)
	}

	senderInRoster := msg.CircuitID == AdminCircuitID && adminServiceInRoster(msg.Sender)
	if !senderInRoster {
		_, senderInRoster = circuit.ServiceInRoster(msg.Sender)
	}
	if !senderInRoster {
		outcome = string(wire.ErrSenderNotInCircuitRoster)
		return circuitError(msg.CircuitID, wire.ErrSenderNotInCircuitRoster, "sender not in circuit roster", msg.CorrelationID)
	}

	if _, senderKnown := r.state.LookupService(msg.CircuitID, msg.Sender); !senderKnown {
		outcome = string(wire.ErrSenderNotInDirectory)
		return circuitError(msg.CircuitID, wire.ErrSenderNotInDirectory, "sender not in service directory", msg.CorrelationID)
	}

	recipientInRoster := msg.CircuitID == AdminCircuitID && adminServiceInRoster(msg.Recipient)
	if !recipientInRoster {
		_, recipientInRoster = circuit.ServiceInRoster(msg.Recipient)
	}
	if !recipientInRoster {
		outcome = string(wire.ErrRecipientNotInRoster)
		return circuitError(msg.CircuitID, wire.ErrRecipientNotInRoster, "recipient not in circuit roster", msg.CorrelationID)
	}

	recipientRecord, recipientKnown := r.state.LookupService(msg.CircuitID, msg.Recipient)
	if !recipientKnown {
		outcome = string(wire.ErrRecipientNotInDirectory)
		return circuitError(msg.CircuitID, wire.ErrRecipientNotInDirectory, "recipient not in service directory", msg.CorrelationID)
	}

	if recipientRecord.NodeID != r.localNode {
		if err := r.forwarder.Forward(recipientRecord.NodeID, msg); err != nil {
			log.WithCircuit(msg.CircuitID).Warn().Err(err).Str("recipient_node", recipientRecord.NodeID).Msg("failed to forward to remote node")
		}
		return nil
	}

	if recipientRecord.PeerID == "" {
		outcome = "dropped_unattached"
		log.WithCircuit(msg.CircuitID).Warn().Str("recipient", msg.Recipient).Msg("dropping message: recipient not yet attached")
		return nil
	}
	if err := r.forwarder.Forward(recipientRecord.PeerID, msg); err != nil {
		log.WithCircuit(msg.CircuitID).Warn().Err(err).Str("recipient_peer", recipientRecord.PeerID).Msg("failed to forward locally")
	}
	return nil
}
