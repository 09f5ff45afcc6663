package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuemby/gridfabric/pkg/admin"
	"github.com/cuemby/gridfabric/pkg/fabric"
	"github.com/cuemby/gridfabric/pkg/fabric/transport"
	"github.com/cuemby/gridfabric/pkg/fabric/wire"
	"github.com/cuemby/gridfabric/pkg/log"
)

// fabricBroadcaster implements admin.Broadcaster by wrapping each
// AdminMessage in a CircuitDirectMessage on the implicit admin circuit
// and dialing the recipient node directly — admin messages ride the
// same circuit fabric that routes ordinary direct messages.
type fabricBroadcaster struct {
	localNode string
	state     *fabric.SplinterState
	dialer    transport.Dialer
}

func newFabricBroadcaster(localNode string, state *fabric.SplinterState) *fabricBroadcaster {
	return &fabricBroadcaster{localNode: localNode, state: state, dialer: transport.NewGRPCDialer()}
}

func (b *fabricBroadcaster) Send(nodeID string, msg *wire.AdminMessage) error {
	node, ok := b.state.GetNode(nodeID)
	if !ok || len(node.Endpoints) == 0 {
		return fmt.Errorf("broadcaster: no known endpoint for node %s", nodeID)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("broadcaster: encode admin message: %w", err)
	}

	frame := &wire.CircuitDirectMessage{
		CircuitID: fabric.AdminCircuitID,
		Sender:    admin.AdminServiceID(b.localNode),
		Recipient: admin.AdminServiceID(nodeID),
		Payload:   payload,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	peer, err := b.dialer.Dial(ctx, node.Endpoints[0])
	if err != nil {
		return fmt.Errorf("broadcaster: dial %s: %w", nodeID, err)
	}
	defer peer.Close()

	if err := peer.Send(ctx, frame); err != nil {
		return fmt.Errorf("broadcaster: send to %s: %w", nodeID, err)
	}
	return nil
}

// logOrchestrator starts services for a newly-committed circuit by
// logging the intent to do so. Actually spawning family-handler service
// processes on commit isn't implemented here; a host embedding this
// daemon supplies a real Orchestrator.
type logOrchestrator struct{}

func (logOrchestrator) StartServices(circuit *fabric.Circuit, localNode string) error {
	var local []string
	for _, svc := range circuit.Roster {
		for _, n := range svc.AllowedNodes {
			if n == localNode {
				local = append(local, svc.ServiceID)
			}
		}
	}
	log.Logger.Info().Str("circuit", circuit.ID).Strs("services", local).Msg("circuit committed, services assigned to this node")
	return nil
}
