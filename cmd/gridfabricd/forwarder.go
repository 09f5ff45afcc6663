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
)

// nodeForwarder implements fabric.Forwarder for this node: a
// CircuitDirectMessage addressed to this node's own admin service is
// handed directly to the admin Service; every other peer id is treated
// as a remote node and dialed.
type nodeForwarder struct {
	localNode string
	state     *fabric.SplinterState
	dialer    transport.Dialer
	adminSvc  *admin.Service
}

func newNodeForwarder(localNode string, state *fabric.SplinterState, adminSvc *admin.Service) *nodeForwarder {
	return &nodeForwarder{localNode: localNode, state: state, dialer: transport.NewGRPCDialer(), adminSvc: adminSvc}
}

func (f *nodeForwarder) Forward(peerID string, msg *wire.CircuitDirectMessage) error {
	if msg.CircuitID == fabric.AdminCircuitID && msg.Recipient == admin.AdminServiceID(f.localNode) {
		var adminMsg wire.AdminMessage
		if err := json.Unmarshal(msg.Payload, &adminMsg); err != nil {
			return fmt.Errorf("forwarder: decode admin message: %w", err)
		}
		return f.adminSvc.HandleAdminMessage(&adminMsg)
	}

	node, ok := f.state.GetNode(peerID)
	if !ok || len(node.Endpoints) == 0 {
		return fmt.Errorf("forwarder: no known endpoint for peer %s", peerID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	peer, err := f.dialer.Dial(ctx, node.Endpoints[0])
	if err != nil {
		return fmt.Errorf("forwarder: dial %s: %w", peerID, err)
	}
	defer peer.Close()
	return peer.Send(ctx, msg)
}
