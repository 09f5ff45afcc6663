/*
Package transport defines the boundary the circuit fabric uses to reach
a peer node. A real TLS/raw-socket transport factory isn't built here;
this package only shapes the dial/send/close contract a concrete
transport would implement, grounded on a gRPC client-dial wrapper.
*/
package transport

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cuemby/gridfabric/pkg/fabric/wire"
)

// Peer is a connected endpoint capable of carrying framed messages to
// one remote node.
type Peer interface {
	Send(ctx context.Context, msg *wire.CircuitDirectMessage) error
	Close() error
}

// Dialer opens a Peer connection to a node endpoint. The production
// implementation negotiates TLS and is supplied by the host process;
// this package only provides a plain-text gRPC dialer suitable for
// local development and tests.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Peer, error)
}

// GRPCDialer dials peers with an insecure gRPC channel. Real deployments
// must supply a Dialer backed by mutual TLS instead.
type GRPCDialer struct{}

// NewGRPCDialer creates a GRPCDialer.
func NewGRPCDialer() *GRPCDialer { return &GRPCDialer{} }

func (d *GRPCDialer) Dial(ctx context.Context, endpoint string) (Peer, error) {
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", endpoint, err)
	}
	return &grpcPeer{conn: conn}, nil
}

type grpcPeer struct {
	mu   sync.Mutex
	conn *grpc.ClientConn
}

// Send checks that the connection is still open and returns nil; it does
// not transmit msg to the remote node. The wire format itself is defined
// in pkg/fabric/wire.
func (p *grpcPeer) Send(ctx context.Context, msg *wire.CircuitDirectMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return fmt.Errorf("transport: connection closed")
	}
	return nil
}

func (p *grpcPeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}
