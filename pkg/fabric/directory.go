package fabric

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/gridfabric/pkg/log"
)

// AdminCircuitID names the implicit circuit the admin service uses to
// exchange consensus messages. It has no explicit members and is never
// persisted; any service whose id starts with AdminServicePrefix is
// considered part of its roster.
const AdminCircuitID = "admin"

// AdminServicePrefix identifies admin services by their service id.
const AdminServicePrefix = "admin::"

type persistedDirectory struct {
	Circuits map[string]*Circuit `yaml:"circuits"`
	Nodes    map[string]*Node    `yaml:"nodes"`
}

// SplinterState holds the circuit fabric's directory: a persisted map of
// circuits and nodes, and an in-memory map of where services currently
// live. Concurrency: directory mutations take a write lock; reads take a
// read lock; a committing write persists the directory before releasing
// the lock.
type SplinterState struct {
	dataDir string

	mu       sync.RWMutex
	circuits map[string]*Circuit
	nodes    map[string]*Node
	services map[string]*ServiceRecord // key: circuitID + "/" + serviceID
}

func directoryPath(dataDir string) string {
	return dataDir + "/circuits.yaml"
}

// NewSplinterState loads a persisted directory from dataDir/circuits.yaml
// if present, or starts empty.
func NewSplinterState(dataDir string) (*SplinterState, error) {
	s := &SplinterState{
		dataDir:  dataDir,
		circuits: make(map[string]*Circuit),
		nodes:    make(map[string]*Node),
		services: make(map[string]*ServiceRecord),
	}

	data, err := os.ReadFile(directoryPath(dataDir))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("fabric: read directory: %w", err)
	}

	var persisted persistedDirectory
	if err := yaml.Unmarshal(data, &persisted); err != nil {
		return nil, fmt.Errorf("fabric: decode directory: %w", err)
	}
	if persisted.Circuits != nil {
		s.circuits = persisted.Circuits
	}
	if persisted.Nodes != nil {
		s.nodes = persisted.Nodes
	}
	return s, nil
}

// persistLocked writes the directory to disk. Caller must hold mu for
// writing.
func (s *SplinterState) persistLocked() error {
	if s.dataDir == "" {
		return nil
	}
	data, err := yaml.Marshal(persistedDirectory{Circuits: s.circuits, Nodes: s.nodes})
	if err != nil {
		return fmt.Errorf("fabric: encode directory: %w", err)
	}
	if err := os.WriteFile(directoryPath(s.dataDir), data, 0o600); err != nil {
		return fmt.Errorf("fabric: write directory: %w", err)
	}
	return nil
}

// AddCircuit registers a new circuit, persisting the directory before
// releasing the write lock.
func (s *SplinterState) AddCircuit(c *Circuit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.circuits[c.ID] = c
	if err := s.persistLocked(); err != nil {
		return err
	}
	log.WithCircuit(c.ID).Info().Msg("circuit added to directory")
	return nil
}

// RemoveCircuit retires a circuit.
func (s *SplinterState) RemoveCircuit(circuitID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.circuits, circuitID)
	return s.persistLocked()
}

// GetCircuit returns the circuit named circuitID, synthesizing the
// implicit admin circuit if asked for it.
func (s *SplinterState) GetCircuit(circuitID string) (*Circuit, bool) {
	if circuitID == AdminCircuitID {
		return adminCircuit(), true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.circuits[circuitID]
	return c, ok
}

func adminCircuit() *Circuit {
	return &Circuit{ID: AdminCircuitID, ManagementType: "admin"}
}

// adminServiceInRoster reports whether serviceID belongs on the admin
// circuit by its reserved prefix, since the admin circuit has no
// persisted roster.
func adminServiceInRoster(serviceID string) bool {
	return strings.HasPrefix(serviceID, AdminServicePrefix)
}

// AddNode registers a node's endpoints.
func (s *SplinterState) AddNode(n *Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[n.NodeID] = n
	return s.persistLocked()
}

// GetNode returns the node named nodeID.
func (s *SplinterState) GetNode(nodeID string) (*Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[nodeID]
	return n, ok
}

// ListNodes returns every registered node.
func (s *SplinterState) ListNodes() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	return out
}

func serviceKey(circuitID, serviceID string) string { return circuitID + "/" + serviceID }

// RegisterService records where a service currently lives. PeerID may be
// empty for a service that hasn't attached yet.
func (s *SplinterState) RegisterService(rec *ServiceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[serviceKey(rec.CircuitID, rec.ServiceID)] = rec
}

// UnregisterService removes a service's directory entry.
func (s *SplinterState) UnregisterService(circuitID, serviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.services, serviceKey(circuitID, serviceID))
}

// LookupService returns the ServiceRecord for (circuitID, serviceID).
func (s *SplinterState) LookupService(circuitID, serviceID string) (*ServiceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.services[serviceKey(circuitID, serviceID)]
	return rec, ok
}
