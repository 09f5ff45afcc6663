package admin

import (
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/gridfabric/pkg/fabric"
	"github.com/cuemby/gridfabric/pkg/fabric/wire"
	"github.com/cuemby/gridfabric/pkg/fabriperr"
	"github.com/cuemby/gridfabric/pkg/log"
	"github.com/cuemby/gridfabric/pkg/metrics"
)

// DefaultCoordinatorTimeout is how long a coordinator waits for every
// required verifier to acknowledge a proposal before aborting it (spec
// §4.6 step 4).
const DefaultCoordinatorTimeout = 30 * time.Second

// Broadcaster delivers an AdminMessage to another node's admin service
// (service id admin::<node_id>) over the implicit admin circuit.
type Broadcaster interface {
	Send(nodeID string, msg *wire.AdminMessage) error
}

// Orchestrator starts the services a newly-committed circuit assigns to
// the local node.
type Orchestrator interface {
	StartServices(circuit *fabric.Circuit, localNode string) error
}

// AuthorizationCallbackError is returned from OnPeerAuthorized when the
// admin service's shared lock is poisoned; the caller must not retry it.
type AuthorizationCallbackError struct {
	PeerID string
	Cause  error
}

func (e *AuthorizationCallbackError) Error() string {
	return fmt.Sprintf("admin: authorization callback for peer %s: %v", e.PeerID, e.Cause)
}

func (e *AuthorizationCallbackError) Unwrap() error { return e.Cause }

type coordinatingProposal struct {
	proposal *Proposal
	acked    map[string]bool
	timer    *time.Timer
	done     bool
}

type participantRecord struct {
	coordinator string
	circuit     *fabric.Circuit
}

// Service is one node's admin service instance: coordinator for proposals
// it originates, participant for proposals other nodes originate, and the
// event mailbox and peer-authorization coupling that ties the two together.
type Service struct {
	nodeID             string
	state              *fabric.SplinterState
	mailbox            *Mailbox
	broadcaster        Broadcaster
	orchestrator       Orchestrator
	coordinatorTimeout time.Duration

	mu          sync.Mutex
	poisoned    bool
	coordinated map[string]*coordinatingProposal // proposal id -> coordinator state
	participant map[string]*participantRecord    // proposal id -> participant state
	proposalCircuit map[string]string            // proposal id -> circuit id
	memberReady map[string]map[string]bool       // circuit id -> node id -> ready
}

// NewService creates an admin Service for nodeID.
func NewService(nodeID string, state *fabric.SplinterState, mailbox *Mailbox, broadcaster Broadcaster, orchestrator Orchestrator) *Service {
	return &Service{
		nodeID:             nodeID,
		state:              state,
		mailbox:            mailbox,
		broadcaster:        broadcaster,
		orchestrator:       orchestrator,
		coordinatorTimeout: DefaultCoordinatorTimeout,
		coordinated:        make(map[string]*coordinatingProposal),
		participant:        make(map[string]*participantRecord),
		proposalCircuit:    make(map[string]string),
		memberReady:        make(map[string]map[string]bool),
	}
}

// withLock runs fn holding the admin mutex, converting a panic into the
// poisoned-lock state instead of letting it escape: admin shared state uses
// a single mutex, and poisoning surfaces as a typed error rather than
// panicking the process.
func (s *Service) withLock(fn func() error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.poisoned {
		return fabriperr.ErrPoisonedLock
	}
	defer func() {
		if r := recover(); r != nil {
			s.poisoned = true
			err = fmt.Errorf("admin: %v: %w", r, fabriperr.ErrPoisonedLock)
		}
	}()
	return fn()
}

// Propose begins the proposal protocol for circuit: every member other
// than the local node is a required verifier, and a PROPOSED_CIRCUIT
// message is sent to each.
func (s *Service) Propose(circuit *fabric.Circuit) (*Proposal, error) {
	payload := &CircuitManagementPayload{Action: ActionCircuitCreateRequest, Circuit: circuit}
	encoded, err := EncodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("admin: encode proposal payload: %w", err)
	}

	verifiers := otherMembers(circuit.Members, s.nodeID)
	proposal := NewProposal(encoded, circuit, verifiers)

	err = s.withLock(func() error {
		s.coordinated[proposal.ID] = &coordinatingProposal{
			proposal: proposal,
			acked:    make(map[string]bool, len(verifiers)),
		}
		s.proposalCircuit[proposal.ID] = circuit.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PendingVerifiers.Set(float64(len(verifiers)))
	timer := metrics.NewTimer()

	for _, v := range verifiers {
		msg := &wire.AdminMessage{
			Type:         wire.AdminMessageProposedCircuit,
			ProposalID:   proposal.ID,
			SenderNodeID: s.nodeID,
			Payload:      encoded,
		}
		if err := s.broadcaster.Send(v, msg); err != nil {
			log.WithCircuit(circuit.ID).Warn().Err(err).Str("verifier", v).Msg("failed to broadcast PROPOSED_CIRCUIT")
		}
	}

	if len(verifiers) == 0 {
		// Sole member: nothing to wait for, commit immediately.
		s.commitAsCoordinator(proposal.ID)
		metrics.ProposalsTotal.WithLabelValues("committed").Inc()
		timer.ObserveDuration(metrics.ProposalCommitDuration)
		return proposal, nil
	}

	s.startTimeoutLocked(proposal.ID, timer)
	return proposal, nil
}

func (s *Service) startTimeoutLocked(proposalID string, timer *metrics.Timer) {
	t := time.AfterFunc(s.coordinatorTimeout, func() {
		aborted := false
		_ = s.withLock(func() error {
			cp, ok := s.coordinated[proposalID]
			if !ok || cp.done {
				return nil
			}
			cp.done = true
			aborted = true
			return nil
		})
		if aborted {
			s.abort(proposalID, "coordinator timeout")
			metrics.ProposalsTotal.WithLabelValues("aborted_timeout").Inc()
			timer.ObserveDuration(metrics.ProposalCommitDuration)
		}
	})
	s.mu.Lock()
	if cp, ok := s.coordinated[proposalID]; ok {
		cp.timer = t
	}
	s.mu.Unlock()
}

// RecordVote registers a verifier's acknowledgement of a proposal this
// node coordinates, via a CONSENSUS_MESSAGE exchange. Once every required
// verifier has approved, the proposal commits.
func (s *Service) RecordVote(proposalID, verifierNode string, approve bool) error {
	commit, reject := false, false
	err := s.withLock(func() error {
		cp, ok := s.coordinated[proposalID]
		if !ok || cp.done {
			return nil
		}
		if !approve {
			cp.done = true
			reject = true
			if cp.timer != nil {
				cp.timer.Stop()
			}
			return nil
		}
		cp.acked[verifierNode] = true
		metrics.PendingVerifiers.Set(float64(len(cp.proposal.RequiredVerifiers) - len(cp.acked)))
		for _, v := range cp.proposal.RequiredVerifiers {
			if !cp.acked[v] {
				return nil
			}
		}
		cp.done = true
		if cp.timer != nil {
			cp.timer.Stop()
		}
		commit = true
		return nil
	})
	if err != nil {
		return err
	}

	switch {
	case commit:
		s.commitAsCoordinator(proposalID)
		metrics.ProposalsTotal.WithLabelValues("committed").Inc()
	case reject:
		s.abort(proposalID, fmt.Sprintf("verifier %s rejected", verifierNode))
		metrics.ProposalsTotal.WithLabelValues("aborted_rejected").Inc()
	}
	return nil
}

func (s *Service) commitAsCoordinator(proposalID string) {
	s.mu.Lock()
	cp, ok := s.coordinated[proposalID]
	delete(s.coordinated, proposalID)
	s.mu.Unlock()
	if !ok {
		return
	}

	s.applyAndAnnounceReady(cp.proposal.ProposedCircuit)

	for _, v := range cp.proposal.RequiredVerifiers {
		msg := &wire.AdminMessage{
			Type:         wire.AdminMessageConsensusMessage,
			ProposalID:   proposalID,
			SenderNodeID: s.nodeID,
			Vote:         &wire.Vote{ProposalID: proposalID, NodeID: s.nodeID, Approve: true},
		}
		if err := s.broadcaster.Send(v, msg); err != nil {
			log.WithCircuit(cp.proposal.ProposedCircuit.ID).Warn().Err(err).Str("verifier", v).Msg("failed to broadcast commit")
		}
	}
}

func (s *Service) abort(proposalID, reason string) {
	s.mu.Lock()
	cp, ok := s.coordinated[proposalID]
	delete(s.coordinated, proposalID)
	s.mu.Unlock()

	circuitID := ""
	if ok {
		circuitID = cp.proposal.ProposedCircuit.ID
	}
	s.mailbox.Publish(Event{Type: EventProposalFailed, ProposalID: proposalID, CircuitID: circuitID, Detail: reason})
}

// HandleAdminMessage dispatches an inbound AdminMessage arriving over the
// admin circuit.
func (s *Service) HandleAdminMessage(msg *wire.AdminMessage) error {
	switch msg.Type {
	case wire.AdminMessageProposedCircuit:
		return s.handleProposedCircuit(msg)
	case wire.AdminMessageConsensusMessage:
		return s.handleConsensusMessage(msg)
	case wire.AdminMessageMemberReady:
		return s.handleMemberReady(msg)
	case "":
		return fabriperr.ErrUnsetMessageType
	default:
		return fabriperr.Wrap("admin message dispatch", fmt.Errorf("unrecognized type %q", msg.Type))
	}
}

func (s *Service) handleProposedCircuit(msg *wire.AdminMessage) error {
	payload, err := DecodePayload(msg.Payload)
	if err != nil {
		return fabriperr.Wrap("decode PROPOSED_CIRCUIT payload", err)
	}
	if payload.Circuit == nil || payload.Circuit.ID == "" {
		return fabriperr.Wrap("validate PROPOSED_CIRCUIT", fmt.Errorf("missing circuit"))
	}

	approve := true // local semantic checks against circuit state pass trivially here
	err = s.withLock(func() error {
		s.participant[msg.ProposalID] = &participantRecord{coordinator: msg.SenderNodeID, circuit: payload.Circuit}
		s.proposalCircuit[msg.ProposalID] = payload.Circuit.ID
		return nil
	})
	if err != nil {
		return err
	}

	return s.broadcaster.Send(msg.SenderNodeID, &wire.AdminMessage{
		Type:         wire.AdminMessageConsensusMessage,
		ProposalID:   msg.ProposalID,
		SenderNodeID: s.nodeID,
		Vote:         &wire.Vote{ProposalID: msg.ProposalID, NodeID: s.nodeID, Approve: approve},
	})
}

func (s *Service) handleConsensusMessage(msg *wire.AdminMessage) error {
	if msg.Vote == nil {
		return fabriperr.Wrap("handle CONSENSUS_MESSAGE", fmt.Errorf("missing vote"))
	}

	s.mu.Lock()
	_, isCoordinator := s.coordinated[msg.ProposalID]
	rec, isParticipant := s.participant[msg.ProposalID]
	s.mu.Unlock()

	switch {
	case isCoordinator:
		return s.RecordVote(msg.ProposalID, msg.Vote.NodeID, msg.Vote.Approve)
	case isParticipant && msg.SenderNodeID == rec.coordinator:
		// The coordinator's own vote in its commit broadcast: apply
		// locally and announce readiness.
		s.applyAndAnnounceReady(rec.circuit)
		return nil
	default:
		return nil
	}
}

func (s *Service) applyAndAnnounceReady(circuit *fabric.Circuit) {
	if err := s.state.AddCircuit(circuit); err != nil {
		log.WithCircuit(circuit.ID).Error().Err(err).Msg("failed to commit circuit to directory")
		return
	}
	if s.orchestrator != nil {
		if err := s.orchestrator.StartServices(circuit, s.nodeID); err != nil {
			log.WithCircuit(circuit.ID).Warn().Err(err).Msg("service orchestration failed on circuit commit")
		}
	}

	s.recordMemberReady(circuit.ID, s.nodeID)
	for _, member := range circuit.Members {
		if member == s.nodeID {
			continue
		}
		if err := s.broadcaster.Send(member, &wire.AdminMessage{
			Type:         wire.AdminMessageMemberReady,
			SenderNodeID: s.nodeID,
			ProposalID:   circuit.ID,
		}); err != nil {
			log.WithCircuit(circuit.ID).Warn().Err(err).Str("member", member).Msg("failed to broadcast MEMBER_READY")
		}
	}
}

func (s *Service) handleMemberReady(msg *wire.AdminMessage) error {
	s.mu.Lock()
	circuitID, ok := s.proposalCircuit[msg.ProposalID]
	s.mu.Unlock()
	if !ok {
		circuitID = msg.ProposalID // every member announces readiness keyed by circuit id directly
	}
	s.recordMemberReady(circuitID, msg.SenderNodeID)
	return nil
}

func (s *Service) recordMemberReady(circuitID, nodeID string) {
	circuit, ok := s.state.GetCircuit(circuitID)
	if !ok {
		return
	}

	allReady := false
	s.mu.Lock()
	ready, ok := s.memberReady[circuitID]
	if !ok {
		ready = make(map[string]bool)
		s.memberReady[circuitID] = ready
	}
	ready[nodeID] = true
	allReady = true
	for _, m := range circuit.Members {
		if !ready[m] {
			allReady = false
			break
		}
	}
	s.mu.Unlock()

	if allReady {
		s.mailbox.Publish(Event{Type: EventCircuitReady, CircuitID: circuitID})
	}
}

// OnPeerAuthorized is the callback for peerID becoming authorized. It
// re-evaluates no proposals: a proposal advances only on votes and ends
// on the coordinator timeout, and none waits on a peer's authorization.
// It returns *AuthorizationCallbackError when the admin lock is poisoned,
// and nil otherwise.
func (s *Service) OnPeerAuthorized(peerID string) error {
	err := s.withLock(func() error { return nil })
	if err != nil {
		return &AuthorizationCallbackError{PeerID: peerID, Cause: err}
	}
	return nil
}

// AdminServiceID builds the service id the admin service registers under
// on a given node.
func AdminServiceID(nodeID string) string {
	return fabric.AdminServicePrefix + nodeID
}

func otherMembers(members []string, self string) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		if m != self {
			out = append(out, m)
		}
	}
	return out
}
