/*
Package families defines the shared shape every transaction-processor
family implements: decode payload, resolve signer, check permission,
apply family-specific rules, commit. It also provides the dispatch
table a host process uses to route an incoming transaction to the
right family by name, as a registry of independently testable Family
implementations rather than a switch on an op string.
*/
package families

import (
	"fmt"

	"github.com/cuemby/gridfabric/pkg/log"
	"github.com/cuemby/gridfabric/pkg/txcontext"
)

// Request is one transaction to apply: its raw family-specific payload,
// the signer who submitted it, and its claimed timestamp. Handlers must
// never trust Timestamp for authorization, only for ordering of
// reported values.
type Request struct {
	Payload         []byte
	SignerPublicKey string
	Timestamp       uint64
}

// Family is the capability set every on-chain family implements.
type Family interface {
	Name() string
	Versions() []string
	Namespaces() []string
	Apply(req *Request, ctx *txcontext.Context) error
}

// Registry dispatches transactions to the Family registered for their
// family name.
type Registry struct {
	families map[string]Family
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{families: make(map[string]Family)}
}

// Register adds f to the registry, keyed by f.Name(). Registering a second
// Family under the same name replaces the first.
func (r *Registry) Register(f Family) {
	r.families[f.Name()] = f
}

// Names returns the family names currently registered, for startup
// banners and diagnostics.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.families))
	for name := range r.families {
		names = append(names, name)
	}
	return names
}

// Get returns the Family registered under name, if any.
func (r *Registry) Get(name string) (Family, bool) {
	f, ok := r.families[name]
	return f, ok
}

// Dispatch routes req to the Family named familyName.
func (r *Registry) Dispatch(familyName string, req *Request, ctx *txcontext.Context) error {
	f, ok := r.families[familyName]
	if !ok {
		return fmt.Errorf("families: no handler registered for family %q", familyName)
	}
	if err := f.Apply(req, ctx); err != nil {
		log.WithFamily(familyName).Warn().Err(err).Msg("transaction rejected")
		return err
	}
	return nil
}
