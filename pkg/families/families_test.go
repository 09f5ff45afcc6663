package families

import (
	"testing"

	"github.com/cuemby/gridfabric/pkg/txcontext"
)

type fakeFamily struct {
	name     string
	versions []string
	applied  int
}

func (f *fakeFamily) Name() string        { return f.name }
func (f *fakeFamily) Versions() []string   { return f.versions }
func (f *fakeFamily) Namespaces() []string { return []string{"aaaaaa"} }
func (f *fakeFamily) Apply(req *Request, ctx *txcontext.Context) error {
	f.applied++
	return nil
}

func TestRegistryDispatchRoutesToRegisteredFamily(t *testing.T) {
	r := NewRegistry()
	fake := &fakeFamily{name: "pike", versions: []string{"1.0"}}
	r.Register(fake)

	if err := r.Dispatch("pike", &Request{Payload: []byte("x")}, nil); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if fake.applied != 1 {
		t.Fatalf("expected Apply to be called once, got %d", fake.applied)
	}
}

func TestRegistryDispatchUnknownFamily(t *testing.T) {
	r := NewRegistry()
	if err := r.Dispatch("nope", &Request{}, nil); err == nil {
		t.Fatalf("expected error for unregistered family")
	}
}

func TestRegistryGetAndNames(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeFamily{name: "schema"})
	r.Register(&fakeFamily{name: "product"})

	if _, ok := r.Get("schema"); !ok {
		t.Fatalf("expected schema family to be registered")
	}
	if _, ok := r.Get("missing"); ok {
		t.Fatalf("did not expect missing family to be registered")
	}

	names := r.Names()
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %d", len(names))
	}
}

func TestRegistryRegisterReplacesSameName(t *testing.T) {
	r := NewRegistry()
	first := &fakeFamily{name: "pike"}
	second := &fakeFamily{name: "pike"}
	r.Register(first)
	r.Register(second)

	if err := r.Dispatch("pike", &Request{}, nil); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if first.applied != 0 || second.applied != 1 {
		t.Fatalf("expected only the second registration to handle dispatch, got first=%d second=%d", first.applied, second.applied)
	}
}
