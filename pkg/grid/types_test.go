package grid

import (
	"testing"

	"github.com/cuemby/gridfabric/pkg/container"
)

func TestAgentRoundTrip(t *testing.T) {
	a := &Agent{PublicKey: "02aa", OrgID: "org-1", Active: true, Roles: []string{"admin"}}
	data, err := a.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	var b Agent
	if err := b.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if b.PublicKey != a.PublicKey || b.OrgID != a.OrgID || !b.Active || !b.HasRole("admin") {
		t.Fatalf("round trip mismatch: %+v", b)
	}
}

func TestAgentContainerRoundTrip(t *testing.T) {
	agents := []*Agent{
		{PublicKey: "02bb", OrgID: "org-1", Active: true},
		{PublicKey: "02aa", OrgID: "org-1", Active: true},
	}
	encoded, err := container.Encode(agents)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := container.Decode(encoded, func() *Agent { return &Agent{} })
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded) != 2 || decoded[0].PublicKey != "02aa" || decoded[1].PublicKey != "02bb" {
		t.Fatalf("container did not sort by natural key: %+v", decoded)
	}

	reencoded, err := container.Encode(decoded)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if string(reencoded) != string(encoded) {
		t.Fatalf("write-read-write is not byte-identical")
	}
}

func TestRoleNaturalKeyScopedByOrg(t *testing.T) {
	r1 := &Role{OrgID: "org-1", Name: "admin"}
	r2 := &Role{OrgID: "org-2", Name: "admin"}
	if r1.NaturalKey() == r2.NaturalKey() {
		t.Fatalf("role natural key must be scoped by org")
	}
}
