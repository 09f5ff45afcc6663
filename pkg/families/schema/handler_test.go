package schema

import (
	"encoding/json"
	"testing"

	"github.com/cuemby/gridfabric/pkg/address"
	"github.com/cuemby/gridfabric/pkg/container"
	"github.com/cuemby/gridfabric/pkg/families"
	"github.com/cuemby/gridfabric/pkg/grid"
	"github.com/cuemby/gridfabric/pkg/txcontext"
)

func seedAdmin(t *testing.T, ctx *txcontext.Context, orgID, publicKey string) {
	t.Helper()
	encodedAgent, err := container.Encode([]*grid.Agent{{PublicKey: publicKey, OrgID: orgID, Active: true, Roles: []string{"admin"}}})
	if err != nil {
		t.Fatal(err)
	}
	if err := ctx.Set(map[string][]byte{address.AgentAddress(publicKey): encodedAgent}); err != nil {
		t.Fatal(err)
	}
	encodedRole, err := container.Encode([]*grid.Role{{OrgID: orgID, Name: "admin", Active: true}})
	if err != nil {
		t.Fatal(err)
	}
	if err := ctx.Set(map[string][]byte{address.RoleAddress(orgID, "admin"): encodedRole}); err != nil {
		t.Fatal(err)
	}
}

func encode(t *testing.T, p *Payload) []byte {
	t.Helper()
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestCreateSchema(t *testing.T) {
	ctx := txcontext.New(txcontext.NewMemStore())
	seedAdmin(t, ctx, "org-1", "pk1")
	h := New()

	payload := &Payload{
		Action: ActionCreateSchema,
		CreateSchema: &CreateSchemaAction{
			Name:       "widget",
			OwnerOrgID: "org-1",
			Properties: []PropertyDefinitionInput{{Name: "weight", DataType: "NUMBER"}},
		},
	}
	req := &families.Request{Payload: encode(t, payload), SignerPublicKey: "pk1"}
	if err := h.Apply(req, ctx); err != nil {
		t.Fatalf("create_schema failed: %v", err)
	}

	schemas, err := h.loadSchemas(ctx, "widget")
	if err != nil {
		t.Fatal(err)
	}
	s, found := container.Find(schemas, "widget")
	if !found || len(s.Properties) != 1 {
		t.Fatalf("expected widget schema with one property, got %+v", s)
	}
}

func TestCreateSchemaDuplicateNameFails(t *testing.T) {
	ctx := txcontext.New(txcontext.NewMemStore())
	seedAdmin(t, ctx, "org-1", "pk1")
	h := New()

	payload := &Payload{
		Action:       ActionCreateSchema,
		CreateSchema: &CreateSchemaAction{Name: "widget", OwnerOrgID: "org-1"},
	}
	req := &families.Request{Payload: encode(t, payload), SignerPublicKey: "pk1"}
	if err := h.Apply(req, ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.Apply(req, ctx); err == nil {
		t.Fatalf("expected duplicate schema create to fail")
	}
}

func TestUpdateSchemaAppendsWithoutCollision(t *testing.T) {
	ctx := txcontext.New(txcontext.NewMemStore())
	seedAdmin(t, ctx, "org-1", "pk1")
	h := New()

	create := &Payload{
		Action: ActionCreateSchema,
		CreateSchema: &CreateSchemaAction{
			Name:       "widget",
			OwnerOrgID: "org-1",
			Properties: []PropertyDefinitionInput{{Name: "weight", DataType: "NUMBER"}},
		},
	}
	if err := h.Apply(&families.Request{Payload: encode(t, create), SignerPublicKey: "pk1"}, ctx); err != nil {
		t.Fatal(err)
	}

	update := &Payload{
		Action: ActionUpdateSchema,
		UpdateSchema: &UpdateSchemaAction{
			Name:          "widget",
			AddProperties: []PropertyDefinitionInput{{Name: "color", DataType: "STRING"}},
		},
	}
	if err := h.Apply(&families.Request{Payload: encode(t, update), SignerPublicKey: "pk1"}, ctx); err != nil {
		t.Fatalf("update_schema failed: %v", err)
	}

	schemas, err := h.loadSchemas(ctx, "widget")
	if err != nil {
		t.Fatal(err)
	}
	s, _ := container.Find(schemas, "widget")
	if len(s.Properties) != 2 {
		t.Fatalf("expected 2 properties after append, got %d", len(s.Properties))
	}
}

func TestUpdateSchemaRejectsNameCollision(t *testing.T) {
	ctx := txcontext.New(txcontext.NewMemStore())
	seedAdmin(t, ctx, "org-1", "pk1")
	h := New()

	create := &Payload{
		Action: ActionCreateSchema,
		CreateSchema: &CreateSchemaAction{
			Name:       "widget",
			OwnerOrgID: "org-1",
			Properties: []PropertyDefinitionInput{{Name: "weight", DataType: "NUMBER"}},
		},
	}
	if err := h.Apply(&families.Request{Payload: encode(t, create), SignerPublicKey: "pk1"}, ctx); err != nil {
		t.Fatal(err)
	}

	update := &Payload{
		Action: ActionUpdateSchema,
		UpdateSchema: &UpdateSchemaAction{
			Name:          "widget",
			AddProperties: []PropertyDefinitionInput{{Name: "weight", DataType: "STRING"}},
		},
	}
	if err := h.Apply(&families.Request{Payload: encode(t, update), SignerPublicKey: "pk1"}, ctx); err == nil {
		t.Fatalf("expected property name collision to fail")
	}
}
