package product

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

func TestCreateProduct(t *testing.T) {
	ctx := txcontext.New(txcontext.NewMemStore())
	seedAdmin(t, ctx, "org-1", "pk1")
	h := New()

	payload := &Payload{
		Action: ActionCreateProduct,
		CreateProduct: &CreateProductAction{
			ProductID:   "00614141000012",
			ProductType: ProductTypeGS1,
			Owner:       "org-1",
			Properties:  []PropertyValueInput{{Name: "weight", NumberValue: 100}},
		},
	}
	req := &families.Request{Payload: encode(t, payload), SignerPublicKey: "pk1"}
	if err := h.Apply(req, ctx); err != nil {
		t.Fatalf("create_product failed: %v", err)
	}
	products, err := h.loadProducts(ctx, "00614141000012")
	if err != nil {
		t.Fatal(err)
	}
	if _, found := container.Find(products, "00614141000012"); !found {
		t.Fatalf("expected product to be created")
	}
}

func TestDeleteProductRemovesEntry(t *testing.T) {
	ctx := txcontext.New(txcontext.NewMemStore())
	seedAdmin(t, ctx, "org-1", "pk1")
	h := New()

	create := &Payload{Action: ActionCreateProduct, CreateProduct: &CreateProductAction{ProductID: "p1", Owner: "org-1"}}
	if err := h.Apply(&families.Request{Payload: encode(t, create), SignerPublicKey: "pk1"}, ctx); err != nil {
		t.Fatal(err)
	}
	del := &Payload{Action: ActionDeleteProduct, DeleteProduct: &DeleteProductAction{ProductID: "p1"}}
	if err := h.Apply(&families.Request{Payload: encode(t, del), SignerPublicKey: "pk1"}, ctx); err != nil {
		t.Fatalf("delete_product failed: %v", err)
	}
	products, err := h.loadProducts(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if _, found := container.Find(products, "p1"); found {
		t.Fatalf("expected product removed")
	}
}

func TestCreateProductDeniedWithoutPermission(t *testing.T) {
	ctx := txcontext.New(txcontext.NewMemStore())
	h := New()
	payload := &Payload{Action: ActionCreateProduct, CreateProduct: &CreateProductAction{ProductID: "p1", Owner: "org-1"}}
	req := &families.Request{Payload: encode(t, payload), SignerPublicKey: "unknown"}
	if err := h.Apply(req, ctx); err == nil {
		t.Fatalf("expected create_product without an agent to fail")
	}
}
