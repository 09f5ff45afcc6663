package trackandtrace

import (
	"encoding/json"
	"testing"

	"github.com/cuemby/gridfabric/pkg/address"
	"github.com/cuemby/gridfabric/pkg/container"
	"github.com/cuemby/gridfabric/pkg/families"
	"github.com/cuemby/gridfabric/pkg/grid"
	"github.com/cuemby/gridfabric/pkg/txcontext"
)

func seedSchema(t *testing.T, ctx *txcontext.Context, name string) {
	t.Helper()
	encoded, err := container.Encode([]*grid.Schema{{Name: name, OwnerOrgID: "org-1"}})
	if err != nil {
		t.Fatal(err)
	}
	if err := ctx.Set(map[string][]byte{address.SchemaAddress(name): encoded}); err != nil {
		t.Fatal(err)
	}
}

func encodeTT(t *testing.T, p *Payload) []byte {
	t.Helper()
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestCreateRecordRequiresExistingSchema(t *testing.T) {
	ctx := txcontext.New(txcontext.NewMemStore())
	h := New()
	payload := &Payload{Action: ActionCreateRecord, CreateRecord: &CreateRecordAction{RecordID: "r1", SchemaName: "widget"}}
	req := &families.Request{Payload: encodeTT(t, payload), SignerPublicKey: "pk1"}
	if err := h.Apply(req, ctx); err == nil {
		t.Fatalf("expected create_record without schema to fail")
	}
}

func TestCreateRecordSeedsSignerAsOwnerAndCustodian(t *testing.T) {
	ctx := txcontext.New(txcontext.NewMemStore())
	seedSchema(t, ctx, "widget")
	h := New()
	payload := &Payload{Action: ActionCreateRecord, CreateRecord: &CreateRecordAction{RecordID: "r1", SchemaName: "widget"}}
	req := &families.Request{Payload: encodeTT(t, payload), SignerPublicKey: "pk1"}
	if err := h.Apply(req, ctx); err != nil {
		t.Fatalf("create_record failed: %v", err)
	}
	records, err := h.loadRecords(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	r, found := container.Find(records, "r1")
	if !found || !contains(r.Owners, "pk1") || !contains(r.Custodians, "pk1") {
		t.Fatalf("expected pk1 seeded as owner and custodian, got %+v", r)
	}
}

func TestProposalAcceptTransfersOwnership(t *testing.T) {
	ctx := txcontext.New(txcontext.NewMemStore())
	seedSchema(t, ctx, "widget")
	h := New()

	create := &Payload{Action: ActionCreateRecord, CreateRecord: &CreateRecordAction{RecordID: "r1", SchemaName: "widget"}}
	if err := h.Apply(&families.Request{Payload: encodeTT(t, create), SignerPublicKey: "pk1"}, ctx); err != nil {
		t.Fatal(err)
	}

	propose := &Payload{Action: ActionCreateProposal, CreateProposal: &CreateProposalAction{RecordID: "r1", ReceivingAgent: "pk2", Role: RoleOwner}}
	if err := h.Apply(&families.Request{Payload: encodeTT(t, propose), SignerPublicKey: "pk1"}, ctx); err != nil {
		t.Fatalf("create_proposal failed: %v", err)
	}

	answer := &Payload{Action: ActionAnswerProposal, AnswerProposal: &AnswerProposalAction{RecordID: "r1", ReceivingAgent: "pk2", Response: ResponseAccept}}
	if err := h.Apply(&families.Request{Payload: encodeTT(t, answer), SignerPublicKey: "pk2"}, ctx); err != nil {
		t.Fatalf("answer_proposal failed: %v", err)
	}

	records, err := h.loadRecords(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	r, _ := container.Find(records, "r1")
	if !contains(r.Owners, "pk2") {
		t.Fatalf("expected pk2 added as owner, got %+v", r.Owners)
	}

	proposals, err := h.loadProposals(ctx, "r1", "pk2")
	if err != nil {
		t.Fatal(err)
	}
	if _, found := container.Find(proposals, "r1:pk2"); found {
		t.Fatalf("expected proposal removed after accept")
	}
}

func TestUpdatePropertiesRollsPageOnSaturation(t *testing.T) {
	ctx := txcontext.New(txcontext.NewMemStore())
	seedSchema(t, ctx, "widget")
	h := New()
	create := &Payload{Action: ActionCreateRecord, CreateRecord: &CreateRecordAction{RecordID: "r1", SchemaName: "widget"}}
	if err := h.Apply(&families.Request{Payload: encodeTT(t, create), SignerPublicKey: "pk1"}, ctx); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < grid.MaxPageValues+1; i++ {
		update := &Payload{Action: ActionUpdateProperties, UpdateProperties: &UpdatePropertiesAction{
			RecordID: "r1",
			Updates:  []ReportedValueInput{{Name: "temperature", NumberValue: int64(i)}},
		}}
		if err := h.Apply(&families.Request{Payload: encodeTT(t, update), SignerPublicKey: "pk1"}, ctx); err != nil {
			t.Fatalf("update_properties[%d] failed: %v", i, err)
		}
	}

	props, err := h.loadProperties(ctx, "r1", "temperature")
	if err != nil {
		t.Fatal(err)
	}
	prop, found := container.Find(props, "r1:temperature")
	if !found {
		t.Fatalf("expected property to exist")
	}
	if prop.CurrentPage != 1 {
		t.Fatalf("expected roll to page 1, got page %d", prop.CurrentPage)
	}
	if prop.NumUpdates != uint64(grid.MaxPageValues+1) {
		t.Fatalf("expected %d updates recorded, got %d", grid.MaxPageValues+1, prop.NumUpdates)
	}
}

func TestFinalizeRecordRejectsNonOwner(t *testing.T) {
	ctx := txcontext.New(txcontext.NewMemStore())
	seedSchema(t, ctx, "widget")
	h := New()
	create := &Payload{Action: ActionCreateRecord, CreateRecord: &CreateRecordAction{RecordID: "r1", SchemaName: "widget"}}
	if err := h.Apply(&families.Request{Payload: encodeTT(t, create), SignerPublicKey: "pk1"}, ctx); err != nil {
		t.Fatal(err)
	}
	finalize := &Payload{Action: ActionFinalizeRecord, FinalizeRecord: &FinalizeRecordAction{RecordID: "r1"}}
	if err := h.Apply(&families.Request{Payload: encodeTT(t, finalize), SignerPublicKey: "pk2"}, ctx); err == nil {
		t.Fatalf("expected non-owner finalize to fail")
	}
}
