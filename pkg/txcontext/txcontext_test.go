package txcontext

import "testing"

func TestGetSetWithinTransaction(t *testing.T) {
	ctx := New(NewMemStore())

	if _, ok, err := ctx.Get("addr1"); err != nil || ok {
		t.Fatalf("absent address should read as not-found, got ok=%v err=%v", ok, err)
	}

	if err := ctx.Set(map[string][]byte{"addr1": []byte("hello")}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	data, ok, err := ctx.Get("addr1")
	if err != nil || !ok || string(data) != "hello" {
		t.Fatalf("Get after Set = %q, %v, %v", data, ok, err)
	}
}

func TestDeleteReturnsOnlyRemoved(t *testing.T) {
	store := NewMemStore()
	if err := store.Set(map[string][]byte{"addr1": []byte("x")}); err != nil {
		t.Fatal(err)
	}
	ctx := New(store)

	removed, err := ctx.Delete([]string{"addr1", "addr2"})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(removed) != 1 || removed[0] != "addr1" {
		t.Fatalf("Delete returned %v, want only addr1", removed)
	}
}

func TestCommitFlushesToStoreAtomically(t *testing.T) {
	store := NewMemStore()
	ctx := New(store)

	if err := ctx.Set(map[string][]byte{"addr1": []byte("v1")}); err != nil {
		t.Fatal(err)
	}
	ctx.AddEvent("grid.schema.created", map[string]string{"name": "widget"}, nil)

	events, err := ctx.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(events) != 1 || events[0].Type != "grid.schema.created" {
		t.Fatalf("Commit returned events %v", events)
	}

	data, ok, err := store.Get("addr1")
	if err != nil || !ok || string(data) != "v1" {
		t.Fatalf("store not updated after Commit: %q %v %v", data, ok, err)
	}
}

func TestSetThenDeleteInSameTransaction(t *testing.T) {
	ctx := New(NewMemStore())
	if err := ctx.Set(map[string][]byte{"addr1": []byte("v1")}); err != nil {
		t.Fatal(err)
	}
	removed, err := ctx.Delete([]string{"addr1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 1 {
		t.Fatalf("expected addr1 to be reported removed, got %v", removed)
	}
	if _, ok, _ := ctx.Get("addr1"); ok {
		t.Fatalf("addr1 should read as absent after delete-within-transaction")
	}
}
