package container

import "testing"

type stringItem string

func (s stringItem) NaturalKey() string { return string(s) }

func (s stringItem) MarshalBinary() ([]byte, error) { return []byte(s), nil }

func (s *stringItem) UnmarshalBinary(data []byte) error {
	*s = stringItem(data)
	return nil
}

func newStringItem() *stringItem {
	var s stringItem
	return &s
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	items := []*stringItem{ptr("beta"), ptr("alpha"), ptr("gamma")}
	encoded, err := Encode(items)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded, newStringItem)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !Unique(decoded) {
		t.Fatalf("decoded list is not sorted/unique: %v", decoded)
	}
	want := []string{"alpha", "beta", "gamma"}
	for i, w := range want {
		if decoded[i].NaturalKey() != w {
			t.Errorf("decoded[%d] = %q, want %q", i, decoded[i].NaturalKey(), w)
		}
	}
}

func TestDecodeAbsentAddressIsEmpty(t *testing.T) {
	decoded, err := Decode[*stringItem](nil, newStringItem)
	if err != nil {
		t.Fatalf("Decode(nil): %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("expected empty container for absent address, got %v", decoded)
	}
}

func TestMergeReplacesByNaturalKey(t *testing.T) {
	items := []*stringItem{ptr("alpha"), ptr("beta")}
	merged := Merge(items, ptr("alpha"))
	if len(merged) != 2 {
		t.Fatalf("Merge should replace, not append: got %d items", len(merged))
	}
}

func TestMergeInsertsSorted(t *testing.T) {
	items := []*stringItem{ptr("alpha"), ptr("gamma")}
	merged := Merge(items, ptr("beta"))
	if len(merged) != 3 || merged[1].NaturalKey() != "beta" {
		t.Fatalf("Merge did not insert in sorted position: %v", merged)
	}
}

func TestRemove(t *testing.T) {
	items := []*stringItem{ptr("alpha"), ptr("beta")}
	out, removed := Remove(items, "alpha")
	if !removed || len(out) != 1 || out[0].NaturalKey() != "beta" {
		t.Fatalf("Remove did not remove the matching item: %v removed=%v", out, removed)
	}
	_, removed = Remove(out, "missing")
	if removed {
		t.Fatalf("Remove reported success for a missing key")
	}
}

func ptr(s string) *stringItem {
	v := stringItem(s)
	return &v
}
