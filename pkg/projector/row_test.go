package projector

import "testing"

type innerFlat struct {
	City string
}

type outerFlat struct {
	Name  string
	Inner innerFlat
	Tags  []string
}

func TestFlattenNestsDottedPaths(t *testing.T) {
	v := outerFlat{Name: "alice", Inner: innerFlat{City: "nowhere"}, Tags: []string{"a", "b"}}
	cols, err := Flatten(v)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if cols["Name"] != "alice" {
		t.Fatalf("expected Name column, got %+v", cols)
	}
	if cols["Inner.City"] != "nowhere" {
		t.Fatalf("expected nested Inner.City column, got %+v", cols)
	}
	tags, ok := cols["Tags"].([]string)
	if !ok || len(tags) != 2 {
		t.Fatalf("expected Tags slice column preserved, got %+v", cols["Tags"])
	}
}

func TestFlattenPointerToStruct(t *testing.T) {
	v := &outerFlat{Name: "bob"}
	cols, err := Flatten(v)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if cols["Name"] != "bob" {
		t.Fatalf("expected Name column from pointer struct, got %+v", cols)
	}
}

func TestSortedColumnNames(t *testing.T) {
	names := sortedColumnNames(map[string]any{"b": 1, "a": 2, "c": 3})
	if len(names) != 3 || names[0] != "a" || names[1] != "b" || names[2] != "c" {
		t.Fatalf("expected sorted [a b c], got %v", names)
	}
}
