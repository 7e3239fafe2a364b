package catalog

import "testing"

func sampleItems() []Item {
	return []Item{
		{ID: "p1", Name: "AquaBoost Fish Feed", Category: "feed", Price: 24.5, Unit: "kg"},
		{ID: "p2", Name: "pH Stabilizer Plus", Category: "chemical", Price: 11.0, Unit: "liters"},
		{ID: "p3", Name: "Oxygen Diffuser Stone", Category: "equipment", Price: 7.25, Unit: "pieces"},
	}
}

func TestResolveCaseInsensitiveExactMatch(t *testing.T) {
	got := Resolve([]string{"ph stabilizer plus", "AQUABOOST FISH FEED"}, sampleItems())
	if len(got) != 2 {
		t.Fatalf("resolved %d items, want 2", len(got))
	}
	if got[0].ID != "p2" || got[1].ID != "p1" {
		t.Fatalf("resolved order = [%s %s], want [p2 p1]", got[0].ID, got[1].ID)
	}
}

func TestResolveDropsUnknownNames(t *testing.T) {
	got := Resolve([]string{"pH Stabilizer Plus", "Magic Elixir"}, sampleItems())
	if len(got) != 1 {
		t.Fatalf("resolved %d items, want 1", len(got))
	}
	if got[0].ID != "p2" {
		t.Fatalf("resolved item = %s, want p2", got[0].ID)
	}
}

func TestResolveDeduplicatesByIdentity(t *testing.T) {
	got := Resolve([]string{"AquaBoost Fish Feed", "aquaboost fish feed", " AquaBoost Fish Feed "}, sampleItems())
	if len(got) != 1 {
		t.Fatalf("resolved %d items, want 1", len(got))
	}
}

func TestResolvePartialNameDoesNotMatch(t *testing.T) {
	if got := Resolve([]string{"AquaBoost"}, sampleItems()); len(got) != 0 {
		t.Fatalf("partial name resolved %d items, want 0", len(got))
	}
}

func TestResolveEmptyInputs(t *testing.T) {
	if got := Resolve(nil, sampleItems()); got != nil {
		t.Fatalf("Resolve(nil) = %v, want nil", got)
	}
	if got := Resolve([]string{"x"}, nil); got != nil {
		t.Fatalf("Resolve with empty catalog = %v, want nil", got)
	}
}
