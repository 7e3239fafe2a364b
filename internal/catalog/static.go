package catalog

import "context"

// StaticProvider serves a fixed in-process catalog snapshot, for local
// development and tests.
type StaticProvider struct {
	items []Item
}

func NewStaticProvider(items []Item) *StaticProvider {
	cp := make([]Item, len(items))
	copy(cp, items)
	return &StaticProvider{items: cp}
}

func (p *StaticProvider) Snapshot(_ context.Context) ([]Item, error) {
	out := make([]Item, len(p.items))
	copy(out, p.items)
	return out, nil
}
