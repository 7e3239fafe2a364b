package catalog

import "context"

// Item is one marketplace product record. Items are read-only reference data;
// Name is the matching key and is unique within a snapshot (case-insensitive).
type Item struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Description  string  `json:"description,omitempty"`
	Price        float64 `json:"price"`
	Unit         string  `json:"unit"`
	Manufacturer string  `json:"manufacturer,omitempty"`
}

// Provider supplies the catalog snapshot used to resolve assistant item
// references. Storage lives elsewhere; this is only the lookup contract.
type Provider interface {
	Snapshot(ctx context.Context) ([]Item, error)
}
