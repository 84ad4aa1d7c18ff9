package tenant

import "context"

// Profile is the business context injected into every prompt.
type Profile struct {
	ID          string
	Name        string
	Industry    string
	Description string
	// Languages known to appear in the tenant's document corpus, used to
	// decide whether retrieval queries need per-language variants.
	CorpusLanguages []string
}

// InventoryItem is one row of the live inventory snapshot. Inventory facts
// outrank document facts for price and availability.
type InventoryItem struct {
	SKU       string
	Name      string
	Price     float64
	Currency  string
	Available int
	Unit      string
}

// ProfileProvider resolves a tenant's profile.
type ProfileProvider interface {
	Profile(ctx context.Context, tenantID string) (Profile, error)
}

// InventoryProvider returns the live inventory snapshot for a tenant.
type InventoryProvider interface {
	Snapshot(ctx context.Context, tenantID string) ([]InventoryItem, error)
}
