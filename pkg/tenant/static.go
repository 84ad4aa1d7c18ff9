package tenant

import (
	"context"
	"fmt"
	"sync"
)

// StaticProvider serves profiles and inventory from memory. Used by tests and
// the example app; production deployments plug their own providers in.
type StaticProvider struct {
	mu        sync.RWMutex
	profiles  map[string]Profile
	inventory map[string][]InventoryItem
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		profiles:  make(map[string]Profile),
		inventory: make(map[string][]InventoryItem),
	}
}

func (p *StaticProvider) SetProfile(profile Profile) {
	p.mu.Lock()
	p.profiles[profile.ID] = profile
	p.mu.Unlock()
}

func (p *StaticProvider) SetInventory(tenantID string, items []InventoryItem) {
	p.mu.Lock()
	p.inventory[tenantID] = items
	p.mu.Unlock()
}

func (p *StaticProvider) Profile(ctx context.Context, tenantID string) (Profile, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	profile, ok := p.profiles[tenantID]
	if !ok {
		return Profile{}, fmt.Errorf("tenant %s not found", tenantID)
	}
	return profile, nil
}

func (p *StaticProvider) Snapshot(ctx context.Context, tenantID string) ([]InventoryItem, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	items := p.inventory[tenantID]
	out := make([]InventoryItem, len(items))
	copy(out, items)
	return out, nil
}
