package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewKeyPriority(t *testing.T) {
	k := NewKey("t1", "u1", "d1", "s1")
	if k.UserID != "u1" || k.DeviceID != "" || k.SessionID != "" {
		t.Fatalf("expected user id to win, got %+v", k)
	}
	k = NewKey("t1", "", "d1", "s1")
	if k.DeviceID != "d1" || k.SessionID != "" {
		t.Fatalf("expected device id to win, got %+v", k)
	}
	k = NewKey("t1", "", "", "s1")
	if k.SessionID != "s1" {
		t.Fatalf("expected session id fallback, got %+v", k)
	}
}

func TestKeyString(t *testing.T) {
	if got := NewKey("t1", "u1", "", "").String(); got != "t1/user:u1" {
		t.Fatalf("unexpected key string %q", got)
	}
	if got := NewKey("t1", "", "", "s9").String(); got != "t1/session:s9" {
		t.Fatalf("unexpected key string %q", got)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	store := NewMemoryStore(0)
	_, err := store.Get(context.Background(), NewKey("t1", "u1", "", ""))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreAppendAndGet(t *testing.T) {
	store := NewMemoryStore(0)
	key := NewKey("t1", "u1", "", "")
	ctx := context.Background()

	turns := []Turn{
		{Role: RoleUser, Content: "halo", Timestamp: time.Now()},
		{Role: RoleAssistant, Content: "hai, ada yang bisa dibantu?", Timestamp: time.Now()},
	}
	if err := store.Append(ctx, key, turns...); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(got))
	}
	if got[0].Content != "halo" {
		t.Fatalf("unexpected first turn %q", got[0].Content)
	}

	n, err := store.Count(ctx, key)
	if err != nil || n != 2 {
		t.Fatalf("expected count 2, got %d err %v", n, err)
	}
}

func TestMemoryStoreBoundsHistory(t *testing.T) {
	store := NewMemoryStore(3)
	key := NewKey("t1", "", "", "s1")
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := store.Append(ctx, key, Turn{Role: RoleUser, Content: "m"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected trimmed history of 3, got %d", len(got))
	}
}

func TestMemoryStoreTenantIsolation(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()
	a := NewKey("tenant-a", "", "", "s1")
	b := NewKey("tenant-b", "", "", "s1")
	if err := store.Append(ctx, a, Turn{Role: RoleUser, Content: "rahasia"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.Get(ctx, b); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected tenant-b session absent, got %v", err)
	}
}
