package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/yndnr/kvobserve-go/pkg/kvstore"
)

func TestStore_SetGetDelete(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.Set(ctx, "theme", []byte(`"dark"`)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, found, err := store.Get(ctx, "theme")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found || string(got) != `"dark"` {
		t.Fatalf("Get = (%q, %v), want (%q, true)", got, found, `"dark"`)
	}

	if err := store.Delete(ctx, "theme"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, _ := store.Get(ctx, "theme"); found {
		t.Fatal("theme should be absent after Delete")
	}
}

func TestStore_MissingKey(t *testing.T) {
	store := New()
	ctx := context.Background()

	got, found, err := store.Get(ctx, "missing")
	if err != nil || found || got != nil {
		t.Fatalf("Get(missing) = (%v, %v, %v), want (nil, false, nil)", got, found, err)
	}

	if err := store.Delete(ctx, "missing"); err != nil {
		t.Fatalf("Delete(missing) = %v, want nil", err)
	}
}

func TestStore_EmptyValueIsPresent(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.Set(ctx, "empty", []byte{}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, found, err := store.Get(ctx, "empty")
	if err != nil || !found || len(got) != 0 {
		t.Fatalf("Get(empty) = (%v, %v, %v), want ([], true, nil)", got, found, err)
	}
}

func TestStore_CopiesValues(t *testing.T) {
	store := New()
	ctx := context.Background()

	in := []byte("abc")
	if err := store.Set(ctx, "k", in); err != nil {
		t.Fatal(err)
	}
	in[0] = 'x'

	out, _, _ := store.Get(ctx, "k")
	if string(out) != "abc" {
		t.Fatalf("stored value changed through caller slice: %q", out)
	}
	out[1] = 'y'

	again, _, _ := store.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("stored value changed through returned slice: %q", again)
	}
}

func TestStore_Quota(t *testing.T) {
	store := New(WithMaxEntries(1))
	ctx := context.Background()

	if err := store.Set(ctx, "a", []byte("1")); err != nil {
		t.Fatalf("Set(a): %v", err)
	}
	// Overwriting an existing key does not count against the quota.
	if err := store.Set(ctx, "a", []byte("2")); err != nil {
		t.Fatalf("Set(a) overwrite: %v", err)
	}

	err := store.Set(ctx, "b", []byte("1"))
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Set(b) error = %v, want ErrQuotaExceeded", err)
	}
	if !errors.Is(err, kvstore.ErrStoreIO) {
		t.Fatalf("Set(b) error = %v, want ErrStoreIO", err)
	}
}

func TestStore_Keys(t *testing.T) {
	store := New(WithShards(4))
	ctx := context.Background()

	for _, k := range []string{"user/2", "user/1", "app/x"} {
		if err := store.Set(ctx, k, []byte("v")); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := store.Keys(ctx, "user/")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "user/1" || keys[1] != "user/2" {
		t.Fatalf("Keys(user/) = %v, want [user/1 user/2]", keys)
	}
	if store.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", store.Len())
	}
}

func TestStore_CanceledContext(t *testing.T) {
	store := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Set(ctx, "k", []byte("v")); !errors.Is(err, context.Canceled) {
		t.Fatalf("Set with canceled ctx = %v, want context.Canceled", err)
	}
	if _, _, err := store.Get(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Get with canceled ctx = %v, want context.Canceled", err)
	}
}

var _ kvstore.Store = (*Store)(nil)
var _ kvstore.Scanner = (*Store)(nil)
