package badgerstore

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/kvobserve-go/pkg/kvstore"
)

var (
	_ kvstore.Store   = (*Store)(nil)
	_ kvstore.Scanner = (*Store)(nil)
)

func openTest(t *testing.T) *Store {
	t.Helper()

	cfg := DefaultConfig(t.TempDir())
	cfg.GCInterval = 0
	cfg.SyncWrites = false

	s, err := Open(cfg, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_BasicOperations(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	t.Run("Set and Get", func(t *testing.T) {
		if err := s.Set(ctx, "theme", []byte(`"dark"`)); err != nil {
			t.Fatal(err)
		}
		got, found, err := s.Get(ctx, "theme")
		if err != nil || !found {
			t.Fatalf("Get() = (%s, %v, %v)", got, found, err)
		}
		if string(got) != `"dark"` {
			t.Errorf("expected %s, got %s", `"dark"`, got)
		}
	})

	t.Run("Get non-existent key", func(t *testing.T) {
		got, found, err := s.Get(ctx, "missing")
		if err != nil || found || got != nil {
			t.Errorf("Get(missing) = (%v, %v, %v), want (nil, false, nil)", got, found, err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := s.Set(ctx, "gone", []byte("1")); err != nil {
			t.Fatal(err)
		}
		if err := s.Delete(ctx, "gone"); err != nil {
			t.Fatal(err)
		}
		if _, found, _ := s.Get(ctx, "gone"); found {
			t.Error("key still present after delete")
		}
	})

	t.Run("Delete missing key", func(t *testing.T) {
		if err := s.Delete(ctx, "never-set"); err != nil {
			t.Errorf("Delete(never-set) = %v, want nil", err)
		}
	})

	t.Run("Empty value is present", func(t *testing.T) {
		if err := s.Set(ctx, "empty", []byte{}); err != nil {
			t.Fatal(err)
		}
		if _, found, err := s.Get(ctx, "empty"); err != nil || !found {
			t.Errorf("Get(empty) found=%v err=%v, want found", found, err)
		}
	})
}

func TestStore_Keys(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	for _, k := range []string{"ui/font", "ui/theme", "net/proxy"} {
		if err := s.Set(ctx, k, []byte("1")); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		prefix string
		want   []string
	}{
		{"ui/", []string{"ui/font", "ui/theme"}},
		{"net/", []string{"net/proxy"}},
		{"", []string{"net/proxy", "ui/font", "ui/theme"}},
		{"none/", nil},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			got, err := s.Keys(ctx, tt.prefix)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Keys(%q) = %v, want %v", tt.prefix, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Keys(%q)[%d] = %s, want %s", tt.prefix, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := DefaultConfig(dir)
	cfg.GCInterval = 0

	s, err := Open(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "persisted", []byte("yes")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	got, found, err := reopened.Get(ctx, "persisted")
	if err != nil || !found || string(got) != "yes" {
		t.Errorf("Get after reopen = (%s, %v, %v), want yes", got, found, err)
	}
}

func TestStore_BackupRestore(t *testing.T) {
	src := openTest(t)
	dst := openTest(t)
	ctx := context.Background()

	if err := src.Set(ctx, "a", []byte("1")); err != nil {
		t.Fatal(err)
	}
	if err := src.Set(ctx, "b", []byte("2")); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := src.Backup(ctx, &buf); err != nil {
		t.Fatal(err)
	}
	if err := dst.Restore(ctx, &buf); err != nil {
		t.Fatal(err)
	}

	keys, err := dst.Keys(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 {
		t.Errorf("restored keys = %v, want [a b]", keys)
	}
}

func TestStore_Closed(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.GCInterval = 0
	s, err := Open(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}

	_, _, err = s.Get(context.Background(), "k")
	if !errors.Is(err, kvstore.ErrStoreIO) || !errors.Is(err, ErrClosed) {
		t.Errorf("Get on closed store = %v, want ErrStoreIO wrapping ErrClosed", err)
	}
}

func TestStore_CanceledContext(t *testing.T) {
	s := openTest(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Set(ctx, "k", []byte("v")); !errors.Is(err, context.Canceled) {
		t.Errorf("Set with canceled ctx = %v, want context.Canceled", err)
	}
}

func TestStore_GC(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if _, err := s.GC(ctx); err != nil {
		t.Fatalf("GC() = %v", err)
	}
	if s.Stats().LastGCTime == 0 {
		t.Error("LastGCTime not recorded")
	}
}

func TestStore_InMemory(t *testing.T) {
	s, err := Open(Config{InMemory: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := s.Get(ctx, "k"); !found {
		t.Error("in-memory store lost key")
	}
}

func TestOpen_RequiresDir(t *testing.T) {
	if _, err := Open(Config{}, nil); err == nil {
		t.Error("Open without dir should fail")
	}
}

func TestStore_RegisterMetrics(t *testing.T) {
	s := openTest(t)
	reg := prometheus.NewRegistry()

	if err := s.RegisterMetrics(reg); err != nil {
		t.Fatal(err)
	}
	if n, err := testutil.GatherAndCount(reg); err != nil || n != 4 {
		t.Errorf("gathered %d metrics (err %v), want 4", n, err)
	}
	if err := s.RegisterMetrics(reg); err == nil {
		t.Error("registering twice should fail")
	}
}
