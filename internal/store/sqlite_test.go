package store

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestKV(t *testing.T) *SQLiteKV {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	kv, err := NewSQLiteKV(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteKV: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return kv
}

func TestSQLiteKV_PutThenGet(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	if err := kv.Put(ctx, "job:123", []byte(`{"id":"123"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := kv.Get(ctx, "job:123")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"id":"123"}` {
		t.Errorf("Get = %q", got)
	}
}

func TestSQLiteKV_GetUnknownReturnsNotFound(t *testing.T) {
	kv := newTestKV(t)

	_, err := kv.Get(context.Background(), "does-not-exist")
	if err != ErrNotFound {
		t.Errorf("Get err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteKV_PutOverwrites(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	if err := kv.Put(ctx, "run:1", []byte("RUNNING")); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if err := kv.Put(ctx, "run:1", []byte("COMPLETED")); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	got, err := kv.Get(ctx, "run:1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "COMPLETED" {
		t.Errorf("Get = %q, want COMPLETED", got)
	}
}

func TestSQLiteKV_ScanAndDeletePrefix(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	for _, k := range []string{"seen:b", "seen:a", "job:a", "seen_other"} {
		if err := kv.Put(ctx, k, []byte("x")); err != nil {
			t.Fatalf("Put %s: %v", k, err)
		}
	}

	var keys []string
	err := kv.Scan(ctx, "seen:", func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(keys) != 2 || keys[0] != "seen:a" || keys[1] != "seen:b" {
		t.Errorf("Scan keys = %v, want [seen:a seen:b]", keys)
	}

	n, err := kv.DeletePrefix(ctx, "seen:")
	if err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	if n != 2 {
		t.Errorf("DeletePrefix removed %d, want 2", n)
	}
	if _, err := kv.Get(ctx, "seen_other"); err != nil {
		t.Errorf("seen_other should survive: %v", err)
	}
	if _, err := kv.Get(ctx, "job:a"); err != nil {
		t.Errorf("job:a should survive: %v", err)
	}
}

func TestSQLiteKV_ScanCallbackMayWrite(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()
	kv.Put(ctx, "job:1", []byte("x"))

	err := kv.Scan(ctx, "job:", func(key string, _ []byte) error {
		return kv.Put(ctx, "seen:1", []byte("y"))
	})
	if err != nil {
		t.Fatalf("Scan with write: %v", err)
	}
	if _, err := kv.Get(ctx, "seen:1"); err != nil {
		t.Errorf("write inside scan lost: %v", err)
	}
}
