package history

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "sr_history.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("Open(\"\") expected error")
	}
}

func TestOpen_AppliesMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sr.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	store.Close()

	version, dirty, err := SchemaVersion(path)
	if err != nil {
		t.Fatalf("SchemaVersion() error: %v", err)
	}
	if version != 2 || dirty {
		t.Errorf("SchemaVersion() = %d dirty=%v, want 2 clean", version, dirty)
	}

	// Reopening is a no-op migration.
	store, err = Open(path)
	if err != nil {
		t.Fatalf("second Open() error: %v", err)
	}
	store.Close()

	if version, _, _ := SchemaVersion(path); version != 2 {
		t.Errorf("SchemaVersion() after reopen = %d, want 2", version)
	}
}

func TestSchemaVersion_FreshDatabase(t *testing.T) {
	version, dirty, err := SchemaVersion(filepath.Join(t.TempDir(), "fresh.db"))
	if err != nil {
		t.Fatalf("SchemaVersion() error: %v", err)
	}
	if version != 0 || dirty {
		t.Errorf("SchemaVersion() = %d dirty=%v, want 0 clean", version, dirty)
	}
}

func TestStore_RecordAndQuery(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.UnixMilli(1_700_000_000_000)
	entries := []Entry{
		{
			BatchID: "batch-1", SourcePath: "in/a.png", OutputPath: "out/SR_a.png",
			Status: StatusSuccess, Backend: "identity", TargetSize: 1920, TileSize: 1024,
			Seed: 42, Duration: 1500 * time.Millisecond, CreatedAt: base,
		},
		{
			BatchID: "batch-1", SourcePath: "in/b.jpg",
			Status: StatusInferenceError, Backend: "identity", TargetSize: 1920, TileSize: 1024,
			Seed: math.MaxUint64, ErrorMessage: "inference failed for in/b.jpg tile TR: boom",
			CreatedAt: base.Add(time.Second),
		},
		{
			BatchID: "batch-2", SourcePath: "in/c.png",
			Status: StatusReadError, Backend: "local", TargetSize: 1920, TileSize: 1024,
			Seed: 42, ErrorMessage: "cannot decode", CreatedAt: base.Add(2 * time.Second),
		},
	}
	for i, e := range entries {
		id, err := store.Record(ctx, e)
		if err != nil {
			t.Fatalf("Record(%d) error: %v", i, err)
		}
		if id <= 0 {
			t.Errorf("Record(%d) id = %d, want positive", i, id)
		}
	}

	batch, err := store.ByBatch(ctx, "batch-1")
	if err != nil {
		t.Fatalf("ByBatch() error: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("ByBatch() returned %d entries, want 2", len(batch))
	}
	first := batch[0]
	if first.SourcePath != "in/a.png" || first.OutputPath != "out/SR_a.png" || first.Status != StatusSuccess {
		t.Errorf("first entry = %+v", first)
	}
	if first.Duration != 1500*time.Millisecond {
		t.Errorf("Duration = %v, want 1.5s", first.Duration)
	}
	if !first.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", first.CreatedAt, base)
	}
	if batch[1].Seed != math.MaxUint64 {
		t.Errorf("Seed = %d, want MaxUint64 round trip", batch[1].Seed)
	}
	if batch[1].OutputPath != "" || !strings.Contains(batch[1].ErrorMessage, "tile TR") {
		t.Errorf("failed entry = %+v", batch[1])
	}

	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(recent) != 2 || recent[0].SourcePath != "in/c.png" || recent[1].SourcePath != "in/b.jpg" {
		t.Errorf("Recent() = %+v, want c then b", recent)
	}

	counts, err := store.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus() error: %v", err)
	}
	want := map[string]int{StatusSuccess: 1, StatusInferenceError: 1, StatusReadError: 1}
	for status, n := range want {
		if counts[status] != n {
			t.Errorf("counts[%s] = %d, want %d", status, counts[status], n)
		}
	}
}

func TestStore_Mode(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Record(ctx, Entry{BatchID: "m", SourcePath: "in/a.png", Status: StatusSuccess, Backend: "identity"}); err != nil {
		t.Fatalf("Record(sr) error: %v", err)
	}
	if _, err := store.Record(ctx, Entry{
		BatchID: "m", Mode: ModeT2I, OutputPath: "out/t2i_01_final.png",
		Status: StatusSuccess, Backend: "identity", TargetSize: 1024, Seed: 99,
	}); err != nil {
		t.Fatalf("Record(t2i) error: %v", err)
	}

	got, err := store.ByBatch(ctx, "m")
	if err != nil || len(got) != 2 {
		t.Fatalf("ByBatch() = %v, %v", got, err)
	}
	if got[0].Mode != ModeSR {
		t.Errorf("default Mode = %q, want %q", got[0].Mode, ModeSR)
	}
	if got[1].Mode != ModeT2I || got[1].SourcePath != "" || got[1].Seed != 99 {
		t.Errorf("t2i entry = %+v", got[1])
	}

	if _, err := store.Record(ctx, Entry{BatchID: "m", Mode: "video", Status: StatusSuccess, Backend: "identity"}); err == nil {
		t.Error("Record() with unknown mode expected error")
	}
}

func TestStore_RejectsUnknownStatus(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Record(context.Background(), Entry{
		BatchID: "b", SourcePath: "x.png", Status: "pending", Backend: "identity",
	})
	if err == nil {
		t.Fatal("Record() with unknown status expected error")
	}
}

func TestStore_DefaultsCreatedAt(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	before := time.Now().Add(-time.Second)
	if _, err := store.Record(ctx, Entry{BatchID: "b", SourcePath: "x.png", Status: StatusSuccess, Backend: "identity"}); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	got, err := store.ByBatch(ctx, "b")
	if err != nil || len(got) != 1 {
		t.Fatalf("ByBatch() = %v, %v", got, err)
	}
	if got[0].CreatedAt.Before(before) {
		t.Errorf("CreatedAt = %v, want recent", got[0].CreatedAt)
	}
}

func TestStore_CloseIdempotent(t *testing.T) {
	store := openTestStore(t)
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}
