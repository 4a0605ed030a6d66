package identity

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestLoadOrCreateGeneratesValidUUID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id")

	id := LoadOrCreate(path)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("generated ID is not a UUID: %q", id)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ID was not persisted: %v", err)
	}
	if string(raw) != id {
		t.Fatalf("persisted %q, returned %q", raw, id)
	}
}

func TestLoadOrCreateReusesFreshID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id")

	first := LoadOrCreate(path)
	second := LoadOrCreate(path)
	if first != second {
		t.Fatalf("fresh ID was not reused: %q vs %q", first, second)
	}
}

func TestLoadOrCreateReplacesStaleID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id")

	old := uuid.New().String()
	if err := os.WriteFile(path, []byte(old), 0o600); err != nil {
		t.Fatal(err)
	}
	stale := time.Now().Add(-maxAge - time.Hour)
	if err := os.Chtimes(path, stale, stale); err != nil {
		t.Fatal(err)
	}

	id := LoadOrCreate(path)
	if id == old {
		t.Fatal("stale ID was reused")
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("replacement ID is not a UUID: %q", id)
	}
}

func TestLoadOrCreateReplacesCorruptID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id")
	if err := os.WriteFile(path, []byte("not-a-uuid"), 0o600); err != nil {
		t.Fatal(err)
	}

	id := LoadOrCreate(path)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected a fresh UUID, got %q", id)
	}
}

func TestLoadOrCreateReplacesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := uuid.Parse(LoadOrCreate(path)); err != nil {
		t.Fatalf("expected a fresh UUID for empty file: %v", err)
	}
}

func TestLoadRefreshesModTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id")

	id := LoadOrCreate(path)
	aged := time.Now().Add(-maxAge + time.Hour)
	if err := os.Chtimes(path, aged, aged); err != nil {
		t.Fatal(err)
	}

	if got := LoadOrCreate(path); got != id {
		t.Fatalf("aged-but-valid ID was not reused: %q vs %q", got, id)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if time.Since(fi.ModTime()) > time.Minute {
		t.Fatal("loading the ID should refresh its mod time")
	}
}
