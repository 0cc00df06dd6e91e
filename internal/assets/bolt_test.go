package assets

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func TestBoltStore_PutGet(t *testing.T) {
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "assets.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	img := []byte("fake jpeg bytes")
	ref, err := store.Put(img)
	if err != nil {
		t.Fatal(err)
	}
	if ref == "" {
		t.Fatal("empty ref")
	}

	got, err := store.Get(ref)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, img) {
		t.Error("retrieved bytes differ")
	}

	// Same bytes yield the same ref.
	ref2, err := store.Put(img)
	if err != nil {
		t.Fatal(err)
	}
	if ref2 != ref {
		t.Errorf("expected identical refs, got %s and %s", ref, ref2)
	}
}

func TestBoltStore_GetMissing(t *testing.T) {
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "assets.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := store.Get("deadbeef"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBoltStore_Delete(t *testing.T) {
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "assets.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ref, _ := store.Put([]byte("img"))
	if err := store.Delete(ref); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ref); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	// Deleting again is a no-op.
	if err := store.Delete(ref); err != nil {
		t.Errorf("second delete should be a no-op, got %v", err)
	}
}
