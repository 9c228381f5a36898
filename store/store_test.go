package store

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/ttdsnap/wire"
)

func openTemp(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "nested", "archive.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// encoded returns a minimal valid snapshot stream.
func encoded(t *testing.T, opts wire.Options, label string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := wire.NewWriter(&buf, opts)
	if err != nil {
		t.Fatal(err)
	}
	w.RecordStart()
	w.String(wire.KeyName, label)
	w.RecordEnd()
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)
	data := encoded(t, wire.Options{Format: wire.FormatCBOR, Compress: true}, "one")

	e, err := a.Put(ctx, "boot", data, 12)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if e.Format != wire.FormatCBOR || !e.Compressed || e.Size != len(data) || e.Objects != 12 {
		t.Errorf("Put entry = %+v", e)
	}

	for _, ref := range []string{e.ID.String(), "boot"} {
		got, gotData, err := a.Get(ctx, ref)
		if err != nil {
			t.Fatalf("Get(%s): %v", ref, err)
		}
		if diff := cmp.Diff(e, got); diff != "" {
			t.Errorf("Get(%s) entry mismatch (-want +got):\n%s", ref, diff)
		}
		if !bytes.Equal(gotData, data) {
			t.Errorf("Get(%s) returned different bytes", ref)
		}
	}
}

func TestPutRejectsGarbage(t *testing.T) {
	a := openTemp(t)
	if _, err := a.Put(context.Background(), "bad", []byte("nope"), 0); !errors.Is(err, wire.ErrInvalidMagic) {
		t.Errorf("got %v, want ErrInvalidMagic", err)
	}
}

func TestNameResolvesToNewest(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)
	first := encoded(t, wire.Options{}, "first")
	second := encoded(t, wire.Options{}, "second")
	if _, err := a.Put(ctx, "tick", first, 1); err != nil {
		t.Fatal(err)
	}
	e2, err := a.Put(ctx, "tick", second, 2)
	if err != nil {
		t.Fatal(err)
	}

	got, data, err := a.Get(ctx, "tick")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != e2.ID || !bytes.Equal(data, second) {
		t.Errorf("Get(tick) = %s, want newest %s", got.ID, e2.ID)
	}

	list, err := a.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[1].ID != e2.ID {
		t.Errorf("List() = %+v, want two entries, newest last", list)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)
	e, err := a.Put(ctx, "gone", encoded(t, wire.Options{}, "x"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Delete(ctx, e.ID.String()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := a.Get(ctx, e.ID.String()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: got %v, want ErrNotFound", err)
	}
	if err := a.Delete(ctx, "gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete: got %v, want ErrNotFound", err)
	}
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "archive.db")
	a, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Put(ctx, "kept", encoded(t, wire.Options{}, "x"), 3); err != nil {
		t.Fatal(err)
	}
	a.Close()

	b, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	list, err := b.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Name != "kept" {
		t.Errorf("List() after reopen = %+v", list)
	}
}
