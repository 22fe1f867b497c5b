package kv

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Conrad-Tinio/CAPWA-Website/internal/obs"
)

type item struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type failingStore struct{ Memory }

func (f *failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("backend down")
}

func silenceLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	logger := obs.Logger()
	original := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(original) })
	return &buf
}

func TestSaveAndLoadListRoundTripsTimestamps(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	created := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	if err := SaveList(ctx, store, "items", []item{{ID: "a", CreatedAt: created}}); err != nil {
		t.Fatalf("SaveList: %v", err)
	}
	raw, ok, _ := store.Get(ctx, "items")
	if !ok || !bytes.Contains(raw, []byte("2025-03-14T09:30:00Z")) {
		t.Fatalf("expected RFC 3339 timestamp in stored value, got %s", raw)
	}
	got := LoadList[item](ctx, store, "items")
	if len(got) != 1 || got[0].ID != "a" || !got[0].CreatedAt.Equal(created) {
		t.Fatalf("unexpected items: %+v", got)
	}
}

func TestSaveNilListStoresEmptyArray(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	if err := SaveList[item](ctx, store, "items", nil); err != nil {
		t.Fatalf("SaveList: %v", err)
	}
	raw, _, _ := store.Get(ctx, "items")
	if string(raw) != "[]" {
		t.Fatalf("expected [], got %s", raw)
	}
}

func TestLoadListIsLenient(t *testing.T) {
	ctx := context.Background()
	logs := silenceLogs(t)

	store := NewMemory()
	if got := LoadList[item](ctx, store, "missing"); len(got) != 0 {
		t.Fatalf("expected empty for missing key, got %v", got)
	}

	_ = store.Set(ctx, "items", []byte(`{"not":"an array"`))
	if got := LoadList[item](ctx, store, "items"); len(got) != 0 {
		t.Fatalf("expected empty for corrupt value, got %v", got)
	}
	if !bytes.Contains(logs.Bytes(), []byte("kv.decode_failed")) {
		t.Fatalf("expected decode warning, got %s", logs.String())
	}

	if got := LoadList[item](ctx, &failingStore{}, "items"); len(got) != 0 {
		t.Fatalf("expected empty on backend error, got %v", got)
	}
	if !bytes.Contains(logs.Bytes(), []byte("kv.read_failed")) {
		t.Fatalf("expected read warning, got %s", logs.String())
	}
}

func TestMemoryCopiesValues(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	value := []byte("abc")
	_ = store.Set(ctx, "k", value)
	value[0] = 'z'
	got, _, _ := store.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("store aliased caller slice: %s", got)
	}
	got[1] = 'z'
	again, _, _ := store.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("store leaked internal slice: %s", again)
	}
	_ = store.Remove(ctx, "k")
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatalf("expected key removed")
	}
}

func TestPingWithoutPinger(t *testing.T) {
	if err := Ping(context.Background(), NewMemory()); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestLoadListStrictReturnsBackendErrors(t *testing.T) {
	ctx := context.Background()
	logs := silenceLogs(t)

	if _, err := LoadListStrict[item](ctx, &failingStore{}, "items"); err == nil {
		t.Fatal("expected backend error to propagate")
	}

	store := NewMemory()
	_ = store.Set(ctx, "items", []byte(`nope`))
	got, err := LoadListStrict[item](ctx, store, "items")
	if err != nil || len(got) != 0 {
		t.Fatalf("corrupt value should read as empty, got %v, %v", got, err)
	}
	if !bytes.Contains(logs.Bytes(), []byte("kv.decode_failed")) {
		t.Fatalf("expected decode warning, got %s", logs.String())
	}
}
