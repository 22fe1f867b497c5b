// Package kv is the persistence collaborator behind every store: whole
// collections are kept as JSON documents under a logical collection name.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Conrad-Tinio/CAPWA-Website/internal/obs"
)

// Collection names shared by the stores.
const (
	KeyUsers      = "animal_welfare_users"
	KeyIncidents  = "animal_welfare_incidents"
	KeyActivities = "animal_welfare_admin_activities"
)

// ErrClosed is returned by backends used after Close.
var ErrClosed = errors.New("kv: store closed")

// Store is a get/set/remove contract keyed by collection name.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// Pinger is implemented by backends that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LoadList reads a JSON array stored under key for display. Reads are
// lenient: a missing key, a backend error or a document that does not
// decode all yield an empty collection, and the failure is logged rather
// than returned.
func LoadList[T any](ctx context.Context, s Store, key string) []T {
	items, err := LoadListStrict[T](ctx, s, key)
	if err != nil {
		obs.Warn("kv.read_failed", map[string]any{"key": key, "error": err.Error()})
		return nil
	}
	return items
}

// LoadListStrict is LoadList for read-modify-write cycles: backend errors
// are returned so the caller never saves over a collection it could not
// read. An undecodable document still counts as empty.
func LoadListStrict[T any](ctx context.Context, s Store, key string) ([]T, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("kv: read %s: %w", key, err)
	}
	if !ok || len(raw) == 0 {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		obs.Warn("kv.decode_failed", map[string]any{"key": key, "error": err.Error()})
		return nil, nil
	}
	return items, nil
}

// SaveList encodes items as a JSON array and stores it under key.
func SaveList[T any](ctx context.Context, s Store, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("kv: encode %s: %w", key, err)
	}
	if err := s.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("kv: write %s: %w", key, err)
	}
	return nil
}

// Ping checks s when it supports liveness probes and reports nil otherwise.
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
