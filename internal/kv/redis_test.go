package kv

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestRedisStoreKeyPrefix(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	if got := NewRedisStore(client, "").key(KeyUsers); got != "capwa:animal_welfare_users" {
		t.Fatalf("unexpected default key: %s", got)
	}
	if got := NewRedisStore(client, " staging ").key(KeyIncidents); got != "staging:animal_welfare_incidents" {
		t.Fatalf("unexpected prefixed key: %s", got)
	}
}

func TestOpenRedisRequiresAddress(t *testing.T) {
	if _, err := OpenRedis(context.Background(), "", "", 0, ""); err == nil {
		t.Fatal("expected error for empty address")
	}
}
