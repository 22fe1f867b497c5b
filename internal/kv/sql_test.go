package kv

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRebind(t *testing.T) {
	q := `insert into t(a, b) values (?, ?)`
	if got := Postgres.Rebind(q); got != `insert into t(a, b) values ($1, $2)` {
		t.Fatalf("unexpected postgres query: %s", got)
	}
	if got := SQLite.Rebind(q); got != q {
		t.Fatalf("sqlite query should be untouched: %s", got)
	}
}

func TestSQLStoreGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewSQLStore(db, Postgres)

	mock.ExpectQuery(`select value from kv_collections where name = \$1`).
		WithArgs(KeyIncidents).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`[{"id":"x"}]`))
	mock.ExpectQuery(`select value from kv_collections where name = \$1`).
		WithArgs(KeyUsers).
		WillReturnError(sql.ErrNoRows)

	raw, ok, err := store.Get(context.Background(), KeyIncidents)
	if err != nil || !ok || string(raw) != `[{"id":"x"}]` {
		t.Fatalf("unexpected get result: %q ok=%v err=%v", raw, ok, err)
	}
	_, ok, err = store.Get(context.Background(), KeyUsers)
	if err != nil || ok {
		t.Fatalf("expected missing key, ok=%v err=%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStoreSetAndRemove(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewSQLStore(db, SQLite)

	mock.ExpectExec(`insert into kv_collections\(name, value, updated_at\) values \(\?, \?, \?\)`).
		WithArgs(KeyActivities, `[]`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`delete from kv_collections where name = \?`).
		WithArgs(KeyActivities).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Set(context.Background(), KeyActivities, []byte(`[]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Remove(context.Background(), KeyActivities); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStorePing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	mock.ExpectPing()

	if err := Ping(context.Background(), NewSQLStore(db, Postgres)); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOpenRequiresLocation(t *testing.T) {
	if _, err := OpenPostgres(" "); err == nil {
		t.Fatal("expected error for empty dsn")
	}
	if _, err := OpenSQLite(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
