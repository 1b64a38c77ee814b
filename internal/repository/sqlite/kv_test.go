package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/crewcrew/internal/repository"
)

func TestKV_GetMissing(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Get(context.Background(), "crewcrew_user")
	if !errors.Is(err, repository.ErrKeyNotFound) {
		t.Errorf("Get() error = %v, want ErrKeyNotFound", err)
	}
}

func TestKV_SetOverwrites(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Set(ctx, "k", `{"gold":1000}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := db.Set(ctx, "k", `{"gold":900}`); err != nil {
		t.Fatalf("second Set() error = %v", err)
	}

	got, err := db.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != `{"gold":900}` {
		t.Errorf("Get() = %q, want the second value", got)
	}
}

func TestKV_Delete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := db.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := db.Get(ctx, "k"); !errors.Is(err, repository.ErrKeyNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrKeyNotFound", err)
	}
	// Missing keys delete cleanly.
	if err := db.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete() of missing key error = %v", err)
	}
}
