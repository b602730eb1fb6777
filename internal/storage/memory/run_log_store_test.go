package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"timeframe-lab/internal/storage"
)

func TestRunLogStore_RecordAndLastRun(t *testing.T) {
	store := NewRunLogStore()
	ctx := context.Background()

	if _, err := store.LastRun(ctx, "full"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound before any run, got %v", err)
	}

	at := time.Date(2020, 3, 1, 12, 30, 0, 0, time.UTC)
	if err := store.RecordRun(ctx, "full", at); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	got, err := store.LastRun(ctx, "full")
	if err != nil {
		t.Fatalf("LastRun failed: %v", err)
	}
	if !got.Equal(at) {
		t.Errorf("last run = %s, want %s", got, at)
	}

	// Modes keep independent markers.
	if _, err := store.LastRun(ctx, "incremental"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for other mode, got %v", err)
	}
}

func TestRunLogStore_RecordReplaces(t *testing.T) {
	store := NewRunLogStore()
	ctx := context.Background()

	first := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)
	if err := store.RecordRun(ctx, "full", first); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if err := store.RecordRun(ctx, "full", second); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	got, _ := store.LastRun(ctx, "full")
	if !got.Equal(second) {
		t.Errorf("last run = %s, want %s", got, second)
	}
}

func TestRunLogStore_InvalidMode(t *testing.T) {
	store := NewRunLogStore()
	ctx := context.Background()

	if err := store.RecordRun(ctx, "", time.Now()); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("empty mode: expected ErrInvalidInput, got %v", err)
	}
}
