package storage

import (
	"context"
	"reflect"
	"testing"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	result := sampleFitResult()
	if err := store.SaveFitResult(ctx, result); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := store.GetFitResult(ctx, result.RunID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatalf("result not found after save")
	}
	if !reflect.DeepEqual(got, result) {
		t.Fatalf("result mismatch:\ngot=%+v\nwant=%+v", got, result)
	}

	ids, err := store.ListFitResultIDs(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{result.RunID}) {
		t.Fatalf("unexpected ids: %v", ids)
	}

	if err := store.DeleteFitResult(ctx, result.RunID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, err := store.GetFitResult(ctx, result.RunID); err != nil || ok {
		t.Fatalf("result still present after delete: ok=%v err=%v", ok, err)
	}
}

func TestMemoryStoreListSorted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for _, id := range []string{"c", "a", "b"} {
		result := sampleFitResult()
		result.RunID = id
		if err := store.SaveFitResult(ctx, result); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	ids, err := store.ListFitResultIDs(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"a", "b", "c"}) {
		t.Fatalf("ids not sorted: %v", ids)
	}
}

func TestMemoryStoreBestThetaCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	theta := []float64{1, 2, 3}
	if err := store.SaveBestTheta(ctx, "run-1", theta); err != nil {
		t.Fatalf("save best theta: %v", err)
	}
	theta[0] = 99

	got, ok, err := store.GetBestTheta(ctx, "run-1")
	if err != nil {
		t.Fatalf("get best theta: %v", err)
	}
	if !ok {
		t.Fatalf("best theta not found")
	}
	if !reflect.DeepEqual(got, []float64{1, 2, 3}) {
		t.Fatalf("stored theta aliases caller slice: %v", got)
	}

	got[1] = -5
	again, _, err := store.GetBestTheta(ctx, "run-1")
	if err != nil {
		t.Fatalf("get best theta again: %v", err)
	}
	if again[1] != 2 {
		t.Fatalf("returned theta aliases store: %v", again)
	}
}

func TestMemoryStoreBestThetaMissing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	if _, ok, err := store.GetBestTheta(ctx, "nope"); err != nil || ok {
		t.Fatalf("expected missing theta: ok=%v err=%v", ok, err)
	}
}
