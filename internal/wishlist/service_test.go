package wishlist

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/otesta/otesta-backend/pkg/kv"

	pkgerrors "github.com/otesta/otesta-backend/pkg/errors"
)

const testUser = "demo@otesta.it"

func newTestService(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Store: kv.NewMemoryStore(), Notifier: kv.NewHub()})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func input(productID string) AddInput {
	return AddInput{
		ProductID:    productID,
		ProductName:  "item " + productID,
		ProductPrice: decimal.NewFromInt(100),
	}
}

func TestAddDeduplicatesByProduct(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	first, err := svc.Add(ctx, testUser, input("p1"))
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	second, err := svc.Add(ctx, testUser, input("p1"))
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("expected one entry after duplicate add, got %d", len(second))
	}
	if second[0].ID != first[0].ID {
		t.Fatal("expected the original entry to be kept")
	}
}

func TestAddEnforcesCap(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	for i := 0; i < MaxItems; i++ {
		if _, err := svc.Add(ctx, testUser, input(fmt.Sprintf("p%d", i))); err != nil {
			t.Fatalf("Add %d returned error: %v", i, err)
		}
	}
	if _, err := svc.Add(ctx, testUser, input("overflow")); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict at the cap, got %v", err)
	}
	// re-adding an existing product is still fine at the cap
	if _, err := svc.Add(ctx, testUser, input("p0")); err != nil {
		t.Fatalf("duplicate add at cap returned error: %v", err)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if _, err := svc.Add(ctx, testUser, input("p1")); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	items, err := svc.Remove(ctx, testUser, "p1")
	if err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty wishlist, got %d", len(items))
	}
	if _, err := svc.Remove(ctx, testUser, "p1"); err != nil {
		t.Fatalf("second Remove returned error: %v", err)
	}
}

func TestContains(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if _, err := svc.Add(ctx, testUser, input("p1")); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	ok, err := svc.Contains(ctx, testUser, "p1")
	if err != nil || !ok {
		t.Fatalf("expected wishlist to contain p1, got ok=%v err=%v", ok, err)
	}
	ok, err = svc.Contains(ctx, testUser, "p2")
	if err != nil || ok {
		t.Fatalf("expected wishlist to miss p2, got ok=%v err=%v", ok, err)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if _, err := svc.Add(ctx, testUser, input("p1")); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if err := svc.Clear(ctx, testUser); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	items, err := svc.Items(ctx, testUser)
	if err != nil {
		t.Fatalf("Items returned error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty wishlist, got %d", len(items))
	}
}
