package store

import (
	"testing"

	"github.com/safar/resale-market/internal/models"
)

func TestRestockOrder(t *testing.T) {
	id := func(v int64) *int64 { return &v }

	items := []models.OrderItem{
		{ID: 1, ProductID: id(30), Quantity: 1},
		{ID: 2, ProductID: nil, Quantity: 4},
		{ID: 3, ProductID: id(10), Quantity: 2},
		{ID: 4, ProductID: id(20), Quantity: 3},
	}

	got := restockOrder(items)
	if len(got) != 3 {
		t.Fatalf("Expected 3 lines with products, got %d", len(got))
	}
	for i, want := range []int64{10, 20, 30} {
		if *got[i].ProductID != want {
			t.Errorf("Line %d: expected product %d, got %d", i, want, *got[i].ProductID)
		}
	}
	if items[0].ID != 1 || *items[0].ProductID != 30 {
		t.Errorf("Expected the order's items to be left in place, got %+v", items[0])
	}
}
