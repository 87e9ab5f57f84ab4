package store_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/safar/resale-market/internal/database"
	"github.com/safar/resale-market/internal/models"
	"github.com/safar/resale-market/internal/store"
)

func TestResolveCategoryIsCaseInsensitive(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first, err := store.ResolveCategory(ctx, db, "Shoes")
	if err != nil {
		t.Fatalf("Resolve Shoes: %v", err)
	}
	second, err := store.ResolveCategory(ctx, db, "  shoes ")
	if err != nil {
		t.Fatalf("Resolve shoes: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("Expected the same category, got %d and %d", first.ID, second.ID)
	}
	if first.Slug != "shoes" {
		t.Errorf("Expected slug shoes, got %q", first.Slug)
	}

	empty, err := store.ResolveCategory(ctx, db, "   ")
	if err != nil || empty != nil {
		t.Errorf("Expected nil for a blank name, got %+v, %v", empty, err)
	}
}

func TestCategorySlugDedup(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := store.CreateCategory(ctx, db, store.CategoryInput{Name: "Shoes"}); err != nil {
		t.Fatalf("Create Shoes: %v", err)
	}

	clash, err := store.CreateCategory(ctx, db, store.CategoryInput{Name: "Shoes!"})
	if err != nil {
		t.Fatalf("Create Shoes!: %v", err)
	}
	if clash.Slug != "shoes-1" {
		t.Errorf("Expected slug shoes-1, got %q", clash.Slug)
	}

	if _, err := store.CreateCategory(ctx, db, store.CategoryInput{Name: "Orphan", ParentID: ptr(int64(999999))}); !errors.Is(err, database.ErrCategoryNotFound) {
		t.Errorf("Expected ErrCategoryNotFound for a missing parent, got %v", err)
	}
}

func TestResolveBrandConcurrent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	names := []string{"Nike", "nike", " NIKE", "Nike ", "nIkE"}
	ids := make([]int64, len(names))
	errs := make([]error, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			brand, err := store.ResolveBrand(ctx, db, name)
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = brand.ID
		}(i, name)
	}
	wg.Wait()

	for i := range names {
		if errs[i] != nil {
			t.Fatalf("Resolve %q: %v", names[i], errs[i])
		}
		if ids[i] != ids[0] {
			t.Errorf("Resolve %q got brand %d, want %d", names[i], ids[i], ids[0])
		}
	}

	brands, err := store.ListBrands(ctx, db)
	if err != nil {
		t.Fatalf("List brands: %v", err)
	}
	if len(brands) != 1 {
		t.Errorf("Expected 1 brand, got %d", len(brands))
	}
}

func TestCategoryTree(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	women, err := store.CreateCategory(ctx, db, store.CategoryInput{Name: "Women"})
	if err != nil {
		t.Fatalf("Create Women: %v", err)
	}
	dresses, err := store.CreateCategory(ctx, db, store.CategoryInput{Name: "Dresses", ParentID: &women.ID, SizeType: models.SizeTypeClothing})
	if err != nil {
		t.Fatalf("Create Dresses: %v", err)
	}
	if _, err := store.CreateCategory(ctx, db, store.CategoryInput{Name: "Maxi", ParentID: &dresses.ID}); err != nil {
		t.Fatalf("Create Maxi: %v", err)
	}

	roots, err := store.ListRootCategories(ctx, db)
	if err != nil {
		t.Fatalf("List roots: %v", err)
	}
	if len(roots) != 1 || roots[0].ID != women.ID {
		t.Fatalf("Expected only Women as root, got %+v", roots)
	}

	tree, err := store.ListCategoryTree(ctx, db)
	if err != nil {
		t.Fatalf("List tree: %v", err)
	}
	if len(tree) != 1 || len(tree[0].Children) != 1 || len(tree[0].Children[0].Children) != 1 {
		t.Fatalf("Unexpected tree shape %+v", tree)
	}
	if got := tree[0].Children[0].Children[0].Name; got != "Maxi" {
		t.Errorf("Expected Maxi as grandchild, got %q", got)
	}

	matches, err := store.AutocompleteCategories(ctx, db, "ress")
	if err != nil {
		t.Fatalf("Autocomplete: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != dresses.ID {
		t.Errorf("Expected Dresses, got %+v", matches)
	}

	matches, err = store.AutocompleteCategories(ctx, db, "%")
	if err != nil {
		t.Fatalf("Autocomplete %%: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("A literal %% should match nothing, got %+v", matches)
	}
}

func TestCreateSizeDuplicate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	in := store.SizeInput{SizeType: models.SizeTypeShoes, Value: "42", EUSize: "42"}
	size, err := store.CreateSize(ctx, db, in)
	if err != nil {
		t.Fatalf("Create size: %v", err)
	}
	if size.DisplayValue != "42" {
		t.Errorf("Expected display value to default to the value, got %q", size.DisplayValue)
	}

	if _, err := store.CreateSize(ctx, db, in); !errors.Is(err, database.ErrSizeExists) {
		t.Errorf("Expected ErrSizeExists, got %v", err)
	}

	sizes, err := store.ListSizes(ctx, db, models.SizeTypeClothing)
	if err != nil {
		t.Fatalf("List sizes: %v", err)
	}
	if len(sizes) != 0 {
		t.Errorf("Expected no clothing sizes, got %d", len(sizes))
	}
}

func TestProductCatalogListing(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seller := newSeller(t, db, "seller1")

	in := productInput("Leather boots", "80.00", 1)
	in.CategoryName = "Shoes"
	in.BrandName = "Dr. Martens"
	boots, err := store.CreateProduct(ctx, db, seller, in)
	if err != nil {
		t.Fatalf("Create boots: %v", err)
	}
	if boots.Category == nil || boots.Brand == nil || boots.Brand.Slug != "dr-martens" {
		t.Fatalf("Expected category and brand to be resolved, got %+v", boots)
	}

	newProduct(t, db, seller, "Wool coat", "150.00", 1)
	newProduct(t, db, seller, "Silk scarf", "20.00", 1)

	page, err := store.ListProducts(ctx, db, store.ProductFilter{Sort: store.SortPriceAsc})
	if err != nil {
		t.Fatalf("List products: %v", err)
	}
	products := page.Items.([]models.Product)
	if page.Total != 3 || len(products) != 3 {
		t.Fatalf("Expected 3 products, got %d", page.Total)
	}
	if products[0].Title != "Silk scarf" || products[2].Title != "Wool coat" {
		t.Errorf("Unexpected price order: %s, %s", products[0].Title, products[2].Title)
	}

	page, err = store.ListProducts(ctx, db, store.ProductFilter{Query: "martens"})
	if err != nil {
		t.Fatalf("Search products: %v", err)
	}
	if page.Total != 1 {
		t.Errorf("Expected brand-name search to find 1 product, got %d", page.Total)
	}

	page, err = store.ListProducts(ctx, db, store.ProductFilter{Category: "shoes"})
	if err != nil {
		t.Fatalf("Filter products: %v", err)
	}
	if page.Total != 1 {
		t.Errorf("Expected category filter to find 1 product, got %d", page.Total)
	}

	page, err = store.ListProducts(ctx, db, store.ProductFilter{Page: store.MaxPage + 1})
	if err != nil {
		t.Fatalf("List page past the bound: %v", err)
	}
	if products := page.Items.([]models.Product); len(products) != 0 || page.Total != 3 {
		t.Errorf("Expected an empty page with total 3, got %d items, total %d", len(products), page.Total)
	}

	page, err = store.ListSellerProducts(ctx, db, seller, store.StatusAll, math.MaxInt)
	if err != nil {
		t.Fatalf("List seller page past the bound: %v", err)
	}
	if products := page.Items.([]models.Product); len(products) != 0 {
		t.Errorf("Expected an empty seller page, got %d items", len(products))
	}
}

func ptr[T any](v T) *T {
	return &v
}
