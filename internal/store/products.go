package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/safar/resale-market/internal/database"
	"github.com/safar/resale-market/internal/models"
	"github.com/shopspring/decimal"
)

const (
	CatalogPageSize     = 24
	SellerPageSize      = 20
	similarProductLimit = 4
)

type ProductInput struct {
	Title        string
	Description  string
	CategoryName string
	BrandName    string
	SizeID       *int64
	CustomSize   string
	Price        decimal.Decimal
	Quantity     int
	Condition    models.Condition
	IsActive     bool
	LegitCheck   bool
}

func (in ProductInput) validate() error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidProduct)
	case in.Price.IsNegative():
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	case in.Price.GreaterThanOrEqual(maxPrice):
		return fmt.Errorf("%w: price must be below %s", ErrInvalidProduct, maxPrice)
	case in.Quantity < 0:
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidProduct)
	case !in.Condition.Valid():
		return fmt.Errorf("%w: unknown condition %q", ErrInvalidProduct, in.Condition)
	}
	return nil
}

var ErrInvalidProduct = errors.New("invalid product")

// maxPrice is the first value that no longer fits NUMERIC(10, 2).
var maxPrice = decimal.New(1, 8)

type ProductSort string

const (
	SortNewest    ProductSort = "newest"
	SortPriceAsc  ProductSort = "price_asc"
	SortPriceDesc ProductSort = "price_desc"
)

// ProductFilter drives the public catalog listing. Zero values disable the
// corresponding filter.
type ProductFilter struct {
	Query     string
	Category  string
	Brand     string
	Condition models.Condition
	Sort      ProductSort
	Page      int
}

type SellerProductStatus string

const (
	StatusAll      SellerProductStatus = ""
	StatusActive   SellerProductStatus = "active"
	StatusSold     SellerProductStatus = "sold"
	StatusInactive SellerProductStatus = "inactive"
)

type ProductDetail struct {
	Product    *models.Product  `json:"product"`
	Seller     *models.Seller   `json:"seller"`
	Reviews    []models.Review  `json:"reviews"`
	Similar    []models.Product `json:"similar"`
	InWishlist bool             `json:"in_wishlist"`
}

const productColumns = `
	p.id, p.seller_id, p.title, p.description, p.custom_size, p.price, p.quantity, p.condition,
	p.is_active, p.is_sold, p.legit_check, p.created_at, p.updated_at, p.version,
	c.id, c.name, c.slug, b.id, b.name, b.slug, b.logo,
	s.id, s.size_type, s.value, s.display_value`

const productFrom = `
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id
	LEFT JOIN brands b ON b.id = p.brand_id
	LEFT JOIN sizes s ON s.id = p.size_id`

func scanProduct(row rowScanner) (*models.Product, error) {
	p := &models.Product{}
	var (
		customSize                  sql.NullString
		categoryID, brandID, sizeID sql.NullInt64
		categoryName, categorySlug  sql.NullString
		brandName, brandSlug, logo  sql.NullString
		sizeType, sizeValue, sizeDV sql.NullString
	)

	err := row.Scan(
		&p.ID, &p.SellerID, &p.Title, &p.Description, &customSize, &p.Price, &p.Quantity, &p.Condition,
		&p.IsActive, &p.IsSold, &p.LegitCheck, &p.CreatedAt, &p.UpdatedAt, &p.Version,
		&categoryID, &categoryName, &categorySlug, &brandID, &brandName, &brandSlug, &logo,
		&sizeID, &sizeType, &sizeValue, &sizeDV,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}

	p.CustomSize = customSize.String
	if categoryID.Valid {
		p.Category = &models.Category{ID: categoryID.Int64, Name: categoryName.String, Slug: categorySlug.String}
	}
	if brandID.Valid {
		p.Brand = &models.Brand{ID: brandID.Int64, Name: brandName.String, Slug: brandSlug.String, Logo: logo.String}
	}
	if sizeID.Valid {
		p.Size = &models.Size{
			ID:           sizeID.Int64,
			SizeType:     models.SizeType(sizeType.String),
			Value:        sizeValue.String,
			DisplayValue: sizeDV.String,
		}
	}

	return p, nil
}

func queryProducts(ctx context.Context, q database.DBTX, query string, args ...any) ([]models.Product, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if err := attachImages(ctx, q, products); err != nil {
		return nil, err
	}

	return products, nil
}

// attachImages loads images for all products with a single query.
func attachImages(ctx context.Context, q database.DBTX, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}

	ids := make([]int64, len(products))
	index := make(map[int64]int, len(products))
	for i, p := range products {
		ids[i] = p.ID
		index[p.ID] = i
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, product_id, url, storage_key, position, is_main, created_at
		 FROM product_images
		 WHERE product_id = ANY($1)
		 ORDER BY product_id, position, created_at, id`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("list product images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var img models.ProductImage
		if err := rows.Scan(&img.ID, &img.ProductID, &img.URL, &img.StorageKey,
			&img.Position, &img.IsMain, &img.CreatedAt); err != nil {
			return fmt.Errorf("scan product image: %w", err)
		}
		i := index[img.ProductID]
		products[i].Images = append(products[i].Images, img)
	}

	return rows.Err()
}

func CreateProduct(ctx context.Context, db *sql.DB, sellerID int64, in ProductInput) (*models.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	categoryID, brandID, err := resolveReferences(ctx, db, in)
	if err != nil {
		return nil, err
	}

	var id int64
	err = db.QueryRowContext(ctx,
		`INSERT INTO products (seller_id, title, description, category_id, brand_id, size_id, custom_size,
		                       price, quantity, condition, is_active, legit_check, created_at, updated_at, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW(), 1)
		 RETURNING id`,
		sellerID, strings.TrimSpace(in.Title), in.Description, categoryID, brandID, in.SizeID,
		nullString(in.CustomSize), in.Price, in.Quantity, in.Condition, in.IsActive, in.LegitCheck).Scan(&id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, database.ErrSizeNotFound
		}
		if database.IsCheckViolation(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProduct, err)
		}
		return nil, fmt.Errorf("create product: %w", err)
	}

	return GetProduct(ctx, db, id)
}

// UpdateProduct edits a product owned by sellerID. Restocking a sold product
// puts it back on sale.
func UpdateProduct(ctx context.Context, db *sql.DB, sellerID, productID int64, in ProductInput) (*models.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	categoryID, brandID, err := resolveReferences(ctx, db, in)
	if err != nil {
		return nil, err
	}

	result, err := db.ExecContext(ctx,
		`UPDATE products
		 SET title = $1, description = $2, category_id = $3, brand_id = $4, size_id = $5,
		     custom_size = $6, price = $7, quantity = $8, condition = $9, is_active = $10,
		     legit_check = $11,
		     is_sold = CASE WHEN $8 > 0 THEN FALSE ELSE is_sold END,
		     updated_at = NOW(), version = version + 1
		 WHERE id = $12 AND seller_id = $13`,
		strings.TrimSpace(in.Title), in.Description, categoryID, brandID, in.SizeID,
		nullString(in.CustomSize), in.Price, in.Quantity, in.Condition, in.IsActive,
		in.LegitCheck, productID, sellerID)
	switch {
	case err != nil && database.IsForeignKeyViolation(err):
		return nil, database.ErrSizeNotFound
	case err != nil && database.IsCheckViolation(err):
		return nil, fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}
	if err := expectOneRow(result, err, database.ErrProductNotFound); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	return GetProduct(ctx, db, productID)
}

func resolveReferences(ctx context.Context, db *sql.DB, in ProductInput) (categoryID, brandID sql.NullInt64, err error) {
	category, err := ResolveCategory(ctx, db, in.CategoryName)
	if err != nil {
		return categoryID, brandID, fmt.Errorf("resolve category: %w", err)
	}
	if category != nil {
		categoryID = sql.NullInt64{Int64: category.ID, Valid: true}
	}

	brand, err := ResolveBrand(ctx, db, in.BrandName)
	if err != nil {
		return categoryID, brandID, fmt.Errorf("resolve brand: %w", err)
	}
	if brand != nil {
		brandID = sql.NullInt64{Int64: brand.ID, Valid: true}
	}

	return categoryID, brandID, nil
}

// DeleteProduct removes a product owned by sellerID and returns its images so
// the caller can remove the stored assets.
func DeleteProduct(ctx context.Context, db *sql.DB, sellerID, productID int64) ([]models.ProductImage, error) {
	var images []models.ProductImage

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if _, err := lockOwnedProduct(ctx, tx, sellerID, productID); err != nil {
			return err
		}

		var err error
		images, err = listImages(ctx, tx, productID)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID); err != nil {
			return fmt.Errorf("delete product: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return images, nil
}

// lockOwnedProduct row-locks the product and checks it belongs to sellerID.
// Products of other sellers are reported as not found.
func lockOwnedProduct(ctx context.Context, tx *sql.Tx, sellerID, productID int64) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM products WHERE id = $1 AND seller_id = $2 FOR UPDATE`,
		productID, sellerID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, database.ErrProductNotFound
		}
		return 0, fmt.Errorf("lock product: %w", err)
	}
	return id, nil
}

func GetProduct(ctx context.Context, q database.DBTX, id int64) (*models.Product, error) {
	p, err := scanProduct(q.QueryRowContext(ctx,
		`SELECT `+productColumns+productFrom+` WHERE p.id = $1`, id))
	if err != nil {
		return nil, err
	}

	products := []models.Product{*p}
	if err := attachImages(ctx, q, products); err != nil {
		return nil, err
	}

	return &products[0], nil
}

// GetOwnedProduct returns the product only when sellerID owns it.
func GetOwnedProduct(ctx context.Context, q database.DBTX, sellerID, productID int64) (*models.Product, error) {
	p, err := GetProduct(ctx, q, productID)
	if err != nil {
		return nil, err
	}
	if p.SellerID != sellerID {
		return nil, database.ErrProductNotFound
	}
	return p, nil
}

// GetProductDetail builds the public product page. Inactive products are not
// found. customerID is zero for anonymous visitors and sellers.
func GetProductDetail(ctx context.Context, db *sql.DB, productID, customerID int64) (*ProductDetail, error) {
	product, err := GetProduct(ctx, db, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, database.ErrProductNotFound
	}

	detail := &ProductDetail{Product: product}

	detail.Seller, err = GetSeller(ctx, db, product.SellerID)
	if err != nil {
		return nil, err
	}

	detail.Reviews, err = listApprovedProductReviews(ctx, db, productID)
	if err != nil {
		return nil, err
	}

	detail.Similar = []models.Product{}
	if product.Category != nil {
		detail.Similar, err = queryProducts(ctx, db,
			`SELECT `+productColumns+productFrom+`
			 WHERE p.category_id = $1 AND p.id <> $2 AND p.is_active AND NOT p.is_sold
			 ORDER BY p.created_at DESC
			 LIMIT $3`,
			product.Category.ID, productID, similarProductLimit)
		if err != nil {
			return nil, err
		}
	}

	if customerID > 0 {
		detail.InWishlist, err = InWishlist(ctx, db, customerID, productID)
		if err != nil {
			return nil, err
		}
	}

	return detail, nil
}

// ListProducts returns a page of active, unsold products matching filter.
func ListProducts(ctx context.Context, db database.DBTX, filter ProductFilter) (*OffsetPage, error) {
	conds := []string{"p.is_active", "NOT p.is_sold"}
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := arg("%" + escapeLike(q) + "%")
		conds = append(conds, fmt.Sprintf(
			`(p.title ILIKE %[1]s ESCAPE '\' OR p.description ILIKE %[1]s ESCAPE '\' OR b.name ILIKE %[1]s ESCAPE '\')`,
			pattern))
	}
	if filter.Category != "" {
		conds = append(conds, "c.slug = "+arg(filter.Category))
	}
	if filter.Brand != "" {
		conds = append(conds, "b.slug = "+arg(filter.Brand))
	}
	if filter.Condition != "" {
		conds = append(conds, "p.condition = "+arg(string(filter.Condition)))
	}

	order := "p.created_at DESC, p.id DESC"
	switch filter.Sort {
	case SortPriceAsc:
		order = "p.price ASC, p.id DESC"
	case SortPriceDesc:
		order = "p.price DESC, p.id DESC"
	}

	return pagedProducts(ctx, db, strings.Join(conds, " AND "), order, args, filter.Page, CatalogPageSize)
}

func ListSellerProducts(ctx context.Context, db database.DBTX, sellerID int64, status SellerProductStatus, page int) (*OffsetPage, error) {
	conds := []string{"p.seller_id = $1"}
	switch status {
	case StatusActive:
		conds = append(conds, "p.is_active", "NOT p.is_sold")
	case StatusSold:
		conds = append(conds, "p.is_sold")
	case StatusInactive:
		conds = append(conds, "NOT p.is_active")
	}

	return pagedProducts(ctx, db, strings.Join(conds, " AND "), "p.created_at DESC, p.id DESC",
		[]any{sellerID}, page, SellerPageSize)
}

// ExportSellerProducts returns every product of the seller, newest first.
func ExportSellerProducts(ctx context.Context, db database.DBTX, sellerID int64) ([]models.Product, error) {
	return queryProducts(ctx, db,
		`SELECT `+productColumns+productFrom+`
		 WHERE p.seller_id = $1
		 ORDER BY p.created_at DESC, p.id DESC`,
		sellerID)
}

func pagedProducts(ctx context.Context, db database.DBTX, where, order string, args []any, page, pageSize int) (*OffsetPage, error) {
	if page < 1 {
		page = 1
	}

	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*)`+productFrom+` WHERE `+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	if page > MaxPage {
		return newOffsetPage([]models.Product{}, total, page, pageSize), nil
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		productColumns, productFrom, where, order, n+1, n+2)

	products, err := queryProducts(ctx, db, query, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return nil, err
	}

	return newOffsetPage(products, total, page, pageSize), nil
}
