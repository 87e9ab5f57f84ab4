package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"github.com/safar/resale-market/internal/database"
	"github.com/safar/resale-market/internal/models"
	"github.com/shopspring/decimal"
)

const (
	maxSlugAttempts   = 1000
	autocompleteLimit = 10
)

type CategoryInput struct {
	Name     string
	ParentID *int64
	SizeType models.SizeType
}

type SizeInput struct {
	SizeType     models.SizeType
	Value        string
	DisplayValue string
	USSize       string
	EUSize       string
	CMSize       decimal.NullDecimal
}

// baseSlug transliterates name; names with no sluggable characters fall back
// to the fallback word.
func baseSlug(name, fallback string) string {
	if s := slug.Make(name); s != "" {
		return s
	}
	return fallback
}

// insertWithSlug runs query with $1 bound to base, base-1, base-2, ... until
// the insert returns a row. query must end in ON CONFLICT DO NOTHING
// RETURNING id.
func insertWithSlug(ctx context.Context, q database.DBTX, query, base string, args ...any) (int64, string, error) {
	for n := 0; n < maxSlugAttempts; n++ {
		candidate := base
		if n > 0 {
			candidate = fmt.Sprintf("%s-%d", base, n)
		}

		var id int64
		err := q.QueryRowContext(ctx, query, append([]any{candidate}, args...)...).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return 0, "", err
		}
		return id, candidate, nil
	}
	return 0, "", fmt.Errorf("no free slug for %q after %d attempts", base, maxSlugAttempts)
}

func nullSizeType(t models.SizeType) sql.NullString {
	return sql.NullString{String: string(t), Valid: t != ""}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func CreateCategory(ctx context.Context, db *sql.DB, in CategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("create category: %w: name is required", database.ErrInvalidInput)
	}
	if in.SizeType != "" && !in.SizeType.Valid() {
		return nil, fmt.Errorf("create category: %w: unknown size type %q", database.ErrInvalidInput, in.SizeType)
	}

	category := &models.Category{Name: name, ParentID: in.ParentID, SizeType: in.SizeType}

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		id, s, err := insertWithSlug(ctx, tx,
			`INSERT INTO categories (slug, name, parent_id, size_type)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT ON CONSTRAINT categories_slug_key DO NOTHING
			 RETURNING id`,
			baseSlug(name, "category"), name, in.ParentID, nullSizeType(in.SizeType))
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return database.ErrCategoryNotFound
			}
			return fmt.Errorf("create category: %w", err)
		}
		category.ID, category.Slug = id, s
		return nil
	})
	if err != nil {
		return nil, err
	}

	return category, nil
}

// ResolveCategory returns the category whose name matches case-insensitively,
// creating it when none exists. An empty name resolves to nil.
func ResolveCategory(ctx context.Context, db *sql.DB, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	var category *models.Category
	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if err := lockName(ctx, tx, "categories", name); err != nil {
			return err
		}

		existing, err := findCategoryByName(ctx, tx, name)
		if err == nil {
			category = existing
			return nil
		}
		if !errors.Is(err, database.ErrCategoryNotFound) {
			return err
		}

		id, s, err := insertWithSlug(ctx, tx,
			`INSERT INTO categories (slug, name)
			 VALUES ($1, $2)
			 ON CONFLICT ON CONSTRAINT categories_slug_key DO NOTHING
			 RETURNING id`,
			baseSlug(name, "category"), name)
		if err != nil {
			return fmt.Errorf("create category: %w", err)
		}
		category = &models.Category{ID: id, Name: name, Slug: s}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return category, nil
}

// lockName serializes get-or-create of the same name within table until
// the surrounding transaction ends.
func lockName(ctx context.Context, tx *sql.Tx, table, name string) error {
	_, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1::text || ':' || LOWER($2::text)))`,
		table, name)
	if err != nil {
		return fmt.Errorf("lock %s name: %w", table, err)
	}
	return nil
}

func findCategoryByName(ctx context.Context, q database.DBTX, name string) (*models.Category, error) {
	return scanCategory(q.QueryRowContext(ctx,
		`SELECT id, name, slug, parent_id, size_type
		 FROM categories
		 WHERE LOWER(name) = LOWER($1)
		 ORDER BY id
		 LIMIT 1`,
		name))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (*models.Category, error) {
	c := &models.Category{}
	var (
		parentID sql.NullInt64
		sizeType sql.NullString
	)

	if err := row.Scan(&c.ID, &c.Name, &c.Slug, &parentID, &sizeType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("scan category: %w", err)
	}
	if parentID.Valid {
		c.ParentID = &parentID.Int64
	}
	c.SizeType = models.SizeType(sizeType.String)

	return c, nil
}

func queryCategories(ctx context.Context, q database.DBTX, query string, args ...any) ([]models.Category, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return categories, nil
}

func ListRootCategories(ctx context.Context, db database.DBTX) ([]models.Category, error) {
	return queryCategories(ctx, db,
		`SELECT id, name, slug, parent_id, size_type
		 FROM categories
		 WHERE parent_id IS NULL
		 ORDER BY name`)
}

// ListCategoryTree returns root categories with their descendants nested
// under Children.
func ListCategoryTree(ctx context.Context, db database.DBTX) ([]models.Category, error) {
	all, err := queryCategories(ctx, db,
		`SELECT id, name, slug, parent_id, size_type FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}

	children := make(map[int64][]models.Category)
	var roots []models.Category
	for _, c := range all {
		if c.ParentID == nil {
			roots = append(roots, c)
			continue
		}
		children[*c.ParentID] = append(children[*c.ParentID], c)
	}

	var attach func(c *models.Category, depth int)
	attach = func(c *models.Category, depth int) {
		if depth > len(all) {
			return
		}
		c.Children = children[c.ID]
		for i := range c.Children {
			attach(&c.Children[i], depth+1)
		}
	}
	for i := range roots {
		attach(&roots[i], 0)
	}

	if roots == nil {
		roots = []models.Category{}
	}
	return roots, nil
}

func AutocompleteCategories(ctx context.Context, db database.DBTX, q string) ([]models.Category, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.Category{}, nil
	}
	return queryCategories(ctx, db,
		`SELECT id, name, slug, parent_id, size_type
		 FROM categories
		 WHERE name ILIKE '%' || $1::text || '%' ESCAPE '\'
		 ORDER BY name
		 LIMIT $2`,
		escapeLike(q), autocompleteLimit)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func CreateBrand(ctx context.Context, db *sql.DB, name, logo string) (*models.Brand, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("create brand: %w: name is required", database.ErrInvalidInput)
	}

	brand := &models.Brand{Name: name, Logo: logo}

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		id, s, err := insertWithSlug(ctx, tx,
			`INSERT INTO brands (slug, name, logo)
			 VALUES ($1, $2, $3)
			 ON CONFLICT ON CONSTRAINT brands_slug_key DO NOTHING
			 RETURNING id`,
			baseSlug(name, "brand"), name, nullString(logo))
		if err != nil {
			return fmt.Errorf("create brand: %w", err)
		}
		brand.ID, brand.Slug = id, s
		return nil
	})
	if err != nil {
		return nil, err
	}

	return brand, nil
}

// ResolveBrand is the brand counterpart of ResolveCategory.
func ResolveBrand(ctx context.Context, db *sql.DB, name string) (*models.Brand, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	var brand *models.Brand
	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if err := lockName(ctx, tx, "brands", name); err != nil {
			return err
		}

		existing, err := scanBrand(tx.QueryRowContext(ctx,
			`SELECT id, name, slug, logo
			 FROM brands
			 WHERE LOWER(name) = LOWER($1)
			 ORDER BY id
			 LIMIT 1`,
			name))
		if err == nil {
			brand = existing
			return nil
		}
		if !errors.Is(err, database.ErrBrandNotFound) {
			return err
		}

		id, s, err := insertWithSlug(ctx, tx,
			`INSERT INTO brands (slug, name)
			 VALUES ($1, $2)
			 ON CONFLICT ON CONSTRAINT brands_slug_key DO NOTHING
			 RETURNING id`,
			baseSlug(name, "brand"), name)
		if err != nil {
			return fmt.Errorf("create brand: %w", err)
		}
		brand = &models.Brand{ID: id, Name: name, Slug: s}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return brand, nil
}

func scanBrand(row rowScanner) (*models.Brand, error) {
	b := &models.Brand{}
	var logo sql.NullString

	if err := row.Scan(&b.ID, &b.Name, &b.Slug, &logo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrBrandNotFound
		}
		return nil, fmt.Errorf("scan brand: %w", err)
	}
	b.Logo = logo.String

	return b, nil
}

func GetBrand(ctx context.Context, q database.DBTX, id int64) (*models.Brand, error) {
	return scanBrand(q.QueryRowContext(ctx,
		`SELECT id, name, slug, logo FROM brands WHERE id = $1`, id))
}

func queryBrands(ctx context.Context, q database.DBTX, query string, args ...any) ([]models.Brand, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	defer rows.Close()

	brands := []models.Brand{}
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			return nil, err
		}
		brands = append(brands, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return brands, nil
}

func ListBrands(ctx context.Context, db database.DBTX) ([]models.Brand, error) {
	return queryBrands(ctx, db, `SELECT id, name, slug, logo FROM brands ORDER BY name`)
}

func AutocompleteBrands(ctx context.Context, db database.DBTX, q string) ([]models.Brand, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.Brand{}, nil
	}
	return queryBrands(ctx, db,
		`SELECT id, name, slug, logo
		 FROM brands
		 WHERE name ILIKE '%' || $1::text || '%' ESCAPE '\'
		 ORDER BY name
		 LIMIT $2`,
		escapeLike(q), autocompleteLimit)
}

// SetBrandLogo replaces the logo and returns the previous one.
func SetBrandLogo(ctx context.Context, db *sql.DB, brandID int64, logo string) (string, error) {
	var previous sql.NullString

	err := db.QueryRowContext(ctx,
		`WITH old AS (SELECT logo FROM brands WHERE id = $2)
		 UPDATE brands SET logo = $1
		 WHERE id = $2
		 RETURNING (SELECT logo FROM old)`,
		nullString(logo), brandID).Scan(&previous)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", database.ErrBrandNotFound
		}
		return "", fmt.Errorf("set brand logo: %w", err)
	}

	return previous.String, nil
}

func CreateSize(ctx context.Context, db database.DBTX, in SizeInput) (*models.Size, error) {
	if !in.SizeType.Valid() {
		return nil, fmt.Errorf("create size: %w: unknown size type %q", database.ErrInvalidInput, in.SizeType)
	}
	if strings.TrimSpace(in.Value) == "" {
		return nil, fmt.Errorf("create size: %w: value is required", database.ErrInvalidInput)
	}
	if in.DisplayValue == "" {
		in.DisplayValue = in.Value
	}

	size := &models.Size{
		SizeType:     in.SizeType,
		Value:        strings.TrimSpace(in.Value),
		DisplayValue: in.DisplayValue,
		USSize:       in.USSize,
		EUSize:       in.EUSize,
		CMSize:       in.CMSize,
	}

	err := db.QueryRowContext(ctx,
		`INSERT INTO sizes (size_type, value, display_value, us_size, eu_size, cm_size)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		size.SizeType, size.Value, size.DisplayValue,
		nullString(size.USSize), nullString(size.EUSize), size.CMSize).Scan(&size.ID)
	if err != nil {
		if database.IsUniqueViolation(err, "sizes_type_value_key") {
			return nil, database.ErrSizeExists
		}
		return nil, fmt.Errorf("create size: %w", err)
	}

	return size, nil
}

func scanSize(row rowScanner) (*models.Size, error) {
	s := &models.Size{}
	var us, eu sql.NullString

	if err := row.Scan(&s.ID, &s.SizeType, &s.Value, &s.DisplayValue, &us, &eu, &s.CMSize); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrSizeNotFound
		}
		return nil, fmt.Errorf("scan size: %w", err)
	}
	s.USSize, s.EUSize = us.String, eu.String

	return s, nil
}

// ListSizes returns every size, or only those of sizeType when it is set.
func ListSizes(ctx context.Context, db database.DBTX, sizeType models.SizeType) ([]models.Size, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, size_type, value, display_value, us_size, eu_size, cm_size
		 FROM sizes
		 WHERE $1::text = '' OR size_type = $1::text
		 ORDER BY size_type, value`,
		string(sizeType))
	if err != nil {
		return nil, fmt.Errorf("list sizes: %w", err)
	}
	defer rows.Close()

	sizes := []models.Size{}
	for rows.Next() {
		s, err := scanSize(rows)
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return sizes, nil
}
