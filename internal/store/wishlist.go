package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/resale-market/internal/database"
	"github.com/safar/resale-market/internal/models"
)

// ToggleWishlist removes the product from the wishlist if present, otherwise
// adds it. It reports whether the product is now in the wishlist.
func ToggleWishlist(ctx context.Context, db *sql.DB, customerID, productID int64) (bool, error) {
	var added bool

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var isActive bool
		err := tx.QueryRowContext(ctx,
			`SELECT is_active FROM products WHERE id = $1`, productID).Scan(&isActive)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrProductNotFound
			}
			return fmt.Errorf("get product: %w", err)
		}
		if !isActive {
			return database.ErrProductNotFound
		}

		var id int64
		err = tx.QueryRowContext(ctx,
			`DELETE FROM wishlist_entries WHERE customer_id = $1 AND product_id = $2 RETURNING id`,
			customerID, productID).Scan(&id)
		if err == nil {
			added = false
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("remove wishlist entry: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO wishlist_entries (customer_id, product_id, added_at)
			 VALUES ($1, $2, NOW())
			 ON CONFLICT ON CONSTRAINT wishlist_customer_product_key DO NOTHING`,
			customerID, productID)
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return database.ErrProfileNotFound
			}
			return fmt.Errorf("add wishlist entry: %w", err)
		}
		added = true

		return IncrementWishlistAdds(ctx, tx, productID)
	})
	if err != nil {
		return false, err
	}

	return added, nil
}

func InWishlist(ctx context.Context, db database.DBTX, customerID, productID int64) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM wishlist_entries WHERE customer_id = $1 AND product_id = $2)`,
		customerID, productID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check wishlist: %w", err)
	}
	return exists, nil
}

// ListWishlist returns the customer's entries, most recently added first.
func ListWishlist(ctx context.Context, db database.DBTX, customerID int64) ([]models.WishlistEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT w.id, w.added_at, `+productColumns+`
		 FROM wishlist_entries w
		 JOIN products p ON p.id = w.product_id
		 LEFT JOIN categories c ON c.id = p.category_id
		 LEFT JOIN brands b ON b.id = p.brand_id
		 LEFT JOIN sizes s ON s.id = p.size_id
		 WHERE w.customer_id = $1
		 ORDER BY w.added_at DESC, w.id DESC`,
		customerID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	defer rows.Close()

	entries := []models.WishlistEntry{}
	var products []models.Product
	for rows.Next() {
		var entry models.WishlistEntry
		p, err := scanProduct(prefixScanner{row: rows, prefix: []any{&entry.ID, &entry.AddedAt}})
		if err != nil {
			return nil, err
		}
		entry.CustomerID = customerID
		entries = append(entries, entry)
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if err := attachImages(ctx, db, products); err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Product = products[i]
	}

	return entries, nil
}

// prefixScanner lets a scan function for a fixed column list read rows that
// carry extra leading columns.
type prefixScanner struct {
	row    rowScanner
	prefix []any
}

func (s prefixScanner) Scan(dest ...any) error {
	return s.row.Scan(append(s.prefix, dest...)...)
}
