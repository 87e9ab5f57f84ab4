package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"

	"github.com/safar/resale-market/internal/database"
	"github.com/safar/resale-market/internal/models"
)

// bumpCounter adds delta to one analytics column, creating the row on first
// use. column is always one of the constant names below.
func bumpCounter(ctx context.Context, q database.DBTX, productID int64, column string, delta int) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO product_analytics (product_id, `+column+`, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (product_id)
		 DO UPDATE SET `+column+` = product_analytics.`+column+` + EXCLUDED.`+column+`,
		               updated_at = NOW()`,
		productID, delta)
	if err != nil {
		return fmt.Errorf("increment %s: %w", column, err)
	}
	return nil
}

func IncrementCartAdds(ctx context.Context, q database.DBTX, productID int64) error {
	return bumpCounter(ctx, q, productID, "times_added_to_cart", 1)
}

func IncrementWishlistAdds(ctx context.Context, q database.DBTX, productID int64) error {
	return bumpCounter(ctx, q, productID, "times_added_to_wishlist", 1)
}

func IncrementPurchases(ctx context.Context, q database.DBTX, productID int64, quantity int) error {
	return bumpCounter(ctx, q, productID, "times_purchased", quantity)
}

// RecordView stores a product view and bumps the view counters. unique
// marks the first view of this visitor inside the dedup window.
func RecordView(ctx context.Context, db *sql.DB, productID, customerID int64, ip net.IP, unique bool) error {
	uniqueDelta := 0
	if unique {
		uniqueDelta = 1
	}

	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var ipAddr sql.NullString
		if ip != nil {
			ipAddr = sql.NullString{String: ip.String(), Valid: true}
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO product_views (product_id, customer_id, ip_address, viewed_at)
			 VALUES ($1, $2, $3, NOW())`,
			productID, sql.NullInt64{Int64: customerID, Valid: customerID > 0}, ipAddr)
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return database.ErrProductNotFound
			}
			return fmt.Errorf("record view: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO product_analytics (product_id, total_views, unique_views, last_viewed_at, updated_at)
			 VALUES ($1, 1, $2, NOW(), NOW())
			 ON CONFLICT (product_id)
			 DO UPDATE SET total_views = product_analytics.total_views + 1,
			               unique_views = product_analytics.unique_views + EXCLUDED.unique_views,
			               last_viewed_at = NOW(),
			               updated_at = NOW()`,
			productID, uniqueDelta)
		if err != nil {
			return fmt.Errorf("increment views: %w", err)
		}
		return nil
	})
}

// SeenRecently reports whether the visitor viewed the product inside the
// window. It is the fallback dedup when no cache is configured.
func SeenRecently(ctx context.Context, db database.DBTX, productID, customerID int64, ip net.IP, windowSeconds int) (bool, error) {
	var ipAddr sql.NullString
	if ip != nil {
		ipAddr = sql.NullString{String: ip.String(), Valid: true}
	}

	var seen bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(
		     SELECT 1 FROM product_views
		     WHERE product_id = $1
		       AND viewed_at >= NOW() - make_interval(secs => $4::int)
		       AND (($2::bigint > 0 AND customer_id = $2::bigint)
		            OR ($2::bigint = 0 AND ip_address = $3::inet))
		 )`,
		productID, customerID, ipAddr, windowSeconds).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("check recent view: %w", err)
	}
	return seen, nil
}

func RecordSearch(ctx context.Context, db database.DBTX, query string, customerID int64, results int64) error {
	if len(query) > 200 {
		query = query[:200]
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO search_queries (query, customer_id, results_count, searched_at)
		 VALUES ($1, $2, $3, NOW())`,
		query, sql.NullInt64{Int64: customerID, Valid: customerID > 0}, results)
	if err != nil {
		return fmt.Errorf("record search: %w", err)
	}
	return nil
}

// GetProductAnalytics returns the counters of a product; a product that was
// never touched reports zeros.
func GetProductAnalytics(ctx context.Context, db database.DBTX, productID int64) (*models.ProductAnalytics, error) {
	a := &models.ProductAnalytics{ProductID: productID}
	var lastViewed sql.NullTime

	err := db.QueryRowContext(ctx,
		`SELECT total_views, unique_views, times_added_to_cart, times_added_to_wishlist,
		        times_purchased, last_viewed_at, updated_at
		 FROM product_analytics
		 WHERE product_id = $1`,
		productID).Scan(&a.TotalViews, &a.UniqueViews, &a.TimesAddedToCart, &a.TimesAddedToWishlist,
		&a.TimesPurchased, &lastViewed, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, nil
		}
		return nil, fmt.Errorf("get product analytics: %w", err)
	}
	if lastViewed.Valid {
		a.LastViewedAt = &lastViewed.Time
	}

	return a, nil
}
