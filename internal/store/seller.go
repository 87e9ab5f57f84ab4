package store

import (
	"context"
	"fmt"
	"time"

	"github.com/safar/resale-market/internal/database"
	"github.com/safar/resale-market/internal/models"
	"github.com/shopspring/decimal"
)

const (
	dashboardRecentDays  = 30
	dashboardRecentLimit = 5
	statsTopLimit        = 10
	statsMonths          = 6
	publicProductsLimit  = 12
	publicReviewsLimit   = 5
)

type ProductCounts struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	Sold   int `json:"sold"`
}

type RatingSummary struct {
	Count   int             `json:"count"`
	Average decimal.Decimal `json:"average"`
}

type Dashboard struct {
	Seller         *models.Seller   `json:"seller"`
	Products       ProductCounts    `json:"products"`
	RecentCount    int              `json:"recent_count"`
	Rating         RatingSummary    `json:"rating"`
	RecentProducts []models.Product `json:"recent_products"`
}

type NamedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type MonthCount struct {
	Month time.Time `json:"month"`
	Count int       `json:"count"`
}

type RatingCount struct {
	Rating int `json:"rating"`
	Count  int `json:"count"`
}

type Stats struct {
	Products           ProductCounts `json:"products"`
	Categories         []NamedCount  `json:"categories"`
	Brands             []NamedCount  `json:"brands"`
	Monthly            []MonthCount  `json:"monthly"`
	Rating             RatingSummary `json:"rating"`
	RatingDistribution []RatingCount `json:"rating_distribution"`
}

type PublicPage struct {
	Seller        *models.Seller   `json:"seller"`
	Products      []models.Product `json:"products"`
	Reviews       []models.Review  `json:"reviews"`
	AverageRating decimal.Decimal  `json:"average_rating"`
	TotalProducts int              `json:"total_products"`
}

func productCounts(ctx context.Context, db database.DBTX, sellerID int64) (ProductCounts, error) {
	var c ProductCounts
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE is_active AND NOT is_sold),
		        COUNT(*) FILTER (WHERE is_sold)
		 FROM products
		 WHERE seller_id = $1`,
		sellerID).Scan(&c.Total, &c.Active, &c.Sold)
	if err != nil {
		return c, fmt.Errorf("count seller products: %w", err)
	}
	return c, nil
}

func ratingSummary(ctx context.Context, db database.DBTX, sellerID int64) (RatingSummary, error) {
	var r RatingSummary
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(ROUND(AVG(rating)::numeric, 1), 0)
		 FROM reviews
		 WHERE seller_id = $1 AND is_approved`,
		sellerID).Scan(&r.Count, &r.Average)
	if err != nil {
		return r, fmt.Errorf("summarize ratings: %w", err)
	}
	return r, nil
}

func SellerDashboard(ctx context.Context, db database.DBTX, sellerID int64) (*Dashboard, error) {
	seller, err := GetSeller(ctx, db, sellerID)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{Seller: seller}

	if d.Products, err = productCounts(ctx, db, sellerID); err != nil {
		return nil, err
	}

	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products
		 WHERE seller_id = $1 AND created_at >= NOW() - make_interval(days => $2::int)`,
		sellerID, dashboardRecentDays).Scan(&d.RecentCount)
	if err != nil {
		return nil, fmt.Errorf("count recent products: %w", err)
	}

	if d.Rating, err = ratingSummary(ctx, db, sellerID); err != nil {
		return nil, err
	}

	d.RecentProducts, err = queryProducts(ctx, db,
		`SELECT `+productColumns+productFrom+`
		 WHERE p.seller_id = $1
		 ORDER BY p.created_at DESC, p.id DESC
		 LIMIT $2`,
		sellerID, dashboardRecentLimit)
	if err != nil {
		return nil, err
	}

	return d, nil
}

func namedCounts(ctx context.Context, db database.DBTX, query string, args ...any) ([]NamedCount, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("group products: %w", err)
	}
	defer rows.Close()

	out := []NamedCount{}
	for rows.Next() {
		var nc NamedCount
		if err := rows.Scan(&nc.Name, &nc.Count); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, nc)
	}
	return out, rows.Err()
}

// SellerStats aggregates a seller's catalog: top categories and brands,
// products listed per calendar month for the last six months, and the
// distribution of approved review ratings.
func SellerStats(ctx context.Context, db database.DBTX, sellerID int64) (*Stats, error) {
	s := &Stats{}
	var err error

	if s.Products, err = productCounts(ctx, db, sellerID); err != nil {
		return nil, err
	}

	s.Categories, err = namedCounts(ctx, db,
		`SELECT COALESCE(c.name, ''), COUNT(*)
		 FROM products p
		 LEFT JOIN categories c ON c.id = p.category_id
		 WHERE p.seller_id = $1
		 GROUP BY c.name
		 ORDER BY COUNT(*) DESC, c.name
		 LIMIT $2`,
		sellerID, statsTopLimit)
	if err != nil {
		return nil, err
	}

	s.Brands, err = namedCounts(ctx, db,
		`SELECT COALESCE(b.name, ''), COUNT(*)
		 FROM products p
		 LEFT JOIN brands b ON b.id = p.brand_id
		 WHERE p.seller_id = $1
		 GROUP BY b.name
		 ORDER BY COUNT(*) DESC, b.name
		 LIMIT $2`,
		sellerID, statsTopLimit)
	if err != nil {
		return nil, err
	}

	if s.Monthly, err = monthlyCounts(ctx, db, sellerID); err != nil {
		return nil, err
	}

	if s.Rating, err = ratingSummary(ctx, db, sellerID); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT rating, COUNT(*)
		 FROM reviews
		 WHERE seller_id = $1 AND is_approved
		 GROUP BY rating
		 ORDER BY rating`,
		sellerID)
	if err != nil {
		return nil, fmt.Errorf("rating distribution: %w", err)
	}
	defer rows.Close()

	s.RatingDistribution = []RatingCount{}
	for rows.Next() {
		var rc RatingCount
		if err := rows.Scan(&rc.Rating, &rc.Count); err != nil {
			return nil, fmt.Errorf("scan rating count: %w", err)
		}
		s.RatingDistribution = append(s.RatingDistribution, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return s, nil
}

// monthlyCounts returns one bucket per month, oldest first, including
// months with no products.
func monthlyCounts(ctx context.Context, db database.DBTX, sellerID int64) ([]MonthCount, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT m.month, COUNT(p.id)
		 FROM generate_series(
		          date_trunc('month', NOW()) - make_interval(months => $2::int - 1),
		          date_trunc('month', NOW()),
		          interval '1 month') AS m(month)
		 LEFT JOIN products p
		        ON p.seller_id = $1
		       AND p.created_at >= m.month
		       AND p.created_at < m.month + interval '1 month'
		 GROUP BY m.month
		 ORDER BY m.month`,
		sellerID, statsMonths)
	if err != nil {
		return nil, fmt.Errorf("monthly product counts: %w", err)
	}
	defer rows.Close()

	out := make([]MonthCount, 0, statsMonths)
	for rows.Next() {
		var mc MonthCount
		if err := rows.Scan(&mc.Month, &mc.Count); err != nil {
			return nil, fmt.Errorf("scan month: %w", err)
		}
		out = append(out, mc)
	}
	return out, rows.Err()
}

// SellerPublicPage is the storefront of an active, unblocked seller.
func SellerPublicPage(ctx context.Context, db database.DBTX, sellerID int64) (*PublicPage, error) {
	seller, err := GetSeller(ctx, db, sellerID)
	if err != nil {
		return nil, err
	}
	if !seller.CanSell() {
		return nil, database.ErrSellerNotFound
	}

	page := &PublicPage{Seller: seller}

	page.Products, err = queryProducts(ctx, db,
		`SELECT `+productColumns+productFrom+`
		 WHERE p.seller_id = $1 AND p.is_active AND NOT p.is_sold
		 ORDER BY p.created_at DESC, p.id DESC
		 LIMIT $2`,
		sellerID, publicProductsLimit)
	if err != nil {
		return nil, err
	}

	if page.Reviews, err = ListSellerReviews(ctx, db, sellerID, publicReviewsLimit); err != nil {
		return nil, err
	}

	rating, err := ratingSummary(ctx, db, sellerID)
	if err != nil {
		return nil, err
	}
	page.AverageRating = rating.Average

	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE seller_id = $1 AND is_active`,
		sellerID).Scan(&page.TotalProducts)
	if err != nil {
		return nil, fmt.Errorf("count seller products: %w", err)
	}

	return page, nil
}
