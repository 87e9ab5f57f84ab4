package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/resale-market/internal/database"
	"github.com/safar/resale-market/internal/models"
)

type ReviewInput struct {
	ProductID int64
	Rating    int
	Comment   string
}

// ReviewCreated is the stored review plus the notification sent to the seller.
type ReviewCreated struct {
	Review       *models.Review
	Notification *models.Notification
}

const reviewColumns = `
	r.id, r.customer_id, cu.name, r.seller_id, r.product_id, r.rating, r.comment,
	r.is_approved, r.created_at, r.updated_at`

func scanReview(row rowScanner) (*models.Review, error) {
	r := &models.Review{}
	err := row.Scan(&r.ID, &r.CustomerID, &r.CustomerName, &r.SellerID, &r.ProductID, &r.Rating,
		&r.Comment, &r.IsApproved, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrReviewNotFound
		}
		return nil, fmt.Errorf("scan review: %w", err)
	}
	return r, nil
}

func queryReviews(ctx context.Context, q database.DBTX, query string, args ...any) ([]models.Review, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []models.Review{}
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return reviews, nil
}

// CreateReview stores an unapproved review of the product's seller.
func CreateReview(ctx context.Context, db *sql.DB, customerID int64, in ReviewInput) (*ReviewCreated, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, database.ErrInvalidRating
	}
	comment := strings.TrimSpace(in.Comment)
	if comment == "" {
		return nil, fmt.Errorf("%w: comment is required", database.ErrInvalidReview)
	}

	created := &ReviewCreated{}

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var (
			sellerID int64
			title    string
		)
		err := tx.QueryRowContext(ctx,
			`SELECT seller_id, title FROM products WHERE id = $1 AND is_active`,
			in.ProductID).Scan(&sellerID, &title)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrProductNotFound
			}
			return fmt.Errorf("get product: %w", err)
		}

		var id int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO reviews (customer_id, seller_id, product_id, rating, comment, is_approved, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, FALSE, NOW(), NOW())
			 RETURNING id`,
			customerID, sellerID, in.ProductID, in.Rating, comment).Scan(&id)
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return database.ErrProfileNotFound
			}
			return fmt.Errorf("create review: %w", err)
		}

		created.Review, err = getReview(ctx, tx, id)
		if err != nil {
			return err
		}

		sellerUser, err := profileUserID(ctx, tx, "sellers", sellerID)
		if err != nil {
			return err
		}

		created.Notification, err = CreateNotification(ctx, tx, NotificationInput{
			UserID:  sellerUser,
			Type:    models.NotificationReviewReceived,
			Title:   "New review",
			Message: fmt.Sprintf("%s rated %q %d/5.", created.Review.CustomerName, title, in.Rating),
			Link:    fmt.Sprintf("/sellers/%d", sellerID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func getReview(ctx context.Context, q database.DBTX, id int64) (*models.Review, error) {
	return scanReview(q.QueryRowContext(ctx,
		`SELECT `+reviewColumns+`
		 FROM reviews r
		 JOIN customers cu ON cu.id = r.customer_id
		 WHERE r.id = $1`,
		id))
}

func ApproveReview(ctx context.Context, db database.DBTX, id int64) (*models.Review, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE reviews SET is_approved = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err := expectOneRow(result, err, database.ErrReviewNotFound); err != nil {
		return nil, fmt.Errorf("approve review: %w", err)
	}
	return getReview(ctx, db, id)
}

// ListSellerReviews returns the newest approved reviews of a seller.
func ListSellerReviews(ctx context.Context, db database.DBTX, sellerID int64, limit int) ([]models.Review, error) {
	return queryReviews(ctx, db,
		`SELECT `+reviewColumns+`
		 FROM reviews r
		 JOIN customers cu ON cu.id = r.customer_id
		 WHERE r.seller_id = $1 AND r.is_approved
		 ORDER BY r.created_at DESC, r.id DESC
		 LIMIT $2`,
		sellerID, limit)
}

func listApprovedProductReviews(ctx context.Context, db database.DBTX, productID int64) ([]models.Review, error) {
	return queryReviews(ctx, db,
		`SELECT `+reviewColumns+`
		 FROM reviews r
		 JOIN customers cu ON cu.id = r.customer_id
		 WHERE r.product_id = $1 AND r.is_approved
		 ORDER BY r.created_at DESC, r.id DESC`,
		productID)
}
