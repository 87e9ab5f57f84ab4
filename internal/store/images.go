package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/resale-market/internal/database"
	"github.com/safar/resale-market/internal/models"
)

type ImageInput struct {
	URL        string
	StorageKey string
	Position   int
	IsMain     bool
}

func listImages(ctx context.Context, q database.DBTX, productID int64) ([]models.ProductImage, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, product_id, url, storage_key, position, is_main, created_at
		 FROM product_images
		 WHERE product_id = $1
		 ORDER BY position, created_at, id`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("list product images: %w", err)
	}
	defer rows.Close()

	images := []models.ProductImage{}
	for rows.Next() {
		var img models.ProductImage
		if err := rows.Scan(&img.ID, &img.ProductID, &img.URL, &img.StorageKey,
			&img.Position, &img.IsMain, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product image: %w", err)
		}
		images = append(images, img)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return images, nil
}

// AddProductImage attaches an image to a product owned by sellerID. The image
// becomes main when requested or when the product has no main image yet.
func AddProductImage(ctx context.Context, db *sql.DB, sellerID, productID int64, in ImageInput) (*models.ProductImage, error) {
	if in.Position < 0 {
		in.Position = 0
	}

	img := &models.ProductImage{
		ProductID:  productID,
		URL:        in.URL,
		StorageKey: in.StorageKey,
		Position:   in.Position,
	}

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if _, err := lockOwnedProduct(ctx, tx, sellerID, productID); err != nil {
			return err
		}

		if in.IsMain {
			if err := clearMainImage(ctx, tx, productID); err != nil {
				return err
			}
			img.IsMain = true
		} else {
			var hasMain bool
			err := tx.QueryRowContext(ctx,
				`SELECT EXISTS(SELECT 1 FROM product_images WHERE product_id = $1 AND is_main)`,
				productID).Scan(&hasMain)
			if err != nil {
				return fmt.Errorf("check main image: %w", err)
			}
			img.IsMain = !hasMain
		}

		err := tx.QueryRowContext(ctx,
			`INSERT INTO product_images (product_id, url, storage_key, position, is_main, created_at)
			 VALUES ($1, $2, $3, $4, $5, NOW())
			 RETURNING id, created_at`,
			productID, img.URL, img.StorageKey, img.Position, img.IsMain).Scan(&img.ID, &img.CreatedAt)
		if err != nil {
			return fmt.Errorf("create product image: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return img, nil
}

func clearMainImage(ctx context.Context, tx *sql.Tx, productID int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE product_images SET is_main = FALSE WHERE product_id = $1 AND is_main`,
		productID)
	if err != nil {
		return fmt.Errorf("clear main image: %w", err)
	}
	return nil
}

// DeleteProductImage removes the image and promotes the next one to main if
// the removed image was main. The removed row is returned for asset cleanup.
func DeleteProductImage(ctx context.Context, db *sql.DB, sellerID, productID, imageID int64) (*models.ProductImage, error) {
	img := &models.ProductImage{}

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if _, err := lockOwnedProduct(ctx, tx, sellerID, productID); err != nil {
			return err
		}

		err := tx.QueryRowContext(ctx,
			`DELETE FROM product_images
			 WHERE id = $1 AND product_id = $2
			 RETURNING id, product_id, url, storage_key, position, is_main, created_at`,
			imageID, productID).Scan(&img.ID, &img.ProductID, &img.URL, &img.StorageKey,
			&img.Position, &img.IsMain, &img.CreatedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrImageNotFound
			}
			return fmt.Errorf("delete product image: %w", err)
		}

		if !img.IsMain {
			return nil
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE product_images SET is_main = TRUE
			 WHERE id = (
			     SELECT id FROM product_images
			     WHERE product_id = $1
			     ORDER BY position, created_at, id
			     LIMIT 1
			 )`,
			productID)
		if err != nil {
			return fmt.Errorf("promote main image: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return img, nil
}
