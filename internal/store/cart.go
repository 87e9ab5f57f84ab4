package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/resale-market/internal/database"
	"github.com/safar/resale-market/internal/models"
	"github.com/shopspring/decimal"
)

// AddResult describes what AddToCart did. AtCapacity is set when the line
// already holds every available unit; the cart is left unchanged.
type AddResult struct {
	Item       *models.CartItem
	Created    bool
	AtCapacity bool
}

// UpdateResult describes what UpdateCartItem did. When OverStock is set the
// line is unchanged and Available holds the product stock.
type UpdateResult struct {
	Item      *models.CartItem
	Removed   bool
	OverStock bool
	Available int
}

// GetOrCreateCart returns the customer's only cart, creating it on first use.
// Existing carts are read without a write; a racing insert is resolved by the
// unique customer constraint and a second read.
func GetOrCreateCart(ctx context.Context, q database.DBTX, customerID int64) (*models.Cart, error) {
	cart, err := findCart(ctx, q, customerID)
	if err == nil || !errors.Is(err, sql.ErrNoRows) {
		return cart, err
	}

	cart = &models.Cart{}
	err = q.QueryRowContext(ctx,
		`INSERT INTO carts (customer_id, created_at, updated_at)
		 VALUES ($1, NOW(), NOW())
		 ON CONFLICT ON CONSTRAINT carts_customer_key DO NOTHING
		 RETURNING id, customer_id, created_at, updated_at`,
		customerID).Scan(&cart.ID, &cart.CustomerID, &cart.CreatedAt, &cart.UpdatedAt)
	switch {
	case err == nil:
		return cart, nil
	case errors.Is(err, sql.ErrNoRows):
		return findCart(ctx, q, customerID)
	case database.IsForeignKeyViolation(err):
		return nil, database.ErrProfileNotFound
	default:
		return nil, fmt.Errorf("create cart: %w", err)
	}
}

// findCart returns sql.ErrNoRows unwrapped when the customer has no cart.
func findCart(ctx context.Context, q database.DBTX, customerID int64) (*models.Cart, error) {
	cart := &models.Cart{}

	err := q.QueryRowContext(ctx,
		`SELECT id, customer_id, created_at, updated_at
		 FROM carts
		 WHERE customer_id = $1`,
		customerID).Scan(&cart.ID, &cart.CustomerID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	return cart, nil
}

// GetCart returns the cart with its lines, oldest first.
func GetCart(ctx context.Context, db database.DBTX, customerID int64) (*models.Cart, error) {
	cart, err := GetOrCreateCart(ctx, db, customerID)
	if err != nil {
		return nil, err
	}

	cart.Items, err = listCartItems(ctx, db, cart.ID, "")
	if err != nil {
		return nil, err
	}

	return cart, nil
}

const cartItemColumns = `
	ci.id, ci.cart_id, ci.product_id, p.title, ci.quantity, ci.price, p.quantity, ci.created_at, ci.updated_at`

func scanCartItem(row rowScanner) (*models.CartItem, error) {
	item := &models.CartItem{}
	err := row.Scan(&item.ID, &item.CartID, &item.ProductID, &item.ProductTitle, &item.Quantity,
		&item.Price, &item.Stock, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCartItemNotFound
		}
		return nil, fmt.Errorf("scan cart item: %w", err)
	}
	return item, nil
}

// listCartItems loads the lines of a cart. lock is appended to the query,
// e.g. "FOR UPDATE OF ci".
func listCartItems(ctx context.Context, q database.DBTX, cartID int64, lock string) ([]models.CartItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+cartItemColumns+`
		 FROM cart_items ci
		 JOIN products p ON p.id = ci.product_id
		 WHERE ci.cart_id = $1
		 ORDER BY ci.created_at, ci.id `+lock,
		cartID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	items := []models.CartItem{}
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

func getCartItem(ctx context.Context, q database.DBTX, id int64) (*models.CartItem, error) {
	return scanCartItem(q.QueryRowContext(ctx,
		`SELECT `+cartItemColumns+`
		 FROM cart_items ci
		 JOIN products p ON p.id = ci.product_id
		 WHERE ci.id = $1`,
		id))
}

// AddToCart puts one unit of the product into the customer's cart at the
// current price, or bumps an existing line while it is below stock.
func AddToCart(ctx context.Context, db *sql.DB, customerID, productID int64) (*AddResult, error) {
	result := &AddResult{}

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		*result = AddResult{}

		cart, err := GetOrCreateCart(ctx, tx, customerID)
		if err != nil {
			return err
		}

		var (
			price    decimal.Decimal
			stock    int
			isActive bool
			isSold   bool
		)
		err = tx.QueryRowContext(ctx,
			`SELECT price, quantity, is_active, is_sold FROM products WHERE id = $1`,
			productID).Scan(&price, &stock, &isActive, &isSold)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrProductNotFound
			}
			return fmt.Errorf("get product: %w", err)
		}
		if !isActive || isSold || stock < 1 {
			return database.ErrProductUnavailable
		}

		var itemID int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO cart_items (cart_id, product_id, quantity, price, created_at, updated_at)
			 VALUES ($1, $2, 1, $3, NOW(), NOW())
			 ON CONFLICT ON CONSTRAINT cart_items_cart_product_key DO NOTHING
			 RETURNING id`,
			cart.ID, productID, price).Scan(&itemID)
		switch {
		case err == nil:
			result.Created = true
		case errors.Is(err, sql.ErrNoRows):
			err = tx.QueryRowContext(ctx,
				`UPDATE cart_items
				 SET quantity = quantity + 1, price = $1, updated_at = NOW()
				 WHERE cart_id = $2 AND product_id = $3 AND quantity < $4
				 RETURNING id`,
				price, cart.ID, productID, stock).Scan(&itemID)
			if errors.Is(err, sql.ErrNoRows) {
				result.AtCapacity = true
				err = tx.QueryRowContext(ctx,
					`SELECT id FROM cart_items WHERE cart_id = $1 AND product_id = $2`,
					cart.ID, productID).Scan(&itemID)
			}
			if err != nil {
				return fmt.Errorf("increment cart item: %w", err)
			}
		default:
			return fmt.Errorf("create cart item: %w", err)
		}

		if !result.AtCapacity {
			if err := IncrementCartAdds(ctx, tx, productID); err != nil {
				return err
			}
			if err := touchCart(ctx, tx, cart.ID); err != nil {
				return err
			}
		}

		result.Item, err = getCartItem(ctx, tx, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// UpdateCartItem sets the quantity of a line owned by the customer. A
// quantity below one removes the line; one above stock is refused with
// OverStock and no change.
func UpdateCartItem(ctx context.Context, db *sql.DB, customerID, itemID int64, quantity int) (*UpdateResult, error) {
	result := &UpdateResult{}

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var (
			cartID       int64
			stock        int
			currentPrice decimal.Decimal
		)
		err := tx.QueryRowContext(ctx,
			`SELECT ci.cart_id, p.quantity, p.price
			 FROM cart_items ci
			 JOIN carts c ON c.id = ci.cart_id
			 JOIN products p ON p.id = ci.product_id
			 WHERE ci.id = $1 AND c.customer_id = $2
			 FOR UPDATE OF ci`,
			itemID, customerID).Scan(&cartID, &stock, &currentPrice)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrCartItemNotFound
			}
			return fmt.Errorf("get cart item: %w", err)
		}

		switch {
		case quantity < 1:
			if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID); err != nil {
				return fmt.Errorf("delete cart item: %w", err)
			}
			result.Removed = true
		case quantity > stock:
			result.OverStock = true
			result.Available = stock
		default:
			_, err := tx.ExecContext(ctx,
				`UPDATE cart_items SET quantity = $1, price = $2, updated_at = NOW() WHERE id = $3`,
				quantity, currentPrice, itemID)
			if err != nil {
				return fmt.Errorf("update cart item: %w", err)
			}
		}

		if !result.Removed {
			if result.Item, err = getCartItem(ctx, tx, itemID); err != nil {
				return err
			}
		}
		if result.OverStock {
			return nil
		}
		return touchCart(ctx, tx, cartID)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// RemoveFromCart deletes a line owned by the customer.
func RemoveFromCart(ctx context.Context, db database.DBTX, customerID, itemID int64) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM cart_items ci
		 USING carts c
		 WHERE ci.id = $1 AND ci.cart_id = c.id AND c.customer_id = $2`,
		itemID, customerID)
	if err := expectOneRow(result, err, database.ErrCartItemNotFound); err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

func touchCart(ctx context.Context, tx *sql.Tx, cartID int64) error {
	if _, err := tx.ExecContext(ctx, `UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}
