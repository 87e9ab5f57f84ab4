package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/safar/resale-market/internal/database"
	"github.com/safar/resale-market/internal/models"
	"github.com/shopspring/decimal"
)

// UnavailableError reports the cart line that blocked a checkout. It
// unwraps to ErrProductUnavailable or ErrInsufficientStock.
type UnavailableError struct {
	ProductID int64
	Title     string
	Requested int
	Available int
	Err       error
}

func (e *UnavailableError) Error() string {
	if e.Err == database.ErrInsufficientStock {
		return fmt.Sprintf("product %q is not available in quantity %d (in stock: %d)", e.Title, e.Requested, e.Available)
	}
	return fmt.Sprintf("product %q is no longer available", e.Title)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// CheckoutResult is the created order plus the notifications written in the
// same transaction, for delivery after commit.
type CheckoutResult struct {
	Order         *models.Order
	Notifications []models.Notification
}

type lockedProduct struct {
	id       int64
	sellerID int64
	title    string
	quantity int
	isActive bool
	isSold   bool
}

func generateOrderNumber() string {
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102"),
		strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10]))
}

// Checkout turns the customer's cart into a pending order with one pending
// payment. Every line is validated against locked product rows before
// anything is written; any failure leaves the database untouched.
func Checkout(ctx context.Context, db *sql.DB, customerID int64, method models.PaymentMethod) (*CheckoutResult, error) {
	if !method.Valid() {
		return nil, database.ErrInvalidPaymentMethod
	}

	var result *CheckoutResult

	err := database.WithRetry(ctx, db, database.CheckoutTxOptions(), func(tx *sql.Tx) error {
		result = &CheckoutResult{}

		cart, err := GetOrCreateCart(ctx, tx, customerID)
		if err != nil {
			return err
		}
		// Serializes checkouts and cart edits of the same customer.
		if _, err := tx.ExecContext(ctx, `SELECT id FROM carts WHERE id = $1 FOR UPDATE`, cart.ID); err != nil {
			return fmt.Errorf("lock cart: %w", err)
		}

		items, err := listCartItems(ctx, tx, cart.ID, "")
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return database.ErrCartEmpty
		}

		products, err := lockProducts(ctx, tx, items)
		if err != nil {
			return err
		}

		for _, item := range items {
			p, ok := products[item.ProductID]
			if !ok || !p.isActive || p.isSold {
				return &UnavailableError{ProductID: item.ProductID, Title: item.ProductTitle,
					Requested: item.Quantity, Err: database.ErrProductUnavailable}
			}
			if p.quantity < item.Quantity {
				return &UnavailableError{ProductID: item.ProductID, Title: p.title,
					Requested: item.Quantity, Available: p.quantity, Err: database.ErrInsufficientStock}
			}
		}

		var orderID int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders (customer_id, order_number, status, created_at, updated_at, version)
			 VALUES ($1, $2, $3, NOW(), NOW(), 1)
			 RETURNING id`,
			customerID, generateOrderNumber(), models.OrderStatusPending).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		total := decimal.Zero
		sellers := make(map[int64][]string)
		for _, item := range items {
			p := products[item.ProductID]

			_, err = tx.ExecContext(ctx,
				`INSERT INTO order_items (order_id, product_id, seller_id, product_title, quantity, price, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
				orderID, p.id, p.sellerID, p.title, item.Quantity, item.Price)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}

			if err := decrementStock(ctx, tx, p.id, item.Quantity); err != nil {
				return err
			}
			if err := IncrementPurchases(ctx, tx, p.id, item.Quantity); err != nil {
				return err
			}

			total = total.Add(item.Subtotal())
			sellers[p.sellerID] = append(sellers[p.sellerID], p.title)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO payments (order_id, status, method, amount, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, NOW(), NOW())`,
			orderID, models.PaymentStatusPending, method, total)
		if err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cart.ID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		if err := touchCart(ctx, tx, cart.ID); err != nil {
			return err
		}

		result.Order, err = getOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		result.Notifications, err = checkoutNotifications(ctx, tx, result.Order, sellers)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// lockProducts takes row locks on every product in the cart in id order so
// concurrent checkouts cannot deadlock on each other.
func lockProducts(ctx context.Context, tx *sql.Tx, items []models.CartItem) (map[int64]lockedProduct, error) {
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, seller_id, title, quantity, is_active, is_sold
		 FROM products
		 WHERE id = ANY($1)
		 ORDER BY id
		 FOR UPDATE`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	products := make(map[int64]lockedProduct, len(ids))
	for rows.Next() {
		var p lockedProduct
		if err := rows.Scan(&p.id, &p.sellerID, &p.title, &p.quantity, &p.isActive, &p.isSold); err != nil {
			return nil, fmt.Errorf("scan locked product: %w", err)
		}
		products[p.id] = p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// decrementStock removes quantity units and marks the product sold when the
// stock reaches zero.
func decrementStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE products
		 SET quantity = quantity - $1,
		     is_sold = (quantity - $1 = 0),
		     updated_at = NOW(),
		     version = version + 1
		 WHERE id = $2
		   AND quantity >= $1`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrInsufficientStock
	}

	return nil
}

// restoreStock returns units to a product and puts it back on sale.
func restoreStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE products
		 SET quantity = quantity + $1,
		     is_sold = FALSE,
		     updated_at = NOW(),
		     version = version + 1
		 WHERE id = $2`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	return nil
}

func checkoutNotifications(ctx context.Context, tx *sql.Tx, order *models.Order, sellers map[int64][]string) ([]models.Notification, error) {
	var out []models.Notification
	link := fmt.Sprintf("/orders/%d", order.ID)

	customerUser, err := profileUserID(ctx, tx, "customers", order.CustomerID)
	if err != nil {
		return nil, err
	}

	n, err := CreateNotification(ctx, tx, NotificationInput{
		UserID:  customerUser,
		Type:    models.NotificationOrderCreated,
		Title:   fmt.Sprintf("Order %s placed", order.OrderNumber),
		Message: fmt.Sprintf("Your order %s for %s has been placed.", order.OrderNumber, order.TotalAmount.StringFixed(2)),
		Link:    link,
	})
	if err != nil {
		return nil, err
	}
	out = append(out, *n)

	for sellerID, titles := range sellers {
		sellerUser, err := profileUserID(ctx, tx, "sellers", sellerID)
		if err != nil {
			return nil, err
		}

		n, err := CreateNotification(ctx, tx, NotificationInput{
			UserID:  sellerUser,
			Type:    models.NotificationProductSold,
			Title:   "New sale",
			Message: fmt.Sprintf("Order %s includes: %s.", order.OrderNumber, strings.Join(titles, ", ")),
			Link:    "/seller/products",
		})
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}

	return out, nil
}

func profileUserID(ctx context.Context, q database.DBTX, table string, id int64) (int64, error) {
	var userID int64
	err := q.QueryRowContext(ctx, `SELECT user_id FROM `+table+` WHERE id = $1`, id).Scan(&userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, database.ErrProfileNotFound
		}
		return 0, fmt.Errorf("get %s user: %w", table, err)
	}
	return userID, nil
}
