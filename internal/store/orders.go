package store

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/lib/pq"
	"github.com/safar/resale-market/internal/database"
	"github.com/safar/resale-market/internal/models"
)

// StatusChange is the order after a status transition and the notifications
// written with it.
type StatusChange struct {
	Order         *models.Order
	Notifications []models.Notification
}

const orderColumns = `
	o.id, o.customer_id, o.order_number, o.status, o.created_at, o.updated_at, o.version,
	COALESCE((SELECT SUM(oi.price * oi.quantity) FROM order_items oi WHERE oi.order_id = o.id), 0)`

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.ID,
		&order.CustomerID,
		&order.OrderNumber,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
		&order.TotalAmount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return order, nil
}

func getOrder(ctx context.Context, q database.DBTX, id int64) (*models.Order, error) {
	order, err := scanOrder(q.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id))
	if err != nil {
		return nil, err
	}

	orders := []models.Order{*order}
	if err := attachOrderDetails(ctx, q, orders); err != nil {
		return nil, err
	}

	return &orders[0], nil
}

// GetOrder returns an order of the customer with its items and payments.
func GetOrder(ctx context.Context, db database.DBTX, customerID, orderID int64) (*models.Order, error) {
	order, err := getOrder(ctx, db, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, database.ErrOrderNotFound
	}
	return order, nil
}

// attachOrderDetails loads items and payments for all orders in two queries.
func attachOrderDetails(ctx context.Context, q database.DBTX, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, order_id, product_id, seller_id, product_title, quantity, price, created_at
		 FROM order_items
		 WHERE order_id = ANY($1)
		 ORDER BY order_id, id`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item                models.OrderItem
			productID, sellerID sql.NullInt64
		)
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&productID,
			&sellerID,
			&item.ProductTitle,
			&item.Quantity,
			&item.Price,
			&item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if productID.Valid {
			item.ProductID = &productID.Int64
		}
		if sellerID.Valid {
			item.SellerID = &sellerID.Int64
		}
		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	payRows, err := q.QueryContext(ctx,
		`SELECT id, order_id, status, method, amount, created_at, updated_at
		 FROM payments
		 WHERE order_id = ANY($1)
		 ORDER BY order_id, id`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("get payments: %w", err)
	}
	defer payRows.Close()

	for payRows.Next() {
		var p models.Payment
		if err := payRows.Scan(&p.ID, &p.OrderID, &p.Status, &p.Method, &p.Amount,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return fmt.Errorf("scan payment: %w", err)
		}
		i := index[p.OrderID]
		orders[i].Payments = append(orders[i].Payments, p)
	}

	return payRows.Err()
}

func ListOrdersCursor(ctx context.Context, db database.DBTX, customerID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		WHERE o.customer_id = $1
		  AND (o.created_at, o.id) < ($2, $3)
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, customerID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	if err := attachOrderDetails(ctx, db, orders); err != nil {
		return nil, err
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(Cursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// lockOrder row-locks the order. customerID of zero skips the owner check.
func lockOrder(ctx context.Context, tx *sql.Tx, customerID, orderID int64) (*models.Order, error) {
	order, err := scanOrder(tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE o.id = $1 FOR UPDATE`, orderID))
	if err != nil {
		return nil, err
	}
	if customerID != 0 && order.CustomerID != customerID {
		return nil, database.ErrOrderNotFound
	}
	return order, nil
}

// CancelOrder cancels a pending order of the customer, returning its units
// to stock and cancelling the pending payment.
func CancelOrder(ctx context.Context, db *sql.DB, customerID, orderID int64) (*StatusChange, error) {
	var change *StatusChange

	err := database.WithRetry(ctx, db, database.CheckoutTxOptions(), func(tx *sql.Tx) error {
		order, err := lockOrder(ctx, tx, customerID, orderID)
		if err != nil {
			return err
		}
		if order.Status != models.OrderStatusPending {
			return database.ErrOrderNotCancellable
		}

		change, err = transitionOrder(ctx, tx, order, models.OrderStatusCancelled)
		return err
	})
	if err != nil {
		return nil, err
	}

	return change, nil
}

// SetOrderStatus moves an order to status on behalf of an operator. Orders
// that are cancelled or completed are final.
func SetOrderStatus(ctx context.Context, db *sql.DB, orderID int64, status models.OrderStatus) (*StatusChange, error) {
	if !status.Valid() {
		return nil, database.ErrInvalidStatus
	}

	var change *StatusChange

	err := database.WithRetry(ctx, db, database.CheckoutTxOptions(), func(tx *sql.Tx) error {
		order, err := lockOrder(ctx, tx, 0, orderID)
		if err != nil {
			return err
		}
		if order.Status == models.OrderStatusCancelled || order.Status == models.OrderStatusCompleted {
			return fmt.Errorf("%w: order %s is %s", database.ErrInvalidStatus, order.OrderNumber, order.Status)
		}
		if order.Status == status {
			order, err = getOrder(ctx, tx, orderID)
			change = &StatusChange{Order: order}
			return err
		}

		change, err = transitionOrder(ctx, tx, order, status)
		return err
	})
	if err != nil {
		return nil, err
	}

	return change, nil
}

func transitionOrder(ctx context.Context, tx *sql.Tx, order *models.Order, status models.OrderStatus) (*StatusChange, error) {
	order, err := getOrder(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}

	switch status {
	case models.OrderStatusCancelled:
		for _, item := range restockOrder(order.Items) {
			if err := restoreStock(ctx, tx, *item.ProductID, item.Quantity); err != nil {
				return nil, err
			}
		}
		if err := setPaymentStatus(ctx, tx, order.ID, models.PaymentStatusPending, models.PaymentStatusCancelled); err != nil {
			return nil, err
		}
	case models.OrderStatusCompleted:
		if err := setPaymentStatus(ctx, tx, order.ID, models.PaymentStatusPending, models.PaymentStatusPaid); err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW(), version = version + 1 WHERE id = $2`,
		status, order.ID)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	updated, err := getOrder(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}

	customerUser, err := profileUserID(ctx, tx, "customers", order.CustomerID)
	if err != nil {
		return nil, err
	}

	change := &StatusChange{Order: updated}
	n, err := CreateNotification(ctx, tx, NotificationInput{
		UserID:  customerUser,
		Type:    models.NotificationOrderStatus,
		Title:   fmt.Sprintf("Order %s is %s", updated.OrderNumber, updated.Status),
		Message: fmt.Sprintf("The status of order %s changed from %s to %s.", updated.OrderNumber, order.Status, updated.Status),
		Link:    fmt.Sprintf("/orders/%d", updated.ID),
	})
	if err != nil {
		return nil, err
	}
	change.Notifications = append(change.Notifications, *n)

	if status == models.OrderStatusCompleted {
		n, err := CreateNotification(ctx, tx, NotificationInput{
			UserID:  customerUser,
			Type:    models.NotificationPaymentReceived,
			Title:   fmt.Sprintf("Payment for order %s received", updated.OrderNumber),
			Message: fmt.Sprintf("We received %s for order %s.", updated.TotalAmount.StringFixed(2), updated.OrderNumber),
			Link:    fmt.Sprintf("/orders/%d", updated.ID),
		})
		if err != nil {
			return nil, err
		}
		change.Notifications = append(change.Notifications, *n)
	}

	return change, nil
}

func setPaymentStatus(ctx context.Context, tx *sql.Tx, orderID int64, from, to models.PaymentStatus) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = $1, updated_at = NOW() WHERE order_id = $2 AND status = $3`,
		to, orderID, from)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return nil
}

// restockOrder returns the lines whose product still exists, in product id
// order. Checkout locks products in the same order.
func restockOrder(items []models.OrderItem) []models.OrderItem {
	out := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		if item.ProductID != nil {
			out = append(out, item)
		}
	}
	slices.SortFunc(out, func(a, b models.OrderItem) int {
		return cmp.Compare(*a.ProductID, *b.ProductID)
	})
	return out
}
