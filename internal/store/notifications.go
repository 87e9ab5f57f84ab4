package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/resale-market/internal/database"
	"github.com/safar/resale-market/internal/models"
)

const notificationListLimit = 50

type NotificationInput struct {
	UserID  int64
	Type    models.NotificationType
	Title   string
	Message string
	Link    string
}

const notificationColumns = `id, user_id, notification_type, title, message, link, is_read, read_at, created_at`

func scanNotification(row rowScanner) (*models.Notification, error) {
	n := &models.Notification{}
	var (
		link   sql.NullString
		readAt sql.NullTime
	)
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &link, &n.IsRead, &readAt, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	n.Link = link.String
	if readAt.Valid {
		n.ReadAt = &readAt.Time
	}
	return n, nil
}

func CreateNotification(ctx context.Context, q database.DBTX, in NotificationInput) (*models.Notification, error) {
	return scanNotification(q.QueryRowContext(ctx,
		`INSERT INTO notifications (user_id, notification_type, title, message, link, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 RETURNING `+notificationColumns,
		in.UserID, in.Type, in.Title, in.Message, nullString(in.Link)))
}

// ListNotifications returns the newest notifications of the user.
func ListNotifications(ctx context.Context, db database.DBTX, userID int64, unreadOnly bool) ([]models.Notification, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+notificationColumns+`
		 FROM notifications
		 WHERE user_id = $1 AND (NOT $2 OR NOT is_read)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3`,
		userID, unreadOnly, notificationListLimit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return out, nil
}

func MarkNotificationRead(ctx context.Context, db database.DBTX, userID, id int64) (*models.Notification, error) {
	return scanNotification(db.QueryRowContext(ctx,
		`UPDATE notifications
		 SET is_read = TRUE, read_at = COALESCE(read_at, NOW())
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+notificationColumns,
		id, userID))
}

// UserEmail returns the address notifications of the user are sent to.
func UserEmail(ctx context.Context, db database.DBTX, userID int64) (string, error) {
	user, err := GetUser(ctx, db, userID)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}
