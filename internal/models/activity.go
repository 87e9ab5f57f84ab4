package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductAnalytics struct {
	ProductID            int64      `json:"product_id"`
	TotalViews           int        `json:"total_views"`
	UniqueViews          int        `json:"unique_views"`
	TimesAddedToCart     int        `json:"times_added_to_cart"`
	TimesAddedToWishlist int        `json:"times_added_to_wishlist"`
	TimesPurchased       int        `json:"times_purchased"`
	LastViewedAt         *time.Time `json:"last_viewed_at,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

var hundred = decimal.NewFromInt(100)

// ViewToCartRate is the percentage of views that led to a cart add.
func (a ProductAnalytics) ViewToCartRate() decimal.Decimal {
	return percent(a.TimesAddedToCart, a.TotalViews)
}

// CartToPurchaseRate is the percentage of cart adds that were bought.
func (a ProductAnalytics) CartToPurchaseRate() decimal.Decimal {
	return percent(a.TimesPurchased, a.TimesAddedToCart)
}

func percent(part, whole int) decimal.Decimal {
	if whole <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(part)).Mul(hundred).
		Div(decimal.NewFromInt(int64(whole))).Round(2)
}

type NotificationType string

const (
	NotificationOrderCreated    NotificationType = "order_created"
	NotificationOrderStatus     NotificationType = "order_status"
	NotificationPaymentReceived NotificationType = "payment_received"
	NotificationNewMessage      NotificationType = "new_message"
	NotificationProductSold     NotificationType = "product_sold"
	NotificationReviewReceived  NotificationType = "review_received"
)

type Notification struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Link      string           `json:"link,omitempty"`
	IsRead    bool             `json:"is_read"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
