// Package analytics counts product views, deduplicating repeat visitors
// inside a time window.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/safar/resale-market/internal/config"
	"github.com/safar/resale-market/internal/store"
)

// Connect returns a redis client for cfg, or nil when redis is not
// configured or unreachable. A nil client makes the tracker fall back to the
// database.
func Connect(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if cfg.URL == "" {
		return nil
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		log.Printf("Failed to parse Redis URL: %v; running without view cache", err)
		return nil
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Redis connection failed: %v; running without view cache", err)
		client.Close()
		return nil
	}

	log.Println("Redis connected")
	return client
}

type Tracker struct {
	db     *sql.DB
	redis  *redis.Client
	window time.Duration
}

func NewTracker(db *sql.DB, client *redis.Client, window time.Duration) *Tracker {
	return &Tracker{db: db, redis: client, window: window}
}

// TrackView records a view of the product. The view also counts as unique
// when the visitor has not been seen on this product inside the window.
// customerID is zero for anonymous visitors, who are identified by ip.
func (t *Tracker) TrackView(ctx context.Context, productID, customerID int64, ip net.IP) error {
	unique, err := t.firstView(ctx, productID, customerID, ip)
	if err != nil {
		return err
	}
	return store.RecordView(ctx, t.db, productID, customerID, ip, unique)
}

func (t *Tracker) firstView(ctx context.Context, productID, customerID int64, ip net.IP) (bool, error) {
	key := visitorKey(productID, customerID, ip)
	if key == "" {
		return false, nil
	}

	if t.redis != nil {
		fresh, err := t.redis.SetNX(ctx, key, 1, t.window).Result()
		if err == nil {
			return fresh, nil
		}
		log.Printf("Redis view dedup failed, using database: %v", err)
	}

	seen, err := store.SeenRecently(ctx, t.db, productID, customerID, ip, int(t.window/time.Second))
	if err != nil {
		return false, err
	}
	return !seen, nil
}

// visitorKey identifies a visitor of a product; logged-in customers are
// keyed by id, everyone else by address.
func visitorKey(productID, customerID int64, ip net.IP) string {
	switch {
	case customerID > 0:
		return fmt.Sprintf("views:%d:customer:%d", productID, customerID)
	case ip != nil:
		return fmt.Sprintf("views:%d:ip:%s", productID, ip.String())
	default:
		return ""
	}
}
