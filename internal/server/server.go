package server

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/safar/resale-market/internal/analytics"
	"github.com/safar/resale-market/internal/auth"
	"github.com/safar/resale-market/internal/config"
	"github.com/safar/resale-market/internal/database"
	"github.com/safar/resale-market/internal/media"
	"github.com/safar/resale-market/internal/models"
	"github.com/safar/resale-market/internal/notify"
	"github.com/safar/resale-market/internal/resp"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg      *config.Config
	db       *sql.DB
	issuer   *auth.Issuer
	tracker  *analytics.Tracker
	storage  media.Storage
	notifier *notify.Notifier

	// deliveries tracks notification emails still being sent.
	deliveries sync.WaitGroup
}

func New(cfg *config.Config, db *sql.DB, tracker *analytics.Tracker, storage media.Storage, notifier *notify.Notifier) *Server {
	registerValidators()
	return &Server{
		cfg:      cfg,
		db:       db,
		issuer:   auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		tracker:  tracker,
		storage:  storage,
		notifier: notifier,
	}
}

func (s *Server) Router() *gin.Engine {
	if s.cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), corsMiddleware(s.cfg.Server.CORSOrigins))
	r.MaxMultipartMemory = s.cfg.Media.MaxUploadSize

	if local, ok := s.storage.(*media.LocalStorage); ok {
		r.Static(s.cfg.Media.BaseURL, local.Dir())
	}

	r.GET("/health", s.health)

	authGroup := r.Group("/auth")
	authGroup.POST("/register", s.register)
	authGroup.POST("/login", s.login)

	public := r.Group("/", s.optionalAuth())
	public.GET("/products", s.listProducts)
	public.GET("/products/:id", s.productDetail)
	public.GET("/categories", s.listCategories)
	public.GET("/categories/tree", s.categoryTree)
	public.GET("/brands", s.listBrands)
	public.GET("/sizes", s.listSizes)
	public.GET("/sellers/:id", s.sellerPage)
	public.GET("/autocomplete/category", s.autocompleteCategory)
	public.GET("/autocomplete/brand", s.autocompleteBrand)

	account := r.Group("/", s.requireAuth())
	account.GET("/profile", s.getProfile)
	account.PATCH("/profile", s.updateProfile)
	account.POST("/profile/image", s.uploadProfileImage)
	account.GET("/notifications", s.listNotifications)
	account.POST("/notifications/:id/read", s.markNotificationRead)

	customer := r.Group("/", s.requireAuth(), s.requireCustomer())
	customer.GET("/wishlist", s.listWishlist)
	customer.POST("/wishlist/:productId/toggle", s.toggleWishlist)
	customer.GET("/cart", s.getCart)
	customer.POST("/cart/items/:productId", s.addToCart)
	customer.PATCH("/cart/items/:itemId", s.updateCartItem)
	customer.DELETE("/cart/items/:itemId", s.removeCartItem)
	customer.POST("/checkout", s.checkout)
	customer.GET("/orders", s.listOrders)
	customer.GET("/orders/:id", s.getOrder)
	customer.POST("/orders/:id/cancel", s.cancelOrder)
	customer.POST("/products/:id/reviews", s.createReview)

	seller := r.Group("/seller", s.requireAuth(), s.requireSeller())
	seller.GET("/dashboard", s.sellerDashboard)
	seller.GET("/stats", s.sellerStats)
	seller.GET("/products", s.listSellerProducts)
	seller.POST("/products", s.createProduct)
	seller.GET("/products/export", s.exportProducts)
	seller.PUT("/products/:id", s.updateProduct)
	seller.DELETE("/products/:id", s.deleteProduct)
	seller.POST("/products/:id/images", s.addProductImage)
	seller.DELETE("/products/:id/images/:imageId", s.deleteProductImage)
	seller.GET("/products/:id/analytics", s.productAnalytics)
	seller.GET("/references", s.references)
	seller.POST("/references/brands", s.createBrand)
	seller.POST("/references/categories", s.createCategory)
	seller.POST("/references/sizes", s.createSize)

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + s.cfg.Server.Port,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on port %s", s.cfg.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if !s.waitDeliveries(shutdownCtx) {
		log.Printf("Shutdown timed out with notification emails still pending")
	}
	return err
}

// waitDeliveries blocks until every pending email goroutine has finished or
// ctx is done. It reports whether all of them finished.
func (s *Server) waitDeliveries(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		s.deliveries.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Server) health(c *gin.Context) {
	if err := database.HealthCheck(c.Request.Context(), s.db); err != nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "database unavailable"})
		return
	}
	resp.OK(c, gin.H{"status": "ok"})
}

// deliver emails notifications once the request's transaction has committed.
func (s *Server) deliver(c *gin.Context, notes ...models.Notification) {
	if len(notes) == 0 {
		return
	}
	ctx := context.WithoutCancel(c.Request.Context())
	s.deliveries.Add(1)
	go func() {
		defer s.deliveries.Done()
		s.notifier.Deliver(ctx, notes...)
	}()
}

// removeAsset deletes a stored file whose row is already gone; failures only
// leave an orphaned file behind.
func (s *Server) removeAsset(ctx context.Context, asset media.Asset) {
	if asset.Key == "" {
		return
	}
	if err := s.storage.Delete(ctx, asset); err != nil {
		log.Printf("media: delete %s: %v", asset.Key, err)
	}
}
