package server

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/safar/resale-market/internal/models"
	"github.com/safar/resale-market/internal/resp"
	"github.com/safar/resale-market/internal/store"
)

const (
	defaultOrderLimit = 20
	maxOrderLimit     = 100
)

type cartQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type checkoutRequest struct {
	PaymentMethod string `json:"payment_method" binding:"required,oneof=cash card sbp"`
}

type reviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"required,max=2000"`
}

func (s *Server) listWishlist(c *gin.Context) {
	entries, err := store.ListWishlist(c.Request.Context(), s.db, customerID(c))
	if err != nil {
		fail(c, err)
		return
	}
	resp.OK(c, entries)
}

func (s *Server) toggleWishlist(c *gin.Context) {
	productID, ok := paramID(c, "productId")
	if !ok {
		return
	}

	added, err := store.ToggleWishlist(c.Request.Context(), s.db, customerID(c), productID)
	if err != nil {
		fail(c, err)
		return
	}
	resp.OK(c, gin.H{"product_id": productID, "in_wishlist": added})
}

func (s *Server) getCart(c *gin.Context) {
	cart, err := store.GetCart(c.Request.Context(), s.db, customerID(c))
	if err != nil {
		fail(c, err)
		return
	}
	resp.OK(c, gin.H{"cart": cart, "total": cart.TotalPrice()})
}

func (s *Server) addToCart(c *gin.Context) {
	productID, ok := paramID(c, "productId")
	if !ok {
		return
	}

	result, err := store.AddToCart(c.Request.Context(), s.db, customerID(c), productID)
	if err != nil {
		fail(c, err)
		return
	}

	switch {
	case result.AtCapacity:
		resp.Warning(c, result.Item, fmt.Sprintf("all available units of %q are already in the cart", result.Item.ProductTitle))
	case result.Created:
		resp.Created(c, result.Item)
	default:
		resp.OK(c, result.Item)
	}
}

func (s *Server) updateCartItem(c *gin.Context) {
	itemID, ok := paramID(c, "itemId")
	if !ok {
		return
	}

	var req cartQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := store.UpdateCartItem(c.Request.Context(), s.db, customerID(c), itemID, *req.Quantity)
	if err != nil {
		fail(c, err)
		return
	}

	switch {
	case result.Removed:
		resp.OK(c, gin.H{"removed": true, "item_id": itemID})
	case result.OverStock:
		resp.Warning(c, result.Item, fmt.Sprintf("only %d available", result.Available))
	default:
		resp.OK(c, result.Item)
	}
}

func (s *Server) removeCartItem(c *gin.Context) {
	itemID, ok := paramID(c, "itemId")
	if !ok {
		return
	}

	if err := store.RemoveFromCart(c.Request.Context(), s.db, customerID(c), itemID); err != nil {
		fail(c, err)
		return
	}
	resp.OK(c, gin.H{"removed": true, "item_id": itemID})
}

func (s *Server) checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := store.Checkout(c.Request.Context(), s.db, customerID(c), models.PaymentMethod(req.PaymentMethod))
	if err != nil {
		fail(c, err)
		return
	}

	s.deliver(c, result.Notifications...)
	resp.Created(c, result.Order)
}

func (s *Server) listOrders(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultOrderLimit)))
	if err != nil || limit < 1 || limit > maxOrderLimit {
		resp.BadRequest(c, fmt.Sprintf("limit must be between 1 and %d", maxOrderLimit))
		return
	}

	cursor := c.Query("cursor")
	if _, err := store.DecodeCursor(cursor); err != nil {
		resp.BadRequest(c, "invalid cursor")
		return
	}

	page, err := store.ListOrdersCursor(c.Request.Context(), s.db, customerID(c), cursor, limit)
	if err != nil {
		fail(c, err)
		return
	}
	resp.OK(c, page)
}

func (s *Server) getOrder(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	order, err := store.GetOrder(c.Request.Context(), s.db, customerID(c), orderID)
	if err != nil {
		fail(c, err)
		return
	}
	resp.OK(c, order)
}

func (s *Server) cancelOrder(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	change, err := store.CancelOrder(c.Request.Context(), s.db, customerID(c), orderID)
	if err != nil {
		fail(c, err)
		return
	}

	s.deliver(c, change.Notifications...)
	resp.OK(c, change.Order)
}

func (s *Server) createReview(c *gin.Context) {
	productID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	created, err := store.CreateReview(c.Request.Context(), s.db, customerID(c), store.ReviewInput{
		ProductID: productID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		fail(c, err)
		return
	}

	if created.Notification != nil {
		s.deliver(c, *created.Notification)
	}
	resp.Created(c, created.Review)
}
