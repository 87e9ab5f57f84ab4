package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/safar/resale-market/internal/export"
	"github.com/safar/resale-market/internal/media"
	"github.com/safar/resale-market/internal/models"
	"github.com/safar/resale-market/internal/resp"
	"github.com/safar/resale-market/internal/store"
	"github.com/shopspring/decimal"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type productRequest struct {
	Title        string          `json:"title" binding:"required,max=200"`
	Description  string          `json:"description"`
	CategoryName string          `json:"category_name" binding:"max=100"`
	BrandName    string          `json:"brand_name" binding:"max=100"`
	SizeID       *int64          `json:"size_id"`
	CustomSize   string          `json:"custom_size" binding:"max=50"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity" binding:"gte=0"`
	Condition    string          `json:"condition" binding:"required,oneof=new excellent good fair"`
	IsActive     *bool           `json:"is_active"`
	LegitCheck   bool            `json:"legit_check"`
}

func (r productRequest) input() store.ProductInput {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return store.ProductInput{
		Title:        r.Title,
		Description:  r.Description,
		CategoryName: r.CategoryName,
		BrandName:    r.BrandName,
		SizeID:       r.SizeID,
		CustomSize:   r.CustomSize,
		Price:        r.Price,
		Quantity:     r.Quantity,
		Condition:    models.Condition(r.Condition),
		IsActive:     active,
		LegitCheck:   r.LegitCheck,
	}
}

type categoryRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	ParentID *int64 `json:"parent_id"`
	SizeType string `json:"size_type" binding:"omitempty,oneof=clothing shoes accessories"`
}

type sizeRequest struct {
	SizeType     string           `json:"size_type" binding:"required,oneof=clothing shoes accessories"`
	Value        string           `json:"value" binding:"required,max=20"`
	DisplayValue string           `json:"display_value" binding:"max=50"`
	USSize       string           `json:"us_size" binding:"max=10"`
	EUSize       string           `json:"eu_size" binding:"max=10"`
	CMSize       *decimal.Decimal `json:"cm_size"`
}

func (s *Server) sellerDashboard(c *gin.Context) {
	dashboard, err := store.SellerDashboard(c.Request.Context(), s.db, sellerID(c))
	if err != nil {
		fail(c, err)
		return
	}
	resp.OK(c, dashboard)
}

func (s *Server) sellerStats(c *gin.Context) {
	stats, err := store.SellerStats(c.Request.Context(), s.db, sellerID(c))
	if err != nil {
		fail(c, err)
		return
	}
	resp.OK(c, stats)
}

func (s *Server) listSellerProducts(c *gin.Context) {
	status := store.SellerProductStatus(c.Query("status"))
	switch status {
	case store.StatusAll, store.StatusActive, store.StatusSold, store.StatusInactive:
	default:
		resp.BadRequest(c, "status must be one of: active sold inactive")
		return
	}

	pageNum, ok := queryPage(c)
	if !ok {
		return
	}

	page, err := store.ListSellerProducts(c.Request.Context(), s.db, sellerID(c), status, pageNum)
	if err != nil {
		fail(c, err)
		return
	}
	resp.OK(c, page)
}

func (s *Server) createProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	product, err := store.CreateProduct(c.Request.Context(), s.db, sellerID(c), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	resp.Created(c, product)
}

func (s *Server) updateProduct(c *gin.Context) {
	productID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	product, err := store.UpdateProduct(c.Request.Context(), s.db, sellerID(c), productID, req.input())
	if err != nil {
		fail(c, err)
		return
	}
	resp.OK(c, product)
}

func (s *Server) deleteProduct(c *gin.Context) {
	productID, ok := paramID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	images, err := store.DeleteProduct(ctx, s.db, sellerID(c), productID)
	if err != nil {
		fail(c, err)
		return
	}

	for _, img := range images {
		s.removeAsset(ctx, media.Asset{URL: img.URL, Key: img.StorageKey})
	}
	resp.OK(c, gin.H{"deleted": true, "product_id": productID})
}

func (s *Server) addProductImage(c *gin.Context) {
	productID, ok := paramID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	// Ownership is checked before anything is written to storage.
	if _, err := store.GetOwnedProduct(ctx, s.db, sellerID(c), productID); err != nil {
		fail(c, err)
		return
	}

	position, _ := strconv.Atoi(c.PostForm("position"))
	if position < 0 {
		position = 0
	}
	isMain, _ := strconv.ParseBool(c.DefaultPostForm("is_main", "false"))

	asset, ok := s.saveUpload(c, "image", media.FolderProducts)
	if !ok {
		return
	}

	image, err := store.AddProductImage(ctx, s.db, sellerID(c), productID, store.ImageInput{
		URL:        asset.URL,
		StorageKey: asset.Key,
		Position:   position,
		IsMain:     isMain,
	})
	if err != nil {
		s.removeAsset(ctx, asset)
		fail(c, err)
		return
	}
	resp.Created(c, image)
}

func (s *Server) deleteProductImage(c *gin.Context) {
	productID, ok := paramID(c, "id")
	if !ok {
		return
	}
	imageID, ok := paramID(c, "imageId")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	image, err := store.DeleteProductImage(ctx, s.db, sellerID(c), productID, imageID)
	if err != nil {
		fail(c, err)
		return
	}

	s.removeAsset(ctx, media.Asset{URL: image.URL, Key: image.StorageKey})
	resp.OK(c, gin.H{"deleted": true, "image_id": imageID})
}

func (s *Server) productAnalytics(c *gin.Context) {
	productID, ok := paramID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := store.GetOwnedProduct(ctx, s.db, sellerID(c), productID); err != nil {
		fail(c, err)
		return
	}

	stats, err := store.GetProductAnalytics(ctx, s.db, productID)
	if err != nil {
		fail(c, err)
		return
	}

	resp.OK(c, gin.H{
		"analytics":             stats,
		"view_to_cart_rate":     stats.ViewToCartRate(),
		"cart_to_purchase_rate": stats.CartToPurchaseRate(),
	})
}

func (s *Server) exportProducts(c *gin.Context) {
	products, err := store.ExportSellerProducts(c.Request.Context(), s.db, sellerID(c))
	if err != nil {
		fail(c, err)
		return
	}

	filename := fmt.Sprintf("products_%d_%s.xlsx", sellerID(c), time.Now().Format("20060102"))
	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Status(http.StatusOK)

	if err := export.WriteSellerProducts(c.Writer, products); err != nil {
		log.Printf("export products for seller %d: %v", sellerID(c), err)
	}
}

func (s *Server) references(c *gin.Context) {
	ctx := c.Request.Context()

	brands, err := store.ListBrands(ctx, s.db)
	if err != nil {
		fail(c, err)
		return
	}
	categories, err := store.ListCategoryTree(ctx, s.db)
	if err != nil {
		fail(c, err)
		return
	}
	sizes, err := store.ListSizes(ctx, s.db, "")
	if err != nil {
		fail(c, err)
		return
	}

	resp.OK(c, gin.H{"brands": brands, "categories": categories, "sizes": sizes})
}

// createBrand takes a multipart form: "name" and an optional "logo" file.
func (s *Server) createBrand(c *gin.Context) {
	name := c.PostForm("name")
	if name == "" {
		resp.BadRequest(c, "name is required")
		return
	}

	_, err := c.FormFile("logo")
	hasLogo := err == nil
	if !hasLogo && !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		resp.BadRequest(c, "invalid multipart form")
		return
	}

	ctx := c.Request.Context()
	brand, err := store.CreateBrand(ctx, s.db, name, "")
	if err != nil {
		fail(c, err)
		return
	}
	if !hasLogo {
		resp.Created(c, brand)
		return
	}

	logo, ok := s.saveUpload(c, "logo", media.FolderBrandLogo)
	if !ok {
		return
	}
	if _, err := store.SetBrandLogo(ctx, s.db, brand.ID, logo.URL); err != nil {
		s.removeAsset(ctx, logo)
		fail(c, err)
		return
	}

	brand, err = store.GetBrand(ctx, s.db, brand.ID)
	if err != nil {
		fail(c, err)
		return
	}
	resp.Created(c, brand)
}

func (s *Server) createCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	category, err := store.CreateCategory(c.Request.Context(), s.db, store.CategoryInput{
		Name:     req.Name,
		ParentID: req.ParentID,
		SizeType: models.SizeType(req.SizeType),
	})
	if err != nil {
		fail(c, err)
		return
	}
	resp.Created(c, category)
}

func (s *Server) createSize(c *gin.Context) {
	var req sizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	in := store.SizeInput{
		SizeType:     models.SizeType(req.SizeType),
		Value:        req.Value,
		DisplayValue: req.DisplayValue,
		USSize:       req.USSize,
		EUSize:       req.EUSize,
	}
	if req.CMSize != nil {
		in.CMSize = decimal.NullDecimal{Decimal: *req.CMSize, Valid: true}
	}

	size, err := store.CreateSize(c.Request.Context(), s.db, in)
	if err != nil {
		fail(c, err)
		return
	}
	resp.Created(c, size)
}
