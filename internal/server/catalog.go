package server

import (
	"errors"
	"log"
	"net"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/safar/resale-market/internal/models"
	"github.com/safar/resale-market/internal/resp"
	"github.com/safar/resale-market/internal/store"
)

type autocompleteResult struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// queryPage reads ?page=, defaulting to 1. Pages past store.MaxPage are
// rejected with 400.
func queryPage(c *gin.Context) (int, bool) {
	page, err := strconv.Atoi(c.Query("page"))
	if errors.Is(err, strconv.ErrRange) || page > store.MaxPage {
		resp.BadRequest(c, "page out of range")
		return 0, false
	}
	if err != nil || page < 1 {
		return 1, true
	}
	return page, true
}

func (s *Server) listProducts(c *gin.Context) {
	ctx := c.Request.Context()
	pageNum, ok := queryPage(c)
	if !ok {
		return
	}
	filter := store.ProductFilter{
		Query:     strings.TrimSpace(c.Query("q")),
		Category:  c.Query("category"),
		Brand:     c.Query("brand"),
		Condition: models.Condition(c.Query("condition")),
		Sort:      store.ProductSort(c.Query("sort")),
		Page:      pageNum,
	}
	if filter.Condition != "" && !filter.Condition.Valid() {
		resp.BadRequest(c, "unknown condition")
		return
	}

	page, err := store.ListProducts(ctx, s.db, filter)
	if err != nil {
		fail(c, err)
		return
	}

	if filter.Query != "" {
		if err := store.RecordSearch(ctx, s.db, filter.Query, customerID(c), page.Total); err != nil {
			log.Printf("analytics: %v", err)
		}
	}

	resp.OK(c, page)
}

func (s *Server) productDetail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	detail, err := store.GetProductDetail(ctx, s.db, id, customerID(c))
	if err != nil {
		fail(c, err)
		return
	}

	if err := s.tracker.TrackView(ctx, id, customerID(c), net.ParseIP(c.ClientIP())); err != nil {
		log.Printf("analytics: track view of product %d: %v", id, err)
	}

	resp.OK(c, detail)
}

func (s *Server) listCategories(c *gin.Context) {
	categories, err := store.ListRootCategories(c.Request.Context(), s.db)
	if err != nil {
		fail(c, err)
		return
	}
	resp.OK(c, categories)
}

func (s *Server) categoryTree(c *gin.Context) {
	tree, err := store.ListCategoryTree(c.Request.Context(), s.db)
	if err != nil {
		fail(c, err)
		return
	}
	resp.OK(c, tree)
}

func (s *Server) listBrands(c *gin.Context) {
	brands, err := store.ListBrands(c.Request.Context(), s.db)
	if err != nil {
		fail(c, err)
		return
	}
	resp.OK(c, brands)
}

func (s *Server) listSizes(c *gin.Context) {
	sizeType := models.SizeType(c.Query("type"))
	if sizeType != "" && !sizeType.Valid() {
		resp.BadRequest(c, "unknown size type")
		return
	}

	sizes, err := store.ListSizes(c.Request.Context(), s.db, sizeType)
	if err != nil {
		fail(c, err)
		return
	}
	resp.OK(c, sizes)
}

func (s *Server) sellerPage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	page, err := store.SellerPublicPage(c.Request.Context(), s.db, id)
	if err != nil {
		fail(c, err)
		return
	}
	resp.OK(c, page)
}

func (s *Server) autocompleteCategory(c *gin.Context) {
	categories, err := store.AutocompleteCategories(c.Request.Context(), s.db, c.Query("q"))
	if err != nil {
		fail(c, err)
		return
	}

	results := make([]autocompleteResult, 0, len(categories))
	for _, category := range categories {
		results = append(results, autocompleteResult{ID: category.ID, Text: category.Name})
	}
	resp.OK(c, gin.H{"results": results})
}

func (s *Server) autocompleteBrand(c *gin.Context) {
	brands, err := store.AutocompleteBrands(c.Request.Context(), s.db, c.Query("q"))
	if err != nil {
		fail(c, err)
		return
	}

	results := make([]autocompleteResult, 0, len(brands))
	for _, brand := range brands {
		results = append(results, autocompleteResult{ID: brand.ID, Text: brand.Name})
	}
	resp.OK(c, gin.H{"results": results})
}
