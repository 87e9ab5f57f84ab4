package server

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/safar/resale-market/internal/auth"
	"github.com/safar/resale-market/internal/resp"
	"github.com/safar/resale-market/internal/store"
)

const principalKey = "principal"

func corsMiddleware(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// optionalAuth attaches the principal when a valid token is present and
// otherwise lets the request through anonymously.
func (s *Server) optionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if p, err := s.issuer.Parse(token); err == nil {
				c.Set(principalKey, p)
			}
		}
		c.Next()
	}
}

func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			resp.Unauthorized(c, "missing bearer token")
			return
		}
		p, err := s.issuer.Parse(token)
		if err != nil {
			resp.Unauthorized(c, err.Error())
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

func (s *Server) requireCustomer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := currentPrincipal(c).CustomerID(); !ok {
			resp.Forbidden(c, "customer account required")
			return
		}
		c.Next()
	}
}

// requireSeller also checks the seller row, so blocking a seller takes effect
// before their token expires.
func (s *Server) requireSeller() gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID, ok := currentPrincipal(c).SellerID()
		if !ok {
			resp.Forbidden(c, "seller account required")
			return
		}
		if _, err := store.GetActiveSeller(c.Request.Context(), s.db, sellerID); err != nil {
			fail(c, err)
			return
		}
		c.Next()
	}
}

func currentPrincipal(c *gin.Context) auth.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(auth.Principal); ok {
			return p
		}
	}
	return auth.Principal{}
}

// customerID is 0 for anonymous visitors and sellers.
func customerID(c *gin.Context) int64 {
	id, ok := currentPrincipal(c).CustomerID()
	if !ok {
		return 0
	}
	return id
}

func sellerID(c *gin.Context) int64 {
	id, _ := currentPrincipal(c).SellerID()
	return id
}
