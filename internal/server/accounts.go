package server

import (
	"github.com/gin-gonic/gin"
	"github.com/safar/resale-market/internal/auth"
	"github.com/safar/resale-market/internal/media"
	"github.com/safar/resale-market/internal/resp"
	"github.com/safar/resale-market/internal/store"
)

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=150"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required,oneof=customer seller"`
	Name     string `json:"name" binding:"required,max=200"`
	Phone    string `json:"phone" binding:"required,phone"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type profileRequest struct {
	Name  string `json:"name" binding:"required,max=200"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone" binding:"required,phone"`
}

type tokenResponse struct {
	Token    string `json:"token"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (s *Server) respondWithToken(c *gin.Context, p *auth.Principal, created bool) {
	token, err := s.issuer.Issue(*p)
	if err != nil {
		fail(c, err)
		return
	}

	body := tokenResponse{Token: token, UserID: p.UserID, Username: p.Username, Role: string(p.Role)}
	if created {
		resp.Created(c, body)
		return
	}
	resp.OK(c, body)
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	p, err := store.Register(c.Request.Context(), s.db, store.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     auth.Role(req.Role),
		Name:     req.Name,
		Phone:    req.Phone,
	})
	if err != nil {
		fail(c, err)
		return
	}

	s.respondWithToken(c, p, true)
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	p, err := store.Authenticate(c.Request.Context(), s.db, req.Username, req.Password)
	if err != nil {
		fail(c, err)
		return
	}

	s.respondWithToken(c, p, false)
}

func (s *Server) getProfile(c *gin.Context) {
	profile, err := store.GetProfile(c.Request.Context(), s.db, currentPrincipal(c))
	if err != nil {
		fail(c, err)
		return
	}
	resp.OK(c, profile)
}

func (s *Server) updateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx := c.Request.Context()
	in := store.ProfileInput{Name: req.Name, Email: req.Email, Phone: req.Phone}
	p := currentPrincipal(c)

	var (
		updated any
		err     error
	)
	if id, ok := p.CustomerID(); ok {
		updated, err = store.UpdateCustomerProfile(ctx, s.db, id, in)
	} else {
		updated, err = store.UpdateSellerProfile(ctx, s.db, sellerID(c), in)
	}
	if err != nil {
		fail(c, err)
		return
	}

	resp.OK(c, updated)
}

func (s *Server) uploadProfileImage(c *gin.Context) {
	asset, ok := s.saveUpload(c, "image", media.FolderProfiles)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var err error
	if id, isCustomer := currentPrincipal(c).CustomerID(); isCustomer {
		_, err = store.SetCustomerImage(ctx, s.db, id, asset.URL)
	} else {
		_, err = store.SetSellerImage(ctx, s.db, sellerID(c), asset.URL)
	}
	if err != nil {
		s.removeAsset(ctx, asset)
		fail(c, err)
		return
	}

	resp.OK(c, gin.H{"image": asset.URL})
}

// saveUpload validates and stores the multipart file in field.
func (s *Server) saveUpload(c *gin.Context, field, folder string) (media.Asset, bool) {
	header, err := c.FormFile(field)
	if err != nil {
		resp.BadRequest(c, field+" file is required")
		return media.Asset{}, false
	}

	if err := media.ValidateImage(header.Filename, header.Size, s.cfg.Media.MaxUploadSize); err != nil {
		fail(c, err)
		return media.Asset{}, false
	}

	file, err := header.Open()
	if err != nil {
		fail(c, err)
		return media.Asset{}, false
	}
	defer file.Close()

	asset, err := s.storage.Save(c.Request.Context(), folder, header.Filename, file)
	if err != nil {
		fail(c, err)
		return media.Asset{}, false
	}
	return asset, true
}

func (s *Server) listNotifications(c *gin.Context) {
	unreadOnly := c.Query("unread") == "1" || c.Query("unread") == "true"

	notes, err := store.ListNotifications(c.Request.Context(), s.db, currentPrincipal(c).UserID, unreadOnly)
	if err != nil {
		fail(c, err)
		return
	}
	resp.OK(c, notes)
}

func (s *Server) markNotificationRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	note, err := store.MarkNotificationRead(c.Request.Context(), s.db, currentPrincipal(c).UserID, id)
	if err != nil {
		fail(c, err)
		return
	}
	resp.OK(c, note)
}
