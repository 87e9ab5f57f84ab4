package server

import (
	"errors"
	"log"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/safar/resale-market/internal/database"
	"github.com/safar/resale-market/internal/media"
	"github.com/safar/resale-market/internal/phone"
	"github.com/safar/resale-market/internal/resp"
	"github.com/safar/resale-market/internal/store"
)

var (
	badRequestErrors = []error{
		store.ErrInvalidProduct,
		database.ErrInvalidRating,
		database.ErrInvalidReview,
		database.ErrInvalidPaymentMethod,
		database.ErrInvalidStatus,
		database.ErrInvalidInput,
		media.ErrUnsupportedType,
	}
	notFoundErrors = []error{
		database.ErrUserNotFound,
		database.ErrProfileNotFound,
		database.ErrSellerNotFound,
		database.ErrCategoryNotFound,
		database.ErrBrandNotFound,
		database.ErrSizeNotFound,
		database.ErrProductNotFound,
		database.ErrImageNotFound,
		database.ErrCartItemNotFound,
		database.ErrOrderNotFound,
		database.ErrReviewNotFound,
		database.ErrNotificationNotFound,
	}
	conflictErrors = []error{
		database.ErrUsernameTaken,
		database.ErrSizeExists,
		database.ErrProductUnavailable,
		database.ErrInsufficientStock,
		database.ErrCartEmpty,
		database.ErrOrderNotCancellable,
	}
)

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// fail writes the response for err; unknown errors are logged and hidden.
func fail(c *gin.Context, err error) {
	var (
		phoneErr       *phone.ValidationError
		unavailableErr *store.UnavailableError
	)

	switch {
	case errors.As(err, &phoneErr):
		resp.BadRequest(c, phoneErr.Error())
	case errors.As(err, &unavailableErr):
		resp.Conflict(c, unavailableErr.Error())
	case errors.Is(err, media.ErrTooLarge):
		resp.TooLarge(c, media.ErrTooLarge.Error())
	case isAny(err, badRequestErrors):
		resp.BadRequest(c, sentinelMessage(err, badRequestErrors))
	case errors.Is(err, database.ErrInvalidCredentials):
		resp.Unauthorized(c, database.ErrInvalidCredentials.Error())
	case errors.Is(err, database.ErrForbidden), errors.Is(err, database.ErrSellerInactive):
		resp.Forbidden(c, sentinelMessage(err, []error{database.ErrForbidden, database.ErrSellerInactive}))
	case isAny(err, notFoundErrors):
		resp.NotFound(c, sentinelMessage(err, notFoundErrors))
	case isAny(err, conflictErrors):
		resp.Conflict(c, sentinelMessage(err, conflictErrors))
	default:
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		resp.ServerError(c)
	}
}

// sentinelMessage drops the wrapping context in front of the matched
// sentinel ("update product: product not found" -> "product not found")
// while keeping any detail after it.
func sentinelMessage(err error, targets []error) string {
	msg := err.Error()
	for _, target := range targets {
		if !errors.Is(err, target) {
			continue
		}
		if i := strings.Index(msg, target.Error()); i >= 0 {
			return msg[i:]
		}
		return target.Error()
	}
	return msg
}

// bindError turns binding failures into a readable message.
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		resp.BadRequest(c, "invalid request body")
		return
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "phone":
			msgs = append(msgs, field+" must be a valid phone number")
		case "email":
			msgs = append(msgs, field+" must be a valid email")
		case "oneof":
			msgs = append(msgs, field+" must be one of: "+fe.Param())
		default:
			msgs = append(msgs, field+" failed "+fe.Tag()+" "+fe.Param())
		}
	}
	resp.BadRequest(c, strings.Join(msgs, "; "))
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		resp.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}
