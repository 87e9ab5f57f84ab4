package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleSeller
}

// Principal is the authenticated account. ProfileID is the id of the
// customer or seller row selected by Role.
type Principal struct {
	UserID    int64
	Username  string
	Role      Role
	ProfileID int64
}

func (p Principal) CustomerID() (int64, bool) {
	return p.ProfileID, p.Role == RoleCustomer
}

func (p Principal) SellerID() (int64, bool) {
	return p.ProfileID, p.Role == RoleSeller
}

var ErrInvalidToken = errors.New("invalid token")

type claims struct {
	Username  string `json:"username"`
	Role      Role   `json:"role"`
	ProfileID int64  `json:"profile_id"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

func (i *Issuer) Issue(p Principal) (string, error) {
	now := time.Now()
	c := &claims{
		Username:  p.Username,
		Role:      p.Role,
		ProfileID: p.ProfileID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (i *Issuer) Parse(tokenString string) (Principal, error) {
	c := &claims{}
	token, err := jwt.ParseWithClaims(tokenString, c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || !c.Role.Valid() {
		return Principal{}, ErrInvalidToken
	}

	return Principal{
		UserID:    userID,
		Username:  c.Username,
		Role:      c.Role,
		ProfileID: c.ProfileID,
	}, nil
}
