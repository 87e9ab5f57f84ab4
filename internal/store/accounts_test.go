package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/safar/resale-market/internal/auth"
	"github.com/safar/resale-market/internal/database"
	"github.com/safar/resale-market/internal/phone"
	"github.com/safar/resale-market/internal/store"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seller := register(t, db, "maria", auth.RoleSeller)
	customer := register(t, db, "ivan", auth.RoleCustomer)

	tests := []struct {
		username string
		want     *auth.Principal
	}{
		{"maria", seller},
		{"ivan", customer},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			got, err := store.Authenticate(ctx, db, tt.username, "password123")
			if err != nil {
				t.Fatalf("Authenticate: %v", err)
			}
			if *got != *tt.want {
				t.Errorf("Expected %+v, got %+v", *tt.want, *got)
			}
		})
	}

	if _, err := store.Authenticate(ctx, db, "maria", "wrong-password"); !errors.Is(err, database.ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for a wrong password, got %v", err)
	}
	if _, err := store.Authenticate(ctx, db, "nobody", "password123"); !errors.Is(err, database.ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for an unknown user, got %v", err)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	db := setupTestDB(t)
	register(t, db, "maria", auth.RoleSeller)

	_, err := store.Register(context.Background(), db, store.RegisterInput{
		Username: "maria",
		Email:    "other@example.com",
		Password: "password123",
		Role:     auth.RoleCustomer,
		Name:     "Other Maria",
		Phone:    "+79990000000",
	})
	if !errors.Is(err, database.ErrUsernameTaken) {
		t.Errorf("Expected ErrUsernameTaken, got %v", err)
	}
}

func TestRegisterNormalizesPhone(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	p, err := store.Register(ctx, db, store.RegisterInput{
		Username: "ivan",
		Email:    "ivan@example.com",
		Password: "password123",
		Role:     auth.RoleCustomer,
		Name:     "Ivan",
		Phone:    "8 (999) 123-45-67",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	customer, err := store.GetCustomer(ctx, db, p.ProfileID)
	if err != nil {
		t.Fatalf("Get customer: %v", err)
	}
	if customer.Phone != "+79991234567" {
		t.Errorf("Expected +79991234567, got %q", customer.Phone)
	}

	_, err = store.UpdateCustomerProfile(ctx, db, p.ProfileID, store.ProfileInput{
		Name: "Ivan", Email: "ivan@example.com", Phone: "12345",
	})
	var phoneErr *phone.ValidationError
	if !errors.As(err, &phoneErr) {
		t.Errorf("Expected a phone validation error, got %v", err)
	}
}

func TestSellerFlags(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	sellerID := newSeller(t, db, "maria")

	if _, err := store.GetActiveSeller(ctx, db, sellerID); err != nil {
		t.Fatalf("New seller should be active: %v", err)
	}

	blocked := true
	seller, err := store.SetSellerFlags(ctx, db, sellerID, store.SellerFlags{Blocked: &blocked})
	if err != nil {
		t.Fatalf("Block seller: %v", err)
	}
	if !seller.IsBlocked || !seller.IsActive {
		t.Errorf("Expected blocked and still active, got %+v", seller)
	}

	if _, err := store.GetActiveSeller(ctx, db, sellerID); !errors.Is(err, database.ErrSellerInactive) {
		t.Errorf("Expected ErrSellerInactive, got %v", err)
	}
	if _, err := store.SellerPublicPage(ctx, db, sellerID); !errors.Is(err, database.ErrSellerNotFound) {
		t.Errorf("Blocked seller page should be hidden, got %v", err)
	}

	if _, err := store.SetSellerFlags(ctx, db, 999999, store.SellerFlags{Blocked: &blocked}); !errors.Is(err, database.ErrSellerNotFound) {
		t.Errorf("Expected ErrSellerNotFound, got %v", err)
	}
}

func TestSetProfileImageReturnsPrevious(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	customerID := newCustomer(t, db, "ivan")

	previous, err := store.SetCustomerImage(ctx, db, customerID, "/uploads/profiles/a.png")
	if err != nil {
		t.Fatalf("Set first image: %v", err)
	}
	if previous != "" {
		t.Errorf("Expected no previous image, got %q", previous)
	}

	previous, err = store.SetCustomerImage(ctx, db, customerID, "/uploads/profiles/b.png")
	if err != nil {
		t.Fatalf("Set second image: %v", err)
	}
	if previous != "/uploads/profiles/a.png" {
		t.Errorf("Expected previous a.png, got %q", previous)
	}
}
