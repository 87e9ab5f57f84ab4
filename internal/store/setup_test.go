package store_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/safar/resale-market/internal/auth"
	"github.com/safar/resale-market/internal/database"
	"github.com/safar/resale-market/internal/models"
	"github.com/safar/resale-market/internal/store"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	if err := database.Migrate(dsn, database.Up); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
	})

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	return db
}

func register(t *testing.T, db *sql.DB, username string, role auth.Role) *auth.Principal {
	t.Helper()

	p, err := store.Register(context.Background(), db, store.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
		Role:     role,
		Name:     username,
		Phone:    "89991234567",
	})
	if err != nil {
		t.Fatalf("Register %s: %v", username, err)
	}
	return p
}

func newCustomer(t *testing.T, db *sql.DB, username string) int64 {
	t.Helper()
	return register(t, db, username, auth.RoleCustomer).ProfileID
}

func newSeller(t *testing.T, db *sql.DB, username string) int64 {
	t.Helper()
	return register(t, db, username, auth.RoleSeller).ProfileID
}

func productInput(title, price string, quantity int) store.ProductInput {
	return store.ProductInput{
		Title:     title,
		Price:     decimal.RequireFromString(price),
		Quantity:  quantity,
		Condition: models.ConditionGood,
		IsActive:  true,
	}
}

func newProduct(t *testing.T, db *sql.DB, sellerID int64, title, price string, quantity int) *models.Product {
	t.Helper()

	p, err := store.CreateProduct(context.Background(), db, sellerID, productInput(title, price, quantity))
	if err != nil {
		t.Fatalf("Create product %s: %v", title, err)
	}
	return p
}

// putInCart adds the product and sets the line to quantity.
func putInCart(t *testing.T, db *sql.DB, customerID, productID int64, quantity int) int64 {
	t.Helper()
	ctx := context.Background()

	added, err := store.AddToCart(ctx, db, customerID, productID)
	if err != nil {
		t.Fatalf("Add product %d to cart: %v", productID, err)
	}
	if quantity != added.Item.Quantity {
		result, err := store.UpdateCartItem(ctx, db, customerID, added.Item.ID, quantity)
		if err != nil {
			t.Fatalf("Set cart quantity: %v", err)
		}
		if result.OverStock {
			t.Fatalf("Set cart quantity %d: only %d available", quantity, result.Available)
		}
	}
	return added.Item.ID
}

func stockOf(t *testing.T, db *sql.DB, productID int64) (int, bool) {
	t.Helper()

	p, err := store.GetProduct(context.Background(), db, productID)
	if err != nil {
		t.Fatalf("Get product %d: %v", productID, err)
	}
	return p.Quantity, p.IsSold
}
