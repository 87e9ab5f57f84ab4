package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/resale-market/internal/auth"
	"github.com/safar/resale-market/internal/database"
	"github.com/safar/resale-market/internal/models"
	"github.com/safar/resale-market/internal/phone"
)

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     auth.Role
	Name     string
	Phone    string
}

type ProfileInput struct {
	Name  string
	Email string
	Phone string
}

// SellerFlags carries operator changes to a seller; nil fields are left as is.
type SellerFlags struct {
	Active   *bool
	Verified *bool
	Blocked  *bool
}

// Register creates the user and exactly one profile of the requested role.
func Register(ctx context.Context, db *sql.DB, in RegisterInput) (*auth.Principal, error) {
	if !in.Role.Valid() {
		return nil, fmt.Errorf("register: %w: unknown role %q", database.ErrInvalidInput, in.Role)
	}

	normalized, err := phone.Clean(in.Phone)
	if err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	principal := &auth.Principal{Username: strings.TrimSpace(in.Username), Role: in.Role}

	err = database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO users (username, email, password_hash, created_at, updated_at)
			 VALUES ($1, $2, $3, NOW(), NOW())
			 RETURNING id`,
			principal.Username, in.Email, hash).Scan(&principal.UserID)
		if err != nil {
			if database.IsUniqueViolation(err, "users_username_key") {
				return database.ErrUsernameTaken
			}
			return fmt.Errorf("create user: %w", err)
		}

		table := "customers"
		if in.Role == auth.RoleSeller {
			table = "sellers"
		}

		err = tx.QueryRowContext(ctx,
			`INSERT INTO `+table+` (user_id, name, email, phone, created_at)
			 VALUES ($1, $2, $3, $4, NOW())
			 RETURNING id`,
			principal.UserID, in.Name, in.Email, normalized).Scan(&principal.ProfileID)
		if err != nil {
			return fmt.Errorf("create %s profile: %w", in.Role, err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return principal, nil
}

// Authenticate checks credentials and resolves the role from whichever
// profile the user owns.
func Authenticate(ctx context.Context, db *sql.DB, username, password string) (*auth.Principal, error) {
	var (
		p          auth.Principal
		hash       string
		customerID sql.NullInt64
		sellerID   sql.NullInt64
	)

	err := db.QueryRowContext(ctx,
		`SELECT u.id, u.username, u.password_hash, c.id, s.id
		 FROM users u
		 LEFT JOIN customers c ON c.user_id = u.id
		 LEFT JOIN sellers s ON s.user_id = u.id
		 WHERE u.username = $1`,
		strings.TrimSpace(username)).Scan(&p.UserID, &p.Username, &hash, &customerID, &sellerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	ok, err := auth.VerifyPassword(hash, password)
	if err != nil || !ok {
		return nil, database.ErrInvalidCredentials
	}

	switch {
	case customerID.Valid:
		p.Role, p.ProfileID = auth.RoleCustomer, customerID.Int64
	case sellerID.Valid:
		p.Role, p.ProfileID = auth.RoleSeller, sellerID.Int64
	default:
		return nil, database.ErrProfileNotFound
	}

	return &p, nil
}

func GetUser(ctx context.Context, db database.DBTX, id int64) (*models.User, error) {
	user := &models.User{}

	err := db.QueryRowContext(ctx,
		`SELECT id, username, email, created_at, updated_at
		 FROM users
		 WHERE id = $1`,
		id).Scan(&user.ID, &user.Username, &user.Email, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func GetProfile(ctx context.Context, db *sql.DB, p auth.Principal) (*models.Profile, error) {
	user, err := GetUser(ctx, db, p.UserID)
	if err != nil {
		return nil, err
	}

	profile := &models.Profile{User: *user, Role: string(p.Role)}
	switch p.Role {
	case auth.RoleCustomer:
		profile.Customer, err = GetCustomer(ctx, db, p.ProfileID)
	case auth.RoleSeller:
		profile.Seller, err = GetSeller(ctx, db, p.ProfileID)
	default:
		err = database.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	return profile, nil
}

func GetCustomer(ctx context.Context, db database.DBTX, id int64) (*models.Customer, error) {
	c := &models.Customer{}
	var image sql.NullString

	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, name, email, phone, image, created_at
		 FROM customers
		 WHERE id = $1`,
		id).Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &image, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProfileNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	c.Image = image.String

	return c, nil
}

func GetSeller(ctx context.Context, db database.DBTX, id int64) (*models.Seller, error) {
	s := &models.Seller{}
	var image sql.NullString

	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, name, email, phone, image, is_active, is_verified, is_blocked, created_at
		 FROM sellers
		 WHERE id = $1`,
		id).Scan(&s.ID, &s.UserID, &s.Name, &s.Email, &s.Phone, &image,
		&s.IsActive, &s.IsVerified, &s.IsBlocked, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrSellerNotFound
		}
		return nil, fmt.Errorf("get seller: %w", err)
	}
	s.Image = image.String

	return s, nil
}

// GetActiveSeller returns the seller only when they may use the seller
// dashboard.
func GetActiveSeller(ctx context.Context, db database.DBTX, id int64) (*models.Seller, error) {
	s, err := GetSeller(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if !s.CanSell() {
		return nil, database.ErrSellerInactive
	}
	return s, nil
}

func UpdateCustomerProfile(ctx context.Context, db *sql.DB, customerID int64, in ProfileInput) (*models.Customer, error) {
	normalized, err := phone.Clean(in.Phone)
	if err != nil {
		return nil, err
	}

	result, err := db.ExecContext(ctx,
		`UPDATE customers SET name = $1, email = $2, phone = $3 WHERE id = $4`,
		in.Name, in.Email, normalized, customerID)
	if err := expectOneRow(result, err, database.ErrProfileNotFound); err != nil {
		return nil, fmt.Errorf("update customer profile: %w", err)
	}

	return GetCustomer(ctx, db, customerID)
}

func UpdateSellerProfile(ctx context.Context, db *sql.DB, sellerID int64, in ProfileInput) (*models.Seller, error) {
	normalized, err := phone.Clean(in.Phone)
	if err != nil {
		return nil, err
	}

	result, err := db.ExecContext(ctx,
		`UPDATE sellers SET name = $1, email = $2, phone = $3 WHERE id = $4`,
		in.Name, in.Email, normalized, sellerID)
	if err := expectOneRow(result, err, database.ErrSellerNotFound); err != nil {
		return nil, fmt.Errorf("update seller profile: %w", err)
	}

	return GetSeller(ctx, db, sellerID)
}

// SetCustomerImage stores a new avatar URL and returns the previous one so
// the caller can remove the old asset.
func SetCustomerImage(ctx context.Context, db *sql.DB, customerID int64, url string) (string, error) {
	return swapImage(ctx, db, "customers", customerID, url, database.ErrProfileNotFound)
}

func SetSellerImage(ctx context.Context, db *sql.DB, sellerID int64, url string) (string, error) {
	return swapImage(ctx, db, "sellers", sellerID, url, database.ErrSellerNotFound)
}

func swapImage(ctx context.Context, db *sql.DB, table string, id int64, url string, notFound error) (string, error) {
	var previous sql.NullString

	err := db.QueryRowContext(ctx,
		`WITH old AS (SELECT image FROM `+table+` WHERE id = $2)
		 UPDATE `+table+` SET image = $1
		 WHERE id = $2
		 RETURNING (SELECT image FROM old)`,
		url, id).Scan(&previous)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", notFound
		}
		return "", fmt.Errorf("set %s image: %w", table, err)
	}

	return previous.String, nil
}

func SetSellerFlags(ctx context.Context, db *sql.DB, sellerID int64, flags SellerFlags) (*models.Seller, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE sellers
		 SET is_active = COALESCE($1, is_active),
		     is_verified = COALESCE($2, is_verified),
		     is_blocked = COALESCE($3, is_blocked)
		 WHERE id = $4`,
		nullBool(flags.Active), nullBool(flags.Verified), nullBool(flags.Blocked), sellerID)
	if err := expectOneRow(result, err, database.ErrSellerNotFound); err != nil {
		return nil, fmt.Errorf("set seller flags: %w", err)
	}

	return GetSeller(ctx, db, sellerID)
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

// expectOneRow turns an Exec result that touched no rows into notFound.
func expectOneRow(result sql.Result, err error, notFound error) error {
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}
