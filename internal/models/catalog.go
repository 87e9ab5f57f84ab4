package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SizeType string

const (
	SizeTypeClothing    SizeType = "clothing"
	SizeTypeShoes       SizeType = "shoes"
	SizeTypeAccessories SizeType = "accessories"
)

func (t SizeType) Valid() bool {
	switch t {
	case SizeTypeClothing, SizeTypeShoes, SizeTypeAccessories:
		return true
	}
	return false
}

type Condition string

const (
	ConditionNew       Condition = "new"
	ConditionExcellent Condition = "excellent"
	ConditionGood      Condition = "good"
	ConditionFair      Condition = "fair"
)

func (c Condition) Valid() bool {
	switch c {
	case ConditionNew, ConditionExcellent, ConditionGood, ConditionFair:
		return true
	}
	return false
}

type Size struct {
	ID           int64               `json:"id"`
	SizeType     SizeType            `json:"size_type"`
	Value        string              `json:"value"`
	DisplayValue string              `json:"display_value"`
	USSize       string              `json:"us_size,omitempty"`
	EUSize       string              `json:"eu_size,omitempty"`
	CMSize       decimal.NullDecimal `json:"cm_size"`
}

type Category struct {
	ID       int64      `json:"id"`
	Name     string     `json:"name"`
	Slug     string     `json:"slug"`
	ParentID *int64     `json:"parent_id,omitempty"`
	SizeType SizeType   `json:"size_type,omitempty"`
	Children []Category `json:"children,omitempty"`
}

type Brand struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Logo string `json:"logo,omitempty"`
}

type Product struct {
	ID          int64           `json:"id"`
	SellerID    int64           `json:"seller_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    *Category       `json:"category,omitempty"`
	Brand       *Brand          `json:"brand,omitempty"`
	Size        *Size           `json:"size,omitempty"`
	CustomSize  string          `json:"custom_size,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Condition   Condition       `json:"condition"`
	IsActive    bool            `json:"is_active"`
	IsSold      bool            `json:"is_sold"`
	LegitCheck  bool            `json:"legit_check"`
	Images      []ProductImage  `json:"images,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Version     int             `json:"version"`
}

// DisplaySize prefers the free-text size over the reference size.
func (p *Product) DisplaySize() string {
	if p.CustomSize != "" {
		return p.CustomSize
	}
	if p.Size != nil {
		return p.Size.DisplayValue
	}
	return ""
}

type ProductImage struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"product_id"`
	URL        string    `json:"url"`
	StorageKey string    `json:"-"`
	Position   int       `json:"position"`
	IsMain     bool      `json:"is_main"`
	CreatedAt  time.Time `json:"created_at"`
}

type Review struct {
	ID           int64     `json:"id"`
	CustomerID   int64     `json:"customer_id"`
	CustomerName string    `json:"customer_name,omitempty"`
	SellerID     int64     `json:"seller_id"`
	ProductID    int64     `json:"product_id"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	IsApproved   bool      `json:"is_approved"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type WishlistEntry struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	Product    Product   `json:"product"`
	AddedAt    time.Time `json:"added_at"`
}
