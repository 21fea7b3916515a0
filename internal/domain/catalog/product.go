package catalog

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the canonical listing record. OwnerID names the account whose
// Listings must reference it.
type Product struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string          `gorm:"uniqueIndex;not null;column:name" json:"name"`
	Description string          `gorm:"column:description" json:"description"`
	Genre       string          `gorm:"column:genre;index" json:"genre"`
	ImageURL    string          `gorm:"column:image_url" json:"image_url"`
	Price       decimal.Decimal `gorm:"type:numeric(14,2);not null;column:price" json:"price"`
	Stock       int             `gorm:"not null;column:stock" json:"stock"`
	OwnerID     uuid.UUID       `gorm:"type:uuid;not null;index;column:owner_id" json:"owner_id"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Product) TableName() string { return "product" }

// ProductInput carries the owner-supplied fields of a new listing.
type ProductInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Genre       string          `json:"genre"`
	ImageURL    string          `json:"image_url"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

func (in ProductInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("product name is required")
	}
	if in.Price.IsNegative() {
		return errors.New("product price must be non-negative")
	}
	if in.Stock < 0 {
		return errors.New("product stock must be non-negative")
	}
	return nil
}

// NewProduct builds a canonical record owned by ownerID with a fresh id.
func (in ProductInput) NewProduct(ownerID uuid.UUID) *Product {
	return &Product{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Genre:       strings.TrimSpace(in.Genre),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		Price:       in.Price,
		Stock:       in.Stock,
		OwnerID:     ownerID,
	}
}

// ProductPatch is the whitelist of fields an owner may change. Nil fields are
// left untouched; there is no nested merge.
type ProductPatch struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Genre       *string          `json:"genre,omitempty"`
	ImageURL    *string          `json:"image_url,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Stock       *int             `json:"stock,omitempty"`
}

func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Genre == nil &&
		p.ImageURL == nil && p.Price == nil && p.Stock == nil
}

func (p ProductPatch) Validate() error {
	if p.Empty() {
		return errors.New("patch has no fields")
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return errors.New("product name cannot be blank")
	}
	if p.Price != nil && p.Price.IsNegative() {
		return errors.New("product price must be non-negative")
	}
	if p.Stock != nil && *p.Stock < 0 {
		return errors.New("product stock must be non-negative")
	}
	return nil
}

// Columns returns the column updates for the set fields.
func (p ProductPatch) Columns() map[string]any {
	out := map[string]any{}
	if p.Name != nil {
		out["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		out["description"] = strings.TrimSpace(*p.Description)
	}
	if p.Genre != nil {
		out["genre"] = strings.TrimSpace(*p.Genre)
	}
	if p.ImageURL != nil {
		out["image_url"] = strings.TrimSpace(*p.ImageURL)
	}
	if p.Price != nil {
		out["price"] = *p.Price
	}
	if p.Stock != nil {
		out["stock"] = *p.Stock
	}
	return out
}

// Apply writes the set fields onto prod field by field.
func (p ProductPatch) Apply(prod *Product) {
	if prod == nil {
		return
	}
	if p.Name != nil {
		prod.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		prod.Description = strings.TrimSpace(*p.Description)
	}
	if p.Genre != nil {
		prod.Genre = strings.TrimSpace(*p.Genre)
	}
	if p.ImageURL != nil {
		prod.ImageURL = strings.TrimSpace(*p.ImageURL)
	}
	if p.Price != nil {
		prod.Price = *p.Price
	}
	if p.Stock != nil {
		prod.Stock = *p.Stock
	}
}

// Fields lists the set column names in a stable order.
func (p ProductPatch) Fields() []string {
	keys := make([]string, 0, 6)
	for k := range p.Columns() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
