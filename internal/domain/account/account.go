package account

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Account is the owning aggregate. Its embedded sequences hold ids and value
// objects only; canonical products and orders live in their own tables.
type Account struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email    string    `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Name     string    `gorm:"not null;column:name" json:"name"`
	Password string    `gorm:"not null;column:password" json:"-"`

	// Version is the optimistic concurrency token checked by every save.
	Version int `gorm:"not null;default:0;column:version" json:"version"`

	Listings  datatypes.JSONSlice[uuid.UUID] `gorm:"column:listings" json:"listings"`
	Cart      datatypes.JSONSlice[CartItem]  `gorm:"column:cart" json:"cart"`
	OrderRefs datatypes.JSONSlice[uuid.UUID] `gorm:"column:order_refs" json:"order_refs"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string { return "account" }

func (a *Account) HasListing(productID uuid.UUID) bool {
	return indexOf(a.Listings, productID) >= 0
}

// AttachListing appends productID unless already present and reports whether it changed.
func (a *Account) AttachListing(productID uuid.UUID) bool {
	if a.HasListing(productID) {
		return false
	}
	a.Listings = append(a.Listings, productID)
	return true
}

// DetachListing removes every occurrence of productID.
func (a *Account) DetachListing(productID uuid.UUID) bool {
	var changed bool
	a.Listings, changed = removeAll(a.Listings, productID)
	return changed
}

func (a *Account) HasOrder(orderID uuid.UUID) bool {
	return indexOf(a.OrderRefs, orderID) >= 0
}

func (a *Account) AttachOrder(orderID uuid.UUID) bool {
	if a.HasOrder(orderID) {
		return false
	}
	a.OrderRefs = append(a.OrderRefs, orderID)
	return true
}

func (a *Account) DetachOrder(orderID uuid.UUID) bool {
	var changed bool
	a.OrderRefs, changed = removeAll(a.OrderRefs, orderID)
	return changed
}

func indexOf(ids []uuid.UUID, id uuid.UUID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// removeAll returns a new slice; ids is never written.
func removeAll(ids []uuid.UUID, id uuid.UUID) ([]uuid.UUID, bool) {
	out := make([]uuid.UUID, 0, len(ids))
	changed := false
	for _, v := range ids {
		if v == id {
			changed = true
			continue
		}
		out = append(out, v)
	}
	return out, changed
}
