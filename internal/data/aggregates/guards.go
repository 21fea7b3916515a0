package aggregates

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/marketplace-backend/internal/domain"
	"github.com/yungbote/marketplace-backend/internal/platform/dbctx"
)

// CASGuard provides optimistic/concurrency guard helpers for aggregate writes.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

func (g CASGuard) baseDB(dbc dbctx.Context) (*gorm.DB, error) {
	if dbc.Tx == nil && g.db == nil {
		return nil, ValidationError("missing db handle")
	}
	return dbc.DB(g.db), nil
}

// UpdateByVersion updates a row only when id+version match.
// It implements compare-and-set semantics commonly used for optimistic locking.
func (g CASGuard) UpdateByVersion(dbc dbctx.Context, table string, id uuid.UUID, expectedVersion int, updates map[string]any) (bool, error) {
	db, err := g.baseDB(dbc)
	if err != nil {
		return false, err
	}
	table = strings.TrimSpace(table)
	if table == "" || id == uuid.Nil {
		return false, ValidationError("table and id are required for UpdateByVersion")
	}
	if expectedVersion < 0 {
		return false, ValidationError("expectedVersion must be >= 0")
	}
	res := db.Table(table).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SaveAccount replaces the account's profile and embedded sequences when its
// stored version still equals a.Version, then bumps a.Version.
func (g CASGuard) SaveAccount(dbc dbctx.Context, a *types.Account) error {
	if a == nil {
		return ValidationError("account is required")
	}
	ok, err := g.UpdateByVersion(dbc, types.Account{}.TableName(), a.ID, a.Version, map[string]any{
		"name":       a.Name,
		"listings":   a.Listings,
		"cart":       a.Cart,
		"order_refs": a.OrderRefs,
		"version":    a.Version + 1,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := RequireCASSuccess(ok, "account changed since it was read"); err != nil {
		return err
	}
	a.Version++
	return nil
}

// RequireCASSuccess converts a failed compare-and-set into a typed conflict error.
func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	return ConflictError(strings.TrimSpace(message))
}
