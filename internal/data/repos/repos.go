package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/marketplace-backend/internal/data/repos/account"
	"github.com/yungbote/marketplace-backend/internal/data/repos/catalog"
	"github.com/yungbote/marketplace-backend/internal/data/repos/jobs"
	"github.com/yungbote/marketplace-backend/internal/data/repos/orders"
	"github.com/yungbote/marketplace-backend/internal/platform/logger"
)

type AccountRepo = account.AccountRepo

type ProductRepo = catalog.ProductRepo
type OrderRepo = orders.OrderRepo

type SyncRunRepo = jobs.SyncRunRepo
type CheckRunRepo = jobs.CheckRunRepo

// Set bundles every table repo the app wires.
type Set struct {
	Account  AccountRepo
	Product  ProductRepo
	Order    OrderRepo
	SyncRun  SyncRunRepo
	CheckRun CheckRunRepo
}

func NewSet(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Account:  account.NewAccountRepo(db, log),
		Product:  catalog.NewProductRepo(db, log),
		Order:    orders.NewOrderRepo(db, log),
		SyncRun:  jobs.NewSyncRunRepo(db, log),
		CheckRun: jobs.NewCheckRunRepo(db, log),
	}
}
