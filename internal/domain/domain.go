package domain

import (
	"github.com/yungbote/marketplace-backend/internal/domain/account"
	"github.com/yungbote/marketplace-backend/internal/domain/catalog"
	"github.com/yungbote/marketplace-backend/internal/domain/jobs"
	"github.com/yungbote/marketplace-backend/internal/domain/orders"
)

type Account = account.Account
type CartItem = account.CartItem

type Product = catalog.Product
type ProductInput = catalog.ProductInput
type ProductPatch = catalog.ProductPatch

type Order = orders.Order
type OrderItem = orders.OrderItem
type OrderInput = orders.OrderInput
type BillingInfo = orders.BillingInfo

type SyncRun = jobs.SyncRun
type CheckRun = jobs.CheckRun

const (
	SyncRunRunning   = jobs.SyncRunRunning
	SyncRunPartial   = jobs.SyncRunPartial
	SyncRunSucceeded = jobs.SyncRunSucceeded

	CheckTriggerScheduled = jobs.CheckTriggerScheduled
	CheckTriggerManual    = jobs.CheckTriggerManual
	CheckRunRunning       = jobs.CheckRunRunning
	CheckRunSucceeded     = jobs.CheckRunSucceeded
	CheckRunFailed        = jobs.CheckRunFailed
)
