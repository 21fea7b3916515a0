package app

import (
	"fmt"

	"github.com/yungbote/marketplace-backend/internal/data/aggregates"
	"github.com/yungbote/marketplace-backend/internal/data/redisledger"
	"github.com/yungbote/marketplace-backend/internal/data/repos"
	domainagg "github.com/yungbote/marketplace-backend/internal/domain/aggregates"
	"github.com/yungbote/marketplace-backend/internal/jobs"
	"github.com/yungbote/marketplace-backend/internal/observability"
	"github.com/yungbote/marketplace-backend/internal/platform/logger"
	"github.com/yungbote/marketplace-backend/internal/services"
)

type Services struct {
	Marketplace domainagg.MarketplaceAggregate
	Checker     domainagg.ConsistencyChecker

	Auth        services.AuthService
	Catalog     services.CatalogService
	Consistency services.ConsistencyService

	JobWorker *jobs.Worker
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, reposet repos.Set, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")
	db := clients.DB()

	base := aggregates.BaseDeps{
		DB:           db,
		Log:          log,
		Hooks:        aggregates.NewObservabilityHooks(metrics),
		StoreTimeout: cfg.StoreTimeout,
	}

	var ledger aggregates.SyncLedger
	switch cfg.Ledger.Backend {
	case LedgerRedis:
		if clients.Redis == nil {
			return Services{}, fmt.Errorf("ledger backend redis requires a redis client")
		}
		ledger = redisledger.NewLedger(log, clients.Redis, cfg.Redis)
	case LedgerDB:
		ledger = aggregates.NewRepoLedger(reposet.SyncRun)
	}

	marketplace := aggregates.NewMarketplaceAggregate(aggregates.MarketplaceAggregateDeps{
		Base:     base,
		Accounts: reposet.Account,
		Products: reposet.Product,
		Orders:   reposet.Order,
		Ledger:   ledger,
		Config:   cfg.Aggregates,
	})

	policy, err := aggregates.RepairPolicyByName(cfg.Checker.Policy)
	if err != nil {
		return Services{}, err
	}
	checker := aggregates.NewConsistencyChecker(aggregates.ConsistencyCheckerDeps{
		Base:        base,
		Accounts:    reposet.Account,
		Products:    reposet.Product,
		Orders:      reposet.Order,
		Policy:      policy,
		OrphanGrace: cfg.Checker.OrphanGrace,
		Config:      cfg.Aggregates,
	})

	auth, err := services.NewAuthService(log, reposet.Account, cfg.Auth)
	if err != nil {
		return Services{}, fmt.Errorf("init auth service: %w", err)
	}
	consistency := services.NewConsistencyService(log, checker, reposet.CheckRun, metrics)

	registry := jobs.NewRegistry()
	if cfg.Checker.Interval > 0 {
		if err := registry.Register(jobs.NewConsistencySweep(log, consistency, cfg.Checker.Interval, cfg.Checker.Repair)); err != nil {
			return Services{}, err
		}
	}
	if cfg.Ledger.Backend == LedgerDB && cfg.Ledger.PruneInterval > 0 {
		if err := registry.Register(jobs.NewSyncRunPrune(log, reposet.SyncRun, cfg.Ledger.PruneInterval, cfg.Ledger.Retention)); err != nil {
			return Services{}, err
		}
	}

	return Services{
		Marketplace: marketplace,
		Checker:     checker,
		Auth:        auth,
		Catalog:     services.NewCatalogService(log, reposet.Account, reposet.Product, reposet.Order),
		Consistency: consistency,
		JobWorker:   jobs.NewWorker(log, registry),
	}, nil
}
