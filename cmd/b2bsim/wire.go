/*
wire.go - Dependency wiring shared by serve and simulate

BACKENDS:
  memory    generic/store maps, lost on exit
  sqlite    store/sqldb over mattn/go-sqlite3 (DSN is a file path)
  postgres  store/sqldb over pgx (DSN is a connection string)

  Recipients always live in memory; scenario loading fills them.

LOCKING:
  With B2B_REDIS_ADDR set, mutations lock through Redis so several
  processes can share one database. Otherwise an in-process locker.
*/
package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/warp/b2b-engine/api"
	"github.com/warp/b2b-engine/approval"
	"github.com/warp/b2b-engine/budget"
	"github.com/warp/b2b-engine/factory"
	"github.com/warp/b2b-engine/generic"
	"github.com/warp/b2b-engine/generic/store"
	"github.com/warp/b2b-engine/internal/config"
	"github.com/warp/b2b-engine/internal/metrics"
	"github.com/warp/b2b-engine/quote"
	"github.com/warp/b2b-engine/store/redis"
	"github.com/warp/b2b-engine/store/sqldb"
	"go.uber.org/zap"
)

// app is everything a command needs, plus the closers for it.
type app struct {
	handler *api.Handler
	ping    func(context.Context) error
	closers []func() error
}

func (a *app) Close(logger *zap.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}
}

func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger, extra ...generic.Option) (*app, error) {
	a := &app{}
	stores, usage, err := openStores(ctx, cfg, a, logger, extra)
	if err != nil {
		a.Close(logger)
		return nil, err
	}

	var locker generic.Locker = store.NewLocker()
	if cfg.RedisAddr != "" {
		client, err := redis.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			a.Close(logger)
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		locker = redis.NewLocker(client, "b2b:")
		logger.Info("using redis locker", zap.String("addr", cfg.RedisAddr))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observer, err := metrics.New(reg)
	if err != nil {
		a.Close(logger)
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	opts := append([]generic.Option{
		generic.WithLogger(logger),
		generic.WithLocker(locker),
		generic.WithObserver(observer),
	}, extra...)
	recipients := store.NewRecipients()
	stores.Recipients = recipients

	a.handler = &api.Handler{
		Quotes:    quote.NewLifecycle(stores.Quotes, opts...),
		Approvals: approval.NewLifecycle(stores.PendingOrders, opts...),
		Budgets:   budget.NewService(stores.Budgets, usage, recipients, opts...),
		Fixtures:  stores,
		Logger:    logger,
		Gatherer:  reg,
		Ping:      a.ping,
	}
	return a, nil
}

// openStores picks the backend. SQL stores share the clock from opts so
// their bookkeeping columns follow simulated time.
func openStores(ctx context.Context, cfg config.Config, a *app, logger *zap.Logger, opts []generic.Option) (factory.Stores, generic.UsageLog, error) {
	var (
		db  *sqldb.Store
		err error
	)
	switch cfg.Store {
	case config.StoreMemory:
		return factory.Stores{
			Budgets:       store.NewMemory[budget.Budget]("budget"),
			Quotes:        store.NewMemory[quote.Quote]("quote"),
			PendingOrders: store.NewMemory[approval.PendingOrder]("pending order"),
		}, store.NewUsageLog(), nil
	case config.StoreSQLite:
		db, err = sqldb.OpenSQLite(cfg.DSN, opts...)
	case config.StorePostgres:
		db, err = sqldb.OpenPostgres(ctx, cfg.DSN, opts...)
	default:
		return factory.Stores{}, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
	if err != nil {
		return factory.Stores{}, nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	a.closers = append(a.closers, db.Close)
	a.ping = db.Ping
	logger.Info("opened sql store", zap.String("dialect", string(db.Dialect())))

	return factory.Stores{
		Budgets:       sqldb.NewBudgetStore(db),
		Quotes:        sqldb.NewEntityStore[quote.Quote](db, "quote"),
		PendingOrders: sqldb.NewEntityStore[approval.PendingOrder](db, "pending_order"),
	}, sqldb.NewUsageLog(db), nil
}
