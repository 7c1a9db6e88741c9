package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/store"
	bunstore "github.com/xraph/jobrepo/store/bun"
	"github.com/xraph/jobrepo/store/memory"
	mongostore "github.com/xraph/jobrepo/store/mongo"
	"github.com/xraph/jobrepo/store/postgres"
	redisstore "github.com/xraph/jobrepo/store/redis"
	"github.com/xraph/jobrepo/store/sqlite"
)

// storeHandle pairs a store with whatever client the store does not own.
type storeHandle struct {
	store       store.Store
	closeClient func() error
}

func (h storeHandle) close() error {
	err := h.store.Close()
	if h.closeClient != nil {
		if cerr := h.closeClient(); err == nil {
			err = cerr
		}
	}
	return err
}

// openStore connects the backend named by cfg.Driver.
func openStore(ctx context.Context, cfg jobrepo.BackendConfig, logger *slog.Logger) (storeHandle, error) {
	switch cfg.Driver {
	case "memory":
		return storeHandle{store: memory.New()}, nil

	case "mongo":
		client, err := mongod.Connect(options.Client().ApplyURI(cfg.DSN))
		if err != nil {
			return storeHandle{}, fmt.Errorf("mongo connect: %w", err)
		}
		s := mongostore.New(client.Database(cfg.Database), mongostore.WithLogger(logger))
		return storeHandle{
			store:       s,
			closeClient: func() error { return client.Disconnect(context.Background()) },
		}, nil

	case "postgres":
		s, err := postgres.New(ctx, cfg.DSN, postgres.WithLogger(logger))
		if err != nil {
			return storeHandle{}, err
		}
		return storeHandle{store: s}, nil

	case "bun":
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
		db := bun.NewDB(sqldb, pgdialect.New())
		return storeHandle{
			store:       bunstore.New(db, bunstore.WithLogger(logger)),
			closeClient: db.Close,
		}, nil

	case "sqlite":
		s, err := sqlite.New(ctx, cfg.DSN, sqlite.WithLogger(logger))
		if err != nil {
			return storeHandle{}, err
		}
		return storeHandle{store: s}, nil

	case "redis":
		opt, err := goredis.ParseURL(cfg.DSN)
		if err != nil {
			return storeHandle{}, fmt.Errorf("%w: redis dsn: %v", jobrepo.ErrInvalidArgument, err)
		}
		client := goredis.NewClient(opt)
		return storeHandle{
			store: redisstore.New(client, redisstore.WithLogger(logger), redisstore.WithOwnedClient()),
		}, nil
	}
	return storeHandle{}, fmt.Errorf("%w: unknown backend driver %q", jobrepo.ErrInvalidArgument, cfg.Driver)
}
