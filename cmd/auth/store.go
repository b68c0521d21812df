package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/db/memory"
	mongoRepo "github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/db/mongo"
	postgresRepo "github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/db/postgres"
	redisRepo "github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/db/redis"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/repo"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/config"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/migrate"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// store is the opened credential store plus whatever must be released on exit.
type store struct {
	accounts repo.AccountRepo
	health   pinger
	closers  []func() error
}

func (s *store) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*store, error) {
	s := &store{}

	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("db handle: %w", err)
		}
		s.closers = append(s.closers, sqlDB.Close)
		if err := migrate.Up(sqlDB); err != nil {
			s.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		pg := postgresRepo.NewPostgresAccountRepo(db)
		s.accounts, s.health = pg, pg

	case config.StoreDriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI).SetTimeout(cfg.StoreTimeout))
		if err != nil {
			return nil, fmt.Errorf("connect to mongo: %w", err)
		}
		s.closers = append(s.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Disconnect(ctx)
		})
		m := mongoRepo.NewMongoAccountRepo(client.Database(cfg.MongoDatabase).Collection(mongoRepo.CollectionName))
		if err := m.EnsureIndexes(ctx); err != nil {
			s.Close()
			return nil, err
		}
		s.accounts, s.health = m, m

	default:
		log.Warn("using the in-memory store; accounts are lost on restart")
		s.accounts = memory.NewAccountRepo()
	}

	if cfg.RedisAddress != "" {
		redisCli := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			// cache calls carry their own short deadline
			ContextTimeoutEnabled: true,
		})
		s.closers = append(s.closers, redisCli.Close)
		if err := redisCli.Ping(ctx).Err(); err != nil {
			log.Warn("account cache unreachable, continuing without it", zap.Error(err))
		}
		s.accounts = redisRepo.NewCachedAccountRepo(s.accounts, redisCli, cfg.AccountCacheTTL, log)
	}

	log.Info("credential store ready",
		zap.String("driver", cfg.StoreDriver),
		zap.Bool("cache", cfg.RedisAddress != ""),
	)
	return s, nil
}
