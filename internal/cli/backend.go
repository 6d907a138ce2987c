package cli

import (
	"context"
	"errors"
	"fmt"

	"fitlog/internal/adapter/avatars"
	"fitlog/internal/adapter/memory"
	"fitlog/internal/adapter/postgres"
	"fitlog/internal/adapter/redisstore"
	"fitlog/internal/adapter/sqlite"
	"fitlog/internal/config"
	"fitlog/internal/domain"

	"github.com/charmbracelet/log"
)

type store interface {
	domain.UserRepository
	domain.EntryRepository
}

// backend bundles the repositories selected by the config.
type backend struct {
	store    store
	sessions domain.SessionRepository
	closers  []func() error
}

// openBackend opens the storage driver, applies migrations and picks the
// session store.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	b := &backend{}

	var sqlSessions domain.SessionRepository
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		b.store, sqlSessions = db, postgres.NewSessionRepo(db)
		b.closers = append(b.closers, db.Close)
	case config.DriverSQLite:
		c, err := sqlite.New(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		b.store, sqlSessions = c, sqlite.NewSessionRepo(c)
		b.closers = append(b.closers, c.Close)
	case config.DriverMemory:
		db := memory.New()
		b.store, sqlSessions = db, db.NewSessionRepo()
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	log.Debug("storage ready", "driver", cfg.Storage.Driver)

	switch cfg.Session.Store {
	case config.SessionStoreRedis:
		r, err := redisstore.Open(ctx, cfg.Session.RedisURL)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("open redis: %w", err)
		}
		b.sessions = r
		b.closers = append(b.closers, r.Close)
	default:
		b.sessions = sqlSessions
	}
	log.Debug("session store ready", "store", cfg.Session.Store)

	return b, nil
}

// Close releases every opened connection.
func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

func openAvatarStore(ctx context.Context, cfg *config.Config) (domain.AvatarStore, error) {
	switch cfg.Avatars.Store {
	case config.AvatarStoreS3:
		return avatars.NewS3Store(ctx, cfg.Avatars.S3)
	case config.AvatarStoreDisk, "":
		return avatars.NewDiskStore(cfg.Avatars.Dir)
	default:
		return nil, fmt.Errorf("unknown avatar store %q", cfg.Avatars.Store)
	}
}
