package store

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"qrattend/internal/attendance"
	"qrattend/internal/config"
)

// Open builds the attendance store selected by cfg.StoreBackend, applies the
// schema where there is one and upserts the seed users.
func Open(ctx context.Context, cfg config.App, log *zap.Logger) (attendance.Store, error) {
	s, err := open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	seed, err := cfg.Seed()
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	for id, name := range seed {
		if err := s.EnsureUser(ctx, attendance.User{ID: id, Username: name}); err != nil {
			_ = s.Close()
			return nil, errors.Wrapf(err, "seed user %d", id)
		}
	}
	log.Info("store ready", zap.String("backend", cfg.StoreBackend), zap.Int("seeded", len(seed)))
	return s, nil
}

func open(ctx context.Context, cfg config.App) (attendance.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return attendance.NewMemoryStore(), nil
	case config.BackendRedis:
		client, err := NewRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		return attendance.NewRedisStore(client, "qrattend"), nil
	case config.BackendSQLite:
		db, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return migrate(ctx, attendance.NewRepository(db, attendance.SQLite))
	case config.BackendPostgres:
		db, err := OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return migrate(ctx, attendance.NewRepository(db, attendance.Postgres))
	default:
		return nil, errors.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func migrate(ctx context.Context, repo *attendance.Repository) (attendance.Store, error) {
	if err := repo.Migrate(ctx); err != nil {
		_ = repo.Close()
		return nil, errors.Wrap(err, "migrate")
	}
	return repo, nil
}
