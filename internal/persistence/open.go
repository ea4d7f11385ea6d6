package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/gravitas-games/craftd/internal/config"
	"github.com/gravitas-games/craftd/internal/pkg/logger"
)

// Open builds the backend selected by cfg.Storage. The redis backend dials
// its own client from cfg.Redis and closes it on Close.
func Open(cfg *config.Config, l *logger.Logger) (Store, error) {
	if l == nil {
		l = logger.Nop()
	}
	st := cfg.Storage
	l.Info("opening inventory store", zap.String("backend", st.Backend))

	switch st.Backend {
	case config.BackendMemory, "":
		return NewMemory(), nil
	case config.BackendFile:
		return NewFileStore(st.Path)
	case config.BackendSQLite:
		return OpenSQLite(st.Path, l)
	case config.BackendPostgres:
		return OpenPostgres(st.DSN, l)
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("persistence: redis ping: %w", err)
		}
		s := NewRedisStore(client, st.KeyPrefix)
		s.owned = true
		return s, nil
	default:
		return nil, fmt.Errorf("persistence: unknown backend %q", st.Backend)
	}
}
