package bootstrap

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/redis/go-redis/v9"

	"github.com/exteriorai/exteriorai-backend/config"
	"github.com/exteriorai/exteriorai-backend/internal/store"
)

type StoreOptions struct {
	Driver string
	// App is required for the firestore driver.
	App *firebase.App
}

func OpenStore(ctx context.Context, opt StoreOptions) (store.DocumentStore, error) {
	switch opt.Driver {
	case config.StoreDriverMemory:
		return store.NewMemory(), nil
	case config.StoreDriverFirestore:
		if opt.App == nil {
			return nil, fmt.Errorf("firestore store needs a firebase app")
		}
		client, err := opt.App.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("firestore connect: %w", err)
		}
		return store.NewFirestore(client), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", opt.Driver)
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	PingTO   time.Duration
}

// OpenRedis returns a nil client when no address is configured.
func OpenRedis(ctx context.Context, opt RedisOptions) (*redis.Client, error) {
	if opt.Addr == "" {
		return nil, nil
	}
	if opt.PingTO == 0 {
		opt.PingTO = 2 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opt.Addr,
		Password: opt.Password,
		DB:       opt.DB,
	})

	pctx, cancel := context.WithTimeout(ctx, opt.PingTO)
	defer cancel()

	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}
