package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/agrisense/agrisense-backend/internal/engine"
	"github.com/agrisense/agrisense-backend/internal/engine/config"
	"github.com/agrisense/agrisense-backend/internal/engine/enginehttp"
	"github.com/agrisense/agrisense-backend/internal/engine/mock"
	"github.com/agrisense/agrisense-backend/internal/observability"
	"github.com/agrisense/agrisense-backend/internal/platform/logger"
	"github.com/agrisense/agrisense-backend/internal/platform/neo4jdb"
	"github.com/agrisense/agrisense-backend/internal/realtime/bus"
	"github.com/agrisense/agrisense-backend/internal/temporalx"
)

type Clients struct {
	Redis       *goredis.Client
	LiveBus     bus.LiveBus
	Engine      *engine.Client
	Neo4j       *neo4jdb.Client
	Temporal    temporalsdkclient.Client
	TemporalCfg temporalx.Config
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Redis
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pctx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return out, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		live, err := bus.NewRedisBus(log, rdb)
		if err != nil {
			_ = rdb.Close()
			return out, fmt.Errorf("init redis live bus: %w", err)
		}
		out.Redis = rdb
		out.LiveBus = live
	} else {
		log.Info("REDIS_ADDR not set; live feed and status mirror stay in process")
		out.LiveBus = bus.NewMemoryBus(log)
	}

	// Engine
	engCfg, err := config.Load()
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("load engine config: %w", err)
	}
	var backend engine.Backend
	switch engCfg.Type {
	case config.TypeHTTP:
		b, err := enginehttp.New(engCfg)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init engine http backend: %w", err)
		}
		backend = b
	default:
		log.Warn("using in-process mock graph engine", "engine_type", engCfg.Type)
		backend = mock.New()
	}
	out.Engine = engine.NewClient(backend, log, metrics)

	// Neo4j (optional topology projection)
	neo, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init neo4j: %w", err)
	}
	out.Neo4j = neo

	// Temporal (optional durable dispatch)
	out.TemporalCfg = temporalx.LoadConfig()
	tc, err := temporalx.NewClient(ctx, out.TemporalCfg, log)
	if err != nil {
		out.Close()
		return Clients{}, err
	}
	out.Temporal = tc

	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Neo4j != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = c.Neo4j.Close(ctx)
		cancel()
	}
	if c.LiveBus != nil {
		_ = c.LiveBus.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
