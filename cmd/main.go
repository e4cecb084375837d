package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/damiencorpataux/relrest/internal/auth"
	"github.com/damiencorpataux/relrest/internal/catalog"
	"github.com/damiencorpataux/relrest/internal/config"
	"github.com/damiencorpataux/relrest/internal/db"
	"github.com/damiencorpataux/relrest/internal/handler"
	"github.com/damiencorpataux/relrest/internal/logger"
	"github.com/damiencorpataux/relrest/internal/rescache"
	"github.com/damiencorpataux/relrest/internal/rights"
	"github.com/damiencorpataux/relrest/internal/router"
	"github.com/damiencorpataux/relrest/internal/service"
)

func main() {
	debugFlag := flag.Bool("d", false, "enable debug logging")
	flag.Parse()

	cfg := config.LoadConfig()
	if err := logger.Init("."); err != nil {
		fmt.Fprintf(os.Stderr, "log init failed: %v\n", err)
		os.Exit(1)
	}
	logger.SetDebug(*debugFlag)

	ctx := context.Background()
	if err := db.InitPostgres(ctx, cfg.PostgresDSN); err != nil {
		logger.Error("postgres_init_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer db.ClosePostgres()
	logger.Info("postgres_connected", nil)

	cat, err := catalog.Load(cfg.ModelsDir)
	if err != nil {
		logger.Error("catalog_init_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	logger.Info("catalog_loaded", map[string]any{"resources": cat.Resources()})

	r, err := rights.LoadFile(cfg.RolesFile, cat)
	if err != nil {
		logger.Error("roles_init_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	var cache *rescache.Cache
	if cfg.RedisAddr != "" && cfg.Cache.TTLSec > 0 {
		db.InitRedis(cfg.RedisAddr)
		if err := db.PingRedis(); err != nil {
			logger.Warn("redis_unavailable", map[string]any{"error": err.Error()})
		} else {
			cache = rescache.New(db.RDB, time.Duration(cfg.Cache.TTLSec)*time.Second)
			logger.Info("rescache_enabled", map[string]any{"ttl_sec": cfg.Cache.TTLSec})
		}
	}

	var validator *auth.JWTValidator
	if cfg.Auth.Enabled {
		validator, err = auth.NewJWTValidator(cfg.Auth.JWT)
		if err != nil {
			logger.Error("jwt_init_failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
	}

	svc := service.New(cat, r, db.Pool)
	mux := router.New(cfg, handler.New(svc, cache), validator)

	logger.Info("server_start", map[string]any{"port": cfg.Port})
	if err := http.ListenAndServe(":"+cfg.Port, mux); err != nil {
		logger.Error("server_error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}
