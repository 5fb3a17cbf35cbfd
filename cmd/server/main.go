package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lvleste/vtr-estoque/internal/api"
	"github.com/lvleste/vtr-estoque/internal/config"
	"github.com/lvleste/vtr-estoque/internal/infra/db"
	httpx "github.com/lvleste/vtr-estoque/internal/infra/http"
	"github.com/lvleste/vtr-estoque/internal/infra/logger"
	"github.com/lvleste/vtr-estoque/internal/store"
	"github.com/lvleste/vtr-estoque/internal/syncengine"

	"github.com/subosito/gotenv"
)

func main() {
	_ = gotenv.Load()

	cfgPath := "config/example.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	sqlDB, err := db.Connect(cfg.Store.Path)
	if err != nil {
		log.Error("store open failed", "path", cfg.Store.Path, "err", err)
		return
	}
	defer func() { _ = sqlDB.Close() }()

	if err := db.Migrate(sqlDB); err != nil {
		log.Error("migrations failed", "err", err)
		return
	}
	log.Info("store ready", "path", cfg.Store.Path)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw := syncengine.NewGateway(cfg.Remote.URL, cfg.Remote.PullTimeout, log)
	engine := syncengine.New(ctx, store.New(sqlDB, log), gw, syncengine.RealClock(), log, syncengine.Options{
		Cooldown:     cfg.Remote.PushCooldown,
		PullInterval: cfg.Remote.PullInterval,
		AllowedVTRs:  cfg.Fleet.VTRs,
	})
	go engine.Run(ctx)
	if cfg.Remote.URL == "" {
		log.Warn("remote sheet not configured, running offline")
	}

	h := api.New(log, engine, cfg.Admin.Token)
	srv := httpx.New(cfg.HTTP.Addr, h.Register, cfg.Metrics.Enabled)
	go func() {
		if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}
