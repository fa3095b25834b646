// tradebook is the trade booking service: a versioned trade store with
// role-gated lifecycle operations, rule validation, filter search and a
// reporting dashboard.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Aidin1998/tradebook/api"
	"github.com/Aidin1998/tradebook/internal/authz"
	"github.com/Aidin1998/tradebook/internal/config"
	"github.com/Aidin1998/tradebook/internal/dashboard"
	"github.com/Aidin1998/tradebook/internal/database"
	"github.com/Aidin1998/tradebook/internal/directory"
	"github.com/Aidin1998/tradebook/internal/refdata"
	"github.com/Aidin1998/tradebook/internal/trading"
	"github.com/Aidin1998/tradebook/internal/validation"
	"github.com/Aidin1998/tradebook/pkg/logger"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	db, err := database.NewPostgresDB(cfg.Database.DSN,
		cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			log.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	dir := directory.NewService(log, db)
	ref := refdata.NewService(log, db)
	auth := authz.NewService(log, dir)
	rules := validation.NewService(log, ref, dir)
	store := trading.NewStore(db)
	trades := trading.NewService(log, store, auth, rules, ref, dir)
	dash := dashboard.NewService(log, db, dir)

	server := api.NewServer(log, trades, dash)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go database.MonitorPool(ctx, db, 15*time.Second)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	if err := server.Start(ctx, addr,
		cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
	log.Info("shutdown complete")
}
