package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/HanjuJo/Latteh/internal/auth"
	"github.com/HanjuJo/Latteh/internal/metrics"
	"github.com/HanjuJo/Latteh/internal/router"
	"github.com/HanjuJo/Latteh/internal/schema"
	"github.com/HanjuJo/Latteh/internal/user"
	"github.com/HanjuJo/Latteh/pkg/database"
	"github.com/HanjuJo/Latteh/pkg/utilities"
)

type serverConfig struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:10000"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	BcryptCost      int           `env:"BCRYPT_COST" envDefault:"12"`
	AutoMigrate     bool          `env:"DATABASE_AUTO_MIGRATE" envDefault:"true"`
}

func main() {
	// best-effort: without a .env file the real environment is used
	_ = godotenv.Load()

	logCfg, err := utilities.ConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger config: %v\n", err)
		os.Exit(1)
	}
	lg, err := utilities.Init(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting latteh api")

	var srvCfg serverConfig
	if err := env.Parse(&srvCfg); err != nil {
		sugar.Fatalf("server config: %v", err)
	}
	authCfg, err := auth.ConfigFromEnv()
	if err != nil {
		sugar.Fatalf("auth config: %v", err)
	}

	dbCfg, err := database.ConfigFromEnv()
	if err != nil {
		sugar.Fatalf("db config: %v", err)
	}
	sqlDB, err := database.Connect(dbCfg)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	sqlxDB := sqlx.NewDb(sqlDB, dbCfg.Driver)
	defer sqlxDB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if srvCfg.AutoMigrate {
		if err := schema.Ensure(ctx, sqlxDB); err != nil {
			sugar.Fatalf("ensure schema: %v", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler := router.RegisterRoutes(sugar, router.Deps{
		DB:             sqlxDB,
		Tokens:         auth.NewTokenIssuer(authCfg),
		Hasher:         user.BcryptHasher{Cost: srvCfg.BcryptCost},
		Metrics:        metrics.New(reg),
		Gatherer:       reg,
		AllowedOrigins: srvCfg.AllowedOrigins,
	})
	srv := &http.Server{
		Addr:              srvCfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       srvCfg.ReadTimeout,
		WriteTimeout:      srvCfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		sugar.Infow("http server listening", "addr", srvCfg.Addr, "driver", dbCfg.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), srvCfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	sugar.Info("goodbye")
}
