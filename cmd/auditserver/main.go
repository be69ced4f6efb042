// Command auditserver runs the audit co-signer (C4): device registration
// and envelope co-signing for the lock controller to trust, plus the
// per-device append-only log the lock server's actions are checked
// against after the fact.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sage-x-project/lockaudit/audit"
	"github.com/sage-x-project/lockaudit/config"
	"github.com/sage-x-project/lockaudit/cryptoprim"
	"github.com/sage-x-project/lockaudit/device"
	"github.com/sage-x-project/lockaudit/device/snapshot/fsstore"
	"github.com/sage-x-project/lockaudit/device/snapshot/pgstore"
	"github.com/sage-x-project/lockaudit/internal/cmdutil"
	"github.com/sage-x-project/lockaudit/internal/logger"
	"github.com/sage-x-project/lockaudit/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewDefaultLogger()
	if lvl := cmdutil.ParseLevel(cfg.Logging.Level); lvl >= 0 {
		log.SetLevel(lvl)
	}

	snap, err := buildSnapshotStore(cfg)
	if err != nil {
		log.Fatal("build snapshot store", logger.Error(err))
	}

	ctx := context.Background()
	store, err := device.NewAuditStore(ctx, snap)
	if err != nil {
		log.Fatal("load audit store", logger.Error(err))
	}

	secret := []byte(cfg.Audit.ReadTokenSecret)
	if len(secret) == 0 {
		generated, err := cryptoprim.GenerateSecret()
		if err != nil {
			log.Fatal("generate read token secret", logger.Error(err))
		}
		secret = []byte(generated)
		log.Warn("no audit.readTokenSecret configured; generated an ephemeral one, read tokens will not survive a restart")
	}
	ttl := time.Duration(cfg.Audit.ReadTokenTTL) * time.Second

	srv := audit.New(store, log, secret, ttl)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/register", handleRegister(srv))
	mux.HandleFunc("POST /api/sign", handleSign(srv))
	mux.HandleFunc("GET /api/device/{id}/logs", handleLogs(srv))

	if cfg.Metrics.Enabled {
		go func() {
			log.Info("metrics server starting", logger.String("addr", cfg.Metrics.Addr))
			if err := metrics.StartServer(cfg.Metrics.Addr); err != nil {
				log.Error("metrics server stopped", logger.Error(err))
			}
		}()
	}

	httpSrv := &http.Server{
		Addr:         cmdutil.EnvOr("LOCKAUDIT_AUDIT_ADDR", ":8081"),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("audit server listening", logger.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http serve", logger.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("audit server shutting down")
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", logger.Error(err))
	}
}

func buildSnapshotStore(cfg *config.Config) (device.SnapshotStore, error) {
	switch cfg.Persistence.Type {
	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.Persistence.DSN)
		if err != nil {
			return nil, err
		}
		store := pgstore.New(pool, cfg.Persistence.TableName, "audit")
		if err := store.EnsureSchema(context.Background()); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return fsstore.New(auditSnapshotPath(cfg)), nil
	}
}

// auditSnapshotPath honors an operator-set persistence.path, but swaps out
// config's shared lock-server-oriented default so running both binaries
// against the same config.json doesn't silently point them at the same
// snapshot file.
func auditSnapshotPath(cfg *config.Config) string {
	if cfg.Persistence.Path == "" || cfg.Persistence.Path == "state_lock.json" {
		return "state_audit.json"
	}
	return cfg.Persistence.Path
}


