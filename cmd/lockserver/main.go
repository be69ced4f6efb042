// Command lockserver runs the lock controller (C5): attested device
// pairing, the unlock challenge/response state machine, and entity
// actuation against Home Assistant.
package main

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sage-x-project/lockaudit/config"
	"github.com/sage-x-project/lockaudit/device"
	"github.com/sage-x-project/lockaudit/device/snapshot/fsstore"
	"github.com/sage-x-project/lockaudit/device/snapshot/pgstore"
	"github.com/sage-x-project/lockaudit/internal/cmdutil"
	"github.com/sage-x-project/lockaudit/internal/logger"
	"github.com/sage-x-project/lockaudit/internal/metrics"
	"github.com/sage-x-project/lockaudit/lock"
	"github.com/sage-x-project/lockaudit/lock/actuator"
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
	store, err := device.NewLockStore(ctx, snap)
	if err != nil {
		log.Fatal("load lock store", logger.Error(err))
	}

	roots, err := loadTrustedRoots(cfg.AttestationRootsPath)
	if err != nil {
		log.Warn("loading trusted attestation roots failed; every pairing attempt will be rejected", logger.Error(err))
	}

	ctrl := lock.NewController(lock.Config{
		Store:         store,
		Entities:      cfg.Entities,
		Actuator:      actuator.NewHomeAssistant(os.Getenv("LOCKAUDIT_HA_BASE_URL"), cfg.HAAPIKey),
		TrustedRoots:  roots,
		GracePeriodMs: cfg.TimeGracePeriod,
		RelockDelayMs: cfg.RelockDelay,
		Logger:        log,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/entity", handleListEntities(cfg.Entities))
	mux.HandleFunc("POST /api/pair/get_challenge", handleGetChallenge(ctrl))
	mux.HandleFunc("POST /api/pair/initial/start", handlePairInitialStart(ctrl))
	mux.HandleFunc("POST /api/pair/initial/finish", handlePairInitialFinish(ctrl))
	mux.HandleFunc("GET /api/pair/delegated/{cid}/finish_payload", handlePairDelegatedGetPayload(ctrl))
	mux.HandleFunc("POST /api/pair/delegated/{cid}/finish_payload", handlePairDelegatedUploadPayload(ctrl))
	mux.HandleFunc("POST /api/pair/delegated/{cid}/finish", handlePairDelegatedFinish(ctrl))
	mux.HandleFunc("POST /api/unlock/start", handleUnlockStart(ctrl))
	mux.HandleFunc("POST /api/unlock/{cid}/finish", handleUnlockFinish(ctrl))

	if cfg.Metrics.Enabled {
		go func() {
			log.Info("metrics server starting", logger.String("addr", cfg.Metrics.Addr))
			if err := metrics.StartServer(cfg.Metrics.Addr); err != nil {
				log.Error("metrics server stopped", logger.Error(err))
			}
		}()
	}

	httpSrv := &http.Server{
		Addr:         cmdutil.EnvOr("LOCKAUDIT_LOCK_ADDR", ":8080"),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("lock server listening", logger.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http serve", logger.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("lock server shutting down")
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", logger.Error(err))
	}
}

// loadTrustedRoots reads a PEM bundle of hardware attestation root
// certificates. Roots are supplied by the operator rather than compiled
// in — see lock.VerifyAttestationChain's doc comment for why.
func loadTrustedRoots(path string) ([][]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var roots [][]byte
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		if _, err := x509.ParseCertificate(block.Bytes); err != nil {
			continue
		}
		roots = append(roots, block.Bytes)
	}
	return roots, nil
}

func buildSnapshotStore(cfg *config.Config) (device.SnapshotStore, error) {
	switch cfg.Persistence.Type {
	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.Persistence.DSN)
		if err != nil {
			return nil, err
		}
		store := pgstore.New(pool, cfg.Persistence.TableName, "lock")
		if err := store.EnsureSchema(context.Background()); err != nil {
			return nil, err
		}
		return store, nil
	default:
		path := cfg.Persistence.Path
		if path == "" {
			path = "state_lock.json"
		}
		return fsstore.New(path), nil
	}
}


