// Command bridged runs the ABCI bridge and the backend application in one
// process: cometbft dials the bridge over an ABCI socket, the bridge
// forwards raw envelope bytes to an in-process backend.Application. Startup
// sequencing (config, key material, storage, HTTP/health/metrics servers,
// signal-driven shutdown) is modeled on the validator's main.go.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	abciserver "github.com/cometbft/cometbft/abci/server"
	dbm "github.com/cometbft/cometbft-db"
	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/coreconsensus/bridge/pkg/abci"
	"github.com/coreconsensus/bridge/pkg/backend"
	"github.com/coreconsensus/bridge/pkg/config"
	"github.com/coreconsensus/bridge/pkg/cose"
	"github.com/coreconsensus/bridge/pkg/eventindex"
	"github.com/coreconsensus/bridge/pkg/metrics"
	"github.com/coreconsensus/bridge/pkg/migration"
	"github.com/coreconsensus/bridge/pkg/storage"
	"github.com/coreconsensus/bridge/pkg/validator"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	migrationConfigPath := flag.String("migration-config", "", "path to the migration_config YAML document (overrides MIGRATION_CONFIG_PATH)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[bridged] load config: %v", err)
	}
	if *migrationConfigPath != "" {
		cfg.MigrationConfigPath = *migrationConfigPath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[bridged] invalid config: %v", err)
	}

	identity, err := loadOrGenerateEd25519Key(cfg)
	if err != nil {
		log.Fatalf("[bridged] load identity key: %v", err)
	}
	log.Printf("[bridged] identity address: %s", identity.Identity())

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		log.Fatalf("[bridged] create data dir %s: %v", cfg.DataDir, err)
	}
	db, err := dbm.NewDB("bridge", dbm.BackendType(cfg.DBBackend), cfg.DataDir)
	if err != nil {
		log.Fatalf("[bridged] open %s db at %s: %v", cfg.DBBackend, cfg.DataDir, err)
	}
	defer db.Close()

	mode := storage.BlockMode
	if cfg.StorageMode == "immediate" {
		mode = storage.ImmediateMode
	}
	engine, err := storage.Open(db, mode)
	if err != nil {
		log.Fatalf("[bridged] open storage engine: %v", err)
	}

	registry, err := migration.NewRegistry(migration.LegacyErrorCode)
	if err != nil {
		log.Fatalf("[bridged] build migration registry: %v", err)
	}
	migrations := registry.EnableAllRegular()
	if cfg.MigrationConfigPath != "" {
		data, err := os.ReadFile(cfg.MigrationConfigPath)
		if err != nil {
			log.Fatalf("[bridged] read migration config %s: %v", cfg.MigrationConfigPath, err)
		}
		mcfg, err := migration.LoadConfig(data)
		if err != nil {
			log.Fatalf("[bridged] parse migration config: %v", err)
		}
		migrations, err = migration.Load(registry, mcfg)
		if err != nil {
			log.Fatalf("[bridged] load migration config: %v", err)
		}
	}

	cache := validator.NewCache(cfg.ValidatorCacheTTL, cfg.ValidatorCacheSkew)

	app := backend.NewApplication(engine, migrations, cache, identity)

	reg := metrics.New()
	app.SetMetrics(reg)

	var indexClient *eventindex.Client
	if cfg.EventIndexEnabled {
		indexClient, err = eventindex.Open(cfg.EventIndexDSN)
		if err != nil {
			log.Fatalf("[bridged] connect event index: %v", err)
		}
		defer indexClient.Close()
		if err := indexClient.MigrateUp(context.Background()); err != nil {
			log.Fatalf("[bridged] migrate event index: %v", err)
		}
		app.SetEventSink(indexClient)
		log.Println("[bridged] event index connected and migrated")
	} else {
		log.Println("[bridged] event index disabled, list queries will scan the engine directly")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	healthServer := &http.Server{Addr: cfg.HealthAddr, Handler: mux}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", reg.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	go func() {
		log.Printf("[bridged] health endpoint listening on %s", cfg.HealthAddr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[bridged] health server: %v", err)
		}
	}()
	go func() {
		log.Printf("[bridged] metrics endpoint listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[bridged] metrics server: %v", err)
		}
	}()

	bridge := abci.NewBridge(app)
	srv := abciserver.NewSocketServer(cfg.ListenAddr, bridge)
	srv.SetLogger(cmtlog.NewTMLogger(log.Writer()))
	if err := srv.Start(); err != nil {
		log.Fatalf("[bridged] start ABCI server on %s: %v", cfg.ListenAddr, err)
	}
	log.Printf("[bridged] ABCI server listening on %s", cfg.ListenAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[bridged] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[bridged] health server shutdown: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[bridged] metrics server shutdown: %v", err)
	}
	if err := srv.Stop(); err != nil {
		log.Printf("[bridged] ABCI server stop: %v", err)
	}
	log.Println("[bridged] stopped")
}

// loadOrGenerateEd25519Key loads the bridge's signing identity from
// cfg.Ed25519KeyPath (default DataDir/ed25519_key.hex), generating and
// persisting a new key on first run. Mirrors the validator's
// loadOrGenerateEd25519Key: never derive keys from a configured name.
func loadOrGenerateEd25519Key(cfg *config.Config) (*cose.Ed25519KeyPair, error) {
	keyPath := cfg.Ed25519KeyPath
	if keyPath == "" {
		keyPath = filepath.Join(cfg.DataDir, "ed25519_key.hex")
	}
	if err := os.MkdirAll(filepath.Dir(keyPath), 0700); err != nil {
		return nil, fmt.Errorf("create key directory %s: %w", filepath.Dir(keyPath), err)
	}

	var priv ed25519.PrivateKey
	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		_, priv, err = ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate ed25519 key: %w", err)
		}
		if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(priv)), 0600); err != nil {
			return nil, fmt.Errorf("save ed25519 key to %s: %w", keyPath, err)
		}
		log.Printf("[bridged] generated new identity key at %s", keyPath)
	} else {
		data, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("read ed25519 key from %s: %w", keyPath, err)
		}
		raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("decode ed25519 key from %s: %w", keyPath, err)
		}
		if len(raw) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("invalid ed25519 key size: expected %d, got %d", ed25519.PrivateKeySize, len(raw))
		}
		priv = ed25519.PrivateKey(raw)
	}

	return cose.NewEd25519KeyPair(priv), nil
}
