// Command backendd runs a backend.Application standalone behind
// pkg/httpapi, for the split-process deployment where a remote
// bridge process talks to this one over HTTP instead of hosting the
// backend in the same process as the ABCI socket server. Startup
// sequencing mirrors cmd/bridged.
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

	dbm "github.com/cometbft/cometbft-db"

	"github.com/coreconsensus/bridge/pkg/backend"
	"github.com/coreconsensus/bridge/pkg/config"
	"github.com/coreconsensus/bridge/pkg/cose"
	"github.com/coreconsensus/bridge/pkg/eventindex"
	"github.com/coreconsensus/bridge/pkg/httpapi"
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
		log.Fatalf("[backendd] load config: %v", err)
	}
	if *migrationConfigPath != "" {
		cfg.MigrationConfigPath = *migrationConfigPath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[backendd] invalid config: %v", err)
	}

	identity, err := loadOrGenerateEd25519Key(cfg)
	if err != nil {
		log.Fatalf("[backendd] load identity key: %v", err)
	}
	log.Printf("[backendd] identity address: %s", identity.Identity())

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		log.Fatalf("[backendd] create data dir %s: %v", cfg.DataDir, err)
	}
	db, err := dbm.NewDB("backend", dbm.BackendType(cfg.DBBackend), cfg.DataDir)
	if err != nil {
		log.Fatalf("[backendd] open %s db at %s: %v", cfg.DBBackend, cfg.DataDir, err)
	}
	defer db.Close()

	mode := storage.BlockMode
	if cfg.StorageMode == "immediate" {
		mode = storage.ImmediateMode
	}
	engine, err := storage.Open(db, mode)
	if err != nil {
		log.Fatalf("[backendd] open storage engine: %v", err)
	}

	registry, err := migration.NewRegistry(migration.LegacyErrorCode)
	if err != nil {
		log.Fatalf("[backendd] build migration registry: %v", err)
	}
	migrations := registry.EnableAllRegular()
	if cfg.MigrationConfigPath != "" {
		data, err := os.ReadFile(cfg.MigrationConfigPath)
		if err != nil {
			log.Fatalf("[backendd] read migration config %s: %v", cfg.MigrationConfigPath, err)
		}
		mcfg, err := migration.LoadConfig(data)
		if err != nil {
			log.Fatalf("[backendd] parse migration config: %v", err)
		}
		migrations, err = migration.Load(registry, mcfg)
		if err != nil {
			log.Fatalf("[backendd] load migration config: %v", err)
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
			log.Fatalf("[backendd] connect event index: %v", err)
		}
		defer indexClient.Close()
		if err := indexClient.MigrateUp(context.Background()); err != nil {
			log.Fatalf("[backendd] migrate event index: %v", err)
		}
		app.SetEventSink(indexClient)
		log.Println("[backendd] event index connected and migrated")
	} else {
		log.Println("[backendd] event index disabled, list queries will scan the engine directly")
	}

	handlers := httpapi.NewHandlers(app)
	apiServer := &http.Server{Addr: cfg.HTTPAddr, Handler: handlers.Mux()}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", reg.Handler())
	metricsMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	go func() {
		log.Printf("[backendd] backend API listening on %s", cfg.HTTPAddr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[backendd] backend API server: %v", err)
		}
	}()
	go func() {
		log.Printf("[backendd] metrics/health endpoint listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[backendd] metrics server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[backendd] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[backendd] backend API shutdown: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[backendd] metrics server shutdown: %v", err)
	}
	log.Println("[backendd] stopped")
}

// loadOrGenerateEd25519Key mirrors cmd/bridged's key bootstrap so a
// standalone backend has the same identity-handling behavior whether it
// runs co-located with the bridge or split out behind pkg/httpapi.
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
		log.Printf("[backendd] generated new identity key at %s", keyPath)
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
