package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/pgsqlite/pgsqlite/internal/catalog"
	"github.com/pgsqlite/pgsqlite/internal/catalogemu"
	"github.com/pgsqlite/pgsqlite/internal/config"
	"github.com/pgsqlite/pgsqlite/internal/constraints"
	"github.com/pgsqlite/pgsqlite/internal/engine"
	"github.com/pgsqlite/pgsqlite/internal/executor"
	"github.com/pgsqlite/pgsqlite/internal/migrations"
	"github.com/pgsqlite/pgsqlite/internal/schemacache"
	"github.com/pgsqlite/pgsqlite/internal/translator"
	"github.com/pgsqlite/pgsqlite/internal/wire"
)

// Flag names for the server's configuration surface (spec.md §6).
const (
	flagDBPath         = "db-path"
	flagJournalMode    = "journal-mode"
	flagTCPAddr        = "listen"
	flagUnixSocketDir  = "socket-dir"
	flagUnixSocketPort = "socket-port"
	flagSSL            = "ssl"
	flagSSLCert        = "ssl-cert"
	flagSSLKey         = "ssl-key"
	flagSSLCA          = "ssl-ca"
	flagSSLEphemeral   = "ssl-ephemeral"
	flagReadPoolSize   = "read-pool-size"
	flagReadPoolIdle   = "read-pool-idle-timeout"
	flagReadPoolHealth = "read-pool-health-interval"
	flagMigrate        = "migrate"
	flagPlanCacheCap   = "plan-cache-capacity"
	flagPlanCacheTTL   = "plan-cache-ttl"
	flagRowDescCap     = "rowdesc-cache-capacity"
	flagRowDescTTL     = "rowdesc-cache-ttl"
	flagResultCap      = "resultset-cache-capacity"
	flagResultTTL      = "resultset-cache-ttl"
)

var serveFlags = map[string]cobraflags.Flag{
	flagDBPath: &cobraflags.StringFlag{
		Name: flagDBPath, Value: "pgsqlite.db",
		Usage: "SQLite database file path, or :memory:",
	},
	flagJournalMode: &cobraflags.StringFlag{
		Name: flagJournalMode, Value: "WAL",
		Usage: "SQLite PRAGMA journal_mode",
	},
	flagTCPAddr: &cobraflags.StringFlag{
		Name: flagTCPAddr, Value: "127.0.0.1:5432",
		Usage: "TCP address to listen on for PostgreSQL clients",
	},
	flagUnixSocketDir: &cobraflags.StringFlag{
		Name: flagUnixSocketDir, Value: "",
		Usage: "Directory to create a Unix domain socket in (disabled when empty)",
	},
	flagUnixSocketPort: &cobraflags.StringFlag{
		Name: flagUnixSocketPort, Value: "5432",
		Usage: "Port number embedded in the Unix socket's .s.PGSQL.<port> name",
	},
	flagSSL: &cobraflags.StringFlag{
		Name: flagSSL, Value: "false",
		Usage: "Accept TLS connections via SSLRequest negotiation",
	},
	flagSSLCert: &cobraflags.StringFlag{
		Name: flagSSLCert, Value: "",
		Usage: "TLS certificate file (ignored when --ssl-ephemeral is set)",
	},
	flagSSLKey: &cobraflags.StringFlag{
		Name: flagSSLKey, Value: "",
		Usage: "TLS private key file (ignored when --ssl-ephemeral is set)",
	},
	flagSSLCA: &cobraflags.StringFlag{
		Name: flagSSLCA, Value: "",
		Usage: "TLS CA bundle file, for client certificate verification",
	},
	flagSSLEphemeral: &cobraflags.StringFlag{
		Name: flagSSLEphemeral, Value: "false",
		Usage: "Generate a throwaway self-signed certificate instead of loading files",
	},
	flagReadPoolSize: &cobraflags.StringFlag{
		Name: flagReadPoolSize, Value: "0",
		Usage: "Number of concurrent read-only engine leases (0 disables the pool)",
	},
	flagReadPoolIdle: &cobraflags.StringFlag{
		Name: flagReadPoolIdle, Value: "5m",
		Usage: "Idle timeout for a pooled read-only lease",
	},
	flagReadPoolHealth: &cobraflags.StringFlag{
		Name: flagReadPoolHealth, Value: "30s",
		Usage: "Health-check interval for pooled read-only leases",
	},
	flagMigrate: &cobraflags.StringFlag{
		Name: flagMigrate, Value: "false",
		Usage: "Apply pending migrations and exit instead of serving",
	},
	flagPlanCacheCap: &cobraflags.StringFlag{
		Name: flagPlanCacheCap, Value: "1000",
		Usage: "Translated-plan cache capacity",
	},
	flagPlanCacheTTL: &cobraflags.StringFlag{
		Name: flagPlanCacheTTL, Value: "10m",
		Usage: "Translated-plan cache entry TTL",
	},
	flagRowDescCap: &cobraflags.StringFlag{
		Name: flagRowDescCap, Value: "1000",
		Usage: "RowDescription cache capacity",
	},
	flagRowDescTTL: &cobraflags.StringFlag{
		Name: flagRowDescTTL, Value: "10m",
		Usage: "RowDescription cache entry TTL",
	},
	flagResultCap: &cobraflags.StringFlag{
		Name: flagResultCap, Value: "200",
		Usage: "Result-set cache capacity",
	},
	flagResultTTL: &cobraflags.StringFlag{
		Name: flagResultTTL, Value: "1m",
		Usage: "Result-set cache entry TTL",
	},
}

func registerServeFlags(cmd *cobra.Command) {
	cobraflags.RegisterMap(cmd, serveFlags)
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the PostgreSQL wire protocol server",
		RunE:  runServe,
	}
	registerServeFlags(cmd)
	return cmd
}

func loadConfig() (config.Config, error) {
	sslEnabled, err := parseBoolFlag(flagSSL)
	if err != nil {
		return config.Config{}, err
	}
	sslEphemeral, err := parseBoolFlag(flagSSLEphemeral)
	if err != nil {
		return config.Config{}, err
	}
	migrate, err := parseBoolFlag(flagMigrate)
	if err != nil {
		return config.Config{}, err
	}

	readPoolSize, err := parseIntFlag(flagReadPoolSize)
	if err != nil {
		return config.Config{}, err
	}
	socketPort, err := parseIntFlag(flagUnixSocketPort)
	if err != nil {
		return config.Config{}, err
	}
	planCap, err := parseIntFlag(flagPlanCacheCap)
	if err != nil {
		return config.Config{}, err
	}
	rowDescCap, err := parseIntFlag(flagRowDescCap)
	if err != nil {
		return config.Config{}, err
	}
	resultCap, err := parseIntFlag(flagResultCap)
	if err != nil {
		return config.Config{}, err
	}

	readPoolIdle, err := parseDurationFlag(flagReadPoolIdle)
	if err != nil {
		return config.Config{}, err
	}
	readPoolHealth, err := parseDurationFlag(flagReadPoolHealth)
	if err != nil {
		return config.Config{}, err
	}
	planTTL, err := parseDurationFlag(flagPlanCacheTTL)
	if err != nil {
		return config.Config{}, err
	}
	rowDescTTL, err := parseDurationFlag(flagRowDescTTL)
	if err != nil {
		return config.Config{}, err
	}
	resultTTL, err := parseDurationFlag(flagResultTTL)
	if err != nil {
		return config.Config{}, err
	}

	return config.Config{
		DBPath:                 serveFlags[flagDBPath].GetString(),
		JournalMode:            serveFlags[flagJournalMode].GetString(),
		TCPAddr:                serveFlags[flagTCPAddr].GetString(),
		UnixSocketDir:          serveFlags[flagUnixSocketDir].GetString(),
		UnixSocketPort:         socketPort,
		SSLEnabled:             sslEnabled,
		SSLCertFile:            serveFlags[flagSSLCert].GetString(),
		SSLKeyFile:             serveFlags[flagSSLKey].GetString(),
		SSLCAFile:              serveFlags[flagSSLCA].GetString(),
		SSLEphemeral:           sslEphemeral,
		ReadPoolSize:           readPoolSize,
		ReadPoolIdleTimeout:    readPoolIdle,
		ReadPoolHealthPeriod:   readPoolHealth,
		Migrate:                migrate,
		PlanCacheCapacity:      planCap,
		PlanCacheTTL:           planTTL,
		RowDescCacheCapacity:   rowDescCap,
		RowDescCacheTTL:        rowDescTTL,
		ResultSetCacheCapacity: resultCap,
		ResultSetCacheTTL:      resultTTL,
	}, nil
}

func parseBoolFlag(name string) (bool, error) {
	b, err := strconv.ParseBool(serveFlags[name].GetString())
	if err != nil {
		return false, fmt.Errorf("--%s: invalid boolean %q: %w", name, serveFlags[name].GetString(), err)
	}
	return b, nil
}

func parseIntFlag(name string) (int, error) {
	n, err := strconv.Atoi(serveFlags[name].GetString())
	if err != nil {
		return 0, fmt.Errorf("--%s: invalid integer %q: %w", name, serveFlags[name].GetString(), err)
	}
	return n, nil
}

func parseDurationFlag(name string) (time.Duration, error) {
	d, err := time.ParseDuration(serveFlags[name].GetString())
	if err != nil {
		return 0, fmt.Errorf("--%s: invalid duration %q: %w", name, serveFlags[name].GetString(), err)
	}
	return d, nil
}

// runServe wires every collaborator together: open the engine, run pending
// migrations (or stop there if --migrate was given), build the Metadata
// Catalog, Schema Cache, Translation Pipeline, Constraint Validator, pg_catalog
// Emulation Layer and Query Executor, then hand the Executor to the wire
// Server and serve until interrupted. This mirrors the teacher's
// cmd/generate.schemaCommand shape: parse flags, build collaborators in
// dependency order, run, report.
func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := engine.Open(engine.Options{
		Path:         cfg.DBPath,
		JournalMode:  cfg.JournalMode,
		ReadPoolSize: cfg.ReadPoolSize,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("pgsqlite: open database: %w", err)
	}
	defer db.Close()

	cat := catalog.New(db)

	runner := migrations.NewRunner(db).WithLogger(logger)
	inMemory := cfg.DBPath == ":memory:"
	if err := runner.Open(cmd.Context(), cfg.Migrate, inMemory, cat.HasUserTables); err != nil {
		return fmt.Errorf("pgsqlite: migrations: %w", err)
	}
	if cfg.Migrate {
		logger.Info("pgsqlite: migrations applied, exiting as requested")
		return nil
	}

	cache := schemacache.New(cat)
	if err := cache.EnsureLoaded(cmd.Context()); err != nil {
		return fmt.Errorf("pgsqlite: load schema cache: %w", err)
	}

	pipeline := translator.New(cache, translator.NewCatalogRecorder(cat))
	validator := constraints.New(cache)
	catEmu := catalogemu.New(cat, cache)

	plans := executor.NewCacheManager(executor.CacheConfig{
		PlanCapacity:      cfg.PlanCacheCapacity,
		PlanTTL:           cfg.PlanCacheTTL,
		RowDescCapacity:   cfg.RowDescCacheCapacity,
		RowDescTTL:        cfg.RowDescCacheTTL,
		ResultSetCapacity: cfg.ResultSetCacheCapacity,
		ResultSetTTL:      cfg.ResultSetCacheTTL,
	})

	exec := executor.New(db, cache, cat, catEmu, pipeline, validator, plans)

	tlsConfig, err := cfg.TLSConfig()
	if err != nil {
		return fmt.Errorf("pgsqlite: %w", err)
	}

	server := wire.New(cfg.TCPAddr, cfg.UnixSocketPath(), tlsConfig, exec, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("pgsqlite: starting", "db", cfg.DBPath, "listen", cfg.TCPAddr)
	if err := server.ListenAndServe(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("pgsqlite: serve: %w", err)
	}
	return nil
}
