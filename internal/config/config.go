// Package config is this binary's configuration surface (spec.md §6):
// database path, network/socket transport, SSL, read-pool sizing, journal
// mode, the --migrate flag, and cache sizes/TTLs. cmd/pgsqlite registers one
// cobraflags.Flag per field and this package turns the resolved values into
// the Options structs package engine, migrations, and wire already expect,
// the same separation the teacher keeps between its cmd layer (flag
// plumbing) and its core/migration packages (the actual behavior).
package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"
)

// Config is the fully-resolved configuration for one pgsqlite server
// instance, independent of how its fields were populated (flags, env vars,
// or a test building one by hand).
type Config struct {
	// DBPath is the SQLite file path, or ":memory:" (spec.md §6).
	DBPath      string
	JournalMode string

	TCPAddr        string
	UnixSocketDir  string
	UnixSocketPort int

	SSLEnabled   bool
	SSLCertFile  string
	SSLKeyFile   string
	SSLCAFile    string
	SSLEphemeral bool

	ReadPoolSize         int
	ReadPoolIdleTimeout  time.Duration
	ReadPoolHealthPeriod time.Duration

	// Migrate, when true, applies pending migrations and exits instead of
	// serving (spec.md §6: "--migrate (run pending migrations and exit)").
	Migrate bool

	PlanCacheCapacity      int
	PlanCacheTTL           time.Duration
	RowDescCacheCapacity   int
	RowDescCacheTTL        time.Duration
	ResultSetCacheCapacity int
	ResultSetCacheTTL      time.Duration
}

// UnixSocketPath returns the full socket path PostgreSQL clients expect,
// ".s.PGSQL.<port>" under the configured directory, or "" when no socket
// directory was configured (spec.md §6: "Unix domain socket at
// <dir>/.s.PGSQL.<port>").
func (c Config) UnixSocketPath() string {
	if c.UnixSocketDir == "" {
		return ""
	}
	return fmt.Sprintf("%s/.s.PGSQL.%d", c.UnixSocketDir, c.UnixSocketPort)
}

// TLSConfig builds the server's *tls.Config, or nil if SSL is disabled. With
// SSLEphemeral it generates a self-signed certificate in place of
// operator-supplied files, for local development and tests (spec.md §6:
// "ephemeral-cert generation").
func (c Config) TLSConfig() (*tls.Config, error) {
	if !c.SSLEnabled {
		return nil, nil
	}

	var cert tls.Certificate
	var err error
	if c.SSLEphemeral {
		cert, err = generateEphemeralCert()
		if err != nil {
			return nil, fmt.Errorf("config: generate ephemeral certificate: %w", err)
		}
	} else {
		cert, err = tls.LoadX509KeyPair(c.SSLCertFile, c.SSLKeyFile)
		if err != nil {
			return nil, fmt.Errorf("config: load TLS key pair: %w", err)
		}
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if c.SSLCAFile != "" {
		caPEM, err := os.ReadFile(c.SSLCAFile)
		if err != nil {
			return nil, fmt.Errorf("config: read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("config: no certificates found in %s", c.SSLCAFile)
		}
		tlsConfig.ClientCAs = pool
		tlsConfig.ClientAuth = tls.VerifyClientCertIfGiven
	}

	return tlsConfig, nil
}
