// Package wire is the PostgreSQL Wire Protocol Frontend (spec.md §4.2, C2):
// the only code in this repository that speaks bytes to a client driver. It
// terminates startup negotiation, the simple query protocol, and the
// extended query protocol (Parse/Bind/Describe/Execute/Sync/Close/Flush)
// using jackc/pgx's pgproto3 encoder/decoder, and translates every outcome
// of package executor into the matching backend messages.
//
// Server's shape — a struct owning a net.Listener plus the shared
// collaborators every connection needs, with one goroutine per accepted
// connection — follows the teacher's migration.Runner in spirit (a small
// coordinator holding what it needs, doing the orchestration itself) scaled
// up to concurrent connections with golang.org/x/sync/errgroup, the same
// module the teacher's dependency set already commits this project to using
// for the Read Pool's semaphore sibling.
package wire

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pgsqlite/pgsqlite/internal/executor"
)

// Server accepts PostgreSQL wire protocol connections and dispatches each to
// its own goroutine, sharing one Executor across every connection the way
// spec.md §4.1 requires all statements to funnel through the single Storage
// Engine Adapter.
type Server struct {
	opts   serverOptions
	exec   *executor.Executor
	logger *slog.Logger

	mu        sync.Mutex
	listeners []net.Listener
}

type serverOptions struct {
	TCPAddr        string
	UnixSocketPath string
	TLSConfig      *tls.Config
}

// New builds a Server around the shared Query Executor every connection's
// statements run against.
func New(tcpAddr, unixSocketPath string, tlsConfig *tls.Config, exec *executor.Executor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		opts: serverOptions{
			TCPAddr:        tcpAddr,
			UnixSocketPath: unixSocketPath,
			TLSConfig:      tlsConfig,
		},
		exec:   exec,
		logger: logger,
	}
}

// ListenAndServe opens every configured listener and serves connections
// until ctx is cancelled or a listener fails irrecoverably, per spec.md §6:
// "listens concurrently on TCP and, optionally, a Unix domain socket".
func (s *Server) ListenAndServe(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if s.opts.TCPAddr != "" {
		ln, err := net.Listen("tcp", s.opts.TCPAddr)
		if err != nil {
			return fmt.Errorf("wire: listen tcp %s: %w", s.opts.TCPAddr, err)
		}
		s.trackListener(ln)
		s.logger.Info("wire: listening", "network", "tcp", "addr", ln.Addr().String())
		g.Go(func() error { return s.serve(ctx, ln) })
	}

	if s.opts.UnixSocketPath != "" {
		ln, err := net.Listen("unix", s.opts.UnixSocketPath)
		if err != nil {
			return fmt.Errorf("wire: listen unix %s: %w", s.opts.UnixSocketPath, err)
		}
		s.trackListener(ln)
		s.logger.Info("wire: listening", "network", "unix", "addr", s.opts.UnixSocketPath)
		g.Go(func() error { return s.serve(ctx, ln) })
	}

	g.Go(func() error {
		<-ctx.Done()
		s.closeListeners()
		return ctx.Err()
	})

	return g.Wait()
}

func (s *Server) trackListener(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, ln)
}

func (s *Server) closeListeners() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ln := range s.listeners {
		ln.Close()
	}
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	for {
		netConn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("wire: accept on %s: %w", ln.Addr(), err)
			}
		}

		conn := newConn(netConn, s.exec, s.opts.TLSConfig, s.logger)
		go conn.run(ctx)
	}
}
