package wire

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/pgsqlite/pgsqlite/internal/executor"
	"github.com/pgsqlite/pgsqlite/internal/pgerror"
	"github.com/pgsqlite/pgsqlite/internal/session"
)

const serverVersion = "15.0 (pgsqlite)"

// conn is one client connection: a backend protocol codec plus the session
// state it drives. Every conn runs on its own goroutine and never shares its
// session with another connection, so no locking is needed here beyond what
// the shared Executor/Engine already provide.
type conn struct {
	netConn  net.Conn
	backend  *pgproto3.Backend
	tlsConfig *tls.Config

	exec   *executor.Executor
	logger *slog.Logger

	sess *session.Session

	user     string
	database string

	// pendingErr is set mid-extended-query-message-sequence so Sync can
	// report it once and reset, per the wire protocol's rule that the
	// backend keeps consuming messages until Sync after an error (spec.md
	// §4.2: "errors mid-batch keep consuming until Sync, then report").
	pendingErr *pgerror.Error
}

func newConn(netConn net.Conn, exec *executor.Executor, tlsConfig *tls.Config, logger *slog.Logger) *conn {
	return &conn{
		netConn:   netConn,
		backend:   pgproto3.NewBackend(netConn, netConn),
		tlsConfig: tlsConfig,
		exec:      exec,
		logger:    logger,
		sess:      session.New(),
	}
}

// run drives one connection end to end: startup, then the request loop,
// until the client disconnects or sends Terminate.
func (c *conn) run(ctx context.Context) {
	defer c.netConn.Close()

	if err := c.handshake(ctx); err != nil {
		if !errors.Is(err, io.EOF) {
			c.logger.Warn("wire: handshake failed", "remote", c.netConn.RemoteAddr(), "err", err)
		}
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.handleOne(ctx); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, errTerminate) {
				return
			}
			c.logger.Warn("wire: connection error", "remote", c.netConn.RemoteAddr(), "err", err)
			return
		}
	}
}

var errTerminate = errors.New("wire: client terminated")

// handshake negotiates SSL (always refused unless tlsConfig is set, per
// spec.md §6's optional TLS surface) and the startup message, then responds
// AuthenticationOk (trust authentication only, per spec.md's Non-goals) plus
// the ParameterStatus set real libpq-based drivers expect before they will
// proceed, followed by BackendKeyData and the first ReadyForQuery.
func (c *conn) handshake(ctx context.Context) error {
	startupMsg, err := c.backend.ReceiveStartupMessage()
	if err != nil {
		return fmt.Errorf("wire: receive startup message: %w", err)
	}

	switch msg := startupMsg.(type) {
	case *pgproto3.SSLRequest:
		if c.tlsConfig != nil {
			if _, err := c.netConn.Write([]byte{'S'}); err != nil {
				return err
			}
			tlsConn := tls.Server(c.netConn, c.tlsConfig)
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				return fmt.Errorf("wire: TLS handshake: %w", err)
			}
			c.netConn = tlsConn
			c.backend = pgproto3.NewBackend(tlsConn, tlsConn)
		} else {
			if _, err := c.netConn.Write([]byte{'N'}); err != nil {
				return err
			}
		}
		return c.handshake(ctx)

	case *pgproto3.GSSEncRequest:
		if _, err := c.netConn.Write([]byte{'N'}); err != nil {
			return err
		}
		return c.handshake(ctx)

	case *pgproto3.CancelRequest:
		// Cancellation arrives on its own short-lived connection with no
		// further messages; nothing to do without a registry of in-flight
		// queries keyed by BackendKeyData, which this system does not keep
		// (spec.md lists query cancellation under Non-goals).
		return io.EOF

	case *pgproto3.StartupMessage:
		return c.completeStartup(msg)

	default:
		return fmt.Errorf("wire: unexpected startup message %T", msg)
	}
}

func (c *conn) completeStartup(msg *pgproto3.StartupMessage) error {
	c.user = msg.Parameters["user"]
	c.database = msg.Parameters["database"]

	clientEncoding, nonUTF8 := negotiateClientEncoding(msg.Parameters["client_encoding"])
	if nonUTF8 {
		c.logger.Warn("wire: client requested non-UTF8 encoding, serving UTF8 anyway",
			"remote", c.netConn.RemoteAddr(), "requested", msg.Parameters["client_encoding"])
	}

	buf := (&pgproto3.AuthenticationOk{}).Encode(nil)
	buf = (&pgproto3.ParameterStatus{Name: "server_version", Value: serverVersion}).Encode(buf)
	buf = (&pgproto3.ParameterStatus{Name: "server_encoding", Value: "UTF8"}).Encode(buf)
	buf = (&pgproto3.ParameterStatus{Name: "client_encoding", Value: clientEncoding}).Encode(buf)
	buf = (&pgproto3.ParameterStatus{Name: "DateStyle", Value: "ISO, MDY"}).Encode(buf)
	buf = (&pgproto3.ParameterStatus{Name: "TimeZone", Value: "UTC"}).Encode(buf)
	buf = (&pgproto3.ParameterStatus{Name: "integer_datetimes", Value: "on"}).Encode(buf)
	buf = (&pgproto3.ParameterStatus{Name: "standard_conforming_strings", Value: "on"}).Encode(buf)
	buf = (&pgproto3.BackendKeyData{ProcessID: uint32(time.Now().UnixNano()), SecretKey: 0}).Encode(buf)
	buf = (&pgproto3.ReadyForQuery{TxStatus: byte(c.sess.TxState)}).Encode(buf)

	_, err := c.netConn.Write(buf)
	return err
}
