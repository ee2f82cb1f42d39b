package config

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestUnixSocketPath(t *testing.T) {
	c := qt.New(t)

	c.Assert(Config{}.UnixSocketPath(), qt.Equals, "")
	c.Assert(Config{UnixSocketDir: "/tmp/pg", UnixSocketPort: 5432}.UnixSocketPath(), qt.Equals, "/tmp/pg/.s.PGSQL.5432")
}

func TestTLSConfigDisabled(t *testing.T) {
	c := qt.New(t)

	tlsCfg, err := Config{SSLEnabled: false}.TLSConfig()
	c.Assert(err, qt.IsNil)
	c.Assert(tlsCfg, qt.IsNil)
}

func TestTLSConfigEphemeral(t *testing.T) {
	c := qt.New(t)

	tlsCfg, err := Config{SSLEnabled: true, SSLEphemeral: true}.TLSConfig()
	c.Assert(err, qt.IsNil)
	c.Assert(tlsCfg, qt.Not(qt.IsNil))
	c.Assert(tlsCfg.Certificates, qt.HasLen, 1)
}
