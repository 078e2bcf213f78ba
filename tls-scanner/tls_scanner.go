package tls_scanner

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"github.com/jayjOnly/VA-Validator/toolerr"
	"github.com/sirupsen/logrus"
	"net"
	"strconv"
	"time"
)

const (
	DefaultPort    = 443
	DefaultTimeout = 15 * time.Second
)

// meta holds the identity shared by every TLS check.
type meta struct {
	id, name, desc string
	timeout        time.Duration
}

func (m meta) ID() string          { return m.id }
func (m meta) Name() string        { return m.name }
func (m meta) Description() string { return m.desc }

// Timeout returns the probe timeout.
func (m meta) Timeout() time.Duration {
	if m.timeout <= 0 {
		return DefaultTimeout
	}
	return m.timeout
}

// handshakeError is returned when TCP succeeded but the TLS handshake did
// not, meaning the server refused what was offered.
type handshakeError struct {
	err error
}

func (e *handshakeError) Error() string { return "handshake rejected: " + e.err.Error() }
func (e *handshakeError) Unwrap() error { return e.err }

func isRejected(err error) bool {
	var he *handshakeError
	return errors.As(err, &he)
}

// address returns the dial address, using 443 when the finding has no port.
func address(host string, port int) string {
	if port <= 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// serverName returns the SNI value for host, empty for IP literals.
func serverName(host string) string {
	if net.ParseIP(host) != nil {
		return ""
	}
	return host
}

// handshake connects to host:port and completes a TLS handshake using cfg.
func handshake(ctx context.Context, check, host string, port int, cfg *tls.Config) (tls.ConnectionState, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address(host, port))
	if err != nil {
		return tls.ConnectionState{}, toolerr.FromNetwork(check, "dial", err)
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	tc := tls.Client(conn, cfg)
	if err := tc.HandshakeContext(ctx); err != nil {
		if ctx.Err() != nil {
			return tls.ConnectionState{}, toolerr.FromNetwork(check, "handshake", ctx.Err())
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return tls.ConnectionState{}, toolerr.FromNetwork(check, "handshake", err)
		}
		logrus.Debugf("%s: handshake with %s failed: %v", check, address(host, port), err)
		return tls.ConnectionState{}, &handshakeError{err: err}
	}

	return tc.ConnectionState(), nil
}

// peerCertificates returns the chain presented by the server, leaf first.
func peerCertificates(ctx context.Context, check, host string, port int) ([]*x509.Certificate, error) {
	state, err := handshake(ctx, check, host, port, &tls.Config{
		InsecureSkipVerify: true,
		ServerName:         serverName(host),
		MinVersion:         tls.VersionTLS10,
	})
	if err != nil {
		if isRejected(err) {
			return nil, toolerr.New(check, "handshake", toolerr.CodeNetworkError, "no TLS service").WithCause(err)
		}
		return nil, err
	}

	if len(state.PeerCertificates) == 0 {
		return nil, toolerr.New(check, "handshake", toolerr.CodeParseError, "server presented no certificate")
	}
	return state.PeerCertificates, nil
}

// allSuites returns every cipher suite id crypto/tls implements.
func allSuites() []uint16 {
	var ids []uint16
	for _, s := range tls.CipherSuites() {
		ids = append(ids, s.ID)
	}
	for _, s := range tls.InsecureCipherSuites() {
		ids = append(ids, s.ID)
	}
	return ids
}

func subjectName(c *x509.Certificate) string {
	if c.Subject.CommonName != "" {
		return c.Subject.CommonName
	}
	return c.Subject.String()
}

func issuerName(c *x509.Certificate) string {
	if c.Issuer.CommonName != "" {
		return c.Issuer.CommonName
	}
	return c.Issuer.String()
}

func days(d time.Duration) int {
	return int(d.Hours() / 24)
}

func formatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
