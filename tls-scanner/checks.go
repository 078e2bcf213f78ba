package tls_scanner

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"github.com/jayjOnly/VA-Validator/plugin"
	"strings"
	"time"
)

const (
	ExpiryID     = "15901"
	Sweet32ID    = "42873"
	WrongHostID  = "45411"
	UntrustedID  = "51192"
	SelfSignedID = "57582"
	TLS10ID      = "104743"

	DefaultExpiryWindow = 30 * 24 * time.Hour
)

// ExpiryCheck flags certificates that expired or expire within Window.
type ExpiryCheck struct {
	meta
	Window time.Duration
	now    func() time.Time
}

// NewExpiryCheck initializes a new *ExpiryCheck.
func NewExpiryCheck(window time.Duration) *ExpiryCheck {
	if window <= 0 {
		window = DefaultExpiryWindow
	}
	return &ExpiryCheck{
		meta: meta{
			id:   ExpiryID,
			name: "SSL Certificate Expiry",
			desc: "Checks whether the server certificate has expired or expires soon",
		},
		Window: window,
		now:    time.Now,
	}
}

// Validate executes the check on the target.
func (c *ExpiryCheck) Validate(ctx context.Context, host string, port int) (plugin.Verdict, error) {
	certs, err := peerCertificates(ctx, c.id, host, port)
	if err != nil {
		return plugin.Verdict{}, err
	}
	return expiryVerdict(certs[0], c.now(), c.Window), nil
}

func expiryVerdict(leaf *x509.Certificate, now time.Time, window time.Duration) plugin.Verdict {
	left := leaf.NotAfter.Sub(now)
	switch {
	case left < 0:
		return plugin.Confirmed("certificate %q expired on %s (%d days ago)", subjectName(leaf), formatDate(leaf.NotAfter), days(-left))
	case left <= window:
		return plugin.Confirmed("certificate %q expires on %s (in %d days)", subjectName(leaf), formatDate(leaf.NotAfter), days(left))
	default:
		return plugin.NotReproducible("certificate %q valid until %s (%d days left)", subjectName(leaf), formatDate(leaf.NotAfter), days(left))
	}
}

// SelfSignedCheck flags leaf certificates signed by their own key.
type SelfSignedCheck struct {
	meta
}

func NewSelfSignedCheck() *SelfSignedCheck {
	return &SelfSignedCheck{meta: meta{
		id:   SelfSignedID,
		name: "SSL Self-Signed Certificate",
		desc: "Checks whether the server presents a self-signed certificate",
	}}
}

// Validate executes the check on the target.
func (c *SelfSignedCheck) Validate(ctx context.Context, host string, port int) (plugin.Verdict, error) {
	certs, err := peerCertificates(ctx, c.id, host, port)
	if err != nil {
		return plugin.Verdict{}, err
	}

	leaf := certs[0]
	if selfSigned(leaf) {
		return plugin.Confirmed("certificate %q is self-signed", subjectName(leaf)), nil
	}
	return plugin.NotReproducible("certificate %q issued by %q", subjectName(leaf), issuerName(leaf)), nil
}

func selfSigned(c *x509.Certificate) bool {
	if !bytes.Equal(c.RawIssuer, c.RawSubject) {
		return false
	}
	return c.CheckSignature(c.SignatureAlgorithm, c.RawTBSCertificate, c.Signature) == nil
}

// UntrustedCheck flags chains that do not verify against Roots.
type UntrustedCheck struct {
	meta
	Roots *x509.CertPool // nil uses the system pool.
}

func NewUntrustedCheck(roots *x509.CertPool) *UntrustedCheck {
	return &UntrustedCheck{
		meta: meta{
			id:   UntrustedID,
			name: "SSL Certificate Cannot Be Trusted",
			desc: "Checks whether the server certificate chain verifies against trusted roots",
		},
		Roots: roots,
	}
}

// Validate executes the check on the target.
func (c *UntrustedCheck) Validate(ctx context.Context, host string, port int) (plugin.Verdict, error) {
	certs, err := peerCertificates(ctx, c.id, host, port)
	if err != nil {
		return plugin.Verdict{}, err
	}

	intermediates := x509.NewCertPool()
	for _, ic := range certs[1:] {
		intermediates.AddCert(ic)
	}

	_, err = certs[0].Verify(x509.VerifyOptions{
		Roots:         c.Roots,
		Intermediates: intermediates,
	})
	if err != nil {
		return plugin.Confirmed("certificate chain for %q cannot be trusted: %v", subjectName(certs[0]), err), nil
	}
	return plugin.NotReproducible("certificate chain for %q verifies", subjectName(certs[0])), nil
}

// WrongHostCheck flags certificates not valid for the scanned host.
type WrongHostCheck struct {
	meta
}

func NewWrongHostCheck() *WrongHostCheck {
	return &WrongHostCheck{meta: meta{
		id:   WrongHostID,
		name: "SSL Certificate with Wrong Hostname",
		desc: "Checks whether the server certificate matches the scanned host",
	}}
}

// Validate executes the check on the target.
func (c *WrongHostCheck) Validate(ctx context.Context, host string, port int) (plugin.Verdict, error) {
	certs, err := peerCertificates(ctx, c.id, host, port)
	if err != nil {
		return plugin.Verdict{}, err
	}

	leaf := certs[0]
	if err := leaf.VerifyHostname(host); err != nil {
		names := append([]string{}, leaf.DNSNames...)
		for _, ip := range leaf.IPAddresses {
			names = append(names, ip.String())
		}
		return plugin.Confirmed("certificate not valid for %s (covers: %s)", host, strings.Join(names, ", ")), nil
	}
	return plugin.NotReproducible("certificate valid for %s", host), nil
}

// TLS10Check flags servers still negotiating TLS 1.0.
type TLS10Check struct {
	meta
}

func NewTLS10Check() *TLS10Check {
	return &TLS10Check{meta: meta{
		id:   TLS10ID,
		name: "TLS Version 1.0 Protocol Detection",
		desc: "Checks whether the server accepts TLS 1.0 connections",
	}}
}

// Validate executes the check on the target.
func (c *TLS10Check) Validate(ctx context.Context, host string, port int) (plugin.Verdict, error) {
	state, err := handshake(ctx, c.id, host, port, &tls.Config{
		InsecureSkipVerify: true,
		ServerName:         serverName(host),
		MinVersion:         tls.VersionTLS10,
		MaxVersion:         tls.VersionTLS10,
		CipherSuites:       allSuites(),
	})
	if err != nil {
		if isRejected(err) {
			return plugin.NotReproducible("server refused TLS 1.0: %v", err), nil
		}
		return plugin.Verdict{}, err
	}
	return plugin.Confirmed("server accepted %s with %s", tls.VersionName(state.Version), tls.CipherSuiteName(state.CipherSuite)), nil
}

// Sweet32Check flags servers accepting 64-bit block ciphers.
type Sweet32Check struct {
	meta
}

func NewSweet32Check() *Sweet32Check {
	return &Sweet32Check{meta: meta{
		id:   Sweet32ID,
		name: "SWEET32",
		desc: "Checks whether the server accepts 3DES cipher suites",
	}}
}

// Validate executes the check on the target.
func (c *Sweet32Check) Validate(ctx context.Context, host string, port int) (plugin.Verdict, error) {
	state, err := handshake(ctx, c.id, host, port, &tls.Config{
		InsecureSkipVerify: true,
		ServerName:         serverName(host),
		MinVersion:         tls.VersionTLS10,
		MaxVersion:         tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_RSA_WITH_3DES_EDE_CBC_SHA,
			tls.TLS_ECDHE_RSA_WITH_3DES_EDE_CBC_SHA,
		},
	})
	if err != nil {
		if isRejected(err) {
			return plugin.NotReproducible("server refused 3DES cipher suites: %v", err), nil
		}
		return plugin.Verdict{}, err
	}
	return plugin.Confirmed("server accepted %s over %s", tls.CipherSuiteName(state.CipherSuite), tls.VersionName(state.Version)), nil
}
