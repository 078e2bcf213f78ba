// Package catalog lists every check shipped with va-validator.
package catalog

import (
	"fmt"
	"github.com/jayjOnly/VA-Validator/icmp-prober"
	"github.com/jayjOnly/VA-Validator/nmap"
	"github.com/jayjOnly/VA-Validator/plugin"
	"github.com/jayjOnly/VA-Validator/smb-scanner"
	"github.com/jayjOnly/VA-Validator/tls-scanner"
	"github.com/jayjOnly/VA-Validator/web-scanner"
	"time"
)

// Config tunes the checks that take parameters.
type Config struct {
	NmapPath         string
	ExpiryWindowDays int
}

// Plugins returns a fresh instance of every check.
func Plugins(cfg Config) []plugin.Plugin {
	runner := nmap.NewRunner(cfg.NmapPath)
	window := time.Duration(cfg.ExpiryWindowDays) * 24 * time.Hour

	return []plugin.Plugin{
		icmp_prober.NewTimestampCheck(),
		web_scanner.NewTraceCheck(),
		tls_scanner.NewExpiryCheck(window),
		tls_scanner.NewSweet32Check(),
		tls_scanner.NewWrongHostCheck(),
		tls_scanner.NewUntrustedCheck(nil),
		tls_scanner.NewSelfSignedCheck(),
		smb_scanner.NewSigningCheck(runner),
		tls_scanner.NewTLS10Check(),
		web_scanner.NewHSTSCheck(),
		web_scanner.NewTomcatCheck(runner),
		web_scanner.NewPHPCheck(),
		web_scanner.NewOpenSSLCheck(runner),
	}
}

// New returns a *plugin.Manager with every check registered.
func New(cfg Config) (*plugin.Manager, error) {
	pm := plugin.NewManager()
	for _, p := range Plugins(cfg) {
		if err := pm.Register(p); err != nil {
			return nil, fmt.Errorf("registering %T: %w", p, err)
		}
	}
	return pm, nil
}
