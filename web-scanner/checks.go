package web_scanner

import (
	"context"
	"fmt"
	"github.com/jayjOnly/VA-Validator/nmap"
	"github.com/jayjOnly/VA-Validator/plugin"
	"github.com/sirupsen/logrus"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	TraceID   = "11213"
	HSTSID    = "142960"
	TomcatID  = "161181"
	PHPID     = "193283"
	OpenSSLID = "201082"
)

var (
	tomcatRe  = regexp.MustCompile(`Apache Tomcat/(\d+\.\d+\.\d+)`)
	phpRe     = regexp.MustCompile(`PHP/(\d+\.\d+\.\d+)`)
	opensslRe = regexp.MustCompile(`OpenSSL[/ ](\d+\.\d+\.\d+)`)
)

// TraceCheck flags servers answering TRACE or TRACK.
type TraceCheck struct {
	meta
	client *http.Client
}

// NewTraceCheck initializes a new *TraceCheck.
func NewTraceCheck() *TraceCheck {
	return &TraceCheck{
		meta: meta{
			id:      TraceID,
			name:    "HTTP TRACE / TRACK Methods Allowed",
			desc:    "Checks whether the web server answers TRACE or TRACK requests",
			timeout: 10 * time.Second,
		},
		client: newClient(),
	}
}

// Validate executes the check on the target.
func (c *TraceCheck) Validate(ctx context.Context, host string, port int) (plugin.Verdict, error) {
	url := baseURL(ctx, host, port) + "/"

	var (
		enabled []string
		refused []string
		lastErr error
	)
	for _, method := range []string{"TRACE", "TRACK"} {
		p, err := fetch(ctx, c.client, c.id, method, url)
		if err != nil {
			lastErr = err
			continue
		}

		status := fmt.Sprintf("%s %d", method, p.Status)
		if p.Status == http.StatusOK {
			enabled = append(enabled, status)
		} else {
			refused = append(refused, status)
		}
	}

	switch {
	case len(enabled) > 0:
		return plugin.Confirmed("%s allowed on %s", strings.Join(enabled, ", "), url), nil
	case len(refused) > 0:
		return plugin.NotReproducible("methods refused: %s", strings.Join(refused, ", ")), nil
	default:
		return plugin.Verdict{}, lastErr
	}
}

// HSTSCheck flags HTTPS services without Strict-Transport-Security.
type HSTSCheck struct {
	meta
	client *http.Client
}

func NewHSTSCheck() *HSTSCheck {
	return &HSTSCheck{
		meta: meta{
			id:      HSTSID,
			name:    "HSTS Missing From HTTPS Server",
			desc:    "Checks whether the HTTPS server sends a Strict-Transport-Security header",
			timeout: 30 * time.Second,
		},
		client: newClient(),
	}
}

// Validate executes the check on the target.
func (c *HSTSCheck) Validate(ctx context.Context, host string, port int) (plugin.Verdict, error) {
	url := baseURL(ctx, host, port) + "/"
	if !strings.HasPrefix(url, "https://") {
		return plugin.Indeterminate("%s:%d does not speak HTTPS", host, port), nil
	}

	p, err := fetch(ctx, c.client, c.id, http.MethodGet, url)
	if err != nil {
		return plugin.Verdict{}, err
	}

	if hsts := p.Header.Get("Strict-Transport-Security"); hsts != "" {
		return plugin.NotReproducible("Strict-Transport-Security: %s", hsts), nil
	}
	return plugin.Confirmed("no Strict-Transport-Security header on %s (HTTP %d)", url, p.Status), nil
}

// PHPCheck flags PHP 8.1 releases before 8.1.28 disclosed in headers.
type PHPCheck struct {
	meta
	client   *http.Client
	affected affected
}

func NewPHPCheck() *PHPCheck {
	return &PHPCheck{
		meta: meta{
			id:      PHPID,
			name:    "PHP Version Validator 8.1.x < 8.1.28",
			desc:    "Checks whether the disclosed PHP version is 8.1.x older than 8.1.28",
			timeout: 5 * time.Second,
		},
		client:   newClient(),
		affected: mustAffected("PHP", ">= 8.1.0, < 8.1.28"),
	}
}

// Validate executes the check on the target.
func (c *PHPCheck) Validate(ctx context.Context, host string, port int) (plugin.Verdict, error) {
	p, err := fetch(ctx, c.client, c.id, http.MethodGet, baseURL(ctx, host, port)+"/")
	if err != nil {
		return plugin.Verdict{}, err
	}

	v, ok := findVersion(phpRe, p.Header.Values("Server")...)
	if !ok {
		v, ok = findVersion(phpRe, p.Header.Values("X-Powered-By")...)
	}
	if !ok {
		return plugin.Indeterminate("no PHP version disclosed"), nil
	}

	return rangeVerdict(c.affected, v)
}

// TomcatCheck flags Apache Tomcat 8.5.0 to 8.5.75.
type TomcatCheck struct {
	meta
	client   *http.Client
	nmap     *nmap.Runner
	affected affected
}

func NewTomcatCheck(runner *nmap.Runner) *TomcatCheck {
	if runner == nil {
		runner = nmap.NewRunner("")
	}
	return &TomcatCheck{
		meta: meta{
			id:      TomcatID,
			name:    "Apache Tomcat 8.5.0 < 8.5.76 Vulnerability",
			desc:    "Checks whether the server runs Apache Tomcat 8.5.0 to 8.5.75",
			timeout: 60 * time.Second,
		},
		client:   newClient(),
		nmap:     runner,
		affected: mustAffected("Apache Tomcat", ">= 8.5.0, < 8.5.76"),
	}
}

// Validate executes the check on the target.
func (c *TomcatCheck) Validate(ctx context.Context, host string, port int) (plugin.Verdict, error) {
	base := baseURL(ctx, host, port)

	var (
		texts []string
		title string
	)

	// The default error page prints the version even when the banner is hidden
	for _, path := range []string{"/", "/va-validator-not-found"} {
		p, err := fetch(ctx, c.client, c.id, http.MethodGet, base+path)
		if err != nil {
			if path == "/" {
				return plugin.Verdict{}, err
			}
			continue
		}
		if title == "" {
			title = p.Title()
		}
		texts = append(texts, p.Texts("Server")...)
	}

	v, ok := findVersion(tomcatRe, texts...)
	if !ok {
		v, ok = c.fromNmap(ctx, host, port)
	}
	if !ok {
		return plugin.Indeterminate("no Apache Tomcat version disclosed (title: %q)", title), nil
	}

	verdict, err := rangeVerdict(c.affected, v)
	if err == nil && title != "" {
		verdict.Detail += fmt.Sprintf(" (title: %q)", title)
	}
	return verdict, err
}

func (c *TomcatCheck) fromNmap(ctx context.Context, host string, port int) (string, bool) {
	args := append([]string{"-sV", "--script=http-headers,http-title"}, nmap.Target(port)...)
	run, err := c.nmap.Scan(ctx, 0, append(args, host)...)
	if err != nil {
		logrus.Debugf("%s: nmap fallback failed: %v", c.id, err)
		return "", false
	}

	var texts []string
	if p, ok := run.Port(port); ok {
		if p.Service.Product == "Apache Tomcat" && p.Service.Version != "" {
			return p.Service.Version, true
		}
		texts = append(texts, p.Service.Banner())
	}
	for _, id := range []string{"http-headers", "http-title"} {
		if out, ok := run.Script(id); ok {
			texts = append(texts, out)
		}
	}
	return findVersion(tomcatRe, texts...)
}

// OpenSSLCheck flags OpenSSL 3.1.0 to 3.1.6 disclosed by the service.
type OpenSSLCheck struct {
	meta
	client   *http.Client
	nmap     *nmap.Runner
	affected affected
}

func NewOpenSSLCheck(runner *nmap.Runner) *OpenSSLCheck {
	if runner == nil {
		runner = nmap.NewRunner("")
	}
	return &OpenSSLCheck{
		meta: meta{
			id:      OpenSSLID,
			name:    "OpenSSL 3.1.0 < 3.1.7 Vulnerability",
			desc:    "Checks whether the server discloses OpenSSL 3.1.0 to 3.1.6",
			timeout: 20 * time.Second,
		},
		client:   newClient(),
		nmap:     runner,
		affected: mustAffected("OpenSSL", ">= 3.1.0, < 3.1.7"),
	}
}

// Validate executes the check on the target.
func (c *OpenSSLCheck) Validate(ctx context.Context, host string, port int) (plugin.Verdict, error) {
	var texts []string

	p, err := fetch(ctx, c.client, c.id, http.MethodGet, baseURL(ctx, host, port)+"/")
	if err != nil {
		logrus.Debugf("%s: banner grab failed: %v", c.id, err)
	} else {
		texts = p.Texts("Server", "X-Powered-By")
	}

	v, ok := findVersion(opensslRe, texts...)
	if !ok {
		v, ok = c.fromNmap(ctx, host, port)
	}
	if !ok {
		if err != nil {
			return plugin.Verdict{}, err
		}
		return plugin.Indeterminate("no OpenSSL version disclosed"), nil
	}

	return rangeVerdict(c.affected, v)
}

func (c *OpenSSLCheck) fromNmap(ctx context.Context, host string, port int) (string, bool) {
	args := append([]string{"-sV"}, nmap.Target(port)...)
	run, err := c.nmap.Scan(ctx, 0, append(args, host)...)
	if err != nil {
		logrus.Debugf("%s: nmap fallback failed: %v", c.id, err)
		return "", false
	}

	p, ok := run.Port(port)
	if !ok {
		return "", false
	}
	return findVersion(opensslRe, p.Service.Banner())
}

func rangeVerdict(a affected, raw string) (plugin.Verdict, error) {
	in, err := a.Contains(raw)
	if err != nil {
		return plugin.Indeterminate("unparsable %s version %q", a.product, raw), nil
	}
	if in {
		return plugin.Confirmed("%s %s is affected (%s)", a.product, raw, a.constraints), nil
	}
	return plugin.NotReproducible("%s %s is outside the affected range (%s)", a.product, raw, a.constraints), nil
}
