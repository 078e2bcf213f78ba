package web_scanner

import (
	"context"
	"crypto/tls"
	"fmt"
	"github.com/PuerkitoBio/goquery"
	"github.com/jayjOnly/VA-Validator/toolerr"
	"github.com/sirupsen/logrus"
	"io"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	userAgent    = "Mozilla/5.0"
	maxBodyBytes = 1 << 20
	probeTimeout = 3 * time.Second
)

// meta holds the identity shared by every web check.
type meta struct {
	id, name, desc string
	timeout        time.Duration
}

func (m meta) ID() string             { return m.id }
func (m meta) Name() string           { return m.name }
func (m meta) Description() string    { return m.desc }
func (m meta) Timeout() time.Duration { return m.timeout }

// page is a fetched HTTP response.
type page struct {
	URL    string
	Status int
	Header http.Header
	Body   []byte
}

// newClient returns a client that neither verifies certificates nor
// follows redirects, so headers belong to the scanned service itself.
func newClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig:   &tls.Config{InsecureSkipVerify: true},
			DisableKeepAlives: true,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// baseURL returns scheme://host:port for the service.
func baseURL(ctx context.Context, host string, port int) string {
	scheme := schemeFor(ctx, host, port)
	if port <= 0 {
		if scheme == "https" {
			port = 443
		} else {
			port = 80
		}
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, strconv.Itoa(port)))
}

// schemeFor picks https for well known TLS ports, http for well known clear
// text ports, and otherwise tries a TLS handshake.
func schemeFor(ctx context.Context, host string, port int) string {
	switch port {
	case 443, 8443:
		return "https"
	case 0, 80, 8080:
		return "http"
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	d := tls.Dialer{Config: &tls.Config{InsecureSkipVerify: true}}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		logrus.Tracef("no TLS on %s:%d: %v", host, port, err)
		return "http"
	}
	conn.Close()
	return "https"
}

// fetch performs a request and returns the page content.
func fetch(ctx context.Context, client *http.Client, check, method, url string) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, toolerr.New(check, "request", toolerr.CodeInvalidInput, "bad request").WithCause(err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, toolerr.FromNetwork(check, strings.ToLower(method), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, toolerr.FromNetwork(check, "read", err)
	}

	return &page{
		URL:    url,
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   body,
	}, nil
}

// Title returns the trimmed <title> of the page.
func (p *page) Title() string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(p.Body)))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// Texts returns the header values and the visible text of the elements
// servers use to print their banner on default pages.
func (p *page) Texts(headers ...string) []string {
	var ret []string
	for _, h := range headers {
		ret = append(ret, p.Header.Values(h)...)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(p.Body)))
	if err != nil {
		return ret
	}
	doc.Find("title, h1, h3, address").Each(func(i int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			ret = append(ret, text)
		}
	})
	return ret
}

// findVersion returns the first capture of re found in texts.
func findVersion(re *regexp.Regexp, texts ...string) (string, bool) {
	for _, t := range texts {
		if m := re.FindStringSubmatch(t); len(m) > 1 {
			return m[1], true
		}
	}
	return "", false
}
