package web_scanner

import (
	"context"
	"fmt"
	"github.com/jayjOnly/VA-Validator/nmap"
	"github.com/jayjOnly/VA-Validator/plugin"
	"github.com/jayjOnly/VA-Validator/toolerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

var noNmap = nmap.NewRunner("no-such-nmap-binary")

func target(t *testing.T, srv *httptest.Server) (string, int) {
	t.Helper()
	addr := srv.Listener.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func plainServer(t *testing.T, h http.HandlerFunc) (string, int) {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return target(t, srv)
}

func tlsServer(t *testing.T, h http.HandlerFunc) (string, int) {
	srv := httptest.NewTLSServer(h)
	t.Cleanup(srv.Close)
	return target(t, srv)
}

func banner(server string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", server)
		fmt.Fprint(w, "<html><head><title>It works</title></head></html>")
	}
}

func TestTraceCheck(t *testing.T) {
	host, port := plainServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "TRACE":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	v, err := NewTraceCheck().Validate(context.Background(), host, port)
	require.NoError(t, err)
	assert.Equal(t, plugin.OutcomeConfirmed, v.Outcome)
	assert.Contains(t, v.Detail, "TRACE 200")
	assert.NotContains(t, v.Detail, "TRACK")
}

func TestTraceCheck_Refused(t *testing.T) {
	host, port := plainServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	})

	v, err := NewTraceCheck().Validate(context.Background(), host, port)
	require.NoError(t, err)
	assert.Equal(t, plugin.OutcomeNotReproducible, v.Outcome)
	assert.Contains(t, v.Detail, "TRACE 405")
	assert.Contains(t, v.Detail, "TRACK 405")
}

func TestTraceCheck_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	host, port := target(t, srv)
	srv.Close()

	_, err := NewTraceCheck().Validate(context.Background(), host, port)
	require.Error(t, err)
	assert.True(t, toolerr.IsIndeterminate(err))
}

func TestHSTSCheck(t *testing.T) {
	host, port := tlsServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000")
	})
	v, err := NewHSTSCheck().Validate(context.Background(), host, port)
	require.NoError(t, err)
	assert.Equal(t, plugin.OutcomeNotReproducible, v.Outcome)
	assert.Contains(t, v.Detail, "max-age=31536000")

	host, port = tlsServer(t, func(w http.ResponseWriter, r *http.Request) {})
	v, err = NewHSTSCheck().Validate(context.Background(), host, port)
	require.NoError(t, err)
	assert.Equal(t, plugin.OutcomeConfirmed, v.Outcome)
}

func TestHSTSCheck_PlainHTTP(t *testing.T) {
	host, port := plainServer(t, func(w http.ResponseWriter, r *http.Request) {})

	v, err := NewHSTSCheck().Validate(context.Background(), host, port)
	require.NoError(t, err)
	assert.Equal(t, plugin.OutcomeIndeterminate, v.Outcome)
}

func TestPHPCheck(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		outcome plugin.Outcome
	}{
		{"old 8.1 in server header", banner("Apache/2.4.41 (Ubuntu) PHP/8.1.9"), plugin.OutcomeConfirmed},
		{"fixed 8.1", banner("Apache PHP/8.1.28"), plugin.OutcomeNotReproducible},
		{"other branch", banner("nginx PHP/7.4.33"), plugin.OutcomeNotReproducible},
		{"powered by", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Powered-By", "PHP/8.1.27")
		}, plugin.OutcomeConfirmed},
		{"no version", banner("nginx"), plugin.OutcomeIndeterminate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port := plainServer(t, tt.handler)
			v, err := NewPHPCheck().Validate(context.Background(), host, port)
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, v.Outcome, v.Detail)
		})
	}
}

func tomcat(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			fmt.Fprint(w, "<html><head><title>Apache Tomcat</title></head><body>Welcome</body></html>")
			return
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "<html><head><title>HTTP Status 404 - Not Found</title></head>"+
			"<body><h1>HTTP Status 404 - Not Found</h1><hr class=\"line\" /><h3>Apache Tomcat/%s</h3></body></html>", version)
	}
}

func TestTomcatCheck(t *testing.T) {
	host, port := plainServer(t, tomcat("8.5.50"))
	v, err := NewTomcatCheck(noNmap).Validate(context.Background(), host, port)
	require.NoError(t, err)
	assert.Equal(t, plugin.OutcomeConfirmed, v.Outcome)
	assert.Contains(t, v.Detail, "8.5.50")
	assert.Contains(t, v.Detail, `title: "Apache Tomcat"`)

	host, port = plainServer(t, tomcat("8.5.76"))
	v, err = NewTomcatCheck(noNmap).Validate(context.Background(), host, port)
	require.NoError(t, err)
	assert.Equal(t, plugin.OutcomeNotReproducible, v.Outcome)

	host, port = plainServer(t, tomcat("9.0.80"))
	v, err = NewTomcatCheck(noNmap).Validate(context.Background(), host, port)
	require.NoError(t, err)
	assert.Equal(t, plugin.OutcomeNotReproducible, v.Outcome)
}

func TestTomcatCheck_NoVersion(t *testing.T) {
	host, port := plainServer(t, banner("nginx"))

	v, err := NewTomcatCheck(noNmap).Validate(context.Background(), host, port)
	require.NoError(t, err)
	assert.Equal(t, plugin.OutcomeIndeterminate, v.Outcome)
	assert.Contains(t, v.Detail, "It works")
}

func TestOpenSSLCheck(t *testing.T) {
	host, port := plainServer(t, banner("Apache/2.4.57 (Unix) OpenSSL/3.1.4"))
	v, err := NewOpenSSLCheck(noNmap).Validate(context.Background(), host, port)
	require.NoError(t, err)
	assert.Equal(t, plugin.OutcomeConfirmed, v.Outcome)

	host, port = plainServer(t, banner("Apache/2.4.57 (Unix) OpenSSL/3.0.13"))
	v, err = NewOpenSSLCheck(noNmap).Validate(context.Background(), host, port)
	require.NoError(t, err)
	assert.Equal(t, plugin.OutcomeNotReproducible, v.Outcome)

	host, port = plainServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "<html><body><h1>Not Found</h1><address>Apache/2.4.58 (Unix) OpenSSL/3.1.6 Server at web Port 80</address></body></html>")
	})
	v, err = NewOpenSSLCheck(noNmap).Validate(context.Background(), host, port)
	require.NoError(t, err)
	assert.Equal(t, plugin.OutcomeConfirmed, v.Outcome)
}

func TestOpenSSLCheck_NoVersion(t *testing.T) {
	host, port := plainServer(t, banner("nginx"))
	v, err := NewOpenSSLCheck(noNmap).Validate(context.Background(), host, port)
	require.NoError(t, err)
	assert.Equal(t, plugin.OutcomeIndeterminate, v.Outcome)

	srv := httptest.NewServer(http.NotFoundHandler())
	host, port = target(t, srv)
	srv.Close()

	_, err = NewOpenSSLCheck(noNmap).Validate(context.Background(), host, port)
	require.Error(t, err)
	assert.True(t, toolerr.IsIndeterminate(err))
}

func TestAffected(t *testing.T) {
	php := mustAffected("PHP", ">= 8.1.0, < 8.1.28")
	for raw, want := range map[string]bool{
		"8.1.0":   true,
		"8.1.9":   true,
		"8.1.27":  true,
		"8.1.28":  false,
		"8.1.100": false,
		"8.2.1":   false,
		"7.4.33":  false,
	} {
		got, err := php.Contains(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got, raw)
	}

	_, err := php.Contains("not-a-version")
	assert.Error(t, err)
}

func TestFindVersion(t *testing.T) {
	v, ok := findVersion(tomcatRe, "Apache-Coyote/1.1", "Apache Tomcat/8.5.31 - Error report")
	require.True(t, ok)
	assert.Equal(t, "8.5.31", v)

	_, ok = findVersion(tomcatRe, "nginx")
	assert.False(t, ok)

	v, ok = findVersion(opensslRe, "OpenSSL 3.1.2 1 Aug 2023")
	require.True(t, ok)
	assert.Equal(t, "3.1.2", v)
}

func TestSchemeFor(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "https", schemeFor(ctx, "10.0.0.1", 443))
	assert.Equal(t, "http", schemeFor(ctx, "10.0.0.1", 80))

	host, port := tlsServer(t, func(w http.ResponseWriter, r *http.Request) {})
	assert.Equal(t, "https", schemeFor(ctx, host, port))

	host, port = plainServer(t, func(w http.ResponseWriter, r *http.Request) {})
	assert.Equal(t, "http", schemeFor(ctx, host, port))
}
