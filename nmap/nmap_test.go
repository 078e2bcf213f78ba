package nmap

import (
	"context"
	"github.com/jayjOnly/VA-Validator/toolerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

const report = `<?xml version="1.0" encoding="UTF-8"?>
<nmaprun scanner="nmap" args="nmap -sV -p 8080 -oX - 10.0.0.5">
  <host>
    <status state="up"/>
    <address addr="10.0.0.5" addrtype="ipv4"/>
    <ports>
      <port protocol="tcp" portid="8080">
        <state state="open"/>
        <service name="http" product="Apache Tomcat" version="8.5.50" extrainfo="OpenSSL/3.1.2"/>
        <script id="http-title" output="Apache Tomcat/8.5.50"/>
      </port>
    </ports>
    <hostscript>
      <script id="smb2-security-mode" output="&#xa;  3:1:1: &#xa;    Message signing enabled but not required"/>
    </hostscript>
  </host>
</nmaprun>`

func TestParse(t *testing.T) {
	run, err := Parse([]byte(report))
	require.NoError(t, err)
	require.Len(t, run.Hosts, 1)

	assert.Equal(t, "up", run.Hosts[0].Status.State)
	assert.Equal(t, "10.0.0.5", run.Hosts[0].Addresses[0].Addr)

	p, ok := run.Port(8080)
	require.True(t, ok)
	assert.Equal(t, "open", p.State.State)
	assert.Equal(t, "Apache Tomcat 8.5.50 OpenSSL/3.1.2", p.Service.Banner())

	_, ok = run.Port(443)
	assert.False(t, ok)

	out, ok := run.Script("http-title")
	require.True(t, ok)
	assert.Equal(t, "Apache Tomcat/8.5.50", out)

	out, ok = run.Script("smb2-security-mode")
	require.True(t, ok)
	assert.Contains(t, out, "Message signing enabled but not required")

	_, ok = run.Script("ssl-cert")
	assert.False(t, ok)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse(nil)
	assert.Error(t, err)

	_, err = Parse([]byte("Starting Nmap 7.94"))
	assert.Error(t, err)
}

func TestRunner_MissingBinary(t *testing.T) {
	r := NewRunner("definitely-not-an-nmap-binary")
	assert.False(t, r.Available())

	_, err := r.Scan(context.Background(), time.Second, "-p", "445", "127.0.0.1")
	require.Error(t, err)
	assert.True(t, toolerr.HasCode(err, toolerr.CodeBinaryNotFound))
	assert.True(t, toolerr.IsIndeterminate(err))
}

func TestNewRunner_Default(t *testing.T) {
	assert.Equal(t, DefaultBinary, NewRunner("").Binary)
	assert.Equal(t, "/opt/nmap/bin/nmap", NewRunner("/opt/nmap/bin/nmap").Binary)
}

func TestExec(t *testing.T) {
	out, err := Exec(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo hello; echo oops >&2; exit 3"}})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out.Stdout))
	assert.Equal(t, "oops\n", string(out.Stderr))
	assert.Equal(t, 3, out.ExitCode)
}

func TestExec_Timeout(t *testing.T) {
	start := time.Now()
	_, err := Exec(context.Background(), Command{Name: "sleep", Args: []string{"5"}, Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, toolerr.HasCode(err, toolerr.CodeTimeout))
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestTarget(t *testing.T) {
	assert.Nil(t, Target(0))
	assert.Equal(t, []string{"-p", "445"}, Target(445))
}
