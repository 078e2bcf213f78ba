package smb_scanner

import (
	"context"
	"github.com/jayjOnly/VA-Validator/nmap"
	"github.com/jayjOnly/VA-Validator/plugin"
	"github.com/sirupsen/logrus"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	SigningID      = "57608"
	DefaultPort    = 445
	DefaultTimeout = 30 * time.Second

	script = "smb2-security-mode"
)

var (
	notRequiredRe = regexp.MustCompile(`(?i)message\s+signing\s+enabled\s+but\s+not\s+required`)
	disabledRe    = regexp.MustCompile(`(?i)message\s+signing\s+disabled`)
	requiredRe    = regexp.MustCompile(`(?i)message\s+signing\s+enabled\s+and\s+required`)
)

// SigningCheck flags SMB servers that do not require message signing.
type SigningCheck struct {
	nmap *nmap.Runner
}

// NewSigningCheck initializes a new *SigningCheck. A nil runner uses nmap
// from PATH.
func NewSigningCheck(runner *nmap.Runner) *SigningCheck {
	if runner == nil {
		runner = nmap.NewRunner("")
	}
	return &SigningCheck{nmap: runner}
}

func (c *SigningCheck) ID() string   { return SigningID }
func (c *SigningCheck) Name() string { return "SMB Signing Not Required" }
func (c *SigningCheck) Description() string {
	return "Checks whether the SMB server accepts sessions without message signing"
}
func (c *SigningCheck) Timeout() time.Duration { return DefaultTimeout }

// Validate executes the check on the target.
func (c *SigningCheck) Validate(ctx context.Context, host string, port int) (plugin.Verdict, error) {
	if port <= 0 {
		port = DefaultPort
	}

	run, err := c.nmap.Scan(ctx, 0, "-Pn", "-p", strconv.Itoa(port), "--script", script, host)
	if err != nil {
		return plugin.Verdict{}, err
	}

	out, ok := run.Script(script)
	if !ok {
		state := "unknown"
		if p, found := run.Port(port); found {
			state = p.State.State
		}
		logrus.Debugf("%s: no %s output for %s:%d (port %s)", SigningID, script, host, port, state)
		return plugin.Indeterminate("%s returned no result, port %d is %s", script, port, state), nil
	}

	return classify(out), nil
}

// classify maps smb2-security-mode output to a verdict.
func classify(out string) plugin.Verdict {
	mode := strings.Join(strings.Fields(out), " ")

	switch {
	case notRequiredRe.MatchString(out):
		return plugin.Confirmed("signing enabled but not required (%s)", mode)
	case disabledRe.MatchString(out):
		return plugin.Confirmed("signing disabled (%s)", mode)
	case requiredRe.MatchString(out):
		return plugin.NotReproducible("signing required (%s)", mode)
	default:
		return plugin.Indeterminate("unrecognized security mode: %s", mode)
	}
}
