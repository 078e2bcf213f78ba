// Package nmap runs nmap and reads its XML report.
package nmap

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"github.com/jayjOnly/VA-Validator/toolerr"
	"strconv"
	"strings"
	"time"
)

const DefaultBinary = "nmap"

// Runner invokes the nmap binary.
type Runner struct {
	Binary string
}

// NewRunner returns a Runner for binary, falling back to "nmap" in PATH.
func NewRunner(binary string) *Runner {
	if len(strings.TrimSpace(binary)) == 0 {
		binary = DefaultBinary
	}
	return &Runner{Binary: binary}
}

// Available reports whether the binary can be found.
func (r *Runner) Available() bool {
	return BinaryExists(r.Binary)
}

// Scan runs nmap with args plus XML output on stdout and parses the report.
func (r *Runner) Scan(ctx context.Context, timeout time.Duration, args ...string) (*Run, error) {
	full := append(append([]string{}, args...), "-oX", "-")

	out, err := Exec(ctx, Command{Name: r.Binary, Args: full, Timeout: timeout})
	if err != nil {
		return nil, err
	}
	if out.ExitCode != 0 {
		return nil, toolerr.Newf(r.Binary, "scan", toolerr.CodeExecutionFailed, "exit code %d: %s", out.ExitCode, firstLine(out.Stderr))
	}

	run, err := Parse(out.Stdout)
	if err != nil {
		return nil, toolerr.New(r.Binary, "parse", toolerr.CodeParseError, "unreadable XML report").WithCause(err)
	}
	return run, nil
}

// Parse decodes an nmap XML report.
func Parse(data []byte) (*Run, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty report")
	}

	var run Run
	if err := xml.Unmarshal(data, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Run is the root <nmaprun> element.
type Run struct {
	Hosts []Host `xml:"host"`
}

type Host struct {
	Status      State     `xml:"status"`
	Addresses   []Address `xml:"address"`
	Ports       []Port    `xml:"ports>port"`
	HostScripts []Script  `xml:"hostscript>script"`
}

type Address struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"`
}

type Port struct {
	Protocol string   `xml:"protocol,attr"`
	PortID   int      `xml:"portid,attr"`
	State    State    `xml:"state"`
	Service  Service  `xml:"service"`
	Scripts  []Script `xml:"script"`
}

type State struct {
	State string `xml:"state,attr"`
}

type Service struct {
	Name      string `xml:"name,attr"`
	Product   string `xml:"product,attr"`
	Version   string `xml:"version,attr"`
	ExtraInfo string `xml:"extrainfo,attr"`
	Tunnel    string `xml:"tunnel,attr"`
}

// Banner joins the service fields nmap fingerprinted.
func (s Service) Banner() string {
	return strings.TrimSpace(strings.Join(strings.Fields(s.Product+" "+s.Version+" "+s.ExtraInfo), " "))
}

type Script struct {
	ID     string `xml:"id,attr"`
	Output string `xml:"output,attr"`
}

// Port returns the port entry for id on the first host.
func (r *Run) Port(id int) (Port, bool) {
	for _, h := range r.Hosts {
		for _, p := range h.Ports {
			if p.PortID == id {
				return p, true
			}
		}
	}
	return Port{}, false
}

// Script returns the output of the script named id, looking at port scripts
// first and host scripts second.
func (r *Run) Script(id string) (string, bool) {
	for _, h := range r.Hosts {
		for _, p := range h.Ports {
			for _, s := range p.Scripts {
				if s.ID == id {
					return s.Output, true
				}
			}
		}
		for _, s := range h.HostScripts {
			if s.ID == id {
				return s.Output, true
			}
		}
	}
	return "", false
}

// Target formats a port argument, port 0 leaving nmap's default selection.
func Target(port int) []string {
	if port <= 0 {
		return nil
	}
	return []string{"-p", strconv.Itoa(port)}
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
