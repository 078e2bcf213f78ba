package icmp_prober

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"github.com/jayjOnly/VA-Validator/plugin"
	"github.com/jayjOnly/VA-Validator/toolerr"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"net"
	"os"
	"sync/atomic"
	"time"
)

const (
	TimestampID    = "10114"
	DefaultTimeout = 5 * time.Second

	// protocolICMP is the IANA protocol number used to parse ICMPv4 messages.
	protocolICMP = 1
	bodyLen      = 16
)

var sequence atomic.Uint32

// Timestamps holds the three clocks carried by a timestamp message, in
// milliseconds since midnight UTC.
type Timestamps struct {
	Originate uint32
	Receive   uint32
	Transmit  uint32
}

// TimestampCheck sends an ICMP timestamp request (type 13) and flags hosts
// answering with a timestamp reply (type 14).
type TimestampCheck struct {
	// ReplyWait bounds how long to wait for a reply before deciding the host
	// ignores timestamp requests.
	ReplyWait time.Duration
}

// NewTimestampCheck initializes a new *TimestampCheck.
func NewTimestampCheck() *TimestampCheck {
	return &TimestampCheck{ReplyWait: 3 * time.Second}
}

func (c *TimestampCheck) ID() string   { return TimestampID }
func (c *TimestampCheck) Name() string { return "ICMP Timestamp Request Remote Date Disclosure" }
func (c *TimestampCheck) Description() string {
	return "Checks whether the host answers ICMP timestamp requests, disclosing its clock"
}
func (c *TimestampCheck) Timeout() time.Duration { return DefaultTimeout }

// Validate executes the check on the target. The port is not used.
func (c *TimestampCheck) Validate(ctx context.Context, host string, _ int) (plugin.Verdict, error) {
	ip, err := resolve(ctx, host)
	if err != nil {
		return plugin.Verdict{}, err
	}
	if ip.To4() == nil {
		return plugin.Indeterminate("%s has no IPv4 address, ICMP timestamp is IPv4 only", host), nil
	}

	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return plugin.Verdict{}, toolerr.New(TimestampID, "listen", toolerr.CodePermissionDenied, "raw ICMP socket requires root or CAP_NET_RAW").WithCause(err)
		}
		return plugin.Verdict{}, toolerr.New(TimestampID, "listen", toolerr.CodeNetworkError, "cannot open ICMP socket").WithCause(err)
	}
	defer conn.Close()

	id := os.Getpid() & 0xffff
	seq := int(sequence.Add(1) & 0xffff)

	req, err := request(id, seq, time.Now()).Marshal(nil)
	if err != nil {
		return plugin.Verdict{}, toolerr.New(TimestampID, "marshal", toolerr.CodeExecutionFailed, "building request").WithCause(err)
	}
	if _, err := conn.WriteTo(req, &net.IPAddr{IP: ip}); err != nil {
		return plugin.Verdict{}, toolerr.FromNetwork(TimestampID, "send", err)
	}
	logrus.Debugf("%s: timestamp request sent to %s (id %d, seq %d)", TimestampID, ip, id, seq)

	wait := c.ReplyWait
	if wait <= 0 {
		wait = DefaultTimeout
	}
	deadline := time.Now().Add(wait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return plugin.Verdict{}, toolerr.FromNetwork(TimestampID, "read", err)
	}

	buf := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return plugin.Verdict{}, toolerr.FromNetwork(TimestampID, "read", ctx.Err())
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return plugin.NotReproducible("no ICMP timestamp reply from %s within %s", ip, wait), nil
			}
			return plugin.Verdict{}, toolerr.FromNetwork(TimestampID, "read", err)
		}

		if addr, ok := peer.(*net.IPAddr); !ok || !addr.IP.Equal(ip) {
			continue
		}

		ts, ok := matchReply(buf[:n], id, seq)
		if !ok {
			continue
		}
		return plugin.Confirmed("%s answered ICMP timestamp request, remote clock %s", ip, clock(ts.Receive)), nil
	}
}

// resolve returns the first IPv4 address of host, or its first address
// when it has none.
func resolve(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, toolerr.FromNetwork(TimestampID, "resolve", err)
	}
	if len(addrs) == 0 {
		return nil, toolerr.Newf(TimestampID, "resolve", toolerr.CodeNetworkError, "%s has no address", host)
	}
	for _, a := range addrs {
		if a.IP.To4() != nil {
			return a.IP, nil
		}
	}
	return addrs[0].IP, nil
}

// request builds a timestamp request carrying now as originate timestamp.
func request(id, seq int, now time.Time) *icmp.Message {
	data := make([]byte, bodyLen)
	binary.BigEndian.PutUint16(data[0:], uint16(id))
	binary.BigEndian.PutUint16(data[2:], uint16(seq))
	binary.BigEndian.PutUint32(data[4:], millisSinceMidnight(now))

	return &icmp.Message{
		Type: ipv4.ICMPTypeTimestamp,
		Code: 0,
		Body: &icmp.RawBody{Data: data},
	}
}

// matchReply parses b and reports whether it is the timestamp reply for id
// and seq.
func matchReply(b []byte, id, seq int) (Timestamps, bool) {
	m, err := icmp.ParseMessage(protocolICMP, b)
	if err != nil || m.Type != ipv4.ICMPTypeTimestampReply {
		return Timestamps{}, false
	}

	body, ok := m.Body.(*icmp.RawBody)
	if !ok || len(body.Data) < bodyLen {
		return Timestamps{}, false
	}
	if int(binary.BigEndian.Uint16(body.Data[0:])) != id || int(binary.BigEndian.Uint16(body.Data[2:])) != seq {
		return Timestamps{}, false
	}

	return Timestamps{
		Originate: binary.BigEndian.Uint32(body.Data[4:]),
		Receive:   binary.BigEndian.Uint32(body.Data[8:]),
		Transmit:  binary.BigEndian.Uint32(body.Data[12:]),
	}, true
}

func millisSinceMidnight(t time.Time) uint32 {
	t = t.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return uint32(t.Sub(midnight) / time.Millisecond)
}

// clock renders a timestamp as a UTC time of day. Values with the high bit
// set are non standard and printed raw.
func clock(ms uint32) string {
	if ms&0x80000000 != 0 || ms >= 24*60*60*1000 {
		return fmt.Sprintf("non-standard value %d", ms)
	}
	d := time.Duration(ms) * time.Millisecond
	return time.Time{}.Add(d).Format("15:04:05.000") + " UTC"
}
