package peripheral

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// DNS classes, from best to worst.
const (
	DNSResolves    = "RESOLVES"
	DNSNoARecord   = "NO_A_RECORD"
	DNSNXDomain    = "NXDOMAIN"
	DNSUnreachable = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName = "INVALID_NAME"
)

type DNSReport struct {
	Host        string
	Addrs       []net.IP
	CNAME       string
	Nameservers []string
	Class       string
	Err         string
}

type lookup interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
	LookupCNAME(ctx context.Context, host string) (string, error)
	LookupNS(ctx context.Context, name string) ([]*net.NS, error)
}

// DNSCheck classifies a host by its A/AAAA, CNAME and NS records.
type DNSCheck struct {
	Timeout  time.Duration
	resolver lookup
}

func NewDNSCheck(timeout time.Duration) *DNSCheck {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &DNSCheck{Timeout: timeout, resolver: net.DefaultResolver}
}

func (d *DNSCheck) Name() string { return "dns" }

func (d *DNSCheck) Check(ctx context.Context, target string) Result {
	start := time.Now()
	rep := d.Inspect(ctx, hostOf(target))
	msg := rep.Class
	if rep.Err != "" && rep.Class != DNSResolves {
		msg += ": " + rep.Err
	}
	return Result{Check: d.Name(), OK: rep.Class == DNSResolves, Message: msg, Took: time.Since(start)}
}

// Inspect runs the three lookups and derives a single class.
func (d *DNSCheck) Inspect(ctx context.Context, host string) DNSReport {
	rep := DNSReport{Host: strings.TrimSpace(host)}
	if rep.Host == "" || strings.Contains(rep.Host, "://") {
		rep.Class = DNSInvalidName
		return rep
	}

	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	var notFound, transient bool
	ips, err := d.resolver.LookupIP(ctx, "ip", rep.Host)
	switch {
	case err == nil:
		rep.Addrs = ips
	default:
		rep.Err = err.Error()
		var de *net.DNSError
		if errors.As(err, &de) {
			notFound = de.IsNotFound
			transient = de.IsTemporary || de.Timeout()
		}
	}

	if cname, err := d.resolver.LookupCNAME(ctx, rep.Host); err == nil && !strings.EqualFold(cname, rep.Host+".") {
		rep.CNAME = strings.TrimSuffix(cname, ".")
	}
	if ns, err := d.resolver.LookupNS(ctx, rep.Host); err == nil {
		for _, n := range ns {
			rep.Nameservers = append(rep.Nameservers, strings.TrimSuffix(n.Host, "."))
		}
	}

	switch {
	case len(rep.Addrs) > 0:
		rep.Class = DNSResolves
	case len(rep.Nameservers) > 0:
		// delegated zone without address records
		rep.Class = DNSNoARecord
	case notFound:
		rep.Class = DNSNXDomain
	case transient || rep.Err != "":
		rep.Class = DNSUnreachable
	default:
		rep.Class = DNSNXDomain
	}
	return rep
}
