package peripheral

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"time"
)

// TLSCheck reports how many days remain on the leaf certificate.
type TLSCheck struct {
	Timeout     time.Duration
	WarningDays int
	now         func() time.Time
}

func NewTLSCheck(timeout time.Duration, warningDays int) *TLSCheck {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if warningDays <= 0 {
		warningDays = 30
	}
	return &TLSCheck{Timeout: timeout, WarningDays: warningDays, now: time.Now}
}

func (t *TLSCheck) Name() string { return "tls" }

func (t *TLSCheck) Check(ctx context.Context, target string) Result {
	start := time.Now()
	res := Result{Check: t.Name()}

	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		res.Message = "invalid target"
		return res
	}
	if u.Scheme != "https" {
		res.OK = true
		res.Message = "not https, skipped"
		return res
	}
	port := u.Port()
	if port == "" {
		port = "443"
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: t.Timeout},
		Config:    &tls.Config{ServerName: u.Hostname()},
	}
	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(u.Hostname(), port))
	res.Took = time.Since(start)
	if err != nil {
		res.Message = fmt.Sprintf("TLS connection failed: %v", err)
		return res
	}
	defer conn.Close()

	certs := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(certs) == 0 {
		res.Message = "no certificates presented"
		return res
	}
	return t.judge(certs[0].NotAfter, res)
}

func (t *TLSCheck) judge(notAfter time.Time, res Result) Result {
	now := t.now()
	if now.After(notAfter) {
		res.Message = fmt.Sprintf("certificate expired on %s", notAfter.Format("2006-01-02"))
		return res
	}
	days := int(notAfter.Sub(now).Hours() / 24)
	res.Message = fmt.Sprintf("certificate expires in %d days", days)
	res.OK = days >= t.WarningDays
	return res
}
