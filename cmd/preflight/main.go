// cmd/preflight/main.go
package main

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/hamed0406/sitepulse/internal/config"
)

type report struct {
	out, err io.Writer
	failed   bool
}

func (r *report) fail(msg string) { fmt.Fprintln(r.err, "✖", msg); r.failed = true }
func (r *report) warn(msg string) { fmt.Fprintln(r.err, "⚠", msg) }
func (r *report) ok(msg string)   { fmt.Fprintln(r.out, "✔", msg) }

func main() {
	_ = godotenv.Load()
	r := &report{out: os.Stdout, err: os.Stderr}
	check(r, config.FromEnv())
	if r.failed {
		os.Exit(1)
	}
	r.ok("preflight passed")
}

func check(r *report, cfg config.Config) {
	if len(cfg.AdminAPIKeys) == 0 {
		r.fail("ADMIN_API_KEYS is empty (admin routes are open to anyone).")
	}
	if len(cfg.PublicAPIKeys) == 0 {
		r.warn("PUBLIC_API_KEYS is empty; read routes accept admin keys only.")
	}
	for _, k := range append(append([]string{}, cfg.AdminAPIKeys...), cfg.PublicAPIKeys...) {
		if len(k) < 12 {
			r.warn("an API key shorter than 12 characters is configured")
			break
		}
	}

	r.ok("API_ADDR=" + cfg.Addr)

	if cfg.DatabaseURL == "" {
		r.warn("DATABASE_URL empty; history and alert state live in memory and are lost on restart.")
	} else if u, err := url.Parse(cfg.DatabaseURL); err != nil || !strings.HasPrefix(u.Scheme, "postgres") {
		r.fail("DATABASE_URL is not a postgres:// URL.")
	} else {
		r.ok("DATABASE_URL present")
	}

	if cfg.EndpointsFile != "" {
		if f, err := config.LoadEndpoints(cfg.EndpointsFile); err != nil {
			r.fail(err.Error())
		} else {
			r.ok(fmt.Sprintf("ENDPOINTS_FILE lists %d endpoints", len(f.Endpoints)))
		}
	}

	if cfg.SlackWebhookURL == "" && cfg.DiscordWebhookURL == "" {
		r.warn("no SLACK_WEBHOOK_URL or DISCORD_WEBHOOK_URL; alerts are only logged.")
	}
	for name, v := range map[string]string{"SLACK_WEBHOOK_URL": cfg.SlackWebhookURL, "DISCORD_WEBHOOK_URL": cfg.DiscordWebhookURL} {
		if v != "" && !strings.HasPrefix(v, "https://") {
			r.warn(name + " does not use https")
		}
	}

	if cfg.Check.Timeout >= cfg.CheckInterval {
		r.warn(fmt.Sprintf("TIMEOUT_MS (%s) is not shorter than CHECK_INTERVAL_MS (%s); cycles will be skipped.", cfg.Check.Timeout, cfg.CheckInterval))
	}
	if cfg.CycleTimeout < cfg.Check.Timeout {
		r.warn("CYCLE_TIMEOUT_MS is shorter than a single probe timeout.")
	}

	if len(cfg.AllowedOrigins) == 0 {
		r.warn("ALLOWED_ORIGINS empty; any origin may call the API from a browser.")
	} else {
		r.ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}
}
