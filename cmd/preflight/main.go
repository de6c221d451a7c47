// cmd/preflight/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/hamed0406/reachability/internal/broker/redisstream"
	"github.com/hamed0406/reachability/internal/config"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.FromEnv()
	if err != nil {
		fail(err.Error())
	}
	if err := cfg.Validate(); err != nil {
		for _, e := range multierr.Errors(err) {
			fmt.Fprintln(os.Stderr, "✖", e)
		}
		os.Exit(1)
	}
	ok("API_ADDR=" + cfg.Addr)
	ok("BROKER=" + cfg.Broker)

	if cfg.Broker == config.BrokerRedis {
		client := redisstream.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer client.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			fail(fmt.Sprintf("redis at %s unreachable: %v", cfg.RedisAddr, err))
		}
		ok("redis reachable at " + cfg.RedisAddr)
	} else {
		warn("BROKER=memory: workers run inside the api process and results are lost on restart.")
	}

	if strings.Join(cfg.AllowedOrigins, ",") == "*" {
		warn("ALLOWED_ORIGINS is * (any origin may call the API and open the results stream).")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	if cfg.SubmitRPM == 0 {
		warn("SUBMIT_RPM=0: POST /probe is not rate limited.")
	}

	if cfg.SlackWebhookURL == "" {
		warn("SLACK_WEBHOOK_URL empty: failure alerts disabled.")
	} else {
		ok("Slack alerts enabled")
	}

	ok(fmt.Sprintf("timeouts http=%s dns=%s connect=%s handshake=%s io=%s job=%s",
		cfg.HTTPTimeout, cfg.DNSTimeout, cfg.ConnectTimeout, cfg.HandshakeTimeout, cfg.IOTimeout, cfg.JobTimeout))
	ok("preflight passed")
}
