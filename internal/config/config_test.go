package config

import (
	"testing"
	"time"
)

func TestLoadRateLimitConfigClamps(t *testing.T) {
	t.Setenv("PAYMENT_RATE_LIMIT_CAPACITY", "0")
	t.Setenv("PAYMENT_RATE_LIMIT_REFILL_TOKENS", "-3")
	t.Setenv("PAYMENT_RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("PAYMENT_RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig("PAYMENT_RATE_LIMIT", 5)
	if cfg.Capacity != 1 || cfg.RefillTokens != 1 {
		t.Fatalf("capacity=%d refill=%d, want 1/1", cfg.Capacity, cfg.RefillTokens)
	}
	if cfg.TTL != 10*time.Second {
		t.Fatalf("ttl = %s, want 10s", cfg.TTL)
	}
	if cfg.Prefix != "payment-rate-limit" {
		t.Fatalf("prefix = %q", cfg.Prefix)
	}
	if !cfg.Enabled || cfg.KeyStrategy != "ip_user_route" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadRateLimitConfigDefaultCapacity(t *testing.T) {
	cfg := LoadRateLimitConfig("TEST_BUCKET", 7)
	if cfg.Capacity != 7 {
		t.Fatalf("capacity = %d, want 7", cfg.Capacity)
	}
}

func TestLoadCacheConfigMethods(t *testing.T) {
	t.Setenv("CACHE_METHODS", " get, head ,,")
	t.Setenv("CACHE_ENABLED", "off")

	cfg := LoadCacheConfig()
	if cfg.Enabled {
		t.Fatal("CACHE_ENABLED=off must disable the cache")
	}
	if len(cfg.Methods) != 2 || !cfg.Methods["GET"] || !cfg.Methods["HEAD"] {
		t.Fatalf("methods = %v", cfg.Methods)
	}
}

func TestLoadRabbitMQConfigFallback(t *testing.T) {
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://guest:guest@mq:5672/")
	cfg := LoadRabbitMQConfig()
	if cfg.URL != "amqp://guest:guest@mq:5672/" || cfg.Queue != "pagos.eventos" {
		t.Fatalf("unexpected %+v", cfg)
	}

	t.Setenv("RABBITMQ_URL", "amqp://primary/")
	if got := LoadRabbitMQConfig().URL; got != "amqp://primary/" {
		t.Fatalf("url = %q", got)
	}
}

func TestLoadLogConfigDevDefaultsToDebug(t *testing.T) {
	t.Setenv("LOG_DEV", "true")
	t.Setenv("LOG_LEVEL", "")
	if cfg := LoadLogConfig(); cfg.Level != "debug" || !cfg.Dev {
		t.Fatalf("unexpected %+v", cfg)
	}
}
