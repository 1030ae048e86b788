package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig drives the Redis token bucket. Two buckets are used: the
// general API bucket and a stricter one in front of login and payment
// endpoints, where every accepted request may reach the card gateway.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string // ip | user | route | ip_user | ip_route | user_route | ip_user_route
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads the bucket named by envPrefix (RATE_LIMIT,
// PAYMENT_RATE_LIMIT, ...). Capacity falls back to defCapacity.
func LoadRateLimitConfig(envPrefix string, defCapacity int) RateLimitConfig {
	k := func(s string) string { return envPrefix + "_" + s }
	cfg := RateLimitConfig{
		Enabled:        envBool(k("ENABLED"), true),
		Capacity:       envInt(k("CAPACITY"), defCapacity),
		RefillTokens:   envInt(k("REFILL_TOKENS"), 1),
		RefillInterval: envDur(k("REFILL_INTERVAL"), time.Second),
		TTL:            envDur(k("TTL"), 10*time.Minute),
		KeyStrategy:    envStr(k("KEY_STRATEGY"), "ip_user_route"),
		Prefix:         envStr(k("PREFIX"), strings.ToLower(strings.ReplaceAll(envPrefix, "_", "-"))),
		Debug:          envBool(k("DEBUG"), false),
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
		cfg.TTL = minTTL
	}
	return cfg
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return dur
	}
	return d
}
