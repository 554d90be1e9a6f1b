package rpc

import (
	"os"
	"strconv"
	"strings"
	"time"

	"signdesk/go-client/internal/platform/ratelimiter"
)

const (
	rpcRateLimitEnabledEnv = "SIGNDESK_RPC_RATE_LIMIT_ENABLED"
	rpcRateLimitRPSEnv     = "SIGNDESK_RPC_RATE_LIMIT_RPS"
	rpcRateLimitBurstEnv   = "SIGNDESK_RPC_RATE_LIMIT_BURST"
)

// loadRPCRateLimiter builds the per-client limiter from the
// environment. A nil limiter allows everything; tests run unlimited
// unless explicitly enabled.
func loadRPCRateLimiter() *ratelimiter.ClientLimiter {
	enabled := true
	if v, ok := parseBoolEnv(rpcRateLimitEnabledEnv); ok {
		enabled = v
	} else {
		switch strings.ToLower(strings.TrimSpace(os.Getenv("SIGNDESK_ENV"))) {
		case "test", "testing":
			enabled = false
		}
	}
	if !enabled {
		return nil
	}

	rps := 30.0
	if raw := strings.TrimSpace(os.Getenv(rpcRateLimitRPSEnv)); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed > 0 {
			rps = parsed
		}
	}
	burst := 60
	if raw := strings.TrimSpace(os.Getenv(rpcRateLimitBurstEnv)); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			burst = parsed
		}
	}
	return ratelimiter.New(rps, burst, 10*time.Minute)
}
