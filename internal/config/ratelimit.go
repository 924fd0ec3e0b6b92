package config

import "time"

// RateLimitConfig drives the Redis token bucket in front of the credential
// endpoints (sign-in, sign-up, refresh, guest).
type RateLimitConfig struct {
    Enabled        bool          `env:"ENABLED"         envDefault:"true"`
    Capacity       int           `env:"CAPACITY"        envDefault:"10"`
    RefillTokens   int           `env:"REFILL_TOKENS"   envDefault:"1"`
    RefillInterval time.Duration `env:"REFILL_INTERVAL" envDefault:"6s"`
    TTL            time.Duration `env:"TTL"             envDefault:"10m"`
    KeyStrategy    string        `env:"KEY_STRATEGY"    envDefault:"ip_route"`
    Prefix         string        `env:"PREFIX"          envDefault:"rl"`
    Debug          bool          `env:"DEBUG"           envDefault:"false"`
}

func (r *RateLimitConfig) normalize() {
    if r.Capacity < 1 { r.Capacity = 1 }
    if r.RefillTokens < 1 { r.RefillTokens = 1 }
    if r.RefillInterval <= 0 { r.RefillInterval = time.Second }
    minTTL := 5 * r.RefillInterval
    if r.TTL < minTTL { r.TTL = minTTL }
    if r.Prefix == "" { r.Prefix = "rl" }
}
