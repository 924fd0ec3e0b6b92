package config

import (
    "strings"
    "time"
)

// CacheConfig defines settings for the catalog response cache.
// When Enabled is false or no Redis client is configured, caching is
// disabled.  Methods lists the HTTP methods to cache (e.g. GET, HEAD).  TTL
// defines the lifetime of cache entries.  KeyStrategy determines which parts
// of the request contribute to the cache key.  Prefix and MaxBodyBytes allow
// control over namespacing and the maximum size of responses to cache.
type CacheConfig struct {
    Enabled      bool          `env:"ENABLED"        envDefault:"true"`
    Methods      []string      `env:"METHODS"        envDefault:"GET"        envSeparator:","`
    TTL          time.Duration `env:"TTL"            envDefault:"60s"`
    KeyStrategy  string        `env:"KEY_STRATEGY"   envDefault:"route_query"`
    Prefix       string        `env:"PREFIX"         envDefault:"cache"`
    MaxBodyBytes int           `env:"MAX_BODY_BYTES" envDefault:"1048576"`

    methods map[string]bool
}

// Allows reports whether responses to method may be cached.
func (c *CacheConfig) Allows(method string) bool {
    if c.methods == nil {
        c.normalize()
    }
    return c.methods[strings.ToUpper(method)]
}

// normalize upper-cases methods and fills in defaults for zero values.
func (c *CacheConfig) normalize() {
    c.methods = map[string]bool{}
    for _, p := range c.Methods {
        p = strings.TrimSpace(strings.ToUpper(p))
        if p != "" {
            c.methods[p] = true
        }
    }
    if len(c.methods) == 0 {
        c.methods["GET"] = true
    }
    if c.TTL <= 0 {
        c.TTL = time.Minute
    }
    if c.Prefix == "" {
        c.Prefix = "cache"
    }
}
