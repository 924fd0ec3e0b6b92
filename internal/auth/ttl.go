package auth

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var ttlPattern = regexp.MustCompile(`^(\d+)(ms|s|m|h|d)$`)

var ttlUnits = map[string]time.Duration{
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  24 * time.Hour,
}

// ParseTTL parses the <integer><unit> grammar where unit is one of
// ms, s, m, h or d.
func ParseTTL(s string) (time.Duration, error) {
	m := ttlPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid ttl %q: want <integer><ms|s|m|h|d>", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ttl %q: %w", s, err)
	}
	unit := ttlUnits[m[2]]
	if n > int64(1<<63-1)/int64(unit) {
		return 0, fmt.Errorf("invalid ttl %q: out of range", s)
	}
	return time.Duration(n) * unit, nil
}

// TTLSeconds parses s and returns whole seconds.
func TTLSeconds(s string) (int64, error) {
	d, err := ParseTTL(s)
	if err != nil {
		return 0, err
	}
	return int64(d / time.Second), nil
}

// TTL is a configuration value in the TTL grammar. It implements
// encoding.TextUnmarshaler so env parsing rejects bad values at startup.
type TTL struct {
	raw string
	d   time.Duration
}

// MustTTL panics on an invalid literal. Intended for defaults and tests.
func MustTTL(s string) TTL {
	d, err := ParseTTL(s)
	if err != nil {
		panic(err)
	}
	return TTL{raw: s, d: d}
}

func (t *TTL) UnmarshalText(text []byte) error {
	d, err := ParseTTL(string(text))
	if err != nil {
		return err
	}
	t.raw, t.d = string(text), d
	return nil
}

func (t TTL) Duration() time.Duration { return t.d }

func (t TTL) Seconds() int { return int(t.d / time.Second) }

func (t TTL) String() string { return t.raw }
