// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ratelimit provides a process-wide token bucket keyed by
// (provider, operation), consulted by the embedding and LLM call paths.
//
// Callers never block here: a denied check returns the backoff duration
// and the caller decides whether to wait, re-enqueue, or fail.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited marks calls rejected because a bucket is exhausted.
var ErrRateLimited = errors.New("rate limited")

// BackoffError creates an error for a rejected call, matching
// ErrRateLimited under errors.Is.
func BackoffError(provider string, op Operation, backoff time.Duration) error {
	return fmt.Errorf("%w: %s/%s, retry in %s", ErrRateLimited, provider, op, backoff)
}

// Operation identifies the kind of outbound call being limited.
type Operation string

const (
	OpEmbedding  Operation = "embedding"
	OpCompletion Operation = "completion"
)

// Key identifies one bucket.
type Key struct {
	Provider  string
	Operation Operation
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Provider, k.Operation)
}

// Rule configures one bucket: sustained requests per second and burst.
type Rule struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// SetDefaults applies default values.
func (r *Rule) SetDefaults() {
	if r.RequestsPerSecond <= 0 {
		r.RequestsPerSecond = 10
	}
	if r.Burst <= 0 {
		r.Burst = int(r.RequestsPerSecond)
		if r.Burst < 1 {
			r.Burst = 1
		}
	}
}

// Validate checks the rule for errors.
func (r *Rule) Validate() error {
	if r.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must be non-negative, got %f", r.RequestsPerSecond)
	}
	if r.Burst < 0 {
		return fmt.Errorf("burst must be non-negative, got %d", r.Burst)
	}
	return nil
}

// Decision is the outcome of a rate limit check.
type Decision struct {
	// OK reports whether the call may proceed now.
	OK bool

	// Backoff is how long the caller should wait before retrying.
	// Zero when OK.
	Backoff time.Duration
}

// Config configures the limiter.
type Config struct {
	// Enabled turns limiting on. When false every check passes.
	Enabled bool `yaml:"enabled"`

	// Default applies to buckets with no explicit rule.
	Default Rule `yaml:"default"`

	// Rules maps "provider/operation" to an explicit rule.
	Rules map[string]Rule `yaml:"rules,omitempty"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	c.Default.SetDefaults()
	for key, rule := range c.Rules {
		rule.SetDefaults()
		c.Rules[key] = rule
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Default.Validate(); err != nil {
		return fmt.Errorf("default rule: %w", err)
	}
	for key, rule := range c.Rules {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("rule %q: %w", key, err)
		}
	}
	return nil
}

// Limiter holds one token bucket per (provider, operation).
// Buckets are created lazily on first use.
type Limiter struct {
	config  Config
	mu      sync.RWMutex
	buckets map[Key]*rate.Limiter
}

// NewLimiter creates a limiter from configuration.
func NewLimiter(cfg Config) (*Limiter, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rate limit config: %w", err)
	}

	return &Limiter{
		config:  cfg,
		buckets: make(map[Key]*rate.Limiter),
	}, nil
}

// Allow checks the bucket for (provider, operation) and consumes one
// token if available. When the bucket is empty it returns a backoff
// decision without consuming anything.
func (l *Limiter) Allow(provider string, op Operation) Decision {
	if !l.config.Enabled {
		return Decision{OK: true}
	}

	bucket := l.bucket(Key{Provider: provider, Operation: op})

	reservation := bucket.Reserve()
	if !reservation.OK() {
		// Burst of zero: nothing ever fits. Report the refill interval.
		return Decision{Backoff: time.Duration(float64(time.Second) / float64(bucket.Limit()))}
	}

	delay := reservation.Delay()
	if delay > 0 {
		reservation.Cancel()
		return Decision{Backoff: delay}
	}

	return Decision{OK: true}
}

// Wait blocks until the bucket admits one token or the backoff would
// exceed max. Used by callers that prefer waiting over re-enqueueing.
func (l *Limiter) Wait(provider string, op Operation, max time.Duration) Decision {
	decision := l.Allow(provider, op)
	if decision.OK || decision.Backoff > max {
		return decision
	}
	time.Sleep(decision.Backoff)
	return l.Allow(provider, op)
}

func (l *Limiter) bucket(key Key) *rate.Limiter {
	l.mu.RLock()
	bucket, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return bucket
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if bucket, ok := l.buckets[key]; ok {
		return bucket
	}

	rule := l.config.Default
	if explicit, ok := l.config.Rules[key.String()]; ok {
		rule = explicit
	}

	bucket = rate.NewLimiter(rate.Limit(rule.RequestsPerSecond), rule.Burst)
	l.buckets[key] = bucket
	return bucket
}

// Usage reports the current token count per active bucket (for
// diagnostics and tests).
func (l *Limiter) Usage() map[string]float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]float64, len(l.buckets))
	for key, bucket := range l.buckets {
		out[key.String()] = bucket.Tokens()
	}
	return out
}

var (
	defaultLimiter   *Limiter
	defaultLimiterMu sync.RWMutex
)

// SetDefault installs the process-wide limiter.
func SetDefault(l *Limiter) {
	defaultLimiterMu.Lock()
	defer defaultLimiterMu.Unlock()
	defaultLimiter = l
}

// Default returns the process-wide limiter, or a disabled one if none
// was installed.
func Default() *Limiter {
	defaultLimiterMu.RLock()
	defer defaultLimiterMu.RUnlock()

	if defaultLimiter == nil {
		l, _ := NewLimiter(Config{Enabled: false})
		return l
	}
	return defaultLimiter
}
