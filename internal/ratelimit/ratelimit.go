// Package ratelimit spaces consecutive fetches against one supplier to avoid
// tripping anti-automation defenses. The policy is injected into the
// pagination driver, which calls Wait before every fetch.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter is the delay policy consumed by the pagination driver.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Policy enforces a jittered minimum spacing between consecutive fetches.
type Policy struct {
	mu        sync.Mutex
	minDelay  time.Duration
	maxDelay  time.Duration
	lastFetch time.Time
}

func NewPolicy(minDelay, maxDelay time.Duration) *Policy {
	return &Policy{
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

func (p *Policy) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.lastFetch)
	delay := p.nextDelay()

	if elapsed < delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay - elapsed):
		}
	}

	p.lastFetch = time.Now()
	return nil
}

func (p *Policy) nextDelay() time.Duration {
	if p.maxDelay <= p.minDelay {
		return p.minDelay
	}
	jitter := time.Duration(rand.Int63n(int64(p.maxDelay - p.minDelay)))
	return p.minDelay + jitter
}

// Adaptive widens the spacing after repeated fetch errors and narrows it
// again after a run of successes.
type Adaptive struct {
	*Policy
	errorCount    int
	successCount  int
	maxErrorCount int
	backoffFactor float64
}

func NewAdaptive(minDelay, maxDelay time.Duration) *Adaptive {
	return &Adaptive{
		Policy:        NewPolicy(minDelay, maxDelay),
		maxErrorCount: 3,
		backoffFactor: 1.5,
	}
}

func (a *Adaptive) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successCount++
	a.errorCount = 0

	if a.successCount > 5 {
		newMin := time.Duration(float64(a.minDelay) * 0.9)
		if newMin < time.Second {
			newMin = time.Second
		}
		a.minDelay = newMin
		a.successCount = 0
	}
}

func (a *Adaptive) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorCount++
	a.successCount = 0

	if a.errorCount >= a.maxErrorCount {
		newMin := time.Duration(float64(a.minDelay) * a.backoffFactor)
		newMax := time.Duration(float64(a.maxDelay) * a.backoffFactor)
		if newMin > 60*time.Second {
			newMin = 60 * time.Second
		}
		if newMax > 120*time.Second {
			newMax = 120 * time.Second
		}
		a.minDelay = newMin
		a.maxDelay = newMax
		a.errorCount = 0
	}
}

// Provider hands each supplier its own adaptive policy. Categories of the
// same supplier share one policy, so concurrent traversals of one site are
// spaced collectively.
type Provider struct {
	mu       sync.Mutex
	policies map[string]*Adaptive
	minDelay time.Duration
	maxDelay time.Duration
}

func NewProvider(minDelay, maxDelay time.Duration) *Provider {
	return &Provider{
		policies: make(map[string]*Adaptive),
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

func (pr *Provider) For(supplier string) *Adaptive {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	if p, ok := pr.policies[supplier]; ok {
		return p
	}
	p := NewAdaptive(pr.minDelay, pr.maxDelay)
	pr.policies[supplier] = p
	return p
}
