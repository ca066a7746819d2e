package auth

import (
	"sync"

	"golang.org/x/time/rate"
)

// LimiterConfig tunes the per-key token buckets. Zero values fall back
// to defaults.
type LimiterConfig struct {
	RPS   float64
	Burst int
}

// LimiterPool hands out one rate limiter per key (here: the requesting
// nick) on demand.
type LimiterPool struct {
	mu  sync.Mutex
	m   map[string]*rate.Limiter
	cfg LimiterConfig
}

func NewLimiterPool(cfg LimiterConfig) *LimiterPool {
	return &LimiterPool{cfg: cfg}
}

func (p *LimiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.m == nil {
		p.m = make(map[string]*rate.Limiter)
	}
	if l, ok := p.m[key]; ok {
		return l
	}
	rps := p.cfg.RPS
	if rps <= 0 {
		rps = 5
	}
	burst := p.cfg.Burst
	if burst <= 0 {
		burst = 10
	}
	l := rate.NewLimiter(rate.Limit(rps), burst)
	p.m[key] = l
	return l
}

// Allow reports whether key may proceed right now.
func (p *LimiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

// Forget drops the limiter for key, typically on disconnect.
func (p *LimiterPool) Forget(key string) {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
}
