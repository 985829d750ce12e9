package proxy

import (
	"strings"
	"sync"
	"time"
)

const (
	failureMinRequests = 10
	failureRateLimit   = 0.7
	restBonusPerHour   = 0.1
)

// Stats is the performance record of one proxy.
type Stats struct {
	Proxy    string    `json:"proxy"`
	Success  int       `json:"success"`
	Failures int       `json:"failures"`
	LastUsed time.Time `json:"lastUsed"`
	Failed   bool      `json:"failed"`
}

// PoolStats summarizes the pool.
type PoolStats struct {
	Total   int     `json:"total"`
	Failed  int     `json:"failed"`
	Working int     `json:"working"`
	Details []Stats `json:"details"`
}

// Pool tracks proxies and picks the best one for the next request.
type Pool struct {
	mu      sync.Mutex
	proxies []string
	stats   map[string]*Stats
	failed  map[string]struct{}
	now     func() time.Time
}

// NewPool builds a pool from proxy addresses, ignoring blanks and duplicates.
func NewPool(proxies []string) *Pool {
	p := &Pool{
		stats:  make(map[string]*Stats),
		failed: make(map[string]struct{}),
		now:    time.Now,
	}
	p.Add(proxies...)
	return p
}

// Add appends proxies not yet in the pool.
func (p *Pool) Add(proxies ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, proxy := range proxies {
		proxy = strings.TrimSpace(proxy)
		if proxy == "" {
			continue
		}
		if _, ok := p.stats[proxy]; ok {
			continue
		}
		p.proxies = append(p.proxies, proxy)
		p.stats[proxy] = &Stats{Proxy: proxy}
	}
}

// Len returns the number of proxies.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}

// Best returns the available proxy with the highest score. When every proxy
// is marked failed the failed set is cleared and all become available again.
func (p *Pool) Best() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.proxies) == 0 {
		return "", false
	}
	if len(p.failed) >= len(p.proxies) {
		p.failed = make(map[string]struct{})
	}

	now := p.now()
	best, bestScore := "", 0.0
	for _, proxy := range p.proxies {
		if _, ok := p.failed[proxy]; ok {
			continue
		}
		s := score(p.stats[proxy], now)
		if best == "" || s > bestScore {
			best, bestScore = proxy, s
		}
	}
	return best, best != ""
}

// score favours untried proxies, then success rate with a small bonus per
// hour of rest since the last use.
func score(s *Stats, now time.Time) float64 {
	total := s.Success + s.Failures
	if total == 0 {
		return 1.0
	}
	rate := float64(s.Success) / float64(total)
	rested := now.Sub(s.LastUsed).Hours()
	return rate + rested*restBonusPerHour
}

// MarkSuccess records a successful request and clears the failed mark.
func (p *Pool) MarkSuccess(proxy string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.stats[proxy]
	if !ok {
		return
	}
	s.Success++
	s.LastUsed = p.now()
	delete(p.failed, proxy)
}

// MarkFailure records a failed request. A proxy with more than ten requests
// and a failure rate above 0.7 is marked failed.
func (p *Pool) MarkFailure(proxy string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.stats[proxy]
	if !ok {
		return
	}
	s.Failures++
	s.LastUsed = p.now()
	total := s.Success + s.Failures
	if total > failureMinRequests && float64(s.Failures)/float64(total) > failureRateLimit {
		p.failed[proxy] = struct{}{}
	}
}

// Snapshot returns the pool statistics in insertion order.
func (p *Pool) Snapshot() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := PoolStats{Total: len(p.proxies), Failed: len(p.failed)}
	out.Working = out.Total - out.Failed
	for _, proxy := range p.proxies {
		s := *p.stats[proxy]
		_, s.Failed = p.failed[proxy]
		out.Details = append(out.Details, s)
	}
	return out
}
