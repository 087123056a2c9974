package api

import (
	"sync"
)

// batchLimiter caps concurrent batch conversions per client IP and
// globally. Single-point conversions are too cheap to bother limiting;
// batches are where a client can tie up the worker pool.
type batchLimiter struct {
	mu       sync.Mutex
	inflight map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

func newBatchLimiter(maxPerIP int) *batchLimiter {
	return &batchLimiter{
		inflight: make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: 100, // Default global cap.
	}
}

// acquire attempts to register a batch request for the given IP.
// Returns false if the IP or global limit has been reached.
func (l *batchLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.total >= l.maxTotal {
		return false
	}
	if l.inflight[ip] >= l.maxPerIP {
		return false
	}

	l.inflight[ip]++
	l.total++
	return true
}

// release decrements the in-flight count for the given IP.
func (l *batchLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.inflight[ip]--
	l.total--
	if l.inflight[ip] <= 0 {
		delete(l.inflight, ip)
	}
}
