// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// hostLimiter bounds in-flight requests and request rate per host.
type hostLimiter struct {
	perHost int64
	rps     float64

	mu    sync.Mutex
	hosts map[string]*hostSlot
}

type hostSlot struct {
	sem  *semaphore.Weighted
	rate *rate.Limiter
}

// newHostLimiter returns a limiter allowing perHost concurrent requests and
// rps requests per second to each host. Non-positive values disable the
// respective bound.
func newHostLimiter(perHost int, rps float64) *hostLimiter {
	return &hostLimiter{
		perHost: int64(perHost),
		rps:     rps,
		hosts:   make(map[string]*hostSlot),
	}
}

func (l *hostLimiter) slot(host string) *hostSlot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.hosts[host]
	if !ok {
		s = &hostSlot{}
		if l.perHost > 0 {
			s.sem = semaphore.NewWeighted(l.perHost)
		}
		if l.rps > 0 {
			s.rate = rate.NewLimiter(rate.Limit(l.rps), 1)
		}
		l.hosts[host] = s
	}
	return s
}

// acquire blocks until a request to host may start. The returned function
// must be called when the request completes.
func (l *hostLimiter) acquire(ctx context.Context, host string) (func(), error) {
	s := l.slot(host)
	if s.sem != nil {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}
	if s.rate != nil {
		if err := s.rate.Wait(ctx); err != nil {
			if s.sem != nil {
				s.sem.Release(1)
			}
			return nil, err
		}
	}
	return func() {
		if s.sem != nil {
			s.sem.Release(1)
		}
	}, nil
}
