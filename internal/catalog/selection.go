package catalog

import (
	"context"
	"sort"
	"time"

	"launchsentinel/internal/apperr"
	"launchsentinel/internal/domain"
)

const (
	maxConsecutiveFailures = 10
	pollBaseDelay          = 1 * time.Second
	pollMaxDelay           = 30 * time.Second
)

// preferredTickers breaks ties in the selection policy deterministically
// when multiple eligible projects share the same anchor time.
var preferredTickers = []string{"SOL", "ETH", "BASE"}

// eligible filters descriptors to catalog status "undergrad" with a
// pre-graduation pool present and no post-graduation pool yet, then drops
// any whose anchor time is non-positive (spec §4.3 step 1).
func eligible(items []*domain.ProjectDescriptor) []*domain.ProjectDescriptor {
	var out []*domain.ProjectDescriptor
	for _, p := range items {
		if p.Status != domain.CatalogStatusUndergrad {
			continue
		}
		if p.PreTokenPair == "" || p.LPAddress != "" {
			continue
		}
		if p.AnchorTime().Unix() <= 0 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// selectProject implements the deterministic selection policy (spec §4.3
// step 2): prefer projects currently inside [T0, T0+taxWindow] sorted by T0
// descending; if none are in-window, fall back to the full eligible set
// sorted the same way; break ties by preferred ticker symbol.
func selectProject(items []*domain.ProjectDescriptor, now time.Time, taxWindow time.Duration) *domain.ProjectDescriptor {
	candidates := eligible(items)
	if len(candidates) == 0 {
		return nil
	}

	inWindow := make([]*domain.ProjectDescriptor, 0, len(candidates))
	for _, p := range candidates {
		t0 := p.AnchorTime()
		if !now.Before(t0) && !now.After(t0.Add(taxWindow)) {
			inWindow = append(inWindow, p)
		}
	}

	pool := inWindow
	if len(pool) == 0 {
		pool = candidates
	}

	sort.SliceStable(pool, func(i, j int) bool {
		ti, tj := pool[i].AnchorTime(), pool[j].AnchorTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return tickerRank(pool[i].Symbol) < tickerRank(pool[j].Symbol)
	})

	return pool[0]
}

func tickerRank(symbol string) int {
	for i, t := range preferredTickers {
		if symbol == t {
			return i
		}
	}
	return len(preferredTickers)
}

// DiscoverProject polls UpcomingLaunches until the selection policy yields
// a project. It sleeps pollBaseDelay (1s) after a fetch that selects
// nothing, sleeps min(1s*2^(n-1), 30s) after the n-th consecutive fetch
// error, and aborts after maxConsecutiveFailures consecutive fetch errors
// (spec §4.3 step 3).
func (c *Client) DiscoverProject(ctx context.Context, taxWindow time.Duration) (*domain.ProjectDescriptor, error) {
	consecutiveFailures := 0
	delay := pollBaseDelay

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		items, err := c.UpcomingLaunches(ctx)
		if err != nil {
			consecutiveFailures++
			if consecutiveFailures >= maxConsecutiveFailures {
				return nil, apperr.Generic(err)
			}
		} else {
			consecutiveFailures = 0
			if selected := selectProject(items, time.Now(), taxWindow); selected != nil {
				return selected, nil
			}
		}

		sleep := delay
		if consecutiveFailures > 0 {
			sleep = backoffFor(consecutiveFailures)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func backoffFor(n int) time.Duration {
	d := pollBaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if d >= pollMaxDelay {
			return pollMaxDelay
		}
	}
	return d
}
