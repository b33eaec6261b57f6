package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"launchsentinel/internal/apperr"
	"launchsentinel/internal/domain"
)

const upcomingCacheTTL = 30 * time.Second

var trackedFactories = []domain.FactoryTag{
	domain.FactoryBondingCurveV2,
	domain.FactoryBondingCurveV4,
	domain.FactoryVibes,
}

// ListBySort lists one page of projects ordered by sort, starting from
// cursor ("" for the first page).
func (c *Client) ListBySort(ctx context.Context, sort, cursor string, limit int) (items []*domain.ProjectDescriptor, nextCursor string, err error) {
	q := url.Values{}
	q.Set("sort", sort)
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var p page
	if err := c.get(ctx, "/projects", q, &p); err != nil {
		return nil, "", err
	}
	return toDescriptors(p.Items), p.NextCursor, nil
}

// ListByFactory lists one page of projects for a single factory.
func (c *Client) ListByFactory(ctx context.Context, factory domain.FactoryTag, cursor string, limit int) (items []*domain.ProjectDescriptor, nextCursor string, err error) {
	q := url.Values{}
	q.Set("factory", string(factory))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var p page
	if err := c.get(ctx, "/projects", q, &p); err != nil {
		return nil, "", err
	}
	return toDescriptors(p.Items), p.NextCursor, nil
}

// ListAllByFactory walks every page for factory and returns the full set.
func (c *Client) ListAllByFactory(ctx context.Context, factory domain.FactoryTag) ([]*domain.ProjectDescriptor, error) {
	var all []*domain.ProjectDescriptor
	cursor := ""
	for {
		items, next, err := c.ListByFactory(ctx, factory, cursor, 100)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if next == "" {
			break
		}
		cursor = next
	}
	return all, nil
}

// ByID fetches a single project. A 404 is reported as a nil descriptor and
// a nil error (spec §4.3: "404 -> none" is not a failure).
func (c *Client) ByID(ctx context.Context, id int64) (*domain.ProjectDescriptor, error) {
	var raw rawProject
	err := c.get(ctx, fmt.Sprintf("/projects/%d", id), nil, &raw)
	if err != nil {
		if ae, ok := apperr.As(err); ok && ae.Status == 404 {
			return nil, nil
		}
		return nil, err
	}
	return raw.toDescriptor(), nil
}

// upcomingCache caches the UpcomingLaunches aggregate for upcomingCacheTTL
// and collapses concurrent callers into a single fetch via singleflight,
// matching the teacher's cache-then-dedup shape used for metadata lookups.
type upcomingCache struct {
	group singleflight.Group

	mu        sync.Mutex
	fetchedAt time.Time
	value     []*domain.ProjectDescriptor
}

// UpcomingLaunches returns the union of the tracked factories' project
// lists, refreshed at most once per 30s and deduplicated across
// concurrent callers.
func (c *Client) UpcomingLaunches(ctx context.Context) ([]*domain.ProjectDescriptor, error) {
	c.upcoming.mu.Lock()
	if !c.upcoming.fetchedAt.IsZero() && time.Since(c.upcoming.fetchedAt) < upcomingCacheTTL {
		cached := c.upcoming.value
		c.upcoming.mu.Unlock()
		return cached, nil
	}
	c.upcoming.mu.Unlock()

	v, err, _ := c.upcoming.group.Do("upcoming", func() (interface{}, error) {
		var wg sync.WaitGroup
		results := make([][]*domain.ProjectDescriptor, len(trackedFactories))
		errs := make([]error, len(trackedFactories))

		for i, factory := range trackedFactories {
			wg.Add(1)
			go func(i int, factory domain.FactoryTag) {
				defer wg.Done()
				items, err := c.ListAllByFactory(ctx, factory)
				results[i] = items
				errs[i] = err
			}(i, factory)
		}
		wg.Wait()

		var merged []*domain.ProjectDescriptor
		for i, err := range errs {
			if err != nil {
				return nil, err
			}
			merged = append(merged, results[i]...)
		}

		c.upcoming.mu.Lock()
		c.upcoming.value = merged
		c.upcoming.fetchedAt = time.Now()
		c.upcoming.mu.Unlock()

		return merged, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*domain.ProjectDescriptor), nil
}

func toDescriptors(raw []rawProject) []*domain.ProjectDescriptor {
	out := make([]*domain.ProjectDescriptor, len(raw))
	for i, r := range raw {
		out[i] = r.toDescriptor()
	}
	return out
}
