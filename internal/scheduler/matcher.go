package scheduler

import (
	"context"

	"github.com/support-allocation/backend/internal/models"
	"github.com/support-allocation/backend/internal/store"
)

// Matcher finds a resource with spare capacity for a request, preferring the
// requester's city and falling back to any city.
type Matcher struct {
	Resources store.ResourceStore
}

// FindResource returns a resource whose active assignment count is below its
// capacity, or ok=false when every resource is saturated. Candidates within
// a tier are ordered by id so the choice is deterministic.
func (m *Matcher) FindResource(ctx context.Context, city string) (models.Resource, bool, error) {
	loads, err := m.Resources.ResourceLoads(ctx)
	if err != nil {
		return models.Resource{}, false, err
	}

	for _, tier := range []string{city, ""} {
		candidates, err := m.Resources.ListResources(ctx, tier, "")
		if err != nil {
			return models.Resource{}, false, err
		}
		for _, r := range candidates {
			if loads[r.ID] < r.Capacity {
				return r, true, nil
			}
		}
		if city == "" {
			break
		}
	}
	return models.Resource{}, false, nil
}
