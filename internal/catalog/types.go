package catalog

import (
	"time"

	"launchsentinel/internal/domain"
)

// page is the catalog's generic paged-list envelope.
type page struct {
	Items      []rawProject `json:"items"`
	NextCursor string       `json:"nextCursor"`
}

// rawProject mirrors the catalog service's wire shape; epoch millisecond
// timestamps and zero-value-as-absent fields are normalized into
// domain.ProjectDescriptor by toDescriptor.
type rawProject struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	Factory      string `json:"factory"`
	Status       string `json:"status"`
	PreTokenPair string `json:"preTokenPair"`
	LPAddress    string `json:"lpAddress"`
	TokenAddress string `json:"tokenAddress"`
	CreatedAt    int64  `json:"createdAt"`
	LaunchedAt   *int64 `json:"launchedAt"`
	LPCreatedAt  *int64 `json:"lpCreatedAt"`
}

func epochMsToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func (r rawProject) toDescriptor() *domain.ProjectDescriptor {
	d := &domain.ProjectDescriptor{
		ID:           r.ID,
		Name:         r.Name,
		Symbol:       r.Symbol,
		Factory:      domain.FactoryTag(r.Factory),
		Status:       domain.CatalogStatus(r.Status),
		PreTokenPair: r.PreTokenPair,
		LPAddress:    r.LPAddress,
		TokenAddress: r.TokenAddress,
		CreatedAt:    epochMsToTime(r.CreatedAt),
	}
	if r.LaunchedAt != nil {
		t := epochMsToTime(*r.LaunchedAt)
		d.LaunchedAt = &t
	}
	if r.LPCreatedAt != nil {
		t := epochMsToTime(*r.LPCreatedAt)
		d.LPCreatedAt = &t
	}
	return d
}
