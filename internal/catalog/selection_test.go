package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"launchsentinel/internal/domain"
)

func project(id int64, symbol string, status domain.CatalogStatus, preTokenPair, lpAddress string, anchor time.Time) *domain.ProjectDescriptor {
	return &domain.ProjectDescriptor{
		ID:           id,
		Symbol:       symbol,
		Status:       status,
		PreTokenPair: preTokenPair,
		LPAddress:    lpAddress,
		CreatedAt:    anchor,
	}
}

func TestSelectProjectPrefersInWindowOverFullSet(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	taxWindow := time.Hour

	inWindow := project(1, "ETH", domain.CatalogStatusUndergrad, "0xpool1", "", now.Add(-10*time.Minute))
	outOfWindow := project(2, "SOL", domain.CatalogStatusUndergrad, "0xpool2", "", now.Add(-2*time.Hour))

	got := selectProject([]*domain.ProjectDescriptor{inWindow, outOfWindow}, now, taxWindow)
	assert.Equal(t, int64(1), got.ID)
}

func TestSelectProjectFallsBackToFullSetWhenNoneInWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	taxWindow := time.Hour

	older := project(1, "ETH", domain.CatalogStatusUndergrad, "0xpool1", "", now.Add(-5*time.Hour))
	newer := project(2, "SOL", domain.CatalogStatusUndergrad, "0xpool2", "", now.Add(-3*time.Hour))

	got := selectProject([]*domain.ProjectDescriptor{older, newer}, now, taxWindow)
	assert.Equal(t, int64(2), got.ID, "falls back to full eligible set sorted by T0 descending")
}

func TestSelectProjectBreaksTiesByPreferredTicker(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	anchor := now.Add(-5 * time.Hour)

	a := project(1, "XYZ", domain.CatalogStatusUndergrad, "0xpool1", "", anchor)
	b := project(2, "ETH", domain.CatalogStatusUndergrad, "0xpool2", "", anchor)

	got := selectProject([]*domain.ProjectDescriptor{a, b}, now, time.Hour)
	assert.Equal(t, int64(2), got.ID, "ETH ranks above an unlisted ticker on a T0 tie")
}

func TestSelectProjectExcludesGraduatedAndMissingPreTokenPair(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	graduated := project(1, "ETH", domain.CatalogStatusUndergrad, "0xpool1", "0xlp1", now.Add(-time.Minute))
	noPool := project(2, "SOL", domain.CatalogStatusUndergrad, "", "", now.Add(-time.Minute))
	wrongStatus := project(3, "BASE", domain.CatalogStatusAvailable, "0xpool3", "", now.Add(-time.Minute))

	got := selectProject([]*domain.ProjectDescriptor{graduated, noPool, wrongStatus}, now, time.Hour)
	assert.Nil(t, got)
}

func TestSelectProjectDropsNonPositiveAnchorTime(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	zeroAnchor := project(1, "ETH", domain.CatalogStatusUndergrad, "0xpool1", "", time.Unix(0, 0))
	got := selectProject([]*domain.ProjectDescriptor{zeroAnchor}, now, time.Hour)
	assert.Nil(t, got)
}

func TestBackoffForCapsAtMaxDelay(t *testing.T) {
	assert.Equal(t, pollBaseDelay, backoffFor(1))
	assert.Equal(t, pollMaxDelay, backoffFor(20))
}
