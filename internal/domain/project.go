// Package domain holds the plain value types shared across the monitoring
// core: project descriptors, lifecycle state, trades, and the typed event
// envelope broadcast to dashboard clients.
package domain

import "time"

// FactoryTag identifies which launch-contract family produced a project.
type FactoryTag string

const (
	FactoryBondingCurveV2 FactoryTag = "bonding_curve_v2"
	FactoryBondingCurveV4 FactoryTag = "bonding_curve_v4"
	FactoryVibes          FactoryTag = "vibes"
	FactoryOther          FactoryTag = "other"
)

// CatalogStatus is the off-chain catalog's lifecycle status for a project,
// distinct from the monitoring core's own Phase (lifecycle.go).
type CatalogStatus string

const (
	CatalogStatusInitialized CatalogStatus = "initialized"
	CatalogStatusUndergrad   CatalogStatus = "undergrad"
	CatalogStatusAvailable   CatalogStatus = "available"
)

// PoolType distinguishes the pre-graduation bonding curve from the
// conventional AMM pair that replaces it at graduation.
type PoolType string

const (
	PoolTypeCurve PoolType = "curve"
	PoolTypeAMMV2 PoolType = "ammv2"
)

// ProjectDescriptor is the immutable catalog record for one project, as
// returned by the catalog client. It never changes for the duration of one
// run through the state machine.
type ProjectDescriptor struct {
	ID             int64
	Name           string
	Symbol         string
	Factory        FactoryTag
	Status         CatalogStatus
	PreTokenPair   string // pre-graduation pool address, empty if none
	LPAddress      string // post-graduation pool address, empty if none
	TokenAddress   string
	CreatedAt      time.Time
	LaunchedAt     *time.Time
	LPCreatedAt    *time.Time
}

// AnchorTime returns T0 per §4.3 step 2: launchedAt, falling back to
// lpCreatedAt, falling back to createdAt.
func (p *ProjectDescriptor) AnchorTime() time.Time {
	if p.LaunchedAt != nil && !p.LaunchedAt.IsZero() {
		return *p.LaunchedAt
	}
	if p.LPCreatedAt != nil && !p.LPCreatedAt.IsZero() {
		return *p.LPCreatedAt
	}
	return p.CreatedAt
}

// SelectedProject is the descriptor plus everything the lifecycle machine
// derives from it once selection succeeds.
type SelectedProject struct {
	Descriptor  *ProjectDescriptor
	PoolAddress string
	PoolType    PoolType
	T0          time.Time
}
