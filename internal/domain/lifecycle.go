package domain

import (
	"math/big"
	"time"
)

// Phase is one of the five wire-compatible lifecycle states (spec §6).
// The string values are sent verbatim over the REST/WS surface and must
// keep this exact case.
type Phase string

const (
	PhaseDiscover      Phase = "DISCOVER"
	PhaseWaitT0        Phase = "WAIT_T0"
	PhaseLaunchWindow  Phase = "LAUNCH_WINDOW"
	PhaseBuybackPhase  Phase = "BUYBACK_PHASE"
	PhaseDone          Phase = "DONE"
)

// LifecycleContext is the single-writer record owned by the state machine.
// Every other component only ever observes a snapshot of it.
type LifecycleContext struct {
	Phase    Phase
	Project  *SelectedProject // nil outside wait_t0..done
	T0       time.Time
	T1       time.Time // T0 + taxWindow
	TaxTotal *big.Int  // cumulative tax snapshotted at T1

	StartBalance *big.Int // nil if unknown (net-inflow-only mode)

	LastTaxRefresh     time.Time
	LastBuybackRefresh time.Time
}

// Snapshot returns a deep-enough copy safe to hand to a reader: the big.Int
// fields are copied so a concurrent mutation of the original cannot be
// observed through a previously taken snapshot.
func (c *LifecycleContext) Snapshot() LifecycleContext {
	cp := *c
	if c.TaxTotal != nil {
		cp.TaxTotal = new(big.Int).Set(c.TaxTotal)
	}
	if c.StartBalance != nil {
		cp.StartBalance = new(big.Int).Set(c.StartBalance)
	}
	return cp
}

// TaxCounters is the tax tracker's running accounting state (spec §3, §4.4).
type TaxCounters struct {
	Inflow             *big.Int
	Outflow            *big.Int
	StartBalance       *big.Int
	CurrentBalance     *big.Int
	LastProcessedBlock uint64
}

// NetInflow returns inflow - outflow.
func (t *TaxCounters) NetInflow() *big.Int {
	return new(big.Int).Sub(t.Inflow, t.Outflow)
}

// BalanceDiff returns currentBalance - startBalance.
func (t *TaxCounters) BalanceDiff() *big.Int {
	return new(big.Int).Sub(t.CurrentBalance, t.StartBalance)
}

// Delta returns balanceDiff - netInflow, the self-consistency residual.
func (t *TaxCounters) Delta() *big.Int {
	return new(big.Int).Sub(t.BalanceDiff(), t.NetInflow())
}
