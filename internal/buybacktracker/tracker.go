// Package buybacktracker implements the Spend Scanner (spec §4.5): tracks
// outbound transfers from the fee receiver against a tax-window budget and
// derives rate/ETA/progress/stall signals from a sliding window of spends.
package buybacktracker

import (
	"container/list"
	"math/big"
	"time"

	"launchsentinel/internal/domain"
)

// weiPerUnit scales an 18-decimal base-unit amount down to display units,
// matching internal/notifier's weiToDisplay and internal/fdv's /1e18 FDV
// scaling — the three places this repo turns a chain amount into a
// human-facing number.
var weiPerUnit = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

func toDisplayUnits(v *big.Int) float64 {
	f := new(big.Float).Quo(new(big.Float).SetInt(v), weiPerUnit)
	units, _ := f.Float64()
	return units
}

// Tracker accumulates spend records and derives status against a budget.
type Tracker struct {
	budget      *big.Int
	rateWindow  time.Duration
	stallAlert  time.Duration
	spentTotal  *big.Int
	lastSpent   time.Time
	alerted     bool
	lastTxAmt   *big.Int

	window *list.List // of domain.SpendRecord, oldest at front
}

// New builds a tracker against budget (the tax-window taxTotal), with the
// given sliding-rate window and stall-alert threshold.
func New(budget *big.Int, rateWindow, stallAlert time.Duration) *Tracker {
	return &Tracker{
		budget:     budget,
		rateWindow: rateWindow,
		stallAlert: stallAlert,
		spentTotal: big.NewInt(0),
		lastTxAmt:  big.NewInt(0),
		window:     list.New(),
	}
}

// RecordSpend appends a new spend and prunes the sliding window of records
// older than now-rateWindow. A spend after a stall clears the "already
// alerted" flag so the next stall can alert again.
func (t *Tracker) RecordSpend(rec domain.SpendRecord, now time.Time) {
	t.spentTotal.Add(t.spentTotal, rec.Amount)
	t.lastSpent = rec.Timestamp
	t.lastTxAmt = new(big.Int).Set(rec.Amount)
	t.alerted = false

	t.window.PushBack(rec)
	t.prune(now)
}

func (t *Tracker) prune(now time.Time) {
	cutoff := now.Add(-t.rateWindow)
	for e := t.window.Front(); e != nil; {
		next := e.Next()
		rec := e.Value.(domain.SpendRecord)
		if rec.Timestamp.Before(cutoff) {
			t.window.Remove(e)
		}
		e = next
	}
}

// GetStatus computes the derived state of spec §4.5 as of now.
func (t *Tracker) GetStatus(now time.Time) domain.BuybackStatus {
	t.prune(now)

	spentInWindow := big.NewInt(0)
	for e := t.window.Front(); e != nil; e = e.Next() {
		rec := e.Value.(domain.SpendRecord)
		spentInWindow.Add(spentInWindow, rec.Amount)
	}

	windowSeconds := t.rateWindow.Seconds()
	ratePerHour := 0.0
	if windowSeconds > 0 {
		ratePerHour = (toDisplayUnits(spentInWindow) / windowSeconds) * 3600
	}

	remaining := new(big.Int).Sub(t.budget, t.spentTotal)
	if remaining.Sign() < 0 {
		remaining = big.NewInt(0)
	}

	var etaHours *float64
	if ratePerHour > 0 {
		h := toDisplayUnits(remaining) / ratePerHour
		etaHours = &h
	}

	progress := 100.0
	if t.budget.Sign() > 0 {
		spentF, _ := new(big.Float).SetInt(t.spentTotal).Float64()
		budgetF, _ := new(big.Float).SetInt(t.budget).Float64()
		progress = (spentF / budgetF) * 100
		if progress > 100 {
			progress = 100
		}
	}

	stalled := t.isStalled(now)
	if stalled {
		t.alerted = true
	}

	return domain.BuybackStatus{
		SpentTotal:   new(big.Int).Set(t.spentTotal),
		RatePerHour:  ratePerHour,
		Remaining:    remaining,
		EtaHours:     etaHours,
		Progress:     progress,
		LastTxAmount: new(big.Int).Set(t.lastTxAmt),
		Stalled:      stalled,
	}
}

// isStalled implements spec §4.5's one-shot-per-run stall signal: fires
// once when spentTotal < budget, at least one spend has been observed, and
// the gap since the last spend exceeds stallAlert; suppressed until the
// next RecordSpend resets the flag.
func (t *Tracker) isStalled(now time.Time) bool {
	if t.alerted {
		return false
	}
	if t.spentTotal.Cmp(t.budget) >= 0 {
		return false
	}
	if t.lastSpent.IsZero() {
		return false
	}
	return now.Sub(t.lastSpent) > t.stallAlert
}

// Complete reports whether spentTotal has reached the budget (spec §4.5:
// the state machine transitions to done once this is true).
func (t *Tracker) Complete() bool {
	return t.spentTotal.Cmp(t.budget) >= 0
}
