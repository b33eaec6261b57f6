// Package statemachine runs the single tick loop that drives a tracked
// project through its five-state lifecycle (spec §4.8): discover ->
// wait_t0 -> launch_window -> buyback_phase -> done. It is the sole writer
// of domain.LifecycleContext; every other component only ever reads a
// Snapshot of it.
package statemachine

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"launchsentinel/internal/buybacktracker"
	"launchsentinel/internal/catalog"
	"launchsentinel/internal/config"
	"launchsentinel/internal/domain"
	"launchsentinel/internal/fdv"
	"launchsentinel/internal/notifier"
	"launchsentinel/internal/pushclient"
	"launchsentinel/internal/rpcpool"
	"launchsentinel/internal/taxtracker"
	"launchsentinel/internal/whaledetector"
)

const (
	tickInterval  = 1 * time.Second
	healthTicks   = 60
	errorSleep    = 5 * time.Second
)

// Machine owns the running LifecycleContext and the per-project trackers.
type Machine struct {
	cfg      *config.Config
	catalog  *catalog.Client
	pool     *rpcpool.Pool
	push     *pushclient.Client
	notifier *notifier.Client
	fdvCalc  *fdv.Calculator
	log      *logrus.Entry

	ctx domain.LifecycleContext

	tax     *taxtracker.Tracker
	buyback *buybacktracker.Tracker
	whale   *whaledetector.Detector

	// projectCtx/projectCancel scope the whale detector's subscription, the
	// trade-drain goroutine, and the spend scanner's subscription started
	// in handleWaitT0/enterBuybackPhase. Cancelled on entry to done so a
	// monitor never outlives the project that started it.
	projectCtx    context.Context
	projectCancel context.CancelFunc

	lastTaxRefresh      time.Time
	lastGraduationCheck time.Time
	lastBuybackPublish  time.Time

	ticks int

	// Events is a fan-out channel for the API surface to consume; it is
	// never closed by the state machine (the process owns its lifetime).
	Events chan domain.Event

	// spends carries decoded transfer logs from the spend scanner's
	// subscription goroutine (handlers.go's drainSpendLogs) into Run's tick
	// loop, which is the sole goroutine allowed to mutate m.buyback.
	spends chan domain.SpendRecord
}

// New builds an idle state machine in the discover state.
func New(cfg *config.Config, cat *catalog.Client, pool *rpcpool.Pool, push *pushclient.Client, notif *notifier.Client, calc *fdv.Calculator, log *logrus.Entry) *Machine {
	return &Machine{
		cfg:      cfg,
		catalog:  cat,
		pool:     pool,
		push:     push,
		notifier: notif,
		fdvCalc:  calc,
		log:      log,
		ctx:      domain.LifecycleContext{Phase: domain.PhaseDiscover},
		Events:   make(chan domain.Event, 256),
		spends:   make(chan domain.SpendRecord, 256),
	}
}

// Snapshot returns the current lifecycle context for read-only observers.
func (m *Machine) Snapshot() domain.LifecycleContext {
	return m.ctx.Snapshot()
}

// Run drives the tick loop until ctx is cancelled (spec §4.8: once per
// second, dispatch the current state's handler; on error, log and sleep 5s;
// every 60 ticks push a health snapshot).
func (m *Machine) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec := <-m.spends:
			if err := m.RecordSpend(rec); err != nil {
				m.log.WithError(err).Debug("dropped spend record: no active buyback tracker")
			}
		case <-ticker.C:
			if err := m.tick(ctx); err != nil {
				m.log.WithError(err).Error("state machine tick failed")
				m.emit(domain.EventError, err.Error())
				time.Sleep(errorSleep)
			}
			m.ticks++
			if m.ticks%healthTicks == 0 {
				m.pushHealth(ctx)
			}
		}
	}
}

func (m *Machine) tick(ctx context.Context) error {
	switch m.ctx.Phase {
	case domain.PhaseDiscover:
		return m.handleDiscover(ctx)
	case domain.PhaseWaitT0:
		return m.handleWaitT0(ctx)
	case domain.PhaseLaunchWindow:
		return m.handleLaunchWindow(ctx)
	case domain.PhaseBuybackPhase:
		return m.handleBuybackPhase(ctx)
	case domain.PhaseDone:
		return m.handleDone(ctx)
	}
	return nil
}

func (m *Machine) setPhase(phase domain.Phase) {
	m.ctx.Phase = phase
	m.emit(domain.EventStateChange, phase)
}

func (m *Machine) emit(kind domain.EventKind, payload interface{}) {
	evt := domain.Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
	select {
	case m.Events <- evt:
	default:
		m.log.Warn("event channel full, dropping event")
	}
}

func (m *Machine) pushHealth(ctx context.Context) {
	healthy, latencyMS, pushConnected := m.pool.HealthSnapshot(ctx, "")
	m.notifier.NotifyHealth(ctx, healthy, latencyMS, pushConnected)
}

func baseTokenAddress(cfg *config.Config) common.Address {
	return common.HexToAddress(cfg.Addresses.VirtualToken)
}

func receiverAddress(cfg *config.Config) common.Address {
	return common.HexToAddress(cfg.Addresses.BuybackAddr)
}
