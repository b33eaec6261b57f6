package statemachine

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"launchsentinel/internal/buybacktracker"
	"launchsentinel/internal/domain"
	"launchsentinel/internal/evmabi"
	"launchsentinel/internal/taxtracker"
	"launchsentinel/internal/whaledetector"
)

const (
	taxRefreshInterval     = 5 * time.Minute
	graduationCheckInterval = 60 * time.Second
	buybackPublishInterval = 10 * time.Minute
)

// handleDiscover implements the discover state: reset the context and
// block on catalog.DiscoverProject until a candidate is selected (spec
// §4.8). DiscoverProject itself owns the consecutive-failure/backoff
// policy of spec §4.3 step 3, so a single call here may run for a while.
func (m *Machine) handleDiscover(ctx context.Context) error {
	m.ctx = domain.LifecycleContext{Phase: domain.PhaseDiscover}

	descriptor, err := m.catalog.DiscoverProject(ctx, m.cfg.TaxWindow())
	if err != nil {
		return err
	}

	poolAddress := descriptor.PreTokenPair
	poolType := domain.PoolTypeCurve
	if descriptor.LPAddress != "" {
		poolAddress = descriptor.LPAddress
		poolType = domain.PoolTypeAMMV2
	}

	t0 := descriptor.AnchorTime()
	m.ctx.Project = &domain.SelectedProject{
		Descriptor:  descriptor,
		PoolAddress: poolAddress,
		PoolType:    poolType,
		T0:          t0,
	}
	m.ctx.T0 = t0
	m.ctx.T1 = t0.Add(m.cfg.TaxWindow())

	m.setPhase(domain.PhaseWaitT0)
	return nil
}

// handleWaitT0 implements the wait_t0 state's entry action: notify, init
// the tax tracker at T0, and start the whale detector. The steady action
// is a no-op; the exit trigger fires as soon as both monitors are up.
func (m *Machine) handleWaitT0(ctx context.Context) error {
	m.notifier.NotifyProjectStart(ctx, m.ctx.Project.Descriptor)
	m.emit(domain.EventProjectStart, m.ctx.Project.Descriptor)

	receiver := receiverAddress(m.cfg)
	baseToken := baseTokenAddress(m.cfg)

	m.tax = taxtracker.New(m.pool, m.log, baseToken, receiver)
	if err := m.tax.Init(ctx, m.ctx.T0, m.cfg.AvgBlockTime()); err != nil {
		return err
	}

	threshold, err := m.cfg.BigTradeThreshold()
	if err != nil {
		return err
	}

	projectCtx, cancel := context.WithCancel(ctx)
	m.projectCtx = projectCtx
	m.projectCancel = cancel

	poolAddr := common.HexToAddress(m.ctx.Project.PoolAddress)
	m.whale = whaledetector.New(m.pool, m.push, m.log, poolAddr, baseToken, threshold, m.ctx.Project.PoolType)
	if err := m.whale.Start(projectCtx); err != nil {
		cancel()
		m.projectCtx = nil
		m.projectCancel = nil
		return err
	}
	go m.drainWhaleTrades(projectCtx)

	now := time.Now()
	m.lastTaxRefresh = now
	m.lastGraduationCheck = now

	m.setPhase(domain.PhaseLaunchWindow)
	return nil
}

func (m *Machine) drainWhaleTrades(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case trade, ok := <-m.whale.Trades:
			if !ok {
				return
			}
			m.emit(domain.EventWhaleTrade, trade)
		}
	}
}

// handleLaunchWindow implements the launch_window row of spec §4.8: once
// T1 is reached, do a final update and snapshot taxTotal; otherwise run
// the tax catch-up + update cycle every 5 minutes, refresh FDV every tick,
// and poll the catalog for early graduation every 60 seconds.
func (m *Machine) handleLaunchWindow(ctx context.Context) error {
	now := time.Now()

	if !now.Before(m.ctx.T1) {
		if err := m.tax.CatchUp(ctx); err != nil {
			return err
		}
		if _, err := m.tax.Update(ctx); err != nil {
			return err
		}
		m.ctx.TaxTotal = m.tax.GetTaxTotal()
		m.ctx.LastTaxRefresh = now

		if err := m.enterBuybackPhase(ctx, now); err != nil {
			return err
		}
		return nil
	}

	if now.Sub(m.lastTaxRefresh) >= taxRefreshInterval {
		if err := m.tax.CatchUp(ctx); err != nil {
			return err
		}
		counters, err := m.tax.Update(ctx)
		if err != nil {
			return err
		}
		m.ctx.LastTaxRefresh = now
		m.lastTaxRefresh = now
		m.emit(domain.EventTaxUpdate, counters)
		m.notifier.NotifyTaxUpdate(ctx, counters, now.Sub(m.ctx.T0).Minutes())
	}

	if m.ctx.Project.PoolType == domain.PoolTypeCurve {
		if result, err := m.fdvCalc.ComputeCurveFDV(ctx, common.HexToAddress(m.ctx.Project.PoolAddress), common.Address{}); err == nil {
			m.emit(domain.EventFDVUpdate, result)
		} else {
			m.log.WithError(err).Debug("on-chain fdv computation failed this tick")
		}
	}

	if now.Sub(m.lastGraduationCheck) >= graduationCheckInterval {
		m.lastGraduationCheck = now
		graduated, err := m.checkGraduation(ctx)
		if err != nil {
			m.log.WithError(err).Warn("graduation check failed")
		} else if graduated {
			m.ctx.TaxTotal = m.tax.GetTaxTotal()
			if err := m.enterBuybackPhase(ctx, now); err != nil {
				m.log.WithError(err).Warn("failed to enter buyback phase on graduation")
			}
		}
	}
	return nil
}

// enterBuybackPhase implements the buyback_phase entry action of spec
// §4.8: build the spend tracker against taxTotal and subscribe to the
// base token's transfer events so every outbound transfer from the fee
// receiver is recorded as a spend (spec §4.5).
func (m *Machine) enterBuybackPhase(ctx context.Context, now time.Time) error {
	m.buyback = buybacktracker.New(m.ctx.TaxTotal, m.cfg.BuybackRateWindow(), m.cfg.StallAlert())

	scanCtx := ctx
	if m.projectCtx != nil {
		scanCtx = m.projectCtx
	}
	if err := m.startSpendScanner(scanCtx); err != nil {
		return err
	}

	m.lastGraduationCheck = now
	m.lastBuybackPublish = now
	m.setPhase(domain.PhaseBuybackPhase)
	return nil
}

// startSpendScanner subscribes to the base token's Transfer event and
// forwards every transfer whose from address is the buyback fee receiver
// into RecordSpend, mirroring whaledetector.Detector.startCurve's
// subscribe-then-decode shape.
func (m *Machine) startSpendScanner(ctx context.Context) error {
	receiver := receiverAddress(m.cfg)
	baseToken := baseTokenAddress(m.cfg)

	logs, err := m.push.SubscribeLogs(ctx, ethereum.FilterQuery{
		Addresses: []common.Address{baseToken},
		Topics:    [][]common.Hash{{evmabi.TransferTopic}},
	})
	if err != nil {
		return err
	}

	go m.drainSpendLogs(ctx, logs, receiver)
	return nil
}

func (m *Machine) drainSpendLogs(ctx context.Context, logs <-chan types.Log, receiver common.Address) {
	for {
		select {
		case <-ctx.Done():
			return
		case l, ok := <-logs:
			if !ok {
				return
			}
			from, _, value := evmabi.DecodeTransfer(l.Topics, l.Data)
			if from != receiver {
				continue
			}
			rec := domain.SpendRecord{Timestamp: time.Now(), Amount: value, TxHash: l.TxHash.Hex()}
			select {
			case m.spends <- rec:
			default:
				m.log.Warn("spend channel full, dropping spend record")
			}
		}
	}
}

// checkGraduation asks the catalog for the tracked project by id and
// reports whether it has graduated (status available, or an lpAddress has
// appeared where none existed before).
func (m *Machine) checkGraduation(ctx context.Context) (bool, error) {
	descriptor, err := m.catalog.ByID(ctx, m.ctx.Project.Descriptor.ID)
	if err != nil || descriptor == nil {
		return false, err
	}
	return descriptor.Status == domain.CatalogStatusAvailable || descriptor.LPAddress != "", nil
}

// handleBuybackPhase implements the buyback_phase row of spec §4.8: check
// stall every tick, publish status every 10 minutes, poll for graduation
// every 60s as a secondary completion path, and transition to done once
// the budget is fully spent.
func (m *Machine) handleBuybackPhase(ctx context.Context) error {
	now := time.Now()
	status := m.buyback.GetStatus(now)

	if status.Stalled {
		m.notifier.NotifyStall(ctx, m.ctx.Project.Descriptor, status)
	}

	if now.Sub(m.lastBuybackPublish) >= buybackPublishInterval {
		m.lastBuybackPublish = now
		m.emit(domain.EventBuybackUpdate, status)
		m.notifier.NotifyBuybackUpdate(ctx, status)
	}

	if m.buyback.Complete() {
		m.completeProject(ctx)
		return nil
	}

	if now.Sub(m.lastGraduationCheck) >= graduationCheckInterval {
		m.lastGraduationCheck = now
		if graduated, err := m.checkGraduation(ctx); err == nil && graduated {
			m.completeProject(ctx)
		}
	}
	return nil
}

func (m *Machine) completeProject(ctx context.Context) {
	m.notifier.NotifyProjectComplete(ctx, m.ctx.Project.Descriptor)
	m.emit(domain.EventProjectComplete, m.ctx.Project.Descriptor)
	m.setPhase(domain.PhaseDone)
}

// handleDone implements the done state's steady action (spec §4.8): tear
// down the project's monitors and reset the lifecycle context, then loop
// back to discover to pick up the next launch.
func (m *Machine) handleDone(ctx context.Context) error {
	if m.projectCancel != nil {
		m.projectCancel()
		m.projectCancel = nil
	}
	m.projectCtx = nil
	m.tax = nil
	m.buyback = nil
	m.whale = nil
	m.lastTaxRefresh = time.Time{}
	m.lastGraduationCheck = time.Time{}
	m.lastBuybackPublish = time.Time{}

	m.ctx = domain.LifecycleContext{Phase: domain.PhaseDiscover}
	m.setPhase(domain.PhaseDiscover)
	return nil
}

// RecordSpend feeds an observed outbound transfer from the fee receiver
// into the active buyback tracker. Called only from Run's tick loop,
// which drains the spend scanner's channel (drainSpendLogs, started by
// enterBuybackPhase) so m.buyback is mutated from a single goroutine.
func (m *Machine) RecordSpend(rec domain.SpendRecord) error {
	if m.buyback == nil {
		return fmt.Errorf("statemachine: no active buyback tracker")
	}
	m.buyback.RecordSpend(rec, time.Now())
	return nil
}
