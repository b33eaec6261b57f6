package api

import (
	"math/big"
	"time"

	"launchsentinel/internal/domain"
)

// bigString renders a *big.Int as a decimal string, never as a bare JSON
// number, so double-precision JSON clients cannot lose precision on large
// token amounts (spec §6).
func bigString(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

type taxDTO struct {
	NetInflow   *string `json:"netInflow"`
	BalanceDiff *string `json:"balanceDiff"`
}

func newTaxDTO(c domain.TaxCounters) *taxDTO {
	return &taxDTO{
		NetInflow:   bigString(c.NetInflow()),
		BalanceDiff: bigString(c.BalanceDiff()),
	}
}

type buybackDTO struct {
	SpentTotal   *string  `json:"spentTotal"`
	Progress     float64  `json:"progress"`
	EtaHours     *float64 `json:"etaHours"`
	RatePerHour  float64  `json:"ratePerHour,omitempty"`
	LastTxAmount *string  `json:"lastTxAmount,omitempty"`
}

func newBuybackDTO(s domain.BuybackStatus) *buybackDTO {
	return &buybackDTO{
		SpentTotal:   bigString(s.SpentTotal),
		Progress:     s.Progress,
		EtaHours:     s.EtaHours,
		RatePerHour:  s.RatePerHour,
		LastTxAmount: bigString(s.LastTxAmount),
	}
}

type tradeDTO struct {
	Direction     domain.TradeDirection `json:"direction"`
	AmountVirtual *string               `json:"amountVirtual"`
	AmountToken   *string               `json:"amountToken"`
	Trader        string                `json:"trader"`
	TxHash        string                `json:"txHash"`
	BlockNumber   uint64                `json:"blockNumber"`
	Timestamp     time.Time             `json:"timestamp"`
}

func newTradeDTO(t domain.WhaleTrade) tradeDTO {
	return tradeDTO{
		Direction:     t.Direction,
		AmountVirtual: bigString(t.AmountVirtual),
		AmountToken:   bigString(t.AmountToken),
		Trader:        t.Trader,
		TxHash:        t.TxHash,
		BlockNumber:   t.BlockNumber,
		Timestamp:     t.Timestamp,
	}
}
