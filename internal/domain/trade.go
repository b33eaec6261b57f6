package domain

import (
	"math/big"
	"time"
)

// TradeDirection is buy or sell, as seen from the pool's perspective.
type TradeDirection string

const (
	TradeBuy  TradeDirection = "buy"
	TradeSell TradeDirection = "sell"
)

// WhaleTrade is one large trade emitted by the swap detector.
type WhaleTrade struct {
	Direction     TradeDirection
	AmountVirtual *big.Int // base-token amount
	AmountToken   *big.Int // project-token amount, may be zero in curve mode
	Trader        string
	TxHash        string // primary key for dedup
	BlockNumber   uint64
	Timestamp     time.Time
}

// SpendRecord is one outbound transfer from the fee receiver, observed by
// the buyback tracker.
type SpendRecord struct {
	Timestamp time.Time
	Amount    *big.Int
	TxHash    string
}

// BuybackStatus is the buyback tracker's derived state at a point in time
// (spec §4.5). RatePerHour and EtaHours are display-scale floats; nil
// EtaHours means infinite (rate is zero).
type BuybackStatus struct {
	SpentTotal   *big.Int
	RatePerHour  float64
	Remaining    *big.Int
	EtaHours     *float64 // nil means ∞
	Progress     float64  // percent, capped at 100
	LastTxAmount *big.Int
	Stalled      bool
}
