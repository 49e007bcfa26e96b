package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Timeframe labels match the market feed's granularity vocabulary.
type Timeframe string

const (
	TF4H  Timeframe = "4h"
	TF1H  Timeframe = "1h"
	TF15M Timeframe = "15m"
	TF1M  Timeframe = "1m"
)

type Candle struct {
	Ts                              int64 // bar open time, unix seconds
	Open, High, Low, Close, Volume float64
}

// CandleSnapshot is an ordered window of bars for one timeframe,
// strictly increasing by Ts.
type CandleSnapshot struct {
	Symbol    string
	Timeframe Timeframe
	Candles   []Candle
}

func (s CandleSnapshot) Latest() Candle {
	if len(s.Candles) == 0 {
		return Candle{}
	}
	return s.Candles[len(s.Candles)-1]
}

// TimeframeSpec declares one timeframe window a consumer wants, and
// whether its absence aborts the consumer's cycle.
type TimeframeSpec struct {
	Timeframe Timeframe
	Bars      int
	Mandatory bool
}

// CredentialClass separates the primary inference tier from the
// secondary tier used only on primary exhaustion.
type CredentialClass string

const (
	ClassPrimary   CredentialClass = "primary"
	ClassSecondary CredentialClass = "secondary"
)

// Credential is the pool's hand-out: identity plus the secret. Health
// bookkeeping stays inside the pool.
type Credential struct {
	ID    string
	Class CredentialClass
	Key   string
}

// Outcome is reported back to the pool after a credential was used.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRateLimited
	OutcomeAuthFailed
	OutcomeError
)

type EntryZone struct {
	Low      float64 `json:"min"`
	High     float64 `json:"max"`
	Priority string  `json:"priority"`
}

func (z EntryZone) Contains(price float64) bool {
	return price >= z.Low && price <= z.High
}

type Target struct {
	Price float64 `json:"price"`
	Label string  `json:"level"`
}

// Directive is the strategic plan the tactical executor trades
// against. Exactly one directive is current at a time; a new one
// replaces the old atomically.
type Directive struct {
	ID           string
	Version      uint64
	CreatedAt    time.Time
	ValidFor     time.Duration
	Bias         string
	Trend        string
	Confidence   int
	EntryZones   []EntryZone
	Targets      []Target
	Invalidation float64
	Rationale    string
	CredentialID string
}

func (d *Directive) Expired(now time.Time) bool {
	if d == nil {
		return true
	}
	return now.After(d.CreatedAt.Add(d.ValidFor))
}

// InZone reports whether price falls inside any entry zone.
func (d *Directive) InZone(price float64) (EntryZone, bool) {
	for _, z := range d.EntryZones {
		if z.Contains(price) {
			return z, true
		}
	}
	return EntryZone{}, false
}

// FirstTarget returns the nearest take-profit level.
func (d *Directive) FirstTarget() float64 {
	if len(d.Targets) == 0 {
		return 0
	}
	return d.Targets[0].Price
}

type Action string

const (
	ActionEnter  Action = "ENTER"
	ActionWait   Action = "WAIT"
	ActionReject Action = "REJECT"
)

// TacticalDecision is one tactical cycle's output. Confidence is an
// integer 0..10; degraded cycles emit WAIT with confidence 0.
type TacticalDecision struct {
	ID          string
	Ts          time.Time
	Action      Action
	Confidence  int
	DirectiveID string
	Price       float64
	Pattern     string
	Reason      string
}

type PositionState string

const (
	PositionFlat PositionState = "FLAT"
	PositionOpen PositionState = "OPEN"
)

// Position is the single paper position for the traded symbol.
type Position struct {
	Symbol      string
	EntryPrice  float64
	Qty         decimal.Decimal
	EntryTime   time.Time
	Stop        float64
	Target      float64
	DirectiveID string
}

// ClosedTrade is the realized form of a position, written to the
// trade ledger.
type ClosedTrade struct {
	ID          string
	Symbol      string
	Qty         decimal.Decimal
	EntryPrice  float64
	ExitPrice   float64
	EntryTime   time.Time
	ExitTime    time.Time
	RealizedPnL decimal.Decimal
	Reason      string
	DirectiveID string
}

// PortfolioBalances is the paper book: base asset, quote currency and
// the marked total.
type PortfolioBalances struct {
	Base       decimal.Decimal
	Quote      decimal.Decimal
	TotalValue decimal.Decimal
	Ts         time.Time
}

// LogRecord is an append-only audit record; never mutated after write.
type LogRecord struct {
	ID        string
	Ts        time.Time
	Level     string
	Component string
	Message   string
	Details   map[string]any
}
