// Package domain provides core domain models and types.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Action is the side of a ledger event or proposed trade
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// ParseAction normalizes and validates an action string
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(s))); a {
	case ActionBuy, ActionSell:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// LedgerEvent is one immutable BUY or SELL in the append-only ledger.
// For SELL events CostAmount is the original basis of the closed position, not the proceeds.
type LedgerEvent struct {
	Date        time.Time `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
	EventID     string    `json:"event_id"`
	Symbol      string    `json:"symbol"`
	Name        string    `json:"name"`
	Action      Action    `json:"action"`
	Reason      string    `json:"reason"`
	DecisionID  string    `json:"decision_id,omitempty"`
	BuyPrice    *float64  `json:"buy_price,omitempty"`
	RealizedPct *float64  `json:"realized_pct,omitempty"`
	Seq         int64     `json:"seq"`
	Price       float64   `json:"price"`
	CostAmount  float64   `json:"cost_amount"`
}

// Proceeds returns the cash a SELL returned to the portfolio
func (e LedgerEvent) Proceeds() float64 {
	if e.Action != ActionSell || e.BuyPrice == nil || *e.BuyPrice <= 0 {
		return 0
	}
	return Shares(e.CostAmount, *e.BuyPrice) * e.Price
}

// OpenPosition is the materialized row for a currently held symbol
type OpenPosition struct {
	BuyDate        time.Time  `json:"buy_date"`
	PriceUpdatedAt *time.Time `json:"price_updated_at,omitempty"`
	CurrentPrice   *float64   `json:"current_price,omitempty"`
	Symbol         string     `json:"symbol"`
	Name           string     `json:"name"`
	Sector         string     `json:"sector"`
	Industry       string     `json:"industry"`
	Reason         string     `json:"reason"`
	BuyPrice       float64    `json:"buy_price"`
	CostAmount     float64    `json:"cost_amount"`
}

// Shares returns the fractional share count implied by cost and buy price
func (p OpenPosition) Shares() float64 {
	return Shares(p.CostAmount, p.BuyPrice)
}

// LastKnownPrice returns the refreshed price, or the buy price when never refreshed
func (p OpenPosition) LastKnownPrice() float64 {
	if p.CurrentPrice != nil && *p.CurrentPrice > 0 {
		return *p.CurrentPrice
	}
	return p.BuyPrice
}

// Holding is a position as reconstructed by replaying the ledger
type Holding struct {
	BuyDate    time.Time `json:"buy_date"`
	Symbol     string    `json:"symbol"`
	Name       string    `json:"name"`
	BuyPrice   float64   `json:"buy_price"`
	CostAmount float64   `json:"cost_amount"`
}

// Shares returns the fractional share count of the holding
func (h Holding) Shares() float64 {
	return Shares(h.CostAmount, h.BuyPrice)
}

// Shares converts a committed amount into fractional shares
func Shares(costAmount, buyPrice float64) float64 {
	if buyPrice <= 0 {
		return 0
	}
	return costAmount / buyPrice
}

// HoldingSnapshot is one holding's valuation inside a Snapshot
type HoldingSnapshot struct {
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name"`
	BuyPrice   float64 `json:"buy_price"`
	Price      float64 `json:"price"`
	Shares     float64 `json:"shares"`
	CostAmount float64 `json:"cost_amount"`
	Value      float64 `json:"value"`
	ReturnPct  float64 `json:"return_pct"`
	// PriceMissing marks holdings valued at buy price because no quote was found
	PriceMissing bool `json:"price_missing,omitempty"`
}

// Snapshot is the materialized equity-curve row for one calendar date
type Snapshot struct {
	Date           time.Time         `json:"date"`
	MaterializedAt time.Time         `json:"materialized_at"`
	Holdings       []HoldingSnapshot `json:"holdings"`
	PortfolioValue float64           `json:"portfolio_value"`
	Cash           float64           `json:"cash"`
	HoldingsValue  float64           `json:"holdings_value"`
	TotalReturnPct float64           `json:"total_return_pct"`
	RealizedPnL    float64           `json:"realized_pnl"`
}

// DecisionStatus is the terminal state of a decision run
type DecisionStatus string

const (
	DecisionCompleted DecisionStatus = "completed"
	DecisionFailed    DecisionStatus = "failed"
)

// ProposedAction is one trade suggested by the decision proposer
type ProposedAction struct {
	Action   Action `json:"action" yaml:"action"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Name     string `json:"name" yaml:"name"`
	Reason   string `json:"reason" yaml:"reason"`
	Sector   string `json:"sector,omitempty" yaml:"sector,omitempty"`
	Industry string `json:"industry,omitempty" yaml:"industry,omitempty"`
}

// Proposal is the proposer's full answer for one decision date
type Proposal struct {
	Report          json.RawMessage  `json:"report,omitempty" yaml:"-"`
	Summary         string           `json:"summary" yaml:"summary"`
	MarketRegime    string           `json:"market_regime,omitempty" yaml:"market_regime"`
	ConfidenceLevel string           `json:"confidence_level,omitempty" yaml:"confidence_level"`
	RawResponse     string           `json:"-" yaml:"-"`
	Actions         []ProposedAction `json:"actions" yaml:"actions"`
}

// ExecutedAction records a trade that was actually applied, with the amounts used
type ExecutedAction struct {
	Action Action  `json:"action"`
	Symbol string  `json:"symbol"`
	Name   string  `json:"name"`
	Reason string  `json:"reason"`
	Price  float64 `json:"price"`
	Shares float64 `json:"shares"`
	// CostAmount is the cash committed (BUY) or the basis closed (SELL)
	CostAmount float64 `json:"cost_amount"`
	// Proceeds is set for SELL actions only
	Proceeds    float64  `json:"proceeds,omitempty"`
	RealizedPct *float64 `json:"realized_pct,omitempty"`
	// FundedFromProceeds is the part of a BUY paid out of same-day sell proceeds
	FundedFromProceeds float64 `json:"funded_from_proceeds,omitempty"`
	EventID            string  `json:"event_id"`
}

// RejectedAction is a proposed trade that was skipped by a business rule
type RejectedAction struct {
	Action Action `json:"action"`
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// DecisionRecord is the audit row written once per decision date
type DecisionRecord struct {
	Date                time.Time        `json:"date"`
	CreatedAt           time.Time        `json:"created_at"`
	AccuracyEvaluatedAt *time.Time       `json:"accuracy_evaluated_at,omitempty"`
	AccuracyScore       *float64         `json:"accuracy_score,omitempty"`
	AccuracyDetails     *AccuracyDetails `json:"accuracy_details,omitempty"`
	Report              json.RawMessage  `json:"report,omitempty"`
	RunID               string           `json:"run_id"`
	Status              DecisionStatus   `json:"status"`
	ModelName           string           `json:"model_name"`
	Summary             string           `json:"summary"`
	RawResponse         string           `json:"raw_response,omitempty"`
	ErrorMessage        string           `json:"error_message,omitempty"`
	MarketRegime        string           `json:"market_regime,omitempty"`
	ConfidenceLevel     string           `json:"confidence_level,omitempty"`
	Actions             []ExecutedAction `json:"actions"`
	Rejected            []RejectedAction `json:"rejected,omitempty"`
	ID                  int64            `json:"id"`
	ElapsedSeconds      float64          `json:"elapsed_seconds"`
	HasChanges          bool             `json:"has_changes"`
}

// IsHold reports whether the record executed no trades
func (r DecisionRecord) IsHold() bool {
	return len(r.Actions) == 0
}

// ActionScore is the retrospective score of one executed action
type ActionScore struct {
	Action     Action  `json:"action"`
	Symbol     string  `json:"symbol"`
	PriceStart float64 `json:"price_start"`
	PriceEnd   float64 `json:"price_end"`
	ChangePct  float64 `json:"change_pct"`
	Score      float64 `json:"score"`
}

// AccuracyDetails explains how a decision's accuracy score was derived
type AccuracyDetails struct {
	EndDate      time.Time     `json:"end_date"`
	Method       string        `json:"method"` // "actions", "hold" or "unpriceable"
	Actions      []ActionScore `json:"actions,omitempty"`
	Skipped      []string      `json:"skipped,omitempty"`
	DriftPct     *float64      `json:"drift_pct,omitempty"`
	LookbackDays int           `json:"lookback_days"`
}

// DecisionContext is everything handed to the proposer for one decision date
type DecisionContext struct {
	Date               time.Time        `json:"date"`
	Holdings           []HoldingContext `json:"holdings"`
	RecentEvents       []LedgerEvent    `json:"recent_events"`
	Cash               float64          `json:"cash"`
	PortfolioValue     float64          `json:"portfolio_value"`
	RealizedPnL        float64          `json:"realized_pnl"`
	InitialCapital     float64          `json:"initial_capital"`
	PerStockAllocation float64          `json:"per_stock_allocation"`
	MaxHoldings        int              `json:"max_holdings"`
	AvailableSlots     int              `json:"available_slots"`
}

// HoldingContext is a held position with the indicators the proposer sees
type HoldingContext struct {
	BuyDate      time.Time `json:"buy_date"`
	RSI          *float64  `json:"rsi,omitempty"`
	SMA20        *float64  `json:"sma_20,omitempty"`
	Symbol       string    `json:"symbol"`
	Name         string    `json:"name"`
	BuyPrice     float64   `json:"buy_price"`
	CurrentPrice float64   `json:"current_price"`
	Shares       float64   `json:"shares"`
	Value        float64   `json:"value"`
	ReturnPct    float64   `json:"return_pct"`
}

// Capital holds the fixed sizing constants of the paper portfolio
type Capital struct {
	InitialCapital float64
	MaxHoldings    int
}

// PerStockAllocation is the fresh-buy size of one position
func (c Capital) PerStockAllocation() float64 {
	if c.MaxHoldings <= 0 {
		return 0
	}
	return c.InitialCapital / float64(c.MaxHoldings)
}
