package portfolio

import "time"

// Summary is the headline view of the paper portfolio
type Summary struct {
	AsOf                    time.Time `json:"as_of"`
	LastSnapshotDate        *string   `json:"last_snapshot_date"`
	LastDecisionDate        *string   `json:"last_decision_date"`
	Inception               string    `json:"inception"`
	InitialCapital          float64   `json:"initial_capital"`
	PortfolioValue          float64   `json:"portfolio_value"`
	Cash                    float64   `json:"cash"`
	HoldingsValue           float64   `json:"holdings_value"`
	CostBasis               float64   `json:"cost_basis"`
	TotalReturnPct          float64   `json:"total_return_pct"`
	RealizedPnL             float64   `json:"realized_pnl"`
	UnrealizedPnL           float64   `json:"unrealized_pnl"`
	PerStockAllocation      float64   `json:"per_stock_allocation"`
	MaxDrawdownPct          float64   `json:"max_drawdown_pct"`
	CurrentDrawdownPct      float64   `json:"current_drawdown_pct"`
	AnnualizedVolatilityPct float64   `json:"annualized_volatility_pct"`
	HoldingsCount           int       `json:"holdings_count"`
	MaxHoldings             int       `json:"max_holdings"`
	AvailableSlots          int       `json:"available_slots"`
	SnapshotCount           int       `json:"snapshot_count"`
}

// Holding is one open position valued at its last known price
type Holding struct {
	BuyDate        time.Time  `json:"buy_date"`
	PriceUpdatedAt *time.Time `json:"price_updated_at,omitempty"`
	Symbol         string     `json:"symbol"`
	Name           string     `json:"name"`
	Sector         string     `json:"sector,omitempty"`
	Industry       string     `json:"industry,omitempty"`
	BuyPrice       float64    `json:"buy_price"`
	CurrentPrice   float64    `json:"current_price"`
	Shares         float64    `json:"shares"`
	CostAmount     float64    `json:"cost_amount"`
	MarketValue    float64    `json:"market_value"`
	UnrealizedPnL  float64    `json:"unrealized_pnl"`
	ReturnPct      float64    `json:"return_pct"`
	AllocationPct  float64    `json:"allocation_pct"`
}

// SectorAllocation groups holdings value by sector
type SectorAllocation struct {
	Sector        string   `json:"sector"`
	Symbols       []string `json:"symbols"`
	MarketValue   float64  `json:"market_value"`
	AllocationPct float64  `json:"allocation_pct"`
}
