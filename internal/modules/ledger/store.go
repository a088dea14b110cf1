package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/papertrail/internal/database"
	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/pkg/formulas"
	"github.com/rs/zerolog"
)

// BuyRequest describes a position to open
type BuyRequest struct {
	Date       time.Time
	Symbol     string
	Name       string
	Reason     string
	Sector     string
	Industry   string
	DecisionID string
	Price      float64
	CostAmount float64
}

// SellRequest describes a position to close
type SellRequest struct {
	Date       time.Time
	Symbol     string
	Reason     string
	DecisionID string
	Price      float64
}

// Store applies trades to the ledger. Each trade appends exactly one event
// and updates open_positions in the same transaction.
type Store struct {
	ledgerDB    *sql.DB
	events      *EventRepository
	positions   *PositionRepository
	maxHoldings int
	clock       domain.Clock
	log         zerolog.Logger
}

// NewStore creates a new ledger store
func NewStore(
	ledgerDB *sql.DB,
	events *EventRepository,
	positions *PositionRepository,
	maxHoldings int,
	clock domain.Clock,
	log zerolog.Logger,
) *Store {
	return &Store{
		ledgerDB:    ledgerDB,
		events:      events,
		positions:   positions,
		maxHoldings: maxHoldings,
		clock:       clock,
		log:         log.With().Str("service", "ledger_store").Logger(),
	}
}

// Events returns the underlying event repository
func (s *Store) Events() *EventRepository {
	return s.events
}

// Positions returns the underlying position repository
func (s *Store) Positions() *PositionRepository {
	return s.positions
}

// RecordBuy opens a position and appends the BUY event
func (s *Store) RecordBuy(ctx context.Context, req BuyRequest) (*domain.LedgerEvent, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	now := s.clock.Now()
	date := domain.Day(req.Date)

	event := domain.LedgerEvent{
		Symbol:     symbol,
		Name:       req.Name,
		Action:     domain.ActionBuy,
		Price:      req.Price,
		Date:       date,
		Reason:     req.Reason,
		CostAmount: formulas.RoundMoney(req.CostAmount),
		DecisionID: req.DecisionID,
		CreatedAt:  now,
	}
	if err := Validate(event); err != nil {
		return nil, err
	}

	err := database.WithTransaction(s.ledgerDB, func(tx *sql.Tx) error {
		existing, err := s.positions.getBySymbol(ctx, tx, symbol)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %s", ErrAlreadyHeld, symbol)
		}

		if s.maxHoldings > 0 {
			count, err := s.positions.count(ctx, tx)
			if err != nil {
				return err
			}
			if count >= s.maxHoldings {
				return fmt.Errorf("%w: %d/%d", ErrCapacity, count, s.maxHoldings)
			}
		}

		price := req.Price
		if err := s.positions.Insert(ctx, tx, domain.OpenPosition{
			Symbol:         symbol,
			Name:           req.Name,
			BuyPrice:       req.Price,
			BuyDate:        date,
			CurrentPrice:   &price,
			PriceUpdatedAt: &now,
			CostAmount:     event.CostAmount,
			Sector:         req.Sector,
			Industry:       req.Industry,
			Reason:         req.Reason,
		}); err != nil {
			return err
		}

		return s.events.Append(ctx, tx, &event)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("symbol", symbol).
		Float64("price", req.Price).
		Float64("cost_amount", event.CostAmount).
		Str("date", domain.FormatDate(date)).
		Msg("BUY recorded")

	return &event, nil
}

// RecordSell closes a position and appends the SELL event.
// The event carries the position's original cost basis, never the proceeds.
func (s *Store) RecordSell(ctx context.Context, req SellRequest) (*domain.LedgerEvent, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Price <= 0 {
		return nil, fmt.Errorf("%w: SELL %s price must be positive", ErrInvalidEvent, symbol)
	}

	var event domain.LedgerEvent
	err := database.WithTransaction(s.ledgerDB, func(tx *sql.Tx) error {
		position, err := s.positions.getBySymbol(ctx, tx, symbol)
		if err != nil {
			return err
		}
		if position == nil {
			return fmt.Errorf("%w: %s", ErrNotHeld, symbol)
		}

		buyPrice := position.BuyPrice
		realizedPct := formulas.Round(formulas.PercentChange(buyPrice, req.Price), 2)
		event = domain.LedgerEvent{
			Symbol:      symbol,
			Name:        position.Name,
			Action:      domain.ActionSell,
			Price:       req.Price,
			Date:        domain.Day(req.Date),
			Reason:      req.Reason,
			CostAmount:  position.CostAmount,
			BuyPrice:    &buyPrice,
			RealizedPct: &realizedPct,
			DecisionID:  req.DecisionID,
			CreatedAt:   s.clock.Now(),
		}

		if err := s.positions.Delete(ctx, tx, symbol); err != nil {
			return err
		}
		return s.events.Append(ctx, tx, &event)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("symbol", symbol).
		Float64("price", req.Price).
		Float64("proceeds", event.Proceeds()).
		Float64("realized_pct", *event.RealizedPct).
		Msg("SELL recorded")

	return &event, nil
}

// RebuildPositions replaces open_positions with holdings reconstructed from the ledger.
// Refreshed prices survive for symbols that are still held with the same buy date.
func (s *Store) RebuildPositions(ctx context.Context, holdings []domain.Holding) error {
	return database.WithTransaction(s.ledgerDB, func(tx *sql.Tx) error {
		current, err := s.positions.list(ctx, tx)
		if err != nil {
			return err
		}
		bySymbol := make(map[string]domain.OpenPosition, len(current))
		for _, p := range current {
			bySymbol[p.Symbol] = p
		}

		rebuilt := make([]domain.OpenPosition, 0, len(holdings))
		for _, h := range holdings {
			p := domain.OpenPosition{
				Symbol:     h.Symbol,
				Name:       h.Name,
				BuyPrice:   h.BuyPrice,
				BuyDate:    h.BuyDate,
				CostAmount: h.CostAmount,
			}
			if prev, ok := bySymbol[h.Symbol]; ok && prev.BuyDate.Equal(h.BuyDate) {
				p.CurrentPrice = prev.CurrentPrice
				p.PriceUpdatedAt = prev.PriceUpdatedAt
				p.Sector = prev.Sector
				p.Industry = prev.Industry
				p.Reason = prev.Reason
			}
			rebuilt = append(rebuilt, p)
		}

		return s.positions.ReplaceAll(ctx, tx, rebuilt)
	})
}
