// Package dashboard aggregates a trader's active trade population into
// reporting views: grouped counts, notional sums and day-over-day activity
// deltas. All aggregates are restricted to active, non-deleted versions owned
// by the resolved actor, optionally bounded to a trade-date window.
package dashboard

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Aidin1998/tradebook/internal/authz"
	"github.com/Aidin1998/tradebook/internal/directory"
	"github.com/Aidin1998/tradebook/pkg/models"
)

// StatusCount is a trade count grouped by lifecycle status
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// CurrencyNotional is the summed leg notional grouped by currency
type CurrencyNotional struct {
	Currency      string          `json:"currency"`
	TotalNotional decimal.Decimal `json:"total_notional"`
}

// TypeCount is a trade count grouped by trade type
type TypeCount struct {
	TradeType string `json:"trade_type"`
	Count     int64  `json:"count"`
}

// CounterpartyCount is a trade count grouped by counterparty name
type CounterpartyCount struct {
	Counterparty string `json:"counterparty"`
	Count        int64  `json:"count"`
}

// BookCount is a trade count grouped by book name
type BookCount struct {
	Book  string `json:"book"`
	Count int64  `json:"count"`
}

// DailySummary compares today's booking activity with yesterday's. The
// percentage deltas follow a zero-baseline policy: a zero baseline yields
// 0% when today is also zero and 100% otherwise.
type DailySummary struct {
	TradesToday       int64           `json:"trades_today"`
	TradesYesterday   int64           `json:"trades_yesterday"`
	TradesChangePct   float64         `json:"trades_change_pct"`
	NotionalToday     decimal.Decimal `json:"notional_today"`
	NotionalYesterday decimal.Decimal `json:"notional_yesterday"`
	NotionalChangePct float64         `json:"notional_change_pct"`
}

// Report is the full dashboard view for one trader
type Report struct {
	TotalTrades         int64               `json:"total_trades"`
	TotalNotional       decimal.Decimal     `json:"total_notional"`
	MostRecentTradeDate *time.Time          `json:"most_recent_trade_date,omitempty"`
	ByStatus            []StatusCount       `json:"by_status"`
	ByCurrency          []CurrencyNotional  `json:"by_currency"`
	ByType              []TypeCount         `json:"by_type"`
	ByCounterparty      []CounterpartyCount `json:"by_counterparty"`
	TopBooks            []BookCount         `json:"top_books"`
	Daily               DailySummary        `json:"daily"`
}

// window is the per-request aggregation scope: the owning trader plus an
// optional trade-date range.
type window struct {
	owner uint
	from  *time.Time
	to    *time.Time
}

// Service computes dashboard aggregates
type Service struct {
	logger    *zap.Logger
	db        *gorm.DB
	directory directory.Directory
	now       func() time.Time
}

// NewService creates a new dashboard service
func NewService(logger *zap.Logger, db *gorm.DB, dir directory.Directory) *Service {
	return &Service{logger: logger, db: db, directory: dir, now: time.Now}
}

// WithClock overrides the reporting clock, for tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// scope restricts an aggregate to active, non-deleted versions owned by the
// window's trader, within the window's date bounds.
func (s *Service) scope(ctx context.Context, w window) *gorm.DB {
	q := s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Where("trades.active = ? AND trades.trade_status <> ? AND trades.trader_user_id = ?",
			true, models.TradeStatusDeleted, w.owner)
	return boundDates(q, w)
}

// legScope is the same restriction applied through the leg join, for
// notional sums.
func (s *Service) legScope(ctx context.Context, w window) *gorm.DB {
	q := s.db.WithContext(ctx).
		Model(&models.TradeLeg{}).
		Joins("JOIN trades ON trades.id = trade_legs.trade_row_id").
		Where("trades.active = ? AND trades.trade_status <> ? AND trades.trader_user_id = ?",
			true, models.TradeStatusDeleted, w.owner)
	return boundDates(q, w)
}

func boundDates(q *gorm.DB, w window) *gorm.DB {
	if w.from != nil {
		q = q.Where("trades.trade_date >= ?", *w.from)
	}
	if w.to != nil {
		q = q.Where("trades.trade_date <= ?", *w.to)
	}
	return q
}

// Build assembles the report for an actor over an optional trade-date range.
// An actor that cannot be resolved, or whose role carries no view capability,
// receives an empty report rather than an error.
func (s *Service) Build(ctx context.Context, actor string, from, to *time.Time) (*Report, error) {
	user, err := s.directory.Resolve(ctx, actor)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active {
		return emptyReport(), nil
	}
	role, ok := s.directory.Role(user)
	if !ok || !authz.Allowed(role, models.OperationView) {
		return emptyReport(), nil
	}

	w := window{owner: user.ID, from: from, to: to}
	report := emptyReport()

	if err := s.scope(ctx, w).Count(&report.TotalTrades).Error; err != nil {
		return nil, err
	}
	if report.TotalTrades == 0 {
		return report, nil
	}

	if err := s.fillTotals(ctx, w, report); err != nil {
		return nil, err
	}
	if err := s.fillGroups(ctx, w, report); err != nil {
		return nil, err
	}
	if err := s.fillDaily(ctx, w, report); err != nil {
		return nil, err
	}
	return report, nil
}

func emptyReport() *Report {
	return &Report{
		TotalNotional:  decimal.Zero,
		ByStatus:       []StatusCount{},
		ByCurrency:     []CurrencyNotional{},
		ByType:         []TypeCount{},
		ByCounterparty: []CounterpartyCount{},
		TopBooks:       []BookCount{},
		Daily: DailySummary{
			NotionalToday:     decimal.Zero,
			NotionalYesterday: decimal.Zero,
		},
	}
}

func (s *Service) fillTotals(ctx context.Context, w window, report *Report) error {
	var total decimal.NullDecimal
	err := s.legScope(ctx, w).
		Select("SUM(trade_legs.notional)").
		Scan(&total).Error
	if err != nil {
		return err
	}
	if total.Valid {
		report.TotalNotional = total.Decimal
	}

	var latest []models.Trade
	err = s.scope(ctx, w).
		Select("trades.trade_date").
		Order("trades.trade_date DESC").
		Limit(1).
		Find(&latest).Error
	if err != nil {
		return err
	}
	if len(latest) > 0 {
		d := latest[0].TradeDate
		report.MostRecentTradeDate = &d
	}
	return nil
}

func (s *Service) fillGroups(ctx context.Context, w window, report *Report) error {
	err := s.scope(ctx, w).
		Select("trades.trade_status AS status, COUNT(*) AS count").
		Group("trades.trade_status").
		Order("count DESC").
		Scan(&report.ByStatus).Error
	if err != nil {
		return err
	}

	err = s.legScope(ctx, w).
		Select("trade_legs.currency AS currency, SUM(trade_legs.notional) AS total_notional").
		Group("trade_legs.currency").
		Order("total_notional DESC").
		Scan(&report.ByCurrency).Error
	if err != nil {
		return err
	}

	err = s.scope(ctx, w).
		Select("trades.trade_type AS trade_type, COUNT(*) AS count").
		Group("trades.trade_type").
		Order("count DESC").
		Scan(&report.ByType).Error
	if err != nil {
		return err
	}

	err = s.scope(ctx, w).
		Joins("JOIN counterparties ON counterparties.id = trades.counterparty_id").
		Select("counterparties.name AS counterparty, COUNT(*) AS count").
		Group("counterparties.name").
		Order("count DESC").
		Scan(&report.ByCounterparty).Error
	if err != nil {
		return err
	}

	return s.scope(ctx, w).
		Joins("JOIN books ON books.id = trades.book_id").
		Select("books.book_name AS book, COUNT(*) AS count").
		Group("books.book_name").
		Order("count DESC").
		Limit(5).
		Scan(&report.TopBooks).Error
}

func (s *Service) fillDaily(ctx context.Context, w window, report *Report) error {
	today := s.now().UTC().Truncate(24 * time.Hour)
	yesterday := today.AddDate(0, 0, -1)

	var err error
	report.Daily.TradesToday, report.Daily.NotionalToday, err = s.dayActivity(ctx, w, today)
	if err != nil {
		return err
	}
	report.Daily.TradesYesterday, report.Daily.NotionalYesterday, err = s.dayActivity(ctx, w, yesterday)
	if err != nil {
		return err
	}

	report.Daily.TradesChangePct = safePct(
		float64(report.Daily.TradesToday), float64(report.Daily.TradesYesterday))
	report.Daily.NotionalChangePct = safePct(
		report.Daily.NotionalToday.InexactFloat64(),
		report.Daily.NotionalYesterday.InexactFloat64())
	return nil
}

func (s *Service) dayActivity(ctx context.Context, w window, day time.Time) (int64, decimal.Decimal, error) {
	var count int64
	err := s.scope(ctx, w).
		Where("trades.trade_date = ?", day).
		Count(&count).Error
	if err != nil {
		return 0, decimal.Zero, err
	}

	var notional decimal.NullDecimal
	err = s.legScope(ctx, w).
		Where("trades.trade_date = ?", day).
		Select("SUM(trade_legs.notional)").
		Scan(&notional).Error
	if err != nil {
		return 0, decimal.Zero, err
	}
	if !notional.Valid {
		return count, decimal.Zero, nil
	}
	return count, notional.Decimal, nil
}

// safePct returns the percentage change from base to value. A zero base maps
// to 0% when the value is also zero and 100% otherwise.
func safePct(value, base float64) float64 {
	if base == 0 {
		if value == 0 {
			return 0.0
		}
		return 100.0
	}
	return (value - base) / base * 100.0
}
