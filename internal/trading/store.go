package trading

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Aidin1998/tradebook/internal/query"
	"github.com/Aidin1998/tradebook/pkg/models"
)

// firstTradeID is the first allocated logical trade identifier
const firstTradeID int64 = 100001

// Store is the trade version persistence layer
type Store struct {
	db *gorm.DB
}

// NewStore creates a trade store backed by the given database
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// preloadAll loads the associations a trade version view needs
func preloadAll(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Book").
		Preload("Counterparty").
		Preload("TraderUser").
		Preload("InputterUser").
		Preload("Legs").
		Preload("Legs.Cashflows")
}

// ActiveVersion returns the single active version of a logical trade, or nil
// when the trade id is unknown or has no active version.
func (s *Store) ActiveVersion(ctx context.Context, tradeID int64) (*models.Trade, error) {
	var trade models.Trade
	err := preloadAll(s.db.WithContext(ctx)).
		Where("trade_id = ? AND active = ?", tradeID, true).
		First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

// Versions returns the full version history of a logical trade, oldest first
func (s *Store) Versions(ctx context.Context, tradeID int64) ([]models.Trade, error) {
	var trades []models.Trade
	err := preloadAll(s.db.WithContext(ctx)).
		Where("trade_id = ?", tradeID).
		Order("version ASC").
		Find(&trades).Error
	if err != nil {
		return nil, err
	}
	return trades, nil
}

// NextTradeID allocates the next logical trade identifier
func (s *Store) NextTradeID(ctx context.Context) (int64, error) {
	var max *int64
	err := s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Select("MAX(trade_id)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil || *max < firstTradeID {
		return firstTradeID, nil
	}
	return *max + 1, nil
}

// TradeIDExists reports whether any version exists for the logical trade id
func (s *Store) TradeIDExists(ctx context.Context, tradeID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Where("trade_id = ?", tradeID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Insert persists a new trade version with its legs and cashflows
func (s *Store) Insert(ctx context.Context, trade *models.Trade) error {
	return s.db.WithContext(ctx).Create(trade).Error
}

// Supersede atomically deactivates the given active version and inserts its
// successor. The deactivation carries an optimistic guard on the active flag:
// if another writer got there first the whole transaction rolls back.
func (s *Store) Supersede(ctx context.Context, prior *models.Trade, priorStatus models.TradeStatus, next *models.Trade) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Trade{}).
			Where("id = ? AND active = ?", prior.ID, true).
			Updates(map[string]any{"active": false, "trade_status": priorStatus})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}
		return tx.Create(next).Error
	})
}

// UpdateStatus mutates the status and active flag of the current active
// version in place, with an optimistic guard on the active flag.
func (s *Store) UpdateStatus(ctx context.Context, rowID uint, status models.TradeStatus, active bool) error {
	res := s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Where("id = ? AND active = ?", rowID, true).
		Updates(map[string]any{"trade_status": status, "active": active})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// UpdateSettlementInstructions edits the settlement instructions of an active
// version in place, with the same optimistic guard as Supersede.
func (s *Store) UpdateSettlementInstructions(ctx context.Context, rowID uint, text string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Where("id = ? AND active = ?", rowID, true).
		Update("settlement_instructions", text)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// Search returns the active trade versions matching the predicate, paginated.
// The predicate's clause is pushed down against the joined columns; trades
// with no linked book or counterparty still appear via the left joins.
func (s *Store) Search(ctx context.Context, pred *query.Predicate, page, size int) (*models.Page[models.Trade], error) {
	base := s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Joins("LEFT JOIN books ON books.id = trades.book_id").
		Joins("LEFT JOIN counterparties ON counterparties.id = trades.counterparty_id").
		Where("trades.active = ? AND trades.trade_status <> ?", true, models.TradeStatusDeleted)

	if expr, args := pred.Clause(); expr != "" {
		base = base.Where(expr, args...)
	}

	return paginate(base, page, size)
}

// Criteria is a structured multicriteria filter over active trade versions.
// String fields marked "contains" match case-insensitive substrings; zero
// values mean "any".
type Criteria struct {
	TradeID              int64
	BookName             string
	BookContains         string
	CounterpartyContains string
	TraderUserID         *uint
	TraderContains       string
	Status               models.TradeStatus
	DateFrom             *time.Time
	DateTo               *time.Time
	SettlementContains   string
}

func containsPattern(s string) string {
	return "%" + strings.ToLower(s) + "%"
}

// FindByCriteria returns the active, non-deleted trade versions matching
// every populated criterion, paginated.
func (s *Store) FindByCriteria(ctx context.Context, crit Criteria, page, size int) (*models.Page[models.Trade], error) {
	base := s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Joins("LEFT JOIN books ON books.id = trades.book_id").
		Joins("LEFT JOIN counterparties ON counterparties.id = trades.counterparty_id").
		Joins("LEFT JOIN users ON users.id = trades.trader_user_id").
		Where("trades.active = ? AND trades.trade_status <> ?", true, models.TradeStatusDeleted)

	if crit.TradeID != 0 {
		base = base.Where("trades.trade_id = ?", crit.TradeID)
	}
	if crit.BookName != "" {
		base = base.Where("books.book_name = ?", crit.BookName)
	}
	if crit.BookContains != "" {
		base = base.Where("LOWER(books.book_name) LIKE ?", containsPattern(crit.BookContains))
	}
	if crit.CounterpartyContains != "" {
		base = base.Where("LOWER(counterparties.name) LIKE ?", containsPattern(crit.CounterpartyContains))
	}
	if crit.TraderUserID != nil {
		base = base.Where("trades.trader_user_id = ?", *crit.TraderUserID)
	}
	if crit.TraderContains != "" {
		base = base.Where("LOWER(users.login_id) LIKE ?", containsPattern(crit.TraderContains))
	}
	if crit.Status != "" {
		base = base.Where("trades.trade_status = ?", crit.Status)
	}
	if crit.DateFrom != nil {
		base = base.Where("trades.trade_date >= ?", *crit.DateFrom)
	}
	if crit.DateTo != nil {
		base = base.Where("trades.trade_date <= ?", *crit.DateTo)
	}
	if crit.SettlementContains != "" {
		base = base.Where("LOWER(trades.settlement_instructions) LIKE ?", containsPattern(crit.SettlementContains))
	}

	return paginate(base, page, size)
}

// paginate counts the filtered population, then loads one page with the full
// association set, ordered by logical trade id.
func paginate(base *gorm.DB, page, size int) (*models.Page[models.Trade], error) {
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}

	var trades []models.Trade
	err := preloadAll(base.Session(&gorm.Session{})).
		Order("trades.trade_id ASC").
		Offset(page * size).
		Limit(size).
		Find(&trades).Error
	if err != nil {
		return nil, err
	}

	return &models.Page[models.Trade]{
		Items:      trades,
		TotalItems: total,
		Page:       page,
		Size:       size,
	}, nil
}
