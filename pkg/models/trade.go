package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeStatus is the lifecycle status of a trade version
type TradeStatus string

const (
	TradeStatusNew        TradeStatus = "NEW"
	TradeStatusAmended    TradeStatus = "AMENDED"
	TradeStatusTerminated TradeStatus = "TERMINATED"
	TradeStatusCancelled  TradeStatus = "CANCELLED"
	TradeStatusDeleted    TradeStatus = "DELETED"
)

// Terminal reports whether no further lifecycle operation is permitted
func (s TradeStatus) Terminal() bool {
	switch s {
	case TradeStatusTerminated, TradeStatusCancelled, TradeStatusDeleted:
		return true
	}
	return false
}

// Role is the resolved role of an actor
type Role string

const (
	RoleTrader       Role = "TRADER"
	RoleSales        Role = "SALES"
	RoleMiddleOffice Role = "MIDDLE_OFFICE"
	RoleSupport      Role = "SUPPORT"
)

// Operation is a lifecycle operation gated by the capability matrix
type Operation string

const (
	OperationCreate    Operation = "CREATE"
	OperationAmend     Operation = "AMEND"
	OperationTerminate Operation = "TERMINATE"
	OperationCancel    Operation = "CANCEL"
	OperationView      Operation = "VIEW"

	// OperationDelete is not in the capability table (deletion is gated by
	// the cancel capability) but keeps deletes distinguishable in metrics.
	OperationDelete Operation = "DELETE"
)

// Pay/receive flags on a trade leg
const (
	PayFlag     = "PAY"
	ReceiveFlag = "RECEIVE"
)

// Leg rate types
const (
	LegTypeFixed    = "Fixed"
	LegTypeFloating = "Floating"
)

// Book represents a trading book
type Book struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	BookName   string    `json:"book_name" gorm:"uniqueIndex" validate:"required,max=100"`
	CostCenter string    `json:"cost_center" validate:"omitempty,max=100"`
	Active     bool      `json:"active" gorm:"default:true"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Counterparty represents a trading counterparty
type Counterparty struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"uniqueIndex" validate:"required,max=100"`
	Active    bool      `json:"active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User represents an application user (actor)
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	LoginID   string    `json:"login_id" gorm:"uniqueIndex" validate:"required,min=3,max=30"`
	FirstName string    `json:"first_name" validate:"omitempty,max=50"`
	LastName  string    `json:"last_name" validate:"omitempty,max=50"`
	UserType  string    `json:"user_type"` // TRADER, SALES, MIDDLE_OFFICE, SUPPORT
	Active    bool      `json:"active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Trade represents one immutable version of a logical trade.
// All versions of the same logical trade share TradeID; at most one row per
// TradeID has Active = true.
type Trade struct {
	ID      uint      `json:"id" gorm:"primaryKey"`
	TradeID int64     `json:"trade_id" gorm:"index:idx_trade_version,unique,priority:1"`
	Version int       `json:"version" gorm:"index:idx_trade_version,unique,priority:2"`
	UTI     uuid.UUID `json:"uti" gorm:"type:uuid"` // unique trade identifier, carried across versions

	TradeDate    time.Time `json:"trade_date" gorm:"index"`
	StartDate    time.Time `json:"start_date"`
	MaturityDate time.Time `json:"maturity_date"`

	TradeType   string      `json:"trade_type" gorm:"default:SWAP"`
	TradeStatus TradeStatus `json:"trade_status" gorm:"index"`
	Active      bool        `json:"active" gorm:"index"`

	BookID         *uint         `json:"book_id" gorm:"index"`
	Book           *Book         `json:"book,omitempty"`
	CounterpartyID *uint         `json:"counterparty_id" gorm:"index"`
	Counterparty   *Counterparty `json:"counterparty,omitempty"`
	TraderUserID   *uint         `json:"trader_user_id" gorm:"index"`
	TraderUser     *User         `json:"trader_user,omitempty"`
	InputterUserID *uint         `json:"inputter_user_id"`
	InputterUser   *User         `json:"inputter_user,omitempty"`

	SettlementInstructions string `json:"settlement_instructions" gorm:"type:text"`

	Legs []TradeLeg `json:"legs" gorm:"foreignKey:TradeRowID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TradeLeg is one of the two cash-flow-generating sides of a trade version.
// Legs are owned by their version row and are never shared across versions.
type TradeLeg struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	TradeRowID uint `json:"-" gorm:"index"`

	PayReceive string           `json:"pay_receive"` // PAY, RECEIVE
	LegType    string           `json:"leg_type"`    // Fixed, Floating
	Notional   decimal.Decimal  `json:"notional" gorm:"type:decimal(18,2)"`
	Rate       *decimal.Decimal `json:"rate,omitempty" gorm:"type:decimal(12,8)"` // required for Fixed
	IndexName  string           `json:"index_name,omitempty"`                     // required for Floating
	Currency   string           `json:"currency"`

	CalculationPeriodSchedule string `json:"calculation_period_schedule"` // 1M, 3M, 6M, 1Y

	Cashflows []Cashflow `json:"cashflows,omitempty" gorm:"foreignKey:LegID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Cashflow is a generated payment on a leg of a trade version
type Cashflow struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	LegID       uint            `json:"-" gorm:"index"`
	PaymentDate time.Time       `json:"payment_date"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(18,2)"`
	CreatedAt   time.Time       `json:"created_at"`
}
