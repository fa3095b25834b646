package models

import "github.com/shopspring/decimal"

// TradeRequest is the booking/amendment payload. Dates are ISO-8601
// (yyyy-mm-dd). Reference entities may be given by id or by name/login;
// name lookups are case-insensitive for users.
type TradeRequest struct {
	TradeID int64 `json:"trade_id,omitempty"`

	TradeDate    string `json:"trade_date" binding:"omitempty,datetime=2006-01-02"`
	StartDate    string `json:"start_date" binding:"omitempty,datetime=2006-01-02"`
	MaturityDate string `json:"maturity_date" binding:"omitempty,datetime=2006-01-02"`

	TradeType string `json:"trade_type,omitempty"`

	BookID           *uint  `json:"book_id,omitempty"`
	BookName         string `json:"book_name,omitempty"`
	CounterpartyID   *uint  `json:"counterparty_id,omitempty"`
	CounterpartyName string `json:"counterparty_name,omitempty"`
	TraderUserID     *uint  `json:"trader_user_id,omitempty"`
	TraderUserName   string `json:"trader_user_name,omitempty"`
	InputterUserID   *uint  `json:"inputter_user_id,omitempty"`
	InputterUserName string `json:"inputter_user_name,omitempty"`

	SettlementInstructions string `json:"settlement_instructions,omitempty"`

	Legs []TradeLegRequest `json:"legs"`
}

// TradeLegRequest describes one leg of a booking/amendment payload
type TradeLegRequest struct {
	PayReceive                string           `json:"pay_receive" binding:"omitempty,oneof=PAY RECEIVE"`
	LegType                   string           `json:"leg_type" binding:"omitempty,oneof=Fixed Floating"`
	Notional                  decimal.Decimal  `json:"notional"`
	Rate                      *decimal.Decimal `json:"rate,omitempty"`
	IndexName                 string           `json:"index_name,omitempty"`
	Currency                  string           `json:"currency,omitempty"`
	CalculationPeriodSchedule string           `json:"calculation_period_schedule,omitempty"`
}

// SettlementInstructionsUpdateRequest edits only the settlement instructions
// on the current active version of a trade, without creating a new version.
type SettlementInstructionsUpdateRequest struct {
	PerformedBy            string `json:"performed_by" binding:"required"`
	SettlementInstructions string `json:"settlement_instructions" binding:"required,min=10,max=500"`
}

// Page is a paginated result set
type Page[T any] struct {
	Items      []T   `json:"items"`
	TotalItems int64 `json:"total_items"`
	Page       int   `json:"page"`
	Size       int   `json:"size"`
}
