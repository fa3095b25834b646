package validation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Aidin1998/tradebook/pkg/models"
)

type fakeRefData struct {
	books          map[string]*models.Book
	counterparties map[string]*models.Counterparty
}

func (f *fakeRefData) BookByID(_ context.Context, id uint) (*models.Book, error) {
	for _, b := range f.books {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, nil
}

func (f *fakeRefData) BookByName(_ context.Context, name string) (*models.Book, error) {
	return f.books[name], nil
}

func (f *fakeRefData) CounterpartyByID(_ context.Context, id uint) (*models.Counterparty, error) {
	for _, cp := range f.counterparties {
		if cp.ID == id {
			return cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRefData) CounterpartyByName(_ context.Context, name string) (*models.Counterparty, error) {
	return f.counterparties[name], nil
}

type fakeDirectory struct {
	users map[string]*models.User
}

func (f *fakeDirectory) FindByID(_ context.Context, id uint) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeDirectory) FindByLoginID(_ context.Context, login string) (*models.User, error) {
	return f.users[strings.ToLower(login)], nil
}

func (f *fakeDirectory) Resolve(ctx context.Context, identifier string) (*models.User, error) {
	return f.FindByLoginID(ctx, identifier)
}

func (f *fakeDirectory) Role(user *models.User) (models.Role, bool) {
	if user == nil || user.UserType == "" {
		return "", false
	}
	return models.Role(user.UserType), true
}

var fixedNow = time.Date(2025, 8, 15, 10, 0, 0, 0, time.UTC)

func newRuleEngine(t *testing.T) *Service {
	ref := &fakeRefData{
		books: map[string]*models.Book{
			"RATES":  {ID: 1, BookName: "RATES", Active: true},
			"CLOSED": {ID: 2, BookName: "CLOSED", Active: false},
		},
		counterparties: map[string]*models.Counterparty{
			"Acme":    {ID: 1, Name: "Acme", Active: true},
			"Defunct": {ID: 2, Name: "Defunct", Active: false},
		},
	}
	dir := &fakeDirectory{
		users: map[string]*models.User{
			"tjones": {ID: 1, LoginID: "tjones", UserType: "TRADER", Active: true},
			"gone":   {ID: 2, LoginID: "gone", UserType: "TRADER", Active: false},
		},
	}
	return NewService(zaptest.NewLogger(t), ref, dir).
		WithClock(func() time.Time { return fixedNow })
}

func rate(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func validRequest() *models.TradeRequest {
	return &models.TradeRequest{
		TradeDate:        "2025-08-10",
		StartDate:        "2025-08-12",
		MaturityDate:     "2026-08-12",
		BookName:         "RATES",
		CounterpartyName: "Acme",
		TraderUserName:   "tjones",
		Legs: []models.TradeLegRequest{
			{
				PayReceive: models.PayFlag,
				LegType:    models.LegTypeFixed,
				Notional:   decimal.NewFromInt(1_000_000),
				Rate:       rate("3.5"),
				Currency:   "USD",
			},
			{
				PayReceive: models.ReceiveFlag,
				LegType:    models.LegTypeFloating,
				IndexName:  "SOFR",
				Notional:   decimal.NewFromInt(1_000_000),
				Currency:   "USD",
			},
		},
	}
}

func TestValidTradePasses(t *testing.T) {
	result := newRuleEngine(t).ValidateTrade(context.Background(), validRequest())
	assert.True(t, result.OK(), "violations: %v", result.Violations())
}

func TestDateOrderingViolationsAccumulate(t *testing.T) {
	req := validRequest()
	req.TradeDate = "2025-08-10"
	req.StartDate = "2025-08-05"
	req.MaturityDate = "2025-08-01"

	result := newRuleEngine(t).ValidateTrade(context.Background(), req)
	require.False(t, result.OK())
	assert.Contains(t, result.Violations(), "Start date cannot be before trade date.")
	assert.Contains(t, result.Violations(), "Maturity date cannot be before start date.")
	assert.Contains(t, result.Violations(), "Maturity date cannot be before trade date.")
}

func TestTradeDateAgeCutoff(t *testing.T) {
	engine := newRuleEngine(t)

	req := validRequest()
	req.TradeDate = "2025-07-10" // 36 days before the fixed clock
	req.StartDate = "2025-08-12"

	result := engine.ValidateTrade(context.Background(), req)
	assert.Contains(t, result.Violations(), "Trade date cannot be more than 30 days in the past.")

	req.TradeDate = "2025-07-20" // within the window
	result = engine.ValidateTrade(context.Background(), req)
	assert.NotContains(t, result.Violations(), "Trade date cannot be more than 30 days in the past.")
}

func TestCrossLegRulesSkippedUnlessExactlyTwoLegs(t *testing.T) {
	engine := newRuleEngine(t)

	for _, legCount := range []int{0, 1, 3} {
		req := validRequest()
		req.MaturityDate = "" // would violate with two legs
		legs := make([]models.TradeLegRequest, legCount)
		for i := range legs {
			legs[i] = models.TradeLegRequest{PayReceive: models.PayFlag, LegType: models.LegTypeFixed, Rate: rate("1")}
		}
		req.Legs = legs

		result := engine.ValidateTrade(context.Background(), req)
		assert.NotContains(t, result.Violations(), "Trade maturity date must be provided.", "legs=%d", legCount)
		assert.NotContains(t, result.Violations(), "Legs must have opposite pay/receive flags.", "legs=%d", legCount)
	}
}

func TestMaturityRequiredWithTwoLegs(t *testing.T) {
	req := validRequest()
	req.MaturityDate = ""

	result := newRuleEngine(t).ValidateTrade(context.Background(), req)
	assert.Contains(t, result.Violations(), "Trade maturity date must be provided.")
}

func TestSamePayReceiveFlagsRejected(t *testing.T) {
	req := validRequest()
	req.Legs[1].PayReceive = models.PayFlag

	result := newRuleEngine(t).ValidateTrade(context.Background(), req)
	assert.Contains(t, result.Violations(), "Legs must have opposite pay/receive flags.")
}

func TestLegTypeFieldRequirements(t *testing.T) {
	req := validRequest()
	req.Legs[0].Rate = nil
	req.Legs[1].IndexName = ""

	result := newRuleEngine(t).ValidateTrade(context.Background(), req)
	assert.Contains(t, result.Violations(), "leg1: fixed leg must have a valid rate.")
	assert.Contains(t, result.Violations(), "leg2: floating leg must have an index specified.")
}

func TestReferenceEntityStatusRules(t *testing.T) {
	engine := newRuleEngine(t)

	req := validRequest()
	req.BookName = "CLOSED"
	result := engine.ValidateTrade(context.Background(), req)
	assert.Contains(t, result.Violations(), "Book must exist and be active.")

	req = validRequest()
	req.BookName = "NOSUCH"
	result = engine.ValidateTrade(context.Background(), req)
	assert.Contains(t, result.Violations(), "Book must exist and be active.")

	req = validRequest()
	req.CounterpartyName = "Defunct"
	result = engine.ValidateTrade(context.Background(), req)
	assert.Contains(t, result.Violations(), "Counterparty must exist and be active.")

	req = validRequest()
	req.TraderUserName = "gone"
	result = engine.ValidateTrade(context.Background(), req)
	assert.Contains(t, result.Violations(), "Trader user must exist and be active.")
}

func TestAbsentReferencesAreSkipped(t *testing.T) {
	req := validRequest()
	req.BookName = ""
	req.CounterpartyName = ""
	req.TraderUserName = ""

	result := newRuleEngine(t).ValidateTrade(context.Background(), req)
	assert.True(t, result.OK(), "violations: %v", result.Violations())
}

func TestSettlementInstructionsConstraints(t *testing.T) {
	assert.True(t, ValidateSettlementInstructions("Pay to account 123-456, ref: SWAP/2025").OK())

	short := ValidateSettlementInstructions("too short")
	assert.False(t, short.OK())

	long := ValidateSettlementInstructions(strings.Repeat("x", 501))
	assert.False(t, long.OK())

	badChars := ValidateSettlementInstructions("wire funds to acct #42 @ HQ!")
	assert.False(t, badChars.OK())
	assert.Contains(t, badChars.Violations(), "Settlement instructions contain invalid characters.")
}
