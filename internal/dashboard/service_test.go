package dashboard

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Aidin1998/tradebook/internal/database"
	"github.com/Aidin1998/tradebook/internal/directory"
	"github.com/Aidin1998/tradebook/pkg/models"
)

var clock = time.Date(2025, 8, 15, 14, 30, 0, 0, time.UTC)

type DashboardSuite struct {
	suite.Suite
	db      *gorm.DB
	service *Service
	ctx     context.Context
	book    models.Book
	acme    models.Counterparty
	globex  models.Counterparty
	tmason  models.User
	tbrown  models.User
}

func TestDashboardSuite(t *testing.T) {
	suite.Run(t, new(DashboardSuite))
}

func (s *DashboardSuite) SetupTest() {
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", s.T().Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	s.Require().NoError(database.Migrate(db))
	s.db = db
	s.ctx = context.Background()

	s.book = models.Book{BookName: "RATES", Active: true}
	s.Require().NoError(db.Create(&s.book).Error)
	s.acme = models.Counterparty{Name: "Acme", Active: true}
	s.Require().NoError(db.Create(&s.acme).Error)
	s.globex = models.Counterparty{Name: "Globex", Active: true}
	s.Require().NoError(db.Create(&s.globex).Error)

	s.tmason = models.User{LoginID: "tmason", UserType: "TRADER", Active: true}
	s.Require().NoError(db.Create(&s.tmason).Error)
	s.tbrown = models.User{LoginID: "tbrown", UserType: "TRADER", Active: true}
	s.Require().NoError(db.Create(&s.tbrown).Error)
	s.Require().NoError(db.Create(&models.User{LoginID: "ssmith", UserType: "SUPPORT", Active: true}).Error)

	log := zaptest.NewLogger(s.T())
	s.service = NewService(log, db, directory.NewService(log, db)).
		WithClock(func() time.Time { return clock })
}

func (s *DashboardSuite) insertTrade(tradeID int64, status models.TradeStatus, active bool,
	tradeDate time.Time, counterpartyID, traderID uint, notional int64) {
	trade := models.Trade{
		TradeID:        tradeID,
		Version:        1,
		TradeDate:      tradeDate,
		TradeType:      "SWAP",
		TradeStatus:    status,
		Active:         active,
		BookID:         &s.book.ID,
		CounterpartyID: &counterpartyID,
		TraderUserID:   &traderID,
		Legs: []models.TradeLeg{
			{PayReceive: models.PayFlag, LegType: models.LegTypeFixed,
				Notional: decimal.NewFromInt(notional), Currency: "USD"},
		},
	}
	s.Require().NoError(s.db.Create(&trade).Error)
}

func (s *DashboardSuite) today() time.Time {
	return clock.Truncate(24 * time.Hour)
}

func (s *DashboardSuite) TestEmptyPopulation() {
	report, err := s.service.Build(s.ctx, "tmason", nil, nil)
	s.Require().NoError(err)

	s.Zero(report.TotalTrades)
	s.True(report.TotalNotional.IsZero())
	s.Empty(report.ByStatus)
	s.Zero(report.Daily.TradesChangePct)
}

func (s *DashboardSuite) TestUnresolvableActorGetsEmptyReport() {
	s.insertTrade(100001, models.TradeStatusNew, true, s.today(), s.acme.ID, s.tmason.ID, 500)

	report, err := s.service.Build(s.ctx, "nosuchuser", nil, nil)
	s.Require().NoError(err)
	s.Zero(report.TotalTrades)
	s.Empty(report.ByStatus)
}

func (s *DashboardSuite) TestScopedToOwnedTrades() {
	s.insertTrade(100001, models.TradeStatusNew, true, s.today(), s.acme.ID, s.tmason.ID, 1000)
	s.insertTrade(100002, models.TradeStatusNew, true, s.today(), s.globex.ID, s.tbrown.ID, 2000)

	report, err := s.service.Build(s.ctx, "tmason", nil, nil)
	s.Require().NoError(err)

	// Each trader sees only the population they own as trader
	s.Equal(int64(1), report.TotalTrades)
	s.True(report.TotalNotional.Equal(decimal.NewFromInt(1000)),
		"notional: %s", report.TotalNotional)
	s.Require().Len(report.ByCounterparty, 1)
	s.Equal("Acme", report.ByCounterparty[0].Counterparty)

	report, err = s.service.Build(s.ctx, "tbrown", nil, nil)
	s.Require().NoError(err)
	s.Equal(int64(1), report.TotalTrades)
	s.True(report.TotalNotional.Equal(decimal.NewFromInt(2000)))

	// A viewer who owns nothing as trader gets empty aggregates
	report, err = s.service.Build(s.ctx, "ssmith", nil, nil)
	s.Require().NoError(err)
	s.Zero(report.TotalTrades)
}

func (s *DashboardSuite) TestDateWindow() {
	lastWeek := s.today().AddDate(0, 0, -7)
	s.insertTrade(100001, models.TradeStatusNew, true, s.today(), s.acme.ID, s.tmason.ID, 1000)
	s.insertTrade(100002, models.TradeStatusNew, true, lastWeek, s.acme.ID, s.tmason.ID, 2000)

	from := s.today().AddDate(0, 0, -3)
	report, err := s.service.Build(s.ctx, "tmason", &from, nil)
	s.Require().NoError(err)
	s.Equal(int64(1), report.TotalTrades)
	s.True(report.TotalNotional.Equal(decimal.NewFromInt(1000)))

	to := s.today().AddDate(0, 0, -3)
	report, err = s.service.Build(s.ctx, "tmason", nil, &to)
	s.Require().NoError(err)
	s.Equal(int64(1), report.TotalTrades)
	s.True(report.TotalNotional.Equal(decimal.NewFromInt(2000)))
	s.Require().NotNil(report.MostRecentTradeDate)
	s.True(report.MostRecentTradeDate.Equal(lastWeek))

	report, err = s.service.Build(s.ctx, "tmason", &from, &from)
	s.Require().NoError(err)
	s.Zero(report.TotalTrades)
}

func (s *DashboardSuite) TestAggregatesExcludeInactiveAndDeleted() {
	yesterday := s.today().AddDate(0, 0, -1)

	s.insertTrade(100001, models.TradeStatusNew, true, s.today(), s.acme.ID, s.tmason.ID, 1000)
	s.insertTrade(100002, models.TradeStatusAmended, true, yesterday, s.globex.ID, s.tmason.ID, 2000)
	s.insertTrade(100003, models.TradeStatusNew, false, s.today(), s.acme.ID, s.tmason.ID, 4000) // superseded
	s.insertTrade(100004, models.TradeStatusDeleted, true, s.today(), s.acme.ID, s.tmason.ID, 8000)

	report, err := s.service.Build(s.ctx, "tmason", nil, nil)
	s.Require().NoError(err)

	s.Equal(int64(2), report.TotalTrades)
	s.True(report.TotalNotional.Equal(decimal.NewFromInt(3000)),
		"notional: %s", report.TotalNotional)

	statuses := map[string]int64{}
	for _, sc := range report.ByStatus {
		statuses[sc.Status] = sc.Count
	}
	s.Equal(int64(1), statuses["NEW"])
	s.Equal(int64(1), statuses["AMENDED"])
	s.NotContains(statuses, "DELETED")

	s.Require().Len(report.ByCurrency, 1)
	s.Equal("USD", report.ByCurrency[0].Currency)
	s.True(report.ByCurrency[0].TotalNotional.Equal(decimal.NewFromInt(3000)))

	s.Require().NotNil(report.MostRecentTradeDate)
	s.True(report.MostRecentTradeDate.Equal(s.today()),
		"most recent: %s", report.MostRecentTradeDate)
}

func (s *DashboardSuite) TestCounterpartyAndBookGroups() {
	s.insertTrade(100001, models.TradeStatusNew, true, s.today(), s.acme.ID, s.tmason.ID, 100)
	s.insertTrade(100002, models.TradeStatusNew, true, s.today(), s.acme.ID, s.tmason.ID, 100)
	s.insertTrade(100003, models.TradeStatusNew, true, s.today(), s.globex.ID, s.tmason.ID, 100)

	report, err := s.service.Build(s.ctx, "tmason", nil, nil)
	s.Require().NoError(err)

	s.Require().Len(report.ByCounterparty, 2)
	s.Equal("Acme", report.ByCounterparty[0].Counterparty)
	s.Equal(int64(2), report.ByCounterparty[0].Count)

	s.Require().Len(report.TopBooks, 1)
	s.Equal("RATES", report.TopBooks[0].Book)
	s.Equal(int64(3), report.TopBooks[0].Count)
}

func (s *DashboardSuite) TestDailyDeltaAgainstYesterday() {
	yesterday := s.today().AddDate(0, 0, -1)

	s.insertTrade(100001, models.TradeStatusNew, true, s.today(), s.acme.ID, s.tmason.ID, 3000)
	s.insertTrade(100002, models.TradeStatusNew, true, s.today(), s.acme.ID, s.tmason.ID, 3000)
	s.insertTrade(100003, models.TradeStatusNew, true, yesterday, s.acme.ID, s.tmason.ID, 4000)

	report, err := s.service.Build(s.ctx, "tmason", nil, nil)
	s.Require().NoError(err)

	s.Equal(int64(2), report.Daily.TradesToday)
	s.Equal(int64(1), report.Daily.TradesYesterday)
	s.InDelta(100.0, report.Daily.TradesChangePct, 0.001)
	s.InDelta(50.0, report.Daily.NotionalChangePct, 0.001)
}

func (s *DashboardSuite) TestZeroBaselinePolicy() {
	// Activity today against an empty yesterday reads as +100%
	s.insertTrade(100001, models.TradeStatusNew, true, s.today(), s.acme.ID, s.tmason.ID, 1000)

	report, err := s.service.Build(s.ctx, "tmason", nil, nil)
	s.Require().NoError(err)
	s.InDelta(100.0, report.Daily.TradesChangePct, 0.001)
	s.InDelta(100.0, report.Daily.NotionalChangePct, 0.001)

	// No activity on either day reads as 0%
	lastWeek := s.today().AddDate(0, 0, -7)
	s.Require().NoError(s.db.Model(&models.Trade{}).
		Where("trade_id = ?", int64(100001)).
		Update("trade_date", lastWeek).Error)

	report, err = s.service.Build(s.ctx, "tmason", nil, nil)
	s.Require().NoError(err)
	s.Zero(report.Daily.TradesChangePct)
	s.Zero(report.Daily.NotionalChangePct)
}

func TestSafePct(t *testing.T) {
	cases := []struct {
		value, base, want float64
	}{
		{0, 0, 0},
		{5, 0, 100},
		{10, 5, 100},
		{5, 10, -50},
		{10, 10, 0},
	}
	for _, tc := range cases {
		got := safePct(tc.value, tc.base)
		if got != tc.want {
			t.Errorf("safePct(%v, %v) = %v, want %v", tc.value, tc.base, got, tc.want)
		}
	}
}
