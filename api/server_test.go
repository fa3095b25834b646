package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Aidin1998/tradebook/api"
	"github.com/Aidin1998/tradebook/internal/authz"
	"github.com/Aidin1998/tradebook/internal/dashboard"
	"github.com/Aidin1998/tradebook/internal/database"
	"github.com/Aidin1998/tradebook/internal/directory"
	"github.com/Aidin1998/tradebook/internal/refdata"
	"github.com/Aidin1998/tradebook/internal/trading"
	"github.com/Aidin1998/tradebook/internal/validation"
	"github.com/Aidin1998/tradebook/pkg/models"
)

type APISuite struct {
	suite.Suite
	router *gin.Engine
	db     *gorm.DB
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", s.T().Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	s.Require().NoError(database.Migrate(db))
	s.db = db

	s.Require().NoError(db.Create(&models.Book{BookName: "RATES", Active: true}).Error)
	s.Require().NoError(db.Create(&models.Counterparty{Name: "Acme", Active: true}).Error)
	s.Require().NoError(db.Create(&models.User{LoginID: "tjones", UserType: "TRADER", Active: true}).Error)
	s.Require().NoError(db.Create(&models.User{LoginID: "ssmith", UserType: "SUPPORT", Active: true}).Error)

	log := zaptest.NewLogger(s.T())
	dir := directory.NewService(log, db)
	ref := refdata.NewService(log, db)
	auth := authz.NewService(log, dir)
	rules := validation.NewService(log, ref, dir)
	trades := trading.NewService(log, trading.NewStore(db), auth, rules, ref, dir)
	dash := dashboard.NewService(log, db, dir)

	s.router = api.NewServer(log, trades, dash).Router()
}

func (s *APISuite) do(method, path, actor string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-User-Id", actor)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *APISuite) bookingRequest() map[string]any {
	today := time.Now().UTC().Format("2006-01-02")
	maturity := time.Now().UTC().AddDate(1, 0, 0).Format("2006-01-02")
	return map[string]any{
		"trade_date":        today,
		"start_date":        today,
		"maturity_date":     maturity,
		"book_name":         "RATES",
		"counterparty_name": "Acme",
		"trader_user_name":  "tjones",
		"legs": []map[string]any{
			{"pay_receive": "PAY", "leg_type": "Fixed", "notional": "1000000", "rate": "3.5", "currency": "USD"},
			{"pay_receive": "RECEIVE", "leg_type": "Floating", "index_name": "SOFR", "notional": "1000000", "currency": "USD"},
		},
	}
}

func (s *APISuite) TestHealth() {
	rec := s.do(http.MethodGet, "/api/v1/health", "", nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *APISuite) TestCreateAndFetchTrade() {
	rec := s.do(http.MethodPost, "/api/v1/trades", "tjones", s.bookingRequest())
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var created models.Trade
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))
	s.Equal(int64(100001), created.TradeID)
	s.Equal(models.TradeStatusNew, created.TradeStatus)

	rec = s.do(http.MethodGet, fmt.Sprintf("/api/v1/trades/%d", created.TradeID), "ssmith", nil)
	s.Equal(http.StatusOK, rec.Code, rec.Body.String())
}

func (s *APISuite) TestCreateForbiddenForSupport() {
	rec := s.do(http.MethodPost, "/api/v1/trades", "ssmith", s.bookingRequest())
	s.Equal(http.StatusForbidden, rec.Code, rec.Body.String())
}

func (s *APISuite) TestValidationFailureReturnsViolations() {
	body := s.bookingRequest()
	body["start_date"] = time.Now().UTC().AddDate(0, 0, -5).Format("2006-01-02")

	rec := s.do(http.MethodPost, "/api/v1/trades", "tjones", body)
	s.Require().Equal(http.StatusBadRequest, rec.Code, rec.Body.String())

	var resp struct {
		Violations []string `json:"violations"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Contains(resp.Violations, "Start date cannot be before trade date.")
}

func (s *APISuite) TestSearchWithBadQuery() {
	rec := s.do(http.MethodGet, "/api/v1/trades?query=bogusField==1", "tjones", nil)
	s.Equal(http.StatusBadRequest, rec.Code, rec.Body.String())
}

func (s *APISuite) TestTerminateUnknownTrade() {
	rec := s.do(http.MethodPost, "/api/v1/trades/424242/terminate", "tjones", nil)
	s.Equal(http.StatusNotFound, rec.Code, rec.Body.String())
}

func (s *APISuite) TestDashboard() {
	s.do(http.MethodPost, "/api/v1/trades", "tjones", s.bookingRequest())

	// The owning trader sees their population; other viewers own nothing
	rec := s.do(http.MethodGet, "/api/v1/dashboard", "tjones", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var report dashboard.Report
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &report))
	s.Equal(int64(1), report.TotalTrades)

	rec = s.do(http.MethodGet, "/api/v1/dashboard", "ssmith", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &report))
	s.Zero(report.TotalTrades)

	rec = s.do(http.MethodGet, "/api/v1/dashboard?from=2020-01-01&to=2020-12-31", "tjones", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &report))
	s.Zero(report.TotalTrades)

	rec = s.do(http.MethodGet, "/api/v1/dashboard?from=nope", "tjones", nil)
	s.Equal(http.StatusBadRequest, rec.Code, rec.Body.String())
}

func (s *APISuite) TestCriteriaSearch() {
	s.do(http.MethodPost, "/api/v1/trades", "tjones", s.bookingRequest())

	rec := s.do(http.MethodGet, "/api/v1/trades?counterparty=acm&status=NEW", "ssmith", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var page models.Page[models.Trade]
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &page))
	s.Equal(int64(1), page.TotalItems)

	rec = s.do(http.MethodGet, "/api/v1/trades?counterparty=globex", "ssmith", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &page))
	s.Zero(page.TotalItems)

	rec = s.do(http.MethodGet, "/api/v1/trades?date_from=nope", "ssmith", nil)
	s.Equal(http.StatusBadRequest, rec.Code, rec.Body.String())
}

func (s *APISuite) TestMyTrades() {
	s.do(http.MethodPost, "/api/v1/trades", "tjones", s.bookingRequest())

	rec := s.do(http.MethodGet, "/api/v1/my/trades", "tjones", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var page models.Page[models.Trade]
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &page))
	s.Equal(int64(1), page.TotalItems)

	rec = s.do(http.MethodGet, "/api/v1/my/trades", "ssmith", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &page))
	s.Zero(page.TotalItems)
}

func (s *APISuite) TestTradesByBook() {
	s.do(http.MethodPost, "/api/v1/trades", "tjones", s.bookingRequest())

	rec := s.do(http.MethodGet, "/api/v1/books/RATES/trades", "ssmith", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var page models.Page[models.Trade]
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &page))
	s.Equal(int64(1), page.TotalItems)

	rec = s.do(http.MethodGet, "/api/v1/books/NOPE/trades", "ssmith", nil)
	s.Equal(http.StatusNotFound, rec.Code, rec.Body.String())
}
