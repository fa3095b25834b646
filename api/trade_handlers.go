package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Aidin1998/tradebook/internal/trading"
	"github.com/Aidin1998/tradebook/pkg/models"
)

// actor identifies the requesting user: X-User-Id header first, then the
// user_id query parameter.
func actor(c *gin.Context) string {
	if v := c.GetHeader("X-User-Id"); v != "" {
		return v
	}
	return c.Query("user_id")
}

func tradeID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (s *Server) createTrade(c *gin.Context) {
	var req models.TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	trade, err := s.trades.Create(c.Request.Context(), actor(c), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, trade)
}

func (s *Server) getTrade(c *gin.Context) {
	id, ok := tradeID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trade id"})
		return
	}
	trade, err := s.trades.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (s *Server) getTradeVersions(c *gin.Context) {
	id, ok := tradeID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trade id"})
		return
	}
	versions, err := s.trades.History(c.Request.Context(), actor(c), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

func (s *Server) amendTrade(c *gin.Context) {
	id, ok := tradeID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trade id"})
		return
	}
	var req models.TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	trade, err := s.trades.Amend(c.Request.Context(), actor(c), id, &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (s *Server) terminateTrade(c *gin.Context) {
	s.transition(c, s.trades.Terminate)
}

func (s *Server) cancelTrade(c *gin.Context) {
	s.transition(c, s.trades.Cancel)
}

func (s *Server) deleteTrade(c *gin.Context) {
	s.transition(c, s.trades.Delete)
}

// transition is the shared handler body for terminate, cancel and delete
func (s *Server) transition(c *gin.Context, op func(ctx context.Context, actor string, id int64) (*models.Trade, error)) {
	id, ok := tradeID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trade id"})
		return
	}
	trade, err := op(c.Request.Context(), actor(c), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (s *Server) updateSettlementInstructions(c *gin.Context) {
	id, ok := tradeID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trade id"})
		return
	}
	var req models.SettlementInstructionsUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	trade, err := s.trades.UpdateSettlementInstructions(c.Request.Context(), id, &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

// searchTrades serves both search styles: a query parameter runs the filter
// DSL, otherwise the individual criteria parameters are combined.
func (s *Server) searchTrades(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	if filter := c.Query("query"); filter != "" {
		result, err := s.trades.Search(c.Request.Context(), actor(c), filter, page, size)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	crit := trading.Criteria{
		BookContains:         c.Query("book"),
		CounterpartyContains: c.Query("counterparty"),
		TraderContains:       c.Query("trader"),
		Status:               models.TradeStatus(c.Query("status")),
		SettlementContains:   c.Query("settlement"),
	}
	if raw := c.Query("trade_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trade_id"})
			return
		}
		crit.TradeID = id
	}
	var ok bool
	if crit.DateFrom, ok = dateParam(c, "date_from"); !ok {
		return
	}
	if crit.DateTo, ok = dateParam(c, "date_to"); !ok {
		return
	}

	result, err := s.trades.SearchByCriteria(c.Request.Context(), actor(c), crit, page, size)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// dateParam parses an optional yyyy-mm-dd query parameter. On a malformed
// value it writes the 400 response itself and reports !ok.
func dateParam(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + ", expected yyyy-mm-dd"})
		return nil, false
	}
	return &d, true
}

func (s *Server) myTrades(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	result, err := s.trades.MyTrades(c.Request.Context(), actor(c), page, size)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) tradesByBook(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	result, err := s.trades.TradesByBook(c.Request.Context(), actor(c), c.Param("name"), page, size)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
