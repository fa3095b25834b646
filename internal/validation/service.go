// Package validation implements the trade business rule engine. Evaluation is
// pure apart from read-only reference lookups: every rule group runs and every
// violation is accumulated, never short-circuited.
package validation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Aidin1998/tradebook/internal/directory"
	"github.com/Aidin1998/tradebook/internal/refdata"
	"github.com/Aidin1998/tradebook/pkg/metrics"
	"github.com/Aidin1998/tradebook/pkg/models"
)

const dateLayout = "2006-01-02"

// maxTradeDateAge is how far in the past a trade date may lie at booking time
const maxTradeDateAge = 30 * 24 * time.Hour

var settlementInstructionsPattern = regexp.MustCompile(`^[a-zA-Z0-9 .,:/()\-\n]+$`)

// Result accumulates rule violations in evaluation order
type Result struct {
	violations []string
}

// OK reports whether no rule was violated
func (r *Result) OK() bool { return len(r.violations) == 0 }

// Violations returns the ordered violation messages
func (r *Result) Violations() []string { return r.violations }

func (r *Result) add(message string) {
	if strings.TrimSpace(message) != "" {
		r.violations = append(r.violations, message)
	}
}

// Service is the rule engine
type Service struct {
	logger    *zap.Logger
	refdata   refdata.ReferenceData
	directory directory.Directory
	now       func() time.Time
}

// NewService creates a new rule engine
func NewService(logger *zap.Logger, ref refdata.ReferenceData, dir directory.Directory) *Service {
	return &Service{logger: logger, refdata: ref, directory: dir, now: time.Now}
}

// WithClock overrides the evaluation clock, for tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ValidateTrade runs all rule groups against a trade candidate and returns
// every violation found. The caller decides whether to reject the operation.
func (s *Service) ValidateTrade(ctx context.Context, req *models.TradeRequest) *Result {
	result := &Result{}
	s.applyDateRules(req, result)
	s.applyCrossLegRules(req, result)
	s.applyEntityStatusRules(ctx, req, result)
	metrics.ValidationViolations.Observe(float64(len(result.violations)))
	return result
}

// ValidateSettlementInstructions checks the length and character constraints
// on the settlement-instruction carve-out path.
func ValidateSettlementInstructions(text string) *Result {
	result := &Result{}
	if n := len(text); n < 10 || n > 500 {
		result.add("Settlement instructions must be between 10 and 500 characters.")
	}
	if text != "" && !settlementInstructionsPattern.MatchString(text) {
		result.add("Settlement instructions contain invalid characters.")
	}
	return result
}

func (s *Service) applyDateRules(req *models.TradeRequest, result *Result) {
	tradeDate := parseDate(req.TradeDate)
	startDate := parseDate(req.StartDate)
	maturityDate := parseDate(req.MaturityDate)

	if tradeDate != nil && startDate != nil && startDate.Before(*tradeDate) {
		result.add("Start date cannot be before trade date.")
	}
	if startDate != nil && maturityDate != nil && maturityDate.Before(*startDate) {
		result.add("Maturity date cannot be before start date.")
	}
	if tradeDate != nil && maturityDate != nil && maturityDate.Before(*tradeDate) {
		result.add("Maturity date cannot be before trade date.")
	}
	if tradeDate != nil {
		cutoff := s.now().UTC().Truncate(24 * time.Hour).Add(-maxTradeDateAge)
		if tradeDate.Before(cutoff) {
			result.add("Trade date cannot be more than 30 days in the past.")
		}
	}
}

// applyCrossLegRules runs only when exactly two legs are present; any other
// leg count skips the group entirely.
func (s *Service) applyCrossLegRules(req *models.TradeRequest, result *Result) {
	if len(req.Legs) != 2 {
		return
	}

	if parseDate(req.MaturityDate) == nil {
		result.add("Trade maturity date must be provided.")
	}

	leg1, leg2 := req.Legs[0], req.Legs[1]
	if leg1.PayReceive != "" && leg2.PayReceive != "" &&
		strings.EqualFold(leg1.PayReceive, leg2.PayReceive) {
		result.add("Legs must have opposite pay/receive flags.")
	}

	s.validateLegTypeAndFields("leg1", leg1, result)
	s.validateLegTypeAndFields("leg2", leg2, result)
}

func (s *Service) validateLegTypeAndFields(label string, leg models.TradeLegRequest, result *Result) {
	switch strings.ToLower(leg.LegType) {
	case "floating":
		if strings.TrimSpace(leg.IndexName) == "" {
			result.add(fmt.Sprintf("%s: floating leg must have an index specified.", label))
		}
	case "fixed":
		if leg.Rate == nil {
			result.add(fmt.Sprintf("%s: fixed leg must have a valid rate.", label))
		}
	}
}

// applyEntityStatusRules checks that every referenced entity exists and is
// active. References given neither by id nor by name are skipped.
func (s *Service) applyEntityStatusRules(ctx context.Context, req *models.TradeRequest, result *Result) {
	if req.BookID != nil {
		book, err := s.refdata.BookByID(ctx, *req.BookID)
		if err != nil || book == nil || !book.Active {
			result.add("Book must exist and be active.")
		}
	} else if strings.TrimSpace(req.BookName) != "" {
		book, err := s.refdata.BookByName(ctx, req.BookName)
		if err != nil || book == nil || !book.Active {
			result.add("Book must exist and be active.")
		}
	}

	if req.CounterpartyID != nil {
		cp, err := s.refdata.CounterpartyByID(ctx, *req.CounterpartyID)
		if err != nil || cp == nil || !cp.Active {
			result.add("Counterparty must exist and be active.")
		}
	} else if strings.TrimSpace(req.CounterpartyName) != "" {
		cp, err := s.refdata.CounterpartyByName(ctx, req.CounterpartyName)
		if err != nil || cp == nil || !cp.Active {
			result.add("Counterparty must exist and be active.")
		}
	}

	s.checkUser(ctx, req.TraderUserID, req.TraderUserName, "Trader user", result)
	s.checkUser(ctx, req.InputterUserID, req.InputterUserName, "Inputter user", result)
}

func (s *Service) checkUser(ctx context.Context, id *uint, login, label string, result *Result) {
	switch {
	case id != nil:
		user, err := s.directory.FindByID(ctx, *id)
		if err != nil || user == nil || !user.Active {
			result.add(label + " must exist and be active.")
		}
	case strings.TrimSpace(login) != "":
		user, err := s.directory.FindByLoginID(ctx, login)
		if err != nil || user == nil || !user.Active {
			result.add(label + " must exist and be active.")
		}
	}
}

func parseDate(value string) *time.Time {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	d, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil
	}
	return &d
}
