// Package trading implements the versioned trade lifecycle: booking,
// amendment, termination, cancellation, deletion and search. Every mutation
// is authorized, validated and applied atomically so that at most one version
// per logical trade is active at any time.
package trading

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Aidin1998/tradebook/internal/directory"
	"github.com/Aidin1998/tradebook/internal/query"
	"github.com/Aidin1998/tradebook/internal/refdata"
	"github.com/Aidin1998/tradebook/internal/validation"
	"github.com/Aidin1998/tradebook/pkg/apperrors"
	"github.com/Aidin1998/tradebook/pkg/metrics"
	"github.com/Aidin1998/tradebook/pkg/models"
)

const dateLayout = "2006-01-02"

// ErrVersionConflict signals that the active version changed under a writer
var ErrVersionConflict = apperrors.Conflict("trade version changed concurrently")

// Authorizer gates lifecycle operations by actor and operation
type Authorizer interface {
	Authorize(ctx context.Context, actor string, op models.Operation) error
}

// Validator runs the business rule engine against a trade candidate
type Validator interface {
	ValidateTrade(ctx context.Context, req *models.TradeRequest) *validation.Result
}

// Service is the trade lifecycle manager
type Service struct {
	logger    *zap.Logger
	store     *Store
	authz     Authorizer
	validator Validator
	refdata   refdata.ReferenceData
	directory directory.Directory
}

// NewService creates a new lifecycle manager
func NewService(logger *zap.Logger, store *Store, authz Authorizer, validator Validator,
	ref refdata.ReferenceData, dir directory.Directory) *Service {
	return &Service{
		logger:    logger,
		store:     store,
		authz:     authz,
		validator: validator,
		refdata:   ref,
		directory: dir,
	}
}

func observe(op models.Operation, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	metrics.LifecycleOperations.WithLabelValues(string(op), outcome).Inc()
}

// Create books a new trade as version 1 with status NEW. When the request
// carries no trade id, the next free id is allocated; a request for an id that
// already exists is a conflict.
func (s *Service) Create(ctx context.Context, actor string, req *models.TradeRequest) (trade *models.Trade, err error) {
	defer func() { observe(models.OperationCreate, err) }()

	if err = s.authz.Authorize(ctx, actor, models.OperationCreate); err != nil {
		return nil, err
	}
	if result := s.validator.ValidateTrade(ctx, req); !result.OK() {
		return nil, apperrors.ValidationFailed(result.Violations())
	}

	tradeID := req.TradeID
	if tradeID == 0 {
		tradeID, err = s.store.NextTradeID(ctx)
		if err != nil {
			return nil, err
		}
	} else {
		exists, lookupErr := s.store.TradeIDExists(ctx, tradeID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if exists {
			return nil, apperrors.Conflict("trade %d already exists", tradeID)
		}
	}

	trade, err = s.buildVersion(ctx, req, tradeID, 1, uuid.New(), models.TradeStatusNew)
	if err != nil {
		return nil, err
	}
	if err = s.store.Insert(ctx, trade); err != nil {
		return nil, err
	}

	s.logger.Info("trade booked",
		zap.Int64("trade_id", trade.TradeID),
		zap.String("actor", actor))
	return trade, nil
}

// Amend books the next version of an existing trade with status AMENDED and
// deactivates the prior version. Fields absent from the request carry forward
// from the current active version.
func (s *Service) Amend(ctx context.Context, actor string, tradeID int64, req *models.TradeRequest) (trade *models.Trade, err error) {
	defer func() { observe(models.OperationAmend, err) }()
	return s.supersede(ctx, actor, tradeID, req, models.OperationAmend, models.TradeStatusAmended)
}

// Terminate marks the current active version TERMINATED in place. No new
// version is created; the trade stays visible with its terminal status.
func (s *Service) Terminate(ctx context.Context, actor string, tradeID int64) (trade *models.Trade, err error) {
	defer func() { observe(models.OperationTerminate, err) }()
	return s.transition(ctx, actor, tradeID, models.OperationTerminate, models.TradeStatusTerminated)
}

// Cancel marks the current active version CANCELLED in place
func (s *Service) Cancel(ctx context.Context, actor string, tradeID int64) (trade *models.Trade, err error) {
	defer func() { observe(models.OperationCancel, err) }()
	return s.transition(ctx, actor, tradeID, models.OperationCancel, models.TradeStatusCancelled)
}

// Delete marks the current active version DELETED and clears its active flag,
// hiding the trade from search and reporting. Deletion is gated by the cancel
// capability.
func (s *Service) Delete(ctx context.Context, actor string, tradeID int64) (trade *models.Trade, err error) {
	defer func() { observe(models.OperationDelete, err) }()
	return s.transition(ctx, actor, tradeID, models.OperationCancel, models.TradeStatusDeleted)
}

// transition mutates the status of the current active version in place.
// Deletion additionally clears the active flag; termination and cancellation
// keep the row active so the terminal state stays retrievable.
func (s *Service) transition(ctx context.Context, actor string, tradeID int64,
	authOp models.Operation, status models.TradeStatus) (*models.Trade, error) {

	if err := s.authz.Authorize(ctx, actor, authOp); err != nil {
		return nil, err
	}

	current, err := s.store.ActiveVersion(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperrors.NotFound("trade %d not found", tradeID)
	}
	if current.TradeStatus.Terminal() {
		return nil, apperrors.InvalidTransition("trade %d is %s and cannot be modified",
			tradeID, current.TradeStatus)
	}

	active := status != models.TradeStatusDeleted
	if err := s.store.UpdateStatus(ctx, current.ID, status, active); err != nil {
		return nil, err
	}
	current.TradeStatus = status
	current.Active = active

	s.logger.Info("trade status changed",
		zap.Int64("trade_id", tradeID),
		zap.Int("version", current.Version),
		zap.String("status", string(status)),
		zap.String("actor", actor))
	return current, nil
}

// supersede is the amendment write path. It loads the active version, refuses
// terminal states, builds the successor and applies the swap atomically.
func (s *Service) supersede(ctx context.Context, actor string, tradeID int64, req *models.TradeRequest,
	op models.Operation, nextStatus models.TradeStatus) (*models.Trade, error) {

	if err := s.authz.Authorize(ctx, actor, op); err != nil {
		return nil, err
	}

	current, err := s.store.ActiveVersion(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperrors.NotFound("trade %d not found", tradeID)
	}
	if current.TradeStatus.Terminal() {
		return nil, apperrors.InvalidTransition("trade %d is %s and cannot be modified",
			tradeID, current.TradeStatus)
	}

	merged := mergeRequest(current, req)
	if result := s.validator.ValidateTrade(ctx, merged); !result.OK() {
		return nil, apperrors.ValidationFailed(result.Violations())
	}

	next, err := s.buildVersion(ctx, merged, tradeID, current.Version+1, current.UTI, nextStatus)
	if err != nil {
		return nil, err
	}
	if err := s.store.Supersede(ctx, current, current.TradeStatus, next); err != nil {
		return nil, err
	}

	s.logger.Info("trade version booked",
		zap.Int64("trade_id", tradeID),
		zap.Int("version", next.Version),
		zap.String("status", string(nextStatus)),
		zap.String("actor", actor))
	return next, nil
}

// Get returns the active version of a trade after a view authorization check
func (s *Service) Get(ctx context.Context, actor string, tradeID int64) (*models.Trade, error) {
	if err := s.authz.Authorize(ctx, actor, models.OperationView); err != nil {
		return nil, err
	}
	trade, err := s.store.ActiveVersion(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if trade == nil || trade.TradeStatus == models.TradeStatusDeleted {
		return nil, apperrors.NotFound("trade %d not found", tradeID)
	}
	return trade, nil
}

// History returns every version of a trade, oldest first
func (s *Service) History(ctx context.Context, actor string, tradeID int64) ([]models.Trade, error) {
	if err := s.authz.Authorize(ctx, actor, models.OperationView); err != nil {
		return nil, err
	}
	versions, err := s.store.Versions(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, apperrors.NotFound("trade %d not found", tradeID)
	}
	return versions, nil
}

// Search compiles the filter text and returns matching active versions
func (s *Service) Search(ctx context.Context, actor, filter string, page, size int) (*models.Page[models.Trade], error) {
	if err := s.authz.Authorize(ctx, actor, models.OperationView); err != nil {
		return nil, err
	}
	pred, err := query.Compile(filter)
	if err != nil {
		return nil, err
	}
	page, size = clampPage(page, size)
	return s.store.Search(ctx, pred, page, size)
}

// SearchByCriteria returns active versions matching a structured filter
func (s *Service) SearchByCriteria(ctx context.Context, actor string, crit Criteria, page, size int) (*models.Page[models.Trade], error) {
	if err := s.authz.Authorize(ctx, actor, models.OperationView); err != nil {
		return nil, err
	}
	page, size = clampPage(page, size)
	return s.store.FindByCriteria(ctx, crit, page, size)
}

// MyTrades returns the active versions owned by the requesting actor as
// trader. An actor with no directory entry gets NotFound rather than an
// empty page.
func (s *Service) MyTrades(ctx context.Context, actor string, page, size int) (*models.Page[models.Trade], error) {
	if err := s.authz.Authorize(ctx, actor, models.OperationView); err != nil {
		return nil, err
	}
	user, err := s.directory.Resolve(ctx, actor)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.NotFound("user %q not found", actor)
	}
	page, size = clampPage(page, size)
	return s.store.FindByCriteria(ctx, Criteria{TraderUserID: &user.ID}, page, size)
}

// TradesByBook returns the active versions booked into the named book
func (s *Service) TradesByBook(ctx context.Context, actor, bookName string, page, size int) (*models.Page[models.Trade], error) {
	if err := s.authz.Authorize(ctx, actor, models.OperationView); err != nil {
		return nil, err
	}
	book, err := s.refdata.BookByName(ctx, bookName)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, apperrors.NotFound("book %q not found", bookName)
	}
	page, size = clampPage(page, size)
	return s.store.FindByCriteria(ctx, Criteria{BookName: book.BookName}, page, size)
}

func clampPage(page, size int) (int, int) {
	if size <= 0 {
		size = 20
	}
	if page < 0 {
		page = 0
	}
	return page, size
}

// UpdateSettlementInstructions edits the settlement instructions of the
// current active version in place. No new version is created and the trade
// status does not change.
func (s *Service) UpdateSettlementInstructions(ctx context.Context, tradeID int64,
	req *models.SettlementInstructionsUpdateRequest) (trade *models.Trade, err error) {
	defer func() { observe(models.OperationAmend, err) }()

	if err = s.authz.Authorize(ctx, req.PerformedBy, models.OperationAmend); err != nil {
		return nil, err
	}
	if result := validation.ValidateSettlementInstructions(req.SettlementInstructions); !result.OK() {
		return nil, apperrors.ValidationFailed(result.Violations())
	}

	current, err := s.store.ActiveVersion(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperrors.NotFound("trade %d not found", tradeID)
	}
	if current.TradeStatus.Terminal() {
		return nil, apperrors.InvalidTransition("trade %d is %s and cannot be modified",
			tradeID, current.TradeStatus)
	}

	if err = s.store.UpdateSettlementInstructions(ctx, current.ID, req.SettlementInstructions); err != nil {
		return nil, err
	}
	return s.store.ActiveVersion(ctx, tradeID)
}

// buildVersion materializes one trade version row from a request, resolving
// reference entities and generating the leg cashflow schedules.
func (s *Service) buildVersion(ctx context.Context, req *models.TradeRequest, tradeID int64,
	version int, uti uuid.UUID, status models.TradeStatus) (*models.Trade, error) {

	tradeType := strings.TrimSpace(req.TradeType)
	if tradeType == "" {
		tradeType = "SWAP"
	}

	trade := &models.Trade{
		TradeID:                tradeID,
		Version:                version,
		UTI:                    uti,
		TradeDate:              parseDate(req.TradeDate),
		StartDate:              parseDate(req.StartDate),
		MaturityDate:           parseDate(req.MaturityDate),
		TradeType:              tradeType,
		TradeStatus:            status,
		Active:                 true,
		SettlementInstructions: req.SettlementInstructions,
	}

	var err error
	trade.BookID, err = s.resolveBook(ctx, req)
	if err != nil {
		return nil, err
	}
	trade.CounterpartyID, err = s.resolveCounterparty(ctx, req)
	if err != nil {
		return nil, err
	}
	trade.TraderUserID, err = s.resolveUser(ctx, req.TraderUserID, req.TraderUserName)
	if err != nil {
		return nil, err
	}
	trade.InputterUserID, err = s.resolveUser(ctx, req.InputterUserID, req.InputterUserName)
	if err != nil {
		return nil, err
	}

	for _, legReq := range req.Legs {
		leg := models.TradeLeg{
			PayReceive:                strings.ToUpper(legReq.PayReceive),
			LegType:                   legReq.LegType,
			Notional:                  legReq.Notional,
			Rate:                      legReq.Rate,
			IndexName:                 legReq.IndexName,
			Currency:                  strings.ToUpper(legReq.Currency),
			CalculationPeriodSchedule: legReq.CalculationPeriodSchedule,
		}
		leg.Cashflows = GenerateCashflows(&leg, trade.StartDate, trade.MaturityDate)
		trade.Legs = append(trade.Legs, leg)
	}

	return trade, nil
}

func (s *Service) resolveBook(ctx context.Context, req *models.TradeRequest) (*uint, error) {
	if req.BookID != nil {
		return req.BookID, nil
	}
	if strings.TrimSpace(req.BookName) == "" {
		return nil, nil
	}
	book, err := s.refdata.BookByName(ctx, req.BookName)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, apperrors.NotFound("book %q not found", req.BookName)
	}
	return &book.ID, nil
}

func (s *Service) resolveCounterparty(ctx context.Context, req *models.TradeRequest) (*uint, error) {
	if req.CounterpartyID != nil {
		return req.CounterpartyID, nil
	}
	if strings.TrimSpace(req.CounterpartyName) == "" {
		return nil, nil
	}
	cp, err := s.refdata.CounterpartyByName(ctx, req.CounterpartyName)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, apperrors.NotFound("counterparty %q not found", req.CounterpartyName)
	}
	return &cp.ID, nil
}

func (s *Service) resolveUser(ctx context.Context, id *uint, login string) (*uint, error) {
	if id != nil {
		return id, nil
	}
	if strings.TrimSpace(login) == "" {
		return nil, nil
	}
	user, err := s.directory.FindByLoginID(ctx, login)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.NotFound("user %q not found", login)
	}
	return &user.ID, nil
}

// mergeRequest overlays an amendment request on the current active version.
// Empty request fields carry the current value forward; a nil request (used
// by terminate and cancel) reproduces the current version unchanged.
func mergeRequest(current *models.Trade, req *models.TradeRequest) *models.TradeRequest {
	merged := &models.TradeRequest{
		TradeID:                current.TradeID,
		TradeDate:              formatDate(current.TradeDate),
		StartDate:              formatDate(current.StartDate),
		MaturityDate:           formatDate(current.MaturityDate),
		TradeType:              current.TradeType,
		BookID:                 current.BookID,
		CounterpartyID:         current.CounterpartyID,
		TraderUserID:           current.TraderUserID,
		InputterUserID:         current.InputterUserID,
		SettlementInstructions: current.SettlementInstructions,
	}
	for _, leg := range current.Legs {
		merged.Legs = append(merged.Legs, models.TradeLegRequest{
			PayReceive:                leg.PayReceive,
			LegType:                   leg.LegType,
			Notional:                  leg.Notional,
			Rate:                      leg.Rate,
			IndexName:                 leg.IndexName,
			Currency:                  leg.Currency,
			CalculationPeriodSchedule: leg.CalculationPeriodSchedule,
		})
	}
	if req == nil {
		return merged
	}

	if req.TradeDate != "" {
		merged.TradeDate = req.TradeDate
	}
	if req.StartDate != "" {
		merged.StartDate = req.StartDate
	}
	if req.MaturityDate != "" {
		merged.MaturityDate = req.MaturityDate
	}
	if req.TradeType != "" {
		merged.TradeType = req.TradeType
	}
	if req.BookID != nil || req.BookName != "" {
		merged.BookID, merged.BookName = req.BookID, req.BookName
	}
	if req.CounterpartyID != nil || req.CounterpartyName != "" {
		merged.CounterpartyID, merged.CounterpartyName = req.CounterpartyID, req.CounterpartyName
	}
	if req.TraderUserID != nil || req.TraderUserName != "" {
		merged.TraderUserID, merged.TraderUserName = req.TraderUserID, req.TraderUserName
	}
	if req.InputterUserID != nil || req.InputterUserName != "" {
		merged.InputterUserID, merged.InputterUserName = req.InputterUserID, req.InputterUserName
	}
	if req.SettlementInstructions != "" {
		merged.SettlementInstructions = req.SettlementInstructions
	}
	if len(req.Legs) > 0 {
		merged.Legs = req.Legs
	}
	return merged
}

func parseDate(value string) time.Time {
	if strings.TrimSpace(value) == "" {
		return time.Time{}
	}
	d, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}
	}
	return d
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
