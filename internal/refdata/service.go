// Package refdata provides existence and active-status checks for books and
// counterparties. Anything richer is outside the booking core.
package refdata

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Aidin1998/tradebook/pkg/models"
)

// ReferenceData defines the reference entity lookups the booking core needs
type ReferenceData interface {
	BookByID(ctx context.Context, id uint) (*models.Book, error)
	BookByName(ctx context.Context, name string) (*models.Book, error)
	CounterpartyByID(ctx context.Context, id uint) (*models.Counterparty, error)
	CounterpartyByName(ctx context.Context, name string) (*models.Counterparty, error)
}

// Service implements ReferenceData backed by the relational store
type Service struct {
	logger *zap.Logger
	db     *gorm.DB
}

// NewService creates a new reference data service
func NewService(logger *zap.Logger, db *gorm.DB) *Service {
	return &Service{logger: logger, db: db}
}

// BookByID returns the book with the given id, or nil when absent
func (s *Service) BookByID(ctx context.Context, id uint) (*models.Book, error) {
	var book models.Book
	if err := s.db.WithContext(ctx).First(&book, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find book by id: %w", err)
	}
	return &book, nil
}

// BookByName returns the book with the exact given name, or nil when absent
func (s *Service) BookByName(ctx context.Context, name string) (*models.Book, error) {
	var book models.Book
	if err := s.db.WithContext(ctx).Where("book_name = ?", name).First(&book).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find book by name: %w", err)
	}
	return &book, nil
}

// CounterpartyByID returns the counterparty with the given id, or nil when absent
func (s *Service) CounterpartyByID(ctx context.Context, id uint) (*models.Counterparty, error) {
	var cp models.Counterparty
	if err := s.db.WithContext(ctx).First(&cp, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find counterparty by id: %w", err)
	}
	return &cp, nil
}

// CounterpartyByName returns the counterparty with the exact given name, or
// nil when absent
func (s *Service) CounterpartyByName(ctx context.Context, name string) (*models.Counterparty, error) {
	var cp models.Counterparty
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&cp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find counterparty by name: %w", err)
	}
	return &cp, nil
}
