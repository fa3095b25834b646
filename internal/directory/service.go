// Package directory resolves actors (application users) for authorization and
// validation. Lookups always hit the store; roles are never cached.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Aidin1998/tradebook/pkg/models"
)

// Directory defines actor lookup operations
type Directory interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByLoginID(ctx context.Context, loginID string) (*models.User, error)
	Resolve(ctx context.Context, identifier string) (*models.User, error)
	Role(user *models.User) (models.Role, bool)
}

// Service implements Directory backed by the relational store
type Service struct {
	logger *zap.Logger
	db     *gorm.DB
}

// NewService creates a new Directory
func NewService(logger *zap.Logger, db *gorm.DB) *Service {
	return &Service{logger: logger, db: db}
}

// FindByID looks up a user by numeric id
func (s *Service) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user by id: %w", err)
	}
	return &user, nil
}

// FindByLoginID looks up a user by login, case-insensitively
func (s *Service) FindByLoginID(ctx context.Context, loginID string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("LOWER(login_id) = ?", strings.ToLower(loginID)).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user by login: %w", err)
	}
	return &user, nil
}

// Resolve tries the identifier as a numeric id first, then as a login id.
// Returns (nil, nil) when no user matches.
func (s *Service) Resolve(ctx context.Context, identifier string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil
	}
	if id, err := strconv.ParseUint(identifier, 10, 64); err == nil {
		return s.FindByID(ctx, uint(id))
	}
	return s.FindByLoginID(ctx, identifier)
}

// Role resolves the user's role from its profile type. The second return is
// false when the role is unresolvable.
func (s *Service) Role(user *models.User) (models.Role, bool) {
	if user == nil || strings.TrimSpace(user.UserType) == "" {
		return "", false
	}
	return models.Role(strings.ToUpper(user.UserType)), true
}
