// Package authz gates lifecycle operations with a static role/operation
// capability table. The check is fail-closed: unresolvable actors, inactive
// actors, and unknown roles are all denied.
package authz

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Aidin1998/tradebook/internal/directory"
	"github.com/Aidin1998/tradebook/pkg/apperrors"
	"github.com/Aidin1998/tradebook/pkg/models"
)

// capabilities is the full role/operation permission table. Roles or
// operations absent from the table are denied.
var capabilities = map[models.Role]map[models.Operation]bool{
	models.RoleTrader: {
		models.OperationCreate:    true,
		models.OperationAmend:     true,
		models.OperationTerminate: true,
		models.OperationCancel:    true,
		models.OperationView:      true,
	},
	models.RoleSales: {
		models.OperationCreate: true,
		models.OperationAmend:  true,
		models.OperationView:   true,
	},
	models.RoleMiddleOffice: {
		models.OperationAmend: true,
		models.OperationView:  true,
	},
	models.RoleSupport: {
		models.OperationView: true,
	},
}

// Allowed reports whether a role may perform an operation, per the table
func Allowed(role models.Role, op models.Operation) bool {
	ops, ok := capabilities[role]
	if !ok {
		return false
	}
	return ops[op]
}

// Service resolves actors through the directory and applies the table
type Service struct {
	logger    *zap.Logger
	directory directory.Directory
}

// NewService creates a new authorization service
func NewService(logger *zap.Logger, dir directory.Directory) *Service {
	return &Service{logger: logger, directory: dir}
}

// Authorize resolves the actor identifier (numeric id first, else login id)
// and checks the capability table. Returns a Denied error on any failure;
// nil means the operation may proceed.
func (s *Service) Authorize(ctx context.Context, actor string, op models.Operation) error {
	user, err := s.directory.Resolve(ctx, actor)
	if err != nil {
		return err
	}
	if user == nil {
		return apperrors.Denied("actor %q not found", actor)
	}
	if !user.Active {
		return apperrors.Denied("actor %q is not active", user.LoginID)
	}

	role, ok := s.directory.Role(user)
	if !ok {
		return apperrors.Denied("role not resolvable for actor %q", user.LoginID)
	}

	op = models.Operation(strings.ToUpper(string(op)))
	if !Allowed(role, op) {
		return apperrors.Denied("role %s may not perform %s", role, op)
	}
	return nil
}
