package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Aidin1998/tradebook/pkg/apperrors"
)

// statusOf maps a classified error kind to its HTTP status
func statusOf(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindDenied:
		return http.StatusForbidden
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindConflict, apperrors.KindInvalidTransition:
		return http.StatusConflict
	case apperrors.KindValidation, apperrors.KindQuerySyntax, apperrors.KindUnsupportedField,
		apperrors.KindOperatorIncompatible, apperrors.KindTypeCoercion:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError maps a service error to an HTTP response. Unclassified errors
// are logged and masked as internal.
func (s *Server) writeError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	status := statusOf(kind)
	if status == http.StatusInternalServerError {
		s.logger.Error("handler error", zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}

	body := gin.H{
		"error": err.Error(),
		"kind":  string(kind),
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && len(appErr.Violations) > 0 {
		body["violations"] = appErr.Violations
	}
	c.JSON(status, body)
}
