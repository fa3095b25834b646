package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getDashboard serves the actor's dashboard, optionally bounded to a
// trade-date range via from/to query parameters.
func (s *Server) getDashboard(c *gin.Context) {
	from, ok := dateParam(c, "from")
	if !ok {
		return
	}
	to, ok := dateParam(c, "to")
	if !ok {
		return
	}
	report, err := s.dashboard.Build(c.Request.Context(), actor(c), from, to)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
