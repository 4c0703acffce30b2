package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	dashboarddomain "github.com/smallbiznis/opsdesk/internal/dashboard/domain"
)

func (s *Server) GetDashboard(c *gin.Context) {
	resp, err := s.dashboardSvc.Overview(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isDashboardValidationError(err error) bool {
	return err == dashboarddomain.ErrInvalidOrganization
}
