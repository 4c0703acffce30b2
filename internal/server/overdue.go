package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	overduedomain "github.com/smallbiznis/opsdesk/internal/overdue/domain"
	workdomain "github.com/smallbiznis/opsdesk/internal/work/domain"
)

type setOverdueReasonRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) GetOverdueReport(c *gin.Context) {
	var query struct {
		Kind     string `form:"kind"`
		Priority string `form:"priority"`
		Customer string `form:"customer"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.overdueSvc.Report(c.Request.Context(), overduedomain.ReportFilter{
		Kind:         overduedomain.Kind(strings.TrimSpace(query.Kind)),
		Priority:     workdomain.Priority(strings.TrimSpace(query.Priority)),
		CustomerName: strings.TrimSpace(query.Customer),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetOverdueReason(c *gin.Context) {
	var req setOverdueReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.overdueSvc.SetReason(c.Request.Context(), overduedomain.SetReasonRequest{
		WorkID: strings.TrimSpace(c.Param("id")),
		Reason: strings.TrimSpace(req.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isOverdueValidationError(err error) bool {
	switch err {
	case overduedomain.ErrInvalidOrganization,
		overduedomain.ErrInvalidID,
		overduedomain.ErrNotOverdue:
		return true
	default:
		return false
	}
}
