package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	leaddomain "github.com/smallbiznis/opsdesk/internal/lead/domain"
)

type createLeadRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Source         string `json:"source"`
	EstimatedValue int64  `json:"estimated_value"`
	Notes          string `json:"notes"`
}

type updateLeadRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Source         string `json:"source"`
	Status         string `json:"status"`
	EstimatedValue int64  `json:"estimated_value"`
	Notes          string `json:"notes"`
}

func (s *Server) CreateLead(c *gin.Context) {
	var req createLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.leadSvc.Create(c.Request.Context(), leaddomain.CreateLeadRequest{
		Name:           strings.TrimSpace(req.Name),
		Email:          strings.TrimSpace(req.Email),
		Phone:          strings.TrimSpace(req.Phone),
		Source:         strings.TrimSpace(req.Source),
		EstimatedValue: req.EstimatedValue,
		Notes:          strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListLeads(c *gin.Context) {
	resp, err := s.leadSvc.List(c.Request.Context(), leaddomain.ListLeadRequest{
		Status: strings.TrimSpace(c.Query("status")),
		Source: strings.TrimSpace(c.Query("source")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetLeadByID(c *gin.Context) {
	resp, err := s.leadSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateLead(c *gin.Context) {
	var req updateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.leadSvc.Update(c.Request.Context(), leaddomain.UpdateLeadRequest{
		ID:             strings.TrimSpace(c.Param("id")),
		Name:           strings.TrimSpace(req.Name),
		Email:          strings.TrimSpace(req.Email),
		Phone:          strings.TrimSpace(req.Phone),
		Source:         strings.TrimSpace(req.Source),
		Status:         strings.TrimSpace(req.Status),
		EstimatedValue: req.EstimatedValue,
		Notes:          strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteLead(c *gin.Context) {
	if err := s.leadSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ConvertLead(c *gin.Context) {
	resp, err := s.leadSvc.ConvertToCustomer(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetLeadPipeline(c *gin.Context) {
	resp, err := s.leadSvc.Pipeline(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isLeadValidationError(err error) bool {
	switch err {
	case leaddomain.ErrInvalidOrganization,
		leaddomain.ErrInvalidName,
		leaddomain.ErrInvalidStatus,
		leaddomain.ErrInvalidID:
		return true
	default:
		return false
	}
}
