package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	staffdomain "github.com/smallbiznis/opsdesk/internal/staff/domain"
)

type createStaffRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type updateStaffRequest struct {
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Active      *bool  `json:"active"`
}

type resolveStaffRequest struct {
	AuthUserID string `json:"auth_user_id"`
	Email      string `json:"email"`
}

func (s *Server) CreateStaff(c *gin.Context) {
	var req createStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.staffSvc.Create(c.Request.Context(), staffdomain.CreateStaffRequest{
		Email:       strings.TrimSpace(req.Email),
		DisplayName: strings.TrimSpace(req.DisplayName),
		Role:        strings.TrimSpace(req.Role),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListStaff(c *gin.Context) {
	resp, err := s.staffSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetStaffByID(c *gin.Context) {
	resp, err := s.staffSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateStaff(c *gin.Context) {
	var req updateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.staffSvc.Update(c.Request.Context(), staffdomain.UpdateStaffRequest{
		ID:          strings.TrimSpace(c.Param("id")),
		DisplayName: strings.TrimSpace(req.DisplayName),
		Role:        strings.TrimSpace(req.Role),
		Active:      req.Active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ResolveStaff(c *gin.Context) {
	var req resolveStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.staffSvc.ResolveOrLink(c.Request.Context(), staffdomain.ResolveRequest{
		AuthUserID: strings.TrimSpace(req.AuthUserID),
		Email:      strings.TrimSpace(req.Email),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isStaffValidationError(err error) bool {
	switch err {
	case staffdomain.ErrInvalidOrganization,
		staffdomain.ErrInvalidEmail,
		staffdomain.ErrInvalidDisplayName,
		staffdomain.ErrInvalidRole,
		staffdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}
